/*
Copyright pg-auto-ha Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package model holds the data types shared between the monitor and the
// keeper: Formation, Group, Node, and the health/LSN types they carry. It
// mirrors the specification's §3 data model one-to-one.
package model

import (
	"time"

	"github.com/pg-auto-ha/pgautoctl/internal/fsm"
	"github.com/pg-auto-ha/pgautoctl/internal/pg"
)

// HealthState is the monitor's liveness classification of a node.
type HealthState string

// The three health states a node can be observed in.
const (
	HealthUnknown HealthState = "unknown"
	HealthGood    HealthState = "good"
	HealthBad     HealthState = "bad"
)

// SyncState mirrors Postgres' pg_stat_replication.sync_state values as
// reported by a keeper heartbeat.
type SyncState string

// The sync_state values Postgres reports for a streaming replica.
const (
	SyncStateAsync    SyncState = "async"
	SyncStatePotential SyncState = "potential"
	SyncStateSync     SyncState = "sync"
	SyncStateQuorum   SyncState = "quorum"
)

// Node is one member of a Group: identity plus the mutable fields the
// monitor and the keeper exchange on every heartbeat (spec §3).
type Node struct {
	NodeID           int64
	GroupID          int64
	Formation        string
	Name             string
	Host             string
	Port             int
	SystemIdentifier uint64

	CurrentRole  fsm.Role
	AssignedRole fsm.Role

	CandidatePriority int
	ReplicationQuorum bool

	ReportedLSN  pg.LSN
	PgIsRunning  bool
	SyncState    SyncState

	HealthState HealthState
	LastSeenAt  time.Time

	MissedHeartbeats int
}

// IsQuorumCandidate reports whether n can ever be chosen as a failover
// candidate, per invariant 2 of spec §3.
func (n Node) IsQuorumCandidate() bool {
	return n.CandidatePriority > 0 && n.ReplicationQuorum
}

// IsFresh reports whether the monitor has heard from n within the supplied
// failover timeout.
func (n Node) IsFresh(now time.Time, failoverTimeout time.Duration) bool {
	return !n.LastSeenAt.IsZero() && now.Sub(n.LastSeenAt) < failoverTimeout
}
