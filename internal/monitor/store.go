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

// Package monitor implements the central orchestrator: election of
// failover candidates, liveness tracking, computation of
// synchronous_standby_names, and the assignment algorithm that drives the
// group state machine (spec §4.1). The monitor's durable relational store
// (spec §2, §9 "monitor transactional store") is modeled as the Store
// interface so the orchestration logic can be exercised against an
// in-memory implementation in tests and a real Postgres-backed one (via
// github.com/lib/pq, the teacher's chosen driver) in production.
package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/pg-auto-ha/pgautoctl/internal/model"
)

// ErrNotFound is returned by Store lookups for an absent formation, group,
// or node.
var ErrNotFound = errors.New("not found")

// ErrNameCollision is the error the API layer reports as a name collision.
// Neither a Store nor Register returns it: registering an already-known
// (formation, host, port) returns that existing node.
var ErrNameCollision = errors.New("node name already registered in formation")

// Event is one row of the append-only audit trail the monitor keeps of
// every assignment decision, surfaced by `show events` (spec §6.4 FULL
// additions) and exercised by the testable-property checks in spec §8.
type Event struct {
	ID        int64
	Formation string
	GroupID   int64
	NodeID    int64
	Message   string
	CreatedAt time.Time
}

// Store is the monitor's durable relational store: formation/group/node
// bookkeeping plus the audit trail, with per-group serialization (spec §9:
// "a transaction with row-level locks keyed by groupId").
type Store interface {
	// CreateFormationIfNotExists registers f, leaving an already-registered
	// formation of the same name untouched.
	CreateFormationIfNotExists(ctx context.Context, f model.Formation) error
	// GetFormation looks up a formation by name.
	GetFormation(ctx context.Context, name string) (model.Formation, error)
	// SetGroupSettings updates a formation's number-sync-standbys policy.
	SetGroupSettings(ctx context.Context, formation string, numberSyncStandbys int) error

	// WithGroupLock executes fn with the advisory lock for (formation,
	// groupID) held, serializing concurrent node_active calls for the same
	// group while letting calls for distinct groups proceed in parallel
	// (spec §5).
	WithGroupLock(ctx context.Context, formation string, groupID int64, fn func(ctx context.Context) error) error

	// NextNodeID allocates a fresh, monotonically increasing node id.
	NextNodeID(ctx context.Context) (int64, error)
	// InsertNode persists a brand-new node record.
	InsertNode(ctx context.Context, n model.Node) error
	// SaveNode persists every mutable field of an existing node record.
	SaveNode(ctx context.Context, n model.Node) error
	// GetNode looks up a single node by id.
	GetNode(ctx context.Context, nodeID int64) (model.Node, error)
	// FindNode looks up a node by its (formation, host, port) identity, the
	// shape register() uses to detect a reconnecting node.
	FindNode(ctx context.Context, formation, host string, port int) (model.Node, error)
	// ListNodes returns every node in a group, in node-id order.
	ListNodes(ctx context.Context, formation string, groupID int64) ([]model.Node, error)
	// ListAllNodes returns every node the monitor knows about, across every
	// formation and group, used by the health scanner and `show state`.
	ListAllNodes(ctx context.Context) ([]model.Node, error)
	// RemoveNode deletes a node record outright; Orchestrator.RemoveNode
	// calls it without first assigning the node `dropped`.
	RemoveNode(ctx context.Context, nodeID int64) error

	// AppendEvent appends one row to the audit trail.
	AppendEvent(ctx context.Context, e Event) error
	// ListEvents returns the most recent `limit` events, newest first.
	ListEvents(ctx context.Context, formation string, limit int) ([]Event, error)
}
