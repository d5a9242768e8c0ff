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

// Package api exposes the monitor's register/node_active/get_primary/
// get_other_nodes/set_group_settings/remove_node contract (spec §4.1,
// §6.2) as a JSON-over-HTTP service, in place of literal Postgres
// function calls: a Go process cannot host Postgres server-side C
// functions, and the teacher's own analogous surface — the instance
// manager's embedded webserver and its typed local HTTP client
// (pkg/management/postgres/webserver, .../webserver.localClient) — is
// exactly this shape, an embedded net/http server paired with a typed Go
// client wrapping it.
package api

import (
	"time"

	"github.com/pg-auto-ha/pgautoctl/internal/fsm"
	"github.com/pg-auto-ha/pgautoctl/internal/model"
)

// ErrorKind classifies a failure the way §7 defines it, so a client can
// decide retryable-vs-permanent from this field alone rather than parsing
// the message text (spec §6.2).
type ErrorKind string

// The error kinds from §7, restricted to the ones the wire protocol needs
// to distinguish (configuration and admin-tool errors never leave the
// keeper process).
const (
	ErrorKindUnknownNode     ErrorKind = "unknown-node"
	ErrorKindNameCollision   ErrorKind = "name-collision"
	ErrorKindGroupFull       ErrorKind = "group-full"
	ErrorKindFSMViolation    ErrorKind = "fsm-violation"
	ErrorKindInvariant       ErrorKind = "invariant-violation"
	ErrorKindStaleGroup      ErrorKind = "stale-group"
	ErrorKindInternal        ErrorKind = "internal"
)

// ErrorBody is the JSON body returned alongside a non-2xx HTTP status.
type ErrorBody struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// RegisterRequest is the JSON body of POST /api/v1/register.
type RegisterRequest struct {
	Formation   string   `json:"formation"`
	GroupID     *int64   `json:"groupId,omitempty"`
	Host        string   `json:"host"`
	Port        int      `json:"port"`
	Name        string   `json:"name"`
	NodeKind    string   `json:"nodeKind,omitempty"`
	DesiredRole fsm.Role `json:"desiredRole,omitempty"`
	// RequestID is a client-generated correlation token (spec §7 logging
	// conventions) that the monitor's register handler writes to its
	// structured logs. The keeper generates a fresh one for every register
	// call it makes.
	RequestID string `json:"requestId,omitempty"`
}

// RegisterResponse is the JSON body of a successful register call.
type RegisterResponse struct {
	NodeID       int64    `json:"nodeId"`
	GroupID      int64    `json:"groupId"`
	AssignedRole fsm.Role `json:"assignedRole"`
}

// HeartbeatRequest is the JSON body of POST /api/v1/nodes/{id}/active.
type HeartbeatRequest struct {
	GroupID     int64           `json:"groupId"`
	CurrentRole fsm.Role        `json:"currentRole"`
	PgIsRunning bool            `json:"pgIsRunning"`
	CurrentLSN  string          `json:"currentLSN"`
	SyncState   model.SyncState `json:"syncState"`
}

// HeartbeatResponse is node_active's result (spec §4.1 table).
type HeartbeatResponse struct {
	AssignedRole fsm.Role `json:"assignedRole"`
	NodeID       int64    `json:"nodeId"`
	GroupID      int64    `json:"groupId"`
	// FastForwardFrom names the node to rewind from when AssignedRole is
	// fast-forward: the election's globally most-advanced standby, which
	// get_primary cannot answer during an in-flight failover since no node
	// is currently writable (spec §4.1/§4.3 "fast-forward").
	FastForwardFrom *NodeAddress `json:"fastForwardFrom,omitempty"`
}

// NodeAddress identifies a node's connection endpoint, returned by
// get_primary and get_other_nodes (spec §4.1 table).
type NodeAddress struct {
	NodeID       int64             `json:"nodeId"`
	GroupID      int64             `json:"groupId"`
	Name         string            `json:"name"`
	Host         string            `json:"host"`
	Port         int               `json:"port"`
	CurrentRole  fsm.Role          `json:"currentRole"`
	AssignedRole fsm.Role          `json:"assignedRole"`
	ReportedLSN  string            `json:"reportedLSN"`
	HealthState  model.HealthState `json:"healthState"`
}

// GetPrimaryResponse is the result of GET /api/v1/formations/{f}/groups/{g}/primary.
type GetPrimaryResponse struct {
	Node  *NodeAddress `json:"node,omitempty"`
	Found bool         `json:"found"`
}

// GetOtherNodesResponse is the result of GET /api/v1/nodes/{id}/others.
type GetOtherNodesResponse struct {
	Nodes []NodeAddress `json:"nodes"`
}

// SetGroupSettingsRequest is the JSON body of
// PUT /api/v1/formations/{f}/settings.
type SetGroupSettingsRequest struct {
	NumberSyncStandbys int `json:"numberSyncStandbys"`
}

// ListNodesResponse is the result of
// GET /api/v1/formations/{f}/groups/{g}/nodes, the full per-group member
// list `show state` renders (spec §6.4 FULL additions).
type ListNodesResponse struct {
	Nodes []NodeAddress `json:"nodes"`
}

// Event is one audit-trail row, returned by GET /api/v1/formations/{f}/events
// (the supplemental `show events` command).
type Event struct {
	ID        int64     `json:"id"`
	Formation string    `json:"formation"`
	GroupID   int64     `json:"groupId"`
	NodeID    int64     `json:"nodeId"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
