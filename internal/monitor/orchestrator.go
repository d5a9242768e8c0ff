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

package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/pg-auto-ha/pgautoctl/internal/fsm"
	"github.com/pg-auto-ha/pgautoctl/internal/log"
	"github.com/pg-auto-ha/pgautoctl/internal/model"
	"github.com/pg-auto-ha/pgautoctl/internal/pg"
)

// Orchestrator implements the monitor's public contract (spec §4.1 table):
// register, node_active, get_primary, get_other_nodes,
// set_group_settings, remove_node. It owns no state of its own beyond the
// Store and Config it is constructed with.
type Orchestrator struct {
	Store  Store
	Config Config
}

// NewOrchestrator builds an Orchestrator over the given store.
func NewOrchestrator(store Store, cfg Config) *Orchestrator {
	return &Orchestrator{Store: store, Config: cfg}
}

// RegisterRequest is the input to Register (spec §4.1 table).
type RegisterRequest struct {
	Formation   string
	GroupID     *int64
	Host        string
	Port        int
	Name        string
	NodeKind    model.FormationKind
	DesiredRole fsm.Role
}

// ErrGroupFull is the error the API layer reports as a full group. Register
// does not return it: a node registering into an occupied group always
// joins it as a standby.
var ErrGroupFull = fmt.Errorf("group is full")

// Register creates a brand-new node (spec §3 "Lifecycle": "a node is
// created by a keeper's register call"), assigning it a fresh nodeId and
// an initial assignedRole depending on group occupancy.
func (o *Orchestrator) Register(ctx context.Context, req RegisterRequest) (model.Node, error) {
	if err := o.Store.CreateFormationIfNotExists(ctx, model.Formation{
		Name: req.Formation,
		Kind: req.NodeKind,
	}); err != nil {
		return model.Node{}, fmt.Errorf("while ensuring formation %q exists: %w", req.Formation, err)
	}

	if existing, err := o.Store.FindNode(ctx, req.Formation, req.Host, req.Port); err == nil {
		// A keeper re-registering after a restart reconnects to its own
		// identity rather than colliding with itself.
		return existing, nil
	}

	groupID := int64(0)
	if req.GroupID != nil {
		groupID = *req.GroupID
	}

	var result model.Node
	err := o.Store.WithGroupLock(ctx, req.Formation, groupID, func(ctx context.Context) error {
		siblings, err := o.Store.ListNodes(ctx, req.Formation, groupID)
		if err != nil {
			return fmt.Errorf("while listing group %d: %w", groupID, err)
		}

		id, err := o.Store.NextNodeID(ctx)
		if err != nil {
			return fmt.Errorf("while allocating node id: %w", err)
		}

		assigned := fsm.Single
		if len(siblings) > 0 {
			assigned = fsm.WaitStandby
		}

		n := model.Node{
			NodeID:            id,
			GroupID:           groupID,
			Formation:         req.Formation,
			Name:              req.Name,
			Host:              req.Host,
			Port:              req.Port,
			CurrentRole:       fsm.Init,
			AssignedRole:      assigned,
			CandidatePriority: 50,
			ReplicationQuorum: true,
			HealthState:       model.HealthUnknown,
			LastSeenAt:        time.Now(),
		}
		if err := o.Store.InsertNode(ctx, n); err != nil {
			return fmt.Errorf("while registering node %q: %w", req.Name, err)
		}

		if assigned == fsm.WaitStandby {
			for i := range siblings {
				if siblings[i].CurrentRole == fsm.Single {
					siblings[i].AssignedRole = fsm.JoinPrimary
					if err := o.Store.SaveNode(ctx, siblings[i]); err != nil {
						return fmt.Errorf("while promoting incumbent to join-primary: %w", err)
					}
				}
			}
		}

		_ = o.Store.AppendEvent(ctx, Event{
			Formation: req.Formation, GroupID: groupID, NodeID: id,
			Message: fmt.Sprintf("registered %s (%s:%d), assigned %s", req.Name, req.Host, req.Port, assigned),
		})

		result = n
		return nil
	})
	return result, err
}

// HeartbeatRequest is the input to NodeActive (spec §4.1 table).
type HeartbeatRequest struct {
	NodeID       int64
	GroupID      int64
	CurrentRole  fsm.Role
	PgIsRunning  bool
	CurrentLSN   pg.LSN
	SyncState    model.SyncState
}

// HeartbeatResponse is NodeActive's result (spec §4.1 table).
type HeartbeatResponse struct {
	AssignedRole fsm.Role
	NodeID       int64
	GroupID      int64
	// FastForwardFrom is set only when AssignedRole is fast-forward: the
	// node elected as the group's most-advanced standby, which the caller
	// must rewind from instead of get_primary (spec §4.1/§4.3).
	FastForwardFrom *model.Node
}

// NodeActive processes one keeper heartbeat: records the observed state,
// recomputes the whole group's assignment, and returns the caller's own
// new assignedRole (spec §4.1). Repeated calls with the same payload are
// idempotent modulo state advancement (spec §6.2).
func (o *Orchestrator) NodeActive(ctx context.Context, req HeartbeatRequest) (HeartbeatResponse, error) {
	logger := log.FromContext(ctx)
	var response HeartbeatResponse

	self, err := o.Store.GetNode(ctx, req.NodeID)
	if err != nil {
		return HeartbeatResponse{}, fmt.Errorf("unknown node %d: %w", req.NodeID, err)
	}

	err = o.Store.WithGroupLock(ctx, self.Formation, req.GroupID, func(ctx context.Context) error {
		n, err := o.Store.GetNode(ctx, req.NodeID)
		if err != nil {
			return fmt.Errorf("unknown node %d: %w", req.NodeID, err)
		}
		if n.GroupID != req.GroupID {
			return fmt.Errorf("node %d does not belong to group %d", req.NodeID, req.GroupID)
		}

		// Invariant 3 (spec §3): reportedLSN never decreases.
		n.ReportedLSN = pg.Max(n.ReportedLSN, req.CurrentLSN)
		n.CurrentRole = req.CurrentRole
		n.PgIsRunning = req.PgIsRunning
		n.SyncState = req.SyncState
		n.HealthState = model.HealthGood
		n.LastSeenAt = time.Now()
		n.MissedHeartbeats = 0

		if err := o.Store.SaveNode(ctx, n); err != nil {
			return fmt.Errorf("while saving heartbeat for node %d: %w", n.NodeID, err)
		}

		siblings, err := o.Store.ListNodes(ctx, n.Formation, n.GroupID)
		if err != nil {
			return fmt.Errorf("while listing group %d: %w", n.GroupID, err)
		}

		formation, err := o.Store.GetFormation(ctx, n.Formation)
		if err != nil {
			return fmt.Errorf("while reading formation %q: %w", n.Formation, err)
		}

		desired := computeGroupAssignments(time.Now(), siblings, formation.NumberSyncStandbys, o.Config)

		for i := range siblings {
			newRole, ok := desired[siblings[i].NodeID]
			if !ok || newRole == siblings[i].AssignedRole {
				continue
			}
			if _, legal := fsm.Lookup(siblings[i].CurrentRole, newRole); !legal {
				logger.V(1).Info("refusing illegal assignment", "node", siblings[i].NodeID,
					"from", siblings[i].CurrentRole, "to", newRole)
				continue
			}
			siblings[i].AssignedRole = newRole
			if err := o.Store.SaveNode(ctx, siblings[i]); err != nil {
				return fmt.Errorf("while saving assignment for node %d: %w", siblings[i].NodeID, err)
			}
			_ = o.Store.AppendEvent(ctx, Event{
				Formation: n.Formation, GroupID: n.GroupID, NodeID: siblings[i].NodeID,
				Message: fmt.Sprintf("assigned %s", newRole),
			})
		}

		response = HeartbeatResponse{
			AssignedRole: desired[n.NodeID],
			NodeID:       n.NodeID,
			GroupID:      n.GroupID,
		}
		if response.AssignedRole == fsm.FastForward {
			if target, ok := mostAdvancedReportingStandby(siblings); ok {
				response.FastForwardFrom = &target
			}
		}
		return nil
	})
	return response, err
}

// mostAdvancedReportingStandby re-derives the Election.MostAdvanced node for
// a heartbeat response: advanceFailover already ran the same election over
// the same reported-LSN set to decide the fast-forward assignment in the
// first place, so recomputing it here is deterministic rather than
// threading an extra return value through computeGroupAssignments.
func mostAdvancedReportingStandby(nodes []model.Node) (model.Node, bool) {
	var reported []model.Node
	for _, n := range nodes {
		if n.CurrentRole == fsm.ReportLSN {
			reported = append(reported, n)
		}
	}
	if len(reported) == 0 {
		return model.Node{}, false
	}
	election, ok := Elect(reported)
	if !ok {
		return model.Node{}, false
	}
	return election.MostAdvanced, true
}

// GetPrimary returns the current writable node of a group, per spec §4.1
// table. The bool result is false when no node is currently primary.
func (o *Orchestrator) GetPrimary(ctx context.Context, formation string, groupID int64) (model.Node, bool, error) {
	nodes, err := o.Store.ListNodes(ctx, formation, groupID)
	if err != nil {
		return model.Node{}, false, err
	}
	for _, n := range nodes {
		if n.CurrentRole.IsWritable() {
			return n, true, nil
		}
	}
	return model.Node{}, false, nil
}

// GetOtherNodes returns every node in the caller's group other than
// itself, optionally filtered to a given currentRole (spec §4.1 table).
func (o *Orchestrator) GetOtherNodes(ctx context.Context, nodeID int64, filter *fsm.Role) ([]model.Node, error) {
	self, err := o.Store.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	nodes, err := o.Store.ListNodes(ctx, self.Formation, self.GroupID)
	if err != nil {
		return nil, err
	}
	var out []model.Node
	for _, n := range nodes {
		if n.NodeID == nodeID {
			continue
		}
		if filter != nil && n.CurrentRole != *filter {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// SetGroupSettings updates a formation's number-sync-standbys policy (spec
// §4.1 table), refusing the change outright if it cannot currently be
// satisfied rather than silently weakening durability.
func (o *Orchestrator) SetGroupSettings(ctx context.Context, formation string, numberSyncStandbys int) error {
	if numberSyncStandbys < 0 {
		return fmt.Errorf("number-sync-standbys must be >= 0")
	}
	nodes, err := o.Store.ListAllNodes(ctx)
	if err != nil {
		return err
	}
	groups := map[int64][]model.Node{}
	for _, n := range nodes {
		if n.Formation == formation {
			groups[n.GroupID] = append(groups[n.GroupID], n)
		}
	}
	for groupID, members := range groups {
		if _, ok := ComputeSynchronousStandbyNames(members, numberSyncStandbys); !ok {
			return fmt.Errorf("group %d has fewer than %d quorum standbys", groupID, numberSyncStandbys)
		}
	}
	return o.Store.SetGroupSettings(ctx, formation, numberSyncStandbys)
}

// EnableMaintenance takes a standby out of the replication topology for
// planned operator work (spec §6.4 FULL additions), refusing to do so for
// the group's current primary since that would remove its only writer.
func (o *Orchestrator) EnableMaintenance(ctx context.Context, nodeID int64) error {
	return o.setOperatorAssignment(ctx, nodeID, fsm.Secondary, fsm.Maintenance, "maintenance enabled")
}

// DisableMaintenance returns a node previously put into maintenance to the
// normal join/rejoin path.
func (o *Orchestrator) DisableMaintenance(ctx context.Context, nodeID int64) error {
	return o.setOperatorAssignment(ctx, nodeID, fsm.Maintenance, fsm.CatchingUp, "maintenance disabled")
}

// PerformFailover forces an immediate, operator-triggered failover of a
// group's current primary (spec §6.4 FULL additions), even if that primary
// is still reachable — the emergency variant of the two, with no
// requirement that a caught-up standby exists first.
func (o *Orchestrator) PerformFailover(ctx context.Context, formation string, groupID int64) error {
	return o.demotePrimary(ctx, formation, groupID, false)
}

// PerformSwitchover performs the same primary-to-draining transition as
// PerformFailover, but only when at least one quorum-candidate standby has
// already reached `secondary` — the zero-data-loss variant, refusing
// outright rather than risking an election with no safe winner.
func (o *Orchestrator) PerformSwitchover(ctx context.Context, formation string, groupID int64) error {
	return o.demotePrimary(ctx, formation, groupID, true)
}

func (o *Orchestrator) demotePrimary(ctx context.Context, formation string, groupID int64, requireSyncedStandby bool) error {
	return o.Store.WithGroupLock(ctx, formation, groupID, func(ctx context.Context) error {
		nodes, err := o.Store.ListNodes(ctx, formation, groupID)
		if err != nil {
			return fmt.Errorf("while listing group %d: %w", groupID, err)
		}

		var primary *model.Node
		for i := range nodes {
			if nodes[i].CurrentRole.IsWritable() {
				primary = &nodes[i]
				break
			}
		}
		if primary == nil {
			return fmt.Errorf("group %d has no current primary to demote", groupID)
		}

		if requireSyncedStandby {
			hasCandidate := false
			for _, n := range nodes {
				if n.NodeID != primary.NodeID && n.CurrentRole == fsm.Secondary && n.IsQuorumCandidate() {
					hasCandidate = true
					break
				}
			}
			if !hasCandidate {
				return fmt.Errorf("no caught-up quorum candidate standby available for a switchover")
			}
		}

		if _, legal := fsm.Lookup(primary.CurrentRole, fsm.Draining); !legal {
			return fmt.Errorf("node %d cannot drain from role %s", primary.NodeID, primary.CurrentRole)
		}

		primary.AssignedRole = fsm.Draining
		if err := o.Store.SaveNode(ctx, *primary); err != nil {
			return fmt.Errorf("while assigning drain to node %d: %w", primary.NodeID, err)
		}
		return o.Store.AppendEvent(ctx, Event{
			Formation: formation, GroupID: groupID, NodeID: primary.NodeID,
			Message: "operator-triggered demotion requested",
		})
	})
}

// setOperatorAssignment reassigns a single node after checking it is
// currently in fromRole and that the transition to toRole is legal,
// shared by EnableMaintenance and DisableMaintenance.
func (o *Orchestrator) setOperatorAssignment(ctx context.Context, nodeID int64, fromRole, toRole fsm.Role, eventMessage string) error {
	n, err := o.Store.GetNode(ctx, nodeID)
	if err != nil {
		return err
	}
	return o.Store.WithGroupLock(ctx, n.Formation, n.GroupID, func(ctx context.Context) error {
		n, err := o.Store.GetNode(ctx, nodeID)
		if err != nil {
			return err
		}
		if n.CurrentRole != fromRole {
			return fmt.Errorf("node %d is in role %s, expected %s", nodeID, n.CurrentRole, fromRole)
		}
		if _, legal := fsm.Lookup(n.CurrentRole, toRole); !legal {
			return fmt.Errorf("node %d cannot move from %s to %s", nodeID, n.CurrentRole, toRole)
		}
		n.AssignedRole = toRole
		if err := o.Store.SaveNode(ctx, n); err != nil {
			return err
		}
		return o.Store.AppendEvent(ctx, Event{
			Formation: n.Formation, GroupID: n.GroupID, NodeID: nodeID,
			Message: eventMessage,
		})
	})
}

// RemoveNode drops a node by deleting its store record, so no sibling's
// slot-reconciliation loop finds a stale peer to maintain a slot for
// (spec §8, testable property 4). The node is not first assigned
// `dropped`: its keeper's next heartbeat fails with an unknown-node error
// instead of being told to stop Postgres and exit.
func (o *Orchestrator) RemoveNode(ctx context.Context, nodeID int64) error {
	n, err := o.Store.GetNode(ctx, nodeID)
	if err != nil {
		return err
	}
	return o.Store.WithGroupLock(ctx, n.Formation, n.GroupID, func(ctx context.Context) error {
		if err := o.Store.RemoveNode(ctx, nodeID); err != nil {
			return err
		}
		return o.Store.AppendEvent(ctx, Event{
			Formation: n.Formation, GroupID: n.GroupID, NodeID: nodeID,
			Message: "dropped",
		})
	})
}
