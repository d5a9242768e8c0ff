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
	"time"

	"github.com/pg-auto-ha/pgautoctl/internal/fsm"
	"github.com/pg-auto-ha/pgautoctl/internal/model"
)

// failoverRoles is the set of roles a node passes through while a failover
// or switchover is in flight; their presence anywhere in a group means the
// group is mid-transition and the steady-state rules must not run.
var failoverRoles = map[fsm.Role]bool{
	fsm.ReportLSN:        true,
	fsm.FastForward:      true,
	fsm.PreparePromotion: true,
	fsm.StopReplication:  true,
}

// computeGroupAssignments is the pure function at the heart of the
// monitor's assignment algorithm (spec §4.1): given the full observed
// state of one group, it returns the assignedRole every node should have.
// It is deliberately side-effect free and total — called fresh on every
// heartbeat for the caller's group (spec: "evaluated at every heartbeat"),
// which makes every assignment idempotent and crash-safe by construction
// (spec §4.2, §9 design note: "model the transition table as data").
func computeGroupAssignments(now time.Time, nodes []model.Node, numberSyncStandbys int, cfg Config) map[int64]fsm.Role {
	desired := make(map[int64]fsm.Role, len(nodes))
	var live []model.Node
	for _, n := range nodes {
		desired[n.NodeID] = n.AssignedRole
		if !n.CurrentRole.IsTerminal() && n.AssignedRole != fsm.Dropped {
			live = append(live, n)
		}
	}
	if len(live) == 0 {
		return desired
	}

	if len(live) == 1 {
		n := live[0]
		if n.AssignedRole == "" || n.AssignedRole == fsm.Init {
			desired[n.NodeID] = fsm.Single
		}
		return desired
	}

	primary := convergedFreshPrimary(live, now, cfg.FailoverTimeout)
	midFailover := anyMidFailover(live)
	stale := convergedStalePrimary(live, now, cfg.FailoverTimeout)
	demoting := demotingPrimary(live)

	switch {
	case primary != nil:
		applySteadyState(desired, live, *primary, numberSyncStandbys)
	case midFailover:
		advanceFailover(desired, live)
	case stale != nil:
		desired[stale.NodeID] = fsm.Demoted
		beginFailover(desired, live, *stale)
	case demoting != nil:
		// An operator-triggered `perform failover`/`perform switchover`
		// moved the primary's assignedRole onto the drain path (spec §6.4
		// FULL additions) while it was still fresh; drive the standbys
		// through the same report-lsn/election sequence a detected-stale
		// primary would, without touching the demoting node's own
		// assignment (already Draining or Demoted).
		beginFailover(desired, live, *demoting)
	default:
		// No node has ever reached a writable role in this view (still
		// joining for the very first time); nothing to drive until
		// Register's initial assignment takes effect.
	}

	return desired
}

// primaryTrackRoles is the set of roles a node passes through while it
// holds (or is converging toward) sole write authority over its group,
// outside of an in-flight failover: single, join-primary, primary,
// apply-settings, and wait-primary. A node only ever counts as "the"
// group's primary while both its currentRole and assignedRole sit in
// this set — once assignedRole moves off it (e.g. to `demoted`), the
// node is excluded even before it has converged to that new assignment
// (spec §4.4: "the monitor never assigns wait-primary to a node while
// another node is believed to be primary").
var primaryTrackRoles = map[fsm.Role]bool{
	fsm.Single:        true,
	fsm.JoinPrimary:   true,
	fsm.Primary:       true,
	fsm.ApplySettings: true,
	fsm.WaitPrimary:   true,
}

func isOnPrimaryTrack(n model.Node) bool {
	return primaryTrackRoles[n.CurrentRole] && primaryTrackRoles[n.AssignedRole]
}

// convergedFreshPrimary returns the node the monitor currently believes is
// the legitimate primary, fresh enough that no failover is warranted.
func convergedFreshPrimary(nodes []model.Node, now time.Time, failoverTimeout time.Duration) *model.Node {
	for i := range nodes {
		if isOnPrimaryTrack(nodes[i]) && nodes[i].IsFresh(now, failoverTimeout) {
			return &nodes[i]
		}
	}
	return nil
}

// convergedStalePrimary returns a node still believed to be primary (its
// assignment has not yet been moved off the primary track) whose last
// heartbeat is older than failoverTimeout — the trigger condition for
// beginning a failover (spec §4.1).
func convergedStalePrimary(nodes []model.Node, now time.Time, failoverTimeout time.Duration) *model.Node {
	for i := range nodes {
		if isOnPrimaryTrack(nodes[i]) && !nodes[i].IsFresh(now, failoverTimeout) {
			return &nodes[i]
		}
	}
	return nil
}

// demotingRoles marks a node an operator has pushed off the primary track
// on purpose via `perform failover`/`perform switchover`, ahead of (or
// instead of) the monitor itself ever detecting it as stale.
var demotingRoles = map[fsm.Role]bool{
	fsm.Draining: true,
	fsm.Demoted:  true,
}

// demotingPrimary returns a node mid-way through an operator-triggered
// demotion: either currentRole or assignedRole already on the drain path.
func demotingPrimary(nodes []model.Node) *model.Node {
	for i := range nodes {
		if demotingRoles[nodes[i].CurrentRole] || demotingRoles[nodes[i].AssignedRole] {
			return &nodes[i]
		}
	}
	return nil
}

func anyMidFailover(nodes []model.Node) bool {
	for _, n := range nodes {
		if failoverRoles[n.CurrentRole] || failoverRoles[n.AssignedRole] {
			return true
		}
		if n.CurrentRole == fsm.WaitPrimary {
			return true
		}
	}
	return false
}

// beginFailover assigns report-lsn to every candidate standby that has
// already reached `secondary` — the only state from which the transition
// table allows report-lsn — per spec §4.1: "assign all standbys
// report-lsn". Standbys still catching up are left alone; they cannot be
// elected anyway (spec §3, invariant 2).
func beginFailover(desired map[int64]fsm.Role, nodes []model.Node, stalePrimary model.Node) {
	for _, n := range nodes {
		if n.NodeID == stalePrimary.NodeID {
			continue
		}
		if n.CurrentRole == fsm.Secondary {
			desired[n.NodeID] = fsm.ReportLSN
		}
	}
}

// advanceFailover runs candidate election once at least one standby
// assigned report-lsn has reported its LSN back, and drives the winner
// through fast-forward (if needed), prepare-promotion, stop-replication,
// and wait-primary in turn, one step per tick as the keeper converges
// (spec §4.1, §4.2). It deliberately does not wait for every standby to
// report before electing: a dead standby must never stall a failover
// whose purpose is to restore availability (see DESIGN.md).
func advanceFailover(desired map[int64]fsm.Role, nodes []model.Node) {
	var reported []model.Node
	for _, n := range nodes {
		if n.CurrentRole == fsm.ReportLSN {
			reported = append(reported, n)
		}
	}

	winnerID := int64(0)
	for _, n := range nodes {
		if n.CurrentRole == fsm.FastForward || n.CurrentRole == fsm.PreparePromotion ||
			n.CurrentRole == fsm.StopReplication || n.CurrentRole == fsm.WaitPrimary {
			winnerID = n.NodeID
		}
	}

	if winnerID == 0 {
		if len(reported) == 0 {
			return
		}
		election, ok := Elect(reported)
		if !ok {
			return
		}
		if election.NeedsFastForward {
			desired[election.Winner.NodeID] = fsm.FastForward
		} else {
			desired[election.Winner.NodeID] = fsm.PreparePromotion
		}
		return
	}

	for _, n := range nodes {
		if n.NodeID != winnerID {
			continue
		}
		switch n.CurrentRole {
		case fsm.FastForward:
			desired[n.NodeID] = fsm.PreparePromotion
		case fsm.PreparePromotion:
			desired[n.NodeID] = fsm.StopReplication
		case fsm.StopReplication:
			desired[n.NodeID] = fsm.WaitPrimary
		case fsm.WaitPrimary:
			desired[n.NodeID] = fsm.WaitPrimary
		}
	}
}

// applySteadyState drives the primary-track node and every standby once a
// fresh, legitimate primary is in place: join-primary handling for a newly
// joining standby, apply-settings when synchronous_standby_names must
// change, and relax/re-enable of synchronous replication as quorum
// candidates come and go (spec §4.1, §4.2).
func applySteadyState(desired map[int64]fsm.Role, nodes []model.Node, primary model.Node, numberSyncStandbys int) {
	var standbys []model.Node
	for _, n := range nodes {
		if n.NodeID != primary.NodeID {
			standbys = append(standbys, n)
		}
	}

	joining := false
	for _, s := range standbys {
		if s.CurrentRole == fsm.Init || s.CurrentRole == fsm.WaitStandby || s.CurrentRole == fsm.CatchingUp {
			joining = true
		}
	}

	_, syncOK := ComputeSynchronousStandbyNames(nodes, numberSyncStandbys)

	switch primary.CurrentRole {
	case fsm.Single:
		// applySteadyState only ever runs once a second live node exists
		// (the len(live)==1 shortcut in computeGroupAssignments handles
		// the lone-node case), so a primary still reporting `single` must
		// always be moved onto the join-primary path, regardless of how
		// far its standbys have gotten.
		desired[primary.NodeID] = fsm.JoinPrimary
	case fsm.JoinPrimary:
		if joining {
			desired[primary.NodeID] = fsm.JoinPrimary
		} else {
			desired[primary.NodeID] = fsm.Primary
		}
	case fsm.Primary:
		switch {
		case joining:
			desired[primary.NodeID] = fsm.JoinPrimary
		case !syncOK:
			desired[primary.NodeID] = fsm.WaitPrimary
		default:
			desired[primary.NodeID] = fsm.ApplySettings
		}
	case fsm.ApplySettings:
		desired[primary.NodeID] = fsm.Primary
	case fsm.WaitPrimary:
		if syncOK {
			desired[primary.NodeID] = fsm.Primary
		} else {
			desired[primary.NodeID] = fsm.WaitPrimary
		}
	default:
		desired[primary.NodeID] = fsm.Primary
	}

	for _, s := range standbys {
		desired[s.NodeID] = nextStandbyAssignment(s)
	}
}

// nextStandbyAssignment drives a single standby along the join/rejoin path
// once a legitimate primary exists (spec §4.2's canonical transitions for
// every role other than the primary track).
func nextStandbyAssignment(n model.Node) fsm.Role {
	switch n.CurrentRole {
	case fsm.Init:
		return fsm.WaitStandby
	case fsm.WaitStandby:
		return fsm.CatchingUp
	case fsm.CatchingUp:
		return fsm.Secondary
	case fsm.Demoted:
		return fsm.CatchingUp
	case fsm.Draining:
		return fsm.Demoted
	case fsm.ReportLSN:
		// A failover just concluded under a new primary; this standby
		// was not the winner and must be reconfigured onto it.
		return fsm.JoinSecondary
	case fsm.JoinSecondary:
		return fsm.Secondary
	case fsm.Maintenance:
		// Maintenance is operator-controlled rather than purely reactive
		// (spec §6.4 FULL additions, `disable maintenance`): stay put
		// until the operator's assignedRole override says otherwise.
		if n.AssignedRole == fsm.CatchingUp {
			return fsm.CatchingUp
		}
		return fsm.Maintenance
	case fsm.Secondary, fsm.JoinPrimary:
		if n.AssignedRole == fsm.Maintenance {
			// An operator's `enable maintenance` stands until the keeper
			// has converged onto it.
			return fsm.Maintenance
		}
		return fsm.Secondary
	default:
		return n.AssignedRole
	}
}
