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

package keeper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sethvargo/go-password/password"

	"github.com/pg-auto-ha/pgautoctl/internal/certs"
	"github.com/pg-auto-ha/pgautoctl/internal/fileutils"
	"github.com/pg-auto-ha/pgautoctl/internal/fsm"
	"github.com/pg-auto-ha/pgautoctl/internal/log"
	"github.com/pg-auto-ha/pgautoctl/internal/monitor/api"
	"github.com/pg-auto-ha/pgautoctl/internal/pg"
)

// executeTransition looks up the procedure named for (from, to) in the
// transition table and runs it. A from==to re-assignment, and the
// universal drop-node transition, are handled directly; everything else
// is dispatched by Transition.Name (spec §4.2, §4.3). resp is the
// heartbeat response that produced this transition; only fast-forward
// consults it, for the node the election named as the rewind source.
func (k *Keeper) executeTransition(ctx context.Context, from, to fsm.Role, resp api.HeartbeatResponse) error {
	t, ok := fsm.Lookup(from, to)
	if !ok {
		return fmt.Errorf("no known procedure for %s -> %s", from, to)
	}

	logger := log.FromContext(ctx).WithValues("procedure", t.Name, "from", from, "to", to)
	logger.Info("executing transition")

	switch t.Name {
	case "noop":
		return nil
	case "drop":
		return k.stopPostgres(ctx)
	case "init-primary":
		return k.initPrimary(ctx)
	case "wait-for-primary":
		return nil // nothing to do locally; the keeper just keeps polling
	case "init-standby":
		return k.initStandby(ctx)
	case "mark-standby-ready":
		return k.reconcileReplicationConfig(ctx)
	case "prepare-promotion":
		// Read-only gate (spec §4.4): a standby beginning promotion sets
		// default_transaction_read_only before it does anything else, so
		// there is never a moment where both it and the node it is
		// replacing accept writes.
		return k.instance.SetReadOnly(ctx, true)
	case "stop-replication":
		return k.stopReplication(ctx)
	case "promote":
		return k.promote(ctx)
	case "enable-synchronous-replication", "relax-synchronous-replication", "apply-settings":
		return k.reconcileReplicationConfig(ctx)
	case "add-standby":
		return k.reconcileReplicationConfig(ctx)
	case "drain":
		return k.drain(ctx)
	case "stop-postgres":
		return k.stopPostgres(ctx)
	case "rewind-or-rebuild":
		return k.rewindOrRebuild(ctx)
	case "report-lsn":
		return k.instance.FreezeReplicationPosition(ctx)
	case "fast-forward":
		return k.fastForward(ctx, resp.FastForwardFrom)
	case "pause":
		return k.instance.Stop(ctx)
	case "resume":
		return k.instance.Start(ctx)
	case "reconfigure-standby":
		return k.reconcileReplicationConfig(ctx)
	default:
		return fmt.Errorf("unimplemented transition procedure %q", t.Name)
	}
}

// initPrimary bootstraps a brand-new data directory and starts Postgres as
// the group's first (and so far only) node (spec §5, bootstrap path).
func (k *Keeper) initPrimary(ctx context.Context) error {
	if err := k.ensureReplicationPassword(); err != nil {
		return err
	}
	if err := k.ensureSelfSignedCertificates(); err != nil {
		return err
	}

	initInfo := pg.InitInfo{
		PgData:   k.instance.PgData,
		Username: k.cfg.ReplicationUser,
		Encoding: "UTF8",
	}
	if err := initInfo.EnsureParentDirectoriesExist(); err != nil {
		return err
	}
	if err := initInfo.EnsureTargetDirectoriesDoNotExist(ctx); err != nil {
		return err
	}
	if err := initInfo.Run(ctx); err != nil {
		return err
	}
	if err := k.instance.Start(ctx); err != nil {
		return err
	}
	return k.reconcileReplicationConfig(ctx)
}

// ensureReplicationPassword generates a random replication password the
// first time a group's primary is created, when the operator hasn't
// supplied one on the command line (spec §4.3 FULL additions: "a keeper
// creating the first node of a group generates the replication
// credentials the rest of the group will use to stream from it").
func (k *Keeper) ensureReplicationPassword() error {
	if k.cfg.ReplicationPassword != "" || k.cfg.ReplicationPasswordFile == "" {
		return nil
	}

	generated, err := password.Generate(32, 10, 0, false, true)
	if err != nil {
		return fmt.Errorf("while generating replication password: %w", err)
	}

	if _, err := fileutils.WriteStringToFile(k.cfg.ReplicationPasswordFile, generated+"\n"); err != nil {
		return fmt.Errorf("while writing replication password file: %w", err)
	}
	k.cfg.ReplicationPassword = generated
	return nil
}

// ensureSelfSignedCertificates creates a CA and a leaf certificate for this
// node under cfg.PKIDir when ssl.self-signed is set (spec §6.1 config
// table, §4.3 FULL additions), skipping any file that is already there so a
// restarted keeper doesn't churn its own identity.
func (k *Keeper) ensureSelfSignedCertificates() error {
	if !k.cfg.SSLSelfSigned || k.cfg.PKIDir == "" {
		return nil
	}

	caCertPath := filepath.Join(k.cfg.PKIDir, "ca.crt")
	caKeyPath := filepath.Join(k.cfg.PKIDir, "ca.key")
	if certExists, _ := fileutils.FileExists(caCertPath); certExists {
		if keyExists, _ := fileutils.FileExists(caKeyPath); keyExists {
			return nil
		}
	}

	if err := fileutils.EnsureDirectoryExists(k.cfg.PKIDir); err != nil {
		return fmt.Errorf("while creating pki directory %s: %w", k.cfg.PKIDir, err)
	}

	ca, err := certs.CreateRootCA(k.cfg.Formation)
	if err != nil {
		return fmt.Errorf("while creating self-signed CA: %w", err)
	}
	if _, err := fileutils.WriteStringToFile(caCertPath, string(ca.Certificate)); err != nil {
		return fmt.Errorf("while writing CA certificate: %w", err)
	}
	if _, err := fileutils.WriteStringToFile(caKeyPath, string(ca.PrivateKey)); err != nil {
		return fmt.Errorf("while writing CA key: %w", err)
	}

	leaf, err := certs.CreateLeafCertificate(k.cfg.NodeName, []string{k.cfg.Host, k.cfg.NodeName}, ca)
	if err != nil {
		return fmt.Errorf("while creating server leaf certificate: %w", err)
	}
	if _, err := fileutils.WriteStringToFile(filepath.Join(k.cfg.PKIDir, "server.crt"), string(leaf.Certificate)); err != nil {
		return fmt.Errorf("while writing server certificate: %w", err)
	}
	if _, err := fileutils.WriteStringToFile(filepath.Join(k.cfg.PKIDir, "server.key"), string(leaf.PrivateKey)); err != nil {
		return fmt.Errorf("while writing server key: %w", err)
	}
	return nil
}

// writePgPassForPrimary refreshes ~/.pgpass with the replication user's
// credentials for host/port, so the --no-password pg_basebackup and
// pg_rewind invocations below can still authenticate.
func (k *Keeper) writePgPassForPrimary(host string, port int) error {
	if k.cfg.ReplicationPassword == "" {
		return nil
	}
	entry := pg.PgPassEntry{
		HostName: host,
		Port:     port,
		DBName:   "replication",
		Username: k.cfg.ReplicationUser,
		Password: k.cfg.ReplicationPassword,
	}
	if _, err := pg.WriteHomePgPass(entry); err != nil {
		return fmt.Errorf("while writing pgpass for %s:%d: %w", host, port, err)
	}
	return nil
}

// initStandby clones the current primary with pg_basebackup and starts
// streaming replication, the path every node but the first takes to join a
// group (spec §5, join path).
func (k *Keeper) initStandby(ctx context.Context) error {
	primary, err := k.monitor.GetPrimary(ctx, k.cfg.Formation, k.state.GroupID)
	if err != nil {
		return fmt.Errorf("while resolving primary to clone from: %w", err)
	}
	if !primary.Found {
		return fmt.Errorf("no primary registered yet for group %d", k.state.GroupID)
	}
	return k.cloneFrom(ctx, primary.Node.Host, primary.Node.Port)
}

// cloneFrom wipes the local data directory and re-clones it from host:port
// with pg_basebackup, the full re-clone fallback both the rejoin path and
// fast-forward reach for when pg_rewind cannot bring a node back onto the
// target's timeline.
func (k *Keeper) cloneFrom(ctx context.Context, host string, port int) error {
	if err := os.RemoveAll(k.instance.PgData); err != nil {
		return fmt.Errorf("while clearing %s before basebackup: %w", k.instance.PgData, err)
	}

	if err := k.writePgPassForPrimary(host, port); err != nil {
		return err
	}

	backup := pg.BaseBackupInfo{
		PgData:     k.instance.PgData,
		SourceHost: host,
		SourcePort: port,
		SourceUser: k.cfg.ReplicationUser,
		SlotName:   pg.SlotNameForNode(k.cfg.NodeName),
		WithSlot:   true,
	}
	if err := backup.Run(ctx); err != nil {
		return fmt.Errorf("while cloning from %s:%d: %w", host, port, err)
	}

	return k.instance.Start(ctx)
}

// rewindOrRebuild brings a formerly-primary or diverged node back onto the
// current primary's timeline, preferring pg_rewind and falling back to a
// full re-clone when pg_rewind itself fails (spec §7, rejoin path).
func (k *Keeper) rewindOrRebuild(ctx context.Context) error {
	primary, err := k.monitor.GetPrimary(ctx, k.cfg.Formation, k.state.GroupID)
	if err != nil {
		return fmt.Errorf("while resolving primary to rewind against: %w", err)
	}
	if !primary.Found {
		return fmt.Errorf("no primary registered yet for group %d", k.state.GroupID)
	}
	return k.rewindOrCloneFrom(ctx, primary.Node.Host, primary.Node.Port)
}

// fastForward rewinds the election winner onto the timeline of the node the
// monitor named as the group's most-advanced standby, rather than calling
// get_primary: during an in-flight failover no node is currently writable,
// so get_primary would come back empty (spec §4.1/§4.3 "fast-forward").
func (k *Keeper) fastForward(ctx context.Context, target *api.NodeAddress) error {
	if target == nil {
		return fmt.Errorf("monitor assigned fast-forward without naming a node to rewind from")
	}
	return k.rewindOrCloneFrom(ctx, target.Host, target.Port)
}

// rewindOrCloneFrom is the pg_rewind-preferring, full-re-clone-falling-back
// core shared by rewindOrRebuild and fastForward: only the source host and
// port differ between rejoining the current primary and fast-forwarding
// onto an elected standby.
func (k *Keeper) rewindOrCloneFrom(ctx context.Context, host string, port int) error {
	if k.instance.IsRunning(ctx) {
		if err := k.instance.Stop(ctx); err != nil {
			return fmt.Errorf("while stopping before rewind: %w", err)
		}
	}

	if err := k.writePgPassForPrimary(host, port); err != nil {
		return err
	}

	rewind := pg.RewindInfo{
		PgData:     k.instance.PgData,
		SourceHost: host,
		SourcePort: port,
		SourceUser: k.cfg.ReplicationUser,
	}
	if err := rewind.Run(ctx); err != nil {
		log.FromContext(ctx).Error(err, "pg_rewind failed, falling back to full re-clone")
		return k.cloneFrom(ctx, host, port)
	}

	if err := k.instance.Demote(); err != nil {
		return err
	}
	return k.instance.Start(ctx)
}

// stopReplication disconnects the election winner from its current
// upstream without stopping postmaster, so it keeps answering reads under
// the read-only gate prepare-promotion already set while it waits to be
// promoted (spec §4.3 "stop-replication").
func (k *Keeper) stopReplication(ctx context.Context) error {
	if err := k.instance.SetReadOnly(ctx, true); err != nil {
		return err
	}
	return k.instance.PauseReplication(ctx)
}

// drain sets the read-only gate on the current primary before it gives up
// write authority, closing the window in which it and the node being
// promoted in its place could both accept writes (spec §4.4), then preps
// the data directory for standby mode the way stop-postgres/rewind-or-rebuild
// expect to find it.
func (k *Keeper) drain(ctx context.Context) error {
	if k.instance.IsRunning(ctx) {
		if err := k.instance.SetReadOnly(ctx, true); err != nil {
			return err
		}
	}
	return k.instance.Demote()
}

// promote calls pg_ctl promote, then lifts the read-only gate the winner
// set for itself in prepare-promotion/stop-replication, disables
// synchronous replication until a new quorum candidate re-establishes
// itself, and drops any replication slot still held on behalf of the
// deposed primary (spec §4.3 "promote").
func (k *Keeper) promote(ctx context.Context) error {
	if err := k.instance.Promote(ctx); err != nil {
		return err
	}
	if err := k.instance.SetReadOnly(ctx, false); err != nil {
		return err
	}
	if err := k.instance.DisableSynchronousReplication(ctx); err != nil {
		return err
	}
	return k.dropDeposedPrimarySlots(ctx)
}

// dropDeposedPrimarySlots removes any physical replication slot this node
// still holds for a sibling that the failover left in draining/demoted,
// since that sibling no longer streams from here and a leftover slot would
// otherwise retain WAL for it indefinitely (spec §4.3 "promote", §7 slot
// lifecycle).
func (k *Keeper) dropDeposedPrimarySlots(ctx context.Context) error {
	others, err := k.monitor.GetOtherNodes(ctx, k.state.NodeID, "")
	if err != nil {
		return fmt.Errorf("while listing sibling nodes: %w", err)
	}

	db, err := k.instance.DB()
	if err != nil {
		return err
	}
	existing, err := pg.ListReplicationSlots(ctx, db)
	if err != nil {
		return fmt.Errorf("while listing replication slots: %w", err)
	}

	for _, n := range others.Nodes {
		if n.CurrentRole != fsm.Demoted && n.CurrentRole != fsm.Draining {
			continue
		}
		slot := pg.SlotNameForNode(n.Name)
		if existing.Has(slot) {
			if err := pg.DropReplicationSlot(ctx, db, slot); err != nil {
				return fmt.Errorf("while dropping deposed primary's slot %s: %w", slot, err)
			}
		}
	}
	return nil
}

// stopPostgres stops the local instance if it is running; used by both the
// drain and drop-node paths, where the only local action left is to get
// out of the way.
func (k *Keeper) stopPostgres(ctx context.Context) error {
	if !k.instance.IsRunning(ctx) {
		return nil
	}
	return k.instance.Stop(ctx)
}

// reconcileReplicationConfig rewrites pg_hba.conf to match the group's
// current sibling list, then reloads Postgres to pick up the change (spec
// §4.3, §7 "slot lifecycle"). It also ensures (or drops) the physical
// replication slot this node's standbys stream through. It does not set
// synchronous_standby_names.
func (k *Keeper) reconcileReplicationConfig(ctx context.Context) error {
	others, err := k.monitor.GetOtherNodes(ctx, k.state.NodeID, "")
	if err != nil {
		return fmt.Errorf("while listing sibling nodes: %w", err)
	}

	rules := make([]pg.HBARule, 0, len(others.Nodes))
	standbyNames := make([]string, 0, len(others.Nodes))
	for _, n := range others.Nodes {
		rules = append(rules, pg.HBARule{
			Host:     n.Host,
			User:     k.cfg.ReplicationUser,
			Database: "replication",
			Method:   "scram-sha-256",
		})
		standbyNames = append(standbyNames, n.Name)
	}

	hbaPath := k.instance.PgData + "/pg_hba.conf"
	current, err := os.Open(hbaPath)
	if err != nil {
		return fmt.Errorf("while opening pg_hba.conf: %w", err)
	}
	rendered, err := pg.RewriteHBAFile(current, rules)
	current.Close()
	if err != nil {
		return fmt.Errorf("while rewriting pg_hba.conf: %w", err)
	}
	if err := os.WriteFile(hbaPath, []byte(rendered), 0o600); err != nil {
		return fmt.Errorf("while writing pg_hba.conf: %w", err)
	}

	if err := k.reconcileReplicationSlots(ctx, standbyNames); err != nil {
		return err
	}

	if k.instance.IsRunning(ctx) {
		return k.instance.Reload(ctx)
	}
	return nil
}

// reconcileReplicationSlots creates a physical slot for every sibling that
// lacks one and drops any slot whose sibling is no longer in the group,
// the declarative diff the slot lifecycle (spec §7) requires to avoid
// leaking retained WAL for a node that has been dropped.
func (k *Keeper) reconcileReplicationSlots(ctx context.Context, standbyNames []string) error {
	db, err := k.instance.DB()
	if err != nil {
		return err
	}

	existing, err := pg.ListReplicationSlots(ctx, db)
	if err != nil {
		return fmt.Errorf("while listing replication slots: %w", err)
	}

	wanted := make(map[string]bool, len(standbyNames))
	for _, name := range standbyNames {
		slot := pg.SlotNameForNode(name)
		wanted[slot] = true
		if !existing.Has(slot) {
			if err := pg.CreateReplicationSlot(ctx, db, slot); err != nil {
				return fmt.Errorf("while creating slot %s: %w", slot, err)
			}
		}
	}

	for _, slot := range existing.Items {
		if !wanted[slot.SlotName] {
			if err := pg.DropReplicationSlot(ctx, db, slot.SlotName); err != nil {
				return fmt.Errorf("while dropping slot %s: %w", slot.SlotName, err)
			}
		}
	}
	return nil
}
