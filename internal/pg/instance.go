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

package pg

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pg-auto-ha/pgautoctl/internal/configfile"
	"github.com/pg-auto-ha/pgautoctl/internal/execlog"
	"github.com/pg-auto-ha/pgautoctl/internal/fileutils"
)

// Instance drives one local Postgres data directory: starting and stopping
// it, promoting or demoting it, and answering the questions the keeper's
// tick loop needs answered every cycle. It does not itself decide what role
// the node should be in; internal/fsm and internal/keeper own that.
type Instance struct {
	PgData  string
	Host    string
	Port    int
	Socket  string
	Name    string

	db *sql.DB
}

// signalPath is standby.signal, whose mere presence is how Postgres >= 12
// decides it is a standby.
func (i Instance) signalPath() string {
	return filepath.Join(i.PgData, "standby.signal")
}

func (i Instance) autoConfPath() string {
	return filepath.Join(i.PgData, "postgresql.auto.conf")
}

func (i Instance) pgControlPath() string {
	return filepath.Join(i.PgData, "global", "pg_control")
}

// IsPrimary reports whether the data directory is configured as a primary,
// i.e. standby.signal is absent. It does not say whether postmaster is
// actually running.
func (i Instance) IsPrimary() (bool, error) {
	_, err := os.Stat(i.signalPath())
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("while checking for standby.signal: %w", err)
	}
	return false, nil
}

// Demote rewrites the data directory to come back up as a standby on its
// next start: it drops a standby.signal file and ensures
// postgresql.auto.conf exists for the primary_conninfo the caller writes
// next. This mirrors what pg_rewind itself expects to find when a failed
// primary is rejoining as a standby of the new one (spec §7, rejoin path).
func (i Instance) Demote() error {
	if _, err := fileutils.WriteStringToFile(i.signalPath(), ""); err != nil {
		return fmt.Errorf("while writing standby.signal: %w", err)
	}
	if _, err := os.Stat(i.autoConfPath()); os.IsNotExist(err) {
		if _, err := fileutils.WriteStringToFile(i.autoConfPath(), ""); err != nil {
			return fmt.Errorf("while creating postgresql.auto.conf: %w", err)
		}
	}
	return nil
}

// managePgControlFileBackup restores pg_control from the .old backup that
// pg_rewind leaves behind when it is interrupted mid-rewind, the state a
// keeper can find itself in after a crash during the rewind transition.
func (i Instance) managePgControlFileBackup() error {
	old := i.pgControlPath() + ".old"
	if _, err := os.Stat(old); os.IsNotExist(err) {
		return nil
	}
	data, err := os.ReadFile(old)
	if err != nil {
		return fmt.Errorf("while reading pg_control.old: %w", err)
	}
	if err := fileutils.EnsureParentDirectoryExists(i.pgControlPath()); err != nil {
		return fmt.Errorf("while creating pg_control parent directory: %w", err)
	}
	if err := os.WriteFile(i.pgControlPath(), data, 0o600); err != nil {
		return fmt.Errorf("while restoring pg_control: %w", err)
	}
	return nil
}

// removePgControlFileBackup removes the leftover pg_control.old once the
// data directory is known to be in a consistent state.
func (i Instance) removePgControlFileBackup() error {
	old := i.pgControlPath() + ".old"
	if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("while removing pg_control.old: %w", err)
	}
	return nil
}

// GetSocketDir returns the directory pg_ctl and libpq should use for the
// Unix socket, defaulting to /var/run/postgresql the way every packaged
// Postgres on Linux does.
func GetSocketDir() string {
	if dir := os.Getenv("PGSOCKETDIR"); dir != "" {
		return dir
	}
	return "/var/run/postgresql"
}

// GetServerPort returns $PGPORT if set to a valid integer, else 5432.
func GetServerPort() int {
	const defaultPort = 5432
	v := os.Getenv("PGPORT")
	if v == "" {
		return defaultPort
	}
	port, err := strconv.Atoi(v)
	if err != nil {
		return defaultPort
	}
	return port
}

// DB lazily opens (or returns the cached) connection to this instance,
// addressed over the Unix socket to avoid a dependency on TCP/hba being
// configured for loopback.
func (i *Instance) DB() (*sql.DB, error) {
	if i.db != nil {
		return i.db, nil
	}
	dsn := fmt.Sprintf("host=%s port=%d dbname=postgres sslmode=disable connect_timeout=5", i.Socket, i.Port)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("while opening connection to %s: %w", i.Name, err)
	}
	i.db = db
	return db, nil
}

// Ping checks whether postmaster is accepting connections, the cheapest
// possible "is it running" probe before falling back to pg_ctl status.
func (i *Instance) Ping(ctx context.Context) error {
	db, err := i.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// CollectStatus reads the fields the keeper's tick loop reports to the
// monitor every heartbeat.
func (i *Instance) CollectStatus(ctx context.Context) (Status, error) {
	db, err := i.DB()
	if err != nil {
		return Status{}, err
	}

	status := Status{CollectedAt: time.Now()}

	row := db.QueryRowContext(ctx, `SELECT pg_is_in_recovery()`)
	if err := row.Scan(&status.IsInRecovery); err != nil {
		return Status{}, fmt.Errorf("while checking pg_is_in_recovery: %w", err)
	}
	status.IsPrimary = !status.IsInRecovery

	lsnQuery := `SELECT pg_current_wal_lsn()::text`
	if status.IsInRecovery {
		lsnQuery = `SELECT COALESCE(pg_last_wal_receive_lsn()::text, '0/0'), COALESCE(pg_last_wal_replay_lsn()::text, '0/0')`
		row := db.QueryRowContext(ctx, lsnQuery)
		var received, replay string
		if err := row.Scan(&received, &replay); err != nil {
			return Status{}, fmt.Errorf("while reading replica LSNs: %w", err)
		}
		status.ReceivedLSN = LSN(received)
		status.ReplayLSN = LSN(replay)
		status.CurrentLSN = status.ReplayLSN
	} else {
		var current string
		if err := db.QueryRowContext(ctx, lsnQuery).Scan(&current); err != nil {
			return Status{}, fmt.Errorf("while reading primary LSN: %w", err)
		}
		status.CurrentLSN = LSN(current)
		status.ReceivedLSN = LSN(current)
		status.ReplayLSN = LSN(current)
	}

	return status, nil
}

// Start invokes pg_ctl start, waiting for postmaster to come up and accept
// connections before returning.
func (i Instance) Start(ctx context.Context) error {
	if err := execlog.Run(ctx, "pg_ctl", "start", "-w", "-D", i.PgData, "-o", fmt.Sprintf("-p %d", i.Port)); err != nil {
		return fmt.Errorf("while starting postgres: %w", err)
	}
	return nil
}

// Stop invokes pg_ctl stop with the "fast" shutdown mode, the mode the
// keeper uses for every controlled stop (switchover, maintenance) since it
// disconnects clients immediately rather than waiting them out.
func (i Instance) Stop(ctx context.Context) error {
	if err := execlog.Run(ctx, "pg_ctl", "stop", "-w", "-m", "fast", "-D", i.PgData); err != nil {
		return fmt.Errorf("while stopping postgres: %w", err)
	}
	return nil
}

// Promote invokes pg_ctl promote, turning a standby into a primary.
func (i Instance) Promote(ctx context.Context) error {
	if err := execlog.Run(ctx, "pg_ctl", "promote", "-w", "-D", i.PgData); err != nil {
		return fmt.Errorf("while promoting postgres: %w", err)
	}
	return nil
}

// Reload invokes pg_ctl reload, applying postgresql.conf/auto.conf changes
// that do not require a restart (e.g. a new synchronous_standby_names).
func (i Instance) Reload(ctx context.Context) error {
	if err := execlog.Run(ctx, "pg_ctl", "reload", "-D", i.PgData); err != nil {
		return fmt.Errorf("while reloading postgres: %w", err)
	}
	return nil
}

// IsRunning reports whether pg_ctl considers postmaster up.
func (i Instance) IsRunning(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, "pg_ctl", "status", "-D", i.PgData)
	return cmd.Run() == nil
}

// SetReadOnly writes default_transaction_read_only into
// postgresql.auto.conf and reloads if Postgres is up. This is the read-only
// gate (spec §4.4): a standby sets it before it starts promoting and a
// primary sets it before draining, closing the window in which both the
// old and the new primary could otherwise accept writes at once.
func (i Instance) SetReadOnly(ctx context.Context, readOnly bool) error {
	value := "off"
	if readOnly {
		value = "on"
	}
	changed, err := configfile.UpdatePostgresConfigurationFile(i.autoConfPath(), map[string]string{
		"default_transaction_read_only": value,
	}, "default_transaction_read_only")
	if err != nil {
		return fmt.Errorf("while setting default_transaction_read_only: %w", err)
	}
	if changed && i.IsRunning(ctx) {
		return i.Reload(ctx)
	}
	return nil
}

// PauseReplication stops WAL replay without stopping postmaster, so a
// standby beginning promotion disconnects from its current upstream while
// still answering the reads the read-only gate above still allows (spec
// §4.3 "stop-replication": "disconnect from primary, set read-only").
func (i *Instance) PauseReplication(ctx context.Context) error {
	db, err := i.DB()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `SELECT pg_wal_replay_pause()`); err != nil {
		return fmt.Errorf("while pausing wal replay: %w", err)
	}
	return nil
}

// DisableSynchronousReplication clears synchronous_standby_names so a
// freshly promoted primary does not block commits waiting on a quorum no
// standby has reestablished yet (spec §4.3 "promote").
func (i Instance) DisableSynchronousReplication(ctx context.Context) error {
	changed, err := configfile.UpdatePostgresConfigurationFile(i.autoConfPath(), map[string]string{
		"synchronous_standby_names": "",
	}, "synchronous_standby_names")
	if err != nil {
		return fmt.Errorf("while disabling synchronous replication: %w", err)
	}
	if changed && i.IsRunning(ctx) {
		return i.Reload(ctx)
	}
	return nil
}

// FreezeReplicationPosition removes primary_conninfo and restarts Postgres
// so a standby assigned report-lsn stops advancing: the LSN it next reports
// to the monitor is then stable enough for candidate election to compare
// (spec §4.1 "report-lsn").
func (i Instance) FreezeReplicationPosition(ctx context.Context) error {
	changed, err := configfile.UpdatePostgresConfigurationFile(i.autoConfPath(), nil, "primary_conninfo")
	if err != nil {
		return fmt.Errorf("while removing primary_conninfo: %w", err)
	}
	if !changed {
		return nil
	}
	if i.IsRunning(ctx) {
		if err := i.Stop(ctx); err != nil {
			return fmt.Errorf("while stopping before freezing replication position: %w", err)
		}
	}
	return i.Start(ctx)
}
