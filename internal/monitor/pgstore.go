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
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	_ "github.com/lib/pq" // registers the "postgres" sql.DB driver

	"github.com/pg-auto-ha/pgautoctl/internal/fsm"
	"github.com/pg-auto-ha/pgautoctl/internal/model"
)

// schema is applied once at monitor start-up (`pg_autoctl create monitor`),
// idempotently, matching the `CREATE ... IF NOT EXISTS` convention the
// spec's init commands use everywhere else.
const schema = `
CREATE TABLE IF NOT EXISTS pgautoctl_formation (
	name                  text PRIMARY KEY,
	kind                  text NOT NULL,
	has_secondary         boolean NOT NULL DEFAULT false,
	number_sync_standbys  integer NOT NULL DEFAULT 0,
	dbname                text NOT NULL DEFAULT 'postgres'
);

CREATE TABLE IF NOT EXISTS pgautoctl_node (
	node_id             bigint PRIMARY KEY,
	group_id            bigint NOT NULL,
	formation           text NOT NULL REFERENCES pgautoctl_formation(name),
	name                text NOT NULL,
	host                text NOT NULL,
	port                integer NOT NULL,
	system_identifier   bigint NOT NULL DEFAULT 0,
	current_role        text NOT NULL,
	assigned_role        text NOT NULL,
	candidate_priority  integer NOT NULL DEFAULT 50,
	replication_quorum  boolean NOT NULL DEFAULT true,
	reported_lsn        text NOT NULL DEFAULT '0/0',
	pg_is_running       boolean NOT NULL DEFAULT false,
	sync_state          text NOT NULL DEFAULT 'async',
	health_state        text NOT NULL DEFAULT 'unknown',
	last_seen_at        timestamptz,
	missed_heartbeats   integer NOT NULL DEFAULT 0
);

CREATE SEQUENCE IF NOT EXISTS pgautoctl_node_id_seq;

CREATE TABLE IF NOT EXISTS pgautoctl_event (
	id          bigserial PRIMARY KEY,
	formation   text NOT NULL,
	group_id    bigint NOT NULL,
	node_id     bigint NOT NULL,
	message     text NOT NULL,
	created_at  timestamptz NOT NULL DEFAULT now()
);
`

// PGStore is the production Store, backed by a real Postgres database
// reached via github.com/lib/pq (spec §2: "single authoritative process
// backed by a durable relational store"). Row-level locking for
// per-group serialization uses `pg_advisory_xact_lock`, scoped to a single
// transaction per spec §9's design note.
type PGStore struct {
	db *sql.DB
}

// OpenPGStore opens (and migrates) the monitor's Postgres-backed store.
func OpenPGStore(ctx context.Context, connStr string) (*PGStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("while opening monitor store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("while connecting to monitor store: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("while applying monitor schema: %w", err)
	}
	return &PGStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *PGStore) Close() error {
	return s.db.Close()
}

func (s *PGStore) CreateFormationIfNotExists(ctx context.Context, f model.Formation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pgautoctl_formation (name, kind, has_secondary, number_sync_standbys, dbname)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO NOTHING`,
		f.Name, string(f.Kind), f.HasSecondary, f.NumberSyncStandbys, f.DBName)
	if err != nil {
		return fmt.Errorf("while creating formation %q: %w", f.Name, err)
	}
	return nil
}

func (s *PGStore) GetFormation(ctx context.Context, name string) (model.Formation, error) {
	var f model.Formation
	var kind string
	err := s.db.QueryRowContext(ctx, `
		SELECT name, kind, has_secondary, number_sync_standbys, dbname
		  FROM pgautoctl_formation WHERE name = $1`, name).
		Scan(&f.Name, &kind, &f.HasSecondary, &f.NumberSyncStandbys, &f.DBName)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Formation{}, ErrNotFound
	}
	if err != nil {
		return model.Formation{}, fmt.Errorf("while reading formation %q: %w", name, err)
	}
	f.Kind = model.FormationKind(kind)
	return f, nil
}

func (s *PGStore) SetGroupSettings(ctx context.Context, formation string, numberSyncStandbys int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pgautoctl_formation SET number_sync_standbys = $1 WHERE name = $2`,
		numberSyncStandbys, formation)
	if err != nil {
		return fmt.Errorf("while updating formation %q settings: %w", formation, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// advisoryLockKey derives a deterministic int64 key for pg_advisory_xact_lock
// from (formation, groupID), since Postgres advisory locks are keyed by
// integers, not strings.
func advisoryLockKey(formation string, groupID int64) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(formation))
	return int64(h.Sum64()) ^ groupID
}

// WithGroupLock runs fn inside a transaction holding the advisory lock for
// (formation, groupID), so two concurrent node_active calls for the same
// group serialize while calls for distinct groups run in parallel (spec
// §5, §9).
func (s *PGStore) WithGroupLock(ctx context.Context, formation string, groupID int64, fn func(ctx context.Context) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("while starting group-lock transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, advisoryLockKey(formation, groupID)); err != nil {
		return fmt.Errorf("while acquiring group lock: %w", err)
	}

	if err := fn(ctx); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *PGStore) NextNodeID(ctx context.Context) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT nextval('pgautoctl_node_id_seq')`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("while allocating node id: %w", err)
	}
	return id, nil
}

func (s *PGStore) InsertNode(ctx context.Context, n model.Node) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pgautoctl_node (node_id, group_id, formation, name, host, port,
			system_identifier, current_role, assigned_role, candidate_priority,
			replication_quorum, reported_lsn, pg_is_running, sync_state, health_state,
			last_seen_at, missed_heartbeats)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		n.NodeID, n.GroupID, n.Formation, n.Name, n.Host, n.Port,
		int64(n.SystemIdentifier), string(n.CurrentRole), string(n.AssignedRole), n.CandidatePriority,
		n.ReplicationQuorum, string(n.ReportedLSN), n.PgIsRunning, string(n.SyncState), string(n.HealthState),
		nullTime(n.LastSeenAt), n.MissedHeartbeats)
	if err != nil {
		return fmt.Errorf("while inserting node %d: %w", n.NodeID, err)
	}
	return nil
}

func (s *PGStore) SaveNode(ctx context.Context, n model.Node) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pgautoctl_node SET
			current_role = $1, assigned_role = $2, candidate_priority = $3,
			replication_quorum = $4, reported_lsn = $5, pg_is_running = $6,
			sync_state = $7, health_state = $8, last_seen_at = $9,
			missed_heartbeats = $10, system_identifier = $11
		WHERE node_id = $12`,
		string(n.CurrentRole), string(n.AssignedRole), n.CandidatePriority,
		n.ReplicationQuorum, string(n.ReportedLSN), n.PgIsRunning,
		string(n.SyncState), string(n.HealthState), nullTime(n.LastSeenAt),
		n.MissedHeartbeats, int64(n.SystemIdentifier), n.NodeID)
	if err != nil {
		return fmt.Errorf("while saving node %d: %w", n.NodeID, err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) scanNode(row *sql.Row) (model.Node, error) {
	var n model.Node
	var currentRole, assignedRole, syncState, healthState string
	var systemIdentifier int64
	var lastSeen sql.NullTime
	err := row.Scan(&n.NodeID, &n.GroupID, &n.Formation, &n.Name, &n.Host, &n.Port,
		&systemIdentifier, &currentRole, &assignedRole, &n.CandidatePriority,
		&n.ReplicationQuorum, &n.ReportedLSN, &n.PgIsRunning, &syncState, &healthState,
		&lastSeen, &n.MissedHeartbeats)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Node{}, ErrNotFound
	}
	if err != nil {
		return model.Node{}, fmt.Errorf("while scanning node: %w", err)
	}
	n.SystemIdentifier = uint64FromInt64(systemIdentifier)
	n.CurrentRole = fsm.Role(currentRole)
	n.AssignedRole = fsm.Role(assignedRole)
	n.SyncState = model.SyncState(syncState)
	n.HealthState = model.HealthState(healthState)
	if lastSeen.Valid {
		n.LastSeenAt = lastSeen.Time
	}
	return n, nil
}

const nodeColumns = `node_id, group_id, formation, name, host, port, system_identifier,
	current_role, assigned_role, candidate_priority, replication_quorum, reported_lsn,
	pg_is_running, sync_state, health_state, last_seen_at, missed_heartbeats`

func (s *PGStore) GetNode(ctx context.Context, nodeID int64) (model.Node, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM pgautoctl_node WHERE node_id = $1`, nodeID)
	return s.scanNode(row)
}

func (s *PGStore) FindNode(ctx context.Context, formation, host string, port int) (model.Node, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+nodeColumns+` FROM pgautoctl_node WHERE formation = $1 AND host = $2 AND port = $3`,
		formation, host, port)
	return s.scanNode(row)
}

func (s *PGStore) queryNodes(ctx context.Context, query string, args ...interface{}) ([]model.Node, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("while listing nodes: %w", err)
	}
	defer rows.Close()

	var out []model.Node
	for rows.Next() {
		var n model.Node
		var currentRole, assignedRole, syncState, healthState string
		var systemIdentifier int64
		var lastSeen sql.NullTime
		if err := rows.Scan(&n.NodeID, &n.GroupID, &n.Formation, &n.Name, &n.Host, &n.Port,
			&systemIdentifier, &currentRole, &assignedRole, &n.CandidatePriority,
			&n.ReplicationQuorum, &n.ReportedLSN, &n.PgIsRunning, &syncState, &healthState,
			&lastSeen, &n.MissedHeartbeats); err != nil {
			return nil, fmt.Errorf("while scanning node: %w", err)
		}
		n.SystemIdentifier = uint64FromInt64(systemIdentifier)
		n.CurrentRole = fsm.Role(currentRole)
		n.AssignedRole = fsm.Role(assignedRole)
		n.SyncState = model.SyncState(syncState)
		n.HealthState = model.HealthState(healthState)
		if lastSeen.Valid {
			n.LastSeenAt = lastSeen.Time
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PGStore) ListNodes(ctx context.Context, formation string, groupID int64) ([]model.Node, error) {
	return s.queryNodes(ctx,
		`SELECT `+nodeColumns+` FROM pgautoctl_node WHERE formation = $1 AND group_id = $2 ORDER BY node_id`,
		formation, groupID)
}

func (s *PGStore) ListAllNodes(ctx context.Context) ([]model.Node, error) {
	return s.queryNodes(ctx, `SELECT `+nodeColumns+` FROM pgautoctl_node ORDER BY node_id`)
}

func (s *PGStore) RemoveNode(ctx context.Context, nodeID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pgautoctl_node WHERE node_id = $1`, nodeID)
	if err != nil {
		return fmt.Errorf("while removing node %d: %w", nodeID, err)
	}
	return nil
}

func (s *PGStore) AppendEvent(ctx context.Context, e Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pgautoctl_event (formation, group_id, node_id, message) VALUES ($1,$2,$3,$4)`,
		e.Formation, e.GroupID, e.NodeID, e.Message)
	if err != nil {
		return fmt.Errorf("while appending event: %w", err)
	}
	return nil
}

func (s *PGStore) ListEvents(ctx context.Context, formation string, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, formation, group_id, node_id, message, created_at
		  FROM pgautoctl_event
		 WHERE $1 = '' OR formation = $1
		 ORDER BY id DESC
		 LIMIT $2`, formation, limit)
	if err != nil {
		return nil, fmt.Errorf("while listing events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Formation, &e.GroupID, &e.NodeID, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("while scanning event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func uint64FromInt64(v int64) uint64 {
	return uint64(v)
}
