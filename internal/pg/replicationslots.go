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

	"github.com/pg-auto-ha/pgautoctl/internal/stringset"
)

// ReplicationSlot is one row of pg_replication_slots, restricted to the
// physical slots the keepers maintain on each other's behalf (spec §7).
type ReplicationSlot struct {
	SlotName   string
	Active     bool
	RestartLSN LSN
}

// ReplicationSlotList is a snapshot of a node's physical replication slots.
type ReplicationSlotList struct {
	Items []ReplicationSlot
}

// Has reports whether name is present in the list.
func (l ReplicationSlotList) Has(name string) bool {
	return l.Get(name) != nil
}

// Get returns a pointer to the named slot, or nil if absent.
func (l ReplicationSlotList) Get(name string) *ReplicationSlot {
	for i := range l.Items {
		if l.Items[i].SlotName == name {
			return &l.Items[i]
		}
	}
	return nil
}

// Names returns the slot names as a set, the shape slot reconciliation
// diffs against the desired set of sibling node names.
func (l ReplicationSlotList) Names() *stringset.Data {
	s := stringset.New()
	for _, slot := range l.Items {
		s.Put(slot.SlotName)
	}
	return s
}

// SlotNameForNode is the deterministic slot-name convention every keeper
// uses when creating a slot on behalf of a sibling node, so the monitor's
// desired-state set and a keeper's observed pg_replication_slots agree on
// naming without any side-channel.
func SlotNameForNode(nodeName string) string {
	return fmt.Sprintf("pgautoctl_%s", nodeName)
}

// ListReplicationSlots queries pg_replication_slots for every physical slot
// this instance holds.
func ListReplicationSlots(ctx context.Context, db *sql.DB) (ReplicationSlotList, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT slot_name, active, COALESCE(restart_lsn::text, '')
		  FROM pg_replication_slots
		 WHERE slot_type = 'physical'`)
	if err != nil {
		return ReplicationSlotList{}, fmt.Errorf("while listing replication slots: %w", err)
	}
	defer rows.Close()

	var list ReplicationSlotList
	for rows.Next() {
		var slot ReplicationSlot
		var lsn string
		if err := rows.Scan(&slot.SlotName, &slot.Active, &lsn); err != nil {
			return ReplicationSlotList{}, fmt.Errorf("while scanning replication slot: %w", err)
		}
		slot.RestartLSN = LSN(lsn)
		list.Items = append(list.Items, slot)
	}
	return list, rows.Err()
}

// CreateReplicationSlot creates a physical replication slot. A slot of that
// name that already exists is reported as an error; slot reconciliation
// only calls this for names missing from ListReplicationSlots.
func CreateReplicationSlot(ctx context.Context, db *sql.DB, name string) error {
	_, err := db.ExecContext(ctx, `SELECT pg_create_physical_replication_slot($1)`, name)
	if err != nil {
		return fmt.Errorf("while creating replication slot %q: %w", name, err)
	}
	return nil
}

// DropReplicationSlot drops a physical replication slot.
func DropReplicationSlot(ctx context.Context, db *sql.DB, name string) error {
	_, err := db.ExecContext(ctx, `SELECT pg_drop_replication_slot($1)`, name)
	if err != nil {
		return fmt.Errorf("while dropping replication slot %q: %w", name, err)
	}
	return nil
}

// AdvanceReplicationSlot moves a standby-maintained slot forward to lsn,
// the operation a standby uses to track the LSN its siblings have reported
// without ever connecting to them directly (spec §7, slot advancement on
// a standby-of-standby topology).
func AdvanceReplicationSlot(ctx context.Context, db *sql.DB, name string, lsn LSN) error {
	_, err := db.ExecContext(ctx, `SELECT pg_replication_slot_advance($1, $2)`, name, string(lsn))
	if err != nil {
		return fmt.Errorf("while advancing replication slot %q to %s: %w", name, lsn, err)
	}
	return nil
}
