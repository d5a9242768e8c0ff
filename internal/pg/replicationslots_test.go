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
	"regexp"

	"github.com/DATA-DOG/go-sqlmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func newSlot(name string) ReplicationSlot {
	return ReplicationSlot{SlotName: name}
}

var _ = Describe("ReplicationSlotList", func() {
	It("has a working Has method", func() {
		slot1 := newSlot("slot1")
		slot2 := newSlot("slot2")
		list := ReplicationSlotList{Items: []ReplicationSlot{slot1, slot2}}

		Expect(list.Has("slot1")).To(BeTrue())
		Expect(list.Has("slot2")).To(BeTrue())
		Expect(list.Has("slot3")).ToNot(BeTrue())
	})

	It("has a working Get method", func() {
		slot1 := newSlot("slot1")
		slot2 := newSlot("slot2")
		list := ReplicationSlotList{Items: []ReplicationSlot{slot1, slot2}}

		Expect(list.Get("slot1")).To(BeEquivalentTo(&slot1))
		Expect(list.Get("slot2")).To(BeEquivalentTo(&slot2))
		Expect(list.Get("slot3")).To(BeNil())
	})

	It("works as expected when the list is empty", func() {
		var list ReplicationSlotList

		Expect(list.Get("slot1")).To(BeNil())
		Expect(list.Has("slot1")).ToNot(BeTrue())
	})
})

var _ = Describe("SlotNameForNode", func() {
	It("builds a deterministic, prefixed slot name", func() {
		Expect(SlotNameForNode("node-a")).To(Equal("pgautoctl_node-a"))
	})
})

var _ = Describe("replication slot queries", func() {
	It("lists physical slots", func() {
		db, mock, err := sqlmock.New()
		Expect(err).ToNot(HaveOccurred())
		defer db.Close()

		rows := sqlmock.NewRows([]string{"slot_name", "active", "restart_lsn"}).
			AddRow("pgautoctl_node-b", true, "1/10")
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT slot_name, active, COALESCE(restart_lsn::text, '')`)).
			WillReturnRows(rows)

		list, err := ListReplicationSlots(context.Background(), db)
		Expect(err).ToNot(HaveOccurred())
		Expect(list.Items).To(HaveLen(1))
		Expect(list.Items[0].SlotName).To(Equal("pgautoctl_node-b"))
		Expect(list.Items[0].RestartLSN).To(Equal(LSN("1/10")))
	})

	It("creates a replication slot", func() {
		db, mock, err := sqlmock.New()
		Expect(err).ToNot(HaveOccurred())
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_create_physical_replication_slot($1)`)).
			WithArgs("pgautoctl_node-b").
			WillReturnResult(sqlmock.NewResult(0, 1))

		Expect(CreateReplicationSlot(context.Background(), db, "pgautoctl_node-b")).To(Succeed())
	})

	It("drops a replication slot", func() {
		db, mock, err := sqlmock.New()
		Expect(err).ToNot(HaveOccurred())
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_drop_replication_slot($1)`)).
			WithArgs("pgautoctl_node-b").
			WillReturnResult(sqlmock.NewResult(0, 1))

		Expect(DropReplicationSlot(context.Background(), db, "pgautoctl_node-b")).To(Succeed())
	})

	It("advances a replication slot", func() {
		db, mock, err := sqlmock.New()
		Expect(err).ToNot(HaveOccurred())
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_replication_slot_advance($1, $2)`)).
			WithArgs("pgautoctl_node-b", "1/20").
			WillReturnResult(sqlmock.NewResult(0, 1))

		Expect(AdvanceReplicationSlot(context.Background(), db, "pgautoctl_node-b", LSN("1/20"))).To(Succeed())
	})
})
