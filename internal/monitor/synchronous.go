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
	"sort"

	"github.com/thoas/go-funk"

	"github.com/pg-auto-ha/pgautoctl/internal/model"
	"github.com/pg-auto-ha/pgautoctl/internal/pg"
)

// eligibleSyncStandbyNames returns the names of every node in nodes that
// participates in synchronous quorum (replicationQuorum = true, healthy,
// not the primary), sorted for deterministic output (spec §4.1).
func eligibleSyncStandbyNames(nodes []model.Node) []string {
	eligible := funk.Filter(nodes, func(n model.Node) bool {
		return !n.CurrentRole.IsWritable() &&
			!n.CurrentRole.IsTerminal() &&
			n.ReplicationQuorum &&
			n.HealthState != model.HealthBad
	}).([]model.Node)

	names := funk.Map(eligible, func(n model.Node) string { return n.Name }).([]string)
	sort.Strings(names)
	return names
}

// ComputeSynchronousStandbyNames builds the `synchronous_standby_names`
// GUC text for a group, per spec §4.1: `ANY k (name1, name2, …)`, empty
// when no eligible standby exists and numberSyncStandbys is 0. ok is false
// when the formation's policy demands more quorum standbys than exist,
// which the caller must refuse rather than apply (spec §4.1, "the monitor
// refuses the setting change with a recoverable error").
func ComputeSynchronousStandbyNames(nodes []model.Node, numberSyncStandbys int) (value string, ok bool) {
	names := eligibleSyncStandbyNames(nodes)

	if len(names) == 0 {
		return "", numberSyncStandbys == 0
	}
	if numberSyncStandbys > len(names) {
		return "", false
	}
	if numberSyncStandbys == 0 {
		return "", true
	}

	return pg.SynchronousStandbyNames(pg.SyncMethodAny, numberSyncStandbys, names), true
}
