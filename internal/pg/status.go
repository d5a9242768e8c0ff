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

import "time"

// Status is the snapshot a keeper collects from its local Postgres every
// tick and hands to the FSM and, on its next heartbeat, to the monitor.
type Status struct {
	IsPrimary        bool
	IsInRecovery     bool
	ReceivedLSN      LSN
	ReplayLSN        LSN
	CurrentLSN       LSN
	SystemIdentifier SystemIdentifier
	PgVersion        int
	TimelineID       int
	CollectedAt      time.Time
}

// StatusList is a group's statuses as last observed by the monitor, kept in
// node-id order for deterministic iteration by the election and quorum
// logic.
type StatusList []Status

// IsComplete reports whether every node in the list reported a status this
// round; a missing report (zero CollectedAt) means the keeper is down or
// unreachable and this round's decision must treat it as stale.
func (l StatusList) IsComplete() bool {
	for _, s := range l {
		if s.CollectedAt.IsZero() {
			return false
		}
	}
	return true
}

// MostAdvanced returns the highest ReceivedLSN across the list, or the zero
// LSN if the list is empty.
func (l StatusList) MostAdvanced() LSN {
	var max LSN
	for _, s := range l {
		max = Max(max, s.ReceivedLSN)
	}
	return max
}
