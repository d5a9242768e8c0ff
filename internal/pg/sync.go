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
	"fmt"
	"strings"
)

// SyncMethod selects between Postgres' two multi-standby synchronous_commit
// quorum forms.
type SyncMethod string

// The two forms synchronous_standby_names supports.
const (
	SyncMethodAny   SyncMethod = "ANY"
	SyncMethodFirst SyncMethod = "FIRST"
)

// SynchronousStandbyNames builds the synchronous_standby_names GUC value
// for a quorum of `number` out of `standbyNames`, in the given method. An
// empty standbyNames list (no eligible standby currently caught up enough
// to be asked for quorum) yields an empty string, which disables
// synchronous replication rather than blocking every write.
func SynchronousStandbyNames(method SyncMethod, number int, standbyNames []string) string {
	if len(standbyNames) == 0 {
		return ""
	}

	quoted := make([]string, len(standbyNames))
	for i, name := range standbyNames {
		quoted[i] = fmt.Sprintf("%q", name)
	}

	return fmt.Sprintf("%s %d (%s)", method, number, strings.Join(quoted, ","))
}
