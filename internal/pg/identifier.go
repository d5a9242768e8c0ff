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

import "strconv"

// SystemIdentifier is the 64-bit value Postgres assigns at initdb time and
// never changes afterwards, so a data directory replaced with an unrelated
// one reports a different value. The monitor's node record and the
// keeper's state file have a field for it, but the heartbeat does not
// carry it and no code path compares two values.
type SystemIdentifier uint64

// ParseSystemIdentifier parses the decimal string printed by
// `pg_controldata` / `SELECT system_identifier FROM pg_control_system()`.
func ParseSystemIdentifier(s string) (SystemIdentifier, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return SystemIdentifier(v), nil
}

func (id SystemIdentifier) String() string {
	return strconv.FormatUint(uint64(id), 10)
}
