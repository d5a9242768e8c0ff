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

import "strings"

// truePgValues and falsePgValues mirror the literal spellings Postgres'
// parse_bool() accepts for a boolean GUC, which is what shows up verbatim
// in pg_settings / pg_stat_replication columns this package parses.
var (
	truePgValues  = []string{"on", "true", "yes", "1"}
	falsePgValues = []string{"off", "false", "no", "0"}
)

// IsTrue reports whether value is one of Postgres' boolean-true spellings,
// case-insensitively.
func IsTrue(value string) bool {
	lower := strings.ToLower(value)
	for _, v := range truePgValues {
		if lower == v {
			return true
		}
	}
	return false
}

// IsFalse reports whether value is one of Postgres' boolean-false
// spellings, case-insensitively.
func IsFalse(value string) bool {
	lower := strings.ToLower(value)
	for _, v := range falsePgValues {
		if lower == v {
			return true
		}
	}
	return false
}
