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
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pg-auto-ha/pgautoctl/internal/stringset"
)

// managedHBAMarker delimits the block of pg_hba.conf lines this process
// owns; everything outside the markers is the operator's own rules and is
// left untouched on every rewrite.
const (
	hbaBeginMarker = "# pgautoctl: managed replication rules, do not edit below this line"
	hbaEndMarker   = "# pgautoctl: end of managed replication rules"
)

// HBARule is one pg_hba.conf replication entry granting a sibling node
// streaming-replication access.
type HBARule struct {
	Host     string
	User     string
	Database string
	Method   string
}

func (r HBARule) line() string {
	return fmt.Sprintf("host replication %s %s %s", r.User, r.Host, r.Method)
}

// RenderManagedHBABlock produces the managed block to splice into
// pg_hba.conf for the given set of sibling hosts.
func RenderManagedHBABlock(rules []HBARule) string {
	var b strings.Builder
	b.WriteString(hbaBeginMarker + "\n")
	for _, r := range rules {
		b.WriteString(r.line() + "\n")
	}
	b.WriteString(hbaEndMarker + "\n")
	return b.String()
}

// RewriteHBAFile reads the current pg_hba.conf content and returns it with
// the managed block replaced (or appended, if absent) by the rules for the
// given set of sibling hosts. Lines outside the markers, including any
// rule the operator added by hand, are preserved verbatim and in order.
func RewriteHBAFile(current io.Reader, rules []HBARule) (string, error) {
	scanner := bufio.NewScanner(current)
	var before, after []string
	var inBlock, seenBlock bool

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.TrimSpace(line) == hbaBeginMarker:
			inBlock = true
			seenBlock = true
			continue
		case strings.TrimSpace(line) == hbaEndMarker:
			inBlock = false
			continue
		case inBlock:
			continue
		case seenBlock:
			after = append(after, line)
		default:
			before = append(before, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("while reading pg_hba.conf: %w", err)
	}

	var b strings.Builder
	for _, line := range before {
		b.WriteString(line + "\n")
	}
	b.WriteString(RenderManagedHBABlock(rules))
	for _, line := range after {
		b.WriteString(line + "\n")
	}
	return b.String(), nil
}

// HostsFromRules extracts the set of hosts currently granted access, the
// shape the reconciliation loop diffs against the group's current member
// list.
func HostsFromRules(rules []HBARule) *stringset.Data {
	s := stringset.New()
	for _, r := range rules {
		s.Put(r.Host)
	}
	return s
}
