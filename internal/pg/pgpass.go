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
	"os"
	"path/filepath"
	"strings"
)

// PgPassEntry is one line of a ~/.pgpass file, the mechanism a keeper uses
// to hand libpq the replication password without putting it on the
// primary_conninfo command line where it would show up in `ps`.
type PgPassEntry struct {
	HostName string
	Port     int
	DBName   string
	Username string
	Password string
}

// CreatePgPassLine renders a single pgpass entry, colon-separated per the
// libpq format (host:port:database:username:password).
func (e PgPassEntry) CreatePgPassLine() string {
	return fmt.Sprintf("%s:%d:%s:%s:%s\n", e.HostName, e.Port, e.DBName, e.Username, e.Password)
}

// CreatePgPassContent renders a whole pgpass file from a list of entries.
func CreatePgPassContent(entries []PgPassEntry) string {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.CreatePgPassLine())
	}
	return b.String()
}

// WriteHomePgPass (re)writes ~/.pgpass with a single entry so pg_basebackup
// and pg_rewind, both invoked with --no-password, can still authenticate as
// the replication user against a primary without the password ever
// appearing on the command line or in `ps` output.
func WriteHomePgPass(entry PgPassEntry) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("while resolving home directory: %w", err)
	}
	path := filepath.Join(home, ".pgpass")
	if err := os.WriteFile(path, []byte(entry.CreatePgPassLine()), 0o600); err != nil {
		return "", fmt.Errorf("while writing %s: %w", path, err)
	}
	return path, nil
}
