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
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pg-auto-ha/pgautoctl/internal/fileutils"
)

// InitInfo holds the parameters a keeper needs to bootstrap a brand-new
// data directory for the group's first node (spec §5, bootstrap path).
// Every later node joins by pg_basebackup instead; InitInfo is only used
// once per group.
type InitInfo struct {
	PgData   string
	PgWal    string
	Username string
	Encoding string
}

// EnsureTargetDirectoriesDoNotExist removes PgData and PgWal if they exist
// but are not a valid, already-initialized cluster, so initdb can be run
// unconditionally afterwards. A directory is considered a valid cluster
// only if it holds a PG_VERSION file; anything else (a half-finished
// initdb, leftover files from a previous failed attempt) is wiped.
func (i InitInfo) EnsureTargetDirectoriesDoNotExist(ctx context.Context) error {
	if _, err := os.Stat(filepath.Join(i.PgData, "PG_VERSION")); err == nil {
		return nil
	}

	if err := os.RemoveAll(i.PgData); err != nil {
		return fmt.Errorf("while removing %s: %w", i.PgData, err)
	}
	if i.PgWal != "" {
		if err := os.RemoveAll(i.PgWal); err != nil {
			return fmt.Errorf("while removing %s: %w", i.PgWal, err)
		}
	}
	return nil
}

// Run invokes initdb, with --waldir pointed at PgWal when it differs from
// PgData (the split-WAL-volume layout the spec's storage section allows).
func (i InitInfo) Run(ctx context.Context) error {
	args := []string{
		"-D", i.PgData,
		"-U", i.Username,
		"-E", i.Encoding,
		"--auth-host=scram-sha-256",
		"--auth-local=peer",
	}
	if i.PgWal != "" && i.PgWal != i.PgData {
		args = append(args, "--waldir", i.PgWal)
	}

	cmd := exec.CommandContext(ctx, "initdb", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("while running initdb: %w: %s", err, out)
	}
	return nil
}

// EnsureParentDirectoriesExist makes sure PgData's (and, if distinct,
// PgWal's) parent directories exist before initdb or pg_basebackup are
// invoked against them.
func (i InitInfo) EnsureParentDirectoriesExist() error {
	if err := fileutils.EnsureDirectoryExists(filepath.Dir(i.PgData)); err != nil {
		return err
	}
	if i.PgWal != "" && i.PgWal != i.PgData {
		return fileutils.EnsureDirectoryExists(filepath.Dir(i.PgWal))
	}
	return nil
}
