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

	"github.com/pg-auto-ha/pgautoctl/internal/execlog"
)

// BaseBackupInfo is the parameters needed to clone a running primary (or
// another standby) into a fresh data directory: the operation every node
// that joins a group after the first one goes through (spec §5, join path).
type BaseBackupInfo struct {
	PgData        string
	SourceHost    string
	SourcePort    int
	SourceUser    string
	SlotName      string
	WithSlot      bool
}

// Run invokes pg_basebackup in streaming mode with a progress report, using
// the replication slot that was created for this node ahead of time so no
// WAL segment produced during the copy is ever recycled before it can be
// consumed (spec §7, slot lifecycle).
func (b BaseBackupInfo) Run(ctx context.Context) error {
	args := []string{
		"-D", b.PgData,
		"-h", b.SourceHost,
		"-p", fmt.Sprintf("%d", b.SourcePort),
		"-U", b.SourceUser,
		"--checkpoint=fast",
		"--write-recovery-conf",
		"--wal-method=stream",
		"--progress",
		"--no-password",
	}
	if b.WithSlot && b.SlotName != "" {
		args = append(args, "--slot", b.SlotName)
	}

	if err := execlog.Run(ctx, "pg_basebackup", args...); err != nil {
		return fmt.Errorf("while running pg_basebackup from %s:%d: %w", b.SourceHost, b.SourcePort, err)
	}
	return nil
}
