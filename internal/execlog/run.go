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

package execlog

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/kballard/go-shellquote"

	"github.com/pg-auto-ha/pgautoctl/internal/log"
)

// Run executes name with args, sending stdout to an Info-level LogWriter and
// stderr to a more verbose one, and returns once the command exits. Every
// postgres control-plane binary the keeper shells out to (pg_ctl, initdb,
// pg_basebackup, pg_rewind) goes through this one entry point so its output
// always lands in the structured log stream rather than the keeper's own
// stdout.
func Run(ctx context.Context, name string, args ...string) error {
	logger := log.FromContext(ctx).WithValues("command", name)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = LogWriter{Logger: logger}
	cmd.Stderr = LogWriter{Logger: logger, Level: 1}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %v: %w", name, args, err)
	}
	return nil
}

// Quote renders a command and its arguments back into a single shell-safe
// string, for logging and for the configuration file fields (restore
// command, archive command) that are stored as one quoted string rather
// than a discrete argv (spec's postgresql.conf-facing settings).
func Quote(args ...string) string {
	return shellquote.Join(args...)
}

// SplitCommandLine parses a user-supplied command string (e.g. a custom
// archive_command from the configuration) back into argv form, so it can
// be exec'd directly instead of through a shell.
func SplitCommandLine(line string) ([]string, error) {
	return shellquote.Split(line)
}
