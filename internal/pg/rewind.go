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
	"os/exec"
)

// RewindInfo is the parameters needed to fast-forward a demoted former
// primary back onto the new primary's timeline (spec §7, rejoin-by-rewind
// path), the preferred alternative to a full re-clone whenever the two
// timelines diverge by only the unapplied portion of WAL.
type RewindInfo struct {
	PgData     string
	SourceHost string
	SourcePort int
	SourceUser string
}

// Run invokes pg_rewind. It must be called only after the instance has
// been cleanly stopped; pg_rewind refuses to operate on a running cluster.
func (r RewindInfo) Run(ctx context.Context) error {
	sourceConninfo := fmt.Sprintf("host=%s port=%d user=%s dbname=postgres", r.SourceHost, r.SourcePort, r.SourceUser)

	cmd := exec.CommandContext(ctx, "pg_rewind",
		"-D", r.PgData,
		"--source-server", sourceConninfo,
		"--no-sync",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("while running pg_rewind against %s:%d: %w: %s", r.SourceHost, r.SourcePort, err, out)
	}
	return nil
}
