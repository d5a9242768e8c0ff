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

// The pg_autoctl command is the single entrypoint for both the monitor and
// the keeper (SPEC_FULL §1).
package main

import (
	"fmt"
	"os"

	"github.com/pg-auto-ha/pgautoctl/internal/cmd/pgautoctl"
	"github.com/pg-auto-ha/pgautoctl/internal/cmd/pgautoctl/exitcode"
)

func main() {
	cmd := pgautoctl.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitcode.CodeOf(err))
	}
}
