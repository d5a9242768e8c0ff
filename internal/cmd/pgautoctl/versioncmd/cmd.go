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

// Package versioncmd implements "pg_autoctl version", printing the
// binary's own release and confirming it satisfies the minimum version a
// keeper and a monitor must share to safely speak the wire protocol of
// internal/monitor/api (spec §6.2).
package versioncmd

import (
	"fmt"

	"github.com/blang/semver"
	"github.com/spf13/cobra"
)

// Version is the pg_autoctl release, overridable at build time with
// -ldflags "-X .../versioncmd.Version=...", the same mechanism the
// teacher's own cmd/manager build pipeline uses for its own Version.
var Version = "0.0.0-dev"

// MinimumCompatibleVersion is the oldest release a keeper or monitor of
// this Version can still interoperate with over the wire protocol.
var MinimumCompatibleVersion = semver.MustParse("0.1.0")

// NewCmd creates the "version" command.
func NewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the pg_autoctl version",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := semver.Parse(Version)
			if err != nil {
				fmt.Println(Version)
				return nil
			}
			fmt.Printf("pg_autoctl %s\n", v)
			if v.LT(MinimumCompatibleVersion) {
				fmt.Printf("warning: %s predates the minimum interoperable version %s\n", v, MinimumCompatibleVersion)
			}
			return nil
		},
	}
}
