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

// Package create implements the "create monitor" and "create postgres"
// subcommands (spec §6.4): they persist a node's configuration file and
// perform the one-time local bootstrap its role requires, after which
// "pg_autoctl run" drives the node's steady-state loop.
package create

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCmd creates the "create" parent command.
func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a monitor or a keeper-managed Postgres instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("missing subcommand: create monitor | create postgres")
		},
	}

	cmd.AddCommand(newMonitorCmd())
	cmd.AddCommand(newPostgresCmd())
	return cmd
}
