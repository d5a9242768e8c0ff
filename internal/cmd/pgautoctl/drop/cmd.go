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

// Package drop implements "drop node" (spec §6.4), the operator-triggered
// counterpart of the monitor's remove_node RPC (spec §4.1 table).
package drop

import (
	"github.com/spf13/cobra"

	"github.com/pg-auto-ha/pgautoctl/internal/cmd/pgautoctl/exitcode"
	"github.com/pg-auto-ha/pgautoctl/internal/cmd/pgautoctl/nodeenv"
	"github.com/pg-auto-ha/pgautoctl/internal/cmd/pgautoctl/nodelookup"
	"github.com/pg-auto-ha/pgautoctl/internal/log"
	"github.com/pg-auto-ha/pgautoctl/internal/monitor/api"
)

// NewCmd creates the "drop" parent command, holding "drop node".
func NewCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "drop", Short: "Remove a node from a formation"}
	cmd.AddCommand(newNodeCmd())
	return cmd
}

func newNodeCmd() *cobra.Command {
	var pgdata, formation, name string
	var group int64
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Remove a node from the monitor's durable state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sections, _, err := nodeenv.Load(pgdata)
			if err != nil {
				return exitcode.Wrap(exitcode.BadConfiguration, err)
			}
			url, err := nodeenv.MonitorURL(sections)
			if err != nil {
				return exitcode.Wrap(exitcode.BadConfiguration, err)
			}
			client := api.NewClient(url, nil)

			nodeID, err := nodelookup.ByName(ctx, client, formation, group, name)
			if err != nil {
				return exitcode.Wrap(exitcode.BadArguments, err)
			}
			if err := client.RemoveNode(ctx, nodeID); err != nil {
				return exitcode.Wrap(exitcode.MonitorError, err)
			}
			log.FromContext(ctx).Info("node dropped", "name", name, "formation", formation)
			return nil
		},
	}
	cmd.Flags().StringVar(&pgdata, "pgdata", "", "data directory identifying which node's monitor to contact")
	cmd.Flags().StringVar(&formation, "formation", "default", "formation the node belongs to")
	cmd.Flags().Int64Var(&group, "group", 0, "group id the node belongs to")
	cmd.Flags().StringVar(&name, "name", "", "name of the node to remove")
	_ = cmd.MarkFlagRequired("pgdata")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
