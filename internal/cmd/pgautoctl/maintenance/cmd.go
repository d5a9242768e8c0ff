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

// Package maintenance implements "enable maintenance" and "disable
// maintenance" (spec §6.4 FULL additions), the operator override that
// pulls a node out of (or back into) the monitor's failover
// consideration without dropping it from the formation.
package maintenance

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/pg-auto-ha/pgautoctl/internal/cmd/pgautoctl/exitcode"
	"github.com/pg-auto-ha/pgautoctl/internal/cmd/pgautoctl/nodeenv"
	"github.com/pg-auto-ha/pgautoctl/internal/cmd/pgautoctl/nodelookup"
	"github.com/pg-auto-ha/pgautoctl/internal/log"
	"github.com/pg-auto-ha/pgautoctl/internal/monitor/api"
)

type flags struct {
	pgdata, formation, name string
	group                   int64
}

func bind(cmd *cobra.Command, f *flags) {
	cmd.Flags().StringVar(&f.pgdata, "pgdata", "", "data directory identifying which node's monitor to contact")
	cmd.Flags().StringVar(&f.formation, "formation", "default", "formation the node belongs to")
	cmd.Flags().Int64Var(&f.group, "group", 0, "group id the node belongs to")
	cmd.Flags().StringVar(&f.name, "name", "", "name of the node to put into maintenance")
	_ = cmd.MarkFlagRequired("pgdata")
	_ = cmd.MarkFlagRequired("name")
}

func resolve(ctx context.Context, f *flags) (*api.Client, int64, error) {
	sections, _, err := nodeenv.Load(f.pgdata)
	if err != nil {
		return nil, 0, err
	}
	url, err := nodeenv.MonitorURL(sections)
	if err != nil {
		return nil, 0, err
	}
	client := api.NewClient(url, nil)
	nodeID, err := nodelookup.ByName(ctx, client, f.formation, f.group, f.name)
	if err != nil {
		return nil, 0, err
	}
	return client, nodeID, nil
}

// NewEnableCmd creates "enable maintenance".
func NewEnableCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Pull a node out of failover consideration",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, nodeID, err := resolve(ctx, f)
			if err != nil {
				return exitcode.Wrap(exitcode.BadArguments, err)
			}
			if err := client.EnableMaintenance(ctx, nodeID); err != nil {
				return exitcode.Wrap(exitcode.MonitorError, err)
			}
			log.FromContext(ctx).Info("maintenance enabled", "name", f.name)
			return nil
		},
	}
	bind(cmd, f)

	parent := &cobra.Command{Use: "enable", Short: "Enable maintenance mode"}
	parent.AddCommand(cmd)
	return parent
}

// NewDisableCmd creates "disable maintenance".
func NewDisableCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Return a node to failover consideration",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, nodeID, err := resolve(ctx, f)
			if err != nil {
				return exitcode.Wrap(exitcode.BadArguments, err)
			}
			if err := client.DisableMaintenance(ctx, nodeID); err != nil {
				return exitcode.Wrap(exitcode.MonitorError, err)
			}
			log.FromContext(ctx).Info("maintenance disabled", "name", f.name)
			return nil
		},
	}
	bind(cmd, f)

	parent := &cobra.Command{Use: "disable", Short: "Disable maintenance mode"}
	parent.AddCommand(cmd)
	return parent
}
