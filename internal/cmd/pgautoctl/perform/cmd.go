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

// Package perform implements "perform failover" and "perform switchover"
// (spec §6.4 FULL additions), the operator-triggered transitions restored
// from original_source that spec.md's test scenarios (§8) exercise
// without naming as CLI surface.
package perform

import (
	"github.com/spf13/cobra"

	"github.com/pg-auto-ha/pgautoctl/internal/cmd/pgautoctl/exitcode"
	"github.com/pg-auto-ha/pgautoctl/internal/cmd/pgautoctl/nodeenv"
	"github.com/pg-auto-ha/pgautoctl/internal/log"
	"github.com/pg-auto-ha/pgautoctl/internal/monitor/api"
)

// NewCmd creates the "perform" parent command.
func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "perform",
		Short: "Trigger an operator-initiated role transition",
	}
	cmd.AddCommand(newFailoverCmd())
	cmd.AddCommand(newSwitchoverCmd())
	return cmd
}

func clientFor(pgdata string) (*api.Client, error) {
	sections, _, err := nodeenv.Load(pgdata)
	if err != nil {
		return nil, err
	}
	url, err := nodeenv.MonitorURL(sections)
	if err != nil {
		return nil, err
	}
	return api.NewClient(url, nil), nil
}

func newFailoverCmd() *cobra.Command {
	var pgdata, formation string
	var group int64
	cmd := &cobra.Command{
		Use:   "failover",
		Short: "Force an unplanned promotion of the best standby",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := clientFor(pgdata)
			if err != nil {
				return exitcode.Wrap(exitcode.BadConfiguration, err)
			}
			if err := client.PerformFailover(ctx, formation, group); err != nil {
				return exitcode.Wrap(exitcode.MonitorError, err)
			}
			log.FromContext(ctx).Info("failover requested", "formation", formation, "group", group)
			return nil
		},
	}
	cmd.Flags().StringVar(&pgdata, "pgdata", "", "data directory identifying which node's monitor to contact")
	cmd.Flags().StringVar(&formation, "formation", "default", "formation to fail over")
	cmd.Flags().Int64Var(&group, "group", 0, "group id to fail over")
	_ = cmd.MarkFlagRequired("pgdata")
	return cmd
}

func newSwitchoverCmd() *cobra.Command {
	var pgdata, formation string
	var group int64
	cmd := &cobra.Command{
		Use:   "switchover",
		Short: "Plan a clean handover from the current primary to a standby",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := clientFor(pgdata)
			if err != nil {
				return exitcode.Wrap(exitcode.BadConfiguration, err)
			}
			if err := client.PerformSwitchover(ctx, formation, group); err != nil {
				return exitcode.Wrap(exitcode.MonitorError, err)
			}
			log.FromContext(ctx).Info("switchover requested", "formation", formation, "group", group)
			return nil
		},
	}
	cmd.Flags().StringVar(&pgdata, "pgdata", "", "data directory identifying which node's monitor to contact")
	cmd.Flags().StringVar(&formation, "formation", "default", "formation to switch over")
	cmd.Flags().Int64Var(&group, "group", 0, "group id to switch over")
	_ = cmd.MarkFlagRequired("pgdata")
	return cmd
}
