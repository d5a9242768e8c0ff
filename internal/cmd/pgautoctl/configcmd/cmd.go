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

// Package configcmd implements "config get" and "config set" (spec §6.4):
// config get reads a node's persisted configuration file directly; config
// set writes to it, and for the one policy field the monitor itself
// owns (number-sync-standbys), also pushes the change through the
// set_group_settings RPC (spec §4.1 table) so every node's view of the
// policy stays consistent.
package configcmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pg-auto-ha/pgautoctl/internal/cmd/pgautoctl/exitcode"
	"github.com/pg-auto-ha/pgautoctl/internal/cmd/pgautoctl/nodeenv"
	"github.com/pg-auto-ha/pgautoctl/internal/monitor/api"
)

// NewCmd creates the "config" parent command, grouping "get" and "set"
// under it as "config get" and "config set".
func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Get or set a node's persisted configuration",
	}
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newSetCmd())
	return cmd
}

func newGetCmd() *cobra.Command {
	var pgdata, section, key string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the value of a configuration key",
		RunE: func(cmd *cobra.Command, args []string) error {
			sections, _, err := nodeenv.Load(pgdata)
			if err != nil {
				return exitcode.Wrap(exitcode.BadConfiguration, err)
			}
			value, ok := sections.Get(section, key)
			if !ok {
				return exitcode.Wrap(exitcode.BadArguments, fmt.Errorf("%s.%s is not set", section, key))
			}
			fmt.Println(value)
			return nil
		},
	}
	cmd.Flags().StringVar(&pgdata, "pgdata", "", "data directory of the node")
	cmd.Flags().StringVar(&section, "section", "pg_autoctl", "configuration section")
	cmd.Flags().StringVar(&key, "key", "", "configuration key, e.g. formation, monitor, hostname")
	_ = cmd.MarkFlagRequired("pgdata")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func newSetCmd() *cobra.Command {
	var pgdata, section, key, value string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set a configuration key",
		RunE: func(cmd *cobra.Command, args []string) error {
			sections, _, err := nodeenv.Load(pgdata)
			if err != nil {
				return exitcode.Wrap(exitcode.BadConfiguration, err)
			}
			sections.Set(section, key, value)
			if err := nodeenv.Save(pgdata, sections); err != nil {
				return exitcode.Wrap(exitcode.BadConfiguration, err)
			}

			if section == "pg_autoctl" && key == "number-sync-standbys" {
				return pushGroupSettings(cmd, sections, value)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pgdata, "pgdata", "", "data directory of the node")
	cmd.Flags().StringVar(&section, "section", "pg_autoctl", "configuration section")
	cmd.Flags().StringVar(&key, "key", "", "configuration key")
	cmd.Flags().StringVar(&value, "value", "", "new value")
	_ = cmd.MarkFlagRequired("pgdata")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func pushGroupSettings(cmd *cobra.Command, sections interface {
	GetDefault(section, key, def string) string
}, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return exitcode.Wrap(exitcode.BadArguments, fmt.Errorf("number-sync-standbys must be an integer: %w", err))
	}
	url := sections.GetDefault("pg_autoctl", "monitor", "")
	if url == "" {
		return exitcode.Wrap(exitcode.BadConfiguration, fmt.Errorf("no monitor configured for this node"))
	}
	formation := sections.GetDefault("pg_autoctl", "formation", "default")

	client := api.NewClient(url, nil)
	if err := client.SetGroupSettings(cmd.Context(), formation, n); err != nil {
		return exitcode.Wrap(exitcode.MonitorError, err)
	}
	return nil
}
