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

// Package show implements the read-only "show state" and "show events"
// subcommands (spec §6.4 FULL additions), restored from
// original_source/src/bin/pg_autoctl/cli_*.c's equivalent reporting verbs
// and rendered with the teacher's own tabby/aurora pairing
// (internal/cmd/cnp/status in the retrieval pack).
package show

import (
	"fmt"
	"os"

	"github.com/cheynewallace/tabby"
	"github.com/logrusorgru/aurora/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pg-auto-ha/pgautoctl/internal/cmd/pgautoctl/exitcode"
	"github.com/pg-auto-ha/pgautoctl/internal/cmd/pgautoctl/nodeenv"
	"github.com/pg-auto-ha/pgautoctl/internal/fsm"
	"github.com/pg-auto-ha/pgautoctl/internal/model"
	"github.com/pg-auto-ha/pgautoctl/internal/monitor/api"
)

// NewCmd creates the "show" parent command.
func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display the state of a formation or its audit trail",
	}
	cmd.AddCommand(newStateCmd())
	cmd.AddCommand(newEventsCmd())
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

func newStateCmd() *cobra.Command {
	var pgdata, formation, format string
	var group int64
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Print the roles and health of every node in a group",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFor(pgdata)
			if err != nil {
				return exitcode.Wrap(exitcode.BadConfiguration, err)
			}
			resp, err := client.ListNodes(cmd.Context(), formation, group)
			if err != nil {
				return exitcode.Wrap(exitcode.MonitorError, err)
			}
			if format == "yaml" {
				return exitcode.Wrap(exitcode.GenericFailure, printNodesYAML(resp.Nodes))
			}
			printNodes(resp.Nodes)
			return nil
		},
	}
	cmd.Flags().StringVar(&pgdata, "pgdata", "", "data directory identifying which node's monitor to query")
	cmd.Flags().StringVar(&formation, "formation", "default", "formation to display")
	cmd.Flags().Int64Var(&group, "group", 0, "group id to display")
	cmd.Flags().StringVar(&format, "format", "table", "output format: table or yaml")
	_ = cmd.MarkFlagRequired("pgdata")
	return cmd
}

func printNodes(nodes []api.NodeAddress) {
	t := tabby.New()
	t.AddHeader("Name", "Host:Port", "Current Role", "Assigned Role", "LSN", "Health")
	for _, n := range nodes {
		t.AddLine(
			n.Name,
			fmt.Sprintf("%s:%d", n.Host, n.Port),
			colorizeRole(n.CurrentRole),
			colorizeRole(n.AssignedRole),
			n.ReportedLSN,
			colorizeHealth(n.HealthState),
		)
	}
	t.Print()
}

// printNodesYAML renders the same state as a YAML document, the
// machine-readable form an operator's backup/runbook tooling can parse
// instead of scraping the table output.
func printNodesYAML(nodes []api.NodeAddress) error {
	enc := yaml.NewEncoder(os.Stdout)
	defer enc.Close()
	return enc.Encode(struct {
		Nodes []api.NodeAddress `yaml:"nodes"`
	}{Nodes: nodes})
}

func colorizeRole(r fsm.Role) interface{} {
	switch r {
	case fsm.Primary, fsm.Secondary:
		return aurora.Green(r)
	case fsm.Dropped, fsm.DemoteTimeout:
		return aurora.Red(r)
	default:
		return aurora.Yellow(r)
	}
}

func colorizeHealth(h model.HealthState) interface{} {
	switch h {
	case model.HealthGood:
		return aurora.Green(h)
	case model.HealthBad:
		return aurora.Red(h)
	default:
		return aurora.Yellow(h)
	}
}

func newEventsCmd() *cobra.Command {
	var pgdata, formation string
	var limit int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail the monitor's assignment audit trail",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFor(pgdata)
			if err != nil {
				return exitcode.Wrap(exitcode.BadConfiguration, err)
			}
			events, err := client.ListEvents(cmd.Context(), formation, limit)
			if err != nil {
				return exitcode.Wrap(exitcode.MonitorError, err)
			}
			t := tabby.New()
			t.AddHeader("Time", "Group", "Node", "Event")
			for _, e := range events {
				t.AddLine(e.CreatedAt.Format("2006-01-02 15:04:05"), e.GroupID, e.NodeID, e.Message)
			}
			t.Print()
			return nil
		},
	}
	cmd.Flags().StringVar(&pgdata, "pgdata", "", "data directory identifying which node's monitor to query")
	cmd.Flags().StringVar(&formation, "formation", "default", "formation to display")
	cmd.Flags().IntVar(&limit, "count", 20, "number of most recent events to show")
	_ = cmd.MarkFlagRequired("pgdata")
	return cmd
}
