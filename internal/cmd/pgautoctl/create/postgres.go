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

package create

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pg-auto-ha/pgautoctl/internal/cmd/pgautoctl/exitcode"
	"github.com/pg-auto-ha/pgautoctl/internal/cmd/pgautoctl/nodeenv"
	"github.com/pg-auto-ha/pgautoctl/internal/log"
)

type postgresOptions struct {
	pgdata    string
	monitor   string
	formation string
	group     int64
	hasGroup  bool
	name      string
	hostname  string
	pgport    int
	nodeKind  string
	sslSelfSigned bool
}

// newPostgresCmd creates the "create postgres" command (spec §6.4, using
// the later-style flag names per spec §9's Open Question resolution:
// --hostname, --name, --monitor rather than the older --nodename /
// --allow-removing-pgdata). It only persists the node's configuration
// file; the actual local bootstrap (initdb or base-backup, depending on
// whether this is the group's first node) happens on the first
// `pg_autoctl run` tick once the monitor has handed back an assignedRole
// (spec §3 "Lifecycle").
func newPostgresCmd() *cobra.Command {
	opts := &postgresOptions{}
	cmd := &cobra.Command{
		Use:   "postgres",
		Short: "Initialize a Postgres node managed by a pg_autoctl keeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreatePostgres(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.pgdata, "pgdata", "", "data directory for this node")
	flags.StringVar(&opts.monitor, "monitor", "", "connection string of the monitor's HTTP API")
	flags.StringVar(&opts.formation, "formation", "default", "formation this node joins")
	flags.Int64Var(&opts.group, "group", 0, "group id within the formation")
	flags.StringVar(&opts.name, "name", "", "name other nodes and the monitor use for this node")
	flags.StringVar(&opts.hostname, "hostname", "localhost", "hostname other nodes use to reach this node")
	flags.IntVar(&opts.pgport, "pgport", 5432, "port this node's Postgres instance listens on")
	flags.StringVar(&opts.nodeKind, "nodekind", "standalone", "standalone or a sharded variant")
	flags.BoolVar(&opts.sslSelfSigned, "ssl-self-signed", false, "generate a self-signed TLS certificate for this node")
	_ = cmd.MarkFlagRequired("pgdata")
	_ = cmd.MarkFlagRequired("monitor")
	_ = cmd.MarkFlagRequired("name")

	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		opts.hasGroup = cmd.Flags().Changed("group")
	}

	return cmd
}

func runCreatePostgres(cmd *cobra.Command, opts *postgresOptions) error {
	logger := log.FromContext(cmd.Context())

	sections, _, err := nodeenv.Load(opts.pgdata)
	if err != nil {
		return exitcode.Wrap(exitcode.BadConfiguration, err)
	}

	sections.Set("pg_autoctl", "role", string(nodeenv.RoleKeeper))
	sections.Set("pg_autoctl", "monitor", opts.monitor)
	sections.Set("pg_autoctl", "formation", opts.formation)
	if opts.hasGroup {
		sections.Set("pg_autoctl", "group", fmt.Sprintf("%d", opts.group))
	}
	sections.Set("pg_autoctl", "name", opts.name)
	sections.Set("pg_autoctl", "hostname", opts.hostname)
	sections.Set("pg_autoctl", "pgport", fmt.Sprintf("%d", opts.pgport))
	sections.Set("pg_autoctl", "pgdata", opts.pgdata)
	sections.Set("pg_autoctl", "nodekind", opts.nodeKind)
	sections.Set("replication", "slot", fmt.Sprintf("pgautoctl_%s", opts.name))
	if opts.sslSelfSigned {
		sections.Set("ssl", "self-signed", "true")
	}

	if err := nodeenv.Save(opts.pgdata, sections); err != nil {
		return exitcode.Wrap(exitcode.BadConfiguration, err)
	}

	logger.Info("postgres node created", "pgdata", opts.pgdata, "monitor", opts.monitor, "name", opts.name)
	return nil
}
