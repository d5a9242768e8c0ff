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
	"github.com/pg-auto-ha/pgautoctl/internal/pg"
)

type monitorOptions struct {
	pgdata       string
	hostname     string
	pgport       int
	listenAddr   string
	sslSelfSigned bool
}

// newMonitorCmd creates the "create monitor" command: it bootstraps the
// monitor's own local Postgres instance (its durable relational store,
// spec §2) and persists a role=monitor configuration file so a later
// `pg_autoctl run` knows to serve the orchestrator's HTTP API instead of
// running a keeper loop.
func newMonitorCmd() *cobra.Command {
	opts := &monitorOptions{}
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Initialize a pg_auto_ctl monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreateMonitor(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.pgdata, "pgdata", "", "data directory for the monitor's own Postgres instance")
	flags.StringVar(&opts.hostname, "hostname", "localhost", "hostname other nodes use to reach this monitor")
	flags.IntVar(&opts.pgport, "pgport", 5432, "port for the monitor's own Postgres instance")
	flags.StringVar(&opts.listenAddr, "listen", ":8008", "address the monitor's HTTP API listens on")
	flags.BoolVar(&opts.sslSelfSigned, "ssl-self-signed", false, "generate a self-signed TLS certificate for this node")
	_ = cmd.MarkFlagRequired("pgdata")

	return cmd
}

func runCreateMonitor(cmd *cobra.Command, opts *monitorOptions) error {
	ctx := cmd.Context()
	logger := log.FromContext(ctx)

	initInfo := pg.InitInfo{
		PgData:   opts.pgdata,
		Username: "pgautoctl",
		Encoding: "UTF8",
	}
	if err := initInfo.EnsureParentDirectoriesExist(); err != nil {
		return exitcode.Wrap(exitcode.BadConfiguration, err)
	}
	if err := initInfo.EnsureTargetDirectoriesDoNotExist(ctx); err != nil {
		return exitcode.Wrap(exitcode.AdminToolError, err)
	}
	if err := initInfo.Run(ctx); err != nil {
		return exitcode.Wrap(exitcode.AdminToolError, fmt.Errorf("while running initdb for the monitor: %w", err))
	}

	instance := pg.Instance{PgData: opts.pgdata, Host: opts.hostname, Port: opts.pgport, Socket: pg.GetSocketDir()}
	if err := instance.Start(ctx); err != nil {
		return exitcode.Wrap(exitcode.AdminToolError, fmt.Errorf("while starting the monitor's Postgres instance: %w", err))
	}

	sections, _, err := nodeenv.Load(opts.pgdata)
	if err != nil {
		return exitcode.Wrap(exitcode.BadConfiguration, err)
	}
	sections.Set("pg_autoctl", "role", string(nodeenv.RoleMonitor))
	sections.Set("pg_autoctl", "hostname", opts.hostname)
	sections.Set("pg_autoctl", "pgport", fmt.Sprintf("%d", opts.pgport))
	sections.Set("pg_autoctl", "pgdata", opts.pgdata)
	sections.Set("pg_autoctl", "listen-address", opts.listenAddr)
	if opts.sslSelfSigned {
		sections.Set("ssl", "self-signed", "true")
	}

	if err := nodeenv.Save(opts.pgdata, sections); err != nil {
		return exitcode.Wrap(exitcode.BadConfiguration, err)
	}

	logger.Info("monitor created", "pgdata", opts.pgdata, "listen", opts.listenAddr)
	return nil
}
