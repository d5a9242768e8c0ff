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

// Package pgautoctl assembles the pgautoctl CLI surface (spec §6.4): the
// monitor and the keeper are both driven from this single binary, exactly
// as the teacher's cmd/manager dispatches controller-manager vs.
// instance-manager behavior from one executable based on the subcommand
// invoked, here keyed off pg_autoctl.role (SPEC_FULL §1) instead of a pod
// annotation.
package pgautoctl

import (
	"github.com/spf13/cobra"

	"github.com/pg-auto-ha/pgautoctl/internal/cmd/pgautoctl/configcmd"
	"github.com/pg-auto-ha/pgautoctl/internal/cmd/pgautoctl/create"
	"github.com/pg-auto-ha/pgautoctl/internal/cmd/pgautoctl/drop"
	"github.com/pg-auto-ha/pgautoctl/internal/cmd/pgautoctl/maintenance"
	"github.com/pg-auto-ha/pgautoctl/internal/cmd/pgautoctl/perform"
	"github.com/pg-auto-ha/pgautoctl/internal/cmd/pgautoctl/run"
	"github.com/pg-auto-ha/pgautoctl/internal/cmd/pgautoctl/show"
	"github.com/pg-auto-ha/pgautoctl/internal/cmd/pgautoctl/versioncmd"
	"github.com/pg-auto-ha/pgautoctl/internal/log"
)

// Flags holds the logging configuration shared by every subcommand,
// mirroring the teacher's manager.Flags: a PersistentPreRun installs the
// logger once flags are parsed, before any subcommand's RunE observes it.
type Flags struct {
	debug bool
}

// AddFlags binds the persistent logging flags to the root command.
func (f *Flags) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVar(&f.debug, "debug", false, "enable verbose, human-readable logging")
}

// ConfigureLogging installs the process-wide logger honoring --debug.
func (f *Flags) ConfigureLogging() {
	log.SetGlobal(log.NewZapLogger(f.debug))
}

// NewRootCmd builds the top-level "pg_autoctl" command and wires in every
// subcommand named by spec §6.4 and its SPEC_FULL supplements.
func NewRootCmd() *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:          "pg_autoctl",
		Short:        "Postgres high-availability monitor and keeper",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			flags.ConfigureLogging()
		},
	}
	flags.AddFlags(cmd)

	cmd.AddCommand(create.NewCmd())
	cmd.AddCommand(run.NewCmd())
	cmd.AddCommand(show.NewCmd())
	cmd.AddCommand(configcmd.NewCmd())
	cmd.AddCommand(drop.NewCmd())
	cmd.AddCommand(maintenance.NewEnableCmd())
	cmd.AddCommand(maintenance.NewDisableCmd())
	cmd.AddCommand(perform.NewCmd())
	cmd.AddCommand(versioncmd.NewCmd())

	return cmd
}
