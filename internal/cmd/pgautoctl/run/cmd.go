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

// Package run implements "pg_autoctl run" (spec §6.4): it reads the node's
// persisted role (spec §6.1 pg_autoctl.role) and either serves the
// monitor's HTTP API and health scanner, or drives the keeper's per-tick
// FSM loop, exactly like the teacher's single binary dispatches between
// controller-manager and instance-manager behavior (SPEC_FULL §1).
package run

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/pg-auto-ha/pgautoctl/internal/cmd/pgautoctl/exitcode"
	"github.com/pg-auto-ha/pgautoctl/internal/cmd/pgautoctl/nodeenv"
	"github.com/pg-auto-ha/pgautoctl/internal/configfile"
	"github.com/pg-auto-ha/pgautoctl/internal/keeper"
	"github.com/pg-auto-ha/pgautoctl/internal/log"
	"github.com/pg-auto-ha/pgautoctl/internal/metrics"
	"github.com/pg-auto-ha/pgautoctl/internal/monitor"
	"github.com/pg-auto-ha/pgautoctl/internal/monitor/api"
)

// shutdownGrace bounds how long the monitor's HTTP server waits for
// in-flight requests to finish once a shutdown signal arrives.
const shutdownGrace = 10 * time.Second

// NewCmd creates the "run" command.
func NewCmd() *cobra.Command {
	var pgdata string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a configured monitor or keeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(cmd, pgdata)
		},
	}
	cmd.Flags().StringVar(&pgdata, "pgdata", "", "data directory of the node to run")
	_ = cmd.MarkFlagRequired("pgdata")
	return cmd
}

// shutdownContext returns a context cancelled on SIGTERM or SIGINT. Both
// signals are handled identically: the context is cancelled, which stops
// the monitor's HTTP server (draining for up to shutdownGrace) or the
// keeper's run loop. SIGINT has no separate fast-shutdown path, and no
// child process is signalled here.
func shutdownContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
}

func runNode(cmd *cobra.Command, pgdata string) error {
	ctx := cmd.Context()
	sections, _, err := nodeenv.Load(pgdata)
	if err != nil {
		return exitcode.Wrap(exitcode.BadConfiguration, err)
	}

	switch nodeenv.RoleOf(sections) {
	case nodeenv.RoleMonitor:
		return exitcode.Wrap(exitcode.MonitorError, runMonitor(ctx, pgdata, sections))
	default:
		return exitcode.Wrap(exitcode.GenericFailure, runKeeper(ctx, pgdata, sections))
	}
}

func runMonitor(parent context.Context, pgdata string, sections *configfile.Sections) error {
	ctx, cancel := shutdownContext(parent)
	defer cancel()
	logger := log.FromContext(ctx)

	instance := nodeenv.Instance(pgdata, sections)
	connStr := fmt.Sprintf("host=%s port=%d dbname=postgres user=pgautoctl sslmode=disable", instance.Socket, instance.Port)

	store, err := monitor.OpenPGStore(ctx, connStr)
	if err != nil {
		return fmt.Errorf("while opening monitor store: %w", err)
	}
	defer store.Close()

	o := monitor.NewOrchestrator(store, monitor.DefaultConfig())
	go o.RunHealthScanner(ctx)

	if scheduler, err := maintenanceSchedulerFromConfig(o, sections); err != nil {
		return fmt.Errorf("while configuring maintenance schedule: %w", err)
	} else if scheduler != nil {
		scheduler.Start()
		defer scheduler.Stop()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewMonitorCollector(monitorNodeLister{o}))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/api/v1/", api.NewServer(o))

	listenAddr := sections.GetDefault("pg_autoctl", "listen-address", ":8008")
	server := &http.Server{Addr: listenAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("monitor listening", "address", listenAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested, stopping monitor")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func runKeeper(parent context.Context, pgdata string, sections *configfile.Sections) error {
	ctx, cancel := shutdownContext(parent)
	defer cancel()
	logger := log.FromContext(ctx)

	cfg, err := nodeenv.KeeperConfig(pgdata, sections)
	if err != nil {
		return err
	}
	instance := nodeenv.Instance(pgdata, sections)

	monitorURL, err := nodeenv.MonitorURL(sections)
	if err != nil {
		return err
	}
	client := api.NewClient(monitorURL, nil)

	k, err := keeper.New(cfg, &instance, client)
	if err != nil {
		return fmt.Errorf("while constructing keeper: %w", err)
	}

	if err := keeper.WritePIDFile(cfg.PIDFilePath); err != nil {
		return fmt.Errorf("while writing pid file: %w", err)
	}
	defer func() {
		if err := keeper.RemovePIDFile(cfg.PIDFilePath); err != nil {
			logger.Error(err, "failed to remove pid file")
		}
	}()

	if _, err := os.Stat(cfg.StateFilePath); os.IsNotExist(err) {
		logger.Info("no existing state, registering with monitor")
		if err := k.Register(ctx); err != nil {
			return fmt.Errorf("while registering with monitor: %w", err)
		}
	}

	go func() {
		<-ctx.Done()
		k.RequestShutdown()
	}()

	if err := k.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// maintenanceSchedulerFromConfig builds a monitor.MaintenanceScheduler from
// the node's [maintenance] configuration section, when one is present
// (spec §6.1 config table extension: maintenance.schedule/node/duration).
// Returning a nil scheduler with no error is the common case of a monitor
// that has no standing maintenance calendar configured.
func maintenanceSchedulerFromConfig(o *monitor.Orchestrator, sections *configfile.Sections) (*monitor.MaintenanceScheduler, error) {
	schedule := sections.GetDefault("maintenance", "schedule", "")
	if schedule == "" {
		return nil, nil
	}

	nodeIDStr := sections.GetDefault("maintenance", "node", "")
	nodeID, err := strconv.ParseInt(nodeIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("maintenance.node must be a node id: %w", err)
	}

	durationStr := sections.GetDefault("maintenance", "duration", "1h")
	duration, err := time.ParseDuration(durationStr)
	if err != nil {
		return nil, fmt.Errorf("invalid maintenance.duration %q: %w", durationStr, err)
	}

	scheduler := monitor.NewMaintenanceScheduler(o)
	if err := scheduler.AddWindow(monitor.MaintenanceWindow{
		Formation: sections.GetDefault("pg_autoctl", "formation", "default"),
		NodeID:    nodeID,
		Schedule:  schedule,
		Duration:  duration,
	}); err != nil {
		return nil, err
	}
	return scheduler, nil
}

// monitorNodeLister adapts *monitor.Orchestrator to the metrics package's
// narrow nodeLister interface (internal/metrics never imports
// internal/monitor to avoid a dependency cycle once this server wires it
// in).
type monitorNodeLister struct {
	o *monitor.Orchestrator
}

func (l monitorNodeLister) ListAllNodes(ctx context.Context) ([]metrics.NodeView, error) {
	return l.o.ListAllNodes(ctx)
}
