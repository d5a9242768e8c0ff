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

package keeper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pg-auto-ha/pgautoctl/internal/concurrency"
	"github.com/pg-auto-ha/pgautoctl/internal/fsm"
	"github.com/pg-auto-ha/pgautoctl/internal/log"
	"github.com/pg-auto-ha/pgautoctl/internal/model"
	"github.com/pg-auto-ha/pgautoctl/internal/monitor/api"
	"github.com/pg-auto-ha/pgautoctl/internal/pg"
	"github.com/pg-auto-ha/pgautoctl/internal/retrypolicy"
)

// Config holds the per-node configuration a Keeper needs: where the
// monitor is, this node's own identity hints, and the Postgres connection
// details its Instance wraps.
type Config struct {
	StateFilePath string
	PIDFilePath   string

	Formation string
	GroupID   *int64
	NodeName  string
	Host      string
	Port      int

	ReplicationUser         string
	ReplicationPassword     string
	ReplicationPasswordFile string

	SSLSelfSigned bool
	PKIDir        string

	SleepTime time.Duration
}

// Keeper is the per-data-node agent: it owns the local Instance, the
// monitor API client, and the persisted State, and drives Postgres through
// whatever transition the monitor assigns on each tick (spec §4.3, §5 —
// "a main ticking loop ... single-threaded with respect to the FSM").
type Keeper struct {
	cfg      Config
	instance *pg.Instance
	monitor  *api.Client
	state    State

	shuttingDown *concurrency.Flag
}

// New builds a Keeper. It loads existing on-disk state if present;
// callers that have never registered should call Register first.
func New(cfg Config, instance *pg.Instance, monitorClient *api.Client) (*Keeper, error) {
	k := &Keeper{
		cfg:          cfg,
		instance:     instance,
		monitor:      monitorClient,
		shuttingDown: &concurrency.Flag{},
	}

	s, err := LoadState(cfg.StateFilePath)
	if err != nil {
		return k, nil //nolint:nilerr // absent state file is the expected first-run case
	}
	k.state = s
	return k, nil
}

// RequestShutdown marks the keeper for a clean exit at the next tick
// boundary, the sticky-flag convention spec §5/§9 describe for signal
// handlers.
func (k *Keeper) RequestShutdown() {
	k.shuttingDown.Set()
}

// Register calls the monitor's register endpoint and persists the
// returned identity, the first step of a brand-new node's lifecycle
// (spec §3 "Lifecycle").
func (k *Keeper) Register(ctx context.Context) error {
	resp, err := k.monitor.Register(ctx, api.RegisterRequest{
		Formation: k.cfg.Formation,
		GroupID:   k.cfg.GroupID,
		Host:      k.cfg.Host,
		Port:      k.cfg.Port,
		Name:      k.cfg.NodeName,
		NodeKind:  string(model.FormationStandalone),
		RequestID: uuid.NewString(),
	})
	if err != nil {
		return fmt.Errorf("while registering with monitor: %w", err)
	}

	k.state = State{
		NodeID:       resp.NodeID,
		GroupID:      resp.GroupID,
		Formation:    k.cfg.Formation,
		CurrentRole:  fsm.Init,
		AssignedRole: resp.AssignedRole,
		PgData:       k.instance.PgData,
	}
	if err := SaveState(k.cfg.StateFilePath, k.state); err != nil {
		return fmt.Errorf("while persisting state after register: %w", err)
	}
	return WriteInitSentinel(k.cfg.StateFilePath)
}

// Run is the keeper's main loop: on every tick it reports currentRole to
// the monitor, executes whatever transition the response requires, and
// sleeps. It exits cleanly as soon as a shutdown has been requested and
// the in-flight tick has completed (spec §5 "the main loop polls it").
func (k *Keeper) Run(ctx context.Context) error {
	logger := log.FromContext(ctx)
	ticker := time.NewTicker(k.cfg.SleepTime)
	defer ticker.Stop()

	for {
		if k.shuttingDown.IsSet() {
			logger.Info("shutdown requested, exiting keeper loop")
			return nil
		}

		if err := k.tick(ctx); err != nil {
			logger.Error(err, "tick failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// tick reports the node's current state, applies the assignment the
// monitor returns if it differs from currentRole, and persists the
// result (spec §5: "execute the returned transition if it differs from
// currentRole").
func (k *Keeper) tick(ctx context.Context) error {
	lsn := pg.LSN("")
	pgIsRunning := k.instance.IsRunning(ctx)
	if pgIsRunning {
		if status, err := k.instance.CollectStatus(ctx); err == nil {
			lsn = status.CurrentLSN
		}
	}

	policy := retrypolicy.Interactive
	resp, err := retryResult(ctx, policy, func(ctx context.Context) (api.HeartbeatResponse, error) {
		return k.monitor.NodeActive(ctx, k.state.NodeID, api.HeartbeatRequest{
			GroupID:     k.state.GroupID,
			CurrentRole: k.state.CurrentRole,
			PgIsRunning: pgIsRunning,
			CurrentLSN:  string(lsn),
		})
	})
	if err != nil {
		return fmt.Errorf("while reporting to monitor: %w", err)
	}

	if resp.AssignedRole == k.state.CurrentRole {
		return nil
	}

	if _, legal := fsm.Lookup(k.state.CurrentRole, resp.AssignedRole); !legal {
		return fmt.Errorf("monitor assigned illegal transition %s -> %s", k.state.CurrentRole, resp.AssignedRole)
	}

	k.state.AssignedRole = resp.AssignedRole
	if err := k.executeTransition(ctx, k.state.CurrentRole, resp.AssignedRole, resp); err != nil {
		return fmt.Errorf("while executing transition %s -> %s: %w", k.state.CurrentRole, resp.AssignedRole, err)
	}

	k.state.CurrentRole = resp.AssignedRole
	if k.state.CurrentRole == fsm.Single || k.state.CurrentRole == fsm.Secondary {
		if err := RemoveInitSentinel(k.cfg.StateFilePath); err != nil {
			log.FromContext(ctx).Error(err, "failed to remove init sentinel")
		}
	}
	return SaveState(k.cfg.StateFilePath, k.state)
}

func retryResult[T any](ctx context.Context, policy retrypolicy.Policy, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := policy.Do(ctx, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = fn(ctx)
		return innerErr
	})
	return result, err
}
