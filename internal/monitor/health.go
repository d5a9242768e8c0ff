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

package monitor

import (
	"context"
	"time"

	"github.com/pg-auto-ha/pgautoctl/internal/log"
	"github.com/pg-auto-ha/pgautoctl/internal/model"
)

// RunHealthScanner runs the periodic liveness scan (spec §4.1 "Liveness",
// §5 "per-node deadlines") until ctx is cancelled. It is independent from
// NodeActive's per-heartbeat bookkeeping: a node becomes unhealthy once it
// has missed HealthCheckMaxRetries consecutive heartbeats *and* its last
// successful contact is older than FailoverTimeout — missing a health
// probe alone never triggers failover (spec §5).
func (o *Orchestrator) RunHealthScanner(ctx context.Context) {
	logger := log.FromContext(ctx)
	ticker := time.NewTicker(o.Config.HealthCheckPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.scanOnce(ctx); err != nil {
				logger.Error(err, "health scan failed")
			}
		}
	}
}

func (o *Orchestrator) scanOnce(ctx context.Context) error {
	nodes, err := o.Store.ListAllNodes(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, n := range nodes {
		if n.CurrentRole.IsTerminal() {
			continue
		}

		stale := !n.IsFresh(now, o.Config.FailoverTimeout)
		next := n
		if stale {
			next.MissedHeartbeats++
		}

		switch {
		case stale && next.MissedHeartbeats >= o.Config.HealthCheckMaxRetries:
			next.HealthState = model.HealthBad
		case stale:
			next.HealthState = model.HealthUnknown
		default:
			next.HealthState = model.HealthGood
		}

		if next.HealthState == n.HealthState && next.MissedHeartbeats == n.MissedHeartbeats {
			continue
		}
		if err := o.Store.SaveNode(ctx, next); err != nil {
			return err
		}
	}
	return nil
}
