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

	"github.com/pg-auto-ha/pgautoctl/internal/metrics"
	"github.com/pg-auto-ha/pgautoctl/internal/model"
)

// ListAllNodes adapts the Orchestrator's store to metrics.NodeView, the
// narrow shape the Prometheus collector needs, so internal/metrics never
// has to import internal/model.
func (o *Orchestrator) ListAllNodes(ctx context.Context) ([]metrics.NodeView, error) {
	nodes, err := o.Store.ListAllNodes(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]metrics.NodeView, 0, len(nodes))
	now := time.Now()
	for _, n := range nodes {
		lsn, _ := n.ReportedLSN.Parse()
		views = append(views, metrics.NodeView{
			Formation:        n.Formation,
			GroupID:          n.GroupID,
			NodeID:           n.NodeID,
			Name:             n.Name,
			CurrentRole:      n.CurrentRole,
			ReportedLSNBytes: float64(lsn),
			HealthGood:       n.HealthState == model.HealthGood,
			SecondsSinceSeen: now.Sub(n.LastSeenAt).Seconds(),
		})
	}
	return views, nil
}
