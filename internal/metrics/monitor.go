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

// Package metrics exposes the monitor's view of every node as Prometheus
// metrics (there is no keeper-side collector), following the exporter-with-a-Metrics-struct shape
// this codebase's lineage uses for its own postgres exporter.
package metrics

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pg-auto-ha/pgautoctl/internal/fsm"
)

// nodeLister is the slice of the monitor Store that the collector needs;
// kept narrow so this package never imports the monitor package (which
// would create an import cycle once the monitor wires this collector in).
type nodeLister interface {
	ListAllNodes(ctx context.Context) ([]NodeView, error)
}

// NodeView is the subset of monitor/model.Node the collector reports on.
type NodeView struct {
	Formation        string
	GroupID          int64
	NodeID           int64
	Name             string
	CurrentRole      fsm.Role
	ReportedLSNBytes float64
	HealthGood       bool
	SecondsSinceSeen float64
}

// MonitorCollector is a prometheus.Collector reporting one gauge per node
// for its current role (as a 0/1 indicator per role value), its reported
// LSN in bytes, its health, and the age of its last heartbeat. It pulls
// fresh data from the store on every scrape rather than caching, since the
// monitor already holds this state durably and scrapes are infrequent
// relative to heartbeats.
type MonitorCollector struct {
	nodes nodeLister

	role       *prometheus.Desc
	lsnBytes   *prometheus.Desc
	healthy    *prometheus.Desc
	lastSeenAge *prometheus.Desc
}

// NewMonitorCollector builds a MonitorCollector over the given node source.
func NewMonitorCollector(nodes nodeLister) *MonitorCollector {
	labels := []string{"formation", "group_id", "node_id", "name"}
	return &MonitorCollector{
		nodes: nodes,
		role: prometheus.NewDesc(
			"pgautoctl_node_current_role",
			"Current FSM role of the node, one time series per (node, role) pair, 1 for the active role.",
			append(labels, "role"), nil,
		),
		lsnBytes: prometheus.NewDesc(
			"pgautoctl_node_reported_lsn_bytes",
			"Most recently reported WAL LSN for the node, as a byte offset.",
			labels, nil,
		),
		healthy: prometheus.NewDesc(
			"pgautoctl_node_healthy",
			"1 if the monitor considers the node healthy, 0 otherwise.",
			labels, nil,
		),
		lastSeenAge: prometheus.NewDesc(
			"pgautoctl_node_last_seen_age_seconds",
			"Seconds since the monitor last received a heartbeat from the node.",
			labels, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *MonitorCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.role
	ch <- c.lsnBytes
	ch <- c.healthy
	ch <- c.lastSeenAge
}

// Collect implements prometheus.Collector.
func (c *MonitorCollector) Collect(ch chan<- prometheus.Metric) {
	nodes, err := c.nodes.ListAllNodes(context.Background())
	if err != nil {
		return
	}

	for _, n := range nodes {
		labels := []string{n.Formation, strconv.FormatInt(n.GroupID, 10), strconv.FormatInt(n.NodeID, 10), n.Name}

		for _, r := range fsm.All {
			value := 0.0
			if r == n.CurrentRole {
				value = 1.0
			}
			ch <- prometheus.MustNewConstMetric(c.role, prometheus.GaugeValue, value,
				append(append([]string{}, labels...), string(r))...)
		}

		ch <- prometheus.MustNewConstMetric(c.lsnBytes, prometheus.GaugeValue, n.ReportedLSNBytes, labels...)

		healthValue := 0.0
		if n.HealthGood {
			healthValue = 1.0
		}
		ch <- prometheus.MustNewConstMetric(c.healthy, prometheus.GaugeValue, healthValue, labels...)
		ch <- prometheus.MustNewConstMetric(c.lastSeenAge, prometheus.GaugeValue, n.SecondsSinceSeen, labels...)
	}
}

