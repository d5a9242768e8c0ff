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

// Package nodelookup resolves the --name flag the operator-facing
// commands (drop node, enable/disable maintenance) take into the
// monitor's internal nodeId, since the wire protocol (spec §4.1) only
// addresses nodes by id.
package nodelookup

import (
	"context"
	"fmt"

	"github.com/pg-auto-ha/pgautoctl/internal/monitor/api"
)

// ByName finds the node named name within formation/group and returns its
// id, the shape every id-addressed RPC (remove_node, maintenance) needs.
func ByName(ctx context.Context, client *api.Client, formation string, group int64, name string) (int64, error) {
	resp, err := client.ListNodes(ctx, formation, group)
	if err != nil {
		return 0, fmt.Errorf("while listing nodes: %w", err)
	}
	for _, n := range resp.Nodes {
		if n.Name == name {
			return n.NodeID, nil
		}
	}
	return 0, fmt.Errorf("no node named %q in formation %q group %d", name, formation, group)
}
