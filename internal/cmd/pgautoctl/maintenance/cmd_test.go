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

package maintenance

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/pg-auto-ha/pgautoctl/internal/cmd/pgautoctl/nodeenv"
	"github.com/pg-auto-ha/pgautoctl/internal/fsm"
	"github.com/pg-auto-ha/pgautoctl/internal/monitor"
	"github.com/pg-auto-ha/pgautoctl/internal/monitor/api"
)

func withNodeConfig(t *testing.T, pgdata, monitorURL string) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	sections, _, err := nodeenv.Load(pgdata)
	if err != nil {
		t.Fatalf("nodeenv.Load: %v", err)
	}
	sections.Set("pg_autoctl", "monitor", monitorURL)
	if err := nodeenv.Save(pgdata, sections); err != nil {
		t.Fatalf("nodeenv.Save: %v", err)
	}
}

func TestEnableThenDisableMaintenance(t *testing.T) {
	ctx := context.Background()
	orch := monitor.NewOrchestrator(monitor.NewMemStore(), monitor.DefaultConfig())
	srv := httptest.NewServer(api.NewServer(orch))
	defer srv.Close()

	node, err := orch.Register(ctx, monitor.RegisterRequest{Formation: "default", Host: "a", Port: 5432, Name: "node-a"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	// enable/disable maintenance gate on the node's reported CurrentRole,
	// which only a keeper heartbeat would normally advance; fast-forward
	// it here the way internal/monitor's own schedule_test.go does.
	n, err := orch.Store.GetNode(ctx, node.NodeID)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	n.CurrentRole = fsm.Secondary
	if err := orch.Store.SaveNode(ctx, n); err != nil {
		t.Fatalf("SaveNode: %v", err)
	}

	pgdata := filepath.Join(t.TempDir(), "pgdata")
	withNodeConfig(t, pgdata, srv.URL)

	enableCmd := NewEnableCmd()
	enableCmd.SetArgs([]string{"maintenance", "--pgdata", pgdata, "--name", "node-a"})
	if err := enableCmd.Execute(); err != nil {
		t.Fatalf("enable maintenance: %v", err)
	}

	got, err := orch.Store.GetNode(ctx, node.NodeID)
	if err != nil {
		t.Fatalf("GetNode after enable: %v", err)
	}
	if got.AssignedRole != fsm.Maintenance {
		t.Fatalf("assignedRole = %s, want %s", got.AssignedRole, fsm.Maintenance)
	}

	// Simulate the keeper's heartbeat reporting it has entered maintenance.
	got.CurrentRole = fsm.Maintenance
	if err := orch.Store.SaveNode(ctx, got); err != nil {
		t.Fatalf("SaveNode: %v", err)
	}

	disableCmd := NewDisableCmd()
	disableCmd.SetArgs([]string{"maintenance", "--pgdata", pgdata, "--name", "node-a"})
	if err := disableCmd.Execute(); err != nil {
		t.Fatalf("disable maintenance: %v", err)
	}

	final, err := orch.Store.GetNode(ctx, node.NodeID)
	if err != nil {
		t.Fatalf("GetNode after disable: %v", err)
	}
	if final.AssignedRole != fsm.CatchingUp {
		t.Fatalf("assignedRole = %s, want %s", final.AssignedRole, fsm.CatchingUp)
	}
}

func TestEnableMaintenanceUnknownNode(t *testing.T) {
	orch := monitor.NewOrchestrator(monitor.NewMemStore(), monitor.DefaultConfig())
	srv := httptest.NewServer(api.NewServer(orch))
	defer srv.Close()

	pgdata := filepath.Join(t.TempDir(), "pgdata")
	withNodeConfig(t, pgdata, srv.URL)

	cmd := NewEnableCmd()
	cmd.SetArgs([]string{"maintenance", "--pgdata", pgdata, "--name", "does-not-exist"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error for an unknown node name")
	}
}
