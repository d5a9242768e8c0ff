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

package nodelookup

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/pg-auto-ha/pgautoctl/internal/monitor"
	"github.com/pg-auto-ha/pgautoctl/internal/monitor/api"
)

func TestByName(t *testing.T) {
	orch := monitor.NewOrchestrator(monitor.NewMemStore(), monitor.DefaultConfig())
	srv := httptest.NewServer(api.NewServer(orch))
	defer srv.Close()
	client := api.NewClient(srv.URL, srv.Client())
	ctx := context.Background()

	reg, err := client.Register(ctx, api.RegisterRequest{Formation: "default", Host: "a", Port: 5432, Name: "node-a"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	t.Run("finds a registered node by name", func(t *testing.T) {
		id, err := ByName(ctx, client, "default", reg.GroupID, "node-a")
		if err != nil {
			t.Fatalf("ByName: %v", err)
		}
		if id != reg.NodeID {
			t.Errorf("got node id %d, want %d", id, reg.NodeID)
		}
	})

	t.Run("errors on an unknown name", func(t *testing.T) {
		_, err := ByName(ctx, client, "default", reg.GroupID, "node-missing")
		if err == nil {
			t.Fatal("expected an error for an unknown node name")
		}
	})
}
