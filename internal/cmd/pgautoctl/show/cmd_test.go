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

package show

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/pg-auto-ha/pgautoctl/internal/fsm"
	"github.com/pg-auto-ha/pgautoctl/internal/model"
	"github.com/pg-auto-ha/pgautoctl/internal/monitor/api"
)

func TestColorizeRole(t *testing.T) {
	for _, r := range []fsm.Role{fsm.Primary, fsm.Secondary, fsm.Dropped, fsm.DemoteTimeout, fsm.WaitPrimary} {
		got := fmt.Sprint(colorizeRole(r))
		if !strings.Contains(got, string(r)) {
			t.Errorf("colorizeRole(%v) = %q, want it to contain the role name", r, got)
		}
	}
}

func TestColorizeHealth(t *testing.T) {
	for _, h := range []model.HealthState{model.HealthGood, model.HealthBad, model.HealthUnknown} {
		got := fmt.Sprint(colorizeHealth(h))
		if !strings.Contains(got, string(h)) {
			t.Errorf("colorizeHealth(%v) = %q, want it to contain the health name", h, got)
		}
	}
}

func TestPrintNodesYAML(t *testing.T) {
	nodes := []api.NodeAddress{
		{NodeID: 1, GroupID: 0, Name: "node-a", Host: "10.0.0.1", Port: 5432, CurrentRole: fsm.Primary, AssignedRole: fsm.Primary, HealthState: model.HealthGood},
	}

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	orig := os.Stdout
	os.Stdout = w
	err = printNodesYAML(nodes)
	w.Close()
	os.Stdout = orig
	if err != nil {
		t.Fatalf("printNodesYAML: %v", err)
	}

	var buf strings.Builder
	if _, readErr := buf.ReadFrom(r); readErr != nil {
		t.Fatalf("reading captured stdout: %v", readErr)
	}
	out := buf.String()
	if !strings.Contains(out, "node-a") {
		t.Errorf("expected YAML output to contain the node name, got:\n%s", out)
	}
	if !strings.Contains(out, "nodes:") {
		t.Errorf("expected YAML output to have a nodes: key, got:\n%s", out)
	}
}
