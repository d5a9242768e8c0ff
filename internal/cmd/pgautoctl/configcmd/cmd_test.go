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

package configcmd

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/spf13/cobra"

	"github.com/pg-auto-ha/pgautoctl/internal/configfile"
	"github.com/pg-auto-ha/pgautoctl/internal/monitor"
	"github.com/pg-auto-ha/pgautoctl/internal/monitor/api"
)

func TestPushGroupSettings(t *testing.T) {
	orch := monitor.NewOrchestrator(monitor.NewMemStore(), monitor.DefaultConfig())
	srv := httptest.NewServer(api.NewServer(orch))
	defer srv.Close()

	cmd := &cobra.Command{Use: "test"}
	cmd.SetContext(context.Background())

	t.Run("pushes a valid integer to the monitor", func(t *testing.T) {
		sections := configfile.NewSections()
		sections.Set("pg_autoctl", "monitor", srv.URL)
		sections.Set("pg_autoctl", "formation", "default")

		for _, name := range []string{"a", "b", "c"} {
			req := monitor.RegisterRequest{Formation: "default", Host: name, Port: 5432, Name: name}
			if _, err := orch.Register(context.Background(), req); err != nil {
				t.Fatalf("Register(%s): %v", name, err)
			}
		}

		if err := pushGroupSettings(cmd, sections, "2"); err != nil {
			t.Fatalf("pushGroupSettings: %v", err)
		}
	})

	t.Run("rejects a non-integer value", func(t *testing.T) {
		sections := configfile.NewSections()
		sections.Set("pg_autoctl", "monitor", srv.URL)

		if err := pushGroupSettings(cmd, sections, "not-a-number"); err == nil {
			t.Fatal("expected an error for a non-integer value")
		}
	})

	t.Run("requires a configured monitor", func(t *testing.T) {
		sections := configfile.NewSections()

		if err := pushGroupSettings(cmd, sections, "2"); err == nil {
			t.Fatal("expected an error when no monitor is configured")
		}
	})
}
