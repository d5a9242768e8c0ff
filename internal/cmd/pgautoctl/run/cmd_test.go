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

package run

import (
	"testing"

	"github.com/pg-auto-ha/pgautoctl/internal/configfile"
	"github.com/pg-auto-ha/pgautoctl/internal/monitor"
)

func TestMaintenanceSchedulerFromConfig(t *testing.T) {
	o := monitor.NewOrchestrator(monitor.NewMemStore(), monitor.DefaultConfig())

	t.Run("returns nil without a maintenance section", func(t *testing.T) {
		sections := configfile.NewSections()
		scheduler, err := maintenanceSchedulerFromConfig(o, sections)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if scheduler != nil {
			t.Fatal("expected a nil scheduler when no [maintenance] section is configured")
		}
	})

	t.Run("builds a scheduler from a configured window", func(t *testing.T) {
		sections := configfile.NewSections()
		sections.Set("maintenance", "schedule", "0 2 * * 0")
		sections.Set("maintenance", "node", "1")
		sections.Set("maintenance", "duration", "30m")

		scheduler, err := maintenanceSchedulerFromConfig(o, sections)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if scheduler == nil {
			t.Fatal("expected a non-nil scheduler when [maintenance] is configured")
		}
	})

	t.Run("rejects a non-numeric node", func(t *testing.T) {
		sections := configfile.NewSections()
		sections.Set("maintenance", "schedule", "0 2 * * 0")
		sections.Set("maintenance", "node", "not-a-number")

		if _, err := maintenanceSchedulerFromConfig(o, sections); err == nil {
			t.Fatal("expected an error for a non-numeric maintenance.node")
		}
	})

	t.Run("rejects an invalid duration", func(t *testing.T) {
		sections := configfile.NewSections()
		sections.Set("maintenance", "schedule", "0 2 * * 0")
		sections.Set("maintenance", "node", "1")
		sections.Set("maintenance", "duration", "not-a-duration")

		if _, err := maintenanceSchedulerFromConfig(o, sections); err == nil {
			t.Fatal("expected an error for an invalid maintenance.duration")
		}
	})
}
