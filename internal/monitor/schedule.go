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
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pg-auto-ha/pgautoctl/internal/log"
)

// MaintenanceWindow recurringly pulls a node out of failover consideration
// for a bounded duration, the way the teacher's ScheduledBackup controller
// recurringly triggers a Backup on a cron schedule (SPEC_FULL supplement:
// operators running a fleet want a standing maintenance calendar — "every
// Sunday 02:00 for one hour" — instead of having to call enable/disable
// maintenance by hand for routine work).
type MaintenanceWindow struct {
	Formation string
	NodeID    int64
	Schedule  string
	Duration  time.Duration
}

// MaintenanceScheduler runs a set of MaintenanceWindows against an
// Orchestrator, entering and leaving maintenance automatically.
type MaintenanceScheduler struct {
	o *Orchestrator
	c *cron.Cron
}

// NewMaintenanceScheduler builds a scheduler over o. Call Start to begin
// firing, and Stop to cancel every pending window cleanly.
func NewMaintenanceScheduler(o *Orchestrator) *MaintenanceScheduler {
	return &MaintenanceScheduler{o: o, c: cron.New()}
}

// AddWindow registers a recurring maintenance window, using the same
// five-field cron syntax as the teacher's ScheduledBackup.Spec.Schedule.
func (s *MaintenanceScheduler) AddWindow(w MaintenanceWindow) error {
	_, err := s.c.AddFunc(w.Schedule, func() {
		s.runWindow(w)
	})
	if err != nil {
		return fmt.Errorf("while parsing schedule %q: %w", w.Schedule, err)
	}
	return nil
}

func (s *MaintenanceScheduler) runWindow(w MaintenanceWindow) {
	ctx := context.Background()
	logger := log.FromContext(ctx).WithValues("formation", w.Formation, "nodeId", w.NodeID)

	if err := s.o.EnableMaintenance(ctx, w.NodeID); err != nil {
		logger.Error(err, "failed to enter scheduled maintenance window")
		return
	}
	logger.Info("entered scheduled maintenance window", "duration", w.Duration)

	time.AfterFunc(w.Duration, func() {
		if err := s.o.DisableMaintenance(context.Background(), w.NodeID); err != nil {
			logger.Error(err, "failed to leave scheduled maintenance window")
		} else {
			logger.Info("left scheduled maintenance window")
		}
	})
}

// Start begins firing scheduled windows in the background.
func (s *MaintenanceScheduler) Start() {
	s.c.Start()
}

// Stop cancels the cron scheduler, letting any in-flight window finish on
// its own timer.
func (s *MaintenanceScheduler) Stop() {
	<-s.c.Stop().Done()
}
