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

import "time"

// Config holds the monitor's tunable timeouts, all named directly after
// the spec sections that define them.
type Config struct {
	// FailoverTimeout is how long a primary may go unseen before the
	// monitor begins a failover (spec §4.1).
	FailoverTimeout time.Duration
	// HealthCheckMaxRetries is the number of consecutive missed heartbeats
	// that, combined with FailoverTimeout, marks a node unhealthy (spec
	// §4.1 "Liveness").
	HealthCheckMaxRetries int
	// HealthCheckTimeout bounds a single liveness probe (spec §5).
	HealthCheckTimeout time.Duration
	// HealthCheckPeriod is how often the liveness scanner runs.
	HealthCheckPeriod time.Duration
}

// DefaultConfig returns the monitor's default timeouts, matching the
// values named in spec §4.1 and §6.1.
func DefaultConfig() Config {
	return Config{
		FailoverTimeout:       20 * time.Second,
		HealthCheckMaxRetries: 5,
		HealthCheckTimeout:    5 * time.Second,
		HealthCheckPeriod:     5 * time.Second,
	}
}
