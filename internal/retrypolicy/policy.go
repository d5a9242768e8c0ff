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

// Package retrypolicy expresses retries as a small value type, per the
// design note in the specification: a baseDelay/maxDelay/maxAttempts/jitter
// quadruple plus a predicate classifying which errors are worth retrying.
// Two presets are defined: Interactive (short, fail fast), which the keeper
// uses for its per-tick node_active call, and Init (long, survives a
// rolling restart, for base-backup/rewind bring-up), which no caller in
// this module uses.
package retrypolicy

import (
	"context"
	"time"

	"github.com/avast/retry-go/v5"
)

// IsRetryable classifies an error as transient (worth retrying) or
// permanent. Callers supply this per call site; see internal/keeper for the
// transient/permanent split mandated by spec §7.
type IsRetryable func(error) bool

// Policy is an immutable retry configuration.
type Policy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts uint
	Jitter      bool
	Retryable   IsRetryable
}

// Interactive is the default policy for short, user-facing, fail-fast
// operations: the keeper's heartbeat call to the monitor. Spec §5: "one
// retry policy for interactive operations (short, fail fast)".
var Interactive = Policy{
	BaseDelay:   200 * time.Millisecond,
	MaxDelay:    5 * time.Second,
	MaxAttempts: 5,
	Jitter:      true,
	Retryable:   func(error) bool { return true },
}

// Init is the policy for long-running initialization operations (base
// backup, rewind) that must survive a rolling restart of the monitor or a
// transient network partition. Spec §5: "retries for up to 120 s per call"
// matches MaxAttempts*MaxDelay for the default timings.
var Init = Policy{
	BaseDelay:   1 * time.Second,
	MaxDelay:    10 * time.Second,
	MaxAttempts: 12,
	Jitter:      true,
	Retryable:   func(error) bool { return true },
}

// WithRetryable returns a copy of p using classify instead of p.Retryable.
func (p Policy) WithRetryable(classify IsRetryable) Policy {
	p.Retryable = classify
	return p
}

// Do runs fn, retrying according to p until it succeeds, a non-retryable
// error is returned, ctx is cancelled, or MaxAttempts is exhausted.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = func(error) bool { return true }
	}

	return retry.Do(
		func() error {
			return fn(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(p.MaxAttempts),
		retry.Delay(p.BaseDelay),
		retry.MaxDelay(p.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(retryable),
		retry.LastErrorOnly(true),
	)
}
