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

// Package concurrency collects the few synchronization primitives the
// keeper's single-threaded FSM runner needs: a one-shot broadcaster for
// "first reconcile happened" style gates, and a sticky flag for
// signal-handling (a handler sets the flag; the main loop polls it between
// blocking operations, never the other way around).
package concurrency

import "sync"

// Executed is a one-shot broadcaster: goroutines can Wait() for an event
// that Broadcast() fires exactly once, no matter how many times either is
// called or in what order.
type Executed struct {
	mu   sync.Mutex
	cond *sync.Cond
	done bool
}

// NewExecuted returns a ready-to-use Executed.
func NewExecuted() *Executed {
	e := &Executed{}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Broadcast marks the event as having happened and wakes every waiter.
// Safe to call more than once.
func (e *Executed) Broadcast() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return
	}
	e.done = true
	e.cond.Broadcast()
}

// Wait blocks until Broadcast has been called, returning immediately if it
// already has.
func (e *Executed) Wait() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for !e.done {
		e.cond.Wait()
	}
}

// IsDone reports whether Broadcast has already fired.
func (e *Executed) IsDone() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}
