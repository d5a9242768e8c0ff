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

package concurrency

import "sync/atomic"

// Flag is a sticky boolean that a signal handler sets once and the main
// loop polls between blocking operations. Once set it never clears.
type Flag struct {
	v atomic.Bool
}

// Set raises the flag. Safe to call from a signal handler.
func (f *Flag) Set() {
	f.v.Store(true)
}

// IsSet reports whether the flag has been raised.
func (f *Flag) IsSet() bool {
	return f.v.Load()
}
