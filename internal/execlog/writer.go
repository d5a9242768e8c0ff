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

// Package execlog runs external commands (pg_ctl, pg_basebackup, pg_rewind,
// initdb) with their stdout/stderr piped line-by-line into the structured
// logger, the same shape the keeper needs for every postgres binary it
// shells out to.
package execlog

import (
	"bufio"
	"bytes"
	"io"

	"github.com/go-logr/logr"
)

// LogWriter is an io.Writer that splits whatever is written to it into
// lines and emits one log record per line, so a subprocess's chatty
// stdout/stderr ends up as structured log entries instead of raw bytes.
type LogWriter struct {
	Logger logr.Logger
	// Level selects Info (0) vs a more verbose Info(V) level; streams that
	// are expected to be noisy (e.g. pg_basebackup's progress meter) can be
	// routed to a higher verbosity.
	Level int
}

// Write implements io.Writer. A nil or empty payload is a no-op, matching
// what bufio.Scanner and os/exec hand to a Writer at EOF.
func (w LogWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(p))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		w.Logger.V(w.Level).Info(line)
	}
	return len(p), nil
}

var _ io.Writer = LogWriter{}
