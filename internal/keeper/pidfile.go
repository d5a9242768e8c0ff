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

package keeper

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/pg-auto-ha/pgautoctl/internal/fileutils"
)

// WritePIDFile records the running keeper's PID, which `pg_autoctl run`
// writes on start so another process can find the keeper without a
// process manager (spec §6.4 "run" command).
func WritePIDFile(path string) error {
	_, err := fileutils.WriteStringToFile(path, strconv.Itoa(os.Getpid())+"\n")
	return err
}

// RemovePIDFile deletes the PID file, tolerating it already being gone.
func RemovePIDFile(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ReadPIDFile reads the PID recorded at path.
func ReadPIDFile(path string) (int, error) {
	contents, err := fileutils.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("while reading pid file %q: %w", path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil {
		return 0, fmt.Errorf("pid file %q does not contain a valid pid: %w", path, err)
	}
	return pid, nil
}

// IsProcessRunning reports whether a process with the given PID is alive,
// used to detect a stale PID file left behind by an unclean shutdown
// (signal 0 probes without actually sending anything).
func IsProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
