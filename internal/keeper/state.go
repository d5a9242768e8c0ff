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

// Package keeper implements the per-data-node agent: it persists its own
// identity and role to disk, executes the local side of every FSM
// transition (base-backup, rewind, promotion, replication-slot and HBA
// reconciliation), and ticks the monitor's node_active endpoint on a
// timer, applying whatever transition comes back (spec §4.3, §5).
package keeper

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pg-auto-ha/pgautoctl/internal/fileutils"
	"github.com/pg-auto-ha/pgautoctl/internal/fsm"
)

// stateFileVersion guards against a future incompatible layout change; a
// mismatched version is treated the same as a missing state file.
const stateFileVersion = 1

// State is the keeper's persisted identity and role, written atomically
// (write-temp-then-rename) after every successful transition (spec §6.3
// "keeper state file"). The original system stores this as a fixed-size
// binary C record; here it is a small JSON document instead, Go's
// idiomatic analogue for a versioned on-disk record — see DESIGN.md.
type State struct {
	Version          int      `json:"version"`
	NodeID           int64    `json:"nodeId"`
	GroupID          int64    `json:"groupId"`
	Formation        string   `json:"formation"`
	CurrentRole      fsm.Role `json:"currentRole"`
	AssignedRole     fsm.Role `json:"assignedRole"`
	SystemIdentifier uint64   `json:"systemIdentifier"`
	PgData           string   `json:"pgData"`
}

// LoadState reads the state file at path. A missing file is reported as
// os.ErrNotExist so callers can distinguish "never initialized" from a
// real read failure.
func LoadState(path string) (State, error) {
	exists, err := fileutils.FileExists(path)
	if err != nil {
		return State{}, fmt.Errorf("while checking state file %q: %w", path, err)
	}
	if !exists {
		return State{}, os.ErrNotExist
	}

	contents, err := fileutils.ReadFile(path)
	if err != nil {
		return State{}, fmt.Errorf("while reading state file %q: %w", path, err)
	}

	var s State
	if err := json.Unmarshal(contents, &s); err != nil {
		return State{}, fmt.Errorf("while parsing state file %q: %w", path, err)
	}
	if s.Version != stateFileVersion {
		return State{}, fmt.Errorf("state file %q has version %d, expected %d", path, s.Version, stateFileVersion)
	}
	return s, nil
}

// SaveState writes the state file atomically.
func SaveState(path string, s State) error {
	s.Version = stateFileVersion
	contents, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("while encoding state: %w", err)
	}
	_, err = fileutils.WriteStringToFile(path, string(contents))
	return err
}

// InitSentinelPath returns the path of the init sentinel file living
// alongside the state file: its presence between register and reaching
// single/secondary distinguishes "PGDATA exists and belongs to us
// mid-init" from "PGDATA was handed over by the operator" (spec §6.3).
func InitSentinelPath(stateFilePath string) string {
	return stateFilePath + ".init"
}

// WriteInitSentinel creates the init sentinel, idempotently.
func WriteInitSentinel(stateFilePath string) error {
	_, err := fileutils.WriteStringToFile(InitSentinelPath(stateFilePath), "")
	return err
}

// RemoveInitSentinel deletes the init sentinel once the node has reached
// single or secondary, a no-op if it is already gone.
func RemoveInitSentinel(stateFilePath string) error {
	err := os.Remove(InitSentinelPath(stateFilePath))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// HasInitSentinel reports whether the init sentinel is present.
func HasInitSentinel(stateFilePath string) bool {
	exists, _ := fileutils.FileExists(InitSentinelPath(stateFilePath))
	return exists
}
