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

package versioncmd

import (
	"io"
	"os"
	"strings"
	"testing"
)

// runAndCapture executes cmd and returns whatever it printed to stdout,
// since NewCmd's RunE prints directly rather than via cmd.OutOrStdout (the
// same convention internal/cmd/pgautoctl/show uses for its table output).
func runAndCapture(t *testing.T) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	cmd := NewCmd()
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		w.Close()
		t.Fatalf("Execute: %v", err)
	}
	w.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading captured stdout: %v", err)
	}
	return string(out)
}

func TestCmdPrintsVersion(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()
	Version = "1.2.3"

	out := runAndCapture(t)
	if !strings.Contains(out, "1.2.3") {
		t.Errorf("expected output to contain the version, got %q", out)
	}
}

func TestCmdWarnsBelowMinimumCompatibleVersion(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()
	Version = "0.0.1"

	out := runAndCapture(t)
	if !strings.Contains(out, "predates the minimum interoperable version") {
		t.Errorf("expected a compatibility warning, got %q", out)
	}
}

func TestCmdHandlesUnparsableVersion(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()
	Version = "not-a-semver"

	out := runAndCapture(t)
	if !strings.Contains(out, "not-a-semver") {
		t.Errorf("expected the raw version string to be printed as a fallback, got %q", out)
	}
}
