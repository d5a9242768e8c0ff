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

// Package configfile rewrites the `key = 'value'` line format Postgres
// configuration files and postgresql.auto.conf share, so a keeper can push
// its own managed settings (primary_conninfo, recovery_target_timeline,
// synchronous_standby_names) into a file that may also carry lines the
// operator wrote by hand, without disturbing those.
package configfile

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pg-auto-ha/pgautoctl/internal/fileutils"
)

// optionLineRegexp matches a `key = value` configuration line, tolerating
// the whitespace variations Postgres itself accepts around '='.
var optionLineRegexp = regexp.MustCompile(`^\s*([a-zA-Z_][a-zA-Z0-9_.]*)\s*=\s*(.*?)\s*$`)

// UpdatePostgresConfigurationFile applies UpdateConfigurationContents to the
// file at fileName, creating it if missing, and writes the result back only
// if it actually changed. managedKeys lists every option this process owns
// end to end: one present in the file but absent from options is removed
// rather than left stale.
func UpdatePostgresConfigurationFile(fileName string, options map[string]string, managedKeys ...string) (bool, error) {
	exists, err := fileutils.FileExists(fileName)
	if err != nil {
		return false, fmt.Errorf("while checking for %s: %w", fileName, err)
	}

	var content string
	if exists {
		raw, err := fileutils.ReadFile(fileName)
		if err != nil {
			return false, fmt.Errorf("while reading %s: %w", fileName, err)
		}
		content = string(raw)
	}

	updated, changed := UpdateConfigurationContents(content, options, managedKeys...)
	if !changed {
		return false, nil
	}

	return fileutils.WriteStringToFile(fileName, updated)
}

// UpdateConfigurationContents rewrites content so that every key in
// options is set to its value, quoted the way Postgres expects string
// GUCs to be quoted. Existing lines for keys in options are updated in
// place at their first occurrence; later duplicate occurrences of the same
// key are dropped (Postgres itself applies only the last one, which makes
// the earlier ones dead weight). Keys in options but absent from content
// are appended at the end. Any key named in managedKeys that is missing
// from options is removed from content entirely.
func UpdateConfigurationContents(content string, options map[string]string, managedKeys ...string) (string, bool) {
	managed := make(map[string]bool, len(managedKeys))
	for _, k := range managedKeys {
		managed[k] = true
	}

	remaining := make(map[string]string, len(options))
	for k, v := range options {
		remaining[k] = v
	}

	lines := splitLines(content)
	var out []string
	seen := make(map[string]bool)
	changed := false

	for _, line := range lines {
		key, _, ok := parseOptionLine(line)
		if !ok {
			out = append(out, line)
			continue
		}

		if seen[key] {
			changed = true
			continue
		}
		if value, isManagedValue := remaining[key]; isManagedValue {
			seen[key] = true
			rendered := renderOptionLine(key, value)
			if rendered != line {
				changed = true
			}
			out = append(out, rendered)
			delete(remaining, key)
			continue
		}

		if managed[key] {
			changed = true
			continue
		}

		out = append(out, line)
	}

	leftoverKeys := make([]string, 0, len(remaining))
	for k := range remaining {
		leftoverKeys = append(leftoverKeys, k)
	}
	sort.Strings(leftoverKeys)
	for _, k := range leftoverKeys {
		out = append(out, renderOptionLine(k, remaining[k]))
		changed = true
	}

	return joinLines(out), changed
}

// RemoveOptionsFromConfigurationContents removes every line setting one of
// the named keys, leaving everything else untouched.
func RemoveOptionsFromConfigurationContents(content string, keys ...string) string {
	remove := make(map[string]bool, len(keys))
	for _, k := range keys {
		remove[k] = true
	}

	var out []string
	for _, line := range splitLines(content) {
		if key, _, ok := parseOptionLine(line); ok && remove[key] {
			continue
		}
		out = append(out, line)
	}
	return joinLines(out)
}

// ReadOptionsFromConfigurationContents extracts the current raw (still
// quoted) values of the named keys from content, the read side of the
// reconciliation loop used to decide whether a rewrite is even needed.
func ReadOptionsFromConfigurationContents(content string, keys ...string) map[string]string {
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}

	result := make(map[string]string)
	for _, line := range splitLines(content) {
		key, value, ok := parseOptionLine(line)
		if !ok || !want[key] {
			continue
		}
		result[key] = value
	}
	return result
}

func parseOptionLine(line string) (key, value string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", "", false
	}
	m := optionLineRegexp.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

func renderOptionLine(key, value string) string {
	return fmt.Sprintf("%s = '%s'", key, value)
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
