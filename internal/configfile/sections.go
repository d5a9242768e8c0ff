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

package configfile

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Sections is the decoded form of the per-node `[section]\nkey = value`
// configuration file (spec §6.1): pg_autoctl, replication, timeout, ssl.
// No third-party INI decoder in the retrieval pack offers this layout
// without dragging in an unrelated dependency tree (see DESIGN.md), so it
// is hand-rolled, ordered for deterministic round-tripping.
type Sections struct {
	order []string
	data  map[string]map[string]string
}

// NewSections returns an empty, ready-to-use Sections.
func NewSections() *Sections {
	return &Sections{data: make(map[string]map[string]string)}
}

// Get returns the value of key within section, and whether it was present.
func (s *Sections) Get(section, key string) (string, bool) {
	m, ok := s.data[section]
	if !ok {
		return "", false
	}
	v, ok := m[key]
	return v, ok
}

// GetDefault returns the value of key within section, or def if absent.
func (s *Sections) GetDefault(section, key, def string) string {
	if v, ok := s.Get(section, key); ok {
		return v
	}
	return def
}

// Set assigns key=value within section, creating the section if needed.
func (s *Sections) Set(section, key, value string) {
	if s.data == nil {
		s.data = make(map[string]map[string]string)
	}
	if _, ok := s.data[section]; !ok {
		s.data[section] = make(map[string]string)
		s.order = append(s.order, section)
	}
	s.data[section][key] = value
}

// Section returns a copy of all key/value pairs under section.
func (s *Sections) Section(section string) map[string]string {
	out := make(map[string]string)
	for k, v := range s.data[section] {
		out[k] = v
	}
	return out
}

// LoadSections parses a key-value file with `[section]` headers from disk.
// A missing file is not an error; it yields an empty Sections, the shape
// `create postgres`/`create monitor` expect when writing a brand-new node's
// configuration for the first time.
func LoadSections(path string) (*Sections, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return NewSections(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("while opening %s: %w", path, err)
	}
	defer f.Close()

	s := NewSections()
	section := ""
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		s.Set(section, strings.TrimSpace(key), strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("while reading %s: %w", path, err)
	}
	return s, nil
}

// SaveSections writes s back to path, sections and keys in a deterministic
// (first-seen section order, alphabetical key order) layout so repeated
// saves of an unchanged Sections produce byte-identical files.
func SaveSections(path string, s *Sections) error {
	var b strings.Builder
	for _, section := range s.order {
		fmt.Fprintf(&b, "[%s]\n", section)
		keys := make([]string, 0, len(s.data[section]))
		for k := range s.data[section] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "%s = %s\n", k, s.data[section][k])
		}
		b.WriteString("\n")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("while writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("while renaming %s to %s: %w", tmp, path, err)
	}
	return nil
}
