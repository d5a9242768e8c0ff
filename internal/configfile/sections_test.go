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
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestConfigfile(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Configfile Suite")
}

var _ = Describe("Sections", func() {
	It("round-trips through disk", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "pg_autoctl.ini")

		s := NewSections()
		s.Set("pg_autoctl", "role", "keeper")
		s.Set("pg_autoctl", "monitor", "postgres://monitor/pg_auto_failover")
		s.Set("timeout", "network-partition-timeout", "20")

		Expect(SaveSections(path, s)).To(Succeed())

		loaded, err := LoadSections(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(loaded.GetDefault("pg_autoctl", "role", "")).To(Equal("keeper"))
		Expect(loaded.GetDefault("timeout", "network-partition-timeout", "")).To(Equal("20"))
	})

	It("returns an empty Sections for a missing file", func() {
		s, err := LoadSections(filepath.Join(GinkgoT().TempDir(), "missing.ini"))
		Expect(err).ToNot(HaveOccurred())
		_, ok := s.Get("pg_autoctl", "role")
		Expect(ok).To(BeFalse())
	})

	It("ignores comments and blank lines", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "pg_autoctl.ini")
		content := "# a comment\n\n[pg_autoctl]\nname = node1\n"
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())

		s, err := LoadSections(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(s.GetDefault("pg_autoctl", "name", "")).To(Equal("node1"))
	})
})
