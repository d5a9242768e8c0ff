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
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pg-auto-ha/pgautoctl/internal/fsm"
)

func TestKeeper(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Keeper Suite")
}

var _ = Describe("State persistence", func() {
	var statePath string

	BeforeEach(func() {
		statePath = filepath.Join(GinkgoT().TempDir(), "pgautoctl.state")
	})

	It("reports os.ErrNotExist for a missing state file", func() {
		_, err := LoadState(statePath)
		Expect(os.IsNotExist(err)).To(BeTrue())
	})

	It("round-trips through save and load", func() {
		s := State{
			NodeID: 1, GroupID: 0, Formation: "default",
			CurrentRole: fsm.Single, AssignedRole: fsm.Single,
			PgData: "/var/lib/postgresql/data",
		}
		Expect(SaveState(statePath, s)).To(Succeed())

		loaded, err := LoadState(statePath)
		Expect(err).ToNot(HaveOccurred())
		Expect(loaded.NodeID).To(Equal(s.NodeID))
		Expect(loaded.CurrentRole).To(Equal(fsm.Single))
		Expect(loaded.Version).To(Equal(stateFileVersion))
	})

	It("rejects a state file with an unexpected version", func() {
		s := State{NodeID: 1, Version: 99}
		raw, err := os.Create(statePath)
		Expect(err).ToNot(HaveOccurred())
		Expect(raw.Close()).To(Succeed())
		Expect(SaveState(statePath, s)).To(Succeed())

		// SaveState always stamps the current version; corrupt it directly
		// to exercise the version guard.
		contents, err := os.ReadFile(statePath)
		Expect(err).ToNot(HaveOccurred())
		corrupted := []byte(`{"version":99,"nodeId":1}`)
		_ = contents
		Expect(os.WriteFile(statePath, corrupted, 0o600)).To(Succeed())

		_, err = LoadState(statePath)
		Expect(err).To(HaveOccurred())
	})

	It("manages the init sentinel independently of the state file", func() {
		Expect(HasInitSentinel(statePath)).To(BeFalse())
		Expect(WriteInitSentinel(statePath)).To(Succeed())
		Expect(HasInitSentinel(statePath)).To(BeTrue())
		Expect(RemoveInitSentinel(statePath)).To(Succeed())
		Expect(HasInitSentinel(statePath)).To(BeFalse())
		// removing twice is a no-op, not an error
		Expect(RemoveInitSentinel(statePath)).To(Succeed())
	})
})

var _ = Describe("PID file handling", func() {
	var pidPath string

	BeforeEach(func() {
		pidPath = filepath.Join(GinkgoT().TempDir(), "pgautoctl.pid")
	})

	It("writes and reads back this process's own pid", func() {
		Expect(WritePIDFile(pidPath)).To(Succeed())
		pid, err := ReadPIDFile(pidPath)
		Expect(err).ToNot(HaveOccurred())
		Expect(pid).To(Equal(os.Getpid()))
		Expect(IsProcessRunning(pid)).To(BeTrue())
	})

	It("removes cleanly, including when already absent", func() {
		Expect(RemovePIDFile(pidPath)).To(Succeed())
		Expect(WritePIDFile(pidPath)).To(Succeed())
		Expect(RemovePIDFile(pidPath)).To(Succeed())
		_, err := os.Stat(pidPath)
		Expect(os.IsNotExist(err)).To(BeTrue())
	})
})
