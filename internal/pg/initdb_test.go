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

package pg

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("EnsureTargetDirectoriesDoNotExist", func() {
	var initInfo InitInfo

	BeforeEach(func() {
		initInfo = InitInfo{
			PgData: GinkgoT().TempDir(),
			PgWal:  GinkgoT().TempDir(),
		}
		_, err := os.Create(filepath.Join(initInfo.PgData, "PG_VERSION"))
		Expect(err).ToNot(HaveOccurred())
		Expect(os.Mkdir(filepath.Join(initInfo.PgWal, "archive_status"), 0o700)).To(Succeed())
	})

	It("does nothing when the data directory is already a valid cluster", func() {
		Expect(initInfo.EnsureTargetDirectoriesDoNotExist(context.Background())).To(Succeed())

		_, err := os.Stat(filepath.Join(initInfo.PgData, "PG_VERSION"))
		Expect(err).ToNot(HaveOccurred())
	})

	It("wipes the data and WAL directories when PG_VERSION is missing", func() {
		Expect(os.Remove(filepath.Join(initInfo.PgData, "PG_VERSION"))).To(Succeed())

		Expect(initInfo.EnsureTargetDirectoriesDoNotExist(context.Background())).To(Succeed())

		_, err := os.Stat(initInfo.PgData)
		Expect(os.IsNotExist(err)).To(BeTrue())
		_, err = os.Stat(initInfo.PgWal)
		Expect(os.IsNotExist(err)).To(BeTrue())
	})

	It("tolerates directories that are already absent", func() {
		Expect(os.RemoveAll(initInfo.PgData)).To(Succeed())
		Expect(os.RemoveAll(initInfo.PgWal)).To(Succeed())

		Expect(initInfo.EnsureTargetDirectoriesDoNotExist(context.Background())).To(Succeed())
	})
})
