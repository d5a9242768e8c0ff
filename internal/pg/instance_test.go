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
	"os"
	"path/filepath"

	"github.com/pg-auto-ha/pgautoctl/internal/fileutils"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Instance", Ordered, func() {
	tempDir, err := os.MkdirTemp("", "primary")
	Expect(err).ToNot(HaveOccurred())

	instance := Instance{PgData: filepath.Join(tempDir, "testdata", "primary")}
	signalPath := filepath.Join(instance.PgData, "standby.signal")
	autoConf := filepath.Join(instance.PgData, "postgresql.auto.conf")
	pgControl := filepath.Join(instance.PgData, "global", "pg_control")
	pgControlOld := pgControl + ".old"

	AfterEach(func() {
		_ = os.Remove(signalPath)
		_ = os.Remove(autoConf)
		_ = os.Remove(pgControl)
		_ = os.Remove(pgControlOld)
	})

	AfterAll(func() {
		Expect(os.RemoveAll(tempDir)).To(Succeed())
	})

	It("recognizes a primary by the absence of standby.signal", func() {
		isPrimary, err := instance.IsPrimary()
		Expect(err).ToNot(HaveOccurred())
		Expect(isPrimary).To(BeTrue())

		_, err = fileutils.WriteStringToFile(signalPath, "")
		Expect(err).ToNot(HaveOccurred())

		isPrimary, err = instance.IsPrimary()
		Expect(err).ToNot(HaveOccurred())
		Expect(isPrimary).To(BeFalse())
	})

	It("demotes by writing standby.signal and postgresql.auto.conf", func() {
		Expect(instance.Demote()).To(Succeed())

		_, err := os.Stat(signalPath)
		Expect(err).ToNot(HaveOccurred())
		_, err = os.Stat(autoConf)
		Expect(err).ToNot(HaveOccurred())
	})

	It("restores pg_control from its .old backup", func() {
		Expect(fileutils.EnsureParentDirectoryExists(pgControlOld)).To(Succeed())
		Expect(os.WriteFile(pgControlOld, []byte("fake-control-data"), 0o600)).To(Succeed())

		Expect(instance.managePgControlFileBackup()).To(Succeed())

		_, err := os.Stat(pgControl)
		Expect(err).ToNot(HaveOccurred())
	})

	It("removes the pg_control.old backup once consistent", func() {
		Expect(fileutils.EnsureParentDirectoryExists(pgControlOld)).To(Succeed())
		Expect(os.WriteFile(pgControlOld, []byte("fake-control-data"), 0o600)).To(Succeed())

		Expect(instance.removePgControlFileBackup()).To(Succeed())

		_, err := os.Stat(pgControlOld)
		Expect(os.IsNotExist(err)).To(BeTrue())
	})
})

var _ = Describe("environment-derived defaults", func() {
	It("falls back to the default socket directory", func() {
		Expect(GetSocketDir()).To(Equal("/var/run/postgresql"))
	})

	It("reads PGPORT when set to a valid integer", func() {
		Expect(os.Setenv("PGPORT", "6432")).To(Succeed())
		defer os.Unsetenv("PGPORT")
		Expect(GetServerPort()).To(Equal(6432))
	})

	It("falls back to 5432 when PGPORT is not a valid integer", func() {
		Expect(os.Setenv("PGPORT", "not-a-port")).To(Succeed())
		defer os.Unsetenv("PGPORT")
		Expect(GetServerPort()).To(Equal(5432))
	})
})
