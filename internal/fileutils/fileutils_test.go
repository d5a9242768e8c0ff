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

package fileutils

import (
	"os"
	"path"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestFileUtils(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "File Utilities Suite")
}

var tempDir1, tempDir2, tempDir3 string

var _ = BeforeSuite(func() {
	var err error
	tempDir1, err = os.MkdirTemp("", "fileutils1_")
	Expect(err).To(BeNil())
	tempDir2, err = os.MkdirTemp("", "fileutils2_")
	Expect(err).To(BeNil())
	tempDir3, err = os.MkdirTemp("", "fileutils3_")
	Expect(err).To(BeNil())
})

var _ = AfterSuite(func() {
	Expect(os.RemoveAll(tempDir1)).To(Succeed())
	Expect(os.RemoveAll(tempDir2)).To(Succeed())
	Expect(os.RemoveAll(tempDir3)).To(Succeed())
})

var _ = Describe("File writing functions", func() {
	It("writes a new file", func() {
		changed, err := WriteStringToFile(path.Join(tempDir1, "test.txt"), "this is a test")
		Expect(changed).To(BeTrue())
		Expect(err).To(BeNil())
	})

	It("detects if the file has changed or not", func() {
		changed, err := WriteStringToFile(path.Join(tempDir1, "test2.txt"), "this is a test")
		Expect(changed).To(BeTrue())
		Expect(err).To(BeNil())

		changed2, err := WriteStringToFile(path.Join(tempDir1, "test2.txt"), "this is a test")
		Expect(changed2).To(BeFalse())
		Expect(err).To(BeNil())
	})

	It("creates a new directory if needed", func() {
		changed, err := WriteStringToFile(path.Join(tempDir1, "nested", "test3.txt"), "this is a test")
		Expect(changed).To(BeTrue())
		Expect(err).To(BeNil())
	})
})

var _ = Describe("File copying functions", func() {
	It("copies files", func() {
		Expect(WriteStringToFile(path.Join(tempDir2, "test.txt"), "this is a test")).Error().To(BeNil())

		result, err := FileExists(path.Join(tempDir2, "test2.txt"))
		Expect(err).To(BeNil())
		Expect(result).To(BeFalse())

		Expect(CopyFile(path.Join(tempDir2, "test.txt"), path.Join(tempDir2, "test2.txt"))).To(Succeed())

		result, err = FileExists(path.Join(tempDir2, "test2.txt"))
		Expect(err).To(BeNil())
		Expect(result).To(BeTrue())
	})

	It("removes the content of a directory", func() {
		Expect(WriteStringToFile(path.Join(tempDir2, "temp", "test3.txt"), "this is a test")).Error().To(BeNil())

		result, err := FileExists(path.Join(tempDir2, "temp", "test3.txt"))
		Expect(err).To(BeNil())
		Expect(result).To(BeTrue())

		Expect(RemoveDirectoryContent(tempDir2)).To(Succeed())

		result, err = FileExists(path.Join(tempDir2, "temp"))
		Expect(err).To(BeNil())
		Expect(result).To(BeFalse())
	})
})

var _ = Describe("GetDirectoryContent", func() {
	It("returns an error if the directory doesn't exist", func() {
		_, err := GetDirectoryContent(filepath.Join(tempDir3, "not-exists"))
		Expect(err).Should(HaveOccurred())
	})

	It("returns the list of file names in a directory", func() {
		Expect(WriteStringToFile(filepath.Join(tempDir3, "a"), "x")).Error().To(BeNil())
		Expect(WriteStringToFile(filepath.Join(tempDir3, "b"), "x")).Error().To(BeNil())

		files, err := GetDirectoryContent(tempDir3)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(files).Should(ConsistOf("a", "b"))
	})
})

var _ = Describe("IsDirectoryEmpty", func() {
	It("treats a missing directory as empty", func() {
		empty, err := IsDirectoryEmpty(filepath.Join(tempDir3, "does-not-exist"))
		Expect(err).ToNot(HaveOccurred())
		Expect(empty).To(BeTrue())
	})

	It("detects a non-empty PGDATA", func() {
		empty, err := IsDirectoryEmpty(tempDir3)
		Expect(err).ToNot(HaveOccurred())
		Expect(empty).To(BeFalse())
	})
})
