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
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestPG(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Postgres Control Suite")
}

var _ = Describe("LSN", func() {
	Describe("Parse", func() {
		It("raises errors for invalid LSNs", func() {
			_, err := LSN("").Parse()
			Expect(err).To(HaveOccurred())
			_, err = LSN("/").Parse()
			Expect(err).To(HaveOccurred())
		})

		It("works for good LSNs", func() {
			Expect(LSN("1/1").Parse()).To(Equal(int64(4294967297)))
			Expect(LSN("3/23").Parse()).To(Equal(int64(12884901923)))
		})
	})

	Describe("Diff", func() {
		It("returns the difference when both parse", func() {
			res := LSN("1/10").Diff("1/B")
			Expect(res).NotTo(BeNil())
			Expect(*res).To(Equal(int64(5)))
		})

		It("returns nil when either side fails to parse", func() {
			Expect(LSN("1/10").Diff("wrong")).To(BeNil())
			Expect(LSN("1/10").Diff("")).To(BeNil())
		})
	})

	Describe("Less and Max", func() {
		It("orders LSNs by position", func() {
			Expect(LSN("0/3000").Less("0/3100")).To(BeTrue())
			Expect(LSN("0/3100").Less("0/3000")).To(BeFalse())
			Expect(Max("0/3000", "0/3100")).To(Equal(LSN("0/3100")))
		})

		It("treats unparseable LSNs as not less", func() {
			Expect(LSN("bogus").Less("0/3000")).To(BeFalse())
		})
	})
})
