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
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("GetPostgresVersionFromTag", func() {
	DescribeTable("parses well-formed tags",
		func(tag string, expected int) {
			Expect(GetPostgresVersionFromTag(tag)).To(Equal(expected))
		},
		Entry("pre-10 patch release", "9.5.3", 90503),
		Entry("pre-10 without patch", "9.4", 90400),
		Entry("10.x release", "10.3", 100003),
		Entry("12.x release", "12.3", 120003),
		Entry("extra components are ignored", "3.4.3.2.5", 30403),
		Entry("10.x with extra trailing component", "10.11.12", 100011),
		Entry("trailing garbage after minor", "9.4_beautiful", 90400),
		Entry("non-dot separator before trailing digits", "11-1", 110000),
		Entry("non-dot separator before trailing letters", "15beta1", 150000),
	)

	DescribeTable("rejects malformed tags",
		func(tag string) {
			_, err := GetPostgresVersionFromTag(tag)
			Expect(err).To(HaveOccurred())
		},
		Entry("empty string", ""),
		Entry("major only, pre-10 requires a minor", "8"),
		Entry("non-numeric minor", "9.five"),
		Entry("non-numeric minor after 10.x dot", "10.old"),
	)
})

var _ = Describe("GetPostgresMajorVersion", func() {
	It("truncates 10.x and later to the major component", func() {
		Expect(GetPostgresMajorVersion(100003)).To(Equal(100000))
	})

	It("truncates pre-10 versions to major.minor", func() {
		Expect(GetPostgresMajorVersion(90504)).To(Equal(90500))
	})
})

var _ = Describe("IsUpgradePossible", func() {
	It("allows patch upgrades within the same major version", func() {
		Expect(IsUpgradePossible(100000, 100003)).To(BeTrue())
		Expect(IsUpgradePossible(90302, 90303)).To(BeTrue())
	})

	It("refuses upgrades that cross a major version", func() {
		Expect(IsUpgradePossible(100003, 110003)).To(BeFalse())
		Expect(IsUpgradePossible(90604, 100000)).To(BeFalse())
	})
})
