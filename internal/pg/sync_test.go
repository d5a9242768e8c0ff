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

var _ = Describe("SynchronousStandbyNames", func() {
	It("builds an ANY clause", func() {
		Expect(SynchronousStandbyNames(SyncMethodAny, 2, []string{"two", "three"})).
			To(Equal(`ANY 2 ("two","three")`))
	})

	It("builds a FIRST clause", func() {
		Expect(SynchronousStandbyNames(SyncMethodFirst, 2, []string{"two", "three"})).
			To(Equal(`FIRST 2 ("two","three")`))
	})

	It("returns an empty string when there is no eligible standby", func() {
		Expect(SynchronousStandbyNames(SyncMethodAny, 2, nil)).To(BeEmpty())
	})
})
