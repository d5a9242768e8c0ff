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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("StatusList", func() {
	It("is complete only when every entry was collected", func() {
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		list := StatusList{
			{CollectedAt: now, ReceivedLSN: "1/21"},
			{CollectedAt: now, ReceivedLSN: "1/10"},
		}
		Expect(list.IsComplete()).To(BeTrue())

		list = append(list, Status{})
		Expect(list.IsComplete()).To(BeFalse())
	})

	It("finds the most advanced LSN in the group", func() {
		list := StatusList{
			{ReceivedLSN: "1/10"},
			{ReceivedLSN: "1/B"},
			{ReceivedLSN: "1/5"},
		}
		Expect(list.MostAdvanced()).To(Equal(LSN("1/10")))
	})

	It("returns the zero LSN for an empty list", func() {
		var list StatusList
		Expect(list.MostAdvanced()).To(Equal(LSN("")))
	})
})
