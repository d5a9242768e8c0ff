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
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("pg_hba.conf rewriting", func() {
	rules := []HBARule{
		{Host: "10.0.0.2/32", User: "replicator", Method: "scram-sha-256"},
	}

	It("appends the managed block when absent", func() {
		current := "local all all peer\n"
		out, err := RewriteHBAFile(strings.NewReader(current), rules)
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(ContainSubstring("local all all peer"))
		Expect(out).To(ContainSubstring(hbaBeginMarker))
		Expect(out).To(ContainSubstring("host replication replicator 10.0.0.2/32 scram-sha-256"))
	})

	It("replaces an existing managed block in place, keeping manual rules", func() {
		current := strings.Join([]string{
			"local all all peer",
			hbaBeginMarker,
			"host replication replicator 10.0.0.9/32 scram-sha-256",
			hbaEndMarker,
			"host all all 0.0.0.0/0 reject",
			"",
		}, "\n")

		out, err := RewriteHBAFile(strings.NewReader(current), rules)
		Expect(err).ToNot(HaveOccurred())
		Expect(out).ToNot(ContainSubstring("10.0.0.9"))
		Expect(out).To(ContainSubstring("10.0.0.2/32"))
		Expect(out).To(ContainSubstring("host all all 0.0.0.0/0 reject"))
	})

	It("collects the granted hosts as a set", func() {
		set := HostsFromRules(rules)
		Expect(set.Has("10.0.0.2/32")).To(BeTrue())
		Expect(set.Len()).To(Equal(1))
	})
})
