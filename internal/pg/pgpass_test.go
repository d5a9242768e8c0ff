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

var _ = Describe("pgpass generation", func() {
	It("generates a single pgpass line", func() {
		entry := PgPassEntry{
			HostName: "thishost",
			Port:     5432,
			DBName:   "testdb",
			Username: "testuser",
			Password: "testpassword",
		}

		Expect(entry.CreatePgPassLine()).To(Equal("thishost:5432:testdb:testuser:testpassword\n"))
	})

	It("generates a whole pgpass file", func() {
		entries := []PgPassEntry{
			{HostName: "thishost", Port: 5432, DBName: "testdb", Username: "testuser", Password: "testpassword"},
			{HostName: "thishost", Port: 5432, DBName: "replication", Username: "testuser", Password: "testpassword2"},
		}

		Expect(CreatePgPassContent(entries)).To(Equal(
			"thishost:5432:testdb:testuser:testpassword\n" +
				"thishost:5432:replication:testuser:testpassword2\n"))
	})
})
