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

package certs

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestCerts(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Certs Suite")
}

var _ = Describe("Keypair generation", func() {
	It("generates a self-signed, valid root CA", func() {
		pair, err := CreateRootCA("pgautoctl-monitor-ca")
		Expect(err).ToNot(HaveOccurred())

		cert, err := pair.ParseCertificate()
		Expect(err).ToNot(HaveOccurred())

		key, err := pair.ParseECPrivateKey()
		Expect(err).ToNot(HaveOccurred())

		Expect(cert.PublicKey).To(BeEquivalentTo(&key.PublicKey))
		Expect(cert.IsCA).To(BeTrue())
		Expect(cert.BasicConstraintsValid).To(BeTrue())
		Expect(cert.NotBefore).To(BeTemporally("<", time.Now()))
		Expect(cert.NotAfter).To(BeTemporally(">", time.Now()))
		Expect(cert.CheckSignatureFrom(cert)).ToNot(HaveOccurred())
	})

	It("generates a leaf certificate signed by the CA, valid for its hostnames", func() {
		ca, err := CreateRootCA("pgautoctl-monitor-ca")
		Expect(err).ToNot(HaveOccurred())

		leaf, err := CreateLeafCertificate("node1.example.com", []string{"node1.example.com", "127.0.0.1"}, ca)
		Expect(err).ToNot(HaveOccurred())

		leafCert, err := leaf.ParseCertificate()
		Expect(err).ToNot(HaveOccurred())
		caCert, err := ca.ParseCertificate()
		Expect(err).ToNot(HaveOccurred())

		Expect(leafCert.IsCA).To(BeFalse())
		Expect(leafCert.CheckSignatureFrom(caCert)).ToNot(HaveOccurred())
		Expect(leafCert.DNSNames).To(ContainElement("node1.example.com"))
		Expect(leafCert.VerifyHostname("node1.example.com")).ToNot(HaveOccurred())
	})
})
