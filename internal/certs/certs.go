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

// Package certs generates the self-signed CA and leaf certificates that a
// keeper writes into its PKI directory for its Postgres server. The
// monitor's HTTP API is served over plain HTTP and does not use them. There is no
// third-party certificate-authority library anywhere in this codebase's
// lineage — the teacher's own certs package builds on crypto/x509 directly
// — so this package does the same (see DESIGN.md).
package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"time"
)

// KeyPair is a PEM-encoded certificate and its EC private key.
type KeyPair struct {
	Certificate []byte
	PrivateKey  []byte
}

// ParseCertificate decodes the PEM certificate.
func (k KeyPair) ParseCertificate() (*x509.Certificate, error) {
	block, _ := pem.Decode(k.Certificate)
	if block == nil {
		return nil, fmt.Errorf("invalid PEM certificate")
	}
	return x509.ParseCertificate(block.Bytes)
}

// ParseECPrivateKey decodes the PEM private key.
func (k KeyPair) ParseECPrivateKey() (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(k.PrivateKey)
	if block == nil {
		return nil, fmt.Errorf("invalid PEM private key")
	}
	return x509.ParseECPrivateKey(block.Bytes)
}

const caValidity = 10 * 365 * 24 * time.Hour
const leafValidity = 90 * 24 * time.Hour

// CreateRootCA generates a self-signed CA certificate for the given common
// name, used to sign every monitor and keeper leaf certificate in a single
// formation.
func CreateRootCA(commonName string) (KeyPair, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("while generating CA key: %w", err)
	}

	serial, err := randomSerial()
	if err != nil {
		return KeyPair{}, err
	}

	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             time.Now().Add(-5 * time.Minute),
		NotAfter:              time.Now().Add(caValidity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return KeyPair{}, fmt.Errorf("while signing CA certificate: %w", err)
	}

	return encode(der, key)
}

// CreateLeafCertificate generates a leaf certificate for a monitor or a
// keeper node, signed by the given CA key pair, valid for the supplied
// hostnames and IP addresses.
func CreateLeafCertificate(commonName string, altNames []string, ca KeyPair) (KeyPair, error) {
	caCert, err := ca.ParseCertificate()
	if err != nil {
		return KeyPair{}, fmt.Errorf("while parsing CA certificate: %w", err)
	}
	caKey, err := ca.ParseECPrivateKey()
	if err != nil {
		return KeyPair{}, fmt.Errorf("while parsing CA private key: %w", err)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("while generating leaf key: %w", err)
	}

	serial, err := randomSerial()
	if err != nil {
		return KeyPair{}, err
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-5 * time.Minute),
		NotAfter:     time.Now().Add(leafValidity),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}
	for _, name := range altNames {
		if ip := net.ParseIP(name); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, name)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, caCert, &key.PublicKey, caKey)
	if err != nil {
		return KeyPair{}, fmt.Errorf("while signing leaf certificate for %q: %w", commonName, err)
	}

	return encode(der, key)
}

func encode(der []byte, key *ecdsa.PrivateKey) (KeyPair, error) {
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

	keyBytes, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return KeyPair{}, fmt.Errorf("while marshalling private key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes})

	return KeyPair{Certificate: certPEM, PrivateKey: keyPEM}, nil
}

func randomSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, fmt.Errorf("while generating certificate serial: %w", err)
	}
	return serial, nil
}
