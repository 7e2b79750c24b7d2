// Copyright 2025 The Sigstore Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package utils

import (
	"crypto/x509"
	"fmt"

	"github.com/sigstore/sigstore/pkg/cryptoutils"
)

// ParseCertificatePEM parses a single PEM-encoded X.509 certificate.
// Signing backends use this as a sanity gate: a certificate that cannot be
// parsed is treated as a missing artifact, not passed downstream.
func ParseCertificatePEM(pemStr string) (*x509.Certificate, error) {
	certs, err := cryptoutils.UnmarshalCertificatesFromPEM([]byte(pemStr))
	if err != nil {
		return nil, fmt.Errorf("parsing certificate PEM: %w", err)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("no certificate found in PEM data")
	}
	return certs[0], nil
}

// ValidateCertificatePEM checks that pemStr holds at least one parseable
// X.509 certificate.
func ValidateCertificatePEM(fieldName, pemStr string) error {
	if pemStr == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	if _, err := ParseCertificatePEM(pemStr); err != nil {
		return fmt.Errorf("%s: %w", fieldName, err)
	}
	return nil
}

// CertificateSubject returns a short display string for the certificate
// subject in a PEM blob, falling back to the empty string when parsing fails.
func CertificateSubject(pemStr string) string {
	cert, err := ParseCertificatePEM(pemStr)
	if err != nil {
		return ""
	}
	if cert.Subject.CommonName != "" {
		return cert.Subject.CommonName
	}
	return cert.Subject.String()
}
