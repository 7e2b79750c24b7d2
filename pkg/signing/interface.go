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

// Package signing defines the polymorphic signing-backend adapter: one
// operation set (obtain certificate, sign digest) over three mutually
// exclusive backends. Selecting a method never mixes backend code paths;
// the card branch must not invoke PKCS#11 operations and vice versa.
package signing

import (
	"context"
	"errors"
	"fmt"
)

// ErrMissingArtifact marks a backend call that succeeded but returned no
// certificate or signature where one was required. A missing artifact is a
// failure, never a silent success.
var ErrMissingArtifact = errors.New("signing backend returned no artifact")

// Method selects which signing backend a workflow run uses.
// Exactly one method is active per run.
type Method int

const (
	// MethodMock signs via the backend's mock endpoints. No credentials.
	MethodMock Method = iota
	// MethodCardSession signs via the local smart-card middleware.
	MethodCardSession
	// MethodPKCS11 signs via the remote PKCS#11 token service.
	MethodPKCS11
)

// String returns the method name.
func (m Method) String() string {
	switch m {
	case MethodMock:
		return "mock"
	case MethodCardSession:
		return "card"
	case MethodPKCS11:
		return "pkcs11"
	default:
		return "unknown"
	}
}

// ParseMethod parses a method name.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "mock":
		return MethodMock, nil
	case "card", "cardsession":
		return MethodCardSession, nil
	case "pkcs11", "token":
		return MethodPKCS11, nil
	default:
		return MethodMock, fmt.Errorf("unknown signing method %q (want mock, card or pkcs11)", s)
	}
}

// MinPINLength is the minimum accepted PIN length for credentialed methods.
const MinPINLength = 4

// Credentials holds the method-specific secrets and selections for a run.
// Only the fields relevant to the active method are consulted.
type Credentials struct {
	// PIN is the card or token PIN (card and pkcs11 methods).
	PIN string
	// Reader is the selected card reader name (card method).
	Reader string
	// SlotID is the selected token slot (pkcs11 method); nil means none.
	SlotID *int
	// CertLabel is the selected certificate label (pkcs11 method).
	CertLabel string
}

// Ready reports whether the credential set satisfies the method's
// sign-step predicate:
//
//	mock:   nothing required
//	card:   PIN length >= 4 and a reader selected
//	pkcs11: PIN length >= 4, a slot selected and a certificate label selected
func (m Method) Ready(c Credentials) bool {
	switch m {
	case MethodMock:
		return true
	case MethodCardSession:
		return len(c.PIN) >= MinPINLength && c.Reader != ""
	case MethodPKCS11:
		return len(c.PIN) >= MinPINLength && c.SlotID != nil && c.CertLabel != ""
	default:
		return false
	}
}

// Certificate is a signer certificate with its chain, leaf first.
type Certificate struct {
	PEM      string
	ChainPEM []string
}

// SignResult is the outcome of a signing operation. DigestB64 is the digest
// the backend computed over the input, when the backend reports one.
type SignResult struct {
	SignatureB64 string
	DigestB64    string
}

// Backend is the operation set shared by all signing methods.
//
// Implementations live in the mock, card and pkcs11 subpackages; each
// manages its own session and credential semantics.
type Backend interface {
	// ObtainCertificate returns the signer certificate for this backend.
	ObtainCertificate(ctx context.Context) (*Certificate, error)

	// Sign signs the base64-encoded to-be-signed bytes. For the card
	// backend the input is the signed-attributes DER, not a pre-hashed
	// digest: the hardware computes the digest internally.
	Sign(ctx context.Context, dataB64 string) (*SignResult, error)
}

// Provider resolves the Backend for a method and credential set. The
// workflow engine depends on this interface so tests can substitute
// call-tracing fakes.
type Provider interface {
	BackendFor(method Method, creds Credentials) (Backend, error)
}
