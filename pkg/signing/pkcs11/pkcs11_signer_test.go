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

package pkcs11

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clinisign/padesflow/pkg/backend"
	"github.com/clinisign/padesflow/pkg/signing"
)

func testCertPEM(t *testing.T, commonName string) string {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("creating certificate: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
}

func newTestSigner(t *testing.T, handler http.Handler, label string) *Signer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := backend.NewClient(backend.ClientOptions{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	signer, err := NewSigner(SignerOptions{
		Service:   client,
		SlotID:    0,
		PIN:       "123456",
		CertLabel: label,
	})
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}
	return signer
}

func TestNewSigner_EnforcesCredentialPredicate(t *testing.T) {
	client, err := backend.NewClient(backend.ClientOptions{BaseURL: "http://localhost:1"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if _, err := NewSigner(SignerOptions{Service: client, PIN: "123", CertLabel: "sig"}); err == nil {
		t.Error("NewSigner() accepted a 3-character PIN")
	}
	if _, err := NewSigner(SignerOptions{Service: client, PIN: "123456"}); err == nil {
		t.Error("NewSigner() accepted an empty certificate label")
	}
}

func TestObtainCertificate_SelectsByLabel(t *testing.T) {
	sigPEM := testCertPEM(t, "SIGNATURE CERT")
	authPEM := testCertPEM(t, "AUTH CERT")
	signer := newTestSigner(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pkcs11/certificates" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(backend.PKCS11CertificatesResponse{
			Certificates: []backend.PKCS11Certificate{
				{Label: "auth", CertificatePEM: authPEM},
				{Label: "signature", CertificatePEM: sigPEM},
			},
		})
	}), "signature")

	cert, err := signer.ObtainCertificate(context.Background())
	if err != nil {
		t.Fatalf("ObtainCertificate() error = %v", err)
	}
	if cert.PEM != sigPEM {
		t.Errorf("ObtainCertificate() picked the wrong certificate")
	}
}

func TestObtainCertificate_UnknownLabelIsMissingArtifact(t *testing.T) {
	signer := newTestSigner(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(backend.PKCS11CertificatesResponse{
			Certificates: []backend.PKCS11Certificate{
				{Label: "auth", CertificatePEM: testCertPEM(t, "AUTH CERT")},
			},
		})
	}), "signature")

	_, err := signer.ObtainCertificate(context.Background())
	if !errors.Is(err, signing.ErrMissingArtifact) {
		t.Fatalf("ObtainCertificate() = %v, want ErrMissingArtifact", err)
	}
}

func TestSign_EmptySignatureIsMissingArtifact(t *testing.T) {
	signer := newTestSigner(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req backend.PKCS11SignRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad sign request: %v", err)
		}
		if req.CertificateLabel != "signature" {
			t.Errorf("CertificateLabel = %q", req.CertificateLabel)
		}
		json.NewEncoder(w).Encode(backend.PKCS11SignResponse{})
	}), "signature")

	_, err := signer.Sign(context.Background(), "ZGF0YQ==")
	if !errors.Is(err, signing.ErrMissingArtifact) {
		t.Fatalf("Sign() = %v, want ErrMissingArtifact", err)
	}
}
