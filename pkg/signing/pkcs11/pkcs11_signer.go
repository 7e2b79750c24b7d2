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

// Package pkcs11 implements the signing backend that delegates to the
// remote PKCS#11 token service. Key material never leaves the token; this
// backend only ships the DER bytes, slot selection, PIN and certificate
// label filter to the service.
package pkcs11

import (
	"context"
	"fmt"

	"github.com/clinisign/padesflow/pkg/backend"
	"github.com/clinisign/padesflow/pkg/logging"
	"github.com/clinisign/padesflow/pkg/signing"
	"github.com/clinisign/padesflow/pkg/utils"
)

// Verify Signer implements signing.Backend at compile time.
var _ signing.Backend = (*Signer)(nil)

// SignerOptions configures a PKCS#11 Signer.
//
//nolint:revive
type SignerOptions struct {
	// Service is the document-service client hosting the PKCS#11 endpoints. [required]
	Service *backend.Client
	// SlotID is the selected token slot.
	SlotID int
	// PIN is the token PIN, at least signing.MinPINLength characters. [required]
	PIN string
	// CertLabel selects the certificate (and its key) on the token. [required]
	CertLabel string
	// Logs receives token-sourced entries. Optional.
	Logs *logging.Aggregator
}

// Signer is the PKCS#11 signing backend.
//
//nolint:revive
type Signer struct {
	svc       *backend.Client
	slotID    int
	pin       string
	certLabel string
	logger    logging.Logger
}

// NewSigner creates a PKCS#11 signing backend.
// Returns an error if the PIN or certificate label does not satisfy the
// PKCS#11 credential predicate.
func NewSigner(opts SignerOptions) (*Signer, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("document-service client is required")
	}
	if len(opts.PIN) < signing.MinPINLength {
		return nil, fmt.Errorf("PIN must be at least %d characters", signing.MinPINLength)
	}
	if opts.CertLabel == "" {
		return nil, fmt.Errorf("a certificate label must be selected")
	}

	logger := logging.Logger(nil)
	if opts.Logs != nil {
		logger = opts.Logs.Source(logging.SourceToken)
	}

	return &Signer{
		svc:       opts.Service,
		slotID:    opts.SlotID,
		pin:       opts.PIN,
		certLabel: opts.CertLabel,
		logger:    logging.EnsureLogger(logger),
	}, nil
}

// ObtainCertificate lists the certificates in the selected slot and returns
// the one matching the configured label. Token certificates carry no chain.
func (s *Signer) ObtainCertificate(ctx context.Context) (*signing.Certificate, error) {
	resp, err := s.svc.PKCS11Certificates(ctx, backend.PKCS11CertificatesRequest{
		SlotID: s.slotID,
		PIN:    s.pin,
	})
	if err != nil {
		return nil, fmt.Errorf("listing token certificates: %w", err)
	}

	for _, cert := range resp.Certificates {
		if cert.Label != s.certLabel {
			continue
		}
		if cert.CertificatePEM == "" {
			return nil, fmt.Errorf("certificate %q has no PEM data: %w", s.certLabel, signing.ErrMissingArtifact)
		}
		if err := utils.ValidateCertificatePEM("token certificate", cert.CertificatePEM); err != nil {
			return nil, fmt.Errorf("%w: %v", signing.ErrMissingArtifact, err)
		}
		s.logger.Debug("token certificate %q found in slot %d", s.certLabel, s.slotID)
		return &signing.Certificate{PEM: cert.CertificatePEM}, nil
	}

	return nil, fmt.Errorf("no certificate labeled %q in slot %d: %w", s.certLabel, s.slotID, signing.ErrMissingArtifact)
}

// Sign asks the token service to sign the DER bytes with the key matching
// the configured certificate label.
func (s *Signer) Sign(ctx context.Context, dataB64 string) (*signing.SignResult, error) {
	resp, err := s.svc.PKCS11Sign(ctx, backend.PKCS11SignRequest{
		SlotID:           s.slotID,
		PIN:              s.pin,
		DataB64:          dataB64,
		CertificateLabel: s.certLabel,
	})
	if err != nil {
		return nil, fmt.Errorf("token signing: %w", err)
	}
	if resp.SignatureB64 == "" {
		return nil, fmt.Errorf("token signing returned no signature: %w", signing.ErrMissingArtifact)
	}

	s.logger.Success("token signature obtained from slot %d", s.slotID)
	return &signing.SignResult{
		SignatureB64: resp.SignatureB64,
		DigestB64:    resp.DigestB64,
	}, nil
}
