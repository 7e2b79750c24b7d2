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

// Package mock implements the signing backend that delegates to the
// document service's mock endpoints. It requires no credentials and is the
// default method for development and end-to-end testing.
package mock

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

// SignerOptions configures a mock Signer.
type SignerOptions struct {
	// Service is the document-service client. [required]
	Service *backend.Client
	// Logs receives backend-sourced entries. Optional.
	Logs *logging.Aggregator
}

// Signer is the mock signing backend.
type Signer struct {
	svc    *backend.Client
	logger logging.Logger
}

// NewSigner creates a mock signing backend.
func NewSigner(opts SignerOptions) (*Signer, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("document-service client is required")
	}

	logger := logging.Logger(nil)
	if opts.Logs != nil {
		logger = opts.Logs.Source(logging.SourceBackend)
	}

	return &Signer{
		svc:    opts.Service,
		logger: logging.EnsureLogger(logger),
	}, nil
}

// ObtainCertificate fetches the fixed mock signer certificate.
func (s *Signer) ObtainCertificate(ctx context.Context) (*signing.Certificate, error) {
	resp, err := s.svc.MockCertificate(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching mock certificate: %w", err)
	}
	if resp.CertificatePEM == "" {
		return nil, fmt.Errorf("mock certificate endpoint: %w", signing.ErrMissingArtifact)
	}
	if err := utils.ValidateCertificatePEM("mock certificate", resp.CertificatePEM); err != nil {
		return nil, fmt.Errorf("%w: %v", signing.ErrMissingArtifact, err)
	}

	s.logger.Debug("mock certificate obtained (%s)", utils.CertificateSubject(resp.CertificatePEM))
	return &signing.Certificate{
		PEM:      resp.CertificatePEM,
		ChainPEM: resp.CertificateChainPEM,
	}, nil
}

// Sign delegates to the mock-signing endpoint over the raw to-be-signed
// bytes.
func (s *Signer) Sign(ctx context.Context, dataB64 string) (*signing.SignResult, error) {
	resp, err := s.svc.MockSign(ctx, backend.MockSignRequest{DataB64: dataB64})
	if err != nil {
		return nil, fmt.Errorf("mock signing: %w", err)
	}
	if resp.SignatureB64 == "" {
		return nil, fmt.Errorf("mock signing endpoint: %w", signing.ErrMissingArtifact)
	}

	s.logger.Success("mock signature obtained")
	return &signing.SignResult{
		SignatureB64: resp.SignatureB64,
		DigestB64:    resp.DigestB64,
	}, nil
}
