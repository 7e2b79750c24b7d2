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

// Package card implements the signing backend that delegates to the local
// smart-card middleware session. The card hashes the signed-attributes DER
// internally and, when the middleware supports it, reports the digest it
// computed so the workflow can cross-check it against the prepared digest.
package card

import (
	"context"
	"fmt"

	"github.com/clinisign/padesflow/pkg/cardsession"
	"github.com/clinisign/padesflow/pkg/logging"
	"github.com/clinisign/padesflow/pkg/signing"
	"github.com/clinisign/padesflow/pkg/utils"
)

// Verify Signer implements signing.Backend at compile time.
var _ signing.Backend = (*Signer)(nil)

// SignerOptions configures a card Signer.
type SignerOptions struct {
	// Session is the middleware protocol client. [required]
	Session *cardsession.Client
	// Reader is the selected reader name. [required]
	Reader string
	// PIN is the card PIN, at least signing.MinPINLength digits. [required]
	PIN string
	// Logs receives card-sourced entries. Optional.
	Logs *logging.Aggregator
}

// Signer is the card-session signing backend.
type Signer struct {
	session *cardsession.Client
	reader  string
	pin     string
	logger  logging.Logger

	// info is the result of the last card read, kept so callers can show
	// holder details without a second PIN entry.
	info *cardsession.CardInfo
}

// NewSigner creates a card signing backend.
// Returns an error if the reader or PIN does not satisfy the card
// credential predicate.
func NewSigner(opts SignerOptions) (*Signer, error) {
	if opts.Session == nil {
		return nil, fmt.Errorf("card session client is required")
	}
	if opts.Reader == "" {
		return nil, fmt.Errorf("a card reader must be selected")
	}
	if len(opts.PIN) < signing.MinPINLength {
		return nil, fmt.Errorf("PIN must be at least %d characters", signing.MinPINLength)
	}

	logger := logging.Logger(nil)
	if opts.Logs != nil {
		logger = opts.Logs.Source(logging.SourceCard)
	}

	return &Signer{
		session: opts.Session,
		reader:  opts.Reader,
		pin:     opts.PIN,
		logger:  logging.EnsureLogger(logger),
	}, nil
}

// CardInfo returns the identity data from the last successful card read, or
// nil before any read.
func (s *Signer) CardInfo() *cardsession.CardInfo {
	return s.info
}

// ObtainCertificate connects to the card, reads it, and returns the card
// certificate. Card certificates carry no chain.
func (s *Signer) ObtainCertificate(ctx context.Context) (*signing.Certificate, error) {
	info, err := s.session.ReadCard(ctx, s.reader, s.pin)
	if err != nil {
		return nil, fmt.Errorf("reading card: %w", err)
	}
	if info.CertificatePEM == "" {
		return nil, fmt.Errorf("card read returned no certificate: %w", signing.ErrMissingArtifact)
	}
	if err := utils.ValidateCertificatePEM("card certificate", info.CertificatePEM); err != nil {
		return nil, fmt.Errorf("%w: %v", signing.ErrMissingArtifact, err)
	}

	s.info = info
	return &signing.Certificate{PEM: info.CertificatePEM}, nil
}

// Sign connects to the card and signs the signed-attributes DER. The input
// is the full DER, not a pre-hashed digest; the card digests it internally
// with SHA-256.
func (s *Signer) Sign(ctx context.Context, dataB64 string) (*signing.SignResult, error) {
	result, err := s.session.SignWithCard(ctx, s.reader, s.pin, dataB64)
	if err != nil {
		return nil, fmt.Errorf("signing with card: %w", err)
	}
	if result.SignatureB64 == "" {
		return nil, fmt.Errorf("card signing returned no signature: %w", signing.ErrMissingArtifact)
	}
	if result.DigestB64 == "" {
		s.logger.Debug("middleware did not report a card-computed digest")
	}

	return &signing.SignResult{
		SignatureB64: result.SignatureB64,
		DigestB64:    result.DigestB64,
	}, nil
}
