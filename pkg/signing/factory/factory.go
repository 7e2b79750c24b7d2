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

// Package factory wires the concrete signing backends to the workflow
// engine's signing.Provider interface. The switch over methods is
// exhaustive and shares no state between branches, so a card run can never
// reach PKCS#11 code and vice versa.
package factory

import (
	"fmt"

	"github.com/clinisign/padesflow/pkg/backend"
	"github.com/clinisign/padesflow/pkg/cardsession"
	"github.com/clinisign/padesflow/pkg/logging"
	"github.com/clinisign/padesflow/pkg/signing"
	"github.com/clinisign/padesflow/pkg/signing/card"
	"github.com/clinisign/padesflow/pkg/signing/mock"
	"github.com/clinisign/padesflow/pkg/signing/pkcs11"
)

// Verify Factory implements signing.Provider at compile time.
var _ signing.Provider = (*Factory)(nil)

// Options configures a Factory.
type Options struct {
	// Service is the document-service client, used by the mock and
	// PKCS#11 backends. [required]
	Service *backend.Client
	// CardSession is the middleware client, used by the card backend.
	// Required only when the card method is selected.
	CardSession *cardsession.Client
	// Logs is the shared aggregator handed to each backend. Optional.
	Logs *logging.Aggregator
}

// Factory builds signing backends per method.
type Factory struct {
	opts Options
}

// New creates a backend factory.
func New(opts Options) (*Factory, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("document-service client is required")
	}
	return &Factory{opts: opts}, nil
}

// BackendFor returns the backend for the given method and credentials.
func (f *Factory) BackendFor(method signing.Method, creds signing.Credentials) (signing.Backend, error) {
	switch method {
	case signing.MethodMock:
		return mock.NewSigner(mock.SignerOptions{
			Service: f.opts.Service,
			Logs:    f.opts.Logs,
		})

	case signing.MethodCardSession:
		if f.opts.CardSession == nil {
			return nil, fmt.Errorf("card method selected but no middleware client configured")
		}
		return card.NewSigner(card.SignerOptions{
			Session: f.opts.CardSession,
			Reader:  creds.Reader,
			PIN:     creds.PIN,
			Logs:    f.opts.Logs,
		})

	case signing.MethodPKCS11:
		if creds.SlotID == nil {
			return nil, fmt.Errorf("pkcs11 method selected but no slot selected")
		}
		return pkcs11.NewSigner(pkcs11.SignerOptions{
			Service:   f.opts.Service,
			SlotID:    *creds.SlotID,
			PIN:       creds.PIN,
			CertLabel: creds.CertLabel,
			Logs:      f.opts.Logs,
		})

	default:
		return nil, fmt.Errorf("unknown signing method %d", method)
	}
}
