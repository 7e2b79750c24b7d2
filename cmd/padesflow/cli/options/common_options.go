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

package options

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/clinisign/padesflow/pkg/config"
	"github.com/clinisign/padesflow/pkg/signing"
)

// FlagAdder is implemented by any flag group that can register itself to a
// cobra command.
type FlagAdder interface {
	AddFlags(cmd *cobra.Command)
}

// ServiceFlags overrides the environment-driven service endpoints.
// Empty values leave the environment configuration untouched.
type ServiceFlags struct {
	// BackendURL is the document-service origin.
	BackendURL string
	// MiddlewareURL is the local card-middleware origin.
	MiddlewareURL string
	// RequestTimeout bounds every outbound HTTP call.
	RequestTimeout time.Duration
}

// AddFlags adds service endpoint flags to the cobra command.
func (o *ServiceFlags) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.BackendURL, "backend-url", "",
		"document-service origin (overrides PADESFLOW_BACKEND_URL)")
	cmd.Flags().StringVar(&o.MiddlewareURL, "middleware-url", "",
		"card-middleware origin (overrides PADESFLOW_MIDDLEWARE_URL)")
	cmd.Flags().DurationVar(&o.RequestTimeout, "request-timeout", 0,
		"per-request timeout (overrides PADESFLOW_REQUEST_TIMEOUT)")
}

// Apply folds the flag overrides into the environment configuration.
func (o *ServiceFlags) Apply(cfg *config.Environment) {
	if o.BackendURL != "" {
		cfg.BackendURL = o.BackendURL
	}
	if o.MiddlewareURL != "" {
		cfg.MiddlewareURL = o.MiddlewareURL
	}
	if o.RequestTimeout > 0 {
		cfg.RequestTimeout = o.RequestTimeout
	}
}

// CredentialFlags selects the signing method and its credentials.
type CredentialFlags struct {
	// Method is the signing method name (mock, card, pkcs11).
	Method string
	// PIN is the card or token PIN.
	PIN string
	// Reader is the card reader name; empty with the card method means
	// auto-select when exactly one reader is attached.
	Reader string
	// SlotID is the token slot; negative means none selected.
	SlotID int
	// CertLabel is the token certificate label.
	CertLabel string
}

// AddFlags adds signing method and credential flags to the cobra command.
func (o *CredentialFlags) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Method, "method", "m", "mock",
		"signing method: mock, card or pkcs11")
	cmd.Flags().StringVar(&o.PIN, "pin", "",
		"card or token PIN (card and pkcs11 methods)")
	cmd.Flags().StringVar(&o.Reader, "reader", "",
		"card reader name; auto-selected when exactly one is attached (card method)")
	cmd.Flags().IntVar(&o.SlotID, "slot", -1,
		"token slot id (pkcs11 method)")
	cmd.Flags().StringVar(&o.CertLabel, "cert-label", "signature",
		"token certificate label (pkcs11 method)")
}

// ParseMethod returns the selected signing method.
func (o *CredentialFlags) ParseMethod() (signing.Method, error) {
	return signing.ParseMethod(o.Method)
}

// Credentials converts the flags to workflow credentials.
func (o *CredentialFlags) Credentials() signing.Credentials {
	creds := signing.Credentials{
		PIN:       o.PIN,
		Reader:    o.Reader,
		CertLabel: o.CertLabel,
	}
	if o.SlotID >= 0 {
		slot := o.SlotID
		creds.SlotID = &slot
	}
	return creds
}
