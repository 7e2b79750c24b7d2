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

// Package workflow implements the stepwise PAdES-B-T signing state machine:
// generate, prepare, sign, finalize, verify, completed. Each step runs only
// when its readiness predicate holds, performs its external calls, and
// mutates the run state only on full success, so any failed step can be
// retried as-is.
package workflow

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/clinisign/padesflow/pkg/backend"
	"github.com/clinisign/padesflow/pkg/cardsession"
	"github.com/clinisign/padesflow/pkg/digest"
	"github.com/clinisign/padesflow/pkg/logging"
	"github.com/clinisign/padesflow/pkg/signing"
	"github.com/clinisign/padesflow/pkg/tracing"
)

// DocumentService is the slice of the document-service client the engine
// depends on. Defined here so tests can substitute call-tracing fakes.
type DocumentService interface {
	Generate(ctx context.Context, req backend.GenerateRequest) (*backend.GenerateResponse, error)
	Prepare(ctx context.Context, req backend.PrepareRequest) (*backend.PrepareResponse, error)
	Presign(ctx context.Context, req backend.PresignRequest) (*backend.PresignResponse, error)
	Finalize(ctx context.Context, req backend.FinalizeRequest) (*backend.FinalizeResponse, error)
	Verify(ctx context.Context, req backend.VerifyRequest) (*backend.VerifyResponse, error)
}

// Verify the concrete client satisfies the interface at compile time.
var _ DocumentService = (*backend.Client)(nil)

// EngineOptions configures an Engine instance.
type EngineOptions struct {
	// Service is the document-service client. [required]
	Service DocumentService
	// Backends resolves the signing backend for the selected method. [required]
	Backends signing.Provider
	// Logs is the shared aggregator for run-scoped entries. Optional.
	Logs *logging.Aggregator
}

// GenerateInput selects the source of the unsigned document for the generate
// step. At most one field is set; with none set the document is requested
// from the generation service.
type GenerateInput struct {
	// SourcePath is a local PDF file to load.
	SourcePath string
	// PDFBase64 is an already-encoded document supplied by the caller.
	PDFBase64 string
	// Request customizes service-side generation when no local source is
	// given.
	Request backend.GenerateRequest
}

// Engine drives one signing run through the workflow steps.
//
// Steps are serialized: a step invoked while another is in flight fails fast
// with a NotReady error instead of interleaving. The engine never retries on
// its own; retry policy belongs to the caller.
type Engine struct {
	mu sync.Mutex

	runID    string
	state    State
	method   signing.Method
	creds    signing.Credentials
	svc      DocumentService
	backends signing.Provider
	logs     *logging.Aggregator
	logger   logging.Logger
}

// NewEngine creates a workflow engine with a fresh run identifier.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("document service is required")
	}
	if opts.Backends == nil {
		return nil, fmt.Errorf("signing backend provider is required")
	}

	runID := uuid.NewString()
	logger := logging.Logger(nil)
	if opts.Logs != nil {
		logger = opts.Logs.Source(logging.SourceFrontend).WithField("run_id", runID)
	}

	return &Engine{
		runID:    runID,
		svc:      opts.Service,
		backends: opts.Backends,
		logs:     opts.Logs,
		logger:   logging.EnsureLogger(logger),
	}, nil
}

// RunID returns the identifier of this run.
func (e *Engine) RunID() string {
	return e.runID
}

// State returns a snapshot of the current run state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.state
	st.CertificateChainPEM = append([]string(nil), e.state.CertificateChainPEM...)
	return st
}

// Method returns the active signing method.
func (e *Engine) Method() signing.Method {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.method
}

// SetMethod selects the signing method for this run.
func (e *Engine) SetMethod(m signing.Method) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.method = m
}

// SetCredentials installs the method credentials for this run. Credentials
// are evaluated lazily by the sign-step readiness predicate, so they may be
// set or corrected at any time before (or between) sign attempts.
func (e *Engine) SetCredentials(c signing.Credentials) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.creds = c
}

// Reset abandons the current run: all artifacts are cleared and the step
// returns to generate. Method and credentials survive a reset.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = State{}
	e.logger.Info("workflow reset")
}

// Ready reports whether the given step can execute right now: nil when its
// readiness predicate holds, a NotReady error naming the missing
// precondition otherwise.
func (e *Engine) Ready(step Step) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready(step)
}

func (e *Engine) ready(step Step) error {
	if e.state.Step != step {
		return NewError(KindNotReady, step,
			fmt.Sprintf("workflow is at step %s, not %s", e.state.Step, step), nil)
	}

	switch step {
	case StepGenerate:
		return nil
	case StepPrepare:
		if e.state.PDFBase64 == "" {
			return NewError(KindNotReady, step, "no source document loaded", nil)
		}
	case StepSign:
		if e.state.MessageDigestB64 == "" {
			return NewError(KindNotReady, step, "no prepared digest available", nil)
		}
		if !e.method.Ready(e.creds) {
			return NewError(KindNotReady, step,
				fmt.Sprintf("credentials incomplete for method %s", e.method), nil)
		}
	case StepFinalize:
		if e.state.PreparedPDFBase64 == "" || !e.state.hasByteRange() {
			return NewError(KindNotReady, step, "no prepared document available", nil)
		}
		if e.state.SignedAttrsDERB64 == "" || e.state.SignerCertPEM == "" {
			return NewError(KindNotReady, step, "no signed attributes available", nil)
		}
	case StepVerify:
		if e.state.SignedPDFBase64 == "" {
			return NewError(KindNotReady, step, "no signed document available", nil)
		}
	case StepCompleted:
		return NewError(KindNotReady, step, "workflow already completed", nil)
	}
	return nil
}

// Generate executes the generate step: load the document from the given
// source, or request one from the generation service.
func (e *Engine) Generate(ctx context.Context, in GenerateInput) error {
	return e.step(ctx, StepGenerate, func(ctx context.Context) error {
		return e.doGenerate(ctx, in)
	})
}

// Prepare executes the prepare step.
func (e *Engine) Prepare(ctx context.Context) error {
	return e.step(ctx, StepPrepare, e.doPrepare)
}

// Sign executes the sign step: obtain the signer certificate from the active
// backend and build the signed attributes via the presign service.
func (e *Engine) Sign(ctx context.Context) error {
	return e.step(ctx, StepSign, e.doSign)
}

// Finalize executes the finalize step: obtain the signature from the active
// backend, cross-check the backend-reported digest, and embed signature and
// trust timestamp via the service.
func (e *Engine) Finalize(ctx context.Context) error {
	return e.step(ctx, StepFinalize, e.doFinalize)
}

// Verify executes the verify step.
func (e *Engine) Verify(ctx context.Context) error {
	return e.step(ctx, StepVerify, e.doVerify)
}

// Run drives the workflow from its current step to completion, stopping at
// the first failing step.
func (e *Engine) Run(ctx context.Context, in GenerateInput) error {
	for {
		var err error
		switch e.State().Step {
		case StepGenerate:
			err = e.Generate(ctx, in)
		case StepPrepare:
			err = e.Prepare(ctx)
		case StepSign:
			err = e.Sign(ctx)
		case StepFinalize:
			err = e.Finalize(ctx)
		case StepVerify:
			err = e.Verify(ctx)
		case StepCompleted:
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// step is the shared boundary for every step handler: serialize, check
// readiness, trace, classify and log the outcome. The handler mutates state
// only after all its external calls succeed.
func (e *Engine) step(ctx context.Context, step Step, fn func(context.Context) error) error {
	if !e.mu.TryLock() {
		return NewError(KindNotReady, step, "another workflow operation is in flight", nil)
	}
	defer e.mu.Unlock()

	if err := e.ready(step); err != nil {
		e.logger.Error("step %s not ready: %v", step, err)
		return err
	}

	err := tracing.Run(ctx, "workflow."+step.String(), map[string]interface{}{
		"workflow.run_id": e.runID,
		"workflow.method": e.method.String(),
	}, fn)
	if err != nil {
		wErr := e.classify(step, err)
		if wErr.Kind == KindWrongPin {
			e.logger.Warning("step %s: %v", step, wErr)
		} else {
			e.logger.Error("step %s failed: %v", step, wErr)
		}
		return wErr
	}

	e.logger.Success("step %s completed", step)
	return nil
}

// classify maps an underlying failure onto the workflow error taxonomy.
// Errors already classified by a handler pass through unchanged.
func (e *Engine) classify(step Step, err error) *Error {
	var wErr *Error
	if errors.As(err, &wErr) {
		return wErr
	}
	switch {
	case errors.Is(err, cardsession.ErrWrongPin):
		return NewError(KindWrongPin, step, "the card rejected the PIN", err)
	case errors.Is(err, signing.ErrMissingArtifact):
		return NewError(KindMissingArtifact, step, "signing backend returned an incomplete result", err)
	}
	var opErr *cardsession.OperationError
	if errors.As(err, &opErr) {
		return NewError(KindCardOperationFailed, step, "card operation failed", err)
	}
	return NewError(KindNetworkOrService, step, "service call failed", err)
}

func (e *Engine) doGenerate(ctx context.Context, in GenerateInput) error {
	switch {
	case in.SourcePath != "":
		data, err := os.ReadFile(in.SourcePath)
		if err != nil {
			return NewError(KindNetworkOrService, StepGenerate,
				fmt.Sprintf("reading source document %s", in.SourcePath), err)
		}
		e.state.PDFBase64 = base64.StdEncoding.EncodeToString(data)
		e.logger.Info("loaded source document from %s (%d bytes)", in.SourcePath, len(data))

	case in.PDFBase64 != "":
		e.state.PDFBase64 = in.PDFBase64
		e.logger.Info("using caller-supplied source document")

	default:
		resp, err := e.svc.Generate(ctx, in.Request)
		if err != nil {
			return err
		}
		if resp.PDFBase64 == "" {
			return NewError(KindMissingArtifact, StepGenerate,
				"generation service returned no document", nil)
		}
		e.state.PDFBase64 = resp.PDFBase64
		e.logger.Info("generated source document via service")
	}

	e.state.Step = e.state.Step.next()
	return nil
}

func (e *Engine) doPrepare(ctx context.Context) error {
	resp, err := e.svc.Prepare(ctx, backend.PrepareRequest{PDFBase64: e.state.PDFBase64})
	if err != nil {
		return err
	}
	if resp.PreparedPDFBase64 == "" || resp.MessageDigestB64 == "" {
		return NewError(KindMissingArtifact, StepPrepare,
			"preparation service returned an incomplete document", nil)
	}

	e.state.PreparedPDFBase64 = resp.PreparedPDFBase64
	e.state.ByteRange = resp.ByteRange
	e.state.MessageDigestB64 = resp.MessageDigestB64
	e.state.ExpectedDigestB64 = resp.ExpectedDigestB64
	e.state.Step = e.state.Step.next()
	e.logger.Info("document prepared, byte range %v", resp.ByteRange)
	return nil
}

func (e *Engine) doSign(ctx context.Context) error {
	be, err := e.backends.BackendFor(e.method, e.creds)
	if err != nil {
		return err
	}

	cert, err := be.ObtainCertificate(ctx)
	if err != nil {
		return err
	}
	if cert == nil || cert.PEM == "" {
		return NewError(KindMissingArtifact, StepSign, "no signer certificate obtained", nil)
	}

	resp, err := e.svc.Presign(ctx, backend.PresignRequest{
		MessageDigestB64:    e.state.MessageDigestB64,
		SignerCertPEM:       cert.PEM,
		CertificateChainPEM: cert.ChainPEM,
	})
	if err != nil {
		return err
	}
	if resp.SignedAttrsDERB64 == "" {
		return NewError(KindMissingArtifact, StepSign,
			"presign service returned no signed attributes", nil)
	}

	chain := resp.CertificateChainPEM
	if len(chain) == 0 {
		chain = cert.ChainPEM
	}

	e.state.SignedAttrsDERB64 = resp.SignedAttrsDERB64
	e.state.SignerCertPEM = cert.PEM
	e.state.CertificateChainPEM = chain
	e.state.Step = e.state.Step.next()
	e.logger.Info("signed attributes built with %s backend", e.method)
	return nil
}

func (e *Engine) doFinalize(ctx context.Context) error {
	be, err := e.backends.BackendFor(e.method, e.creds)
	if err != nil {
		return err
	}

	result, err := be.Sign(ctx, e.state.SignedAttrsDERB64)
	if err != nil {
		return err
	}
	if result == nil || result.SignatureB64 == "" {
		return NewError(KindMissingArtifact, StepFinalize, "no signature obtained", nil)
	}

	// Digest cross-check before anything is embedded. A mismatch means the
	// backend signed different bytes than the service prepared, so the run
	// must not proceed to finalization.
	switch {
	case result.DigestB64 == "":
		e.logger.Warning("backend reported no digest, consistency check skipped")
	case e.state.ExpectedDigestB64 == "":
		e.logger.Warning("service reported no expected digest, consistency check skipped")
	case !digest.Consistent(e.state.ExpectedDigestB64, result.DigestB64):
		return NewError(KindDigestMismatch, StepFinalize,
			"backend-reported digest does not match the prepared digest", nil)
	default:
		e.logger.Debug("backend-reported digest matches the prepared digest")
	}

	resp, err := e.svc.Finalize(ctx, backend.FinalizeRequest{
		PreparedPDFBase64:   e.state.PreparedPDFBase64,
		ByteRange:           e.state.ByteRange,
		SignedAttrsDERB64:   e.state.SignedAttrsDERB64,
		SignatureB64:        result.SignatureB64,
		SignerCertPEM:       e.state.SignerCertPEM,
		CertificateChainPEM: e.state.CertificateChainPEM,
	})
	if err != nil {
		return err
	}
	if resp.SignedPDFBase64 == "" {
		return NewError(KindMissingArtifact, StepFinalize,
			"finalization service returned no signed document", nil)
	}

	e.state.SignatureB64 = result.SignatureB64
	e.state.SignedPDFBase64 = resp.SignedPDFBase64
	e.state.Step = e.state.Step.next()
	e.logger.Info("signature and trust timestamp embedded")
	return nil
}

func (e *Engine) doVerify(ctx context.Context) error {
	resp, err := e.svc.Verify(ctx, backend.VerifyRequest{SignedPDFBase64: e.state.SignedPDFBase64})
	if err != nil {
		return err
	}
	if !resp.Valid {
		msg := "signed document failed verification"
		if resp.Details != "" {
			msg = fmt.Sprintf("%s: %s", msg, resp.Details)
		}
		return NewError(KindNetworkOrService, StepVerify, msg, nil)
	}

	e.state.Step = e.state.Step.next()
	e.logger.Info("signed document verified")
	return nil
}
