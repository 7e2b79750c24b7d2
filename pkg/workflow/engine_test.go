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

package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/clinisign/padesflow/pkg/backend"
	"github.com/clinisign/padesflow/pkg/cardsession"
	"github.com/clinisign/padesflow/pkg/signing"
)

// fakeService records which endpoints were hit and returns canned artifacts.
type fakeService struct {
	calls []string

	generateErr error
	prepareErr  error
	presignErr  error
	finalizeErr error

	expectedDigest string
	verifyValid    bool
	verifyDetails  string
}

func newFakeService() *fakeService {
	return &fakeService{verifyValid: true}
}

func (f *fakeService) Generate(_ context.Context, _ backend.GenerateRequest) (*backend.GenerateResponse, error) {
	f.calls = append(f.calls, "generate")
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return &backend.GenerateResponse{PDFBase64: "cGRm"}, nil
}

func (f *fakeService) Prepare(_ context.Context, req backend.PrepareRequest) (*backend.PrepareResponse, error) {
	f.calls = append(f.calls, "prepare")
	if f.prepareErr != nil {
		return nil, f.prepareErr
	}
	if req.PDFBase64 == "" {
		return nil, fmt.Errorf("prepare called without a document")
	}
	return &backend.PrepareResponse{
		PreparedPDFBase64: "cHJlcGFyZWQ=",
		ByteRange:         [4]int64{0, 100, 200, 50},
		MessageDigestB64:  "bWQ=",
		ExpectedDigestB64: f.expectedDigest,
	}, nil
}

func (f *fakeService) Presign(_ context.Context, req backend.PresignRequest) (*backend.PresignResponse, error) {
	f.calls = append(f.calls, "presign")
	if f.presignErr != nil {
		return nil, f.presignErr
	}
	if req.MessageDigestB64 == "" || req.SignerCertPEM == "" {
		return nil, fmt.Errorf("presign called without digest or certificate")
	}
	return &backend.PresignResponse{SignedAttrsDERB64: "YXR0cnM="}, nil
}

func (f *fakeService) Finalize(_ context.Context, req backend.FinalizeRequest) (*backend.FinalizeResponse, error) {
	f.calls = append(f.calls, "finalize")
	if f.finalizeErr != nil {
		return nil, f.finalizeErr
	}
	if req.SignatureB64 == "" {
		return nil, fmt.Errorf("finalize called without a signature")
	}
	return &backend.FinalizeResponse{SignedPDFBase64: "c2lnbmVk"}, nil
}

func (f *fakeService) Verify(_ context.Context, _ backend.VerifyRequest) (*backend.VerifyResponse, error) {
	f.calls = append(f.calls, "verify")
	return &backend.VerifyResponse{Valid: f.verifyValid, Details: f.verifyDetails}, nil
}

func (f *fakeService) count(endpoint string) int {
	n := 0
	for _, c := range f.calls {
		if c == endpoint {
			n++
		}
	}
	return n
}

// fakeBackend is a call-tracing signing backend.
type fakeBackend struct {
	method signing.Method
	calls  *[]string

	certErr error
	signErr error
	digest  string
}

func (f *fakeBackend) ObtainCertificate(_ context.Context) (*signing.Certificate, error) {
	*f.calls = append(*f.calls, f.method.String()+".cert")
	if f.certErr != nil {
		return nil, f.certErr
	}
	return &signing.Certificate{PEM: "-----BEGIN CERTIFICATE-----\nZmFrZQ==\n-----END CERTIFICATE-----\n"}, nil
}

func (f *fakeBackend) Sign(_ context.Context, _ string) (*signing.SignResult, error) {
	*f.calls = append(*f.calls, f.method.String()+".sign")
	if f.signErr != nil {
		return nil, f.signErr
	}
	return &signing.SignResult{SignatureB64: "c2ln", DigestB64: f.digest}, nil
}

// fakeProvider hands out one fakeBackend per method and records every
// BackendFor resolution, so tests can prove the branches stay separate.
type fakeProvider struct {
	calls    []string
	backends map[signing.Method]*fakeBackend
}

func newFakeProvider() *fakeProvider {
	p := &fakeProvider{backends: map[signing.Method]*fakeBackend{}}
	for _, m := range []signing.Method{signing.MethodMock, signing.MethodCardSession, signing.MethodPKCS11} {
		p.backends[m] = &fakeBackend{method: m, calls: &p.calls}
	}
	return p
}

func (p *fakeProvider) BackendFor(method signing.Method, _ signing.Credentials) (signing.Backend, error) {
	p.calls = append(p.calls, "resolve."+method.String())
	return p.backends[method], nil
}

func newTestEngine(t *testing.T, svc *fakeService, provider *fakeProvider) *Engine {
	t.Helper()
	eng, err := NewEngine(EngineOptions{Service: svc, Backends: provider})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return eng
}

func TestEngine_AdvancesOneStepPerCall(t *testing.T) {
	svc := newFakeService()
	eng := newTestEngine(t, svc, newFakeProvider())
	ctx := context.Background()

	if got := eng.State().Step; got != StepGenerate {
		t.Fatalf("initial step = %v, want %v", got, StepGenerate)
	}

	steps := []struct {
		run  func() error
		want Step
	}{
		{func() error { return eng.Generate(ctx, GenerateInput{}) }, StepPrepare},
		{func() error { return eng.Prepare(ctx) }, StepSign},
		{func() error { return eng.Sign(ctx) }, StepFinalize},
		{func() error { return eng.Finalize(ctx) }, StepVerify},
		{func() error { return eng.Verify(ctx) }, StepCompleted},
	}
	for _, s := range steps {
		if err := s.run(); err != nil {
			t.Fatalf("step toward %v failed: %v", s.want, err)
		}
		if got := eng.State().Step; got != s.want {
			t.Fatalf("step = %v, want %v", got, s.want)
		}
	}

	st := eng.State()
	if st.SignedPDFBase64 == "" || st.SignatureB64 == "" || st.SignedAttrsDERB64 == "" {
		t.Errorf("completed run is missing artifacts: %+v", st)
	}
}

func TestEngine_StepsRejectOutOfOrderCalls(t *testing.T) {
	svc := newFakeService()
	eng := newTestEngine(t, svc, newFakeProvider())
	ctx := context.Background()

	if err := eng.Finalize(ctx); !IsKind(err, KindNotReady) {
		t.Fatalf("Finalize at generate = %v, want NotReady", err)
	}
	if err := eng.Verify(ctx); !IsKind(err, KindNotReady) {
		t.Fatalf("Verify at generate = %v, want NotReady", err)
	}
	if len(svc.calls) != 0 {
		t.Errorf("service was called for not-ready steps: %v", svc.calls)
	}
	if got := eng.State().Step; got != StepGenerate {
		t.Errorf("step = %v, want %v", got, StepGenerate)
	}
}

func TestEngine_ResetClearsArtifacts(t *testing.T) {
	eng := newTestEngine(t, newFakeService(), newFakeProvider())
	ctx := context.Background()

	if err := eng.Generate(ctx, GenerateInput{}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if err := eng.Prepare(ctx); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	eng.Reset()

	st := eng.State()
	if st.Step != StepGenerate {
		t.Errorf("step after reset = %v, want %v", st.Step, StepGenerate)
	}
	if st.PDFBase64 != "" || st.PreparedPDFBase64 != "" || st.MessageDigestB64 != "" {
		t.Errorf("artifacts survived reset: %+v", st)
	}
}

func TestReady_SignCredentialPredicates(t *testing.T) {
	slot := 1
	tests := []struct {
		name   string
		method signing.Method
		creds  signing.Credentials
		ready  bool
	}{
		{"mock needs nothing", signing.MethodMock, signing.Credentials{}, true},
		{"card complete", signing.MethodCardSession, signing.Credentials{PIN: "1234", Reader: "Reader 0"}, true},
		{"card pin too short", signing.MethodCardSession, signing.Credentials{PIN: "123", Reader: "Reader 0"}, false},
		{"card no reader", signing.MethodCardSession, signing.Credentials{PIN: "1234"}, false},
		{"pkcs11 complete", signing.MethodPKCS11, signing.Credentials{PIN: "1234", SlotID: &slot, CertLabel: "sig"}, true},
		{"pkcs11 no slot", signing.MethodPKCS11, signing.Credentials{PIN: "1234", CertLabel: "sig"}, false},
		{"pkcs11 no label", signing.MethodPKCS11, signing.Credentials{PIN: "1234", SlotID: &slot}, false},
		{"pkcs11 pin too short", signing.MethodPKCS11, signing.Credentials{PIN: "123", SlotID: &slot, CertLabel: "sig"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			eng := newTestEngine(t, newFakeService(), newFakeProvider())
			eng.SetMethod(tc.method)
			eng.SetCredentials(tc.creds)
			eng.state.Step = StepSign
			eng.state.MessageDigestB64 = "bWQ="

			err := eng.Ready(StepSign)
			if tc.ready && err != nil {
				t.Errorf("Ready(sign) = %v, want nil", err)
			}
			if !tc.ready && !IsKind(err, KindNotReady) {
				t.Errorf("Ready(sign) = %v, want NotReady", err)
			}
		})
	}
}

func TestEngine_BackendBranchesStaySeparate(t *testing.T) {
	tests := []struct {
		name   string
		method signing.Method
		creds  signing.Credentials
	}{
		{"mock", signing.MethodMock, signing.Credentials{}},
		{"card", signing.MethodCardSession, signing.Credentials{PIN: "1234", Reader: "Reader 0"}},
		{"pkcs11", signing.MethodPKCS11, signing.Credentials{PIN: "123456", SlotID: intPtr(0), CertLabel: "sig"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			provider := newFakeProvider()
			eng := newTestEngine(t, newFakeService(), provider)
			eng.SetMethod(tc.method)
			eng.SetCredentials(tc.creds)
			ctx := context.Background()

			if err := eng.Run(ctx, GenerateInput{}); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			want := tc.method.String()
			for _, call := range provider.calls {
				if got := methodOfCall(call); got != want {
					t.Errorf("backend call %q crossed into another branch (run used %s)", call, want)
				}
			}
		})
	}
}

func methodOfCall(call string) string {
	if rest, ok := strings.CutPrefix(call, "resolve."); ok {
		return rest
	}
	if method, _, ok := strings.Cut(call, "."); ok {
		return method
	}
	return call
}

func intPtr(v int) *int { return &v }

func TestFinalize_DigestMismatchAbortsBeforeService(t *testing.T) {
	svc := newFakeService()
	svc.expectedDigest = "AAAA"
	provider := newFakeProvider()
	provider.backends[signing.MethodMock].digest = "BBBB"
	eng := newTestEngine(t, svc, provider)
	ctx := context.Background()

	for _, fn := range []func() error{
		func() error { return eng.Generate(ctx, GenerateInput{}) },
		func() error { return eng.Prepare(ctx) },
		func() error { return eng.Sign(ctx) },
	} {
		if err := fn(); err != nil {
			t.Fatalf("setup step failed: %v", err)
		}
	}

	err := eng.Finalize(ctx)
	if !IsKind(err, KindDigestMismatch) {
		t.Fatalf("Finalize() = %v, want DigestMismatch", err)
	}
	if svc.count("finalize") != 0 {
		t.Errorf("finalize service was called despite digest mismatch")
	}
	if got := eng.State().Step; got != StepFinalize {
		t.Errorf("step = %v, want %v (retryable)", got, StepFinalize)
	}
}

func TestFinalize_PaddingOnlyDigestDifferenceMatches(t *testing.T) {
	svc := newFakeService()
	svc.expectedDigest = "Ab=="
	provider := newFakeProvider()
	provider.backends[signing.MethodMock].digest = "Ab"
	eng := newTestEngine(t, svc, provider)
	ctx := context.Background()

	if err := eng.Run(ctx, GenerateInput{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestFinalize_AbsentDigestSkipsCheck(t *testing.T) {
	svc := newFakeService()
	svc.expectedDigest = "AAAA"
	eng := newTestEngine(t, svc, newFakeProvider())
	ctx := context.Background()

	// The mock fake reports no digest; the run must still complete.
	if err := eng.Run(ctx, GenerateInput{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if svc.count("finalize") != 1 {
		t.Errorf("finalize calls = %d, want 1", svc.count("finalize"))
	}
}

func TestSign_WrongPinIsRecoverable(t *testing.T) {
	provider := newFakeProvider()
	provider.backends[signing.MethodCardSession].certErr =
		fmt.Errorf("reading card: %w", cardsession.ErrWrongPin)
	svc := newFakeService()
	eng := newTestEngine(t, svc, provider)
	eng.SetMethod(signing.MethodCardSession)
	eng.SetCredentials(signing.Credentials{PIN: "0000", Reader: "Reader 0"})
	ctx := context.Background()

	if err := eng.Generate(ctx, GenerateInput{}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if err := eng.Prepare(ctx); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	err := eng.Sign(ctx)
	if !IsKind(err, KindWrongPin) {
		t.Fatalf("Sign() = %v, want WrongPin", err)
	}
	if got := eng.State().Step; got != StepSign {
		t.Fatalf("step = %v, want %v", got, StepSign)
	}

	// Corrected PIN, same run: the step retries cleanly.
	provider.backends[signing.MethodCardSession].certErr = nil
	eng.SetCredentials(signing.Credentials{PIN: "1234", Reader: "Reader 0"})
	if err := eng.Sign(ctx); err != nil {
		t.Fatalf("Sign() retry error = %v", err)
	}
	if got := eng.State().Step; got != StepFinalize {
		t.Errorf("step = %v, want %v", got, StepFinalize)
	}
}

func TestEngine_FailedStepLeavesStateUntouched(t *testing.T) {
	svc := newFakeService()
	svc.prepareErr = errors.New("boom")
	eng := newTestEngine(t, svc, newFakeProvider())
	ctx := context.Background()

	if err := eng.Generate(ctx, GenerateInput{}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	before := eng.State()

	err := eng.Prepare(ctx)
	if !IsKind(err, KindNetworkOrService) {
		t.Fatalf("Prepare() = %v, want NetworkOrServiceError", err)
	}

	after := eng.State()
	if after.Step != before.Step || after.PDFBase64 != before.PDFBase64 ||
		after.PreparedPDFBase64 != "" || after.MessageDigestB64 != "" {
		t.Errorf("state changed on failure: before %+v, after %+v", before, after)
	}

	// Same step succeeds on retry once the fault clears.
	svc.prepareErr = nil
	if err := eng.Prepare(ctx); err != nil {
		t.Fatalf("Prepare() retry error = %v", err)
	}
}

func TestVerify_InvalidDocumentIsAnError(t *testing.T) {
	svc := newFakeService()
	svc.verifyValid = false
	svc.verifyDetails = "timestamp token expired"
	eng := newTestEngine(t, svc, newFakeProvider())
	ctx := context.Background()

	err := eng.Run(ctx, GenerateInput{})
	if !IsKind(err, KindNetworkOrService) {
		t.Fatalf("Run() = %v, want NetworkOrServiceError", err)
	}
	if got := eng.State().Step; got != StepVerify {
		t.Errorf("step = %v, want %v", got, StepVerify)
	}
}

func TestEngine_CallerSuppliedDocumentSkipsGeneration(t *testing.T) {
	svc := newFakeService()
	eng := newTestEngine(t, svc, newFakeProvider())

	if err := eng.Generate(context.Background(), GenerateInput{PDFBase64: "bXlwZGY="}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if svc.count("generate") != 0 {
		t.Errorf("generation service called despite caller-supplied document")
	}
	if got := eng.State().PDFBase64; got != "bXlwZGY=" {
		t.Errorf("PDFBase64 = %q, want caller-supplied blob", got)
	}
}
