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

// Step is a workflow state. Steps form a line from StepGenerate to
// StepCompleted; the only other edge is the reset transition from any step
// back to StepGenerate.
type Step int

const (
	// StepGenerate obtains the source PDF (from a file or the service).
	StepGenerate Step = iota
	// StepPrepare calls the preparation service to carve the signature
	// placeholder and compute the digest material.
	StepPrepare
	// StepSign obtains the signer certificate and builds the signed
	// attributes via the presign service.
	StepSign
	// StepFinalize obtains the signature, cross-checks the reported
	// digest, and embeds signature plus trust timestamp.
	StepFinalize
	// StepVerify validates the signed document via the service.
	StepVerify
	// StepCompleted is the terminal state.
	StepCompleted
)

// String returns the step name.
func (s Step) String() string {
	switch s {
	case StepGenerate:
		return "generate"
	case StepPrepare:
		return "prepare"
	case StepSign:
		return "sign"
	case StepFinalize:
		return "finalize"
	case StepVerify:
		return "verify"
	case StepCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// next returns the step following s on the line.
func (s Step) next() Step {
	if s >= StepCompleted {
		return StepCompleted
	}
	return s + 1
}

// State is the single source of truth for one signing run.
//
// Each step's action populates exactly the fields the next step requires;
// no step mutates fields owned by an earlier step. State is mutated
// exclusively by Engine step handlers and only after a step fully succeeds,
// so a failed step leaves the run retryable.
type State struct {
	// Step is the current workflow position.
	Step Step

	// PDFBase64 is the unsigned source document. Owned by generate.
	PDFBase64 string

	// PreparedPDFBase64 is the document with the signature placeholder.
	// Owned by prepare, together with ByteRange, MessageDigestB64 and
	// ExpectedDigestB64.
	PreparedPDFBase64 string
	// ByteRange marks the signature placeholder boundaries.
	ByteRange [4]int64
	// MessageDigestB64 is the digest over the prepared document.
	MessageDigestB64 string
	// ExpectedDigestB64 is the digest the service computed over the signed
	// attributes, used for the consistency cross-check. May be empty.
	ExpectedDigestB64 string

	// SignedAttrsDERB64 is the DER-encoded attribute set to be signed.
	// Owned by sign, together with the certificate fields.
	SignedAttrsDERB64 string
	// SignerCertPEM is the signer certificate.
	SignerCertPEM string
	// CertificateChainPEM is the certificate chain, leaf first.
	CertificateChainPEM []string

	// SignatureB64 is the backend-produced signature. Owned by finalize,
	// together with SignedPDFBase64.
	SignatureB64 string
	// SignedPDFBase64 is the finalized, timestamped document.
	SignedPDFBase64 string
}

// hasByteRange reports whether prepare populated the byte range.
func (s *State) hasByteRange() bool {
	return s.ByteRange != [4]int64{}
}
