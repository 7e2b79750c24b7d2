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

package mockservice

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/clinisign/padesflow/pkg/backend"
)

// Artifact scheme. Every derived artifact is a function of its input bytes,
// so prepare can predict the digest that sign will later report:
//
//	messageDigest = sha256(preparedPDF)
//	signedAttrs   = attrsPrefix || messageDigest
//	expectedDigest = sha256(signedAttrs)
//	signature     = sha256(signedAttrs || sigSuffix)
const (
	attrsPrefix      = "SIGNED-ATTRS\x00"
	sigSuffix        = "\x00MOCK-SIGNATURE"
	placeholderMark  = "\n%placeholder 0000000000%"
	signatureMarkFmt = "\n%%signature %s%%"
)

func signedAttrsFor(messageDigest []byte) []byte {
	return append([]byte(attrsPrefix), messageDigest...)
}

func digestOf(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

func signatureFor(signedAttrs []byte) []byte {
	return digestOf(append(append([]byte{}, signedAttrs...), []byte(sigSuffix)...))
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req backend.GenerateRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	title := req.Title
	if title == "" {
		title = "Sample document"
	}
	author := req.Author
	if author == "" {
		author = "padesflow"
	}

	doc := fmt.Sprintf("%%PDF-1.7\n%% mock document\n%% title: %s\n%% author: %s\n%% created: %s\n%%%%EOF\n",
		title, author, time.Now().UTC().Format(time.RFC3339))

	s.writeJSON(w, http.StatusOK, backend.GenerateResponse{
		PDFBase64: base64.StdEncoding.EncodeToString([]byte(doc)),
		Logs: []backend.WireLogEntry{
			{Level: "info", Source: "backend", Message: fmt.Sprintf("generated document %q", title)},
		},
	})
}

func (s *Server) handlePrepare(w http.ResponseWriter, r *http.Request) {
	var req backend.PrepareRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	pdf, err := base64.StdEncoding.DecodeString(req.PDFBase64)
	if err != nil || len(pdf) == 0 {
		s.writeJSON(w, http.StatusUnprocessableEntity, backend.ErrorEnvelope{
			Code: "PDF_MALFORMED", Message: "pdfBase64 is empty or not base64",
		})
		return
	}

	prepared := append(append([]byte{}, pdf...), []byte(placeholderMark)...)
	messageDigest := digestOf(prepared)
	expected := digestOf(signedAttrsFor(messageDigest))

	s.writeJSON(w, http.StatusOK, backend.PrepareResponse{
		PreparedPDFBase64: base64.StdEncoding.EncodeToString(prepared),
		ByteRange:         [4]int64{0, int64(len(pdf)), int64(len(pdf) + 12), 12},
		MessageDigestB64:  base64.StdEncoding.EncodeToString(messageDigest),
		ExpectedDigestB64: base64.StdEncoding.EncodeToString(expected),
		Logs: []backend.WireLogEntry{
			{Level: "info", Source: "backend", Message: "signature placeholder carved"},
		},
	})
}

func (s *Server) handlePresign(w http.ResponseWriter, r *http.Request) {
	var req backend.PresignRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	messageDigest, err := base64.StdEncoding.DecodeString(req.MessageDigestB64)
	if err != nil || len(messageDigest) == 0 {
		s.writeJSON(w, http.StatusUnprocessableEntity, backend.ErrorEnvelope{
			Code: "DIGEST_MALFORMED", Message: "messageDigestB64 is empty or not base64",
		})
		return
	}
	if req.SignerCertPEM == "" {
		s.writeJSON(w, http.StatusUnprocessableEntity, backend.ErrorEnvelope{
			Code: "CERT_MISSING", Message: "signerCertPem is required",
		})
		return
	}

	s.writeJSON(w, http.StatusOK, backend.PresignResponse{
		SignedAttrsDERB64:   base64.StdEncoding.EncodeToString(signedAttrsFor(messageDigest)),
		CertificateChainPEM: req.CertificateChainPEM,
	})
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	var req backend.FinalizeRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	prepared, err := base64.StdEncoding.DecodeString(req.PreparedPDFBase64)
	if err != nil || len(prepared) == 0 || req.SignatureB64 == "" || req.SignerCertPEM == "" {
		s.writeJSON(w, http.StatusUnprocessableEntity, backend.ErrorEnvelope{
			Code: "FINALIZE_INCOMPLETE", Message: "prepared document, signature and certificate are required",
		})
		return
	}

	signed := append(prepared, []byte(fmt.Sprintf(signatureMarkFmt, req.SignatureB64))...)
	s.writeJSON(w, http.StatusOK, backend.FinalizeResponse{
		SignedPDFBase64: base64.StdEncoding.EncodeToString(signed),
		Logs: []backend.WireLogEntry{
			{Level: "info", Source: "backend", Message: "signature and timestamp embedded"},
		},
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req backend.VerifyRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	signed, err := base64.StdEncoding.DecodeString(req.SignedPDFBase64)
	if err != nil {
		s.writeJSON(w, http.StatusUnprocessableEntity, backend.ErrorEnvelope{
			Code: "PDF_MALFORMED", Message: "signedPdfBase64 is not base64",
		})
		return
	}

	if !bytes.Contains(signed, []byte("\n%signature ")) {
		s.writeJSON(w, http.StatusOK, backend.VerifyResponse{
			Valid: false, Details: "document carries no embedded signature",
		})
		return
	}
	s.writeJSON(w, http.StatusOK, backend.VerifyResponse{Valid: true})
}

func (s *Server) handleMockCert(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, backend.MockCertResponse{CertificatePEM: s.certPEM})
}

func (s *Server) handleMockSign(w http.ResponseWriter, r *http.Request) {
	var req backend.MockSignRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.DataB64)
	if err != nil || len(data) == 0 {
		s.writeJSON(w, http.StatusUnprocessableEntity, backend.ErrorEnvelope{
			Code: "DATA_MALFORMED", Message: "dataB64 is empty or not base64",
		})
		return
	}

	s.writeJSON(w, http.StatusOK, backend.MockSignResponse{
		SignatureB64: base64.StdEncoding.EncodeToString(signatureFor(data)),
		DigestB64:    base64.StdEncoding.EncodeToString(digestOf(data)),
	})
}

func (s *Server) handleSlots(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, backend.PKCS11SlotsResponse{
		Slots: []backend.PKCS11Slot{{ID: 0, Label: "Mock HSM", Description: "simulated token"}},
	})
}

func (s *Server) handleCertificates(w http.ResponseWriter, r *http.Request) {
	var req backend.PKCS11CertificatesRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	if req.PIN != s.goodPIN {
		s.writeJSON(w, http.StatusUnauthorized, backend.ErrorEnvelope{
			Code: "PIN_REJECTED", Message: "token rejected the PIN",
		})
		return
	}
	s.writeJSON(w, http.StatusOK, backend.PKCS11CertificatesResponse{
		Certificates: []backend.PKCS11Certificate{{Label: "signature", CertificatePEM: s.certPEM}},
	})
}

func (s *Server) handlePKCS11Sign(w http.ResponseWriter, r *http.Request) {
	var req backend.PKCS11SignRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	if req.PIN != s.goodPIN {
		s.writeJSON(w, http.StatusUnauthorized, backend.ErrorEnvelope{
			Code: "PIN_REJECTED", Message: "token rejected the PIN",
		})
		return
	}
	if req.CertificateLabel != "signature" {
		s.writeJSON(w, http.StatusUnprocessableEntity, backend.ErrorEnvelope{
			Code: "LABEL_UNKNOWN", Message: fmt.Sprintf("no certificate labeled %q", req.CertificateLabel),
		})
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.DataB64)
	if err != nil || len(data) == 0 {
		s.writeJSON(w, http.StatusUnprocessableEntity, backend.ErrorEnvelope{
			Code: "DATA_MALFORMED", Message: "dataB64 is empty or not base64",
		})
		return
	}

	s.writeJSON(w, http.StatusOK, backend.PKCS11SignResponse{
		SignatureB64:   base64.StdEncoding.EncodeToString(signatureFor(data)),
		DigestB64:      base64.StdEncoding.EncodeToString(digestOf(data)),
		CertificatePEM: s.certPEM,
	})
}

func (s *Server) handleDCParameter(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, backend.DCParameterResponse{DCParameter: "mock-dc-parameter"})
}
