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

package backend

// WireLogEntry is a log entry carried in a service response. The service may
// attach entries produced on its side; the client merges them into the shared
// aggregator.
type WireLogEntry struct {
	Timestamp string                 `json:"timestamp,omitempty"`
	Level     string                 `json:"level"`
	Source    string                 `json:"source,omitempty"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// ErrorEnvelope is the structured failure body returned by the service.
type ErrorEnvelope struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Logs    []WireLogEntry `json:"logs,omitempty"`
}

// GenerateRequest asks the service to produce a fresh sample PDF.
type GenerateRequest struct {
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
}

// GenerateResponse carries the generated document.
type GenerateResponse struct {
	PDFBase64 string         `json:"pdfBase64"`
	Logs      []WireLogEntry `json:"logs,omitempty"`
}

// PrepareRequest carries the source document to prepare for signing.
type PrepareRequest struct {
	PDFBase64 string `json:"pdfBase64"`
}

// PrepareResponse carries the prepared document and its digest material.
// ByteRange is the ordered 4-tuple delimiting the signature placeholder.
// ExpectedDigestB64 is optional; not every service version reports it.
type PrepareResponse struct {
	PreparedPDFBase64 string         `json:"preparedPdfBase64"`
	ByteRange         [4]int64       `json:"byteRange"`
	MessageDigestB64  string         `json:"messageDigestB64"`
	ExpectedDigestB64 string         `json:"expectedDigestB64,omitempty"`
	Logs              []WireLogEntry `json:"logs,omitempty"`
}

// PresignRequest carries the digest and signer certificate used to build the
// signed attributes.
type PresignRequest struct {
	MessageDigestB64    string   `json:"messageDigestB64"`
	SignerCertPEM       string   `json:"signerCertPem"`
	CertificateChainPEM []string `json:"certificateChainPem,omitempty"`
}

// PresignResponse carries the DER-encoded signed attributes to be signed and
// the certificate chain the service resolved, leaf first.
type PresignResponse struct {
	SignedAttrsDERB64   string         `json:"signedAttrsDerB64"`
	CertificateChainPEM []string       `json:"certificateChainPem,omitempty"`
	Logs                []WireLogEntry `json:"logs,omitempty"`
}

// FinalizeRequest carries everything needed to embed the signature and the
// trust timestamp into the prepared document.
type FinalizeRequest struct {
	PreparedPDFBase64   string   `json:"preparedPdfBase64"`
	ByteRange           [4]int64 `json:"byteRange"`
	SignedAttrsDERB64   string   `json:"signedAttrsDerB64"`
	SignatureB64        string   `json:"signatureB64"`
	SignerCertPEM       string   `json:"signerCertPem"`
	CertificateChainPEM []string `json:"certificateChainPem,omitempty"`
}

// FinalizeResponse carries the signed document.
type FinalizeResponse struct {
	SignedPDFBase64 string         `json:"signedPdfBase64"`
	Logs            []WireLogEntry `json:"logs,omitempty"`
}

// VerifyRequest carries the signed document to validate.
type VerifyRequest struct {
	SignedPDFBase64 string `json:"signedPdfBase64"`
}

// VerifyResponse reports the validation outcome.
type VerifyResponse struct {
	Valid   bool           `json:"valid"`
	Details string         `json:"details,omitempty"`
	Logs    []WireLogEntry `json:"logs,omitempty"`
}

// MockCertResponse carries the fixed mock signer certificate.
type MockCertResponse struct {
	CertificatePEM      string         `json:"certificatePem"`
	CertificateChainPEM []string       `json:"certificateChainPem,omitempty"`
	Logs                []WireLogEntry `json:"logs,omitempty"`
}

// MockSignRequest carries the raw to-be-signed bytes for the mock signer.
type MockSignRequest struct {
	DataB64 string `json:"dataB64"`
}

// MockSignResponse carries the mock signature. DigestB64 is optional.
type MockSignResponse struct {
	SignatureB64 string         `json:"signatureB64"`
	DigestB64    string         `json:"digestB64,omitempty"`
	Logs         []WireLogEntry `json:"logs,omitempty"`
}

// PKCS11Slot describes one slot exposed by the PKCS#11 service.
type PKCS11Slot struct {
	ID          int    `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// PKCS11SlotsResponse lists the available slots.
type PKCS11SlotsResponse struct {
	Slots []PKCS11Slot   `json:"slots"`
	Logs  []WireLogEntry `json:"logs,omitempty"`
}

// PKCS11CertificatesRequest asks for the certificates in a slot.
// The PIN is required to open a token session.
type PKCS11CertificatesRequest struct {
	SlotID int    `json:"slotId"`
	PIN    string `json:"pin"`
}

// PKCS11Certificate is one certificate stored on a token.
type PKCS11Certificate struct {
	Label          string `json:"label"`
	CertificatePEM string `json:"certificatePem"`
}

// PKCS11CertificatesResponse lists the certificates in a slot.
type PKCS11CertificatesResponse struct {
	Certificates []PKCS11Certificate `json:"certificates"`
	Logs         []WireLogEntry      `json:"logs,omitempty"`
}

// PKCS11SignRequest asks the token to sign the DER bytes with the key
// matching the certificate label.
type PKCS11SignRequest struct {
	SlotID           int    `json:"slotId"`
	PIN              string `json:"pin"`
	DataB64          string `json:"dataB64"`
	CertificateLabel string `json:"certificateLabel"`
}

// PKCS11SignResponse carries the token signature. DigestB64 is optional.
type PKCS11SignResponse struct {
	SignatureB64   string         `json:"signatureB64"`
	DigestB64      string         `json:"digestB64,omitempty"`
	CertificatePEM string         `json:"certificatePem,omitempty"`
	Logs           []WireLogEntry `json:"logs,omitempty"`
}

// DCParameterResponse carries the opaque connection descriptor the card
// middleware requires before accepting a client.
type DCParameterResponse struct {
	DCParameter string         `json:"dcParameter"`
	Logs        []WireLogEntry `json:"logs,omitempty"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status string `json:"status"`
}
