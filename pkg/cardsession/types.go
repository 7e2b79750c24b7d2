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

package cardsession

// Session is the middleware session state held by the client. The middleware
// exposes no close or logout call; the session is dropped together with the
// client instance.
type Session struct {
	// ID is the opaque session token. Treat as secret: only a short prefix
	// may appear in logs.
	ID string
	// TimeoutSeconds is the inactivity timeout requested at open.
	TimeoutSeconds int
	// ServiceVersion is the middleware version string.
	ServiceVersion string
	// IsProduction distinguishes real middleware from a test instance.
	IsProduction bool
}

// Reader is one physical card reader reported by the middleware.
type Reader struct {
	// Name is the PC/SC reader name, used as the key for connect calls.
	Name string
	// SlotType is the middleware slot-type discriminator.
	SlotType int
}

// CardInfo is the identity material read from a card. Produced once per
// read; immutable.
type CardInfo struct {
	SerialNumber          string
	ValidityDate          string
	CardType              string
	Profession            string
	ProfessionDescription string
	Speciality            string
	SpecialityDescription string
	HolderName            string
	HolderGivenName       string
	InternalID            string
	CertificatePEM        string
}

// SignResult is the outcome of a card signing operation. DigestB64 is the
// digest the card computed internally; older middleware versions omit it.
type SignResult struct {
	SignatureB64   string
	CertificatePEM string
	DigestB64      string
}

// Middleware wire messages. The middleware uses Hungarian-prefixed field
// names (s_ string, i_ integer) and reports success via s_status == "OK".

type statusResponse struct {
	Status    string `json:"s_status"`
	Error     string `json:"s_error,omitempty"`
	ErrorCode int    `json:"i_errorCode,omitempty"`
	ErrorType int    `json:"i_errorType,omitempty"`
}

type registrationCheckRequest struct {
	DCParameter string `json:"s_dcparameter"`
}

type registrationCheckResponse struct {
	statusResponse
	Registered int `json:"i_registered"`
}

type registerRequest struct {
	DCParameter string `json:"s_dcparameter"`
}

type openSessionRequest struct {
	TimeoutSeconds int `json:"i_timeoutInSeconds"`
}

type openSessionResponse struct {
	statusResponse
	SessionID      string `json:"s_sessionId"`
	ServiceVersion string `json:"s_serviceVersion"`
	Production     int    `json:"i_production"`
}

type sessionRequest struct {
	SessionID string `json:"s_sessionId"`
}

type readersResponse struct {
	statusResponse
	Readers []wireReader `json:"Readers"`
}

type wireReader struct {
	Name     string `json:"s_name"`
	SlotType int    `json:"i_slotType"`
}

type connectCardRequest struct {
	SessionID  string `json:"s_sessionId"`
	ReaderName string `json:"s_readerName"`
}

type readCardRequest struct {
	SessionID  string `json:"s_sessionId"`
	ReaderName string `json:"s_readerName"`
	PINCode    string `json:"s_pinCode"`
}

type readCardResponse struct {
	statusResponse
	SerialNumber          string `json:"s_serialNumber"`
	ValidityDate          string `json:"s_validityDate"`
	CardType              string `json:"s_cardType"`
	Profession            string `json:"s_profession"`
	ProfessionDescription string `json:"s_professionDescription"`
	Speciality            string `json:"s_speciality"`
	SpecialityDescription string `json:"s_specialityDescription"`
	HolderName            string `json:"s_name"`
	HolderGivenName       string `json:"s_given"`
	InternalID            string `json:"s_internalId"`
	CertificatePEM        string `json:"s_certificatePem"`
}

type signRequest struct {
	SessionID    string `json:"s_sessionId"`
	ReaderName   string `json:"s_readerName"`
	PINCode      string `json:"s_pinCode"`
	ToSignBase64 string `json:"s_stringToSignInBase64"`
	DigestType   int    `json:"i_digestType"`
}

type signResponse struct {
	statusResponse
	SignatureB64   string `json:"s_signatureInBase64"`
	CertificatePEM string `json:"s_certificatePem"`
	DigestB64      string `json:"s_digestInBase64"`
}
