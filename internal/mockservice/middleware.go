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
	"encoding/base64"
	"net/http"

	"github.com/google/uuid"
)

// Card-middleware wire messages, Hungarian-prefixed like the real thing.

type mwStatus struct {
	Status    string `json:"s_status"`
	Error     string `json:"s_error,omitempty"`
	ErrorCode int    `json:"i_errorCode,omitempty"`
	ErrorType int    `json:"i_errorType,omitempty"`
}

var mwOK = mwStatus{Status: "OK"}

func mwWrongPin() mwStatus {
	return mwStatus{Status: "KO", Error: "invalid PIN", ErrorCode: 7, ErrorType: 1}
}

type mwRegisterRequest struct {
	DCParameter string `json:"s_dcparameter"`
}

type mwSessionRequest struct {
	SessionID  string `json:"s_sessionId"`
	ReaderName string `json:"s_readerName,omitempty"`
	PINCode    string `json:"s_pinCode,omitempty"`
}

func (s *Server) handleIsRegistered(w http.ResponseWriter, r *http.Request) {
	var req mwRegisterRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	s.mu.Lock()
	registered := 0
	if s.registered {
		registered = 1
	}
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, struct {
		mwStatus
		Registered int `json:"i_registered"`
	}{mwOK, registered})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req mwRegisterRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	if req.DCParameter == "" {
		s.writeJSON(w, http.StatusOK, mwStatus{Status: "KO", Error: "empty dcparameter"})
		return
	}
	s.mu.Lock()
	s.registered = true
	s.mu.Unlock()
	s.logger.Info("middleware registration accepted")
	s.writeJSON(w, http.StatusOK, mwOK)
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TimeoutSeconds int `json:"i_timeoutInSeconds"`
	}
	if !s.readJSON(w, r, &req) {
		return
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = true
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, struct {
		mwStatus
		SessionID      string `json:"s_sessionId"`
		ServiceVersion string `json:"s_serviceVersion"`
		Production     int    `json:"i_production"`
	}{mwOK, id, "mock-4.2.0", 0})
}

// requireSession checks the session id and writes the failure response when
// it is unknown.
func (s *Server) requireSession(w http.ResponseWriter, sessionID string) bool {
	s.mu.Lock()
	ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		s.writeJSON(w, http.StatusOK, mwStatus{Status: "KO", Error: "unknown session", ErrorCode: 2})
	}
	return ok
}

func (s *Server) handleReaders(w http.ResponseWriter, r *http.Request) {
	var req mwSessionRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	if !s.requireSession(w, req.SessionID) {
		return
	}

	type mwReader struct {
		Name     string `json:"s_name"`
		SlotType int    `json:"i_slotType"`
	}
	s.writeJSON(w, http.StatusOK, struct {
		mwStatus
		Readers []mwReader `json:"Readers"`
	}{mwOK, []mwReader{
		{Name: s.reader, SlotType: 3},
		{Name: "Mock NFC", SlotType: 1},
	}})
}

func (s *Server) handleConnectCard(w http.ResponseWriter, r *http.Request) {
	var req mwSessionRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	if !s.requireSession(w, req.SessionID) {
		return
	}
	if req.ReaderName != s.reader {
		s.writeJSON(w, http.StatusOK, mwStatus{Status: "KO", Error: "no card in reader", ErrorCode: 3})
		return
	}
	s.writeJSON(w, http.StatusOK, mwOK)
}

func (s *Server) handleReadCard(w http.ResponseWriter, r *http.Request) {
	var req mwSessionRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	if !s.requireSession(w, req.SessionID) {
		return
	}
	if req.PINCode != s.goodPIN {
		s.writeJSON(w, http.StatusOK, mwWrongPin())
		return
	}

	s.writeJSON(w, http.StatusOK, struct {
		mwStatus
		SerialNumber   string `json:"s_serialNumber"`
		CardType       string `json:"s_cardType"`
		Profession     string `json:"s_profession"`
		HolderName     string `json:"s_name"`
		HolderGiven    string `json:"s_given"`
		CertificatePEM string `json:"s_certificatePem"`
	}{mwOK, "801234567890", "CPS", "10", "DUPONT", "JEAN", s.certPEM})
}

func (s *Server) handleCardSign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		mwSessionRequest
		ToSignBase64 string `json:"s_stringToSignInBase64"`
		DigestType   int    `json:"i_digestType"`
	}
	if !s.readJSON(w, r, &req) {
		return
	}
	if !s.requireSession(w, req.SessionID) {
		return
	}
	if req.PINCode != s.goodPIN {
		s.writeJSON(w, http.StatusOK, mwWrongPin())
		return
	}
	if req.DigestType != 1 {
		s.writeJSON(w, http.StatusOK, mwStatus{Status: "KO", Error: "unsupported digest type"})
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.ToSignBase64)
	if err != nil || len(data) == 0 {
		s.writeJSON(w, http.StatusOK, mwStatus{Status: "KO", Error: "to-sign data is empty or not base64"})
		return
	}

	s.writeJSON(w, http.StatusOK, struct {
		mwStatus
		SignatureB64   string `json:"s_signatureInBase64"`
		CertificatePEM string `json:"s_certificatePem"`
		DigestB64      string `json:"s_digestInBase64"`
	}{mwOK, base64.StdEncoding.EncodeToString(signatureFor(data)), s.certPEM,
		base64.StdEncoding.EncodeToString(digestOf(data))})
}
