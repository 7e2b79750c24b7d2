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

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakeDescriptor serves a fixed DC parameter and counts loads.
type fakeDescriptor struct {
	param string
	loads int
}

func (f *fakeDescriptor) DCParameter(_ context.Context) (string, error) {
	f.loads++
	return f.param, nil
}

// fakeMiddleware is an httptest middleware speaking the Hungarian-prefixed
// wire protocol, counting calls per endpoint.
type fakeMiddleware struct {
	t     *testing.T
	calls map[string]int

	registered bool
	goodPIN    string
	readers    []map[string]interface{}
	digestB64  string
}

func newFakeMiddleware(t *testing.T) *fakeMiddleware {
	t.Helper()
	return &fakeMiddleware{
		t:       t,
		calls:   map[string]int{},
		goodPIN: "1234",
		readers: []map[string]interface{}{
			{"s_name": "Gemalto Reader 0", "i_slotType": 3},
			{"s_name": "NFC Reader", "i_slotType": 1},
			{"s_name": "Virtual Slot", "i_slotType": 2},
		},
	}
}

func (m *fakeMiddleware) serve() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(m.handle))
}

func (m *fakeMiddleware) handle(w http.ResponseWriter, r *http.Request) {
	m.calls[r.URL.Path]++

	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		m.t.Errorf("undecodable body on %s: %v", r.URL.Path, err)
	}

	ok := map[string]interface{}{"s_status": "OK"}
	switch r.URL.Path {
	case "/remotecommand/isDcParameterRegistered":
		reg := 0
		if m.registered {
			reg = 1
		}
		ok["i_registered"] = reg

	case "/remotecommand/registerDcParameter":
		m.registered = true

	case "/api/hl_opensession":
		ok["s_sessionId"] = "0123456789abcdef"
		ok["s_serviceVersion"] = "4.2.0"
		ok["i_production"] = 0

	case "/api/hl_getpcscreaders":
		m.requireSession(body)
		ok["Readers"] = m.readers

	case "/api/hl_getcpxcard":
		m.requireSession(body)

	case "/api/hl_readcpxcard":
		m.requireSession(body)
		if body["s_pinCode"] != m.goodPIN {
			m.writeJSON(w, map[string]interface{}{
				"s_status": "KO", "s_error": "invalid PIN", "i_errorCode": 7, "i_errorType": 1,
			})
			return
		}
		ok["s_name"] = "DUPONT"
		ok["s_given"] = "JEAN"
		ok["s_cardType"] = "CPS"
		ok["s_certificatePem"] = "-----BEGIN CERTIFICATE-----\nZmFrZQ==\n-----END CERTIFICATE-----\n"

	case "/api/hl_signwithcpxcard":
		m.requireSession(body)
		if body["s_pinCode"] != m.goodPIN {
			m.writeJSON(w, map[string]interface{}{
				"s_status": "KO", "s_error": "invalid PIN", "i_errorCode": 7, "i_errorType": 1,
			})
			return
		}
		if dt, _ := body["i_digestType"].(float64); int(dt) != 1 {
			m.writeJSON(w, map[string]interface{}{"s_status": "KO", "s_error": "unsupported digest type"})
			return
		}
		ok["s_signatureInBase64"] = "c2lnbmF0dXJl"
		ok["s_digestInBase64"] = m.digestB64

	default:
		m.t.Errorf("unexpected middleware path %s", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		return
	}
	m.writeJSON(w, ok)
}

func (m *fakeMiddleware) requireSession(body map[string]interface{}) {
	if body["s_sessionId"] != "0123456789abcdef" {
		m.t.Errorf("call without the opened session id: %v", body["s_sessionId"])
	}
}

func (m *fakeMiddleware) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		m.t.Errorf("encoding response: %v", err)
	}
}

func newTestClient(t *testing.T, srv *httptest.Server) (*Client, *fakeDescriptor) {
	t.Helper()
	desc := &fakeDescriptor{param: "dc-parameter-value"}
	client, err := NewClient(ClientOptions{
		MiddlewareURL: srv.URL,
		Descriptor:    desc,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client, desc
}

func TestListReaders_FiltersNonCardSlots(t *testing.T) {
	mw := newFakeMiddleware(t)
	srv := mw.serve()
	defer srv.Close()
	client, _ := newTestClient(t, srv)

	readers, err := client.ListReaders(context.Background())
	if err != nil {
		t.Fatalf("ListReaders() error = %v", err)
	}
	if len(readers) != 1 {
		t.Fatalf("ListReaders() returned %d readers, want 1", len(readers))
	}
	if readers[0].Name != "Gemalto Reader 0" || readers[0].SlotType != 3 {
		t.Errorf("ListReaders() = %+v, want the slot-type-3 reader", readers[0])
	}
}

func TestReadCard_WrongPinIsDistinguished(t *testing.T) {
	mw := newFakeMiddleware(t)
	srv := mw.serve()
	defer srv.Close()
	client, _ := newTestClient(t, srv)

	_, err := client.ReadCard(context.Background(), "Gemalto Reader 0", "0000")
	if !errors.Is(err, ErrWrongPin) {
		t.Fatalf("ReadCard() with wrong PIN = %v, want ErrWrongPin", err)
	}

	// Same client, corrected PIN: the handshake state survives.
	info, err := client.ReadCard(context.Background(), "Gemalto Reader 0", "1234")
	if err != nil {
		t.Fatalf("ReadCard() retry error = %v", err)
	}
	if info.HolderName != "DUPONT" || info.CertificatePEM == "" {
		t.Errorf("ReadCard() = %+v, want holder and certificate", info)
	}
}

func TestHandshake_RegistrationAndSessionHappenOnce(t *testing.T) {
	mw := newFakeMiddleware(t)
	srv := mw.serve()
	defer srv.Close()
	client, desc := newTestClient(t, srv)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := client.SignWithCard(ctx, "Gemalto Reader 0", "1234", "dG8tc2lnbg=="); err != nil {
			t.Fatalf("SignWithCard() #%d error = %v", i+1, err)
		}
	}

	if desc.loads != 1 {
		t.Errorf("DC parameter loaded %d times, want 1", desc.loads)
	}
	if got := mw.calls["/remotecommand/isDcParameterRegistered"]; got != 1 {
		t.Errorf("registration checked %d times, want 1", got)
	}
	if got := mw.calls["/remotecommand/registerDcParameter"]; got != 1 {
		t.Errorf("registration performed %d times, want 1", got)
	}
	if got := mw.calls["/api/hl_opensession"]; got != 1 {
		t.Errorf("session opened %d times, want 1", got)
	}
	// Connect is re-issued before every card operation.
	if got := mw.calls["/api/hl_getcpxcard"]; got != 2 {
		t.Errorf("connect issued %d times, want 2", got)
	}
}

func TestHandshake_SkipsRegisterWhenAlreadyRegistered(t *testing.T) {
	mw := newFakeMiddleware(t)
	mw.registered = true
	srv := mw.serve()
	defer srv.Close()
	client, _ := newTestClient(t, srv)

	if _, err := client.ListReaders(context.Background()); err != nil {
		t.Fatalf("ListReaders() error = %v", err)
	}
	if got := mw.calls["/remotecommand/registerDcParameter"]; got != 0 {
		t.Errorf("registration performed %d times, want 0", got)
	}
}

func TestSignWithCard_ReportsCardDigest(t *testing.T) {
	mw := newFakeMiddleware(t)
	mw.digestB64 = "ZGlnZXN0"
	srv := mw.serve()
	defer srv.Close()
	client, _ := newTestClient(t, srv)

	result, err := client.SignWithCard(context.Background(), "Gemalto Reader 0", "1234", "dG8tc2lnbg==")
	if err != nil {
		t.Fatalf("SignWithCard() error = %v", err)
	}
	if result.SignatureB64 != "c2lnbmF0dXJl" {
		t.Errorf("SignatureB64 = %q", result.SignatureB64)
	}
	if result.DigestB64 != "ZGlnZXN0" {
		t.Errorf("DigestB64 = %q, want the card-computed digest", result.DigestB64)
	}
}

func TestCheckStatus_GenericFailureCarriesRawStatus(t *testing.T) {
	err := checkStatus("hl_readcpxcard", statusResponse{Status: "KO", Error: "card removed", ErrorCode: 12})
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("checkStatus() = %v, want OperationError", err)
	}
	if opErr.Status != "KO" || opErr.Detail != "card removed" {
		t.Errorf("OperationError = %+v, want raw status preserved", opErr)
	}
	if errors.Is(err, ErrWrongPin) {
		t.Errorf("generic failure must not map to ErrWrongPin")
	}
}

func TestSessionIDPrefix_TruncatesLongIDs(t *testing.T) {
	if got := sessionIDPrefix("0123456789abcdef"); got != "01234567…" {
		t.Errorf("sessionIDPrefix() = %q", got)
	}
	if got := sessionIDPrefix("short"); got != "short" {
		t.Errorf("sessionIDPrefix() = %q, want unchanged short id", got)
	}
}
