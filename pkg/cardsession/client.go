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

// Package cardsession is the stateful client for the local smart-card
// middleware. It negotiates the five-stage handshake (descriptor load,
// descriptor registration, session open, reader connect, read/sign) and
// tolerates partial failures (wrong PIN, no readers, session loss) without
// leaking state to the caller: each public operation re-establishes whatever
// stage is missing.
//
// One Client owns at most one middleware session. Sessions have no explicit
// teardown in the middleware contract; they are abandoned when the Client is
// discarded. Concurrent operations on one Client are not supported and must
// be serialized by the caller.
package cardsession

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clinisign/padesflow/pkg/logging"
)

const (
	// sha256DigestType is the middleware selector for SHA-256, the only
	// digest algorithm used in this workflow.
	sha256DigestType = 1

	// cardReaderSlotType marks PC/SC slots that accept health-professional
	// smart cards; other slot types (NFC, virtual) are filtered out.
	cardReaderSlotType = 3

	// wrongPinErrorCode and wrongPinErrorType form the distinguished
	// middleware error pair for a rejected PIN.
	wrongPinErrorCode = 7
	wrongPinErrorType = 1

	// DefaultSessionTimeoutSeconds is the session inactivity timeout
	// requested when none is configured.
	DefaultSessionTimeoutSeconds = 300

	defaultRequestTimeout = 30 * time.Second
)

// ErrWrongPin is returned when the middleware rejects the PIN
// (error code 7, error type 1). The caller should re-prompt rather than
// treat the sign step as fatally failed.
var ErrWrongPin = errors.New("card middleware rejected the PIN")

// OperationError is a generic middleware failure carrying the raw status.
type OperationError struct {
	// Op is the middleware operation that failed.
	Op string
	// Status is the raw s_status value from the response.
	Status string
	// Detail is the middleware error string, if any.
	Detail string
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("card operation %s failed: status %q: %s", e.Op, e.Status, e.Detail)
	}
	return fmt.Sprintf("card operation %s failed: status %q", e.Op, e.Status)
}

// DescriptorSource provides the opaque DC parameter the middleware requires
// before accepting a client. Implemented by the backend client.
type DescriptorSource interface {
	DCParameter(ctx context.Context) (string, error)
}

// ClientOptions configures a Client instance.
type ClientOptions struct {
	// MiddlewareURL is the local middleware origin. [required]
	MiddlewareURL string
	// Descriptor provides the DC parameter. [required]
	Descriptor DescriptorSource
	// SessionTimeoutSeconds is requested at session open.
	// Defaults to DefaultSessionTimeoutSeconds.
	SessionTimeoutSeconds int
	// HTTPClient overrides the transport. Defaults to a fresh http.Client.
	HTTPClient *http.Client
	// RequestTimeout bounds each middleware call. Defaults to 30s.
	RequestTimeout time.Duration
	// Logs receives card-sourced entries. Optional.
	Logs *logging.Aggregator
}

// Client negotiates and holds the middleware handshake state.
//
// The DC parameter is fetched once and cached; registration is checked and
// performed at most once; the session is opened lazily on first use and
// reused for all subsequent calls.
type Client struct {
	middlewareURL  string
	descriptor     DescriptorSource
	sessionTimeout int
	http           *http.Client
	timeout        time.Duration
	logger         logging.Logger

	dcParameter  string
	dcLoaded     bool
	dcRegistered bool
	session      *Session
}

// NewClient creates a middleware client.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.MiddlewareURL == "" {
		return nil, fmt.Errorf("middleware URL is required")
	}
	if opts.Descriptor == nil {
		return nil, fmt.Errorf("descriptor source is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	sessionTimeout := opts.SessionTimeoutSeconds
	if sessionTimeout <= 0 {
		sessionTimeout = DefaultSessionTimeoutSeconds
	}

	logger := logging.Logger(nil)
	if opts.Logs != nil {
		logger = opts.Logs.Source(logging.SourceCard)
	}

	return &Client{
		middlewareURL:  strings.TrimRight(opts.MiddlewareURL, "/"),
		descriptor:     opts.Descriptor,
		sessionTimeout: sessionTimeout,
		http:           httpClient,
		timeout:        timeout,
		logger:         logging.EnsureLogger(logger),
	}, nil
}

// Session returns the current session, or nil before the first operation.
func (c *Client) Session() *Session {
	return c.session
}

// ListReaders returns the smart-card-capable readers currently attached.
func (c *Client) ListReaders(ctx context.Context) ([]Reader, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	var resp readersResponse
	if err := c.call(ctx, "/api/hl_getpcscreaders", sessionRequest{SessionID: c.session.ID}, &resp); err != nil {
		return nil, err
	}
	if err := checkStatus("hl_getpcscreaders", resp.statusResponse); err != nil {
		return nil, err
	}

	readers := make([]Reader, 0, len(resp.Readers))
	for _, r := range resp.Readers {
		if r.SlotType != cardReaderSlotType {
			continue
		}
		readers = append(readers, Reader{Name: r.Name, SlotType: r.SlotType})
	}

	c.logger.Debug("found %d card reader(s)", len(readers))
	return readers, nil
}

// ConnectCard connects to the card in the named reader. Connect is idempotent
// and cheap; read and sign operations re-issue it as a safety margin against
// session drift.
func (c *Client) ConnectCard(ctx context.Context, readerName string) error {
	if err := c.ensureSession(ctx); err != nil {
		return err
	}

	var resp statusResponse
	req := connectCardRequest{SessionID: c.session.ID, ReaderName: readerName}
	if err := c.call(ctx, "/api/hl_getcpxcard", req, &resp); err != nil {
		return err
	}
	if err := checkStatus("hl_getcpxcard", resp); err != nil {
		return err
	}

	c.logger.Debug("connected to card in reader %q", readerName)
	return nil
}

// ReadCard connects to the card and reads its holder and certificate data.
func (c *Client) ReadCard(ctx context.Context, readerName, pin string) (*CardInfo, error) {
	if err := c.ConnectCard(ctx, readerName); err != nil {
		return nil, err
	}

	var resp readCardResponse
	req := readCardRequest{SessionID: c.session.ID, ReaderName: readerName, PINCode: pin}
	if err := c.call(ctx, "/api/hl_readcpxcard", req, &resp); err != nil {
		return nil, err
	}
	if err := checkStatus("hl_readcpxcard", resp.statusResponse); err != nil {
		return nil, err
	}

	info := &CardInfo{
		SerialNumber:          resp.SerialNumber,
		ValidityDate:          resp.ValidityDate,
		CardType:              resp.CardType,
		Profession:            resp.Profession,
		ProfessionDescription: resp.ProfessionDescription,
		Speciality:            resp.Speciality,
		SpecialityDescription: resp.SpecialityDescription,
		HolderName:            resp.HolderName,
		HolderGivenName:       resp.HolderGivenName,
		InternalID:            resp.InternalID,
		CertificatePEM:        resp.CertificatePEM,
	}

	c.logger.Info("card read: %s %s (%s)", info.HolderGivenName, info.HolderName, info.CardType)
	return info, nil
}

// SignWithCard connects to the card and signs the base64-encoded
// to-be-signed bytes. The card hashes the input internally with SHA-256;
// when the middleware supports it, the computed digest is reported back in
// the result for cross-checking.
func (c *Client) SignWithCard(ctx context.Context, readerName, pin, toBeSignedB64 string) (*SignResult, error) {
	if err := c.ConnectCard(ctx, readerName); err != nil {
		return nil, err
	}

	var resp signResponse
	req := signRequest{
		SessionID:    c.session.ID,
		ReaderName:   readerName,
		PINCode:      pin,
		ToSignBase64: toBeSignedB64,
		DigestType:   sha256DigestType,
	}
	if err := c.call(ctx, "/api/hl_signwithcpxcard", req, &resp); err != nil {
		return nil, err
	}
	if err := checkStatus("hl_signwithcpxcard", resp.statusResponse); err != nil {
		return nil, err
	}

	c.logger.Success("card produced signature (%d base64 chars)", len(resp.SignatureB64))
	return &SignResult{
		SignatureB64:   resp.SignatureB64,
		CertificatePEM: resp.CertificatePEM,
		DigestB64:      resp.DigestB64,
	}, nil
}

// ensureDCParameter loads and caches the connection descriptor.
func (c *Client) ensureDCParameter(ctx context.Context) error {
	if c.dcLoaded {
		return nil
	}

	param, err := c.descriptor.DCParameter(ctx)
	if err != nil {
		return fmt.Errorf("loading DC parameter: %w", err)
	}
	param = strings.TrimSpace(param)
	if param == "" {
		return fmt.Errorf("backend returned an empty DC parameter")
	}

	c.dcParameter = param
	c.dcLoaded = true
	c.logger.Debug("DC parameter loaded (%d chars)", len(param))
	return nil
}

// ensureRegistered registers the descriptor with the middleware if it is not
// registered yet. The result is cached so repeat operations skip the check.
func (c *Client) ensureRegistered(ctx context.Context) error {
	if c.dcRegistered {
		return nil
	}
	if err := c.ensureDCParameter(ctx); err != nil {
		return err
	}

	var check registrationCheckResponse
	req := registrationCheckRequest{DCParameter: c.dcParameter}
	if err := c.call(ctx, "/remotecommand/isDcParameterRegistered", req, &check); err != nil {
		return err
	}
	if err := checkStatus("isDcParameterRegistered", check.statusResponse); err != nil {
		return err
	}

	if check.Registered == 0 {
		var resp statusResponse
		if err := c.call(ctx, "/remotecommand/registerDcParameter", registerRequest{DCParameter: c.dcParameter}, &resp); err != nil {
			return err
		}
		if err := checkStatus("registerDcParameter", resp); err != nil {
			return err
		}
		c.logger.Info("DC parameter registered with middleware")
	} else {
		c.logger.Debug("DC parameter already registered")
	}

	c.dcRegistered = true
	return nil
}

// ensureSession opens the middleware session on first use and reuses it
// afterwards.
func (c *Client) ensureSession(ctx context.Context) error {
	if c.session != nil {
		return nil
	}
	if err := c.ensureRegistered(ctx); err != nil {
		return err
	}

	var resp openSessionResponse
	if err := c.call(ctx, "/api/hl_opensession", openSessionRequest{TimeoutSeconds: c.sessionTimeout}, &resp); err != nil {
		return err
	}
	if err := checkStatus("hl_opensession", resp.statusResponse); err != nil {
		return err
	}
	if resp.SessionID == "" {
		return &OperationError{Op: "hl_opensession", Status: resp.Status, Detail: "no session id returned"}
	}

	c.session = &Session{
		ID:             resp.SessionID,
		TimeoutSeconds: c.sessionTimeout,
		ServiceVersion: resp.ServiceVersion,
		IsProduction:   resp.Production != 0,
	}

	c.logger.Info("session %s opened (middleware %s, production=%t)",
		sessionIDPrefix(resp.SessionID), resp.ServiceVersion, c.session.IsProduction)
	return nil
}

// call posts a JSON body to the middleware and decodes the response.
func (c *Client) call(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.middlewareURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling middleware %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading middleware %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{Op: path, Status: fmt.Sprintf("http %d", resp.StatusCode), Detail: strings.TrimSpace(string(data))}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding middleware %s response: %w", path, err)
	}
	return nil
}

// checkStatus translates a non-OK middleware status into an error. The
// distinguished code 7 / type 1 pair becomes ErrWrongPin; everything else is
// an OperationError carrying the raw status.
func checkStatus(op string, resp statusResponse) error {
	if resp.Status == "OK" {
		return nil
	}
	if resp.ErrorCode == wrongPinErrorCode && resp.ErrorType == wrongPinErrorType {
		return fmt.Errorf("%s: %w", op, ErrWrongPin)
	}
	return &OperationError{Op: op, Status: resp.Status, Detail: resp.Error}
}

// sessionIDPrefix returns a loggable prefix of a session id. Session ids are
// secrets and must never be logged in full.
func sessionIDPrefix(id string) string {
	const n = 8
	if len(id) <= n {
		return id
	}
	return id[:n] + "…"
}
