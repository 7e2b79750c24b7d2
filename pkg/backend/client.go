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

// Package backend is the HTTP client for the document preparation,
// finalization and verification service. The service is a black box with a
// fixed request/response contract; every response may carry a logs array
// that this client merges into the shared log aggregator.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clinisign/padesflow/pkg/logging"
)

// DefaultRequestTimeout bounds every outbound call. A call exceeding it is
// treated as failed and is never retried automatically.
const DefaultRequestTimeout = 30 * time.Second

// ClientOptions configures a Client instance.
type ClientOptions struct {
	// BaseURL is the service origin, e.g. "http://localhost:8080". [required]
	BaseURL string
	// HTTPClient overrides the transport. Defaults to a fresh http.Client.
	HTTPClient *http.Client
	// RequestTimeout bounds each call. Defaults to DefaultRequestTimeout.
	RequestTimeout time.Duration
	// Logs receives entries carried in service responses. Optional.
	Logs *logging.Aggregator
}

// Client calls the document service endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logs    *logging.Aggregator
	logger  logging.Logger
}

// NewClient creates a document-service client.
// Returns an error if no base URL is configured.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("backend base URL is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	logger := logging.Logger(nil)
	if opts.Logs != nil {
		logger = opts.Logs.Source(logging.SourceBackend)
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    httpClient,
		timeout: timeout,
		logs:    opts.Logs,
		logger:  logging.EnsureLogger(logger),
	}, nil
}

// ServiceError is a structured failure reported by the service.
type ServiceError struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int
	// Code is the service error code, when the body could be parsed.
	Code string
	// Message is the service error message, reported verbatim.
	Message string
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("service error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("service returned status %d: %s", e.StatusCode, e.Message)
}

// Generate calls POST /pdf/generate.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	var resp GenerateResponse
	if err := c.post(ctx, "/pdf/generate", req, &resp); err != nil {
		return nil, err
	}
	c.mergeLogs(resp.Logs)
	return &resp, nil
}

// Prepare calls POST /pdf/prepare.
func (c *Client) Prepare(ctx context.Context, req PrepareRequest) (*PrepareResponse, error) {
	var resp PrepareResponse
	if err := c.post(ctx, "/pdf/prepare", req, &resp); err != nil {
		return nil, err
	}
	c.mergeLogs(resp.Logs)
	return &resp, nil
}

// Presign calls POST /pdf/presign.
func (c *Client) Presign(ctx context.Context, req PresignRequest) (*PresignResponse, error) {
	var resp PresignResponse
	if err := c.post(ctx, "/pdf/presign", req, &resp); err != nil {
		return nil, err
	}
	c.mergeLogs(resp.Logs)
	return &resp, nil
}

// Finalize calls POST /pdf/finalize.
func (c *Client) Finalize(ctx context.Context, req FinalizeRequest) (*FinalizeResponse, error) {
	var resp FinalizeResponse
	if err := c.post(ctx, "/pdf/finalize", req, &resp); err != nil {
		return nil, err
	}
	c.mergeLogs(resp.Logs)
	return &resp, nil
}

// Verify calls POST /pdf/verify.
func (c *Client) Verify(ctx context.Context, req VerifyRequest) (*VerifyResponse, error) {
	var resp VerifyResponse
	if err := c.post(ctx, "/pdf/verify", req, &resp); err != nil {
		return nil, err
	}
	c.mergeLogs(resp.Logs)
	return &resp, nil
}

// MockCertificate calls GET /mock/cert.
func (c *Client) MockCertificate(ctx context.Context) (*MockCertResponse, error) {
	var resp MockCertResponse
	if err := c.get(ctx, "/mock/cert", &resp); err != nil {
		return nil, err
	}
	c.mergeLogs(resp.Logs)
	return &resp, nil
}

// MockSign calls POST /mock/sign.
func (c *Client) MockSign(ctx context.Context, req MockSignRequest) (*MockSignResponse, error) {
	var resp MockSignResponse
	if err := c.post(ctx, "/mock/sign", req, &resp); err != nil {
		return nil, err
	}
	c.mergeLogs(resp.Logs)
	return &resp, nil
}

// PKCS11Slots calls GET /pkcs11/slots.
func (c *Client) PKCS11Slots(ctx context.Context) (*PKCS11SlotsResponse, error) {
	var resp PKCS11SlotsResponse
	if err := c.get(ctx, "/pkcs11/slots", &resp); err != nil {
		return nil, err
	}
	c.mergeLogs(resp.Logs)
	return &resp, nil
}

// PKCS11Certificates calls POST /pkcs11/certificates.
func (c *Client) PKCS11Certificates(ctx context.Context, req PKCS11CertificatesRequest) (*PKCS11CertificatesResponse, error) {
	var resp PKCS11CertificatesResponse
	if err := c.post(ctx, "/pkcs11/certificates", req, &resp); err != nil {
		return nil, err
	}
	c.mergeLogs(resp.Logs)
	return &resp, nil
}

// PKCS11Sign calls POST /pkcs11/sign.
func (c *Client) PKCS11Sign(ctx context.Context, req PKCS11SignRequest) (*PKCS11SignResponse, error) {
	var resp PKCS11SignResponse
	if err := c.post(ctx, "/pkcs11/sign", req, &resp); err != nil {
		return nil, err
	}
	c.mergeLogs(resp.Logs)
	return &resp, nil
}

// DCParameter calls GET /card/dcparameter and returns the trimmed descriptor.
func (c *Client) DCParameter(ctx context.Context) (string, error) {
	var resp DCParameterResponse
	if err := c.get(ctx, "/card/dcparameter", &resp); err != nil {
		return "", err
	}
	c.mergeLogs(resp.Logs)
	return strings.TrimSpace(resp.DCParameter), nil
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", path, err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(payload), out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("%s %s", method, path)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		svcErr := &ServiceError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var envelope ErrorEnvelope
		if err := json.Unmarshal(data, &envelope); err == nil && envelope.Message != "" {
			svcErr.Code = envelope.Code
			svcErr.Message = envelope.Message
			c.mergeLogs(envelope.Logs)
		}
		return svcErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// mergeLogs appends service-side log entries to the aggregator, preserving
// their order and declared source.
func (c *Client) mergeLogs(entries []WireLogEntry) {
	if c.logs == nil {
		return
	}
	for _, e := range entries {
		entry := logging.Entry{
			Level:   logging.ParseLevel(e.Level),
			Source:  logging.ParseSource(e.Source),
			Message: e.Message,
			Context: e.Context,
		}
		if e.Timestamp != "" {
			if ts, err := time.Parse(time.RFC3339, e.Timestamp); err == nil {
				entry.Timestamp = ts
			}
		}
		c.logs.Append(entry)
	}
}
