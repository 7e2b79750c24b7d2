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

// Package mockservice is an in-process stand-in for both external systems
// the workflow talks to: the document service and the local card middleware.
// All artifacts are deterministic digests of their inputs, so a full
// workflow run against this service passes the digest consistency check
// end to end. Intended for development and integration tests only.
package mockservice

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clinisign/padesflow/pkg/logging"
)

// Options configures the mock service.
type Options struct {
	// GoodPIN is the PIN the simulated card and token accept.
	// Defaults to "1234".
	GoodPIN string
	// ReaderName is the simulated card reader. Defaults to "Mock Reader 0".
	ReaderName string
	// Logger receives request-level entries. Optional.
	Logger logging.Logger
}

// Server implements both service contracts on one router.
type Server struct {
	router  *chi.Mux
	logger  logging.Logger
	goodPIN string
	reader  string

	certPEM string

	mu         sync.Mutex
	registered bool
	sessions   map[string]bool
}

// New creates a mock service with a fresh self-signed signer certificate.
func New(opts Options) (*Server, error) {
	goodPIN := opts.GoodPIN
	if goodPIN == "" {
		goodPIN = "1234"
	}
	reader := opts.ReaderName
	if reader == "" {
		reader = "Mock Reader 0"
	}

	certPEM, err := selfSignedCertPEM()
	if err != nil {
		return nil, fmt.Errorf("generating mock certificate: %w", err)
	}

	s := &Server{
		router:   chi.NewRouter(),
		logger:   logging.EnsureLogger(opts.Logger),
		goodPIN:  goodPIN,
		reader:   reader,
		certPEM:  certPEM,
		sessions: map[string]bool{},
	}
	s.setupMiddleware()
	s.registerRoutes()
	return s, nil
}

// Handler returns the router, for mounting in tests via httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))
}

func (s *Server) registerRoutes() {
	s.router.Get("/health", s.handleHealth)

	// Document-service contract.
	s.router.Route("/pdf", func(r chi.Router) {
		r.Post("/generate", s.handleGenerate)
		r.Post("/prepare", s.handlePrepare)
		r.Post("/presign", s.handlePresign)
		r.Post("/finalize", s.handleFinalize)
		r.Post("/verify", s.handleVerify)
	})
	s.router.Get("/mock/cert", s.handleMockCert)
	s.router.Post("/mock/sign", s.handleMockSign)
	s.router.Route("/pkcs11", func(r chi.Router) {
		r.Get("/slots", s.handleSlots)
		r.Post("/certificates", s.handleCertificates)
		r.Post("/sign", s.handlePKCS11Sign)
	})
	s.router.Get("/card/dcparameter", s.handleDCParameter)

	// Card-middleware contract.
	s.router.Post("/remotecommand/isDcParameterRegistered", s.handleIsRegistered)
	s.router.Post("/remotecommand/registerDcParameter", s.handleRegister)
	s.router.Route("/api", func(r chi.Router) {
		r.Post("/hl_opensession", s.handleOpenSession)
		r.Post("/hl_getpcscreaders", s.handleReaders)
		r.Post("/hl_getcpxcard", s.handleConnectCard)
		r.Post("/hl_readcpxcard", s.handleReadCard)
		r.Post("/hl_signwithcpxcard", s.handleCardSign)
	})
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("mock service listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("mock service failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("mock service shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response: %v", err)
	}
}

func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "BAD_REQUEST",
			"message": fmt.Sprintf("undecodable request body: %v", err),
		})
		return false
	}
	return true
}

func selfSignedCertPEM() (string, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", err
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: "MOCK SIGNER", Organization: []string{"padesflow dev"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * 365 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})), nil
}
