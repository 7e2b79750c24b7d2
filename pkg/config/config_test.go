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

package config

import (
	"testing"
	"time"

	"github.com/clinisign/padesflow/pkg/logging"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BackendURL != "http://localhost:8080" {
		t.Errorf("BackendURL = %q", cfg.BackendURL)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %s, want 30s", cfg.RequestTimeout)
	}
	if cfg.SessionTimeoutSeconds != 300 {
		t.Errorf("SessionTimeoutSeconds = %d, want 300", cfg.SessionTimeoutSeconds)
	}
	if cfg.Level() != logging.LevelInfo {
		t.Errorf("Level() = %v, want info", cfg.Level())
	}
	if cfg.Format() != logging.FormatText {
		t.Errorf("Format() = %v, want text", cfg.Format())
	}
}

func TestLoad_OverridesFromEnvironment(t *testing.T) {
	t.Setenv("PADESFLOW_BACKEND_URL", "https://sign.example.org")
	t.Setenv("PADESFLOW_REQUEST_TIMEOUT", "5s")
	t.Setenv("PADESFLOW_LOG_LEVEL", "debug")
	t.Setenv("PADESFLOW_LOG_FORMAT", "json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BackendURL != "https://sign.example.org" {
		t.Errorf("BackendURL = %q", cfg.BackendURL)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %s", cfg.RequestTimeout)
	}
	if cfg.Level() != logging.LevelDebug || cfg.Format() != logging.FormatJSON {
		t.Errorf("Level/Format = %v/%v", cfg.Level(), cfg.Format())
	}
}

func TestLoad_RejectsRelativeURL(t *testing.T) {
	t.Setenv("PADESFLOW_BACKEND_URL", "localhost:8080/no-scheme")
	if _, err := Load(); err == nil {
		t.Fatal("Load() accepted a non-absolute backend URL")
	}
}
