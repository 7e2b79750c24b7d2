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

// Package config loads the runtime configuration from environment
// variables. Values can also come from a .env file loaded at CLI startup;
// flags override the environment where both are given.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/Netflix/go-env"

	"github.com/clinisign/padesflow/pkg/cardsession"
	"github.com/clinisign/padesflow/pkg/logging"
)

// Environment is the full environment-driven configuration.
type Environment struct {
	// BackendURL is the document-service origin.
	BackendURL string `env:"PADESFLOW_BACKEND_URL,default=http://localhost:8080"`

	// MiddlewareURL is the local card-middleware origin. Only consulted
	// when the card signing method is selected.
	MiddlewareURL string `env:"PADESFLOW_MIDDLEWARE_URL,default=http://localhost:9982"`

	// RequestTimeout bounds every outbound HTTP call.
	RequestTimeout time.Duration `env:"PADESFLOW_REQUEST_TIMEOUT,default=30s"`

	// SessionTimeoutSeconds is the card-middleware session inactivity
	// timeout requested at session open.
	SessionTimeoutSeconds int `env:"PADESFLOW_SESSION_TIMEOUT_S,default=300"`

	// LogLevel is the minimum console log level.
	LogLevel string `env:"PADESFLOW_LOG_LEVEL,default=info"`

	// LogFormat selects console rendering, text or json.
	LogFormat string `env:"PADESFLOW_LOG_FORMAT,default=text"`
}

// Load reads the environment and validates it.
func Load() (*Environment, error) {
	var cfg Environment
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Environment) error {
	for name, value := range map[string]string{
		"PADESFLOW_BACKEND_URL":    cfg.BackendURL,
		"PADESFLOW_MIDDLEWARE_URL": cfg.MiddlewareURL,
	} {
		u, err := url.Parse(value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, value)
		}
	}

	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("PADESFLOW_REQUEST_TIMEOUT must be positive, got %s", cfg.RequestTimeout)
	}
	if cfg.SessionTimeoutSeconds <= 0 {
		cfg.SessionTimeoutSeconds = cardsession.DefaultSessionTimeoutSeconds
	}
	return nil
}

// Level returns the parsed console log level.
func (e *Environment) Level() logging.Level {
	return logging.ParseLevel(e.LogLevel)
}

// Format returns the parsed console log format.
func (e *Environment) Format() logging.Format {
	return logging.ParseFormat(e.LogFormat)
}
