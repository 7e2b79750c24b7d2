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

package cli

import (
	"fmt"

	"github.com/clinisign/padesflow/cmd/padesflow/cli/options"
	"github.com/clinisign/padesflow/pkg/backend"
	"github.com/clinisign/padesflow/pkg/cardsession"
	"github.com/clinisign/padesflow/pkg/config"
	"github.com/clinisign/padesflow/pkg/logging"
	"github.com/clinisign/padesflow/pkg/signing/factory"
	"github.com/clinisign/padesflow/pkg/workflow"
)

// stack is the wired client side of the workflow: configuration, the shared
// log aggregator mirrored to the console, and the service clients.
type stack struct {
	cfg     *config.Environment
	logs    *logging.Aggregator
	service *backend.Client
	session *cardsession.Client
	engine  *workflow.Engine
}

// buildStack loads the configuration, applies flag overrides and wires the
// full client stack.
func buildStack(ro *options.RootOptions, svcFlags *options.ServiceFlags) (*stack, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if svcFlags != nil {
		svcFlags.Apply(cfg)
	}

	logs := logging.NewAggregator(ro.NewLogger())

	service, err := backend.NewClient(backend.ClientOptions{
		BaseURL:        cfg.BackendURL,
		RequestTimeout: cfg.RequestTimeout,
		Logs:           logs,
	})
	if err != nil {
		return nil, fmt.Errorf("wiring document-service client: %w", err)
	}

	session, err := cardsession.NewClient(cardsession.ClientOptions{
		MiddlewareURL:         cfg.MiddlewareURL,
		Descriptor:            service,
		SessionTimeoutSeconds: cfg.SessionTimeoutSeconds,
		RequestTimeout:        cfg.RequestTimeout,
		Logs:                  logs,
	})
	if err != nil {
		return nil, fmt.Errorf("wiring card-middleware client: %w", err)
	}

	backends, err := factory.New(factory.Options{
		Service:     service,
		CardSession: session,
		Logs:        logs,
	})
	if err != nil {
		return nil, fmt.Errorf("wiring signing backends: %w", err)
	}

	engine, err := workflow.NewEngine(workflow.EngineOptions{
		Service:  service,
		Backends: backends,
		Logs:     logs,
	})
	if err != nil {
		return nil, fmt.Errorf("wiring workflow engine: %w", err)
	}

	return &stack{
		cfg:     cfg,
		logs:    logs,
		service: service,
		session: session,
		engine:  engine,
	}, nil
}
