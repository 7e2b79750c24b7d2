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
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clinisign/padesflow/internal/mockservice"
)

// ServeMock returns the command that runs the combined mock document
// service and card middleware, for development without real services.
func ServeMock() *cobra.Command {
	var (
		addr    string
		goodPIN string
	)

	cmd := &cobra.Command{
		Use:   "serve-mock",
		Short: "Serve a mock document service and card middleware.",
		Long: `Serve a mock document service and card middleware.

    All signing endpoints are served from one address; point both
    PADESFLOW_BACKEND_URL and PADESFLOW_MIDDLEWARE_URL at it. Artifacts are
    deterministic so full workflow runs pass the digest consistency check.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := mockservice.New(mockservice.Options{
				GoodPIN: goodPIN,
				Logger:  ro.NewLogger(),
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return svc.Start(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:8080", "address to listen on")
	cmd.Flags().StringVar(&goodPIN, "good-pin", "1234", "PIN the simulated card and token accept")
	return cmd
}
