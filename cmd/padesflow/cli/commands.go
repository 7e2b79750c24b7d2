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

// Package cli assembles the padesflow command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	cobracompletefig "github.com/withfig/autocomplete-tools/integrations/cobra"
	"sigs.k8s.io/release-utils/version"

	"github.com/clinisign/padesflow/cmd/padesflow/cli/options"
	"github.com/clinisign/padesflow/pkg/tracing"
)

var (
	ro = &options.RootOptions{}
)

// New builds the root command.
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "padesflow",
		Short:             "PDF electronic signature workflow (PAdES-B-T).",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if ro.EnvFile != "" {
				if err := godotenv.Load(ro.EnvFile); err != nil {
					return fmt.Errorf("loading env file %s: %w", ro.EnvFile, err)
				}
			} else if _, err := os.Stat(".env"); err == nil {
				if err := godotenv.Load(); err != nil {
					return fmt.Errorf("loading .env: %w", err)
				}
			}

			if err := tracing.InitFromEnv(); err != nil {
				return fmt.Errorf("initializing tracing: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			_ = tracing.Shutdown(cmd.Context())
		},
	}
	ro.AddFlags(cmd)

	// Add sub-commands.
	cmd.AddCommand(Run())
	cmd.AddCommand(Readers())
	cmd.AddCommand(Slots())
	cmd.AddCommand(Health())
	cmd.AddCommand(ServeMock())
	cmd.AddCommand(version.WithFont("starwars"))
	cmd.AddCommand(cobracompletefig.CreateCompletionSpecCommand())
	return cmd
}
