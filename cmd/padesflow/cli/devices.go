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
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clinisign/padesflow/cmd/padesflow/cli/options"
)

// Readers returns the command that lists attached card readers.
func Readers() *cobra.Command {
	svcFlags := &options.ServiceFlags{}

	cmd := &cobra.Command{
		Use:   "readers",
		Short: "List attached smart-card readers.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := buildStack(ro, svcFlags)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), ro.Timeout)
			defer cancel()

			readers, err := st.session.ListReaders(ctx)
			if err != nil {
				return fmt.Errorf("listing card readers: %w", err)
			}
			if len(readers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no card reader attached")
				return nil
			}
			for _, r := range readers {
				fmt.Fprintln(cmd.OutOrStdout(), r.Name)
			}
			return nil
		},
	}

	svcFlags.AddFlags(cmd)
	return cmd
}

// Slots returns the command that lists PKCS#11 token slots.
func Slots() *cobra.Command {
	svcFlags := &options.ServiceFlags{}

	cmd := &cobra.Command{
		Use:   "slots",
		Short: "List PKCS#11 token slots.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := buildStack(ro, svcFlags)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), ro.Timeout)
			defer cancel()

			resp, err := st.service.PKCS11Slots(ctx)
			if err != nil {
				return fmt.Errorf("listing token slots: %w", err)
			}
			if len(resp.Slots) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no token slot available")
				return nil
			}
			for _, slot := range resp.Slots {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", slot.ID, slot.Label, slot.Description)
			}
			return nil
		},
	}

	svcFlags.AddFlags(cmd)
	return cmd
}

// Health returns the command that probes the document service.
func Health() *cobra.Command {
	svcFlags := &options.ServiceFlags{}

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check document-service liveness.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := buildStack(ro, svcFlags)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), ro.Timeout)
			defer cancel()

			resp, err := st.service.Health(ctx)
			if err != nil {
				return fmt.Errorf("document service at %s is unreachable: %w", st.cfg.BackendURL, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", st.cfg.BackendURL, resp.Status)
			return nil
		},
	}

	svcFlags.AddFlags(cmd)
	return cmd
}
