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
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clinisign/padesflow/cmd/padesflow/cli/options"
	"github.com/clinisign/padesflow/pkg/signing"
	"github.com/clinisign/padesflow/pkg/utils"
	"github.com/clinisign/padesflow/pkg/workflow"
)

// Run returns the command that drives one full signing workflow.
func Run() *cobra.Command {
	svcFlags := &options.ServiceFlags{}
	credFlags := &options.CredentialFlags{}
	var (
		outputPath string
		title      string
		author     string
	)

	cmd := &cobra.Command{
		Use:   "run [OPTIONS] [SOURCE_PDF]",
		Short: "Run the signing workflow end to end.",
		Long: `Run the signing workflow end to end.

    The workflow generates or loads a source PDF, prepares it for signing,
    obtains a signature from the selected backend (mock, card or pkcs11),
    embeds signature and trust timestamp, and verifies the result.

    With SOURCE_PDF the document is loaded from disk; without it a sample
    document is requested from the generation service (see --title and
    --author). The signed document is written to --output.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourcePath := ""
			if len(args) == 1 {
				sourcePath = args[0]
				if err := utils.ValidateFileExists("source document", sourcePath); err != nil {
					return err
				}
			}

			method, err := credFlags.ParseMethod()
			if err != nil {
				return err
			}

			st, err := buildStack(ro, svcFlags)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), ro.Timeout)
			defer cancel()

			creds := credFlags.Credentials()
			if method == signing.MethodCardSession && creds.Reader == "" {
				creds.Reader, err = autoSelectReader(ctx, st)
				if err != nil {
					return err
				}
			}

			st.engine.SetMethod(method)
			st.engine.SetCredentials(creds)

			input := workflow.GenerateInput{SourcePath: sourcePath}
			input.Request.Title = title
			input.Request.Author = author

			if err := st.engine.Run(ctx, input); err != nil {
				return fmt.Errorf("workflow run %s: %w", st.engine.RunID(), err)
			}

			signed, err := base64.StdEncoding.DecodeString(st.engine.State().SignedPDFBase64)
			if err != nil {
				return fmt.Errorf("decoding signed document: %w", err)
			}
			if err := os.WriteFile(outputPath, signed, 0o600); err != nil {
				return fmt.Errorf("writing signed document: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "signed document written to %s (%d bytes, method %s)\n",
				outputPath, len(signed), method)
			return nil
		},
	}

	svcFlags.AddFlags(cmd)
	credFlags.AddFlags(cmd)
	cmd.Flags().StringVarP(&outputPath, "output", "o", "signed.pdf",
		"where to write the signed document")
	_ = cmd.MarkFlagFilename("output", "pdf")
	cmd.Flags().StringVar(&title, "title", "", "document title for service-side generation")
	cmd.Flags().StringVar(&author, "author", "", "document author for service-side generation")

	return cmd
}

// autoSelectReader picks the reader when exactly one card reader is attached.
func autoSelectReader(ctx context.Context, st *stack) (string, error) {
	readers, err := st.session.ListReaders(ctx)
	if err != nil {
		return "", fmt.Errorf("listing card readers: %w", err)
	}
	switch len(readers) {
	case 0:
		return "", fmt.Errorf("no card reader attached")
	case 1:
		return readers[0].Name, nil
	default:
		names := make([]string, len(readers))
		for i, r := range readers {
			names[i] = r.Name
		}
		return "", fmt.Errorf("multiple card readers attached, pick one with --reader: %v", names)
	}
}
