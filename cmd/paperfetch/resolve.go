// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paperfetch/internal/citation"
	"github.com/pdiddy/paperfetch/internal/ident"
	"github.com/pdiddy/paperfetch/pkg/types"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <identifier>...",
	Short: "Print the metadata identifiers resolve to, without downloading",
	Long: `Resolve looks each identifier up in the metadata sources and prints the
records as YAML. --format csl prints a CSL-YAML list instead, ready for
Pandoc or a reference manager.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().String("format", "yaml", "output format: yaml or csl")

	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "yaml" && format != "csl" {
		return fmt.Errorf("unknown format %q (want yaml or csl)", format)
	}
	ids := make([]ident.Identifier, len(args))
	for i, arg := range args {
		id, err := ident.Classify(arg)
		if err != nil {
			return err
		}
		ids[i] = id
	}

	ctx, stop := interruptible(cmd.Context())
	defer stop()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer closeApp(a)

	records := make([]types.PaperMetadata, 0, len(ids))
	for _, id := range ids {
		m, err := a.resolver.Resolve(ctx, id)
		if err != nil {
			return err
		}
		records = append(records, m)
	}

	if format == "csl" {
		return citation.FormatCSL(os.Stdout, records)
	}
	enc := yaml.NewEncoder(os.Stdout)
	defer enc.Close()
	return enc.Encode(records)
}
