// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/pdiddy/paperfetch/internal/citation"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <refs.bib>",
	Short: "Check a BibTeX file against authoritative registries",
	Long: `Verify resolves each entry's DOI or arXiv ID (or, lacking one, its title)
against registries and preprint archives and compares the resolved title with
the entry's. It writes <base>.verified.bib, <base>.failed.bib, and
<base>.summary.yaml next to the input.

--skip and --manual exclude keys from lookup; manual entries are kept with
the verified ones for review by hand.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringSlice("skip", nil, "citation keys to skip (comma-separated)")
	verifyCmd.Flags().String("manual", "", "file listing citation keys to verify by hand, one per line")

	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	fs := afero.NewOsFs()
	f, err := fs.Open(args[0])
	if err != nil {
		return err
	}
	entries, err := citation.ParseBibTeX(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("parsing %s: %w", args[0], err)
	}

	skip, _ := cmd.Flags().GetStringSlice("skip")
	var manual []string
	if path, _ := cmd.Flags().GetString("manual"); path != "" {
		if manual, err = readKeys(fs, path); err != nil {
			return err
		}
	}

	ctx, stop := interruptible(cmd.Context())
	defer stop()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer closeApp(a)

	v := citation.ForResolver(a.resolver, cfg.Citation, citation.WithLogger(log))
	checked := v.Verify(ctx, entries, skip, manual)

	out := citation.OutputsFor(args[0])
	summary, err := citation.WriteOutputs(fs, out, checked)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Verified %d, failed %d, manual %d, skipped %d of %d entries\n",
		summary.Verified, summary.Failed, summary.Manual, summary.Skipped, summary.Total)
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s, %s, %s\n", out.Verified, out.Failed, out.Summary)

	if err := ctx.Err(); err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d citation(s) failed verification", summary.Failed)
	}
	return nil
}

// readKeys reads one key per line, ignoring blank lines and "#" comments.
func readKeys(fs afero.Fs, path string) ([]string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var keys []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keys = append(keys, line)
	}
	return keys, sc.Err()
}
