// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperfetch/internal/batch"
	"github.com/pdiddy/paperfetch/pkg/types"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [identifiers...]",
	Short: "Resolve and download papers by DOI, arXiv ID, URL, or title",
	Long: `Fetch resolves each identifier to metadata and downloads its PDF from the
first source that serves it. Papers already on disk are skipped. A URL with
no embedded DOI or arXiv ID is downloaded directly.

--title gives the expected title. With no identifiers it is the query itself.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().String("output-dir", "", "directory for downloaded PDFs (default download.output_dir)")
	fetchCmd.Flags().String("title", "", "expected paper title, or the query when no identifier is given")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	title, _ := cmd.Flags().GetString("title")
	if len(args) == 0 && title == "" {
		return errors.New("provide one or more paper identifiers (DOIs, arXiv IDs, URLs, or titles)")
	}
	outDir, _ := cmd.Flags().GetString("output-dir")

	var tasks []types.RetrievalTask
	if len(args) == 0 {
		tasks = append(tasks, types.RetrievalTask{TitleHint: title})
	}
	for _, arg := range args {
		tasks = append(tasks, types.RetrievalTask{Input: arg, TitleHint: title})
	}

	ctx, stop := interruptible(cmd.Context())
	defer stop()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer closeApp(a)

	failed := fetchAll(ctx, a.retriever(os.Stdout, outDir), tasks, os.Stdout)
	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d paper(s) failed retrieval", failed)
	}
	return nil
}

// fetchAll retrieves tasks one after another and returns the failure count.
func fetchAll(ctx context.Context, r batch.Retriever, tasks []types.RetrievalTask, out io.Writer) int {
	failed := 0
	for _, t := range tasks {
		if ctx.Err() != nil {
			break
		}
		res, err := r.Retrieve(ctx, t)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				break
			}
			failed++
			fmt.Fprintf(out, "failed:  %s (%v)\n", t.Query(), err)
		case res.Status == types.TaskSucceeded:
			fmt.Fprintf(out, "saved:   %s -> %s\n", t.Query(), res.Path)
		}
	}
	return failed
}
