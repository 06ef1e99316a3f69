// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paperfetch/internal/batch"
	"github.com/pdiddy/paperfetch/pkg/types"
)

var batchCmd = &cobra.Command{
	Use:   "batch <input-file>",
	Short: "Download every paper listed in a file, resumably",
	Long: `Batch reads identifiers from a file and retrieves them with a bounded number
of concurrent workers. The format follows the extension: .csv with doi and/or
title columns, .json with an array of identifiers or {type, value} objects,
and anything else one identifier per line.

Finished identifiers are recorded in the progress file, so rerunning after an
interruption (Ctrl-C) only retrieves what is left. Failed tasks are retried at
the back of the queue.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().String("output-dir", "", "directory for downloaded PDFs (default download.output_dir)")
	batchCmd.Flags().Int("concurrency", 0, "concurrent downloads, 1-10 (default batch.max_concurrent)")
	batchCmd.Flags().String("progress-file", "", "progress record path (default batch.progress_file)")
	batchCmd.Flags().String("report", "", "write the batch summary as YAML to this path")

	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	fs := afero.NewOsFs()
	tasks, err := batch.ParseInputs(fs, args[0])
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return fmt.Errorf("no identifiers in %s", args[0])
	}

	outDir, _ := cmd.Flags().GetString("output-dir")
	opts := batch.OptionsFromConfig(cfg.Batch)
	if n, _ := cmd.Flags().GetInt("concurrency"); n != 0 {
		opts.MaxConcurrent = n
	}
	if p, _ := cmd.Flags().GetString("progress-file"); p != "" {
		opts.ProgressFile = p
	}
	reportPath, _ := cmd.Flags().GetString("report")

	ctx, abort, stop := graceful(cmd.Context())
	defer stop()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer closeApp(a)

	orch := batch.New(a.retriever(os.Stdout, outDir), opts,
		batch.WithFs(fs),
		batch.WithOutput(os.Stdout),
		batch.WithLogger(log),
		batch.WithMetrics(a.metrics),
		batch.WithAbort(abort),
	)
	log.WithField("run_id", orch.RunID()).Debugf("batch of %d tasks", len(tasks))

	summary, runErr := orch.Run(ctx, tasks)
	if reportPath != "" {
		if err := writeReport(fs, reportPath, summary); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	if summary.HasFailures() {
		return fmt.Errorf("%d paper(s) failed retrieval", summary.Failed)
	}
	return nil
}

func writeReport(fs afero.Fs, path string, s types.BatchSummary) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return nil
}
