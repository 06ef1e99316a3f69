// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package batch runs many single-paper retrievals under bounded
// concurrency, re-queues failures, and records progress so an interrupted
// run can resume without re-downloading finished papers.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/paulbellamy/ratecounter"
	"github.com/remeh/sizedwaitgroup"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/pdiddy/paperfetch/internal/acquire"
	"github.com/pdiddy/paperfetch/internal/ident"
	"github.com/pdiddy/paperfetch/internal/metrics"
	"github.com/pdiddy/paperfetch/pkg/types"
)

// Concurrency bounds and defaults.
const (
	DefaultMaxConcurrent = 3
	MaxConcurrentLimit   = 10
	DefaultMaxRetries    = 2
)

// Retriever runs one task. *acquire.Retriever satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, task types.RetrievalTask) (acquire.Result, error)
}

// Options control a run.
type Options struct {
	MaxConcurrent int
	MaxRetries    int
	RetryFailed   bool

	// ProgressFile is read at start when set, and written after every
	// terminal state when SaveProgress is true.
	ProgressFile string
	SaveProgress bool
}

// OptionsFromConfig maps the batch configuration section onto Options.
func OptionsFromConfig(cfg types.BatchConfig) Options {
	return Options{
		MaxConcurrent: cfg.MaxConcurrent,
		MaxRetries:    cfg.MaxRetries,
		RetryFailed:   cfg.RetryFailed,
		ProgressFile:  cfg.ProgressFile,
		SaveProgress:  cfg.SaveProgress,
	}
}

// Orchestrator dispatches tasks to a bounded pool of workers. A single
// dispatcher goroutine owns the queue, the summary, and the progress file;
// workers only run the retriever and report back.
type Orchestrator struct {
	retriever Retriever
	opts      Options
	fs        afero.Fs
	out       io.Writer
	log       logrus.FieldLogger
	metrics   *metrics.Metrics
	abort     context.Context
	runID     string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithFs replaces the filesystem used for the progress file.
func WithFs(fs afero.Fs) Option { return func(o *Orchestrator) { o.fs = fs } }

// WithOutput sets where per-task status lines and the summary are written.
func WithOutput(w io.Writer) Option { return func(o *Orchestrator) { o.out = w } }

// WithLogger sets the diagnostics logger.
func WithLogger(l logrus.FieldLogger) Option { return func(o *Orchestrator) { o.log = l } }

// WithMetrics counts terminal task states.
func WithMetrics(m *metrics.Metrics) Option { return func(o *Orchestrator) { o.metrics = m } }

// WithAbort sets a context whose cancellation cuts in-flight attempts
// short. Without it, attempts already dispatched always run to completion.
func WithAbort(ctx context.Context) Option { return func(o *Orchestrator) { o.abort = ctx } }

// New creates an Orchestrator. MaxConcurrent is clamped to 1-10 with a
// default of 3; a negative MaxRetries means the default.
func New(r Retriever, opts Options, options ...Option) *Orchestrator {
	switch {
	case opts.MaxConcurrent <= 0:
		opts.MaxConcurrent = DefaultMaxConcurrent
	case opts.MaxConcurrent > MaxConcurrentLimit:
		opts.MaxConcurrent = MaxConcurrentLimit
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	o := &Orchestrator{retriever: r, opts: opts, runID: uuid.NewString()}
	for _, opt := range options {
		opt(o)
	}
	if o.fs == nil {
		o.fs = afero.NewOsFs()
	}
	if o.out == nil {
		o.out = io.Discard
	}
	if o.log == nil {
		o.log = logrus.StandardLogger()
	}
	return o
}

// RunID identifies this orchestrator's run in progress records.
func (o *Orchestrator) RunID() string { return o.runID }

type outcome struct {
	idx int
	res acquire.Result
	err error
}

// Run processes tasks and returns the summary. Tasks are updated in place
// with their final state. When ctx is cancelled no further tasks are
// dispatched, while attempts already in flight finish and are recorded;
// tasks that never reached a terminal state are left Queued and are absent
// from the progress file. The returned error is non-nil
// only when the progress file cannot be read or written, or ctx was
// cancelled.
func (o *Orchestrator) Run(ctx context.Context, tasks []types.RetrievalTask) (types.BatchSummary, error) {
	summary := types.BatchSummary{Total: len(tasks)}

	progress := NewProgress()
	if o.opts.ProgressFile != "" {
		p, err := LoadProgress(o.fs, o.opts.ProgressFile)
		if err != nil {
			return summary, err
		}
		progress = p
	}

	keys := make([]string, len(tasks))
	firstByKey := make(map[string]int, len(tasks))
	var queue []int
	for i := range tasks {
		t := &tasks[i]
		t.State, t.Attempts, t.Error, t.ResultPath = types.TaskQueued, 0, "", ""
		keys[i] = taskKey(*t)

		if first, dup := firstByKey[keys[i]]; dup {
			t.State = types.TaskSkipped
			t.Error = fmt.Sprintf("duplicate of %s", tasks[first].Query())
			summary.Skipped++
			fmt.Fprintf(o.out, "skipped: %s (duplicate)\n", t.Query())
			continue
		}
		firstByKey[keys[i]] = i

		if e, done := progress.Done(keys[i]); done {
			t.State = types.TaskSkipped
			t.ResultPath = e.ResultPath
			summary.Skipped++
			fmt.Fprintf(o.out, "skipped: %s (completed in an earlier run)\n", t.Query())
			continue
		}
		queue = append(queue, i)
	}

	// Workers never see ctx's cancellation, only the abort context's.
	attemptCtx, stopAttempts := context.WithCancel(context.WithoutCancel(ctx))
	defer stopAttempts()
	if o.abort != nil {
		unwatch := context.AfterFunc(o.abort, stopAttempts)
		defer unwatch()
	}

	results := make(chan outcome, len(tasks))
	pool := sizedwaitgroup.New(o.opts.MaxConcurrent)
	var finished ratecounter.Counter
	start := time.Now()
	inFlight := 0
	var saveErr error

	complete := func(r outcome) {
		inFlight--
		t := &tasks[r.idx]
		switch {
		case r.err == nil:
			t.State, t.ResultPath, t.Error = r.res.Status, r.res.Path, ""
			if t.State == types.TaskSkipped {
				summary.Skipped++
			} else {
				summary.Succeeded++
				fmt.Fprintf(o.out, "saved:   %s -> %s\n", t.Query(), t.ResultPath)
			}
		case attemptCtx.Err() != nil && isCancellation(r.err):
			// The attempt was cut short; it did not finish.
			t.State = types.TaskQueued
			return
		default:
			t.Error = r.err.Error()
			if o.opts.RetryFailed && t.Attempts <= o.opts.MaxRetries && acquire.Retryable(r.err) && ctx.Err() == nil {
				t.State = types.TaskQueued
				queue = append(queue, r.idx)
				fmt.Fprintf(o.out, "retry:   %s (attempt %d: %v)\n", t.Query(), t.Attempts, r.err)
				return
			}
			t.State = types.TaskFailed
			summary.Failed++
			summary.Failures = append(summary.Failures, types.TaskFailure{Input: t.Query(), Error: t.Error})
			fmt.Fprintf(o.out, "failed:  %s (%v)\n", t.Query(), r.err)
		}

		finished.Incr(1)
		o.metrics.ObserveTask(string(t.State))
		progress.Record(keys[r.idx], Entry{
			State:      t.State,
			ResultPath: t.ResultPath,
			Error:      t.Error,
			Timestamp:  time.Now().UTC(),
			RunID:      o.runID,
		})
		if o.opts.SaveProgress && o.opts.ProgressFile != "" {
			if err := progress.Save(o.fs, o.opts.ProgressFile); err != nil && saveErr == nil {
				saveErr = err
				o.log.WithError(err).Error("could not save progress")
			}
		}
	}

	for len(queue) > 0 || inFlight > 0 {
	drain:
		for {
			select {
			case r := <-results:
				complete(r)
			default:
				break drain
			}
		}

		if len(queue) == 0 || ctx.Err() != nil {
			if inFlight == 0 {
				break
			}
			complete(<-results)
			continue
		}

		if err := pool.AddWithContext(ctx); err != nil {
			continue
		}
		if ctx.Err() != nil {
			pool.Done()
			continue
		}
		idx := queue[0]
		queue = queue[1:]
		tasks[idx].State = types.TaskInProgress
		tasks[idx].Attempts++
		inFlight++

		task := tasks[idx]
		go func() {
			defer pool.Done()
			res, err := o.retriever.Retrieve(attemptCtx, task)
			results <- outcome{idx: idx, res: res, err: err}
		}()
	}
	pool.Wait()

	elapsed := time.Since(start)
	fmt.Fprintf(o.out, "\nBatch summary: %d downloaded, %d skipped, %d failed (total: %d, %s, %.1f/min)\n",
		summary.Succeeded, summary.Skipped, summary.Failed, summary.Total,
		elapsed.Round(time.Second), perMinute(finished.Value(), elapsed))
	if pending := summary.Pending(); pending > 0 {
		fmt.Fprintf(o.out, "Interrupted: %d tasks not run\n", pending)
	}

	if saveErr != nil {
		return summary, saveErr
	}
	return summary, ctx.Err()
}

// taskKey is the progress and dedup key: the normalized identifier, or the
// raw input when it does not classify.
func taskKey(t types.RetrievalTask) string {
	id, err := ident.Classify(t.Query())
	if err != nil {
		return "invalid:" + t.Query()
	}
	return id.Key()
}

func perMinute(n int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Minutes()
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
