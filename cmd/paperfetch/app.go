// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pdiddy/paperfetch/internal/acquire"
	"github.com/pdiddy/paperfetch/internal/browser"
	"github.com/pdiddy/paperfetch/internal/cache"
	"github.com/pdiddy/paperfetch/internal/metrics"
	"github.com/pdiddy/paperfetch/internal/mismatch"
	"github.com/pdiddy/paperfetch/internal/ratelimit"
	"github.com/pdiddy/paperfetch/internal/resolve"
	"github.com/pdiddy/paperfetch/internal/secrets"
	"github.com/pdiddy/paperfetch/internal/source"
	"github.com/pdiddy/paperfetch/pkg/types"
)

// envFile is the optional dotenv file read next to the secrets directory.
const envFile = ".env"

// app holds the collaborators shared by every command. It is built once per
// invocation from the loaded configuration.
type app struct {
	cfg      types.Config
	governor *ratelimit.Governor
	registry *source.Registry
	direct   *source.Direct
	cache    *cache.Store
	resolver *resolve.Resolver
	metrics  *metrics.Metrics
	fallback *browser.Fetcher
}

func newApp(cfg types.Config) (*app, error) {
	store, err := secrets.New(cfg.SecretsDir, envFile)
	if err != nil {
		return nil, err
	}
	if names := store.Names(); len(names) > 0 {
		fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", names)
	}
	if cfg.HTTP.Email == "" {
		if email, ok := store.Get("contact-email"); ok {
			cfg.HTTP.Email = email
		}
	}

	a := &app{
		cfg:      cfg,
		governor: ratelimit.New(cfg.RateLimits),
		metrics:  metrics.New(),
	}
	client := &http.Client{Timeout: cfg.HTTP.Timeout}
	deps := source.Deps{Client: client, Pacer: a.governor, Credentials: store, Log: log}
	a.registry = source.NewRegistry(cfg, deps)
	a.direct = source.NewDirect(cfg, deps)

	opts := []resolve.Option{resolve.WithLogger(log), resolve.WithMetrics(a.metrics)}
	if cfg.Cache.Enabled {
		c, err := cache.Open(cfg.Cache.Path)
		if err != nil {
			return nil, err
		}
		a.cache = c
		opts = append(opts, resolve.WithCache(c))
	}
	a.resolver = resolve.New(a.registry, mismatch.New(cfg.Mismatch), opts...)

	if cfg.Fallback.Enabled {
		a.fallback = browser.New(cfg.Fallback, client, log)
	}
	return a, nil
}

// retriever builds a single-paper retriever writing status lines to out.
// A non-empty outputDir overrides download.output_dir.
func (a *app) retriever(out io.Writer, outputDir string) *acquire.Retriever {
	dl := a.cfg.Download
	if outputDir != "" {
		dl.OutputDir = outputDir
	}
	opts := []acquire.Option{
		acquire.WithDirect(a.direct),
		acquire.WithLogger(log),
		acquire.WithMetrics(a.metrics),
		acquire.WithOutput(out),
	}
	if a.fallback != nil {
		opts = append(opts, acquire.WithFallback(a.fallback))
	}
	return acquire.New(a.resolver, a.registry, dl, opts...)
}

// Close shuts down the browser and cache and writes the metrics textfile
// when one is configured.
func (a *app) Close() error {
	var errs []error
	if a.fallback != nil {
		errs = append(errs, a.fallback.Close())
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		errs = append(errs, fmt.Errorf("writing metrics: %w", err))
	}
	return errors.Join(errs...)
}

// closeApp closes a and logs rather than returns the error, so it never
// masks the command's own result.
func closeApp(a *app) {
	if err := a.Close(); err != nil {
		log.WithError(err).Warn("shutdown")
	}
}

// interruptible returns a context cancelled on SIGINT or SIGTERM.
func interruptible(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// graceful returns two contexts for a batch run. The first is cancelled by
// the first SIGINT or SIGTERM and stops dispatch; the second is cancelled by
// the next signal and aborts downloads still in flight.
func graceful(ctx context.Context) (dispatch, abort context.Context, stop func()) {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	dispatch, abort, release := twoStage(ctx, sigs, os.Stderr)
	return dispatch, abort, func() {
		signal.Stop(sigs)
		release()
	}
}

func twoStage(ctx context.Context, sigs <-chan os.Signal, w io.Writer) (dispatch, abort context.Context, release func()) {
	dispatch, cancelDispatch := context.WithCancel(ctx)
	abort, cancelAbort := context.WithCancel(ctx)
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-sigs:
		case <-done:
			return
		}
		cancelDispatch()
		fmt.Fprintln(w, "interrupted: finishing downloads in flight (interrupt again to abort)")
		select {
		case <-sigs:
			cancelAbort()
		case <-done:
		}
	}()
	return dispatch, abort, func() {
		close(done)
		<-exited
		cancelDispatch()
		cancelAbort()
	}
}
