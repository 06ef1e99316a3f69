// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire retrieves a single paper: it classifies the input,
// resolves metadata, tries PDF sources in priority order, falls back to a
// browser when a source answers with a bot-protection challenge, and
// writes the PDF atomically under a name built from the metadata.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/pdiddy/paperfetch/internal/ident"
	"github.com/pdiddy/paperfetch/internal/metrics"
	"github.com/pdiddy/paperfetch/internal/source"
	"github.com/pdiddy/paperfetch/pkg/types"
)

// Resolver turns an identifier into metadata. *resolve.Resolver satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, id ident.Identifier) (types.PaperMetadata, error)
}

// Sources supplies usable PDF sources in priority order.
// *source.Registry satisfies it.
type Sources interface {
	PDFSources(openAccessOnly bool) []source.PDFSource
}

// URLFetcher downloads a plain URL. *source.Direct satisfies it.
type URLFetcher interface {
	FetchURL(ctx context.Context, rawURL string) ([]byte, error)
}

// Fallback fetches a URL through a real browser after a source answered
// with a challenge page. *browser.Fetcher satisfies it.
type Fallback interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Result describes a retrieval that did not fail. Status is TaskSucceeded
// or TaskSkipped.
type Result struct {
	Status   types.TaskState
	Path     string
	Metadata types.PaperMetadata
	Source   string
	Size     int

	// Reason explains a skip: an existing file or an excluded DOI family.
	Reason string
}

// Failed is returned when no source produced the PDF.
type Failed struct {
	Input     string
	Attempted []string
	LastErr   error
}

func (e *Failed) Error() string {
	if len(e.Attempted) == 0 {
		return fmt.Sprintf("retrieving %s: %v", e.Input, e.LastErr)
	}
	return fmt.Sprintf("retrieving %s: tried %s: %v", e.Input, strings.Join(e.Attempted, ", "), e.LastErr)
}

func (e *Failed) Unwrap() error { return e.LastErr }

// Retryable reports whether a failed retrieval may succeed when tried
// again. Malformed and policy-excluded inputs never will; cancellation is
// not a failure of the task.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ident.ErrInvalid), errors.Is(err, ident.ErrPolicyExcluded):
		return false
	case errors.Is(err, context.Canceled):
		return false
	default:
		return true
	}
}

// Retriever downloads single papers. It is safe for concurrent use; the
// batch orchestrator shares one across workers.
type Retriever struct {
	resolver Resolver
	sources  Sources
	direct   URLFetcher
	fallback Fallback
	cfg      types.DownloadConfig
	fs       afero.Fs
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
	out      io.Writer
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithDirect sets the fetcher used for URL inputs without a resolvable
// identifier.
func WithDirect(f URLFetcher) Option { return func(r *Retriever) { r.direct = f } }

// WithFallback sets the bot-protection fallback.
func WithFallback(f Fallback) Option { return func(r *Retriever) { r.fallback = f } }

// WithFs replaces the filesystem; tests use afero.NewMemMapFs.
func WithFs(fs afero.Fs) Option { return func(r *Retriever) { r.fs = fs } }

// WithLogger sets the diagnostics logger.
func WithLogger(l logrus.FieldLogger) Option { return func(r *Retriever) { r.log = l } }

// WithMetrics records fetch attempts and bytes written.
func WithMetrics(m *metrics.Metrics) Option { return func(r *Retriever) { r.metrics = m } }

// WithOutput sets where progress lines ("downloading: ...") are written.
func WithOutput(w io.Writer) Option { return func(r *Retriever) { r.out = &lockedWriter{w: w} } }

// New creates a Retriever.
func New(resolver Resolver, sources Sources, cfg types.DownloadConfig, opts ...Option) *Retriever {
	r := &Retriever{resolver: resolver, sources: sources, cfg: cfg}
	for _, o := range opts {
		o(r)
	}
	if r.fs == nil {
		r.fs = afero.NewOsFs()
	}
	if r.log == nil {
		r.log = logrus.StandardLogger()
	}
	if r.out == nil {
		r.out = io.Discard
	}
	return r
}

// Retrieve runs one task to completion. It returns a Result for success and
// skips, *Failed when every source was exhausted, and an error wrapping
// ident.ErrInvalid for malformed input. No partial file is left behind on
// failure.
func (r *Retriever) Retrieve(ctx context.Context, task types.RetrievalTask) (Result, error) {
	query := task.Query()
	id, err := ident.Classify(query)
	if err != nil {
		var verr *ident.ValidationError
		if errors.Is(err, ident.ErrPolicyExcluded) && errors.As(err, &verr) {
			fmt.Fprintf(r.out, "skipped: %s (%s)\n", query, verr.Reason)
			return Result{Status: types.TaskSkipped, Reason: verr.Reason}, nil
		}
		return Result{}, err
	}

	outDir := task.OutputDir
	if outDir == "" {
		outDir = r.cfg.OutputDir
	}
	log := r.log.WithField("identifier", id.String())

	meta, err := r.resolver.Resolve(ctx, id)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		if id.Kind() == ident.KindURL && r.direct != nil {
			log.WithError(err).Debug("no metadata for URL; downloading directly")
			return r.retrieveURL(ctx, id, outDir)
		}
		hinted, herr := r.resolveTitleHint(ctx, id, task, log)
		if herr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, ctxErr
			}
			return Result{}, &Failed{Input: query, LastErr: err}
		}
		meta = hinted
	}

	stem := FormatFilename(r.cfg.FilenameFormat, meta, r.cfg.MaxTitleLength)
	path := filepath.Join(outDir, stem+".pdf")
	if res, ok := r.existing(path, meta); ok {
		return res, nil
	}

	fmt.Fprintf(r.out, "downloading: %s (%s)\n", stem, id.Kind())

	var attempted []string
	var lastErr error = source.ErrNotFound
	for _, s := range r.sources.PDFSources(r.cfg.OpenAccessOnly) {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		name := s.Info().Name
		attempted = append(attempted, name)

		data, err := r.trySource(ctx, s, meta, log)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, ctxErr
			}
			lastErr = err
			continue
		}
		if err := r.write(path, data); err != nil {
			return Result{}, err
		}
		log.WithFields(logrus.Fields{"source": name, "path": path, "size": humanize.Bytes(uint64(len(data)))}).Info("saved paper")
		return Result{Status: types.TaskSucceeded, Path: path, Metadata: meta, Source: name, Size: len(data)}, nil
	}

	return Result{}, &Failed{Input: query, Attempted: attempted, LastErr: lastErr}
}

// resolveTitleHint resolves the task's title hint after its identifier
// went unresolved. The hint goes through the same mismatch checks as any
// title query.
func (r *Retriever) resolveTitleHint(ctx context.Context, id ident.Identifier, task types.RetrievalTask, log logrus.FieldLogger) (types.PaperMetadata, error) {
	hint := strings.TrimSpace(task.TitleHint)
	if hint == "" || id.Kind() == ident.KindTitle {
		return types.PaperMetadata{}, source.ErrNotFound
	}
	meta, err := r.resolver.Resolve(ctx, ident.Title(hint))
	if err != nil {
		log.WithError(err).Debug("title hint unresolved")
		return types.PaperMetadata{}, err
	}
	log.WithField("title", meta.Title).Info("resolved by title hint")
	return meta, nil
}

// trySource tries every lookup method of s in order. A challenge page ends
// the source: the fallback gets one attempt and its outcome is final for s.
func (r *Retriever) trySource(ctx context.Context, s source.PDFSource, meta types.PaperMetadata, log logrus.FieldLogger) ([]byte, error) {
	info := s.Info()
	methods := info.Methods
	if len(methods) == 0 {
		methods = []source.Method{source.MethodID}
	}

	var lastErr error = &source.Error{Source: info.Name, Kind: source.ErrNotFound}
	for _, m := range methods {
		start := time.Now()
		data, err := s.Fetch(ctx, source.FetchRequest{Metadata: meta, Method: m})
		outcome := source.Outcome(err)
		r.metrics.ObserveAttempt(info.Name, "fetch", outcome, time.Since(start))
		log.WithFields(logrus.Fields{"source": info.Name, "method": m, "outcome": outcome}).Debug("fetch attempt")
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		if source.IsBlocked(err) {
			return r.fallbackFetch(ctx, info.Name, err, meta, log)
		}
		lastErr = err
	}
	return nil, lastErr
}

// fallbackFetch retries a blocked download through the browser fallback
// using the blocked URL, or the DOI resolver when the source did not
// report one.
func (r *Retriever) fallbackFetch(ctx context.Context, name string, blocked error, meta types.PaperMetadata, log logrus.FieldLogger) ([]byte, error) {
	if r.fallback == nil {
		return nil, blocked
	}
	url := source.BlockedURL(blocked)
	if url == "" && meta.DOI != "" {
		url = "https://doi.org/" + meta.DOI
	}
	if url == "" {
		return nil, blocked
	}

	log.WithFields(logrus.Fields{"source": name, "url": url}).Info("challenge page; trying browser fallback")
	start := time.Now()
	data, err := r.fallback.Fetch(ctx, url)
	if err == nil && !source.IsPDF(data) {
		err = errors.New("browser fallback did not return a PDF")
	}
	r.metrics.ObserveAttempt(name+"+browser", "fetch", source.Outcome(err), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w (browser fallback: %w)", blocked, err)
	}
	return data, nil
}

// retrieveURL downloads a URL input that resolved to no metadata, naming
// the file after the URL.
func (r *Retriever) retrieveURL(ctx context.Context, id ident.Identifier, outDir string) (Result, error) {
	stem := ident.Slug(id)
	path := filepath.Join(outDir, stem+".pdf")
	if res, ok := r.existing(path, types.PaperMetadata{}); ok {
		return res, nil
	}

	fmt.Fprintf(r.out, "downloading: %s (%s)\n", stem, id.Kind())
	start := time.Now()
	data, err := r.direct.FetchURL(ctx, id.Value())
	r.metrics.ObserveAttempt(source.DirectName, "fetch", source.Outcome(err), time.Since(start))
	if err != nil && source.IsBlocked(err) {
		data, err = r.fallbackFetch(ctx, source.DirectName, err, types.PaperMetadata{}, r.log)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, &Failed{Input: id.Value(), Attempted: []string{source.DirectName}, LastErr: err}
	}
	if err := r.write(path, data); err != nil {
		return Result{}, err
	}
	return Result{Status: types.TaskSucceeded, Path: path, Source: source.DirectName, Size: len(data)}, nil
}

func (r *Retriever) existing(path string, meta types.PaperMetadata) (Result, bool) {
	if !r.cfg.SkipExisting {
		return Result{}, false
	}
	if ok, _ := afero.Exists(r.fs, path); !ok {
		return Result{}, false
	}
	fmt.Fprintf(r.out, "skipped: %s (already exists)\n", filepath.Base(path))
	return Result{Status: types.TaskSkipped, Path: path, Metadata: meta, Reason: "already exists"}, true
}

// write stores data at path via a temp file in the same directory and a
// rename, so readers never see a partial PDF.
func (r *Retriever) write(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(r.fs, dir, ".paperfetch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		r.fs.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", writeErr)
	}
	if closeErr != nil {
		r.fs.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := r.fs.Rename(tmpPath, path); err != nil {
		r.fs.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	r.metrics.AddBytes(len(data))
	return nil
}

// lockedWriter serializes progress lines from concurrent workers.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
