// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve turns a classified identifier into paper metadata by
// asking metadata sources in priority order until one answers.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paperfetch/internal/ident"
	"github.com/pdiddy/paperfetch/internal/metrics"
	"github.com/pdiddy/paperfetch/internal/mismatch"
	"github.com/pdiddy/paperfetch/internal/source"
	"github.com/pdiddy/paperfetch/pkg/types"
)

// ErrMismatch marks a title-search candidate rejected by the mismatch
// detector.
var ErrMismatch = errors.New("candidate does not match query")

// Year bounds. Years outside [minYear, maxYear] are cleared; years above
// softMaxYear are kept with a warning.
const (
	minYear     = 1900
	maxYear     = 2099
	softMaxYear = 2030
)

// Unresolved is returned when every source failed. LastErr is the error of
// the last source tried.
type Unresolved struct {
	Identifier string
	Attempted  []string
	LastErr    error
}

func (e *Unresolved) Error() string {
	if len(e.Attempted) == 0 {
		return fmt.Sprintf("unresolved %s: %v", e.Identifier, e.LastErr)
	}
	return fmt.Sprintf("unresolved %s after %s: %v", e.Identifier, strings.Join(e.Attempted, ", "), e.LastErr)
}

func (e *Unresolved) Unwrap() error { return e.LastErr }

// Cache stores resolved metadata by identifier key. *cache.Store satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) (types.PaperMetadata, bool, error)
	Put(ctx context.Context, key string, m types.PaperMetadata) error
}

// Sources supplies usable metadata sources in priority order.
// *source.Registry satisfies it.
type Sources interface {
	MetadataSources(kinds ...source.Kind) []source.MetadataSource
}

// Resolver resolves identifiers. It is safe for concurrent use.
type Resolver struct {
	sources  Sources
	detector *mismatch.Detector
	kinds    []source.Kind
	cache    Cache
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache consults c before any source and stores every hit in it.
func WithCache(c Cache) Option { return func(r *Resolver) { r.cache = c } }

// WithLogger sets the diagnostics logger.
func WithLogger(l logrus.FieldLogger) Option { return func(r *Resolver) { r.log = l } }

// WithMetrics records one attempt per source call.
func WithMetrics(m *metrics.Metrics) Option { return func(r *Resolver) { r.metrics = m } }

// New creates a Resolver. A nil detector uses the built-in defaults.
func New(sources Sources, detector *mismatch.Detector, opts ...Option) *Resolver {
	r := &Resolver{sources: sources, detector: detector}
	for _, o := range opts {
		o(r)
	}
	if r.detector == nil {
		r.detector = mismatch.New(types.MismatchConfig{})
	}
	if r.log == nil {
		r.log = logrus.StandardLogger()
	}
	return r
}

// WithKinds returns a copy of r that only asks sources of the given kinds.
func (r *Resolver) WithKinds(kinds ...source.Kind) *Resolver {
	c := *r
	c.kinds = slices.Clone(kinds)
	return &c
}

// Resolve returns the first successful answer. Source failures move on to
// the next source; only exhaustion is an error, reported as *Unresolved.
// Cancellation of ctx is returned as is.
func (r *Resolver) Resolve(ctx context.Context, id ident.Identifier) (types.PaperMetadata, error) {
	query := id
	if id.Kind() == ident.KindURL {
		embedded, ok := ident.FromURL(id.Value())
		if !ok {
			return types.PaperMetadata{}, &Unresolved{
				Identifier: id.String(),
				LastErr:    fmt.Errorf("no DOI or arXiv ID in URL: %w", source.ErrNotFound),
			}
		}
		query = embedded
	}

	sources := r.sources.MetadataSources(r.kinds...)
	key := query.Key()
	if m, ok := r.cached(ctx, key); ok && r.admits(m, sources) {
		return m, nil
	}

	log := r.log.WithField("identifier", query.String())
	var attempted []string
	lastErr := error(source.ErrNotFound)

	for _, s := range sources {
		if err := ctx.Err(); err != nil {
			return types.PaperMetadata{}, err
		}
		name := s.Info().Name
		attempted = append(attempted, name)

		start := time.Now()
		m, err := s.Resolve(ctx, query)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return types.PaperMetadata{}, ctxErr
			}
			r.metrics.ObserveAttempt(name, "resolve", source.Outcome(err), time.Since(start))
			log.WithFields(logrus.Fields{"source": name, "outcome": source.Outcome(err)}).Debug("resolve attempt failed")
			lastErr = err
			continue
		}

		if query.Kind() == ident.KindTitle {
			if v := r.detector.Check(query.Value(), m); !v.Accept {
				r.metrics.ObserveAttempt(name, "resolve", "mismatch", time.Since(start))
				log.WithFields(logrus.Fields{"source": name, "candidate": m.Title, "reason": v.Reason}).Info("rejected title match")
				lastErr = fmt.Errorf("%s: %w: %s", name, ErrMismatch, v.Reason)
				continue
			}
		}

		r.metrics.ObserveAttempt(name, "resolve", "ok", time.Since(start))
		if m.Source == "" {
			m.Source = name
		}
		m = r.checkYear(log, m)
		r.store(ctx, key, m)
		log.WithFields(logrus.Fields{"source": name, "title": m.Title}).Debug("resolved")
		return m, nil
	}

	return types.PaperMetadata{}, &Unresolved{Identifier: query.String(), Attempted: attempted, LastErr: lastErr}
}

// checkYear clears impossible years and warns about implausible ones.
func (r *Resolver) checkYear(log logrus.FieldLogger, m types.PaperMetadata) types.PaperMetadata {
	switch {
	case m.Year == 0:
	case m.Year < minYear || m.Year > maxYear:
		log.WithFields(logrus.Fields{"source": m.Source, "year": m.Year}).Warn("discarding out-of-range publication year")
		m.Year = 0
	case m.Year > softMaxYear:
		log.WithFields(logrus.Fields{"source": m.Source, "year": m.Year}).Warn("publication year is in the future")
	}
	return m
}

// admits reports whether a cached record may answer this resolver. A
// kind-restricted resolver only takes records produced by one of its own
// sources.
func (r *Resolver) admits(m types.PaperMetadata, sources []source.MetadataSource) bool {
	if len(r.kinds) == 0 {
		return true
	}
	return slices.ContainsFunc(sources, func(s source.MetadataSource) bool {
		return s.Info().Name == m.Source
	})
}

func (r *Resolver) cached(ctx context.Context, key string) (types.PaperMetadata, bool) {
	if r.cache == nil {
		return types.PaperMetadata{}, false
	}
	m, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		r.log.WithError(err).WithField("key", key).Warn("metadata cache read failed")
		return types.PaperMetadata{}, false
	}
	return m, ok
}

// store caches m under the query key and, when it differs, under its DOI
// key so a later DOI lookup of a title hit is served from the cache.
func (r *Resolver) store(ctx context.Context, key string, m types.PaperMetadata) {
	if r.cache == nil {
		return
	}
	keys := []string{key}
	if m.DOI != "" {
		if doiKey := ident.DOI(m.DOI).Key(); doiKey != key {
			keys = append(keys, doiKey)
		}
	}
	for _, k := range keys {
		if err := r.cache.Put(ctx, k, m); err != nil {
			r.log.WithError(err).WithField("key", k).Warn("metadata cache write failed")
		}
	}
}
