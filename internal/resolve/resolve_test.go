// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperfetch/internal/cache"
	"github.com/pdiddy/paperfetch/internal/ident"
	"github.com/pdiddy/paperfetch/internal/metrics"
	"github.com/pdiddy/paperfetch/internal/mismatch"
	"github.com/pdiddy/paperfetch/internal/source"
	"github.com/pdiddy/paperfetch/pkg/types"
)

// fakeSource answers every Resolve with a fixed record or error.
type fakeSource struct {
	name  string
	kind  source.Kind
	meta  types.PaperMetadata
	err   error
	calls atomic.Int32
	seen  []ident.Identifier
}

func (f *fakeSource) Info() source.Info {
	return source.Info{Name: f.name, Kind: f.kind, Enabled: true, Capabilities: []source.Capability{source.CapResolve}}
}

func (f *fakeSource) Resolve(_ context.Context, id ident.Identifier) (types.PaperMetadata, error) {
	f.calls.Add(1)
	f.seen = append(f.seen, id)
	return f.meta, f.err
}

type fakeSources []*fakeSource

func (fs fakeSources) MetadataSources(kinds ...source.Kind) []source.MetadataSource {
	var out []source.MetadataSource
	for _, f := range fs {
		if len(kinds) > 0 && !slices.Contains(kinds, f.kind) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func quietLogger() (*logrus.Logger, *logtest.Hook) {
	return logtest.NewNullLogger()
}

func notFound(name string) error {
	return &source.Error{Source: name, Kind: source.ErrNotFound}
}

func TestResolve_FirstSuccessWins(t *testing.T) {
	a := &fakeSource{name: "crossref", kind: source.KindRegistry, err: notFound("crossref")}
	b := &fakeSource{name: "openalex", kind: source.KindAggregator, meta: types.PaperMetadata{Title: "Some title", Year: 2013, DOI: "10.1038/nature12373"}}
	c := &fakeSource{name: "arxiv", kind: source.KindPreprint, meta: types.PaperMetadata{Title: "Other"}}
	log, _ := quietLogger()

	r := New(fakeSources{a, b, c}, nil, WithLogger(log))
	m, err := r.Resolve(context.Background(), ident.DOI("10.1038/nature12373"))
	require.NoError(t, err)
	assert.Equal(t, "Some title", m.Title)
	assert.Equal(t, "openalex", m.Source, "source name filled in when the adapter leaves it empty")
	assert.Equal(t, int32(1), a.calls.Load())
	assert.Equal(t, int32(1), b.calls.Load())
	assert.Equal(t, int32(0), c.calls.Load())
}

func TestResolve_AbsorbsEveryErrorKind(t *testing.T) {
	kinds := []error{source.ErrNotFound, source.ErrRateLimited, source.ErrAuthRequired, source.ErrNetwork, source.ErrTimeout, source.ErrBlocked}
	var fs fakeSources
	for _, k := range kinds {
		fs = append(fs, &fakeSource{name: k.Error(), kind: source.KindRegistry, err: &source.Error{Source: k.Error(), Kind: k}})
	}
	fs = append(fs, &fakeSource{name: "last", kind: source.KindPreprint, meta: types.PaperMetadata{Title: "Found"}})
	log, _ := quietLogger()

	m, err := New(fs, nil, WithLogger(log)).Resolve(context.Background(), ident.Arxiv("2301.07041"))
	require.NoError(t, err)
	assert.Equal(t, "Found", m.Title)
}

func TestResolve_Unresolved(t *testing.T) {
	a := &fakeSource{name: "crossref", kind: source.KindRegistry, err: notFound("crossref")}
	b := &fakeSource{name: "arxiv", kind: source.KindPreprint, err: &source.Error{Source: "arxiv", Kind: source.ErrTimeout}}
	log, _ := quietLogger()

	_, err := New(fakeSources{a, b}, nil, WithLogger(log)).Resolve(context.Background(), ident.DOI("10.1000/xyz"))
	var u *Unresolved
	require.True(t, errors.As(err, &u))
	assert.Equal(t, []string{"crossref", "arxiv"}, u.Attempted)
	assert.True(t, errors.Is(err, source.ErrTimeout), "LastErr is the last source's error")
	assert.Contains(t, err.Error(), "crossref, arxiv")
}

func TestResolve_NoSources(t *testing.T) {
	log, _ := quietLogger()
	_, err := New(fakeSources{}, nil, WithLogger(log)).Resolve(context.Background(), ident.DOI("10.1000/xyz"))
	var u *Unresolved
	require.True(t, errors.As(err, &u))
	assert.Empty(t, u.Attempted)
	assert.True(t, source.IsNotFound(err))
}

func TestResolve_FalconMismatch(t *testing.T) {
	bird := types.PaperMetadata{
		Title:    "Falcon",
		Abstract: "Nesting behaviour of the peregrine falcon: prey selection and habitat use by this raptor.",
	}
	a := &fakeSource{name: "crossref", kind: source.KindRegistry, meta: bird}
	b := &fakeSource{name: "semantic_scholar", kind: source.KindCitationGraph, meta: bird}
	log, hook := quietLogger()

	_, err := New(fakeSources{a, b}, mismatch.New(types.MismatchConfig{}), WithLogger(log)).
		Resolve(context.Background(), ident.Title("Falcon LLM"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMismatch))
	assert.Contains(t, err.Error(), mismatch.ReasonFalseContext)
	assert.Equal(t, int32(1), b.calls.Load(), "a rejected candidate moves on to the next source")
	require.NotEmpty(t, hook.AllEntries())
}

func TestResolve_TitleAccepted(t *testing.T) {
	a := &fakeSource{name: "crossref", kind: source.KindRegistry, meta: types.PaperMetadata{Title: "Attention Is All You Need", Year: 2017}}
	log, _ := quietLogger()

	m, err := New(fakeSources{a}, nil, WithLogger(log)).Resolve(context.Background(), ident.Title("attention is all you need"))
	require.NoError(t, err)
	assert.Equal(t, 2017, m.Year)
}

func TestResolve_MismatchNotAppliedToIDs(t *testing.T) {
	a := &fakeSource{name: "crossref", kind: source.KindRegistry, meta: types.PaperMetadata{Title: "Completely unrelated"}}
	log, _ := quietLogger()

	m, err := New(fakeSources{a}, nil, WithLogger(log)).Resolve(context.Background(), ident.DOI("10.1000/xyz"))
	require.NoError(t, err)
	assert.Equal(t, "Completely unrelated", m.Title)
}

func TestResolve_URLWithEmbeddedDOI(t *testing.T) {
	a := &fakeSource{name: "crossref", kind: source.KindRegistry, meta: types.PaperMetadata{Title: "On the Dangers of Stochastic Parrots"}}
	log, _ := quietLogger()

	_, err := New(fakeSources{a}, nil, WithLogger(log)).
		Resolve(context.Background(), ident.URL("https://dl.acm.org/doi/10.1145/3442188.3445922"))
	require.NoError(t, err)
	require.Len(t, a.seen, 1)
	assert.Equal(t, ident.DOI("10.1145/3442188.3445922"), a.seen[0])
}

func TestResolve_URLWithoutIdentifier(t *testing.T) {
	a := &fakeSource{name: "crossref", kind: source.KindRegistry}
	log, _ := quietLogger()

	_, err := New(fakeSources{a}, nil, WithLogger(log)).
		Resolve(context.Background(), ident.URL("https://example.com/paper.pdf"))
	var u *Unresolved
	require.True(t, errors.As(err, &u))
	assert.Equal(t, int32(0), a.calls.Load())
}

func TestResolve_YearSanity(t *testing.T) {
	tests := []struct {
		name     string
		year     int
		wantYear int
		wantWarn bool
	}{
		{"normal", 2013, 2013, false},
		{"unknown", 0, 0, false},
		{"too old", 1850, 0, true},
		{"too far", 2150, 0, true},
		{"soft future", 2045, 2045, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &fakeSource{name: "crossref", kind: source.KindRegistry, meta: types.PaperMetadata{Title: "T", Year: tt.year}}
			log, hook := quietLogger()

			m, err := New(fakeSources{a}, nil, WithLogger(log)).Resolve(context.Background(), ident.DOI("10.1000/xyz"))
			require.NoError(t, err)
			assert.Equal(t, tt.wantYear, m.Year)

			warned := false
			for _, e := range hook.AllEntries() {
				if e.Level == logrus.WarnLevel {
					warned = true
				}
			}
			assert.Equal(t, tt.wantWarn, warned)
		})
	}
}

func TestResolve_Cache(t *testing.T) {
	store, err := cache.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	a := &fakeSource{name: "crossref", kind: source.KindRegistry, meta: types.PaperMetadata{Title: "Deep Residual Learning for Image Recognition", DOI: "10.1109/CVPR.2016.90"}}
	log, _ := quietLogger()
	r := New(fakeSources{a}, nil, WithLogger(log), WithCache(store))
	ctx := context.Background()

	_, err = r.Resolve(ctx, ident.Title("Deep Residual Learning for Image Recognition"))
	require.NoError(t, err)
	_, err = r.Resolve(ctx, ident.Title("deep residual learning for image recognition!"))
	require.NoError(t, err)
	m, err := r.Resolve(ctx, ident.DOI("10.1109/cvpr.2016.90"))
	require.NoError(t, err)

	assert.Equal(t, "Deep Residual Learning for Image Recognition", m.Title)
	assert.Equal(t, int32(1), a.calls.Load(), "title and DOI lookups after the first are served from the cache")

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestResolve_WithKinds(t *testing.T) {
	reg := &fakeSource{name: "crossref", kind: source.KindRegistry, err: notFound("crossref")}
	agg := &fakeSource{name: "openalex", kind: source.KindAggregator, meta: types.PaperMetadata{Title: "X"}}
	pre := &fakeSource{name: "arxiv", kind: source.KindPreprint, meta: types.PaperMetadata{Title: "Y"}}
	log, _ := quietLogger()

	base := New(fakeSources{reg, agg, pre}, nil, WithLogger(log))
	restricted := base.WithKinds(source.KindRegistry, source.KindPreprint)

	m, err := restricted.Resolve(context.Background(), ident.DOI("10.1000/xyz"))
	require.NoError(t, err)
	assert.Equal(t, "Y", m.Title)
	assert.Equal(t, int32(0), agg.calls.Load())

	m, err = base.Resolve(context.Background(), ident.DOI("10.1000/xyz"))
	require.NoError(t, err)
	assert.Equal(t, "X", m.Title, "WithKinds does not change the original resolver")
}

func TestResolve_WithKindsIgnoresForeignCacheHits(t *testing.T) {
	store, err := cache.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := &fakeSource{name: "crossref", kind: source.KindRegistry, err: notFound("crossref")}
	agg := &fakeSource{name: "openalex", kind: source.KindAggregator, meta: types.PaperMetadata{Title: "Aggregator title"}}
	pre := &fakeSource{name: "arxiv", kind: source.KindPreprint, meta: types.PaperMetadata{Title: "Preprint title"}}
	log, _ := quietLogger()
	base := New(fakeSources{reg, agg, pre}, nil, WithLogger(log), WithCache(store))
	ctx := context.Background()

	m, err := base.Resolve(ctx, ident.DOI("10.1000/xyz"))
	require.NoError(t, err)
	assert.Equal(t, "openalex", m.Source)

	restricted := base.WithKinds(source.KindRegistry, source.KindPreprint)
	m, err = restricted.Resolve(ctx, ident.DOI("10.1000/xyz"))
	require.NoError(t, err)
	assert.Equal(t, "arxiv", m.Source)
	assert.Equal(t, "Preprint title", m.Title)
	assert.Equal(t, int32(1), pre.calls.Load())

	m, err = restricted.Resolve(ctx, ident.DOI("10.1000/xyz"))
	require.NoError(t, err)
	assert.Equal(t, "arxiv", m.Source)
	assert.Equal(t, int32(1), pre.calls.Load(), "its own record is served from the cache")
}

func TestResolve_Cancelled(t *testing.T) {
	a := &fakeSource{name: "crossref", kind: source.KindRegistry, meta: types.PaperMetadata{Title: "T"}}
	log, _ := quietLogger()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(fakeSources{a}, nil, WithLogger(log)).Resolve(ctx, ident.DOI("10.1000/xyz"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), a.calls.Load())
}

func TestResolve_Metrics(t *testing.T) {
	a := &fakeSource{name: "crossref", kind: source.KindRegistry, err: notFound("crossref")}
	b := &fakeSource{name: "arxiv", kind: source.KindPreprint, meta: types.PaperMetadata{Title: "T"}}
	log, _ := quietLogger()
	m := metrics.New()

	_, err := New(fakeSources{a, b}, nil, WithLogger(log), WithMetrics(m)).Resolve(context.Background(), ident.Arxiv("2301.07041"))
	require.NoError(t, err)

	families, err := m.Registry.Gather()
	require.NoError(t, err)
	var attempts float64
	for _, f := range families {
		if f.GetName() == "paperfetch_source_attempts_total" {
			for _, metric := range f.GetMetric() {
				attempts += metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 2.0, attempts)
}
