// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paperfetch/internal/acquire"
	"github.com/pdiddy/paperfetch/internal/cache"
	"github.com/pdiddy/paperfetch/internal/ratelimit"
	"github.com/pdiddy/paperfetch/internal/source"
	"github.com/pdiddy/paperfetch/pkg/types"
)

type scriptedRetriever struct {
	results map[string]acquire.Result
	seen    []string
}

func (s *scriptedRetriever) Retrieve(_ context.Context, t types.RetrievalTask) (acquire.Result, error) {
	s.seen = append(s.seen, t.Query())
	if r, ok := s.results[t.Query()]; ok {
		return r, nil
	}
	return acquire.Result{}, &acquire.Failed{Input: t.Query(), LastErr: source.ErrNotFound}
}

func TestFetchAll(t *testing.T) {
	r := &scriptedRetriever{results: map[string]acquire.Result{
		"10.1038/nature12373": {Status: types.TaskSucceeded, Path: "papers/Author_2013_Some_title.pdf"},
		"2301.07041":          {Status: types.TaskSkipped, Path: "papers/x.pdf"},
	}}
	var out bytes.Buffer
	failed := fetchAll(context.Background(), r, []types.RetrievalTask{
		{Input: "10.1038/nature12373"},
		{Input: "2301.07041"},
		{Input: "10.9999/missing"},
	}, &out)

	assert.Equal(t, 1, failed)
	assert.Contains(t, out.String(), "saved:   10.1038/nature12373 -> papers/Author_2013_Some_title.pdf\n")
	assert.Contains(t, out.String(), "failed:  10.9999/missing")
	assert.NotContains(t, out.String(), "2301.07041", "skips are reported by the retriever")
}

func TestFetchAllCancelled(t *testing.T) {
	r := &scriptedRetriever{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	assert.Zero(t, fetchAll(ctx, r, []types.RetrievalTask{{Input: "a"}, {Input: "b"}}, &out))
	assert.Empty(t, r.seen)
}

func TestWriteReport(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := types.BatchSummary{Total: 3, Succeeded: 1, Skipped: 1, Failed: 1,
		Failures: []types.TaskFailure{{Input: "10.9999/missing", Error: "not found"}}}
	require.NoError(t, writeReport(fs, "report.yaml", s))

	data, err := afero.ReadFile(fs, "report.yaml")
	require.NoError(t, err)
	var back types.BatchSummary
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, s, back)
}

func TestReadKeys(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "manual.txt", []byte("# checked by hand\nsmith2020\n\n  jones2019  \n"), 0o644))

	keys, err := readKeys(fs, "manual.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"smith2020", "jones2019"}, keys)

	_, err = readKeys(fs, "missing.txt")
	assert.True(t, errors.Is(err, afero.ErrFileNotFound))
}

func TestPrintSources(t *testing.T) {
	rl := types.RateLimitConfig{GlobalDelay: 0.5, DefaultDelay: 1, PerSourceDelays: map[string]float64{"arxiv": 3}}
	reg := source.NewRegistry(types.Config{RateLimits: rl}, source.Deps{Pacer: ratelimit.New(rl)})

	var out bytes.Buffer
	require.NoError(t, printSources(&out, reg, ratelimit.New(rl), nil))
	s := out.String()

	assert.Contains(t, s, "NAME")
	assert.Contains(t, s, "crossref")
	assert.Contains(t, s, "institutional")
	assert.Contains(t, s, "3s")
	assert.NotContains(t, s, "scihub", "gray-area adapters need the disclaimer")
	assert.Contains(t, s, "Global delay: 500ms")
}

func TestTwoStage(t *testing.T) {
	sigs := make(chan os.Signal, 2)
	var out bytes.Buffer
	dispatch, abort, release := twoStage(context.Background(), sigs, &out)
	defer release()

	sigs <- os.Interrupt
	<-dispatch.Done()
	assert.NoError(t, abort.Err(), "the first interrupt only stops dispatch")

	sigs <- os.Interrupt
	<-abort.Done()
	assert.ErrorIs(t, abort.Err(), context.Canceled)
	assert.Contains(t, out.String(), "interrupt again to abort")
}

func TestTwoStage_ReleaseWithoutSignal(t *testing.T) {
	dispatch, abort, release := twoStage(context.Background(), make(chan os.Signal), &bytes.Buffer{})
	release()
	assert.ErrorIs(t, dispatch.Err(), context.Canceled)
	assert.ErrorIs(t, abort.Err(), context.Canceled)
}

func TestPrintSources_Named(t *testing.T) {
	rl := types.RateLimitConfig{DefaultDelay: 1}
	reg := source.NewRegistry(types.Config{RateLimits: rl}, source.Deps{})

	var out bytes.Buffer
	require.NoError(t, printSources(&out, reg, ratelimit.New(rl), []string{"arxiv", "crossref"}))
	s := out.String()
	assert.Contains(t, s, "arxiv")
	assert.Contains(t, s, "crossref")
	assert.NotContains(t, s, "openalex")

	err := printSources(&bytes.Buffer{}, reg, ratelimit.New(rl), []string{"nosuch"})
	assert.EqualError(t, err, `unknown source "nosuch"`)
}

func TestPrintCache(t *testing.T) {
	store, err := cache.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "doi:10.1000/a", types.PaperMetadata{Title: "A"}))

	var out bytes.Buffer
	require.NoError(t, printCache(ctx, &out, store, ".paperfetch-cache.db"))
	assert.Equal(t, "Metadata cache: 1 records (.paperfetch-cache.db)\n", out.String())
}
