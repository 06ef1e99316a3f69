// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperfetch/internal/ident"
	"github.com/pdiddy/paperfetch/pkg/types"
)

func boolPtr(b bool) *bool { return &b }

func names[S Source](srcs []S) []string {
	out := make([]string, len(srcs))
	for i, s := range srcs {
		out[i] = s.Info().Name
	}
	return out
}

func TestNewRegistry_DefaultOrder(t *testing.T) {
	r := NewRegistry(types.Config{HTTP: types.HTTPConfig{Email: "me@example.com"}}, Deps{})

	assert.Equal(t, []string{
		"crossref", "openalex", "semantic_scholar", "europepmc", "unpaywall", "plos", "arxiv", "institutional",
	}, names(r.sources), "gray-area adapters are absent by default")

	assert.Equal(t, []string{
		"crossref", "openalex", "semantic_scholar", "europepmc", "unpaywall", "arxiv",
	}, names(r.MetadataSources()))

	assert.Equal(t, []string{
		"openalex", "semantic_scholar", "europepmc", "unpaywall", "plos", "arxiv",
	}, names(r.PDFSources(false)), "institutional needs a proxy and a session")
}

func TestNewRegistry_KindsFilter(t *testing.T) {
	r := NewRegistry(types.Config{}, Deps{})
	assert.Equal(t, []string{"crossref", "arxiv"}, names(r.MetadataSources(KindRegistry, KindPreprint)))
}

func TestNewRegistry_ConfigOverrides(t *testing.T) {
	r := NewRegistry(types.Config{
		Sources: map[string]types.SourceConfig{
			"arxiv":    {Priority: 5},
			"crossref": {Enabled: boolPtr(false)},
		},
	}, Deps{})

	ms := r.MetadataSources()
	require.NotEmpty(t, ms)
	assert.Equal(t, "arxiv", ms[0].Info().Name)
	assert.NotContains(t, names(ms), "crossref")

	src, ok := r.Lookup("crossref")
	require.True(t, ok, "disabled adapters stay listed")
	assert.False(t, src.Info().Enabled)
}

func TestNewRegistry_UnpaywallNeedsEmail(t *testing.T) {
	r := NewRegistry(types.Config{}, Deps{})
	src, ok := r.Lookup("unpaywall")
	require.True(t, ok)
	assert.False(t, src.Info().Enabled)
	assert.False(t, r.Usable(src.Info()))
}

func TestNewRegistry_GrayArea(t *testing.T) {
	mirrors := map[string]types.SourceConfig{
		"scihub": {Enabled: boolPtr(true), MirrorURL: "https://mirror.example"},
		"libgen": {Enabled: boolPtr(true)},
	}

	tests := []struct {
		name     string
		accepted bool
		sources  map[string]types.SourceConfig
		want     []string
	}{
		{"disclaimer not accepted", false, mirrors, nil},
		{"accepted but not enabled", true, nil, nil},
		{"accepted enabled with mirror", true, mirrors, []string{"scihub"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, hook := logtest.NewNullLogger()
			r := NewRegistry(types.Config{
				Sources:    tt.sources,
				Unofficial: types.UnofficialConfig{DisclaimerAccepted: tt.accepted},
			}, Deps{Log: log})

			var got []string
			for _, info := range r.Infos() {
				if info.Kind == KindUnofficial {
					got = append(got, info.Name)
				}
			}
			assert.Equal(t, tt.want, got)
			if tt.accepted && tt.sources != nil {
				require.NotNil(t, hook.LastEntry())
				assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
				assert.Equal(t, "libgen", hook.LastEntry().Data["source"])
			}
		})
	}
}

func TestRegistry_UsableRequiresCredentials(t *testing.T) {
	cfg := types.Config{Sources: map[string]types.SourceConfig{
		"institutional": {ProxyURL: "https://proxy.example/login?url="},
	}}
	r := NewRegistry(cfg, Deps{})
	src, ok := r.Lookup("institutional")
	require.True(t, ok)
	assert.False(t, r.Usable(src.Info()))
	assert.NotContains(t, names(r.PDFSources(false)), "institutional")

	r.creds = staticCreds{"institutional": "ezproxy=1"}
	assert.True(t, r.Usable(src.Info()))
	assert.Contains(t, names(r.PDFSources(false)), "institutional")
	assert.NotContains(t, names(r.PDFSources(true)), "institutional", "not open-access only")
}

func TestMethodOrder(t *testing.T) {
	assert.Equal(t, byIDTitle, methodOrder(byIDTitle, nil))
	assert.Equal(t, []Method{MethodTitle, MethodID}, methodOrder(byIDTitle, []string{"title", "id"}))
	assert.Equal(t, []Method{MethodID}, methodOrder(byID, []string{"title", "ID"}))
	assert.Equal(t, byID, methodOrder(byID, []string{"title"}), "falls back when nothing applies")
}

func TestNewRegistry_LookupPriorityApplied(t *testing.T) {
	r := NewRegistry(types.Config{LookupPriority: []string{"title", "id"}}, Deps{})
	src, ok := r.Lookup("arxiv")
	require.True(t, ok)
	assert.Equal(t, []Method{MethodTitle, MethodID}, src.Info().Methods)

	src, ok = r.Lookup("plos")
	require.True(t, ok)
	assert.Equal(t, []Method{MethodID}, src.Info().Methods)
}

type stubSource struct{ info Info }

func (s stubSource) Info() Info { return s.info }
func (s stubSource) Resolve(context.Context, ident.Identifier) (types.PaperMetadata, error) {
	return types.PaperMetadata{}, nil
}

func TestRegistry_RegisterKeepsPriorityOrder(t *testing.T) {
	r := &Registry{}
	r.Register(stubSource{Info{Name: "b", Priority: 20, Enabled: true, Capabilities: resolveOnly}})
	r.Register(stubSource{Info{Name: "a", Priority: 10, Enabled: true, Capabilities: resolveOnly}})
	r.Register(stubSource{Info{Name: "c", Priority: 20, Enabled: true, Capabilities: resolveOnly}})
	assert.Equal(t, []string{"a", "b", "c"}, names(r.sources))
	assert.Equal(t, []string{"a", "b", "c"}, names(r.MetadataSources()))
	assert.Empty(t, r.PDFSources(false))
}
