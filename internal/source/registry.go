// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"net/http"
	"slices"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paperfetch/pkg/types"
)

// Deps are the collaborators shared by every adapter.
type Deps struct {
	// Client performs HTTP calls. Nil builds one with http.timeout.
	Client *http.Client

	// Pacer gates every request; normally the rate governor.
	Pacer Pacer

	Credentials Credentials
	Log         logrus.FieldLogger
}

func (d Deps) defaults(hc types.HTTPConfig) (logrus.FieldLogger, *http.Client) {
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	client := d.Client
	if client == nil {
		client = &http.Client{Timeout: hc.Timeout}
	}
	return log, client
}

type builtin struct {
	info  Info
	gray  bool
	build func(b base) Source
}

var (
	resolveOnly  = []Capability{CapResolve}
	fetchOnly    = []Capability{CapFetch}
	resolveFetch = []Capability{CapResolve, CapFetch}
	byID         = []Method{MethodID}
	byIDTitle    = []Method{MethodID, MethodTitle}
)

// builtins lists every adapter with its default description. Peer-reviewed
// registries and aggregators come ahead of preprints so a published
// version wins over its preprint.
var builtins = []builtin{
	{info: Info{Name: "crossref", Kind: KindRegistry, Priority: 10, Enabled: true, Capabilities: resolveOnly},
		build: func(b base) Source { return &Crossref{base: b} }},
	{info: Info{Name: "openalex", Kind: KindAggregator, Priority: 20, Enabled: true, OpenAccessOnly: true, Capabilities: resolveFetch, Methods: byIDTitle},
		build: func(b base) Source { return &OpenAlex{base: b} }},
	{info: Info{Name: "semantic_scholar", Kind: KindCitationGraph, Priority: 30, Enabled: true, OpenAccessOnly: true, Capabilities: resolveFetch, Methods: byIDTitle},
		build: func(b base) Source { return &SemanticScholar{base: b} }},
	{info: Info{Name: "europepmc", Kind: KindRepository, Priority: 40, Enabled: true, OpenAccessOnly: true, Capabilities: resolveFetch, Methods: byID},
		build: func(b base) Source { return &EuropePMC{base: b} }},
	{info: Info{Name: "unpaywall", Kind: KindAggregator, Priority: 50, Enabled: true, OpenAccessOnly: true, Capabilities: resolveFetch, Methods: byID},
		build: func(b base) Source { return &Unpaywall{base: b} }},
	{info: Info{Name: "plos", Kind: KindPublisher, Priority: 60, Enabled: true, OpenAccessOnly: true, Capabilities: fetchOnly, Methods: byID},
		build: func(b base) Source { return &PLOS{base: b} }},
	{info: Info{Name: "arxiv", Kind: KindPreprint, Priority: 70, Enabled: true, OpenAccessOnly: true, Capabilities: resolveFetch, Methods: byIDTitle},
		build: func(b base) Source { return &Arxiv{base: b} }},
	{info: Info{Name: "institutional", Kind: KindInstitutional, Priority: 80, Enabled: true, RequiresAuth: true, Capabilities: fetchOnly, Methods: byID},
		build: func(b base) Source { return &Institutional{base: b} }},
	{info: Info{Name: "scihub", Kind: KindUnofficial, Priority: 90, Capabilities: fetchOnly, Methods: byID}, gray: true,
		build: func(b base) Source { return newSciHub(b) }},
	{info: Info{Name: "libgen", Kind: KindUnofficial, Priority: 100, Capabilities: fetchOnly, Methods: byID}, gray: true,
		build: func(b base) Source { return newLibGen(b) }},
}

// Registry holds the adapters in ascending priority. It is built once and
// read-only afterwards, except for Register in tests.
type Registry struct {
	sources []Source
	creds   Credentials
}

// NewRegistry builds every adapter from configuration. Gray-area adapters
// are left out entirely unless the disclaimer is accepted, the adapter is
// enabled, and a mirror is configured.
func NewRegistry(cfg types.Config, deps Deps) *Registry {
	log, client := deps.defaults(cfg.HTTP)

	r := &Registry{creds: deps.Credentials}
	for _, bi := range builtins {
		info := bi.info
		sc := cfg.Sources[info.Name]
		info.Enabled = sc.IsEnabled(info.Enabled)
		if sc.Priority != 0 {
			info.Priority = sc.Priority
		}
		info.Methods = methodOrder(info.Methods, cfg.LookupPriority)

		fields := logrus.Fields{"source": info.Name}
		switch {
		case bi.gray && !(cfg.Unofficial.DisclaimerAccepted && info.Enabled):
			continue
		case bi.gray && sc.MirrorURL == "":
			log.WithFields(fields).Warn("unofficial source enabled without mirror_url; leaving it out")
			continue
		case info.Name == "unpaywall" && cfg.HTTP.Email == "" && info.Enabled:
			log.WithFields(fields).Debug("http.email not set; disabling")
			info.Enabled = false
		case info.Name == "institutional" && sc.ProxyURL == "" && info.Enabled:
			info.Enabled = false
		}

		b := newBase(info, sc, cfg, deps.Credentials, client, deps.Pacer, log)
		r.Register(bi.build(b))
	}
	return r
}

// methodOrder applies the lookup_priority override to an adapter's default
// method order. Methods the adapter does not support are ignored.
func methodOrder(defaults []Method, override []string) []Method {
	if len(override) == 0 || len(defaults) == 0 {
		return defaults
	}
	var out []Method
	for _, o := range override {
		m := Method(strings.ToLower(strings.TrimSpace(o)))
		if slices.Contains(defaults, m) && !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return defaults
	}
	return out
}

// Register adds s, keeping ascending priority order. Ties keep insertion
// order.
func (r *Registry) Register(s Source) {
	r.sources = append(r.sources, s)
	sort.SliceStable(r.sources, func(i, j int) bool {
		return r.sources[i].Info().Priority < r.sources[j].Info().Priority
	})
}

// Infos returns the description of every registered adapter.
func (r *Registry) Infos() []Info {
	out := make([]Info, len(r.sources))
	for i, s := range r.sources {
		out[i] = s.Info()
	}
	return out
}

// Lookup returns the adapter with the given name.
func (r *Registry) Lookup(name string) (Source, bool) {
	for _, s := range r.sources {
		if s.Info().Name == name {
			return s, true
		}
	}
	return nil, false
}

// Usable reports whether an adapter may be tried: it is enabled and, if it
// requires authentication, the credential store holds a session for it.
func (r *Registry) Usable(info Info) bool {
	if !info.Enabled {
		return false
	}
	if !info.RequiresAuth {
		return true
	}
	if r.creds == nil {
		return false
	}
	_, ok := r.creds.Session(info.Name)
	return ok
}

// MetadataSources returns the usable resolvers in priority order,
// optionally restricted to the given kinds.
func (r *Registry) MetadataSources(kinds ...Kind) []MetadataSource {
	var out []MetadataSource
	for _, s := range r.sources {
		info := s.Info()
		ms, ok := s.(MetadataSource)
		if !ok || !info.Can(CapResolve) || !r.Usable(info) {
			continue
		}
		if len(kinds) > 0 && !slices.Contains(kinds, info.Kind) {
			continue
		}
		out = append(out, ms)
	}
	return out
}

// PDFSources returns the usable PDF sources in priority order. With
// openAccessOnly only adapters that serve nothing but open-access content
// are returned.
func (r *Registry) PDFSources(openAccessOnly bool) []PDFSource {
	var out []PDFSource
	for _, s := range r.sources {
		info := s.Info()
		ps, ok := s.(PDFSource)
		if !ok || !info.Can(CapFetch) || !r.Usable(info) {
			continue
		}
		if openAccessOnly && !info.OpenAccessOnly {
			continue
		}
		out = append(out, ps)
	}
	return out
}
