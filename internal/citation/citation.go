// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package citation checks bibliography entries against authoritative
// registries. An entry is verified when the record its identifier (or,
// lacking one, its title) resolves to carries the same title.
package citation

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paperfetch/internal/ident"
	"github.com/pdiddy/paperfetch/internal/mismatch"
	"github.com/pdiddy/paperfetch/internal/resolve"
	"github.com/pdiddy/paperfetch/internal/source"
	"github.com/pdiddy/paperfetch/pkg/types"
)

// DefaultTitleSimilarity is the minimum stated/resolved title similarity
// for a verified entry.
const DefaultTitleSimilarity = 0.85

// Kinds are the adapter kinds citations are checked against. Aggregators
// and gray-area mirrors are not authoritative for bibliographic metadata.
var Kinds = []source.Kind{source.KindRegistry, source.KindPreprint}

// identifierFields are searched in order for a DOI or arXiv ID.
var identifierFields = []string{"doi", "eprint", "arxiv", "url", "note", "howpublished"}

// Resolver resolves one identifier to metadata.
type Resolver interface {
	Resolve(ctx context.Context, id ident.Identifier) (types.PaperMetadata, error)
}

// Verifier assigns verdicts to citation entries. It does no file I/O.
type Verifier struct {
	resolver  Resolver
	threshold float64
	log       logrus.FieldLogger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithLogger sets the diagnostics logger.
func WithLogger(l logrus.FieldLogger) Option { return func(v *Verifier) { v.log = l } }

// New creates a Verifier that resolves through r as given.
func New(r Resolver, cfg types.CitationConfig, opts ...Option) *Verifier {
	v := &Verifier{resolver: r, threshold: cfg.TitleSimilarity}
	if v.threshold <= 0 || v.threshold > 1 {
		v.threshold = DefaultTitleSimilarity
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.log == nil {
		v.log = logrus.StandardLogger()
	}
	return v
}

// ForResolver creates a Verifier over r restricted to Kinds.
func ForResolver(r *resolve.Resolver, cfg types.CitationConfig, opts ...Option) *Verifier {
	return New(r.WithKinds(Kinds...), cfg, opts...)
}

// Verify returns a copy of entries with verdicts set. Keys in skipKeys are
// Skipped and keys in manualKeys are Manual, both without any lookup. When
// ctx is cancelled the remaining entries are returned unchecked.
func (v *Verifier) Verify(ctx context.Context, entries []types.CitationEntry, skipKeys, manualKeys []string) []types.CitationEntry {
	skip := keySet(skipKeys)
	manual := keySet(manualKeys)

	out := make([]types.CitationEntry, len(entries))
	copy(out, entries)
	for i := range out {
		e := &out[i]
		e.Verdict, e.Reason, e.Resolved = types.VerdictUnchecked, "", nil
		switch {
		case skip[e.Key]:
			e.Verdict = types.VerdictSkipped
			continue
		case manual[e.Key]:
			e.Verdict = types.VerdictManual
			continue
		}
		if ctx.Err() != nil {
			continue
		}
		v.verify(ctx, e)
		v.log.WithFields(logrus.Fields{"key": e.Key, "verdict": e.Verdict, "reason": e.Reason}).Debug("citation checked")
	}
	return out
}

func (v *Verifier) verify(ctx context.Context, e *types.CitationEntry) {
	title := cleanTitle(e.Field("title"))

	id, ok := entryIdentifier(*e)
	if !ok {
		if title == "" {
			e.Verdict, e.Reason = types.VerdictFailed, "no identifier or title"
			return
		}
		id = ident.Title(title)
	}

	m, err := v.resolver.Resolve(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		e.Verdict, e.Reason = types.VerdictFailed, fmt.Sprintf("unresolved %s: %v", id, err)
		return
	}
	e.Resolved = &m

	if title == "" {
		e.Verdict, e.Reason = types.VerdictFailed, "entry has no title to compare"
		return
	}
	sim := mismatch.TitleSimilarity(title, m.Title)
	if sim < v.threshold {
		e.Verdict = types.VerdictFailed
		e.Reason = fmt.Sprintf("title mismatch: %s resolves to %q (similarity %.2f)", id, m.Title, sim)
		return
	}
	e.Verdict = types.VerdictVerified
}

// entryIdentifier finds a DOI or arXiv ID in the entry's fields. Free-text
// fields are searched for URLs and for bare identifiers.
func entryIdentifier(e types.CitationEntry) (ident.Identifier, bool) {
	for _, name := range identifierFields {
		val := e.Field(name)
		if val == "" {
			continue
		}
		if u := ident.ExtractURL(val); u != "" {
			if id, ok := ident.FromURL(u); ok {
				return id, true
			}
		}
		for _, tok := range strings.Fields(strings.Trim(val, "{}")) {
			tok = strings.TrimRight(strings.Trim(tok, "{}()[]"), ".,;")
			id, err := ident.Classify(tok)
			if err == nil && (id.Kind() == ident.KindDOI || id.Kind() == ident.KindArxiv) {
				return id, true
			}
		}
	}
	return ident.Identifier{}, false
}

// cleanTitle drops BibTeX protective braces from a title.
func cleanTitle(s string) string {
	s = strings.NewReplacer("{", "", "}", "").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

func keySet(keys []string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			m[k] = true
		}
	}
	return m
}

// Partition splits entries by verdict. Manual, skipped and unchecked
// entries land in other.
func Partition(entries []types.CitationEntry) (verified, failed, other []types.CitationEntry) {
	for _, e := range entries {
		switch e.Verdict {
		case types.VerdictVerified:
			verified = append(verified, e)
		case types.VerdictFailed:
			failed = append(failed, e)
		default:
			other = append(other, e)
		}
	}
	return verified, failed, other
}
