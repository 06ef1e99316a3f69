// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mismatch decides whether a paper returned by a title search is
// plausibly the paper the user asked for. It is a heuristic: it catches
// the common failure where a short title ("Falcon LLM") matches a paper
// from an unrelated field ("falcon" the bird), and accepts false negatives.
package mismatch

import (
	"strings"

	"github.com/xrash/smetrics"

	"github.com/pdiddy/paperfetch/internal/ident"
	"github.com/pdiddy/paperfetch/pkg/types"
)

// Rejection reasons.
const (
	ReasonFalseContext  = "false_context_keywords_found"
	ReasonLowSimilarity = "low_title_similarity"
)

// Defaults used when the configuration leaves a field at its zero value.
const (
	DefaultTitleSimilarity = 0.70
	DefaultFalseContextMin = 2
	DefaultInDomainMax     = 0
)

// DefaultInDomainKeywords are terms expected in the user's field.
var DefaultInDomainKeywords = []string{
	"llm", "large language model", "language model", "neural network",
	"transformer", "deep learning", "machine learning", "artificial intelligence",
	"gpt", "bert", "pretraining", "pre training", "fine tuning",
	"natural language processing", "nlp", "reinforcement learning",
	"embedding", "attention mechanism", "chatbot", "instruction tuning",
}

// DefaultFalseContextKeywords are terms that mark a homonym from another
// field: animal biology and ornithology.
var DefaultFalseContextKeywords = []string{
	"bird", "birds", "avian", "raptor", "raptors", "ornithology", "ornithological",
	"prey", "nest", "nesting", "plumage", "migration", "predator", "habitat",
	"breeding", "wildlife", "feather", "feathers", "clutch", "species",
	"zoology", "peregrine", "eggs", "hunting",
}

// Verdict is the outcome of Check.
type Verdict struct {
	Accept bool
	Reason string
}

// Detector holds the keyword sets and thresholds. It has no mutable state
// and is safe for concurrent use.
type Detector struct {
	inDomain        []string
	falseContext    []string
	titleSimilarity float64
	falseContextMin int
	inDomainMax     int
}

// New builds a Detector, filling zero-valued fields of cfg with defaults.
func New(cfg types.MismatchConfig) *Detector {
	d := &Detector{
		inDomain:        normalizeAll(cfg.InDomainKeywords),
		falseContext:    normalizeAll(cfg.FalseContextKeywords),
		titleSimilarity: cfg.TitleSimilarity,
		falseContextMin: cfg.FalseContextMin,
		inDomainMax:     cfg.InDomainMax,
	}
	if len(d.inDomain) == 0 {
		d.inDomain = normalizeAll(DefaultInDomainKeywords)
	}
	if len(d.falseContext) == 0 {
		d.falseContext = normalizeAll(DefaultFalseContextKeywords)
	}
	if d.titleSimilarity <= 0 {
		d.titleSimilarity = DefaultTitleSimilarity
	}
	if d.falseContextMin <= 0 {
		d.falseContextMin = DefaultFalseContextMin
	}
	if d.inDomainMax < 0 {
		d.inDomainMax = DefaultInDomainMax
	}
	return d
}

// Check compares a candidate against the title the user searched for. The
// keyword test runs first so a homonym is reported as such even when its
// title happens to be similar.
func (d *Detector) Check(queryTitle string, candidate types.PaperMetadata) Verdict {
	text := " " + ident.NormalizeTitle(candidate.Title+" "+candidate.Abstract) + " "
	falseHits := countHits(text, d.falseContext)
	inHits := countHits(text, d.inDomain)
	if falseHits >= d.falseContextMin && inHits <= d.inDomainMax {
		return Verdict{Reason: ReasonFalseContext}
	}

	if TitleSimilarity(queryTitle, candidate.Title) < d.titleSimilarity {
		return Verdict{Reason: ReasonLowSimilarity}
	}
	return Verdict{Accept: true}
}

// TitleSimilarity returns a 0-1 ratio between two titles: one minus the
// Levenshtein distance of their normalized forms over the longer length.
func TitleSimilarity(a, b string) float64 {
	na, nb := ident.NormalizeTitle(a), ident.NormalizeTitle(b)
	if na == "" && nb == "" {
		return 1
	}
	if na == "" || nb == "" {
		return 0
	}
	// WagnerFischer compares bytes, so titles are first rewritten one byte
	// per character.
	if ea, eb, ok := oneBytePerRune(na, nb); ok {
		na, nb = ea, eb
	}
	longest := max(len(na), len(nb))
	dist := smetrics.WagnerFischer(na, nb, 1, 1, 1)
	return 1 - float64(dist)/float64(longest)
}

// oneBytePerRune maps every distinct character of a and b to its own byte.
// ok is false when the two use more than 256 distinct characters.
func oneBytePerRune(a, b string) (string, string, bool) {
	codes := make(map[rune]byte)
	encode := func(s string) (string, bool) {
		out := make([]byte, 0, len(s))
		for _, r := range s {
			c, seen := codes[r]
			if !seen {
				if len(codes) == 256 {
					return "", false
				}
				c = byte(len(codes))
				codes[r] = c
			}
			out = append(out, c)
		}
		return string(out), true
	}
	ea, ok := encode(a)
	if !ok {
		return a, b, false
	}
	eb, ok := encode(b)
	if !ok {
		return a, b, false
	}
	return ea, eb, true
}

// countHits counts distinct keywords present in text as whole words. text
// must be normalized and padded with spaces.
func countHits(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, " "+kw+" ") {
			n++
		}
	}
	return n
}

func normalizeAll(words []string) []string {
	var out []string
	for _, w := range words {
		if n := ident.NormalizeTitle(w); n != "" {
			out = append(out, n)
		}
	}
	return out
}
