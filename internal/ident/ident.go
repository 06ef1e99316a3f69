// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ident parses and classifies raw paper identifiers: DOIs, arXiv IDs,
// URLs, and free-text titles.
package ident

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"

	"github.com/zeebo/xxh3"
)

// Kind classifies an identifier.
type Kind int

const (
	KindUnknown Kind = iota
	KindDOI
	KindArxiv
	KindURL
	KindTitle
)

func (k Kind) String() string {
	switch k {
	case KindDOI:
		return "doi"
	case KindArxiv:
		return "arxiv"
	case KindURL:
		return "url"
	case KindTitle:
		return "title"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalid marks empty or malformed input. Never retried.
	ErrInvalid = errors.New("invalid identifier")

	// ErrPolicyExcluded marks a well-formed DOI from a family that is known
	// not to be retrievable as a paper (reviews, book chapters, datasets).
	ErrPolicyExcluded = errors.New("identifier excluded by policy")
)

// ValidationError describes why Classify rejected an input. Err is either
// ErrInvalid or ErrPolicyExcluded.
type ValidationError struct {
	Input  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %q: %s", e.Err, e.Input, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Identifier is a classified, normalized identifier. The zero value is
// invalid; construct one with Classify or the typed constructors.
type Identifier struct {
	kind  Kind
	value string
}

// DOI returns a DOI identifier without validation.
func DOI(v string) Identifier { return Identifier{kind: KindDOI, value: v} }

// Arxiv returns an arXiv identifier without validation.
func Arxiv(v string) Identifier { return Identifier{kind: KindArxiv, value: v} }

// URL returns a URL identifier without validation.
func URL(v string) Identifier { return Identifier{kind: KindURL, value: v} }

// Title returns a title identifier without validation.
func Title(v string) Identifier { return Identifier{kind: KindTitle, value: v} }

func (i Identifier) Kind() Kind     { return i.kind }
func (i Identifier) Value() string  { return i.value }
func (i Identifier) IsZero() bool   { return i.kind == KindUnknown }
func (i Identifier) String() string { return i.kind.String() + ":" + i.value }

// Key returns the normalized string used to recognize the same paper across
// runs: DOIs are lowercased, arXiv versions dropped, titles normalized.
func (i Identifier) Key() string {
	switch i.kind {
	case KindDOI:
		return "doi:" + strings.ToLower(i.value)
	case KindArxiv:
		return "arxiv:" + arxivVersion.ReplaceAllString(i.value, "")
	case KindTitle:
		return "title:" + NormalizeTitle(i.value)
	default:
		return i.String()
	}
}

// doiPattern matches DOIs: "10.1145/1234567.1234568".
var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)

// arxivNewPattern matches "2301.07041" and "2301.07041v2".
var arxivNewPattern = regexp.MustCompile(`^\d{4}\.\d{4,5}(?:v\d+)?$`)

// arxivOldPattern matches legacy IDs: "hep-th/9901001", "math.GT/0309136v1".
var arxivOldPattern = regexp.MustCompile(`^[a-z]+(?:-[a-z]+)*(?:\.[A-Z]{2})?/\d{7}(?:v\d+)?$`)

var arxivVersion = regexp.MustCompile(`v\d+$`)

// doiPrefixes are stripped before classification; the remainder must be a DOI.
var doiPrefixes = []string{
	"https://doi.org/", "http://doi.org/",
	"https://dx.doi.org/", "http://dx.doi.org/",
	"doi.org/", "doi:",
}

// Classify determines the identifier kind and returns the normalized value.
func Classify(raw string) (Identifier, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Identifier{}, &ValidationError{Input: raw, Reason: "empty identifier", Err: ErrInvalid}
	}

	if rest, ok := trimPrefixFold(s, "arxiv:"); ok {
		rest = strings.TrimSpace(rest)
		if isArxiv(rest) {
			return Arxiv(rest), nil
		}
		return Identifier{}, &ValidationError{Input: raw, Reason: "malformed arXiv ID", Err: ErrInvalid}
	}

	for _, p := range doiPrefixes {
		if rest, ok := trimPrefixFold(s, p); ok {
			return classifyDOI(raw, strings.TrimSpace(rest))
		}
	}

	if strings.HasPrefix(s, "10.") {
		return classifyDOI(raw, s)
	}

	if isArxiv(s) {
		return Arxiv(s), nil
	}

	if hasScheme(s) {
		return classifyURL(raw, s)
	}
	if _, ok := trimPrefixFold(s, "www."); ok {
		return Identifier{}, &ValidationError{Input: raw, Reason: "URL is missing a scheme", Err: ErrInvalid}
	}

	return Title(strings.Join(strings.Fields(s), " ")), nil
}

func classifyDOI(raw, s string) (Identifier, error) {
	s = strings.TrimRight(s, ".,;")
	if !doiPattern.MatchString(s) {
		return Identifier{}, &ValidationError{Input: raw, Reason: "malformed DOI", Err: ErrInvalid}
	}
	if reason := excludedDOI(s); reason != "" {
		return Identifier{}, &ValidationError{Input: raw, Reason: reason, Err: ErrPolicyExcluded}
	}
	return DOI(s), nil
}

func classifyURL(raw, s string) (Identifier, error) {
	u, ok := validURL(s)
	if !ok {
		return Identifier{}, &ValidationError{Input: raw, Reason: "malformed URL", Err: ErrInvalid}
	}
	parsed, err := url.Parse(u)
	if err == nil {
		host := strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
		switch {
		case host == "doi.org" || host == "dx.doi.org":
			return classifyDOI(raw, strings.TrimPrefix(parsed.Path, "/"))
		case host == "arxiv.org" || host == "export.arxiv.org":
			if id := arxivFromPath(parsed.Path); id != "" {
				return Arxiv(id), nil
			}
		}
	}
	return URL(u), nil
}

// arxivFromPath extracts the ID from "/abs/<id>" or "/pdf/<id>[.pdf]".
func arxivFromPath(p string) string {
	for _, prefix := range []string{"/abs/", "/pdf/"} {
		if rest, ok := strings.CutPrefix(p, prefix); ok {
			rest = strings.TrimSuffix(rest, ".pdf")
			if isArxiv(rest) {
				return rest
			}
		}
	}
	return ""
}

func isArxiv(s string) bool {
	return arxivNewPattern.MatchString(s) || arxivOldPattern.MatchString(s)
}

func hasScheme(s string) bool {
	_, http := trimPrefixFold(s, "http://")
	_, https := trimPrefixFold(s, "https://")
	return http || https || strings.Contains(s, "://")
}

func trimPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}

// NormalizeTitle returns a lowercased, punctuation-stripped version of the
// title with whitespace collapsed. LaTeX braces are dropped with the rest of
// the punctuation.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '/' || r == ':':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Slug returns a filesystem-safe filename stem for the identifier. It is
// used when no metadata is available to fill a filename template.
func Slug(id Identifier) string {
	switch id.kind {
	case KindArxiv:
		return strings.ReplaceAll(id.value, "/", "-")
	case KindDOI:
		return strings.NewReplacer("/", "-", ":", "-").Replace(id.value)
	case KindURL:
		u, err := url.Parse(id.value)
		if err != nil {
			return urlHashSlug(id.value)
		}
		base := strings.TrimSuffix(path.Base(u.Path), path.Ext(u.Path))
		if base == "" || base == "." || base == "/" {
			return urlHashSlug(id.value)
		}
		return base
	case KindTitle:
		return strings.ReplaceAll(NormalizeTitle(id.value), " ", "_")
	default:
		return "unknown"
	}
}

func urlHashSlug(rawURL string) string {
	return fmt.Sprintf("url-%016x", xxh3.HashString(rawURL))
}
