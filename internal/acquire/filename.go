// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/paperfetch/pkg/types"
)

// Filename defaults.
const (
	DefaultFilenameFormat = "{first_author}_{year}_{title_short}"
	DefaultMaxTitleLength = 50
)

const unknown = "unknown"

var placeholder = regexp.MustCompile(`\{([a-z_]+)\}`)

// FormatFilename renders format for m and returns a filename stem (no
// extension). Placeholders are {first_author}, {year}, {title_short},
// {title}, and {doi}; a missing value renders as "unknown". The result only
// contains [A-Za-z0-9_-].
func FormatFilename(format string, m types.PaperMetadata, maxTitle int) string {
	if format == "" {
		format = DefaultFilenameFormat
	}
	if maxTitle <= 0 {
		maxTitle = DefaultMaxTitleLength
	}

	out := placeholder.ReplaceAllStringFunc(format, func(tok string) string {
		var v string
		switch tok[1 : len(tok)-1] {
		case "first_author":
			v = sanitize(m.FirstAuthor)
		case "year":
			if m.Year > 0 {
				v = strconv.Itoa(m.Year)
			}
		case "title_short":
			v = truncateWords(sanitize(m.Title), maxTitle)
		case "title":
			v = sanitize(m.Title)
		case "doi":
			v = sanitize(strings.NewReplacer("/", "_", ".", "_").Replace(m.DOI))
		default:
			return ""
		}
		if v == "" {
			return unknown
		}
		return v
	})

	out = strings.Trim(sanitize(out), "_-")
	if out == "" {
		return unknown
	}
	return out
}

var fold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// sanitize folds accents, turns whitespace into underscores, drops anything
// outside [A-Za-z0-9_-], and collapses runs of underscores.
func sanitize(s string) string {
	if folded, _, err := transform.String(fold, s); err == nil {
		s = folded
	}
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-'):
			b.WriteRune(r)
			lastUnderscore = false
		case r == '_' || unicode.IsSpace(r):
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}

// truncateWords cuts an underscore-joined title to at most n bytes,
// preferring a word boundary.
func truncateWords(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	if i := strings.LastIndexByte(cut, '_'); i > 0 {
		cut = cut[:i]
	}
	return strings.Trim(cut, "_-")
}
