// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ident

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/asaskevich/govalidator"
	"mvdan.cc/xurls/v2"
)

var strictURLs = xurls.Strict()

// validURL checks scheme, host, and bracket balance. A URL lifted out of
// prose often carries the closing parenthesis of the sentence, so unmatched
// trailing closers are trimmed before giving up.
func validURL(s string) (string, bool) {
	for {
		if balanced(s) {
			break
		}
		last := s[len(s)-1]
		if last != ')' && last != ']' {
			return "", false
		}
		s = s[:len(s)-1]
		if s == "" {
			return "", false
		}
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if !govalidator.IsURL(s) {
		return "", false
	}
	return s, true
}

// balanced reports whether every '(' and '[' is closed in order.
func balanced(s string) bool {
	var stack []rune
	for _, r := range s {
		switch r {
		case '(', '[':
			stack = append(stack, r)
		case ')', ']':
			if len(stack) == 0 {
				return false
			}
			open := stack[len(stack)-1]
			if (r == ')' && open != '(') || (r == ']' && open != '[') {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}
	return len(stack) == 0
}

// ExtractURL returns the first http(s) URL found in free text, with trailing
// sentence punctuation and unmatched closers removed. It returns "" when the
// text holds no valid URL.
func ExtractURL(text string) string {
	for _, candidate := range strictURLs.FindAllString(text, -1) {
		candidate = strings.TrimRight(candidate, ".,;:!?'\"")
		if u, ok := validURL(candidate); ok {
			return u
		}
	}
	return ""
}

var (
	embeddedDOI   = regexp.MustCompile(`10\.\d{4,9}/[^\s?#&]+`)
	embeddedArxiv = regexp.MustCompile(`\d{4}\.\d{4,5}(?:v\d+)?`)
)

// FromURL extracts a DOI or arXiv ID embedded in a publisher or mirror URL,
// e.g. "https://dl.acm.org/doi/10.1145/3442188.3445922". arXiv IDs are only
// taken from hosts that mention arxiv.
func FromURL(rawURL string) (Identifier, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Identifier{}, false
	}
	p, err := url.PathUnescape(u.EscapedPath())
	if err != nil {
		p = u.Path
	}

	if doi := embeddedDOI.FindString(p); doi != "" {
		doi = strings.TrimSuffix(strings.TrimRight(doi, ".,;"), ".pdf")
		for _, suffix := range []string{"/pdf", "/full", "/abstract", "/epdf"} {
			doi = strings.TrimSuffix(doi, suffix)
		}
		if id, err := classifyDOI(rawURL, doi); err == nil {
			return id, true
		}
	}
	if strings.Contains(strings.ToLower(u.Host), "arxiv") {
		if id := embeddedArxiv.FindString(p); id != "" {
			return Arxiv(id), true
		}
	}
	return Identifier{}, false
}
