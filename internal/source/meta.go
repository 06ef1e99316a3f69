// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/paperfetch/internal/ident"
)

// arxivDOIPrefix is the DataCite prefix arXiv assigns to every preprint.
const arxivDOIPrefix = "10.48550/arxiv."

var arxivVersionSuffix = regexp.MustCompile(`v\d+$`)

// arxivDOI returns the DataCite DOI for an arXiv ID.
func arxivDOI(id string) string {
	return "10.48550/arXiv." + arxivVersionSuffix.ReplaceAllString(id, "")
}

// arxivFromDOI returns the arXiv ID encoded in an arXiv DataCite DOI, or "".
func arxivFromDOI(doi string) string {
	if len(doi) > len(arxivDOIPrefix) && strings.EqualFold(doi[:len(arxivDOIPrefix)], arxivDOIPrefix) {
		return doi[len(arxivDOIPrefix):]
	}
	return ""
}

// bareDOI strips resolver prefixes that APIs put on DOI fields.
func bareDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	for _, p := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "doi:"} {
		if len(doi) >= len(p) && strings.EqualFold(doi[:len(p)], p) {
			return doi[len(p):]
		}
	}
	return doi
}

// familyName returns the family name from a display name. "Given Family"
// uses the last token; "Family, Given" uses the part before the comma.
func familyName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if i := strings.Index(name, ","); i > 0 {
		return strings.TrimSpace(name[:i])
	}
	if i := strings.LastIndex(name, " "); i >= 0 {
		return name[i+1:]
	}
	return name
}

// sameTitle reports whether two titles are identical after normalization.
// PDF sources use it to accept a title-search hit.
func sameTitle(a, b string) bool {
	na, nb := ident.NormalizeTitle(a), ident.NormalizeTitle(b)
	return na != "" && na == nb
}

// plainText strips markup (JATS abstracts, HTML entities) from s.
func plainText(s string) string {
	if !strings.Contains(s, "<") && !strings.Contains(s, "&") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// running text.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}
