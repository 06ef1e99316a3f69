// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package citation

import (
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paperfetch/internal/ident"
	"github.com/pdiddy/paperfetch/pkg/types"
)

// CSLItem is a bibliographic entry in CSL (Citation Style Language) form.
// Field names follow the CSL-YAML schema so the output is consumable by
// Pandoc and reference managers.
type CSLItem struct {
	ID             string    `yaml:"id"`
	Type           string    `yaml:"type"`
	Title          string    `yaml:"title"`
	Author         []CSLName `yaml:"author,omitempty"`
	ContainerTitle string    `yaml:"container-title,omitempty"`
	Abstract       string    `yaml:"abstract,omitempty"`
	Issued         *CSLDate  `yaml:"issued,omitempty"`
	DOI            string    `yaml:"DOI,omitempty"`
	URL            string    `yaml:"URL,omitempty"`
}

// CSLName is a person's name in CSL form.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate is a date in CSL date-parts form.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// FormatCSL writes resolved records as a CSL-YAML list to w.
func FormatCSL(w io.Writer, records []types.PaperMetadata) error {
	items := make([]CSLItem, len(records))
	for i, m := range records {
		items[i] = ToCSL(m)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(items)
}

// ToCSL converts a resolved record. Records with a venue are journal
// articles; the rest are typed as preprints.
func ToCSL(m types.PaperMetadata) CSLItem {
	item := CSLItem{
		ID:             cslID(m),
		Type:           "article",
		Title:          m.Title,
		ContainerTitle: m.Venue,
		Abstract:       m.Abstract,
		DOI:            m.DOI,
		URL:            m.CanonicalURL(),
	}
	if m.Venue != "" {
		item.Type = "article-journal"
	}
	for _, a := range m.Authors {
		if n := parseAuthorName(a); n != (CSLName{}) {
			item.Author = append(item.Author, n)
		}
	}
	if m.Year > 0 {
		item.Issued = &CSLDate{DateParts: [][]int{{m.Year}}}
	}
	return item
}

// cslID prefers the DOI, then the arXiv ID, then a title slug.
func cslID(m types.PaperMetadata) string {
	switch {
	case m.DOI != "":
		return m.DOI
	case m.ArxivID != "":
		return "arXiv:" + m.ArxivID
	default:
		return ident.Slug(ident.Title(m.Title))
	}
}

// parseAuthorName splits a name into CSL family/given parts. "Family,
// Given" is split at the comma; otherwise everything before the last space
// is given and the last token is family. Single-token names use the literal
// field.
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return CSLName{}
	}
	if family, given, ok := strings.Cut(name, ","); ok {
		return CSLName{Family: strings.TrimSpace(family), Given: strings.TrimSpace(given)}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	return CSLName{
		Given:  name[:idx],
		Family: name[idx+1:],
	}
}
