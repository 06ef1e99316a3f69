// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// PaperMetadata holds the resolved bibliographic record for a paper. It is
// produced by the metadata resolver and passed by value; a re-resolution
// replaces it rather than mutating it.
type PaperMetadata struct {
	// Title is the paper title as reported by the source.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// FirstAuthor is the family name of the first author (e.g. "Vaswani").
	FirstAuthor string `json:"first_author" yaml:"first_author"`

	// Year is the publication year, or 0 when unknown.
	Year int `json:"year" yaml:"year"`

	// DOI is the bare DOI without resolver prefix (e.g. "10.1038/nature12373").
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// ArxivID is the arXiv identifier without the "arXiv:" prefix.
	ArxivID string `json:"arxiv_id,omitempty" yaml:"arxiv_id,omitempty"`

	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// Venue is the journal or conference name. Empty for preprints.
	Venue string `json:"venue,omitempty" yaml:"venue,omitempty"`

	// PDFURL is a direct PDF location reported by the source, if any.
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`

	// LandingURL is the publisher landing page, if known.
	LandingURL string `json:"landing_url,omitempty" yaml:"landing_url,omitempty"`

	// Source names the adapter that produced this record (e.g. "crossref").
	Source string `json:"source_name" yaml:"source_name"`

	IsOpenAccess bool `json:"is_open_access" yaml:"is_open_access"`
}

// HasIdentifier reports whether the record carries a DOI or arXiv ID.
func (m PaperMetadata) HasIdentifier() bool {
	return m.DOI != "" || m.ArxivID != ""
}

// CanonicalURL returns the best human-facing URL for the paper: the landing
// page, then the DOI resolver, then the arXiv abstract page.
func (m PaperMetadata) CanonicalURL() string {
	switch {
	case m.LandingURL != "":
		return m.LandingURL
	case m.DOI != "":
		return "https://doi.org/" + m.DOI
	case m.ArxivID != "":
		return "https://arxiv.org/abs/" + m.ArxivID
	default:
		return ""
	}
}
