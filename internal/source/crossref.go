// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/pdiddy/paperfetch/internal/ident"
	"github.com/pdiddy/paperfetch/pkg/types"
)

// crossrefAPIBase is the Crossref REST endpoint. Declared as a var so tests
// can substitute an httptest server.
var crossrefAPIBase = "https://api.crossref.org"

// Crossref resolves metadata from the DOI registry. It is authoritative for
// DOIs but serves no PDFs.
type Crossref struct{ base }

// Resolve looks up a DOI directly, an arXiv ID through its DataCite DOI,
// or a title through bibliographic search.
func (c *Crossref) Resolve(ctx context.Context, id ident.Identifier) (types.PaperMetadata, error) {
	switch id.Kind() {
	case ident.KindDOI:
		return c.work(ctx, id.Value())
	case ident.KindArxiv:
		return c.work(ctx, arxivDOI(id.Value()))
	case ident.KindTitle:
		return c.search(ctx, id.Value())
	default:
		return types.PaperMetadata{}, c.notFound("", errors.New("unsupported identifier kind "+id.Kind().String()))
	}
}

func (c *Crossref) work(ctx context.Context, doi string) (types.PaperMetadata, error) {
	apiURL := c.endpoint(crossrefAPIBase) + "/works/" + escapeDOI(doi) + c.mailto("?")
	var cr crossrefResponse
	if err := c.req.getJSON(ctx, apiURL, nil, &cr); err != nil {
		return types.PaperMetadata{}, err
	}
	return cr.Message.metadata(), nil
}

func (c *Crossref) search(ctx context.Context, title string) (types.PaperMetadata, error) {
	params := url.Values{
		"query.bibliographic": {title},
		"rows":                {"1"},
	}
	if c.http.Email != "" {
		params.Set("mailto", c.http.Email)
	}
	apiURL := c.endpoint(crossrefAPIBase) + "/works?" + params.Encode()

	var cr crossrefSearchResponse
	if err := c.req.getJSON(ctx, apiURL, nil, &cr); err != nil {
		return types.PaperMetadata{}, err
	}
	if len(cr.Message.Items) == 0 {
		return types.PaperMetadata{}, c.notFound(apiURL, errors.New("no results"))
	}
	return cr.Message.Items[0].metadata(), nil
}

// mailto joins the polite-pool contact parameter with sep.
func (c *Crossref) mailto(sep string) string {
	if c.http.Email == "" {
		return ""
	}
	return sep + "mailto=" + url.QueryEscape(c.http.Email)
}

// CrossRef API JSON structures.
type crossrefResponse struct {
	Message crossrefWork `json:"message"`
}

type crossrefSearchResponse struct {
	Message struct {
		Items []crossrefWork `json:"items"`
	} `json:"message"`
}

type crossrefWork struct {
	DOI            string           `json:"DOI"`
	URL            string           `json:"URL"`
	Title          []string         `json:"title"`
	ContainerTitle []string         `json:"container-title"`
	Abstract       string           `json:"abstract"`
	Author         []crossrefAuthor `json:"author"`
	Issued         crossrefDate     `json:"issued"`
	Published      crossrefDate     `json:"published"`
	Created        crossrefDate     `json:"created"`
	Link           []crossrefLink   `json:"link"`
	License        []crossrefLink   `json:"license"`
}

type crossrefAuthor struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	Name   string `json:"name"`
}

type crossrefDate struct {
	DateParts [][]int `json:"date-parts"`
}

func (d crossrefDate) year() int {
	if len(d.DateParts) > 0 && len(d.DateParts[0]) > 0 {
		return d.DateParts[0][0]
	}
	return 0
}

type crossrefLink struct {
	URL         string `json:"URL"`
	ContentType string `json:"content-type"`
}

func (w crossrefWork) metadata() types.PaperMetadata {
	m := types.PaperMetadata{
		DOI:        w.DOI,
		Abstract:   plainText(w.Abstract),
		LandingURL: w.URL,
		Source:     "crossref",
	}
	if len(w.Title) > 0 {
		m.Title = plainText(w.Title[0])
	}
	if len(w.ContainerTitle) > 0 {
		m.Venue = w.ContainerTitle[0]
	}
	for i, a := range w.Author {
		name := strings.TrimSpace(a.Given + " " + a.Family)
		if name == "" {
			name = a.Name
		}
		m.Authors = append(m.Authors, name)
		if i == 0 {
			m.FirstAuthor = a.Family
			if m.FirstAuthor == "" {
				m.FirstAuthor = familyName(a.Name)
			}
		}
	}
	for _, d := range []crossrefDate{w.Issued, w.Published, w.Created} {
		if y := d.year(); y > 0 {
			m.Year = y
			break
		}
	}
	for _, l := range w.Link {
		if l.ContentType == "application/pdf" {
			m.PDFURL = l.URL
			break
		}
	}
	for _, l := range w.License {
		if strings.Contains(l.URL, "creativecommons.org") {
			m.IsOpenAccess = true
			break
		}
	}
	m.ArxivID = arxivFromDOI(w.DOI)
	return m
}
