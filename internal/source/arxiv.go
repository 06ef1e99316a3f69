// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/paperfetch/internal/ident"
	"github.com/pdiddy/paperfetch/pkg/types"
)

// arXiv endpoints. Declared as vars so tests can substitute an httptest
// server.
var (
	arxivAPIBase = "https://export.arxiv.org/api/query"
	arxivPDFBase = "https://arxiv.org/pdf"
)

// Arxiv resolves preprint metadata from the arXiv API and fetches PDFs
// from arxiv.org.
type Arxiv struct {
	base
	pdf string
}

func (a *Arxiv) Resolve(ctx context.Context, id ident.Identifier) (types.PaperMetadata, error) {
	e, err := a.lookup(ctx, id)
	if err != nil {
		return types.PaperMetadata{}, err
	}
	return e.metadata(), nil
}

func (a *Arxiv) Fetch(ctx context.Context, req FetchRequest) ([]byte, error) {
	var arxivID string
	switch req.Method {
	case MethodID:
		arxivID = req.Metadata.ArxivID
		if arxivID == "" {
			arxivID = arxivFromDOI(req.Metadata.DOI)
		}
		if arxivID == "" {
			return nil, a.notFound("", errors.New("no arXiv ID"))
		}
	case MethodTitle:
		e, err := a.lookup(ctx, ident.Title(req.Metadata.Title))
		if err != nil {
			return nil, err
		}
		if !sameTitle(e.Title, req.Metadata.Title) {
			return nil, a.notFound("", errors.New("title search returned a different preprint"))
		}
		arxivID = extractArxivID(e.ID)
	default:
		return nil, a.notFound("", errors.New("unsupported method "+string(req.Method)))
	}
	return a.req.getPDF(ctx, a.pdfBase()+"/"+arxivID, nil)
}

func (a *Arxiv) pdfBase() string {
	if a.pdf != "" {
		return strings.TrimRight(a.pdf, "/")
	}
	return arxivPDFBase
}

func (a *Arxiv) lookup(ctx context.Context, id ident.Identifier) (arxivEntry, error) {
	params := url.Values{}
	switch id.Kind() {
	case ident.KindArxiv:
		params.Set("id_list", id.Value())
	case ident.KindDOI:
		arxivID := arxivFromDOI(id.Value())
		if arxivID == "" {
			return arxivEntry{}, a.notFound("", errors.New("not an arXiv DOI"))
		}
		params.Set("id_list", arxivID)
	case ident.KindTitle:
		params.Set("search_query", `ti:"`+strings.ReplaceAll(id.Value(), `"`, "")+`"`)
		params.Set("max_results", "1")
	default:
		return arxivEntry{}, a.notFound("", errors.New("unsupported identifier kind "+id.Kind().String()))
	}

	apiURL := a.endpoint(arxivAPIBase) + "?" + params.Encode()
	var feed arxivFeed
	if err := a.req.getXML(ctx, apiURL, &feed); err != nil {
		return arxivEntry{}, err
	}
	// Unknown IDs come back as an empty feed or as a single entry whose id
	// points at the API error page.
	if len(feed.Entries) == 0 || strings.Contains(feed.Entries[0].ID, "/api/errors") {
		return arxivEntry{}, a.notFound(apiURL, errors.New("no entries"))
	}
	return feed.Entries[0], nil
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID         string        `xml:"id"`
	Title      string        `xml:"title"`
	Summary    string        `xml:"summary"`
	Published  string        `xml:"published"`
	Authors    []arxivAuthor `xml:"author"`
	DOI        string        `xml:"http://arxiv.org/schemas/atom doi"`
	JournalRef string        `xml:"http://arxiv.org/schemas/atom journal_ref"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" → "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	return arxivVersionSuffix.ReplaceAllString(idURL[idx+len(prefix):], "")
}

func (e arxivEntry) metadata() types.PaperMetadata {
	arxivID := extractArxivID(e.ID)
	m := types.PaperMetadata{
		Title:        strings.Join(strings.Fields(e.Title), " "),
		ArxivID:      arxivID,
		DOI:          strings.TrimSpace(e.DOI),
		Abstract:     strings.TrimSpace(e.Summary),
		Venue:        strings.TrimSpace(e.JournalRef),
		LandingURL:   "https://arxiv.org/abs/" + arxivID,
		PDFURL:       "https://arxiv.org/pdf/" + arxivID,
		Source:       "arxiv",
		IsOpenAccess: true,
	}
	for i, au := range e.Authors {
		name := strings.TrimSpace(au.Name)
		m.Authors = append(m.Authors, name)
		if i == 0 {
			m.FirstAuthor = familyName(name)
		}
	}
	if t, err := time.Parse(time.RFC3339, e.Published); err == nil {
		m.Year = t.Year()
	}
	return m
}
