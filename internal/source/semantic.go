// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/pdiddy/paperfetch/internal/ident"
	"github.com/pdiddy/paperfetch/pkg/types"
)

// semanticAPIBase is the Semantic Scholar Graph API root. Declared as a var
// so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1"

const semanticFields = "title,abstract,authors,externalIds,year,venue,url,isOpenAccess,openAccessPdf"

// SemanticScholar resolves metadata from the Semantic Scholar citation
// graph and fetches its recorded open-access PDF. An API key, when stored
// under the source name, is sent as x-api-key.
type SemanticScholar struct{ base }

func (s *SemanticScholar) Resolve(ctx context.Context, id ident.Identifier) (types.PaperMetadata, error) {
	p, err := s.lookup(ctx, id)
	if err != nil {
		return types.PaperMetadata{}, err
	}
	return p.metadata(), nil
}

// Fetch downloads openAccessPdf.url for the paper.
func (s *SemanticScholar) Fetch(ctx context.Context, req FetchRequest) ([]byte, error) {
	var (
		p   semanticPaper
		err error
	)
	switch req.Method {
	case MethodID:
		id, ok := idFor(req.Metadata)
		if !ok {
			return nil, s.notFound("", errors.New("no DOI or arXiv ID"))
		}
		p, err = s.lookup(ctx, id)
	case MethodTitle:
		p, err = s.lookup(ctx, ident.Title(req.Metadata.Title))
		if err == nil && !sameTitle(p.Title, req.Metadata.Title) {
			return nil, s.notFound("", errors.New("title search returned a different paper"))
		}
	default:
		return nil, s.notFound("", errors.New("unsupported method "+string(req.Method)))
	}
	if err != nil {
		return nil, err
	}

	if p.OpenAccessPDF == nil || p.OpenAccessPDF.URL == "" {
		return nil, s.notFound(p.URL, errors.New("no open-access PDF"))
	}
	return s.req.getPDF(ctx, p.OpenAccessPDF.URL, nil)
}

func (s *SemanticScholar) lookup(ctx context.Context, id ident.Identifier) (semanticPaper, error) {
	api := s.endpoint(semanticAPIBase)
	fields := url.Values{"fields": {semanticFields}}

	var header http.Header
	if key, ok := s.session(); ok {
		header = http.Header{"X-Api-Key": {key}}
	}

	var paperID string
	switch id.Kind() {
	case ident.KindDOI:
		paperID = "DOI:" + escapeDOI(id.Value())
	case ident.KindArxiv:
		paperID = "ARXIV:" + arxivVersionSuffix.ReplaceAllString(id.Value(), "")
	case ident.KindTitle:
		params := url.Values{
			"query":  {id.Value()},
			"limit":  {"1"},
			"fields": {semanticFields},
		}
		apiURL := api + "/paper/search?" + params.Encode()
		var sr semanticResponse
		if err := s.req.getJSON(ctx, apiURL, header, &sr); err != nil {
			return semanticPaper{}, err
		}
		if len(sr.Data) == 0 {
			return semanticPaper{}, s.notFound(apiURL, errors.New("no results"))
		}
		return sr.Data[0], nil
	default:
		return semanticPaper{}, s.notFound("", errors.New("unsupported identifier kind "+id.Kind().String()))
	}

	apiURL := api + "/paper/" + paperID + "?" + fields.Encode()
	var p semanticPaper
	err := s.req.getJSON(ctx, apiURL, header, &p)
	return p, err
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total int             `json:"total"`
	Data  []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID       string              `json:"paperId"`
	URL           string              `json:"url"`
	Title         string              `json:"title"`
	Abstract      string              `json:"abstract"`
	Year          int                 `json:"year"`
	Venue         string              `json:"venue"`
	IsOpenAccess  bool                `json:"isOpenAccess"`
	OpenAccessPDF *semanticPDF        `json:"openAccessPdf"`
	Authors       []semanticAuthor    `json:"authors"`
	ExternalIDs   semanticExternalIDs `json:"externalIds"`
}

type semanticPDF struct {
	URL string `json:"url"`
}

type semanticAuthor struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type semanticExternalIDs struct {
	DOI   string `json:"DOI"`
	ArXiv string `json:"ArXiv"`
}

func (p semanticPaper) metadata() types.PaperMetadata {
	m := types.PaperMetadata{
		Title:        p.Title,
		Year:         p.Year,
		DOI:          p.ExternalIDs.DOI,
		ArxivID:      p.ExternalIDs.ArXiv,
		Abstract:     p.Abstract,
		Venue:        p.Venue,
		LandingURL:   p.URL,
		Source:       "semantic_scholar",
		IsOpenAccess: p.IsOpenAccess,
	}
	for i, a := range p.Authors {
		m.Authors = append(m.Authors, a.Name)
		if i == 0 {
			m.FirstAuthor = familyName(a.Name)
		}
	}
	if p.OpenAccessPDF != nil {
		m.PDFURL = p.OpenAccessPDF.URL
	}
	return m
}
