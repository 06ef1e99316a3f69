// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"errors"
	"net/url"

	"github.com/pdiddy/paperfetch/internal/ident"
	"github.com/pdiddy/paperfetch/pkg/types"
)

// openAlexAPIBase is the OpenAlex endpoint. Declared as a var so tests can
// substitute an httptest server.
var openAlexAPIBase = "https://api.openalex.org"

// OpenAlex resolves metadata and fetches the best open-access PDF location
// recorded by the OpenAlex aggregator.
type OpenAlex struct{ base }

func (o *OpenAlex) Resolve(ctx context.Context, id ident.Identifier) (types.PaperMetadata, error) {
	w, err := o.lookup(ctx, id)
	if err != nil {
		return types.PaperMetadata{}, err
	}
	return w.metadata(), nil
}

// Fetch downloads best_oa_location.pdf_url for the paper.
func (o *OpenAlex) Fetch(ctx context.Context, req FetchRequest) ([]byte, error) {
	var (
		w   openAlexWork
		err error
	)
	switch req.Method {
	case MethodID:
		id, ok := idFor(req.Metadata)
		if !ok {
			return nil, o.notFound("", errors.New("no DOI or arXiv ID"))
		}
		w, err = o.lookup(ctx, id)
	case MethodTitle:
		w, err = o.lookup(ctx, ident.Title(req.Metadata.Title))
		if err == nil && !sameTitle(w.DisplayName, req.Metadata.Title) {
			return nil, o.notFound("", errors.New("title search returned a different work"))
		}
	default:
		return nil, o.notFound("", errors.New("unsupported method "+string(req.Method)))
	}
	if err != nil {
		return nil, err
	}

	if w.BestOALocation == nil || w.BestOALocation.PDFURL == "" {
		return nil, o.notFound(w.ID, errors.New("no open-access PDF"))
	}
	return o.req.getPDF(ctx, w.BestOALocation.PDFURL, nil)
}

func (o *OpenAlex) lookup(ctx context.Context, id ident.Identifier) (openAlexWork, error) {
	api := o.endpoint(openAlexAPIBase)
	params := url.Values{}
	if o.http.Email != "" {
		params.Set("mailto", o.http.Email)
	}

	switch id.Kind() {
	case ident.KindDOI, ident.KindArxiv:
		doi := id.Value()
		if id.Kind() == ident.KindArxiv {
			doi = arxivDOI(doi)
		}
		apiURL := api + "/works/https://doi.org/" + escapeDOI(doi)
		if len(params) > 0 {
			apiURL += "?" + params.Encode()
		}
		var w openAlexWork
		err := o.req.getJSON(ctx, apiURL, nil, &w)
		return w, err

	case ident.KindTitle:
		params.Set("search", id.Value())
		params.Set("per-page", "1")
		apiURL := api + "/works?" + params.Encode()
		var list openAlexList
		if err := o.req.getJSON(ctx, apiURL, nil, &list); err != nil {
			return openAlexWork{}, err
		}
		if len(list.Results) == 0 {
			return openAlexWork{}, o.notFound(apiURL, errors.New("no results"))
		}
		return list.Results[0], nil

	default:
		return openAlexWork{}, o.notFound("", errors.New("unsupported identifier kind "+id.Kind().String()))
	}
}

// idFor picks the identifier a PDF source should look a paper up by.
func idFor(m types.PaperMetadata) (ident.Identifier, bool) {
	switch {
	case m.DOI != "":
		return ident.DOI(m.DOI), true
	case m.ArxivID != "":
		return ident.Arxiv(m.ArxivID), true
	default:
		return ident.Identifier{}, false
	}
}

// OpenAlex API JSON structures.
type openAlexList struct {
	Results []openAlexWork `json:"results"`
}

type openAlexWork struct {
	ID                    string               `json:"id"`
	DOI                   string               `json:"doi"`
	DisplayName           string               `json:"display_name"`
	PublicationYear       int                  `json:"publication_year"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
	PrimaryLocation       *openAlexLocation    `json:"primary_location"`
	BestOALocation        *openAlexLocation    `json:"best_oa_location"`
	OpenAccess            struct {
		IsOA bool `json:"is_oa"`
	} `json:"open_access"`
}

type openAlexAuthorship struct {
	Author struct {
		DisplayName string `json:"display_name"`
	} `json:"author"`
}

// openAlexLocation represents a hosting location in the OpenAlex response.
type openAlexLocation struct {
	PDFURL     string `json:"pdf_url"`
	LandingURL string `json:"landing_page_url"`
	Source     *struct {
		DisplayName string `json:"display_name"`
	} `json:"source"`
}

func (w openAlexWork) metadata() types.PaperMetadata {
	m := types.PaperMetadata{
		Title:        w.DisplayName,
		Year:         w.PublicationYear,
		DOI:          bareDOI(w.DOI),
		Abstract:     reconstructAbstract(w.AbstractInvertedIndex),
		Source:       "openalex",
		IsOpenAccess: w.OpenAccess.IsOA,
	}
	for i, a := range w.Authorships {
		m.Authors = append(m.Authors, a.Author.DisplayName)
		if i == 0 {
			m.FirstAuthor = familyName(a.Author.DisplayName)
		}
	}
	if loc := w.PrimaryLocation; loc != nil {
		m.LandingURL = loc.LandingURL
		if loc.Source != nil {
			m.Venue = loc.Source.DisplayName
		}
	}
	if loc := w.BestOALocation; loc != nil {
		m.PDFURL = loc.PDFURL
	}
	m.ArxivID = arxivFromDOI(m.DOI)
	return m
}
