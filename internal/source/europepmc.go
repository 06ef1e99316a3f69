// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/paperfetch/internal/ident"
	"github.com/pdiddy/paperfetch/pkg/types"
)

// Europe PMC endpoints. Declared as vars so tests can substitute an
// httptest server.
var (
	europePMCAPIBase    = "https://www.ebi.ac.uk/europepmc/webservices/rest"
	europePMCRenderBase = "https://europepmc.org"
)

// EuropePMC resolves biomedical literature and fetches PMC full-text PDFs.
type EuropePMC struct {
	base
	render string
}

func (e *EuropePMC) Resolve(ctx context.Context, id ident.Identifier) (types.PaperMetadata, error) {
	r, err := e.search(ctx, id)
	if err != nil {
		return types.PaperMetadata{}, err
	}
	return r.metadata(), nil
}

// Fetch downloads the rendered PMC PDF, falling back to a PDF full-text
// link from the search record.
func (e *EuropePMC) Fetch(ctx context.Context, req FetchRequest) ([]byte, error) {
	if req.Method != MethodID {
		return nil, e.notFound("", errors.New("unsupported method "+string(req.Method)))
	}
	if req.Metadata.DOI == "" {
		return nil, e.notFound("", errors.New("no DOI"))
	}
	r, err := e.search(ctx, ident.DOI(req.Metadata.DOI))
	if err != nil {
		return nil, err
	}

	var pdfURL string
	switch {
	case r.PMCID != "":
		pdfURL = e.renderBase() + "/articles/" + r.PMCID + "?pdf=render"
	default:
		for _, u := range r.FullTextURLList.FullTextURL {
			if u.DocumentStyle == "pdf" && u.Availability != "Subscription required" {
				pdfURL = u.URL
				break
			}
		}
	}
	if pdfURL == "" {
		return nil, e.notFound("", errors.New("no PMC full text"))
	}
	return e.req.getPDF(ctx, pdfURL, nil)
}

func (e *EuropePMC) renderBase() string {
	if e.render != "" {
		return strings.TrimRight(e.render, "/")
	}
	return europePMCRenderBase
}

func (e *EuropePMC) search(ctx context.Context, id ident.Identifier) (europePMCResult, error) {
	var query string
	switch id.Kind() {
	case ident.KindDOI:
		query = `DOI:"` + id.Value() + `"`
	case ident.KindTitle:
		query = `TITLE:"` + strings.ReplaceAll(id.Value(), `"`, "") + `"`
	default:
		return europePMCResult{}, e.notFound("", errors.New("unsupported identifier kind "+id.Kind().String()))
	}

	params := url.Values{
		"query":      {query},
		"format":     {"json"},
		"resultType": {"core"},
		"pageSize":   {"1"},
	}
	if e.http.Email != "" {
		params.Set("email", e.http.Email)
	}
	apiURL := e.endpoint(europePMCAPIBase) + "/search?" + params.Encode()

	var resp europePMCResponse
	if err := e.req.getJSON(ctx, apiURL, nil, &resp); err != nil {
		return europePMCResult{}, err
	}
	if len(resp.ResultList.Result) == 0 {
		return europePMCResult{}, e.notFound(apiURL, errors.New("no results"))
	}
	return resp.ResultList.Result[0], nil
}

// Europe PMC REST JSON structures.
type europePMCResponse struct {
	HitCount   int `json:"hitCount"`
	ResultList struct {
		Result []europePMCResult `json:"result"`
	} `json:"resultList"`
}

type europePMCResult struct {
	ID           string `json:"id"`
	PMID         string `json:"pmid"`
	PMCID        string `json:"pmcid"`
	DOI          string `json:"doi"`
	Title        string `json:"title"`
	AuthorString string `json:"authorString"`
	PubYear      string `json:"pubYear"`
	AbstractText string `json:"abstractText"`
	IsOpenAccess string `json:"isOpenAccess"`
	JournalInfo  struct {
		Journal struct {
			Title string `json:"title"`
		} `json:"journal"`
	} `json:"journalInfo"`
	AuthorList struct {
		Author []struct {
			FullName string `json:"fullName"`
			LastName string `json:"lastName"`
		} `json:"author"`
	} `json:"authorList"`
	FullTextURLList struct {
		FullTextURL []struct {
			Availability  string `json:"availability"`
			DocumentStyle string `json:"documentStyle"`
			URL           string `json:"url"`
		} `json:"fullTextUrl"`
	} `json:"fullTextUrlList"`
}

func (r europePMCResult) metadata() types.PaperMetadata {
	m := types.PaperMetadata{
		Title:        strings.TrimSuffix(plainText(r.Title), "."),
		DOI:          r.DOI,
		Abstract:     plainText(r.AbstractText),
		Venue:        r.JournalInfo.Journal.Title,
		Source:       "europepmc",
		IsOpenAccess: r.IsOpenAccess == "Y",
	}
	if y, err := strconv.Atoi(r.PubYear); err == nil {
		m.Year = y
	}
	if r.PMCID != "" {
		m.LandingURL = europePMCRenderBase + "/article/PMC/" + r.PMCID
	}

	if len(r.AuthorList.Author) > 0 {
		for _, a := range r.AuthorList.Author {
			m.Authors = append(m.Authors, a.FullName)
		}
		m.FirstAuthor = r.AuthorList.Author[0].LastName
	} else if r.AuthorString != "" {
		// "Kucsko G, Maurer PC, Yao NY." lists family names first.
		for _, a := range strings.Split(strings.TrimSuffix(r.AuthorString, "."), ",") {
			m.Authors = append(m.Authors, strings.TrimSpace(a))
		}
		if fields := strings.Fields(m.Authors[0]); len(fields) > 0 {
			m.FirstAuthor = fields[0]
		}
	}
	return m
}
