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

// unpaywallAPIBase is the Unpaywall v2 endpoint. Declared as a var so
// tests can substitute an httptest server.
var unpaywallAPIBase = "https://api.unpaywall.org/v2"

// Unpaywall resolves DOIs and fetches their best open-access copy. The
// service requires a contact email on every request.
type Unpaywall struct{ base }

func (u *Unpaywall) Resolve(ctx context.Context, id ident.Identifier) (types.PaperMetadata, error) {
	if id.Kind() != ident.KindDOI {
		return types.PaperMetadata{}, u.notFound("", errors.New("only DOIs are supported"))
	}
	r, err := u.lookup(ctx, id.Value())
	if err != nil {
		return types.PaperMetadata{}, err
	}
	return r.metadata(), nil
}

// Fetch downloads best_oa_location, preferring url_for_pdf and falling
// back to the landing page, whose citation_pdf_url is followed.
func (u *Unpaywall) Fetch(ctx context.Context, req FetchRequest) ([]byte, error) {
	if req.Method != MethodID || req.Metadata.DOI == "" {
		return nil, u.notFound("", errors.New("needs a DOI"))
	}
	r, err := u.lookup(ctx, req.Metadata.DOI)
	if err != nil {
		return nil, err
	}
	loc := r.BestOALocation
	if !r.IsOA || loc == nil {
		return nil, u.notFound(r.DOIURL, errors.New("not open access"))
	}
	target := loc.URLForPDF
	if target == "" {
		target = loc.URL
	}
	if target == "" {
		return nil, u.notFound(r.DOIURL, errors.New("no open-access location URL"))
	}
	return u.req.getPDF(ctx, target, nil)
}

func (u *Unpaywall) lookup(ctx context.Context, doi string) (unpaywallRecord, error) {
	if u.http.Email == "" {
		return unpaywallRecord{}, newError(u.info.Name, ErrAuthRequired, "", 0, errors.New("http.email is required"))
	}
	apiURL := u.endpoint(unpaywallAPIBase) + "/" + escapeDOI(doi) + "?email=" + url.QueryEscape(u.http.Email)
	var r unpaywallRecord
	err := u.req.getJSON(ctx, apiURL, nil, &r)
	return r, err
}

// Unpaywall API JSON structures.
type unpaywallRecord struct {
	DOI            string             `json:"doi"`
	DOIURL         string             `json:"doi_url"`
	Title          string             `json:"title"`
	Year           int                `json:"year"`
	JournalName    string             `json:"journal_name"`
	IsOA           bool               `json:"is_oa"`
	ZAuthors       []unpaywallAuthor  `json:"z_authors"`
	BestOALocation *unpaywallLocation `json:"best_oa_location"`
}

type unpaywallAuthor struct {
	Given  string `json:"given"`
	Family string `json:"family"`
}

type unpaywallLocation struct {
	URL        string `json:"url"`
	URLForPDF  string `json:"url_for_pdf"`
	URLForPage string `json:"url_for_landing_page"`
}

func (r unpaywallRecord) metadata() types.PaperMetadata {
	m := types.PaperMetadata{
		Title:        r.Title,
		Year:         r.Year,
		DOI:          r.DOI,
		Venue:        r.JournalName,
		LandingURL:   r.DOIURL,
		Source:       "unpaywall",
		IsOpenAccess: r.IsOA,
	}
	for i, a := range r.ZAuthors {
		m.Authors = append(m.Authors, strings.TrimSpace(a.Given+" "+a.Family))
		if i == 0 {
			m.FirstAuthor = a.Family
		}
	}
	if r.BestOALocation != nil {
		m.PDFURL = r.BestOALocation.URLForPDF
	}
	return m
}
