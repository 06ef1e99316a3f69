// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// plosBase is the PLOS journals site. Declared as a var so tests can
// substitute an httptest server.
var plosBase = "https://journals.plos.org"

const plosDOIPrefix = "10.1371/"

// plosJournals maps the journal code in a PLOS DOI to its site path.
var plosJournals = map[string]string{
	"pone": "plosone",
	"pbio": "plosbiology",
	"pcbi": "ploscompbiol",
	"pgen": "plosgenetics",
	"pmed": "plosmedicine",
	"ppat": "plospathogens",
	"pntd": "plosntds",
	"pgph": "globalpublichealth",
	"pdig": "digitalhealth",
	"pclm": "climate",
	"pwat": "water",
}

// PLOS fetches printable PDFs for PLOS DOIs. Every PLOS article is open
// access, so no lookup is needed.
type PLOS struct{ base }

func (p *PLOS) Fetch(ctx context.Context, req FetchRequest) ([]byte, error) {
	doi := req.Metadata.DOI
	if req.Method != MethodID || !strings.HasPrefix(strings.ToLower(doi), plosDOIPrefix) {
		return nil, p.notFound("", errors.New("not a PLOS DOI"))
	}
	pdfURL := p.endpoint(plosBase) + "/" + plosJournal(doi) +
		"/article/file?id=" + url.QueryEscape(doi) + "&type=printable"
	return p.req.getPDF(ctx, pdfURL, nil)
}

// plosJournal returns the site path for a DOI like
// "10.1371/journal.pcbi.1000001", defaulting to PLOS ONE.
func plosJournal(doi string) string {
	rest := strings.ToLower(doi[len(plosDOIPrefix):])
	rest = strings.TrimPrefix(rest, "journal.")
	code, _, _ := strings.Cut(rest, ".")
	if j, ok := plosJournals[code]; ok {
		return j
	}
	return "plosone"
}
