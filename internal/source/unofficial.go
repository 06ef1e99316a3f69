// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Mirror fetches from a gray-area shadow library mirror. It is built only
// when the user has accepted the disclaimer, enabled the adapter, and set
// mirror_url; there is no built-in mirror.
type Mirror struct {
	base

	// page builds the landing page URL for a DOI under the mirror root.
	page func(root, doi string) string

	// links selects elements whose src or href points at the PDF.
	links string
}

func newSciHub(b base) *Mirror {
	return &Mirror{
		base: b,
		page: func(root, doi string) string { return root + "/" + escapeDOI(doi) },
		links: "embed#pdf, iframe#pdf, #pdf embed, #pdf iframe, " +
			"#article embed, #article iframe, meta[name='citation_pdf_url']",
	}
}

func newLibGen(b base) *Mirror {
	return &Mirror{
		base:  b,
		page:  func(root, doi string) string { return root + "/ads.php?doi=" + url.QueryEscape(doi) },
		links: "#download a, a[href*='get.php'], a[href$='.pdf']",
	}
}

func (m *Mirror) Fetch(ctx context.Context, req FetchRequest) ([]byte, error) {
	doi := req.Metadata.DOI
	if req.Method != MethodID || doi == "" {
		return nil, m.notFound("", errors.New("needs a DOI"))
	}
	root := strings.TrimRight(m.cfg.MirrorURL, "/")
	if root == "" {
		return nil, m.notFound("", errors.New("mirror_url is not configured"))
	}

	pageURL := m.page(root, doi)
	resp, err := m.req.get(ctx, pageURL, nil)
	if err != nil {
		return nil, err
	}
	if IsPDF(resp.body) {
		return resp.body, nil
	}
	if isChallenge(resp.body) {
		return nil, newError(m.info.Name, ErrBlocked, resp.url, resp.status, nil)
	}

	link := m.pdfLink(resp.body, resp.url)
	if link == "" {
		return nil, m.notFound(resp.url, errors.New("no PDF link on mirror page"))
	}
	return m.req.getPDF(ctx, link, nil)
}

// pdfLink returns the first absolute PDF link on a mirror page.
func (m *Mirror) pdfLink(body []byte, pageURL string) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	var link string
	doc.Find(m.links).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, attr := range []string{"src", "href", "content"} {
			if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
				link = absURL(pageURL, strings.SplitN(v, "#", 2)[0])
				return link == ""
			}
		}
		return true
	})
	return link
}
