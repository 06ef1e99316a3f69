// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paperfetch/internal/httputil"
)

// maxBodySize caps how much of a response body is read into memory.
const maxBodySize = 200 << 20

// requester performs governed HTTP calls on behalf of one adapter and maps
// failures onto the error taxonomy.
type requester struct {
	source    string
	client    *http.Client
	pacer     Pacer
	userAgent string
	retries   int
	log       logrus.FieldLogger
}

// response is a fully-read HTTP response.
type response struct {
	url    string
	status int
	header http.Header
	body   []byte
}

// get issues a GET for rawURL. Non-2xx statuses are returned as *Error.
func (r *requester) get(ctx context.Context, rawURL string, header http.Header) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, newError(r.source, ErrNotFound, rawURL, 0, fmt.Errorf("creating request: %w", err))
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	var wait httputil.WaitFunc
	if r.pacer != nil {
		wait = func(ctx context.Context) error { return r.pacer.Wait(ctx, r.source) }
	}

	resp, err := httputil.DoWithRetry(ctx, r.client, req, httputil.Policy{MaxRetries: r.retries, Wait: wait, Log: r.log})
	if err != nil {
		return nil, r.transportError(ctx, rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, r.transportError(ctx, rawURL, err)
	}

	out := &response{url: resp.Request.URL.String(), status: resp.StatusCode, header: resp.Header, body: body}
	if err := r.statusError(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *requester) transportError(ctx context.Context, rawURL string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(r.source, ErrTimeout, rawURL, 0, err)
	}
	return newError(r.source, ErrNetwork, rawURL, 0, err)
}

// statusError maps a non-2xx response onto an adapter error. Challenge
// markup wins over the status code: Cloudflare answers 403 and 503 alike.
func (r *requester) statusError(resp *response) error {
	if resp.status >= 200 && resp.status < 300 {
		return nil
	}
	if isHTML(resp.body) && isChallenge(resp.body) {
		return newError(r.source, ErrBlocked, resp.url, resp.status, nil)
	}
	switch {
	case resp.status == http.StatusNotFound || resp.status == http.StatusGone:
		return newError(r.source, ErrNotFound, resp.url, resp.status, nil)
	case resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden:
		return newError(r.source, ErrAuthRequired, resp.url, resp.status, nil)
	case resp.status == http.StatusTooManyRequests:
		return newError(r.source, ErrRateLimited, resp.url, resp.status, nil)
	case resp.status >= 500:
		return newError(r.source, ErrNetwork, resp.url, resp.status, nil)
	default:
		return newError(r.source, ErrNotFound, resp.url, resp.status, nil)
	}
}

// getJSON fetches rawURL and decodes the body into v.
func (r *requester) getJSON(ctx context.Context, rawURL string, header http.Header, v any) error {
	if header == nil {
		header = http.Header{}
	}
	header.Set("Accept", "application/json")
	resp, err := r.get(ctx, rawURL, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.body, v); err != nil {
		return newError(r.source, ErrNotFound, rawURL, resp.status, fmt.Errorf("parsing response: %w", err))
	}
	return nil
}

// getXML fetches rawURL and decodes the body into v.
func (r *requester) getXML(ctx context.Context, rawURL string, v any) error {
	resp, err := r.get(ctx, rawURL, http.Header{"Accept": {"application/atom+xml, application/xml"}})
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(resp.body, v); err != nil {
		return newError(r.source, ErrNotFound, rawURL, resp.status, fmt.Errorf("parsing response: %w", err))
	}
	return nil
}

// getPDF downloads rawURL and returns the bytes only if they are a PDF. An
// HTML landing page is inspected once: a challenge yields ErrBlocked, a
// citation_pdf_url meta tag is followed, anything else is ErrNotFound.
func (r *requester) getPDF(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	return r.getPDFHop(ctx, rawURL, header, 1)
}

func (r *requester) getPDFHop(ctx context.Context, rawURL string, header http.Header, hops int) ([]byte, error) {
	if header == nil {
		header = http.Header{}
	}
	header.Set("Accept", "application/pdf, text/html;q=0.5, */*;q=0.1")

	resp, err := r.get(ctx, rawURL, header)
	if err != nil {
		return nil, err
	}

	if IsPDF(resp.body) {
		r.log.WithFields(logrus.Fields{
			"source": r.source,
			"url":    resp.url,
			"size":   humanize.Bytes(uint64(len(resp.body))),
			"pages":  PageCount(resp.body),
		}).Debug("downloaded PDF")
		return resp.body, nil
	}

	if !isHTML(resp.body) {
		return nil, newError(r.source, ErrNotFound, resp.url, resp.status,
			fmt.Errorf("response is %s, not a PDF", mimetype.Detect(resp.body).String()))
	}
	if isChallenge(resp.body) {
		return nil, newError(r.source, ErrBlocked, resp.url, resp.status, nil)
	}
	if hasLoginForm(resp.body) {
		return nil, newError(r.source, ErrAuthRequired, resp.url, resp.status, errors.New("landed on a login page"))
	}
	if hops > 0 {
		if next := CitationPDFURL(resp.body, resp.url); next != "" && next != rawURL {
			return r.getPDFHop(ctx, next, header, hops-1)
		}
	}
	return nil, newError(r.source, ErrNotFound, resp.url, resp.status, errors.New("no PDF at URL"))
}

// IsPDF reports whether b is PDF content by magic-number sniffing.
func IsPDF(b []byte) bool {
	return mimetype.Detect(b).Is("application/pdf")
}

func isHTML(b []byte) bool {
	return mimetype.Detect(b).Is("text/html")
}

// PageCount returns the number of pages in a PDF, or 0 if the structure
// cannot be read. The parser panics on some malformed files.
func PageCount(b []byte) (n int) {
	defer func() {
		if recover() != nil {
			n = 0
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return 0
	}
	return r.NumPage()
}

// challengeTitles are page titles used by common bot-protection vendors.
var challengeTitles = []string{
	"just a moment",
	"attention required",
	"access denied",
	"are you a robot",
	"captcha",
	"ddos-guard",
	"checking your browser",
}

// challengeSelectors match challenge widgets in the page body.
var challengeSelectors = strings.Join([]string{
	"#challenge-form",
	"#challenge-running",
	"#cf-challenge-running",
	"#cf-wrapper",
	".g-recaptcha",
	".h-captcha",
	"#px-captcha",
	"script[src*='challenge-platform']",
	"script[src*='captcha']",
}, ", ")

// isChallenge reports whether an HTML page is a bot-protection challenge.
func isChallenge(body []byte) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	title := strings.ToLower(strings.TrimSpace(doc.Find("title").First().Text()))
	for _, t := range challengeTitles {
		if strings.Contains(title, t) {
			return true
		}
	}
	return doc.Find(challengeSelectors).Length() > 0
}

func hasLoginForm(body []byte) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	return doc.Find("form input[type='password']").Length() > 0
}

// CitationPDFURL returns the absolute citation_pdf_url advertised by a
// landing page (Highwire Press meta tags), or "".
func CitationPDFURL(body []byte, pageURL string) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	href, ok := doc.Find("meta[name='citation_pdf_url']").First().Attr("content")
	if !ok {
		return ""
	}
	return absURL(pageURL, href)
}

// absURL resolves href against base. Returns "" if either fails to parse.
func absURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	h, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return b.ResolveReference(h).String()
}

// escapeDOI escapes a DOI for use in a URL path. Slashes stay separators;
// characters such as '#', '?' and '%' inside segments are escaped.
func escapeDOI(doi string) string {
	segs := strings.Split(doi, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return strings.Join(segs, "/")
}
