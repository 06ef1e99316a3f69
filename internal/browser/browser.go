// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package browser implements the bot-protection fallback: it opens the
// blocked URL in a stealth headless Chromium, lets the challenge clear, and
// downloads the PDF with the cookies the browser earned.
package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paperfetch/internal/source"
	"github.com/pdiddy/paperfetch/pkg/types"
)

// DefaultTimeout bounds one fallback fetch when the configuration leaves it
// unset.
const DefaultTimeout = 60 * time.Second

const maxBodySize = 200 << 20

// Fetcher launches the browser on first use and reuses it. Calls are
// serialized; the fallback is rare and one browser tab at a time is enough.
type Fetcher struct {
	cfg    types.FallbackConfig
	client *http.Client
	log    logrus.FieldLogger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// New creates a Fetcher. A nil client uses http.DefaultClient.
func New(cfg types.FallbackConfig, client *http.Client, log logrus.FieldLogger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Fetcher{cfg: cfg, client: client, log: log.WithField("component", "browser")}
}

// Fetch returns the PDF behind url.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := f.start()
	if err != nil {
		return nil, err
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("opening page: %w", err)
	}
	defer page.Close()
	page = page.Context(ctx).Timeout(f.cfg.Timeout)

	f.log.WithField("url", url).Debug("navigating")
	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigating to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", url, err)
	}

	info, err := page.Info()
	if err != nil {
		return nil, fmt.Errorf("reading page info: %w", err)
	}
	cookies, err := page.Cookies(nil)
	if err != nil {
		return nil, fmt.Errorf("reading cookies: %w", err)
	}
	html, err := page.HTML()
	if err != nil {
		html = ""
	}
	ua := ""
	if v, err := (proto.BrowserGetVersion{}).Call(b); err == nil {
		ua = v.UserAgent
	}

	return f.download(ctx, info.URL, html, cookieHeader(cookies), ua)
}

// download fetches pageURL with the browser's cookies. When the page was a
// landing page rather than the PDF, its citation_pdf_url is followed.
func (f *Fetcher) download(ctx context.Context, pageURL, html, cookies, userAgent string) ([]byte, error) {
	data, err := f.get(ctx, pageURL, cookies, userAgent)
	if err == nil && source.IsPDF(data) {
		return data, nil
	}

	if next := source.CitationPDFURL([]byte(html), pageURL); next != "" && next != pageURL {
		f.log.WithField("url", next).Debug("following citation_pdf_url")
		data, err = f.get(ctx, next, cookies, userAgent)
		if err == nil && source.IsPDF(data) {
			return data, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return nil, errors.New("challenge cleared but no PDF found")
}

func (f *Fetcher) get(ctx context.Context, url, cookies, userAgent string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if cookies != "" {
		req.Header.Set("Cookie", cookies)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	req.Header.Set("Accept", "application/pdf,*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
}

// start launches Chromium once. The process outlives individual fetches
// and is stopped by Close. Callers hold f.mu.
func (f *Fetcher) start() (*rod.Browser, error) {
	if f.browser != nil {
		return f.browser, nil
	}
	l := launcher.New().Headless(true)
	if f.cfg.BrowserBin != "" {
		l = l.Bin(f.cfg.BrowserBin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}
	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}
	f.launcher, f.browser = l, b
	f.log.Info("headless browser started")
	return b, nil
}

// Close shuts the browser down if it was started.
func (f *Fetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser == nil {
		return nil
	}
	err := f.browser.Close()
	f.launcher.Cleanup()
	f.browser, f.launcher = nil, nil
	return err
}

func cookieHeader(cookies []*proto.NetworkCookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}
