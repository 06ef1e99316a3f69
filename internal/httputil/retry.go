// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across source adapters.
package httputil

import (
	"context"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// HTTP 429 responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

// DefaultMaxRetries is used when a negative retry count is passed.
const DefaultMaxRetries = 1

// WaitFunc blocks until the caller may send its next request. The rate
// governor provides one per source.
type WaitFunc func(ctx context.Context) error

// Policy tunes DoWithRetry.
type Policy struct {
	// MaxRetries of 0 disables retrying; a negative value selects
	// DefaultMaxRetries.
	MaxRetries int

	// Wait, when non-nil, is called before every attempt including
	// retries, so a backoff never lets a source exceed its configured pace.
	Wait WaitFunc

	// Log receives backoff notices. Nil uses the standard logger.
	Log logrus.FieldLogger
}

// DoWithRetry executes an HTTP request and retries on HTTP 429 (Too Many
// Requests) with exponential backoff. The delay starts at RetryBaseDelay
// and doubles each attempt.
//
// On each 429 the response body is drained and closed before sleeping. If
// the context is cancelled during a wait the function returns ctx.Err().
// After exhausting retries the last 429 response is returned so the caller
// can inspect it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, p Policy) (*http.Response, error) {
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	log := p.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	for attempt := 0; ; attempt++ {
		if p.Wait != nil {
			if err := p.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		if attempt >= maxRetries {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		backoff := retryAfter(resp)
		if backoff == 0 {
			backoff = time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
		}
		log.WithFields(logrus.Fields{
			"host":    req.URL.Host,
			"backoff": backoff,
			"attempt": attempt + 1,
		}).Debug("rate limited, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// retryAfter honours a Retry-After header given in seconds, capped at
// eight base delays. Zero means the header is absent or unusable.
func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v + "s")
	if err != nil || d <= 0 {
		return 0
	}
	if limit := 8 * RetryBaseDelay; d > limit {
		return limit
	}
	return d
}
