// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ratelimit paces outbound requests per source and process-wide.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/paperfetch/pkg/types"
)

// Governor enforces a minimum gap between consecutive requests to the same
// source and, optionally, between any two requests in the process. It is
// safe for concurrent use; callers queue on the limiter in arrival order.
type Governor struct {
	cfg types.RateLimitConfig

	mu      sync.Mutex
	sources map[string]*rate.Limiter
	global  *rate.Limiter
}

// New creates a Governor from the rate-limit configuration. Delays are in
// seconds; zero disables pacing for that scope.
func New(cfg types.RateLimitConfig) *Governor {
	return &Governor{
		cfg:     cfg,
		sources: make(map[string]*rate.Limiter),
		global:  newLimiter(seconds(cfg.GlobalDelay)),
	}
}

// Wait blocks until source may issue its next request. It waits on the
// source limiter first and then on the global one, so a busy source never
// holds a global slot while it sleeps. Returns ctx.Err() on cancellation.
func (g *Governor) Wait(ctx context.Context, source string) error {
	if err := g.limiter(source).Wait(ctx); err != nil {
		return ctxErr(ctx, err)
	}
	if err := g.global.Wait(ctx); err != nil {
		return ctxErr(ctx, err)
	}
	return nil
}

// Delay returns the effective per-source gap.
func (g *Governor) Delay(source string) time.Duration {
	if d, ok := g.cfg.PerSourceDelays[source]; ok {
		return seconds(d)
	}
	return seconds(g.cfg.DefaultDelay)
}

// GlobalDelay returns the process-wide gap.
func (g *Governor) GlobalDelay() time.Duration {
	return seconds(g.cfg.GlobalDelay)
}

func (g *Governor) limiter(source string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.sources[source]
	if !ok {
		l = newLimiter(g.Delay(source))
		g.sources[source] = l
	}
	return l
}

// newLimiter returns a burst-1 limiter, which makes the refill interval a
// hard floor between consecutive grants.
func newLimiter(d time.Duration) *rate.Limiter {
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

func seconds(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}

// ctxErr prefers the context's own error. rate.Limiter.Wait reports a
// deadline that would be exceeded before the context actually expires.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if _, ok := ctx.Deadline(); ok {
		return context.DeadlineExceeded
	}
	return err
}
