// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"errors"
	"fmt"
)

// Failure kinds reported by adapters. Every adapter error wraps exactly one
// of these so callers can decide whether to try the next source.
var (
	// ErrNotFound means the source has no record or no PDF for the paper.
	ErrNotFound = errors.New("not found")

	// ErrAuthRequired means the source wants credentials we do not have.
	ErrAuthRequired = errors.New("authentication required")

	// ErrRateLimited means the source kept answering 429 after backoff.
	ErrRateLimited = errors.New("rate limited")

	// ErrBlocked means the source answered with a bot-protection challenge.
	ErrBlocked = errors.New("blocked by bot protection")

	// ErrNetwork covers transport failures and 5xx responses.
	ErrNetwork = errors.New("network error")

	// ErrTimeout means the request did not finish within http.timeout.
	ErrTimeout = errors.New("timeout")
)

// Error carries the context of a failed adapter call.
type Error struct {
	Source string
	Kind   error // one of the sentinels above
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Source, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.URL != "" {
		msg += " at " + e.URL
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(source string, kind error, url string, status int, err error) *Error {
	return &Error{Source: source, Kind: kind, URL: url, Status: status, Err: err}
}

// IsNotFound reports whether err means the source had nothing.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsAuthRequired reports whether err is an authentication failure.
func IsAuthRequired(err error) bool { return errors.Is(err, ErrAuthRequired) }

// IsRateLimited reports whether err is a persistent 429.
func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }

// IsBlocked reports whether err is a bot-protection challenge.
func IsBlocked(err error) bool { return errors.Is(err, ErrBlocked) }

// IsTransient reports whether retrying the same request later could
// succeed: rate limiting, timeouts, and network failures.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrNetwork)
}

// BlockedURL returns the URL that produced a challenge page, or "".
func BlockedURL(err error) string {
	var e *Error
	if errors.As(err, &e) && errors.Is(e.Kind, ErrBlocked) {
		return e.URL
	}
	return ""
}

// Outcome returns a short label for err, used in metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAuthRequired):
		return "auth_required"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrBlocked):
		return "blocked"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNetwork):
		return "network"
	default:
		return "error"
	}
}
