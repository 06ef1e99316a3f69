// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paperfetch/pkg/types"
)

// base holds what every adapter shares: its description, its own config
// entry, and a governed requester.
type base struct {
	info  Info
	cfg   types.SourceConfig
	http  types.HTTPConfig
	creds Credentials
	req   *requester
	log   logrus.FieldLogger
}

func newBase(info Info, sc types.SourceConfig, cfg types.Config, creds Credentials, client *http.Client, pacer Pacer, log logrus.FieldLogger) base {
	return base{
		info:  info,
		cfg:   sc,
		http:  cfg.HTTP,
		creds: creds,
		log:   log.WithField("source", info.Name),
		req: &requester{
			source:    info.Name,
			client:    client,
			pacer:     pacer,
			userAgent: cfg.HTTP.UserAgent,
			retries:   cfg.RateLimits.Retries429,
			log:       log,
		},
	}
}

func (b *base) Info() Info { return b.info }

// endpoint returns the configured base URL or def, without a trailing slash.
func (b *base) endpoint(def string) string {
	if b.cfg.BaseURL != "" {
		return strings.TrimRight(b.cfg.BaseURL, "/")
	}
	return strings.TrimRight(def, "/")
}

func (b *base) notFound(url string, err error) error {
	return newError(b.info.Name, ErrNotFound, url, 0, err)
}

func (b *base) session() (string, bool) {
	if b.creds == nil {
		return "", false
	}
	return b.creds.Session(b.info.Name)
}
