// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"errors"
	"net/http"
)

// Institutional fetches through a library proxy (EZproxy style) using a
// session cookie held in the credential store under the source name.
type Institutional struct{ base }

func (s *Institutional) Fetch(ctx context.Context, req FetchRequest) ([]byte, error) {
	if req.Method != MethodID {
		return nil, s.notFound("", errors.New("unsupported method "+string(req.Method)))
	}
	if s.cfg.ProxyURL == "" {
		return nil, newError(s.info.Name, ErrAuthRequired, "", 0, errors.New("proxy_url is not configured"))
	}
	cookie, ok := s.session()
	if !ok {
		return nil, newError(s.info.Name, ErrAuthRequired, "", 0, errors.New("no session in credential store"))
	}

	target := req.Metadata.LandingURL
	if req.Metadata.DOI != "" {
		target = "https://doi.org/" + escapeDOI(req.Metadata.DOI)
	}
	if target == "" {
		return nil, s.notFound("", errors.New("no DOI or landing page"))
	}
	return s.req.getPDF(ctx, s.cfg.ProxyURL+target, http.Header{"Cookie": {cookie}})
}
