// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"

	"github.com/pdiddy/paperfetch/pkg/types"
)

// DirectName is the pacing and metrics name used for plain URL downloads.
const DirectName = "direct"

// Direct downloads a user-supplied URL. It is not part of the registry;
// the retriever uses it when a URL identifier carries no resolvable
// DOI or arXiv ID. Challenge pages and citation_pdf_url hops are handled
// as for any adapter.
type Direct struct{ base }

// NewDirect builds a Direct fetcher sharing the registry's collaborators.
func NewDirect(cfg types.Config, deps Deps) *Direct {
	log, client := deps.defaults(cfg.HTTP)
	info := Info{Name: DirectName, Kind: KindPublisher, Enabled: true, Capabilities: fetchOnly}
	return &Direct{base: newBase(info, types.SourceConfig{}, cfg, deps.Credentials, client, deps.Pacer, log)}
}

// FetchURL downloads rawURL and returns its PDF bytes.
func (d *Direct) FetchURL(ctx context.Context, rawURL string) ([]byte, error) {
	return d.req.getPDF(ctx, rawURL, nil)
}
