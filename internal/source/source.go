// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source implements the adapters that talk to external paper
// services and the registry that orders them. Each adapter fixes its
// contract (what it can resolve or fetch and how it fails); the wire format
// behind it is private.
package source

import (
	"context"
	"slices"

	"github.com/pdiddy/paperfetch/internal/ident"
	"github.com/pdiddy/paperfetch/pkg/types"
)

// Kind groups adapters by the role they play.
type Kind string

const (
	KindRegistry      Kind = "registry"
	KindAggregator    Kind = "oa_aggregator"
	KindCitationGraph Kind = "citation_graph"
	KindRepository    Kind = "repository"
	KindPublisher     Kind = "publisher"
	KindPreprint      Kind = "preprint"
	KindInstitutional Kind = "institutional"
	KindUnofficial    Kind = "unofficial"
)

// Capability is something an adapter can do.
type Capability string

const (
	CapResolve Capability = "resolve_metadata"
	CapFetch   Capability = "fetch_pdf"
)

// Method selects how a PDF source looks a paper up.
type Method string

const (
	MethodID    Method = "id"
	MethodTitle Method = "title"
)

// Info describes an adapter. The registry fills it from built-in defaults
// and configuration; it does not change after construction.
type Info struct {
	Name           string       `json:"name" yaml:"name"`
	Kind           Kind         `json:"kind" yaml:"kind"`
	Priority       int          `json:"priority" yaml:"priority"`
	Enabled        bool         `json:"enabled" yaml:"enabled"`
	RequiresAuth   bool         `json:"requires_auth" yaml:"requires_auth"`
	OpenAccessOnly bool         `json:"open_access_only" yaml:"open_access_only"`
	Capabilities   []Capability `json:"capabilities" yaml:"capabilities"`
	Methods        []Method     `json:"methods,omitempty" yaml:"methods,omitempty"`
}

// Can reports whether the adapter has capability c.
func (i Info) Can(c Capability) bool { return slices.Contains(i.Capabilities, c) }

// Source is the common part of every adapter.
type Source interface {
	Info() Info
}

// MetadataSource resolves an identifier into paper metadata.
type MetadataSource interface {
	Source
	Resolve(ctx context.Context, id ident.Identifier) (types.PaperMetadata, error)
}

// FetchRequest asks a PDF source for the paper described by Metadata using
// one lookup method.
type FetchRequest struct {
	Metadata types.PaperMetadata
	Method   Method
}

// PDFSource downloads PDF bytes. Returned bytes are always a PDF.
type PDFSource interface {
	Source
	Fetch(ctx context.Context, req FetchRequest) ([]byte, error)
}

// Pacer gates outbound requests per source. *ratelimit.Governor satisfies it.
type Pacer interface {
	Wait(ctx context.Context, source string) error
}

// Credentials looks up a session token or cookie for a source.
type Credentials interface {
	Session(source string) (string, bool)
}
