// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Verdict is the classification of a bibliography entry after verification.
type Verdict string

const (
	VerdictUnchecked Verdict = ""
	VerdictVerified  Verdict = "verified"
	VerdictFailed    Verdict = "failed"
	VerdictManual    Verdict = "manual"
	VerdictSkipped   Verdict = "skipped"
)

// CitationEntry is one bibliography entry. RawFields holds the BibTeX fields
// with lowercased names; Raw holds the entry text exactly as parsed so it
// can be written back unchanged.
type CitationEntry struct {
	Key       string            `json:"key" yaml:"key"`
	Type      string            `json:"type" yaml:"type"`
	RawFields map[string]string `json:"raw_fields" yaml:"raw_fields"`
	Raw       string            `json:"-" yaml:"-"`

	Resolved *PaperMetadata `json:"resolved_metadata,omitempty" yaml:"resolved_metadata,omitempty"`
	Verdict  Verdict        `json:"verdict" yaml:"verdict"`

	// Reason explains a Failed verdict.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Field returns the named field value, or "".
func (e CitationEntry) Field(name string) string {
	return e.RawFields[name]
}
