// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package citation

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paperfetch/pkg/types"
)

// Summary counts verdicts and lists what failed.
type Summary struct {
	Total     int       `yaml:"total"`
	Verified  int       `yaml:"verified"`
	Failed    int       `yaml:"failed"`
	Manual    int       `yaml:"manual"`
	Skipped   int       `yaml:"skipped"`
	Unchecked int       `yaml:"unchecked,omitempty"`
	Failures  []Failure `yaml:"failures,omitempty"`
}

// Failure describes one failed entry.
type Failure struct {
	Key    string `yaml:"key"`
	Title  string `yaml:"title,omitempty"`
	Reason string `yaml:"reason"`

	// ResolvedTitle is what the entry's identifier actually points at.
	ResolvedTitle string `yaml:"resolved_title,omitempty"`
}

// Summarize tallies verdicts.
func Summarize(entries []types.CitationEntry) Summary {
	s := Summary{Total: len(entries)}
	for _, e := range entries {
		switch e.Verdict {
		case types.VerdictVerified:
			s.Verified++
		case types.VerdictFailed:
			s.Failed++
			f := Failure{Key: e.Key, Title: cleanTitle(e.Field("title")), Reason: e.Reason}
			if e.Resolved != nil {
				f.ResolvedTitle = e.Resolved.Title
			}
			s.Failures = append(s.Failures, f)
		case types.VerdictManual:
			s.Manual++
		case types.VerdictSkipped:
			s.Skipped++
		default:
			s.Unchecked++
		}
	}
	return s
}

// WriteSummary writes s as YAML.
func WriteSummary(w io.Writer, s Summary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(s)
}

// Outputs names the files written by WriteOutputs for a base path such as
// "refs" (from refs.bib).
type Outputs struct {
	Verified string
	Failed   string
	Summary  string
}

// OutputsFor derives output paths from the input .bib path.
func OutputsFor(bibPath string) Outputs {
	base := strings.TrimSuffix(bibPath, ".bib")
	return Outputs{
		Verified: base + ".verified.bib",
		Failed:   base + ".failed.bib",
		Summary:  base + ".summary.yaml",
	}
}

// WriteOutputs writes the verified and failed partitions and the summary.
// Manual and skipped entries go with the verified ones so the verified file
// remains a usable bibliography.
func WriteOutputs(fs afero.Fs, out Outputs, entries []types.CitationEntry) (Summary, error) {
	verified, failed, other := Partition(entries)
	for _, e := range other {
		if e.Verdict == types.VerdictManual || e.Verdict == types.VerdictSkipped {
			verified = append(verified, e)
		}
	}

	var buf bytes.Buffer
	if err := WriteBibTeX(&buf, verified); err != nil {
		return Summary{}, err
	}
	if err := afero.WriteFile(fs, out.Verified, buf.Bytes(), 0o644); err != nil {
		return Summary{}, fmt.Errorf("writing %s: %w", out.Verified, err)
	}

	buf.Reset()
	if err := WriteBibTeX(&buf, failed); err != nil {
		return Summary{}, err
	}
	if err := afero.WriteFile(fs, out.Failed, buf.Bytes(), 0o644); err != nil {
		return Summary{}, fmt.Errorf("writing %s: %w", out.Failed, err)
	}

	s := Summarize(entries)
	buf.Reset()
	if err := WriteSummary(&buf, s); err != nil {
		return s, fmt.Errorf("encoding summary: %w", err)
	}
	if err := afero.WriteFile(fs, out.Summary, buf.Bytes(), 0o644); err != nil {
		return s, fmt.Errorf("writing %s: %w", out.Summary, err)
	}
	return s, nil
}
