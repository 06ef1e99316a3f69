// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package citation

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paperfetch/pkg/types"
)

func verdictEntries() []types.CitationEntry {
	return []types.CitationEntry{
		{Key: "ok", Type: "article", RawFields: map[string]string{"title": "Good"}, Raw: "@article{ok,\n  title = {Good}\n}", Verdict: types.VerdictVerified},
		{Key: "bad", Type: "article", RawFields: map[string]string{"title": "{Bad} Title"}, Raw: "@article{bad,\n  title = {{Bad} Title}\n}",
			Verdict: types.VerdictFailed, Reason: "title mismatch", Resolved: &types.PaperMetadata{Title: "Something Else"}},
		{Key: "hand", Type: "misc", RawFields: map[string]string{}, Raw: "@misc{hand}", Verdict: types.VerdictManual},
		{Key: "skip", Type: "misc", RawFields: map[string]string{}, Raw: "@misc{skip}", Verdict: types.VerdictSkipped},
		{Key: "left", Type: "misc", RawFields: map[string]string{}, Raw: "@misc{left}"},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(verdictEntries())
	assert.Equal(t, Summary{
		Total: 5, Verified: 1, Failed: 1, Manual: 1, Skipped: 1, Unchecked: 1,
		Failures: []Failure{{Key: "bad", Title: "Bad Title", Reason: "title mismatch", ResolvedTitle: "Something Else"}},
	}, s)
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, Summarize(verdictEntries())))

	var back Summary
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, Summarize(verdictEntries()), back)
	assert.Contains(t, buf.String(), "failures:\n  - key: bad\n")
}

func TestOutputsFor(t *testing.T) {
	assert.Equal(t, Outputs{
		Verified: "docs/refs.verified.bib",
		Failed:   "docs/refs.failed.bib",
		Summary:  "docs/refs.summary.yaml",
	}, OutputsFor("docs/refs.bib"))
}

func TestWriteOutputs(t *testing.T) {
	fs := afero.NewMemMapFs()
	out := OutputsFor("refs.bib")

	s, err := WriteOutputs(fs, out, verdictEntries())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Failed)

	verified, err := afero.ReadFile(fs, out.Verified)
	require.NoError(t, err)
	parsed, err := ParseBibTeX(bytes.NewReader(verified))
	require.NoError(t, err)
	var keys []string
	for _, e := range parsed {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{"ok", "hand", "skip"}, keys)

	failed, err := afero.ReadFile(fs, out.Failed)
	require.NoError(t, err)
	assert.Equal(t, "@article{bad,\n  title = {{Bad} Title}\n}\n", string(failed))

	summary, err := afero.ReadFile(fs, out.Summary)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(summary), "total: 5\n"))
}
