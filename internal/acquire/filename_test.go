// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/paperfetch/pkg/types"
)

func TestFormatFilename(t *testing.T) {
	full := types.PaperMetadata{
		Title:       "Attention Is All You Need: Transformers for Sequence Transduction",
		FirstAuthor: "Vaswani",
		Year:        2017,
		DOI:         "10.48550/arXiv.1706.03762",
	}
	tests := []struct {
		name   string
		format string
		meta   types.PaperMetadata
		max    int
		want   string
	}{
		{"default", "", full, 0, "Vaswani_2017_Attention_Is_All_You_Need_Transformers_for"},
		{"short title", "{first_author}_{year}_{title_short}", full, 20, "Vaswani_2017_Attention_Is_All"},
		{"full title", "{title}", full, 10, "Attention_Is_All_You_Need_Transformers_for_Sequence_Transduction"},
		{"doi", "{doi}", full, 0, "10_48550_arXiv_1706_03762"},
		{"missing values", "{first_author}_{year}_{title_short}", types.PaperMetadata{}, 0, "unknown_unknown_unknown"},
		{"accents folded", "{first_author}", types.PaperMetadata{FirstAuthor: "Müller-Gödel"}, 0, "Muller-Godel"},
		{"path chars dropped", "{first_author}/{title}", types.PaperMetadata{FirstAuthor: "../etc", Title: "a/b c"}, 0, "etcab_c"},
		{"unknown placeholder", "{year}{venue}", types.PaperMetadata{Year: 2001}, 0, "2001"},
		{"literal text", "paper-{year}", types.PaperMetadata{Year: 1999}, 0, "paper-1999"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatFilename(tt.format, tt.meta, tt.max))
		})
	}
}

func TestFormatFilenameCharset(t *testing.T) {
	safe := regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	titles := []string{
		"Über die Elektrodynamik bewegter Körper",
		"C++ & Rust: a (short) comparison?",
		"日本語のタイトル",
		"   ",
		"Tabs\tand\nnewlines",
	}
	for _, title := range titles {
		got := FormatFilename("", types.PaperMetadata{Title: title, FirstAuthor: "Ng", Year: 2020}, 30)
		assert.Regexp(t, safe, got, "title %q", title)
	}
}

func TestTruncateWords(t *testing.T) {
	assert.Equal(t, "Some_title", truncateWords("Some_title", 50))
	assert.Equal(t, "Some", truncateWords("Some_title", 8))
	assert.Equal(t, "Supercalifr", truncateWords("Supercalifragilistic", 11))
}
