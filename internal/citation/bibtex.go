// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package citation

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/pdiddy/paperfetch/pkg/types"
)

var errUnterminated = errors.New("unterminated entry")

// ParseBibTeX reads every entry from a BibTeX file. Field names are
// lowercased and values have their outer braces or quotes removed, with
// whitespace collapsed; inner braces are kept. Each entry keeps its original
// text in Raw so it can be written back unchanged. @comment, @preamble and
// @string blocks are skipped.
func ParseBibTeX(r io.Reader) ([]types.CitationEntry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading bibtex: %w", err)
	}
	p := &bibParser{src: string(data)}
	return p.parse()
}

type bibParser struct {
	src string
	pos int
}

func (p *bibParser) parse() ([]types.CitationEntry, error) {
	var entries []types.CitationEntry
	for {
		at := strings.IndexByte(p.src[p.pos:], '@')
		if at < 0 {
			return entries, nil
		}
		start := p.pos + at
		p.pos = start + 1
		typ := strings.ToLower(p.word())
		p.skipSpace()
		if p.pos >= len(p.src) {
			return entries, nil
		}
		open := p.src[p.pos]
		if typ == "" || (open != '{' && open != '(') {
			// A stray '@', e.g. an email address in a comment.
			continue
		}
		closer := byte('}')
		if open == '(' {
			closer = ')'
		}
		p.pos++

		switch typ {
		case "comment", "preamble", "string":
			if err := p.skipBlock(open, closer); err != nil {
				return nil, fmt.Errorf("@%s at offset %d: %w", typ, start, err)
			}
			continue
		}

		e, err := p.entry(typ, closer)
		if err != nil {
			return nil, fmt.Errorf("entry at offset %d: %w", start, err)
		}
		e.Raw = p.src[start:p.pos]
		entries = append(entries, e)
	}
}

func (p *bibParser) entry(typ string, closer byte) (types.CitationEntry, error) {
	e := types.CitationEntry{Type: typ, RawFields: map[string]string{}}

	p.skipSpace()
	keyStart := p.pos
	for p.pos < len(p.src) && p.src[p.pos] != ',' && p.src[p.pos] != closer {
		p.pos++
	}
	if p.pos >= len(p.src) {
		return e, errUnterminated
	}
	e.Key = strings.TrimSpace(p.src[keyStart:p.pos])
	if e.Key == "" {
		return e, errors.New("missing citation key")
	}

	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return e, fmt.Errorf("%s: %w", e.Key, errUnterminated)
		}
		switch p.src[p.pos] {
		case closer:
			p.pos++
			return e, nil
		case ',':
			p.pos++
			continue
		}

		name := strings.ToLower(p.word())
		if name == "" {
			return e, fmt.Errorf("%s: unexpected %q", e.Key, p.src[p.pos])
		}
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != '=' {
			return e, fmt.Errorf("%s: field %s has no value", e.Key, name)
		}
		p.pos++
		v, err := p.value(closer)
		if err != nil {
			return e, fmt.Errorf("%s: field %s: %w", e.Key, name, err)
		}
		e.RawFields[name] = v
	}
}

// value reads a braced, quoted or bare value, joining '#' concatenations.
func (p *bibParser) value(closer byte) (string, error) {
	var parts []string
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return "", errUnterminated
		}
		switch c := p.src[p.pos]; c {
		case '{':
			p.pos++
			start := p.pos
			if err := p.skipBlock('{', '}'); err != nil {
				return "", err
			}
			parts = append(parts, p.src[start:p.pos-1])
		case '"':
			p.pos++
			start := p.pos
			depth := 0
			for ; p.pos < len(p.src); p.pos++ {
				ch := p.src[p.pos]
				if ch == '\\' {
					p.pos++
					continue
				}
				if ch == '{' {
					depth++
				} else if ch == '}' {
					depth--
				} else if ch == '"' && depth == 0 {
					break
				}
			}
			if p.pos >= len(p.src) {
				return "", errUnterminated
			}
			parts = append(parts, p.src[start:p.pos])
			p.pos++
		default:
			start := p.pos
			for p.pos < len(p.src) && !strings.ContainsRune(" \t\r\n,#", rune(p.src[p.pos])) && p.src[p.pos] != closer {
				p.pos++
			}
			if p.pos == start {
				return "", fmt.Errorf("unexpected %q", c)
			}
			parts = append(parts, p.src[start:p.pos])
		}

		p.skipSpace()
		if p.pos < len(p.src) && p.src[p.pos] == '#' {
			p.pos++
			continue
		}
		return strings.Join(strings.Fields(strings.Join(parts, "")), " "), nil
	}
}

// skipBlock advances past the closer matching an already consumed opener.
func (p *bibParser) skipBlock(open, closer byte) error {
	depth := 1
	for ; p.pos < len(p.src); p.pos++ {
		switch p.src[p.pos] {
		case '\\':
			p.pos++
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				p.pos++
				return nil
			}
		}
	}
	return errUnterminated
}

func (p *bibParser) word() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || strings.IndexByte("_-:.+/", c) >= 0 {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *bibParser) skipSpace() {
	for p.pos < len(p.src) && strings.IndexByte(" \t\r\n", p.src[p.pos]) >= 0 {
		p.pos++
	}
}

// WriteBibTeX writes entries separated by blank lines. Entries parsed from a
// file are written exactly as read; others are formatted from their fields
// in name order.
func WriteBibTeX(w io.Writer, entries []types.CitationEntry) error {
	for i, e := range entries {
		text := strings.TrimSpace(e.Raw)
		if text == "" {
			text = formatEntry(e)
		}
		if i > 0 {
			text = "\n" + text
		}
		if _, err := io.WriteString(w, text+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func formatEntry(e types.CitationEntry) string {
	typ := e.Type
	if typ == "" {
		typ = "misc"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "@%s{%s,\n", typ, e.Key)
	for _, name := range slices.Sorted(maps.Keys(e.RawFields)) {
		fmt.Fprintf(&b, "  %s = {%s},\n", name, e.RawFields[name])
	}
	b.WriteString("}")
	return b.String()
}
