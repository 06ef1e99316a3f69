// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package batch

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"

	"github.com/pdiddy/paperfetch/pkg/types"
)

// ParseInputs reads a batch input file. The format follows the extension:
// .csv (header with doi and/or title columns), .json (array of strings or
// objects), anything else one identifier per line with blank lines and
// "#" comments ignored.
func ParseInputs(fs afero.Fs, path string) ([]types.RetrievalTask, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading batch input %s: %w", path, err)
	}

	var tasks []types.RetrievalTask
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		tasks, err = parseCSV(bytes.NewReader(data))
	case ".json":
		tasks, err = parseJSON(data)
	default:
		tasks, err = parseLines(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("parsing batch input %s: %w", path, err)
	}
	return tasks, nil
}

func parseLines(r io.Reader) ([]types.RetrievalTask, error) {
	var tasks []types.RetrievalTask
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tasks = append(tasks, types.RetrievalTask{Input: line})
	}
	return tasks, sc.Err()
}

// csvIDColumns are header names accepted for the identifier column.
var csvIDColumns = []string{"doi", "identifier", "id", "arxiv", "url"}

func parseCSV(r io.Reader) ([]types.RetrievalTask, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	idCol, titleCol := -1, -1
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		switch {
		case h == "title":
			titleCol = i
		case idCol < 0 && slices.Contains(csvIDColumns, h):
			idCol = i
		}
	}
	if idCol < 0 && titleCol < 0 {
		return nil, errors.New("CSV header needs a doi or title column")
	}

	var tasks []types.RetrievalTask
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		t := types.RetrievalTask{Input: field(rec, idCol), TitleHint: field(rec, titleCol)}
		if t.Query() == "" {
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// jsonInput accepts {type,value,title} and {doi|arxiv|url|title} shapes.
type jsonInput struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	DOI   string `json:"doi"`
	Arxiv string `json:"arxiv"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

func parseJSON(data []byte) ([]types.RetrievalTask, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("expected a JSON array: %w", err)
	}

	var tasks []types.RetrievalTask
	for i, msg := range raw {
		var s string
		if err := json.Unmarshal(msg, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				tasks = append(tasks, types.RetrievalTask{Input: s})
			}
			continue
		}

		var in jsonInput
		if err := json.Unmarshal(msg, &in); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		t := types.RetrievalTask{TitleHint: strings.TrimSpace(in.Title)}
		for _, v := range []string{in.Value, in.DOI, in.Arxiv, in.URL} {
			if v = strings.TrimSpace(v); v != "" {
				t.Input = v
				break
			}
		}
		if strings.EqualFold(in.Type, "title") && t.Input != "" && t.TitleHint == "" {
			t.TitleHint, t.Input = t.Input, ""
		}
		if t.Query() == "" {
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

