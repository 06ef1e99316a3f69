// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/pdiddy/paperfetch/pkg/types"
)

// ProgressVersion is the schema version written to progress files.
const ProgressVersion = 1

// Entry is the recorded outcome of one identifier.
type Entry struct {
	State      types.TaskState `json:"state"`
	ResultPath string          `json:"result_path,omitempty"`
	Error      string          `json:"error,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	RunID      string          `json:"run_id"`
}

// Progress is the persisted record of terminal task states, keyed by
// normalized identifier. Entries are added or overwritten, never removed.
type Progress struct {
	Version int              `json:"version"`
	Entries map[string]Entry `json:"entries"`
}

// NewProgress returns an empty record.
func NewProgress() *Progress {
	return &Progress{Version: ProgressVersion, Entries: map[string]Entry{}}
}

// LoadProgress reads a progress file. A missing file yields an empty
// record; a file with an unknown version is an error rather than being
// overwritten.
func LoadProgress(fs afero.Fs, path string) (*Progress, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewProgress(), nil
		}
		return nil, fmt.Errorf("reading progress file %s: %w", path, err)
	}

	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing progress file %s: %w", path, err)
	}
	if p.Version != ProgressVersion {
		return nil, fmt.Errorf("progress file %s: unsupported version %d", path, p.Version)
	}
	if p.Entries == nil {
		p.Entries = map[string]Entry{}
	}
	return &p, nil
}

// Done reports whether key already succeeded or was skipped.
func (p *Progress) Done(key string) (Entry, bool) {
	e, ok := p.Entries[key]
	if !ok {
		return Entry{}, false
	}
	return e, e.State == types.TaskSucceeded || e.State == types.TaskSkipped
}

// Record sets the entry for key.
func (p *Progress) Record(key string, e Entry) {
	p.Entries[key] = e
}

// Save writes the record to path through a temp file and a rename, so an
// interrupted write leaves the previous version intact.
func (p *Progress) Save(fs afero.Fs, path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling progress: %w", err)
	}

	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	tmp, err := afero.TempFile(fs, dir, ".progress-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		fs.Remove(tmpPath)
		return fmt.Errorf("writing progress: %w", writeErr)
	}
	if closeErr != nil {
		fs.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := fs.Rename(tmpPath, path); err != nil {
		fs.Remove(tmpPath)
		return fmt.Errorf("renaming progress file: %w", err)
	}
	return nil
}
