package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// HistoryLimit bounds the render history log. Older entries fall off the
// tail once the limit is reached.
const HistoryLimit = 200

// HistoryEntry is one completed (or failed) render in the project log.
type HistoryEntry struct {
	RunID            string           `json:"runId"`
	Status           Status           `json:"status"`
	Quality          string           `json:"quality"`
	OutputPath       string           `json:"outputPath,omitempty"`
	SubtitlesBurned  bool             `json:"subtitlesBurned"`
	SourceClipCount  int              `json:"sourceClipCount"`
	OverlayClipCount int              `json:"overlayClipCount"`
	StageDurationsMs map[string]int64 `json:"stageDurationsMs,omitempty"`
	Error            string           `json:"error,omitempty"`
	FinishedAt       time.Time        `json:"finishedAt"`
}

// AppendHistory prepends an entry to the history log, newest first, capped
// at HistoryLimit. The read-modify-write cycle is guarded by a file lock so
// concurrent runs against the same project cannot clobber each other.
func AppendHistory(path string, entry HistoryEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock history: %w", err)
	}
	defer lock.Unlock()

	entries := loadHistory(path)
	entries = append([]HistoryEntry{entry}, entries...)
	if len(entries) > HistoryLimit {
		entries = entries[:HistoryLimit]
	}
	return writeJSON(path, entries)
}

// ReadHistory returns the history log, newest first. A missing or corrupt
// file reads as empty.
func ReadHistory(path string) ([]HistoryEntry, error) {
	return loadHistory(path), nil
}

func loadHistory(path string) []HistoryEntry {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var entries []HistoryEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}
	return entries
}
