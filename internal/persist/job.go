// Package persist owns the durable records a render run leaves behind: the
// job status document and the bounded render history log.
package persist

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"clipforge/internal/retry"
)

// Status is the render job lifecycle state.
type Status string

const (
	StatusInProgress Status = "RENDER_IN_PROGRESS"
	StatusDone       Status = "RENDER_DONE"
	StatusFailed     Status = "RENDER_FAILED"
)

// RetryLedger records per-stage attempt counts and every retry event.
type RetryLedger struct {
	Attempts map[string]int `json:"attempts"`
	Events   []retry.Event  `json:"events"`
}

// JobDocument is the mutable status record for one render invocation. It is
// owned exclusively by that run and overwritten wholesale on each state
// transition, never merged.
type JobDocument struct {
	ProjectID           string           `json:"projectId"`
	RunID               string           `json:"runId"`
	Status              Status           `json:"status"`
	Quality             string           `json:"quality"`
	OutputPath          string           `json:"outputPath,omitempty"`
	SubtitlesBurned     bool             `json:"subtitlesBurned"`
	SourceClipCount     int              `json:"sourceClipCount"`
	OverlayClipCount    int              `json:"overlayClipCount"`
	OverlayAppliedCount int              `json:"overlayAppliedCount"`
	IgnoredClipCount    int              `json:"ignoredClipCount"`
	Warnings            []string         `json:"warnings,omitempty"`
	Retries             RetryLedger      `json:"retries"`
	StageDurationsMs    map[string]int64 `json:"stageDurationsMs,omitempty"`
	TelemetryRef        string           `json:"telemetryRef,omitempty"`
	HistoryRef          string           `json:"historyRef,omitempty"`
	Error               string           `json:"error,omitempty"`
	StartedAt           time.Time        `json:"startedAt"`
	FinishedAt          *time.Time       `json:"finishedAt,omitempty"`
}

// WriteJob persists the job document atomically.
func WriteJob(path string, doc JobDocument) error {
	return writeJSON(path, doc)
}

// ReadJob loads the current job document.
func ReadJob(path string) (JobDocument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return JobDocument{}, fmt.Errorf("read job document: %w", err)
	}
	var doc JobDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return JobDocument{}, fmt.Errorf("invalid job document: %w", err)
	}
	return doc, nil
}

// writeJSON writes v atomically via a temp file rename.
func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// BestEffort runs a fire-and-forget persistence write. Failures are logged
// and dropped so they can never mask the render outcome they describe.
func BestEffort(logger *log.Logger, label string, fn func() error) {
	if err := fn(); err != nil && logger != nil {
		logger.Printf("best-effort %s failed: %v", label, err)
	}
}
