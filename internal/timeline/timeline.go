// Package timeline loads the persisted edit description for a project and
// classifies its clips for rendering.
package timeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Clip types understood by the pipeline.
const (
	ClipTypeSource   = "source_clip"
	ClipTypeAsset    = "asset_clip"
	ClipTypeTemplate = "template_clip"
)

// ErrNotFound reports a missing timeline document. This is a configuration
// error: the project has not produced an edit yet.
var ErrNotFound = errors.New("timeline not found")

// Timeline is the authoritative edit description for one project, produced
// by the editing front end and consumed read-only here.
type Timeline struct {
	ID         string          `json:"id"`
	ProjectID  string          `json:"projectId"`
	Version    int             `json:"version"`
	Status     string          `json:"status"`
	FPS        int             `json:"fps"`
	DurationUs int64           `json:"durationUs"`
	CreatedAt  string          `json:"createdAt"`
	UpdatedAt  string          `json:"updatedAt"`
	Tracks     []Track         `json:"tracks"`
	Clips      []Clip          `json:"clips"`
}

// Track is carried through untouched; the renderer flattens all tracks.
type Track struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Order  int    `json:"order"`
	Locked bool   `json:"locked"`
}

// Clip is a single placed element on the timeline. Clip order in the
// document is not meaningful; placement comes from StartUs/EndUs.
type Clip struct {
	ClipID        string          `json:"clipId"`
	TrackID       string          `json:"trackId"`
	ClipType      string          `json:"clipType"`
	StartUs       int64           `json:"startUs"`
	EndUs         int64           `json:"endUs"`
	SourceStartUs int64           `json:"sourceStartUs"`
	SourceEndUs   int64           `json:"sourceEndUs"`
	SourceRef     string          `json:"sourceRef"`
	TemplateID    string          `json:"templateId,omitempty"`
	Content       map[string]any  `json:"content,omitempty"`
	Style         map[string]any  `json:"style,omitempty"`
	Effects       json.RawMessage `json:"effects,omitempty"`
	Transform     json.RawMessage `json:"transform,omitempty"`
	Meta          map[string]any  `json:"meta,omitempty"`
}

// EffectiveID returns the clip's identifier, synthesizing a positional
// fallback when the document omits one.
func (c Clip) EffectiveID(position int) string {
	if c.ClipID != "" {
		return c.ClipID
	}
	return fmt.Sprintf("clip-%d", position+1)
}

// MetaKind returns the optional meta.kind hint (e.g. "image").
func (c Clip) MetaKind() string {
	if c.Meta == nil {
		return ""
	}
	if kind, ok := c.Meta["kind"].(string); ok {
		return kind
	}
	return ""
}

// IsOverlay reports whether the clip is composited on top of the base video.
func (c Clip) IsOverlay() bool {
	return c.ClipType == ClipTypeAsset || c.ClipType == ClipTypeTemplate
}

// Load reads the timeline document from disk.
func Load(path string) (Timeline, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Timeline{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Timeline{}, fmt.Errorf("read timeline: %w", err)
	}

	var tl Timeline
	if err := json.Unmarshal(raw, &tl); err != nil {
		return Timeline{}, fmt.Errorf("invalid timeline JSON: %w", err)
	}
	return tl, nil
}
