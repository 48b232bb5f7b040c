package timeline

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNoSourceClips reports that filtering and path resolution left nothing
// to render. This is a configuration error, not a transient failure.
var ErrNoSourceClips = errors.New("no source clips available")

// SourceClip is a validated, path-resolved segment of raw footage.
type SourceClip struct {
	Clip
	ID         string
	SourcePath string
}

// OverlayClip is a validated graphic layer. SourcePath is resolved for
// asset clips; template clips get their media from the pre-render stage.
type OverlayClip struct {
	Clip
	ID         string
	SourcePath string
}

// Model is the classified view of a timeline, ready for the pipeline.
type Model struct {
	DurationUs   int64
	SourceClips  []SourceClip
	OverlayClips []OverlayClip
	IgnoredCount int
	Warnings     []string
}

// Classify partitions timeline clips into ordered source segments and
// overlay layers, applying validity filters and source path resolution.
// Invalid or unresolvable clips degrade to warnings; the only fatal outcome
// is ending up with zero renderable source segments.
func Classify(tl Timeline, r Resolver) (Model, error) {
	model := Model{DurationUs: tl.DurationUs}

	var sources []SourceClip
	for i, clip := range tl.Clips {
		id := clip.EffectiveID(i)
		switch clip.ClipType {
		case ClipTypeSource:
			if clip.SourceEndUs <= clip.SourceStartUs || clip.EndUs <= clip.StartUs {
				model.IgnoredCount++
				model.Warnings = append(model.Warnings, fmt.Sprintf("dropped source clip %s: empty time range", id))
				continue
			}
			sources = append(sources, SourceClip{Clip: clip, ID: id})
		case ClipTypeAsset, ClipTypeTemplate:
			if clip.EndUs <= clip.StartUs {
				model.IgnoredCount++
				model.Warnings = append(model.Warnings, fmt.Sprintf("dropped overlay clip %s: empty time range", id))
				continue
			}
			model.OverlayClips = append(model.OverlayClips, OverlayClip{Clip: clip, ID: id})
		default:
			model.IgnoredCount++
			model.Warnings = append(model.Warnings, fmt.Sprintf("dropped clip %s: unknown type %q", id, clip.ClipType))
		}
	}

	// Degrade gracefully: an empty cut of a non-empty timeline renders the
	// full source rather than failing.
	if len(sources) == 0 && tl.DurationUs > 0 {
		if r.DefaultPath == "" {
			return Model{}, fmt.Errorf("%w: timeline has no source clips and no default source resolved", ErrNoSourceClips)
		}
		sources = append(sources, SourceClip{
			Clip: Clip{
				ClipType:      ClipTypeSource,
				StartUs:       0,
				EndUs:         tl.DurationUs,
				SourceStartUs: 0,
				SourceEndUs:   tl.DurationUs,
			},
			ID:         "clip-full",
			SourcePath: r.DefaultPath,
		})
	}

	for _, sc := range sources {
		if sc.SourcePath == "" {
			path, ok := r.Resolve(sc.SourceRef)
			if !ok {
				model.IgnoredCount++
				model.Warnings = append(model.Warnings, fmt.Sprintf("skipped source clip %s: source %q unresolvable", sc.ID, sc.SourceRef))
				continue
			}
			sc.SourcePath = path
		}
		model.SourceClips = append(model.SourceClips, sc)
	}

	if len(model.SourceClips) == 0 {
		return Model{}, ErrNoSourceClips
	}

	// Resolve asset overlays here; unresolvable ones are non-fatal.
	resolved := model.OverlayClips[:0]
	for _, oc := range model.OverlayClips {
		if oc.ClipType == ClipTypeAsset {
			path, ok := r.Resolve(oc.SourceRef)
			if !ok {
				model.IgnoredCount++
				model.Warnings = append(model.Warnings, fmt.Sprintf("skipped overlay clip %s: source %q unresolvable", oc.ID, oc.SourceRef))
				continue
			}
			oc.SourcePath = path
		}
		resolved = append(resolved, oc)
	}
	model.OverlayClips = resolved

	// Ordering is load-bearing: concatenation order follows ascending start
	// time, and overlays later paint on top in the same order.
	sort.SliceStable(model.SourceClips, func(i, j int) bool {
		return model.SourceClips[i].StartUs < model.SourceClips[j].StartUs
	})
	sort.SliceStable(model.OverlayClips, func(i, j int) bool {
		return model.OverlayClips[i].StartUs < model.OverlayClips[j].StartUs
	})

	return model, nil
}

// TemplateClips returns the overlay clips rendered by the template engine.
func (m Model) TemplateClips() []OverlayClip {
	var out []OverlayClip
	for _, oc := range m.OverlayClips {
		if oc.ClipType == ClipTypeTemplate {
			out = append(out, oc)
		}
	}
	return out
}
