// Package templates drives the external template renderer that turns a
// composition identifier plus a property bag into an alpha-capable video.
package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"clipforge/internal/encoder"
	"clipforge/internal/timeline"
)

// Orientation values accepted for composition selection. The original
// pipeline hard-coded landscape; here it is an explicit input.
const (
	OrientationLandscape = "landscape"
	OrientationPortrait  = "portrait"
	OrientationSquare    = "square"
)

// Renderer invokes the template renderer binary once per clip.
type Renderer struct {
	Command string
	Runner  encoder.Runner
	Logger  *log.Logger
	Timeout time.Duration
}

// Options controls a pre-render pass.
type Options struct {
	WorkDir     string
	Orientation string
	Concurrency int
}

// Result maps clip ids to rendered files, covering only the clips that
// succeeded, plus one warning per failure.
type Result struct {
	Paths    map[string]string
	Warnings []string
}

// CompositionID derives the renderer composition from a template id and
// orientation.
func CompositionID(templateID, orientation string) string {
	if orientation == "" {
		orientation = OrientationLandscape
	}
	return templateID + "-" + orientation
}

// MergeProps merges content and style property bags; style keys win on
// conflict.
func MergeProps(content, style map[string]any) map[string]any {
	merged := make(map[string]any, len(content)+len(style))
	for k, v := range content {
		merged[k] = v
	}
	for k, v := range style {
		merged[k] = v
	}
	return merged
}

// Prerender renders every template clip, best effort. A failed clip is
// logged, reported as a warning, and omitted from the result map; it never
// aborts the pass. Clips render concurrently up to Options.Concurrency
// (default 1).
func (r *Renderer) Prerender(ctx context.Context, clips []timeline.OverlayClip, opts Options) Result {
	result := Result{Paths: make(map[string]string, len(clips))}
	if len(clips) == 0 {
		return result
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, concurrency)
	)

	for _, clip := range clips {
		clip := clip
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			outputPath := filepath.Join(opts.WorkDir, "template-"+clip.ID+".mov")
			err := r.RenderClip(ctx, clip, outputPath, opts.Orientation)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("template clip %s skipped: %v", clip.ID, err))
				return
			}
			result.Paths[clip.ID] = outputPath
		}()
	}
	wg.Wait()

	return result
}

// RenderClip invokes the renderer for one clip.
func (r *Renderer) RenderClip(ctx context.Context, clip timeline.OverlayClip, outputPath, orientation string) error {
	if strings.TrimSpace(clip.TemplateID) == "" {
		return fmt.Errorf("clip has no template id")
	}

	props, err := json.Marshal(MergeProps(clip.Content, clip.Style))
	if err != nil {
		return fmt.Errorf("encode props: %w", err)
	}

	args := BuildRenderArgs(CompositionID(clip.TemplateID, orientation), outputPath, string(props))

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	if r.Logger != nil {
		r.Logger.Printf("render template %s -> %s", clip.TemplateID, filepath.Base(outputPath))
	}
	result, err := r.Runner.Run(ctx, r.Command, args)
	if err != nil {
		stderr := strings.TrimSpace(string(result.Stderr))
		if stderr != "" {
			return fmt.Errorf("template renderer failed: %w (%s)", err, stderr)
		}
		return fmt.Errorf("template renderer failed: %w", err)
	}
	return nil
}

// BuildRenderArgs assembles the renderer CLI invocation: composition id,
// output path, JSON props, and an alpha-capable codec hint.
func BuildRenderArgs(compositionID, outputPath, propsJSON string) []string {
	return []string{
		"render",
		compositionID,
		outputPath,
		"--props", propsJSON,
		"--codec", "prores4444",
	}
}
