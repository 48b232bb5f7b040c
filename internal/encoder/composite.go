package encoder

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"clipforge/internal/config"
	"clipforge/internal/filtergraph"
)

// OverlayKind selects the scaling treatment for an overlay input.
type OverlayKind int

const (
	// OverlayTemplate is a pre-rendered graphics layer scaled to the full
	// frame.
	OverlayTemplate OverlayKind = iota
	// OverlayImage is a static picture fit into 80% of the frame.
	OverlayImage
	// OverlayVideo is any other asset, fit into half the frame.
	OverlayVideo
)

// OverlayInput is one resolved overlay source with its visibility window on
// the output timeline.
type OverlayInput struct {
	Path    string
	StartUs int64
	EndUs   int64
	Kind    OverlayKind
}

// CompositeJob layers overlays onto a stitched base video.
type CompositeJob struct {
	BasePath   string
	OutputPath string
	Profile    config.Profile
	Width      int
	Height     int
	Overlays   []OverlayInput
}

// Composite runs the encoder once with a filter graph layering every
// overlay onto the base at its time window. Base audio is stream-copied.
// Callers are expected to handle failure by falling back to the base video.
func (e *Encoder) Composite(ctx context.Context, job CompositeJob) error {
	args, err := e.BuildCompositeArgs(job)
	if err != nil {
		return err
	}
	e.logf("composite %d overlay(s) onto %s", len(job.Overlays), job.BasePath)
	return e.run(ctx, args)
}

// BuildCompositeArgs assembles the full ffmpeg invocation including the
// serialized filter graph.
func (e *Encoder) BuildCompositeArgs(job CompositeJob) ([]string, error) {
	if len(job.Overlays) == 0 {
		return nil, errors.New("composite requires at least one overlay")
	}
	if job.Width <= 0 || job.Height <= 0 {
		return nil, errors.New("composite requires base dimensions")
	}

	args := []string{"-hide_banner", "-y", "-i", job.BasePath}
	for _, ov := range job.Overlays {
		if ov.Kind == OverlayImage {
			// Loop the still frame for the overlay's whole window.
			args = append(args,
				"-loop", "1",
				"-t", secondsArg(ov.EndUs-ov.StartUs),
				"-i", ov.Path,
			)
			continue
		}
		args = append(args, "-i", ov.Path)
	}

	graph := BuildOverlayGraph(job)
	finalPad := fmt.Sprintf("v%d", len(job.Overlays)-1)

	args = append(args,
		"-filter_complex", graph.String(),
		"-map", "["+finalPad+"]",
		"-map", "0:a?",
		"-c:v", e.Video.Codec,
		"-preset", job.Profile.Preset,
		"-crf", strconv.Itoa(job.Profile.CRF),
		"-pix_fmt", e.Video.PixelFmt,
		"-c:a", "copy",
		"-movflags", "+faststart",
		job.OutputPath,
	)
	return args, nil
}

// BuildOverlayGraph constructs the structured filter graph for a composite
// job. Overlays must already be in ascending start order; that order is the
// z-order, later layers painting on top.
func BuildOverlayGraph(job CompositeJob) *filtergraph.Graph {
	var graph filtergraph.Graph

	base := "0:v"
	for i, ov := range job.Overlays {
		scaled := fmt.Sprintf("ov%d", i)
		out := fmt.Sprintf("v%d", i)
		boxW, boxH := overlayBox(ov.Kind, job.Width, job.Height)

		graph.Add(filtergraph.Chain{
			Inputs: []string{fmt.Sprintf("%d:v", i+1)},
			Filters: []filtergraph.Filter{
				filtergraph.NewFilter("scale",
					filtergraph.KVf("w", "%d", boxW),
					filtergraph.KVf("h", "%d", boxH),
					filtergraph.KV("force_original_aspect_ratio", "decrease"),
				),
				filtergraph.NewFilter("setpts",
					filtergraph.Arg{Value: fmt.Sprintf("PTS-STARTPTS+%s/TB", secondsArg(ov.StartUs)), Quoted: true},
				),
			},
			Outputs: []string{scaled},
		})

		graph.Add(filtergraph.Chain{
			Inputs: []string{base, scaled},
			Filters: []filtergraph.Filter{
				filtergraph.NewFilter("overlay",
					filtergraph.KV("x", "(W-w)/2"),
					filtergraph.KV("y", "(H-h)/2"),
					filtergraph.Expr("enable", fmt.Sprintf("between(t,%s,%s)", secondsArg(ov.StartUs), secondsArg(ov.EndUs))),
				),
			},
			Outputs: []string{out},
		})

		base = out
	}

	return &graph
}

// overlayBox returns the bounding box each overlay kind scales into while
// preserving aspect ratio.
func overlayBox(kind OverlayKind, width, height int) (int, int) {
	switch kind {
	case OverlayTemplate:
		return width, height
	case OverlayImage:
		return width * 4 / 5, height * 4 / 5
	default:
		return width / 2, height / 2
	}
}
