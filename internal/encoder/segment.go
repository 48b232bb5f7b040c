package encoder

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"

	"clipforge/internal/config"
)

// SegmentJob describes one trim/re-encode of a source clip into a
// standalone segment file.
type SegmentJob struct {
	SourcePath string
	StartUs    int64
	EndUs      int64
	OutputPath string
	Profile    config.Profile
}

// RenderSegment extracts [StartUs, EndUs) from the source and re-encodes it
// to the delivery format. The output is overwritten on every call, keeping
// the operation idempotent for retries.
func (e *Encoder) RenderSegment(ctx context.Context, job SegmentJob) error {
	args, err := e.BuildSegmentArgs(job)
	if err != nil {
		return err
	}
	e.logf("render segment %s [%s..%s)", filepath.Base(job.OutputPath), secondsArg(job.StartUs), secondsArg(job.EndUs))
	return e.run(ctx, args)
}

// BuildSegmentArgs assembles the ffmpeg argument list for a segment render.
func (e *Encoder) BuildSegmentArgs(job SegmentJob) ([]string, error) {
	if job.SourcePath == "" {
		return nil, errors.New("segment source path is empty")
	}
	if job.OutputPath == "" {
		return nil, errors.New("segment output path is empty")
	}
	if job.EndUs <= job.StartUs {
		return nil, errors.New("segment time range is empty")
	}

	args := []string{
		"-hide_banner",
		"-y",
		"-ss", secondsArg(job.StartUs),
		"-to", secondsArg(job.EndUs),
		"-i", job.SourcePath,
		"-c:v", e.Video.Codec,
		"-preset", job.Profile.Preset,
		"-crf", strconv.Itoa(job.Profile.CRF),
		"-pix_fmt", e.Video.PixelFmt,
		"-c:a", e.Audio.Codec,
		"-b:a", e.audioBitrateArg(),
		"-movflags", "+faststart",
		job.OutputPath,
	}
	return args, nil
}
