package encoder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"clipforge/internal/config"
)

// Concat methods reported back to the caller.
const (
	ConcatStreamCopy = "stream_copy"
	ConcatReencode   = "re-encode"
)

// WriteConcatList writes an ffmpeg concat demuxer list. It verifies each
// segment exists before writing; the list order determines output order.
func WriteConcatList(listPath string, segmentPaths []string) error {
	var missing []string
	for _, path := range segmentPaths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			missing = append(missing, path)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %d segment file(s):\n  %s", len(missing), strings.Join(missing, "\n  "))
	}

	f, err := os.Create(listPath)
	if err != nil {
		return fmt.Errorf("create concat list: %w", err)
	}
	defer f.Close()

	for _, path := range segmentPaths {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		// Escape single quotes in paths for the concat file format.
		escaped := strings.ReplaceAll(abs, "'", "'\\''")
		fmt.Fprintf(f, "file '%s'\n", escaped)
	}
	return nil
}

// ConcatSegments joins the listed segments into one continuous file. It
// tries a stream copy first; the re-encode tier only runs when the copy
// fails on codec or timestamp incompatibilities. Each tier runs once — a
// copy failure is a different error, not a transient one.
func (e *Encoder) ConcatSegments(ctx context.Context, listPath, outputPath string, profile config.Profile) (string, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", fmt.Errorf("prepare output dir: %w", err)
	}

	if err := e.run(ctx, BuildConcatCopyArgs(listPath, outputPath)); err == nil {
		return ConcatStreamCopy, nil
	} else {
		e.logf("concat stream copy failed, re-encoding: %v", err)
	}

	if err := e.run(ctx, e.BuildConcatEncodeArgs(listPath, outputPath, profile)); err != nil {
		return "", fmt.Errorf("concat re-encode failed: %w", err)
	}
	return ConcatReencode, nil
}

// BuildConcatCopyArgs assembles the fast stream-copy concatenation command.
func BuildConcatCopyArgs(listPath, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outputPath,
	}
}

// BuildConcatEncodeArgs assembles the re-encode fallback command using the
// same delivery conventions as segment rendering.
func (e *Encoder) BuildConcatEncodeArgs(listPath, outputPath string, profile config.Profile) []string {
	return []string{
		"-hide_banner",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c:v", e.Video.Codec,
		"-preset", profile.Preset,
		"-crf", strconv.Itoa(profile.CRF),
		"-pix_fmt", e.Video.PixelFmt,
		"-c:a", e.Audio.Codec,
		"-b:a", e.audioBitrateArg(),
		"-movflags", "+faststart",
		outputPath,
	}
}
