package encoder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"clipforge/internal/config"
	"clipforge/internal/filtergraph"
)

// SubtitleJob burns an .srt file into a video.
type SubtitleJob struct {
	VideoPath    string
	SubtitlePath string
	OutputPath   string
	WorkDir      string
	Profile      config.Profile
}

// BurnSubtitles copies the subtitle file into the run's working directory
// (so its lifetime and escaping are independent of wherever the original
// lives) and invokes the encoder's subtitle filter with a slightly degraded
// CRF to keep the final pass from ballooning.
func (e *Encoder) BurnSubtitles(ctx context.Context, job SubtitleJob) error {
	scoped := filepath.Join(job.WorkDir, "subtitles.srt")
	if err := CopyFile(job.SubtitlePath, scoped); err != nil {
		return fmt.Errorf("stage subtitle file: %w", err)
	}

	args := e.BuildSubtitleArgs(job.VideoPath, scoped, job.OutputPath, job.Profile)
	e.logf("burn subtitles from %s", job.SubtitlePath)
	if err := e.run(ctx, args); err != nil {
		_ = os.Remove(job.OutputPath)
		return err
	}
	return nil
}

// BuildSubtitleArgs assembles the subtitle burn command. The subtitle path
// is escaped for filter syntax; colons, commas, and brackets would
// otherwise split the filter argument.
func (e *Encoder) BuildSubtitleArgs(videoPath, subtitlePath, outputPath string, profile config.Profile) []string {
	filter := fmt.Sprintf("subtitles=filename='%s'", filtergraph.EscapePath(subtitlePath))
	return []string{
		"-hide_banner",
		"-y",
		"-i", videoPath,
		"-vf", filter,
		"-c:v", e.Video.Codec,
		"-preset", profile.Preset,
		"-crf", strconv.Itoa(profile.SubtitleCRF()),
		"-pix_fmt", e.Video.PixelFmt,
		"-c:a", "copy",
		"-movflags", "+faststart",
		outputPath,
	}
}
