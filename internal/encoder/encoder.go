// Package encoder wraps the external video encoder (ffmpeg) behind typed
// operations: segment extraction, concatenation, overlay compositing, and
// subtitle burn-in.
package encoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"clipforge/internal/config"
)

// Encoder invokes ffmpeg/ffprobe for one project render.
type Encoder struct {
	FFmpegPath   string
	FFprobePath  string
	Video        config.VideoConfig
	Audio        config.AudioConfig
	Runner       Runner
	Logger       *log.Logger
	Timeout      time.Duration
	ProbeTimeout time.Duration
}

// New resolves the encoder binaries on PATH and binds the configuration.
func New(cfg config.Config, runner Runner, logger *log.Logger) (*Encoder, error) {
	if runner == nil {
		runner = CmdRunner{}
	}

	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("locate ffmpeg: %w", err)
	}
	// ffprobe ships alongside ffmpeg; compositing degrades without it.
	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		ffprobePath = ""
	}

	return &Encoder{
		FFmpegPath:   ffmpegPath,
		FFprobePath:  ffprobePath,
		Video:        cfg.Video,
		Audio:        cfg.Audio,
		Runner:       runner,
		Logger:       logger,
		Timeout:      cfg.EncodeTimeout(),
		ProbeTimeout: cfg.ProbeTimeout(),
	}, nil
}

// run invokes ffmpeg under the encoder's wall-clock timeout.
func (e *Encoder) run(ctx context.Context, args []string) error {
	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	result, err := e.Runner.Run(ctx, e.FFmpegPath, args)
	if err != nil {
		stderr := tail(result.Stderr, 512)
		if stderr != "" {
			return fmt.Errorf("ffmpeg failed: %w (%s)", err, stderr)
		}
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	return nil
}

func (e *Encoder) logf(format string, args ...any) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}

func tail(buf []byte, max int) string {
	s := strings.TrimSpace(string(buf))
	if len(s) > max {
		s = "..." + s[len(s)-max:]
	}
	return s
}

// secondsArg converts microseconds into the seconds string passed to ffmpeg,
// keeping full microsecond precision.
func secondsArg(us int64) string {
	return strconv.FormatFloat(float64(us)/1e6, 'f', 6, 64)
}

// audioBitrateArg renders the fixed audio bitrate, e.g. "192k".
func (e *Encoder) audioBitrateArg() string {
	return fmt.Sprintf("%dk", e.Audio.BitrateKbps)
}

// CopyFile duplicates src to dst, overwriting dst. Fallback paths use this
// when a compositing or subtitle pass cannot run.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("prepare output dir: %w", err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}

// ProbeDimensions returns the width and height of the first video stream.
// The probe runs under its own short wall-clock timeout so a wedged ffprobe
// cannot stall the render.
func (e *Encoder) ProbeDimensions(ctx context.Context, path string) (int, int, error) {
	if e.FFprobePath == "" {
		return 0, 0, errors.New("ffprobe not available")
	}

	ctx, cancel := context.WithTimeout(ctx, e.ProbeTimeout)
	defer cancel()

	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0",
		path,
	}
	result, err := e.Runner.Run(ctx, e.FFprobePath, args)
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	dims := strings.TrimSpace(string(result.Stdout))
	parts := strings.Split(dims, "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("unexpected ffprobe output %q", dims)
	}
	width, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("parse width: %w", err)
	}
	height, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("parse height: %w", err)
	}
	return width, height, nil
}
