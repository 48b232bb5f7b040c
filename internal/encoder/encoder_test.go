package encoder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/logx"
)

// fakeRunner scripts subprocess outcomes per invocation.
type fakeRunner struct {
	calls   [][]string
	errs    []error
	stdouts []string
}

func (f *fakeRunner) Run(_ context.Context, command string, args []string) (RunResult, error) {
	call := append([]string{command}, args...)
	f.calls = append(f.calls, call)

	idx := len(f.calls) - 1
	var err error
	if idx < len(f.errs) {
		err = f.errs[idx]
	}
	var stdout string
	if idx < len(f.stdouts) {
		stdout = f.stdouts[idx]
	}
	return RunResult{Stdout: []byte(stdout)}, err
}

func testEncoder(runner Runner) *Encoder {
	cfg := config.Default()
	return &Encoder{
		FFmpegPath:   "/usr/bin/ffmpeg",
		FFprobePath:  "/usr/bin/ffprobe",
		Video:        cfg.Video,
		Audio:        cfg.Audio,
		Runner:       runner,
		Logger:       logx.Discard(),
		Timeout:      time.Minute,
		ProbeTimeout: 5 * time.Second,
	}
}

func TestBuildSegmentArgs(t *testing.T) {
	e := testEncoder(nil)
	args, err := e.BuildSegmentArgs(SegmentJob{
		SourcePath: "/media/in.mp4",
		StartUs:    1_500_000,
		EndUs:      7_250_500,
		OutputPath: "/tmp/seg-000.mp4",
		Profile:    config.ProfileFor("draft"),
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-ss 1.500000",
		"-to 7.250500",
		"-i /media/in.mp4",
		"-c:v libx264",
		"-preset veryfast",
		"-crf 28",
		"-pix_fmt yuv420p",
		"-c:a aac",
		"-b:a 192k",
		"-movflags +faststart",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
	if args[len(args)-1] != "/tmp/seg-000.mp4" {
		t.Errorf("output not last arg: %v", args)
	}
}

func TestBuildSegmentArgsValidation(t *testing.T) {
	e := testEncoder(nil)
	if _, err := e.BuildSegmentArgs(SegmentJob{OutputPath: "x", StartUs: 0, EndUs: 1}); err == nil {
		t.Error("expected error for empty source")
	}
	if _, err := e.BuildSegmentArgs(SegmentJob{SourcePath: "x", OutputPath: "y", StartUs: 5, EndUs: 5}); err == nil {
		t.Error("expected error for empty range")
	}
}

func TestWriteConcatList(t *testing.T) {
	dir := t.TempDir()
	seg1 := filepath.Join(dir, "seg's.mp4")
	seg2 := filepath.Join(dir, "seg2.mp4")
	for _, p := range []string{seg1, seg2} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	listPath := filepath.Join(dir, "list.txt")
	if err := WriteConcatList(listPath, []string{seg1, seg2}); err != nil {
		t.Fatalf("write list: %v", err)
	}

	raw, err := os.ReadFile(listPath)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d", len(lines))
	}
	if !strings.Contains(lines[0], `seg'\''s.mp4`) {
		t.Errorf("quote not escaped: %q", lines[0])
	}
}

func TestWriteConcatListMissingSegment(t *testing.T) {
	dir := t.TempDir()
	err := WriteConcatList(filepath.Join(dir, "list.txt"), []string{filepath.Join(dir, "nope.mp4")})
	if err == nil || !strings.Contains(err.Error(), "missing 1 segment") {
		t.Fatalf("err = %v", err)
	}
}

func TestConcatSegmentsStreamCopy(t *testing.T) {
	runner := &fakeRunner{}
	e := testEncoder(runner)

	method, err := e.ConcatSegments(context.Background(), "/tmp/list.txt", filepath.Join(t.TempDir(), "out.mp4"), config.ProfileFor("balanced"))
	if err != nil {
		t.Fatalf("concat: %v", err)
	}
	if method != ConcatStreamCopy {
		t.Errorf("method = %q", method)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("calls = %d", len(runner.calls))
	}
	if !strings.Contains(strings.Join(runner.calls[0], " "), "-c copy") {
		t.Errorf("first tier must stream copy: %v", runner.calls[0])
	}
}

func TestConcatSegmentsFallsBackToReencode(t *testing.T) {
	runner := &fakeRunner{errs: []error{errors.New("codec mismatch"), nil}}
	e := testEncoder(runner)

	method, err := e.ConcatSegments(context.Background(), "/tmp/list.txt", filepath.Join(t.TempDir(), "out.mp4"), config.ProfileFor("quality"))
	if err != nil {
		t.Fatalf("concat: %v", err)
	}
	if method != ConcatReencode {
		t.Errorf("method = %q", method)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("calls = %d, want one per tier", len(runner.calls))
	}
	second := strings.Join(runner.calls[1], " ")
	if !strings.Contains(second, "-crf 18") || !strings.Contains(second, "-preset slow") {
		t.Errorf("re-encode tier must honor profile: %s", second)
	}
}

func TestConcatSegmentsBothTiersFail(t *testing.T) {
	runner := &fakeRunner{errs: []error{errors.New("copy fail"), errors.New("encode fail")}}
	e := testEncoder(runner)

	_, err := e.ConcatSegments(context.Background(), "/tmp/list.txt", filepath.Join(t.TempDir(), "out.mp4"), config.ProfileFor("balanced"))
	if err == nil || !strings.Contains(err.Error(), "re-encode failed") {
		t.Fatalf("err = %v", err)
	}
	if len(runner.calls) != 2 {
		t.Errorf("calls = %d, each tier runs once", len(runner.calls))
	}
}

func TestBuildCompositeArgs(t *testing.T) {
	e := testEncoder(nil)
	job := CompositeJob{
		BasePath:   "/tmp/stitched.mp4",
		OutputPath: "/tmp/composited.mp4",
		Profile:    config.ProfileFor("balanced"),
		Width:      1920,
		Height:     1080,
		Overlays: []OverlayInput{
			{Path: "/tmp/tmpl.mov", StartUs: 1_000_000, EndUs: 3_000_000, Kind: OverlayTemplate},
			{Path: "/tmp/logo.png", StartUs: 2_000_000, EndUs: 5_000_000, Kind: OverlayImage},
		},
	}

	args, err := e.BuildCompositeArgs(job)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	joined := strings.Join(args, " ")

	// The image input loops for its 3s window; the template does not.
	if !strings.Contains(joined, "-loop 1 -t 3.000000 -i /tmp/logo.png") {
		t.Errorf("image input not looped: %s", joined)
	}
	if strings.Contains(joined, "-loop 1 -t 2.000000") {
		t.Errorf("template input must not loop: %s", joined)
	}
	if !strings.Contains(joined, "-map [v1]") {
		t.Errorf("final pad not mapped: %s", joined)
	}
	if !strings.Contains(joined, "-map 0:a?") || !strings.Contains(joined, "-c:a copy") {
		t.Errorf("base audio must be stream copied: %s", joined)
	}
}

func TestBuildOverlayGraph(t *testing.T) {
	job := CompositeJob{
		Width:  1920,
		Height: 1080,
		Overlays: []OverlayInput{
			{Path: "a.mov", StartUs: 0, EndUs: 2_000_000, Kind: OverlayTemplate},
			{Path: "b.png", StartUs: 1_000_000, EndUs: 4_000_000, Kind: OverlayImage},
			{Path: "c.mp4", StartUs: 3_000_000, EndUs: 5_000_000, Kind: OverlayVideo},
		},
	}

	graph := BuildOverlayGraph(job).String()

	// Scaling boxes per kind: full frame, 80%, 50%.
	for _, want := range []string{
		"scale=w=1920:h=1080",
		"scale=w=1536:h=864",
		"scale=w=960:h=540",
		`enable='between(t\,0.000000\,2.000000)'`,
		`enable='between(t\,1.000000\,4.000000)'`,
		"overlay=x=(W-w)/2:y=(H-h)/2",
		"[0:v][ov0]",
		"[v0][ov1]",
		"[v1][ov2]",
	} {
		if !strings.Contains(graph, want) {
			t.Errorf("graph missing %q\ngraph: %s", want, graph)
		}
	}
}

func TestBuildCompositeArgsValidation(t *testing.T) {
	e := testEncoder(nil)
	if _, err := e.BuildCompositeArgs(CompositeJob{Width: 1920, Height: 1080}); err == nil {
		t.Error("expected error for zero overlays")
	}
	if _, err := e.BuildCompositeArgs(CompositeJob{Overlays: []OverlayInput{{}}}); err == nil {
		t.Error("expected error for missing dimensions")
	}
}

func TestBuildSubtitleArgs(t *testing.T) {
	e := testEncoder(nil)
	args := e.BuildSubtitleArgs("/tmp/in.mp4", "/tmp/subs, v1/[final].srt", "/tmp/out.mp4", config.ProfileFor("quality"))
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, `subtitles=filename='/tmp/subs\, v1/\[final\].srt'`) {
		t.Errorf("subtitle path not escaped: %s", joined)
	}
	// quality CRF 18 degrades to 20 for the burn pass.
	if !strings.Contains(joined, "-crf 20") {
		t.Errorf("degraded CRF missing: %s", joined)
	}
	if !strings.Contains(joined, "-c:a copy") {
		t.Errorf("audio must be copied: %s", joined)
	}
}

func TestBurnSubtitlesStagesCopy(t *testing.T) {
	runner := &fakeRunner{}
	e := testEncoder(runner)

	workDir := t.TempDir()
	srt := filepath.Join(t.TempDir(), "orig.srt")
	if err := os.WriteFile(srt, []byte("1\n00:00:00,000 --> 00:00:01,000\nhi\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := e.BurnSubtitles(context.Background(), SubtitleJob{
		VideoPath:    "/tmp/in.mp4",
		SubtitlePath: srt,
		OutputPath:   filepath.Join(workDir, "out.mp4"),
		WorkDir:      workDir,
		Profile:      config.ProfileFor("balanced"),
	})
	if err != nil {
		t.Fatalf("burn: %v", err)
	}

	staged := filepath.Join(workDir, "subtitles.srt")
	if _, err := os.Stat(staged); err != nil {
		t.Errorf("subtitle not staged into work dir: %v", err)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("calls = %d", len(runner.calls))
	}
	if !strings.Contains(strings.Join(runner.calls[0], " "), staged) {
		t.Errorf("encoder must read the staged copy: %v", runner.calls[0])
	}
}

func TestProbeDimensions(t *testing.T) {
	runner := &fakeRunner{stdouts: []string{"1920x1080\n"}}
	e := testEncoder(runner)

	w, h, err := e.ProbeDimensions(context.Background(), "/tmp/v.mp4")
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if w != 1920 || h != 1080 {
		t.Errorf("dims = %dx%d", w, h)
	}
}

// deadlineRunner records whether the context handed to the subprocess
// carries a deadline.
type deadlineRunner struct {
	deadline time.Time
	hasDead  bool
}

func (d *deadlineRunner) Run(ctx context.Context, _ string, _ []string) (RunResult, error) {
	d.deadline, d.hasDead = ctx.Deadline()
	return RunResult{Stdout: []byte("1920x1080\n")}, nil
}

func TestProbeDimensionsAppliesTimeout(t *testing.T) {
	runner := &deadlineRunner{}
	e := testEncoder(runner)

	if _, _, err := e.ProbeDimensions(context.Background(), "/tmp/v.mp4"); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if !runner.hasDead {
		t.Fatal("probe ran without a deadline")
	}
	if remaining := time.Until(runner.deadline); remaining > e.ProbeTimeout {
		t.Errorf("deadline %v exceeds probe timeout %v", remaining, e.ProbeTimeout)
	}
}

func TestProbeDimensionsBadOutput(t *testing.T) {
	runner := &fakeRunner{stdouts: []string{"garbage"}}
	e := testEncoder(runner)
	if _, _, err := e.ProbeDimensions(context.Background(), "/tmp/v.mp4"); err == nil {
		t.Fatal("expected error")
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.bin")
	dst := filepath.Join(dir, "nested", "b.bin")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("copy: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "payload" {
		t.Errorf("copied contents = %q", got)
	}
}
