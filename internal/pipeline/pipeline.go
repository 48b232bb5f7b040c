// Package pipeline coordinates a full render: timeline classification,
// segment encoding, concatenation, template pre-rendering, overlay
// compositing, subtitle burn-in, and durable job/history/telemetry records.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"clipforge/internal/config"
	"clipforge/internal/encoder"
	"clipforge/internal/logx"
	"clipforge/internal/paths"
	"clipforge/internal/persist"
	"clipforge/internal/retry"
	"clipforge/internal/stagetrack"
	"clipforge/internal/telemetry"
	"clipforge/internal/templates"
	"clipforge/internal/timeline"
)

// Stage names, in execution order. template-render is skipped when the
// timeline carries no template clips.
const (
	StageSetup     = "render-setup"
	StageSegments  = "segment-render"
	StageConcat    = "segment-concat"
	StageTemplates = "template-render"
	StageComposite = "overlay-composite"
	StageFinalize  = "subtitle-finalize"
)

// Fallback frame size when the stitched video cannot be probed.
const (
	defaultWidth  = 1920
	defaultHeight = 1080
)

// Options controls one render invocation.
type Options struct {
	RunID         string // generated when empty
	OutputName    string
	Quality       string
	Orientation   string
	BurnSubtitles bool
	MaxRetries    int
	RetryDelay    time.Duration
}

// StageNames lists the pipeline stages in execution order.
func StageNames() []string {
	return []string{StageSetup, StageSegments, StageConcat, StageTemplates, StageComposite, StageFinalize}
}

// Result is the structured outcome of a render. On failure it still carries
// whatever was collected before the error.
type Result struct {
	RunID               string              `json:"runId"`
	OutputPath          string              `json:"outputPath,omitempty"`
	Quality             string              `json:"quality"`
	SubtitlesBurned     bool                `json:"subtitlesBurned"`
	SourceClipCount     int                 `json:"sourceClipCount"`
	OverlayClipCount    int                 `json:"overlayClipCount"`
	OverlayAppliedCount int                 `json:"overlayAppliedCount"`
	IgnoredClipCount    int                 `json:"ignoredClipCount"`
	Warnings            []string            `json:"warnings,omitempty"`
	Retries             persist.RetryLedger `json:"retries"`
	StageDurationsMs    map[string]int64    `json:"stageDurationsMs"`
	TelemetryRef        string              `json:"telemetryRef"`
	HistoryRef          string              `json:"historyRef"`
	StartedAt           time.Time           `json:"startedAt"`
	FinishedAt          time.Time           `json:"finishedAt"`
}

// ProgressReporter receives notifications as the render moves through its
// stages. Implementations must be safe for use from a single goroutine.
type ProgressReporter interface {
	StageStart(stage string)
	StageComplete(stage string, err error)
	StageSkipped(stage string)
	RetryScheduled(ev retry.Event)
}

// Pipeline executes renders for one project.
type Pipeline struct {
	Paths    paths.ProjectPaths
	Config   config.Config
	Encoder  *encoder.Encoder
	Renderer *templates.Renderer
	Logger   *log.Logger
	Reporter ProgressReporter

	now      func() time.Time
	newRunID func() string
}

// New binds a pipeline to a project, resolving the encoder binaries.
func New(pp paths.ProjectPaths, cfg config.Config, runner encoder.Runner, logger *log.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = logx.Discard()
	}
	if runner == nil {
		runner = encoder.CmdRunner{}
	}
	enc, err := encoder.New(cfg, runner, logger)
	if err != nil {
		return nil, err
	}
	renderer := &templates.Renderer{
		Command: cfg.Renderer.Command,
		Runner:  runner,
		Logger:  logger,
		Timeout: cfg.EncodeTimeout(),
	}
	return &Pipeline{
		Paths:    pp,
		Config:   cfg,
		Encoder:  enc,
		Renderer: renderer,
		Logger:   logger,
		now:      time.Now,
		newRunID: uuid.NewString,
	}, nil
}

// Run executes the full render. The returned Result is valid on both
// success and failure; terminal job, history, and telemetry records are
// written before either returns.
func (p *Pipeline) Run(ctx context.Context, opts Options) (Result, error) {
	now := p.now
	if now == nil {
		now = time.Now
	}
	newRunID := p.newRunID
	if newRunID == nil {
		newRunID = uuid.NewString
	}

	runID := opts.RunID
	if runID == "" {
		runID = newRunID()
	}

	profile := config.ProfileFor(opts.Quality)
	res := Result{
		RunID:        runID,
		Quality:      profile.Name,
		Retries:      persist.RetryLedger{Attempts: map[string]int{}},
		TelemetryRef: p.Paths.TelemetryDB,
		HistoryRef:   p.Paths.HistoryFile,
		StartedAt:    now().UTC(),
	}

	tracker := stagetrack.New()
	policy := retry.Policy{MaxRetries: opts.MaxRetries, Delay: opts.RetryDelay}

	runErr := p.execute(ctx, opts, profile, policy, tracker, &res)

	res.StageDurationsMs = tracker.Snapshot()
	res.FinishedAt = now().UTC()
	p.persistOutcome(res, runErr)

	if runErr != nil {
		return res, runErr
	}
	return res, nil
}

// execute runs the stage sequence, filling res as it goes.
func (p *Pipeline) execute(ctx context.Context, opts Options, profile config.Profile, policy retry.Policy, tracker *stagetrack.Tracker, res *Result) error {
	workDir := p.Paths.WorkDir(res.RunID)

	// render-setup: load and classify the timeline, claim the job document.
	// Failures here are configuration errors and are never retried.
	model, err := stagetrack.RunResult(tracker, StageSetup, func() (timeline.Model, error) {
		p.stageStart(StageSetup)
		m, err := p.setup(opts, res)
		p.stageComplete(StageSetup, err)
		return m, err
	})
	if err != nil {
		return err
	}

	// segment-render: one encoder pass per source clip, ascending startUs.
	// Output order determines concat order.
	segmentPaths, err := stagetrack.RunResult(tracker, StageSegments, func() ([]string, error) {
		p.stageStart(StageSegments)
		segs, err := p.renderSegments(ctx, model, profile, policy, workDir, res)
		p.stageComplete(StageSegments, err)
		return segs, err
	})
	if err != nil {
		return err
	}

	// segment-concat: stream copy with re-encode fallback.
	stitched := filepath.Join(workDir, "stitched.mp4")
	err = tracker.Run(StageConcat, func() error {
		p.stageStart(StageConcat)
		err := p.concat(ctx, segmentPaths, stitched, profile, policy, workDir, res)
		p.stageComplete(StageConcat, err)
		return err
	})
	if err != nil {
		return err
	}

	// template-render: pre-render template overlays, best-effort per clip.
	templatePaths := map[string]string{}
	if clips := model.TemplateClips(); len(clips) > 0 {
		rendered, err := stagetrack.RunResult(tracker, StageTemplates, func() (templates.Result, error) {
			p.stageStart(StageTemplates)
			r := p.Renderer.Prerender(ctx, clips, templates.Options{
				WorkDir:     workDir,
				Orientation: opts.Orientation,
			})
			p.stageComplete(StageTemplates, nil)
			return r, nil
		})
		if err != nil {
			return err
		}
		templatePaths = rendered.Paths
		res.Warnings = append(res.Warnings, rendered.Warnings...)
	} else {
		p.stageSkipped(StageTemplates)
	}

	// overlay-composite: one filter-graph pass, copy fallback on failure.
	composited := filepath.Join(workDir, "composited.mp4")
	err = tracker.Run(StageComposite, func() error {
		p.stageStart(StageComposite)
		err := p.composite(ctx, model, templatePaths, stitched, composited, profile, policy, res)
		p.stageComplete(StageComposite, err)
		return err
	})
	if err != nil {
		return err
	}

	// subtitle-finalize: always produces the final output file.
	finalPath := p.Paths.OutputFile(opts.OutputName)
	err = tracker.Run(StageFinalize, func() error {
		p.stageStart(StageFinalize)
		err := p.finalize(ctx, opts, composited, finalPath, profile, policy, workDir, res)
		p.stageComplete(StageFinalize, err)
		return err
	})
	if err != nil {
		return err
	}
	res.OutputPath = finalPath

	if err := os.RemoveAll(workDir); err != nil {
		p.logf("keep work dir %s: %v", workDir, err)
	}
	return nil
}

func (p *Pipeline) setup(opts Options, res *Result) (timeline.Model, error) {
	if err := p.Paths.EnsureRunDirs(res.RunID); err != nil {
		return timeline.Model{}, err
	}

	tl, err := timeline.Load(p.Paths.TimelineFile)
	if err != nil {
		return timeline.Model{}, err
	}

	model, err := timeline.Classify(tl, timeline.NewResolver(p.Paths))
	res.Warnings = append(res.Warnings, model.Warnings...)
	res.IgnoredClipCount = model.IgnoredCount
	if err != nil {
		return timeline.Model{}, err
	}
	res.SourceClipCount = len(model.SourceClips)
	res.OverlayClipCount = len(model.OverlayClips)

	persist.BestEffort(p.Logger, "job document", func() error {
		return persist.WriteJob(p.Paths.JobFile, persist.JobDocument{
			ProjectID: p.Paths.ProjectID,
			RunID:     res.RunID,
			Status:    persist.StatusInProgress,
			Quality:   res.Quality,
			StartedAt: res.StartedAt,
		})
	})
	return model, nil
}

func (p *Pipeline) renderSegments(ctx context.Context, model timeline.Model, profile config.Profile, policy retry.Policy, workDir string, res *Result) ([]string, error) {
	segmentPaths := make([]string, 0, len(model.SourceClips))
	for i, clip := range model.SourceClips {
		out := filepath.Join(workDir, fmt.Sprintf("segment-%03d.mp4", i))
		job := encoder.SegmentJob{
			SourcePath: clip.SourcePath,
			StartUs:    clip.SourceStartUs,
			EndUs:      clip.SourceEndUs,
			OutputPath: out,
			Profile:    profile,
		}
		_, attempts, err := retry.Do(ctx, StageSegments, policy, func(int, int) (struct{}, error) {
			return struct{}{}, p.Encoder.RenderSegment(ctx, job)
		}, p.onRetry(res))
		p.recordAttempts(res, StageSegments, attempts)
		if err != nil {
			return nil, fmt.Errorf("segment %s: %w", clip.ID, err)
		}
		segmentPaths = append(segmentPaths, out)
	}
	return segmentPaths, nil
}

func (p *Pipeline) concat(ctx context.Context, segmentPaths []string, stitched string, profile config.Profile, policy retry.Policy, workDir string, res *Result) error {
	listPath := filepath.Join(workDir, "concat.txt")
	if err := encoder.WriteConcatList(listPath, segmentPaths); err != nil {
		return err
	}

	method, attempts, err := retry.Do(ctx, StageConcat, policy, func(int, int) (string, error) {
		return p.Encoder.ConcatSegments(ctx, listPath, stitched, profile)
	}, p.onRetry(res))
	p.recordAttempts(res, StageConcat, attempts)
	if err != nil {
		return err
	}
	if method == encoder.ConcatReencode {
		res.Warnings = append(res.Warnings, "concat stream copy failed; segments re-encoded")
	}
	return nil
}

func (p *Pipeline) composite(ctx context.Context, model timeline.Model, templatePaths map[string]string, stitched, composited string, profile config.Profile, policy retry.Policy, res *Result) error {
	overlays := p.overlayInputs(model, templatePaths, res)
	if len(overlays) == 0 {
		return encoder.CopyFile(stitched, composited)
	}

	width, height := defaultWidth, defaultHeight
	if w, h, err := p.Encoder.ProbeDimensions(ctx, stitched); err == nil {
		width, height = w, h
	} else {
		res.Warnings = append(res.Warnings, fmt.Sprintf("probe stitched video failed, assuming %dx%d: %v", width, height, err))
	}

	job := encoder.CompositeJob{
		BasePath:   stitched,
		OutputPath: composited,
		Profile:    profile,
		Width:      width,
		Height:     height,
		Overlays:   overlays,
	}
	_, attempts, err := retry.Do(ctx, StageComposite, policy, func(int, int) (struct{}, error) {
		return struct{}{}, p.Encoder.Composite(ctx, job)
	}, p.onRetry(res))
	p.recordAttempts(res, StageComposite, attempts)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("overlay compositing failed, using base video: %v", err))
		return encoder.CopyFile(stitched, composited)
	}
	res.OverlayAppliedCount = len(overlays)
	return nil
}

// overlayInputs resolves each overlay clip to a composite input, skipping
// with a warning the ones that have no usable media.
func (p *Pipeline) overlayInputs(model timeline.Model, templatePaths map[string]string, res *Result) []encoder.OverlayInput {
	var inputs []encoder.OverlayInput
	for _, clip := range model.OverlayClips {
		var path string
		var kind encoder.OverlayKind
		switch {
		case clip.ClipType == timeline.ClipTypeTemplate:
			rendered, ok := templatePaths[clip.ID]
			if !ok {
				res.Warnings = append(res.Warnings, fmt.Sprintf("skipping template overlay %s: no pre-rendered media", clip.ID))
				continue
			}
			path = rendered
			kind = encoder.OverlayTemplate
		case clip.MetaKind() == "image":
			path = clip.SourcePath
			kind = encoder.OverlayImage
		default:
			path = clip.SourcePath
			kind = encoder.OverlayVideo
		}
		inputs = append(inputs, encoder.OverlayInput{
			Path:    path,
			StartUs: clip.StartUs,
			EndUs:   clip.EndUs,
			Kind:    kind,
		})
	}
	return inputs
}

func (p *Pipeline) finalize(ctx context.Context, opts Options, composited, finalPath string, profile config.Profile, policy retry.Policy, workDir string, res *Result) error {
	if !opts.BurnSubtitles {
		return encoder.CopyFile(composited, finalPath)
	}

	exists, err := paths.FileExists(p.Paths.SubtitlesFile)
	if err != nil || !exists {
		res.Warnings = append(res.Warnings, "subtitle burn requested but no subtitle file found")
		return encoder.CopyFile(composited, finalPath)
	}

	job := encoder.SubtitleJob{
		VideoPath:    composited,
		SubtitlePath: p.Paths.SubtitlesFile,
		OutputPath:   finalPath,
		WorkDir:      workDir,
		Profile:      profile,
	}
	_, attempts, err := retry.Do(ctx, StageFinalize, policy, func(int, int) (struct{}, error) {
		return struct{}{}, p.Encoder.BurnSubtitles(ctx, job)
	}, p.onRetry(res))
	p.recordAttempts(res, StageFinalize, attempts)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("subtitle burn failed, output has no subtitles: %v", err))
		return encoder.CopyFile(composited, finalPath)
	}
	res.SubtitlesBurned = true
	return nil
}

// persistOutcome writes the terminal job, history, and telemetry records.
// All writes are best-effort so they can never mask the render outcome.
func (p *Pipeline) persistOutcome(res Result, runErr error) {
	status := persist.StatusDone
	errText := ""
	if runErr != nil {
		status = persist.StatusFailed
		errText = runErr.Error()
	}
	finished := res.FinishedAt

	persist.BestEffort(p.Logger, "job document", func() error {
		return persist.WriteJob(p.Paths.JobFile, persist.JobDocument{
			ProjectID:           p.Paths.ProjectID,
			RunID:               res.RunID,
			Status:              status,
			Quality:             res.Quality,
			OutputPath:          res.OutputPath,
			SubtitlesBurned:     res.SubtitlesBurned,
			SourceClipCount:     res.SourceClipCount,
			OverlayClipCount:    res.OverlayClipCount,
			OverlayAppliedCount: res.OverlayAppliedCount,
			IgnoredClipCount:    res.IgnoredClipCount,
			Warnings:            res.Warnings,
			Retries:             res.Retries,
			StageDurationsMs:    res.StageDurationsMs,
			TelemetryRef:        res.TelemetryRef,
			HistoryRef:          res.HistoryRef,
			Error:               errText,
			StartedAt:           res.StartedAt,
			FinishedAt:          &finished,
		})
	})

	persist.BestEffort(p.Logger, "history append", func() error {
		return persist.AppendHistory(p.Paths.HistoryFile, persist.HistoryEntry{
			RunID:            res.RunID,
			Status:           status,
			Quality:          res.Quality,
			OutputPath:       res.OutputPath,
			SubtitlesBurned:  res.SubtitlesBurned,
			SourceClipCount:  res.SourceClipCount,
			OverlayClipCount: res.OverlayClipCount,
			StageDurationsMs: res.StageDurationsMs,
			Error:            errText,
			FinishedAt:       res.FinishedAt,
		})
	})

	persist.BestEffort(p.Logger, "telemetry record", func() error {
		sink, err := telemetry.Open(p.Paths.TelemetryDB)
		if err != nil {
			return err
		}
		defer sink.Close()

		events := make([]telemetry.RetryEvent, 0, len(res.Retries.Events))
		for _, ev := range res.Retries.Events {
			events = append(events, telemetry.RetryEvent{
				RunID:   res.RunID,
				Stage:   ev.Label,
				Attempt: ev.Attempt,
				Error:   ev.Error,
				At:      ev.At,
			})
		}
		return sink.RecordRun(telemetry.Run{
			RunID:      res.RunID,
			ProjectID:  p.Paths.ProjectID,
			Status:     string(status),
			Quality:    res.Quality,
			OutputPath: res.OutputPath,
			Error:      errText,
			StartedAt:  res.StartedAt,
			FinishedAt: res.FinishedAt,
		}, res.StageDurationsMs, events)
	})
}

// onRetry returns the retry observer for one stage: it appends the event to
// the result ledger and forwards it to the reporter.
func (p *Pipeline) onRetry(res *Result) func(retry.Event) {
	return func(ev retry.Event) {
		res.Retries.Events = append(res.Retries.Events, ev)
		p.logf("retry %s attempt %d/%d: %s", ev.Label, ev.Attempt, ev.TotalAttempts, ev.Error)
		if p.Reporter != nil {
			p.Reporter.RetryScheduled(ev)
		}
	}
}

// recordAttempts keeps the worst attempt count observed for a stage.
func (p *Pipeline) recordAttempts(res *Result, stage string, attempts int) {
	if attempts > res.Retries.Attempts[stage] {
		res.Retries.Attempts[stage] = attempts
	}
}

func (p *Pipeline) stageStart(stage string) {
	p.logf("stage %s start", stage)
	if p.Reporter != nil {
		p.Reporter.StageStart(stage)
	}
}

func (p *Pipeline) stageSkipped(stage string) {
	p.logf("stage %s skipped", stage)
	if p.Reporter != nil {
		p.Reporter.StageSkipped(stage)
	}
}

func (p *Pipeline) stageComplete(stage string, err error) {
	if err != nil {
		p.logf("stage %s failed: %v", stage, err)
	} else {
		p.logf("stage %s done", stage)
	}
	if p.Reporter != nil {
		p.Reporter.StageComplete(stage, err)
	}
}

func (p *Pipeline) logf(format string, args ...any) {
	if p.Logger != nil {
		p.Logger.Printf(format, args...)
	}
}
