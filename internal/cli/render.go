package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"clipforge/internal/config"
	"clipforge/internal/logx"
	"clipforge/internal/paths"
	"clipforge/internal/pipeline"
	"clipforge/internal/retry"
	"clipforge/internal/tui"
)

// Environment overrides for the retry policy. Flags win over both.
const (
	envMaxRetries   = "CLIPFORGE_MAX_RETRIES"
	envRetryDelayMs = "CLIPFORGE_RETRY_DELAY_MS"
)

var (
	renderOutputName    string
	renderQuality       string
	renderOrientation   string
	renderBurnSubtitles bool
	renderMaxRetries    int
	renderRetryDelayMs  int
	renderNoProgress    bool
)

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <project-id>",
		Short: "Render a project timeline into a delivery file",
		Args:  cobra.ExactArgs(1),
		RunE:  runRender,
	}

	cmd.Flags().StringVar(&renderOutputName, "output-name", "", "Final output filename (default final.mp4)")
	cmd.Flags().StringVar(&renderQuality, "quality", config.QualityBalanced, "Quality tier: draft, balanced, or quality")
	cmd.Flags().StringVar(&renderOrientation, "orientation", "landscape", "Template orientation: landscape, portrait, or square")
	cmd.Flags().BoolVar(&renderBurnSubtitles, "burn-subtitles", false, "Burn the project subtitle file into the output")
	cmd.Flags().IntVar(&renderMaxRetries, "max-retries", 0, "Retries per encoder invocation after the first attempt")
	cmd.Flags().IntVar(&renderRetryDelayMs, "retry-delay-ms", 0, "Base delay between retries in milliseconds")
	cmd.Flags().BoolVar(&renderNoProgress, "no-progress", false, "Disable interactive progress output")

	return cmd
}

func runRender(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	projectID := args[0]

	pp, err := paths.Resolve(dataDir, projectID)
	if err != nil {
		return err
	}
	cfg, err := config.Load(pp.ConfigFile)
	if err != nil {
		return err
	}

	policy := resolveRetryPolicy(cfg,
		renderMaxRetries, cmd.Flags().Changed("max-retries"),
		renderRetryDelayMs, cmd.Flags().Changed("retry-delay-ms"),
		os.Getenv)

	runID := uuid.NewString()
	logger, closer, err := logx.New(pp.LogsDir, runID)
	if err != nil {
		return err
	}
	defer closer.Close()

	p, err := pipeline.New(pp, cfg, nil, logger)
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		RunID:         runID,
		OutputName:    renderOutputName,
		Quality:       renderQuality,
		Orientation:   renderOrientation,
		BurnSubtitles: renderBurnSubtitles,
		MaxRetries:    policy.MaxRetries,
		RetryDelay:    policy.Delay,
	}

	var res pipeline.Result
	var runErr error

	switch tui.DetectMode(os.Stdout, renderNoProgress, outputJSON) {
	case tui.ModeTUI:
		model := tui.NewStageModel("rendering "+projectID, pipeline.StageNames())
		tuiErr := tui.RunWithWork(os.Stdout, model, func(send func(tea.Msg)) {
			p.Reporter = tui.NewStageReporter(send)
			res, runErr = p.Run(ctx, opts)
		})
		if runErr == nil {
			runErr = tuiErr
		}
	case tui.ModePlain:
		sw := tui.NewStatusWriter(os.Stdout)
		p.Reporter = statusReporter{sw}
		res, runErr = p.Run(ctx, opts)
		sw.Stop()
	default:
		res, runErr = p.Run(ctx, opts)
	}

	if outputJSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(data))
	} else {
		printRenderResult(os.Stdout, res)
	}
	return runErr
}

// resolveRetryPolicy layers the retry settings: config file, then
// environment, then explicitly set flags.
func resolveRetryPolicy(cfg config.Config, flagMax int, maxSet bool, flagDelay int, delaySet bool, getenv func(string) string) retry.Policy {
	maxRetries := cfg.Retry.MaxRetries
	delayMs := cfg.Retry.RetryDelayMs

	if v := getenv(envMaxRetries); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			maxRetries = n
		}
	}
	if v := getenv(envRetryDelayMs); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			delayMs = n
		}
	}
	if maxSet {
		maxRetries = flagMax
	}
	if delaySet {
		delayMs = flagDelay
	}

	return retry.Policy{
		MaxRetries: maxRetries,
		Delay:      time.Duration(delayMs) * time.Millisecond,
	}
}

// statusReporter routes stage progress through the plain-mode spinner.
type statusReporter struct {
	sw *tui.StatusWriter
}

func (r statusReporter) StageStart(stage string) {
	r.sw.Update("stage " + stage)
}

func (r statusReporter) StageComplete(string, error) {}

func (r statusReporter) StageSkipped(string) {}

func (r statusReporter) RetryScheduled(ev retry.Event) {
	r.sw.Update(fmt.Sprintf("stage %s retry %d/%d", ev.Label, ev.Attempt, ev.TotalAttempts))
}

func printRenderResult(w io.Writer, res pipeline.Result) {
	fmt.Fprintf(w, "run:       %s\n", res.RunID)
	fmt.Fprintf(w, "quality:   %s\n", res.Quality)
	if res.OutputPath != "" {
		fmt.Fprintf(w, "output:    %s\n", res.OutputPath)
	}
	fmt.Fprintf(w, "clips:     %d source, %d overlay (%d applied, %d ignored)\n",
		res.SourceClipCount, res.OverlayClipCount, res.OverlayAppliedCount, res.IgnoredClipCount)
	if res.SubtitlesBurned {
		fmt.Fprintln(w, "subtitles: burned in")
	}

	if len(res.StageDurationsMs) > 0 {
		fmt.Fprintln(w, "stages:")
		stages := make([]string, 0, len(res.StageDurationsMs))
		for stage := range res.StageDurationsMs {
			stages = append(stages, stage)
		}
		sort.Strings(stages)
		for _, stage := range stages {
			fmt.Fprintf(w, "  %-18s %dms\n", stage, res.StageDurationsMs[stage])
		}
	}

	for _, warning := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
}
