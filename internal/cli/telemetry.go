package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"clipforge/internal/paths"
	"clipforge/internal/telemetry"
)

// Telemetry listing bounds, matching the HTTP API.
const (
	telemetryDefaultLimit = 80
	telemetryMaxLimit     = 400
)

var telemetryLimit int

func newTelemetryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "telemetry <project-id>",
		Short: "Show recent render telemetry",
		Args:  cobra.ExactArgs(1),
		RunE:  runTelemetry,
	}
	cmd.Flags().IntVar(&telemetryLimit, "limit", telemetryDefaultLimit, "Maximum runs to show")
	return cmd
}

func runTelemetry(cmd *cobra.Command, args []string) error {
	pp, err := paths.Resolve(dataDir, args[0])
	if err != nil {
		return err
	}

	limit := telemetryLimit
	if limit < 1 {
		limit = 1
	}
	if limit > telemetryMaxLimit {
		limit = telemetryMaxLimit
	}

	exists, err := paths.FileExists(pp.TelemetryDB)
	if err != nil {
		return err
	}
	if !exists {
		fmt.Fprintln(os.Stdout, "no telemetry recorded")
		return nil
	}

	sink, err := telemetry.Open(pp.TelemetryDB)
	if err != nil {
		return err
	}
	defer sink.Close()

	runs, err := sink.RecentRuns(limit)
	if err != nil {
		return err
	}

	if outputJSON {
		payload := struct {
			Runs []telemetry.Run `json:"runs"`
		}{Runs: runs}
		if payload.Runs == nil {
			payload.Runs = []telemetry.Run{}
		}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	}

	if len(runs) == 0 {
		fmt.Fprintln(os.Stdout, "no telemetry recorded")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.RunID),
			run.Status,
			run.Quality,
			run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String(),
			run.Error,
		})
	}
	fmt.Fprintln(os.Stdout, renderTable(
		[]string{"RUN", "STATUS", "QUALITY", "DURATION", "ERROR"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))

	// Stage breakdown for the most recent run.
	last := runs[0]
	durations, err := sink.StageDurations(last.RunID)
	if err != nil {
		return err
	}
	if len(durations) > 0 {
		fmt.Fprintf(os.Stdout, "\nstages for run %s:\n", shortID(last.RunID))
		for _, d := range durations {
			fmt.Fprintf(os.Stdout, "  %-18s %dms\n", d.Stage, d.DurationMs)
		}
	}

	events, err := sink.RetryEvents(last.RunID)
	if err != nil {
		return err
	}
	for _, ev := range events {
		fmt.Fprintf(os.Stdout, "retry %s attempt %d: %s\n", ev.Stage, ev.Attempt, ev.Error)
	}
	return nil
}
