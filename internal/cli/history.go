package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"clipforge/internal/paths"
	"clipforge/internal/persist"
)

var historyLimit int

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <project-id>",
		Short: "List past render outcomes, newest first",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistory,
	}
	cmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum entries to show")
	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	pp, err := paths.Resolve(dataDir, args[0])
	if err != nil {
		return err
	}

	entries, err := persist.ReadHistory(pp.HistoryFile)
	if err != nil {
		return err
	}
	if historyLimit > 0 && len(entries) > historyLimit {
		entries = entries[:historyLimit]
	}

	if outputJSON {
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	}

	if len(entries) == 0 {
		fmt.Fprintln(os.Stdout, "no renders recorded")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		output := ""
		if e.OutputPath != "" {
			output = filepath.Base(e.OutputPath)
		}
		detail := e.Error
		if detail == "" && e.SubtitlesBurned {
			detail = "subtitles burned"
		}
		rows = append(rows, []string{
			shortID(e.RunID),
			string(e.Status),
			e.Quality,
			output,
			e.FinishedAt.Local().Format(time.DateTime),
			detail,
		})
	}
	fmt.Fprintln(os.Stdout, renderTable(
		[]string{"RUN", "STATUS", "QUALITY", "OUTPUT", "FINISHED", "DETAIL"},
		rows,
		nil,
	))
	return nil
}

// shortID trims a uuid to its first group for table display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
