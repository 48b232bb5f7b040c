package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"clipforge/internal/paths"
	"clipforge/internal/persist"
)

func newJobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "job <project-id>",
		Short: "Show the current render job document",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
}

func runJob(cmd *cobra.Command, args []string) error {
	pp, err := paths.Resolve(dataDir, args[0])
	if err != nil {
		return err
	}

	doc, err := persist.ReadJob(pp.JobFile)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("no render job recorded for project %s", args[0])
	}
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(data))
	return nil
}
