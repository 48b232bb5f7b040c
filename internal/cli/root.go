// Package cli wires the clipforge commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	dataDir    string
	outputJSON bool
)

// Execute runs the root cobra command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clipforge",
		Short: "Timeline render pipeline CLI",
	}

	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Path to the data directory holding project folders")
	cmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output machine-readable JSON")

	cmd.AddCommand(newRenderCmd())
	cmd.AddCommand(newJobCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newTelemetryCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}
