package cli

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"clipforge/internal/api"
)

var serveAddr string

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a read-only HTTP view of jobs, history, and telemetry",
		RunE:  runServe,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8750", "Listen address")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	server := api.NewServer(api.ServerConfig{
		Addr:      serveAddr,
		DataDir:   dataDir,
		Logger:    logger,
		StartTime: time.Now(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
