// Command moments ingests uploaded moment videos: it normalizes them into
// the canonical vertical MP4, extracts a thumbnail and publishes both.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "moments",
	Short: "Moment video ingestion and normalization pipeline",
	Long: `moments turns raw short-form uploads into published moments.

Run "moments worker" to consume ingest jobs from the queue, or
"moments process" to run a single job and exit.`,
	SilenceUsage: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
