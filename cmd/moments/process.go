package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ai-teammate/mytube/moments/internal/config"
	"github.com/ai-teammate/mytube/moments/internal/ingest"
)

var processFlags struct {
	contentID string
	ownerID   string
	rawKey    string
	filename  string
	mimeType  string
	ephemeral bool
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Ingest a single raw upload and exit",
	Long: `process runs one ingest job: it fetches the raw object, normalizes it,
publishes the video and thumbnail and records the moment.

Flags default to the CONTENT_ID, OWNER_ID and RAW_OBJECT_PATH environment
variables so the command can run as a one-shot job.`,
	Args: cobra.NoArgs,
	RunE: runProcess,
}

func init() {
	f := processCmd.Flags()
	f.StringVar(&processFlags.contentID, "content-id", os.Getenv("CONTENT_ID"), "moment ID; derived from the raw key when empty")
	f.StringVar(&processFlags.ownerID, "owner-id", os.Getenv("OWNER_ID"), "uploading user")
	f.StringVar(&processFlags.rawKey, "raw-key", os.Getenv("RAW_OBJECT_PATH"), "object key of the raw upload")
	f.StringVar(&processFlags.filename, "filename", "", "original filename")
	f.StringVar(&processFlags.mimeType, "mime-type", "", "declared MIME type; derived from the filename when empty")
	f.BoolVar(&processFlags.ephemeral, "ephemeral", false, "keep moment records in memory instead of the database")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	p, err := newPipeline("moments.process", cfg.Pipeline, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	svc, err := newServices(ctx, p, cfg.Storage, processFlags.ephemeral)
	if err != nil {
		return err
	}
	defer svc.Close()

	out, err := svc.ingest.Ingest(ctx, ingest.Job{
		ContentID: processFlags.contentID,
		OwnerID:   processFlags.ownerID,
		RawKey:    processFlags.rawKey,
		Filename:  processFlags.filename,
		MIMEType:  processFlags.mimeType,
	})
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(out); encErr != nil {
		p.log.Warn("could not write outcome", "error", encErr)
	}
	return err
}
