package main

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/ai-teammate/mytube/moments/internal/config"
	"github.com/ai-teammate/mytube/moments/internal/ingest"
	"github.com/ai-teammate/mytube/moments/internal/queue"
)

var enqueueFlags struct {
	contentID string
	ownerID   string
	filename  string
	mimeType  string
	maxRetry  int
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <raw-key>",
	Short: "Queue a raw upload for ingestion",
	Args:  cobra.ExactArgs(1),
	RunE:  runEnqueue,
}

func init() {
	f := enqueueCmd.Flags()
	f.StringVar(&enqueueFlags.contentID, "content-id", "", "moment ID; derived from the raw key when empty")
	f.StringVar(&enqueueFlags.ownerID, "owner-id", "", "uploading user")
	f.StringVar(&enqueueFlags.filename, "filename", "", "original filename")
	f.StringVar(&enqueueFlags.mimeType, "mime-type", "", "declared MIME type")
	f.IntVar(&enqueueFlags.maxRetry, "max-retry", -1, "retry budget; defaults to QUEUE_MAX_RETRY")
	_ = enqueueCmd.MarkFlagRequired("owner-id")
	rootCmd.AddCommand(enqueueCmd)
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	qcfg, err := config.QueueFromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	client := asynq.NewClient(qcfg.RedisOpt())
	defer client.Close()

	maxRetry := enqueueFlags.maxRetry
	if maxRetry < 0 {
		maxRetry = qcfg.MaxRetry
	}
	info, err := queue.Enqueue(cmd.Context(), client, ingest.Job{
		ContentID: enqueueFlags.contentID,
		OwnerID:   enqueueFlags.ownerID,
		RawKey:    args[0],
		Filename:  enqueueFlags.filename,
		MIMEType:  enqueueFlags.mimeType,
	}, maxRetry)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s on %s\n", info.ID, info.Queue)
	return nil
}
