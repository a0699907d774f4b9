package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/ai-teammate/mytube/moments/internal/config"
	"github.com/ai-teammate/mytube/moments/internal/handler"
	"github.com/ai-teammate/mytube/moments/internal/logging"
	"github.com/ai-teammate/mytube/moments/internal/queue"
)

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Turn storage finalize notifications into ingest jobs",
	Long: `trigger listens on PORT (default 8080) for object finalize
notifications and enqueues one ingest job per uploaded raw object.
Objects outside RAW_BUCKET are ignored when it is set.`,
	Args: cobra.NoArgs,
	RunE: runTrigger,
}

func init() {
	rootCmd.AddCommand(triggerCmd)
}

func runTrigger(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	log := logging.New("moments.trigger")

	qcfg, err := config.QueueFromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	client := asynq.NewClient(qcfg.RedisOpt())
	defer client.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/", handler.NewTriggerHandler(queue.NewProducer(client, qcfg.MaxRetry), os.Getenv("RAW_BUCKET"), log))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("trigger listening", "port", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
