package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ai-teammate/mytube/moments/internal/config"
	"github.com/ai-teammate/mytube/moments/internal/handler"
	"github.com/ai-teammate/mytube/moments/internal/queue"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume ingest jobs from the queue",
	Long: `worker processes moment:process tasks until interrupted. An ops
listener on OPS_ADDR serves /health and /metrics.`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	p, err := newPipeline("moments.worker", cfg.Pipeline, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	if err := p.runner.CheckTools(ctx); err != nil {
		return fmt.Errorf("tool check: %w", err)
	}
	svc, err := newServices(ctx, p, cfg.Storage, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handler.NewHealthHandler(svc.db, p.runner, p.log))
	mux.Handle("/metrics", promhttp.Handler())
	// Catch-all: return 404 for any path not matched above.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	ops := &http.Server{Addr: cfg.Worker.OpsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		p.log.Info("ops listener started", "addr", cfg.Worker.OpsAddr)
		if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.log.Error("ops listener stopped", "error", err)
		}
	}()

	srv := asynq.NewServer(cfg.Queue.RedisOpt(), asynq.Config{
		Concurrency:     cfg.Worker.Concurrency,
		Queues:          map[string]int{queue.QueueName: 1},
		ShutdownTimeout: cfg.Worker.ShutdownTimeout,
	})
	if err := srv.Start(queue.NewHandler(svc.ingest, p.log).Mux()); err != nil {
		_ = ops.Close()
		return fmt.Errorf("start worker: %w", err)
	}
	p.log.Info("worker started", "queue", queue.QueueName, "concurrency", cfg.Worker.Concurrency)

	<-ctx.Done()
	p.log.Info("shutting down")
	srv.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return ops.Shutdown(shutdownCtx)
}
