package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ai-teammate/mytube/moments/internal/config"
	"github.com/ai-teammate/mytube/moments/internal/database"
	"github.com/ai-teammate/mytube/moments/internal/ingest"
	"github.com/ai-teammate/mytube/moments/internal/logging"
	"github.com/ai-teammate/mytube/moments/internal/metrics"
	"github.com/ai-teammate/mytube/moments/internal/moment"
	"github.com/ai-teammate/mytube/moments/internal/policy"
	"github.com/ai-teammate/mytube/moments/internal/processor"
	"github.com/ai-teammate/mytube/moments/internal/storage"
	"github.com/ai-teammate/mytube/moments/internal/transcoder"
)

// pipeline holds the processing components shared by the subcommands.
type pipeline struct {
	cfg     config.Pipeline
	pol     policy.Policy
	log     hclog.Logger
	metrics *metrics.Metrics
	runner  *transcoder.Runner
	proc    *processor.Processor
}

// newPipeline resolves the policy and builds the processor. Metrics are
// registered with reg.
func newPipeline(name string, cfg config.Pipeline, reg prometheus.Registerer) (*pipeline, error) {
	log := logging.New(name)

	pol, err := policy.Load(cfg.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	m, err := metrics.New(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	runner := transcoder.NewRunner(transcoder.Config{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		Timeout:     pol.Processing.Timeout,
		TempDir:     cfg.TempDir,
		Logger:      log,
	})
	proc, err := processor.New(runner, pol, log, m)
	if err != nil {
		return nil, err
	}
	log.Debug("pipeline ready", "mode", pol.Processing.Mode, "target", pol.Processing.TargetResolution)
	return &pipeline{cfg: cfg, pol: pol, log: log, metrics: m, runner: runner, proc: proc}, nil
}

// services is everything an ingest run needs beyond the processor.
type services struct {
	ingest *ingest.Service
	// db is nil when moments are kept in memory.
	db      *sql.DB
	closers []func() error
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// newServices connects storage and the moment repository. With ephemeral
// set, moments live in process memory and no database is opened.
func newServices(ctx context.Context, p *pipeline, cfg storage.Config, ephemeral bool) (*services, error) {
	s := &services{}

	client, err := storage.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	s.closers = append(s.closers, client.Close)

	var repo moment.Repository
	if ephemeral {
		repo = moment.NewMemoryStore()
	} else {
		db, err := database.Open(ctx)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("db open: %w", err)
		}
		s.db = db
		s.closers = append(s.closers, db.Close)
		repo = moment.NewPostgresRepository(db)
	}

	store := storage.NewStore(client, cfg.Bucket, storage.BaseURL(cfg))
	fetcher := storage.NewFetcher(client, cfg.RawBucket, p.pol.Validation.MaxFileSize)
	s.ingest = ingest.New(fetcher, p.proc, store, repo, p.metrics, p.log)
	return s, nil
}
