// Package config reads the runtime configuration of the moments binary from
// environment variables. Pipeline policy lives in package policy; database
// settings follow database.DSN.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ai-teammate/mytube/moments/internal/storage"
)

// Config holds the runtime configuration of the worker.
type Config struct {
	Storage  storage.Config
	Queue    Queue
	Worker   Worker
	Pipeline Pipeline
}

// Queue locates the task broker and sets the retry budget of new jobs.
type Queue struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	MaxRetry      int
}

// RedisOpt returns the asynq connection options.
func (q Queue) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: q.RedisAddr, Password: q.RedisPassword, DB: q.RedisDB}
}

// Worker configures the queue consumer and its ops listener.
type Worker struct {
	Concurrency     int
	OpsAddr         string
	ShutdownTimeout time.Duration
}

// Pipeline locates the external tools and the policy file.
type Pipeline struct {
	FFmpegPath  string
	FFprobePath string
	TempDir     string
	PolicyFile  string
	BatchLimit  int
}

const (
	defaultProvider        = storage.ProviderGCS
	defaultRegion          = "us-east-1"
	defaultRedisAddr       = "localhost:6379"
	defaultConcurrency     = 2
	defaultMaxRetry        = 3
	defaultBatchLimit      = 4
	defaultOpsAddr         = ":9090"
	defaultShutdownTimeout = 30 * time.Second
)

// FromEnv reads the full Config and reports every malformed or missing value
// at once.
func FromEnv() (Config, error) {
	var errs []error
	cfg := Config{
		Storage:  storageFromEnv(&errs),
		Queue:    queueFromEnv(&errs),
		Worker:   workerFromEnv(&errs),
		Pipeline: pipelineFromEnv(&errs),
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// QueueFromEnv reads only the broker settings.
func QueueFromEnv() (Queue, error) {
	var errs []error
	q := queueFromEnv(&errs)
	return q, errors.Join(errs...)
}

// PipelineFromEnv reads only the tool and policy settings.
func PipelineFromEnv() (Pipeline, error) {
	var errs []error
	p := pipelineFromEnv(&errs)
	return p, errors.Join(errs...)
}

func storageFromEnv(errs *[]error) storage.Config {
	s := storage.Config{
		Provider:      strings.ToLower(getenv("STORAGE_PROVIDER", defaultProvider)),
		Bucket:        os.Getenv("STORAGE_BUCKET"),
		RawBucket:     os.Getenv("RAW_BUCKET"),
		PublicBaseURL: os.Getenv("PUBLIC_BASE_URL"),
		Endpoint:      os.Getenv("STORAGE_ENDPOINT"),
		AccessKey:     os.Getenv("STORAGE_ACCESS_KEY"),
		SecretKey:     os.Getenv("STORAGE_SECRET_KEY"),
		Region:        getenv("STORAGE_REGION", defaultRegion),
		UseSSL:        parseBool("STORAGE_USE_SSL", false, errs),
		LocalDir:      os.Getenv("STORAGE_LOCAL_DIR"),
	}
	if s.RawBucket == "" {
		s.RawBucket = s.Bucket
	}
	switch s.Provider {
	case storage.ProviderGCS, storage.ProviderS3, storage.ProviderLocal:
	default:
		*errs = append(*errs, fmt.Errorf("STORAGE_PROVIDER: %w: %q", storage.ErrUnknownProvider, s.Provider))
	}
	if s.Bucket == "" {
		*errs = append(*errs, errors.New("required env var STORAGE_BUCKET is not set"))
	}
	if s.Provider == storage.ProviderS3 && s.Endpoint == "" {
		*errs = append(*errs, errors.New("STORAGE_ENDPOINT is required for the s3 provider"))
	}
	if s.Provider == storage.ProviderLocal && s.LocalDir == "" {
		*errs = append(*errs, errors.New("STORAGE_LOCAL_DIR is required for the local provider"))
	}
	return s
}

func queueFromEnv(errs *[]error) Queue {
	q := Queue{
		RedisAddr:     getenv("REDIS_ADDR", defaultRedisAddr),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       parseInt("REDIS_DB", 0, errs),
		MaxRetry:      parseInt("QUEUE_MAX_RETRY", defaultMaxRetry, errs),
	}
	if q.MaxRetry < 0 {
		*errs = append(*errs, fmt.Errorf("QUEUE_MAX_RETRY must not be negative, got %d", q.MaxRetry))
	}
	return q
}

func workerFromEnv(errs *[]error) Worker {
	w := Worker{
		Concurrency:     parseInt("WORKER_CONCURRENCY", defaultConcurrency, errs),
		OpsAddr:         getenv("OPS_ADDR", defaultOpsAddr),
		ShutdownTimeout: parseDuration("SHUTDOWN_TIMEOUT", defaultShutdownTimeout, errs),
	}
	if w.Concurrency <= 0 {
		*errs = append(*errs, fmt.Errorf("WORKER_CONCURRENCY must be positive, got %d", w.Concurrency))
	}
	return w
}

func pipelineFromEnv(errs *[]error) Pipeline {
	return Pipeline{
		FFmpegPath:  os.Getenv("FFMPEG_PATH"),
		FFprobePath: os.Getenv("FFPROBE_PATH"),
		TempDir:     os.Getenv("MOMENTS_TEMP_DIR"),
		PolicyFile:  os.Getenv("MOMENTS_POLICY_FILE"),
		BatchLimit:  parseInt("BATCH_LIMIT", defaultBatchLimit, errs),
	}
}

// getenv returns the value of the environment variable named by key, or
// fallback when the variable is unset or empty.
func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseInt(key string, def int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return def
	}
	return n
}

func parseBool(key string, def bool, errs *[]error) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return def
	}
	return b
}

func parseDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a positive duration", key, v))
		return def
	}
	return d
}
