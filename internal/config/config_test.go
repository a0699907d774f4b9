package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai-teammate/mytube/moments/internal/config"
	"github.com/ai-teammate/mytube/moments/internal/storage"
)

var configVars = []string{
	"STORAGE_PROVIDER", "STORAGE_BUCKET", "RAW_BUCKET", "PUBLIC_BASE_URL", "STORAGE_ENDPOINT",
	"STORAGE_ACCESS_KEY", "STORAGE_SECRET_KEY", "STORAGE_REGION", "STORAGE_USE_SSL", "STORAGE_LOCAL_DIR",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "WORKER_CONCURRENCY", "QUEUE_MAX_RETRY", "BATCH_LIMIT",
	"OPS_ADDR", "SHUTDOWN_TIMEOUT", "FFMPEG_PATH", "FFPROBE_PATH", "MOMENTS_TEMP_DIR", "MOMENTS_POLICY_FILE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configVars {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_BUCKET", "moments-assets")

	cfg, err := config.FromEnv()
	require.NoError(t, err)
	assert.Equal(t, storage.ProviderGCS, cfg.Storage.Provider)
	assert.Equal(t, "moments-assets", cfg.Storage.RawBucket, "raw bucket defaults to the asset bucket")
	assert.Equal(t, "us-east-1", cfg.Storage.Region)
	assert.Equal(t, "localhost:6379", cfg.Queue.RedisAddr)
	assert.Equal(t, 2, cfg.Worker.Concurrency)
	assert.Equal(t, 3, cfg.Queue.MaxRetry)
	assert.Equal(t, ":9090", cfg.Worker.OpsAddr)
	assert.Equal(t, 30*time.Second, cfg.Worker.ShutdownTimeout)
	assert.Equal(t, 4, cfg.Pipeline.BatchLimit)
}

func TestFromEnv_S3(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_PROVIDER", "S3")
	t.Setenv("STORAGE_BUCKET", "assets")
	t.Setenv("RAW_BUCKET", "raw")
	t.Setenv("STORAGE_ENDPOINT", "minio:9000")
	t.Setenv("STORAGE_USE_SSL", "true")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("FFMPEG_PATH", "/opt/ffmpeg")

	cfg, err := config.FromEnv()
	require.NoError(t, err)
	assert.Equal(t, storage.ProviderS3, cfg.Storage.Provider)
	assert.Equal(t, "raw", cfg.Storage.RawBucket)
	assert.True(t, cfg.Storage.UseSSL)
	assert.Equal(t, 8, cfg.Worker.Concurrency)
	assert.Equal(t, "/opt/ffmpeg", cfg.Pipeline.FFmpegPath)

	opt := cfg.Queue.RedisOpt()
	assert.Equal(t, 2, opt.DB)
	assert.Equal(t, "localhost:6379", opt.Addr)
}

func TestFromEnv_ReportsAllProblems(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_PROVIDER", "ftp")
	t.Setenv("WORKER_CONCURRENCY", "many")
	t.Setenv("SHUTDOWN_TIMEOUT", "-1s")

	_, err := config.FromEnv()
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrUnknownProvider)
	for _, want := range []string{"STORAGE_PROVIDER", "STORAGE_BUCKET", "WORKER_CONCURRENCY", "SHUTDOWN_TIMEOUT"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestFromEnv_ProviderRequirements(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_BUCKET", "b")
	t.Setenv("STORAGE_PROVIDER", "local")

	_, err := config.FromEnv()
	assert.ErrorContains(t, err, "STORAGE_LOCAL_DIR")

	t.Setenv("STORAGE_PROVIDER", "s3")
	_, err = config.FromEnv()
	assert.ErrorContains(t, err, "STORAGE_ENDPOINT")
}

func TestQueueFromEnv_IgnoresStorage(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("QUEUE_MAX_RETRY", "5")

	q, err := config.QueueFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "redis:6380", q.RedisAddr)
	assert.Equal(t, 5, q.MaxRetry)

	t.Setenv("REDIS_DB", "x")
	t.Setenv("QUEUE_MAX_RETRY", "-2")
	_, err = config.QueueFromEnv()
	assert.ErrorContains(t, err, "REDIS_DB")
	assert.ErrorContains(t, err, "QUEUE_MAX_RETRY")
}

func TestPipelineFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MOMENTS_POLICY_FILE", "/etc/moments/policy.yaml")
	t.Setenv("BATCH_LIMIT", "9")

	p, err := config.PipelineFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "/etc/moments/policy.yaml", p.PolicyFile)
	assert.Equal(t, 9, p.BatchLimit)
}
