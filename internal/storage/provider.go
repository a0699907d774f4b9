package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Supported providers.
const (
	ProviderGCS   = "gcs"
	ProviderS3    = "s3"
	ProviderLocal = "local"
)

// Config selects and configures a provider.
type Config struct {
	Provider string
	// Bucket receives processed videos and thumbnails.
	Bucket string
	// RawBucket holds the original uploads.
	RawBucket     string
	PublicBaseURL string
	// Endpoint is the S3 endpoint, or a GCS emulator endpoint.
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	// LocalDir is the root directory of the local provider.
	LocalDir string
}

// NewClient builds the Client for cfg.Provider.
func NewClient(ctx context.Context, cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderGCS:
		return NewGCSClient(ctx, cfg.Endpoint)
	case ProviderS3:
		c, err := NewMinioClient(S3Options{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Region:    cfg.Region,
			UseSSL:    cfg.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		if err := c.EnsureBuckets(ctx, cfg.Bucket, cfg.RawBucket); err != nil {
			return nil, err
		}
		return c, nil
	case ProviderLocal:
		if cfg.LocalDir == "" {
			return nil, fmt.Errorf("local storage: directory is required")
		}
		return NewLocalClient(cfg.LocalDir), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// BaseURL returns cfg.PublicBaseURL, or the provider's default public URL of
// the processed bucket.
func BaseURL(cfg Config) string {
	if cfg.PublicBaseURL != "" {
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	}
	switch strings.ToLower(cfg.Provider) {
	case ProviderS3:
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		return scheme + "://" + cfg.Endpoint + "/" + cfg.Bucket
	case ProviderLocal:
		return "file://" + filepath.ToSlash(filepath.Join(cfg.LocalDir, cfg.Bucket))
	default:
		return "https://storage.googleapis.com/" + cfg.Bucket
	}
}
