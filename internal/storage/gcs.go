package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSClient implements Client using the real GCS client.
type GCSClient struct {
	client *storage.Client
}

// NewGCSClient dials GCS with application default credentials. A non-empty
// endpoint targets an emulator without authentication.
func NewGCSClient(ctx context.Context, endpoint string) (*GCSClient, error) {
	var opts []option.ClientOption
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &GCSClient{client: client}, nil
}

// NewReader opens a GCS object reader for bucket/object.
func (g *GCSClient) NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	r, err := g.client.Bucket(bucket).Object(object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	return r, err
}

// NewWriter opens a GCS object writer for bucket/object.
func (g *GCSClient) NewWriter(ctx context.Context, bucket, object string, meta ObjectMetadata) io.WriteCloser {
	w := g.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = meta.ContentType
	w.CacheControl = meta.CacheControl
	w.Metadata = meta.Attributes
	return w
}

// Delete removes bucket/object.
func (g *GCSClient) Delete(ctx context.Context, bucket, object string) error {
	err := g.client.Bucket(bucket).Object(object).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrNotFound
	}
	return err
}

// Close releases the underlying client.
func (g *GCSClient) Close() error {
	return g.client.Close()
}
