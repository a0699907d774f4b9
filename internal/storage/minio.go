package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Options configures an S3-compatible endpoint.
type S3Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// MinioClient implements Client against any S3-compatible service.
type MinioClient struct {
	client *minio.Client
	region string
}

// NewMinioClient creates a MinIO client from opts.
func NewMinioClient(opts S3Options) (*MinioClient, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &MinioClient{client: client, region: opts.Region}, nil
}

// EnsureBuckets makes sure the given buckets exist before use.
func (m *MinioClient) EnsureBuckets(ctx context.Context, buckets ...string) error {
	for _, bucket := range buckets {
		exists, err := m.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: m.region}); err != nil {
				return fmt.Errorf("make bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}

// NewReader opens bucket/object. GetObject is lazy, so the object is stat'ed
// to surface a missing key up front.
func (m *MinioClient) NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return obj, nil
}

// NewWriter buffers the object and puts it on Close.
func (m *MinioClient) NewWriter(ctx context.Context, bucket, object string, meta ObjectMetadata) io.WriteCloser {
	return &minioWriter{ctx: ctx, client: m.client, bucket: bucket, object: object, meta: meta}
}

// Delete removes bucket/object; S3 deletes are idempotent, so existence is
// checked first.
func (m *MinioClient) Delete(ctx context.Context, bucket, object string) error {
	if _, err := m.client.StatObject(ctx, bucket, object, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return ErrNotFound
		}
		return err
	}
	return m.client.RemoveObject(ctx, bucket, object, minio.RemoveObjectOptions{})
}

// Close is a no-op; the MinIO client holds no releasable resources.
func (m *MinioClient) Close() error { return nil }

type minioWriter struct {
	ctx    context.Context
	client *minio.Client
	bucket string
	object string
	meta   ObjectMetadata
	buf    bytes.Buffer
}

func (w *minioWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *minioWriter) Close() error {
	opts := minio.PutObjectOptions{
		ContentType:  w.meta.ContentType,
		CacheControl: w.meta.CacheControl,
		UserMetadata: w.meta.Attributes,
	}
	_, err := w.client.PutObject(w.ctx, w.bucket, w.object, bytes.NewReader(w.buf.Bytes()), int64(w.buf.Len()), opts)
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}
