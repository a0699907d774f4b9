package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
)

// Quality hints accepted by URL.
const (
	QualityLow    = "low"
	QualityMedium = "medium"
	QualityHigh   = "high"
)

// Store is a Backend over one bucket of an ObjectClient.
type Store struct {
	Client  ObjectClient
	Bucket  string
	BaseURL string
}

// NewStore constructs a Store. Public URLs are built as <baseURL>/<key>.
func NewStore(c ObjectClient, bucket, baseURL string) *Store {
	return &Store{Client: c, Bucket: bucket, BaseURL: strings.TrimRight(baseURL, "/")}
}

var _ Backend = (*Store)(nil)

// Upload writes data to key and returns its public location.
func (s *Store) Upload(ctx context.Context, key string, data []byte, meta ObjectMetadata) (UploadResult, error) {
	if key == "" {
		return UploadResult{}, fmt.Errorf("upload: empty key")
	}

	wc := s.Client.NewWriter(ctx, s.Bucket, key, meta)
	n, err := io.Copy(wc, bytes.NewReader(data))
	if err != nil {
		_ = wc.Close()
		return UploadResult{}, fmt.Errorf("copy to %s/%s: %w", s.Bucket, key, err)
	}
	if err := wc.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("finalise upload %s/%s: %w", s.Bucket, key, err)
	}
	return UploadResult{Key: key, URL: s.URL(key, ""), Size: n}, nil
}

// Delete removes the object at key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.Client.Delete(ctx, s.Bucket, key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", s.Bucket, key, err)
	}
	return nil
}

// URL returns the public URL of key. A low, medium or high quality hint is
// appended as a query parameter; other hints are ignored.
func (s *Store) URL(key, quality string) string {
	u := s.BaseURL + "/" + strings.TrimLeft(key, "/")
	switch quality {
	case QualityLow, QualityMedium, QualityHigh:
		u += "?quality=" + quality
	}
	return u
}
