package storage

import (
	"context"
	"fmt"
	"io"
)

// Fetcher reads raw uploads into memory.
type Fetcher struct {
	Reader ObjectReader
	Bucket string
	// MaxBytes bounds the object size; zero means unlimited.
	MaxBytes int64
}

// NewFetcher constructs a Fetcher for bucket backed by the provided ObjectReader.
func NewFetcher(r ObjectReader, bucket string, maxBytes int64) *Fetcher {
	return &Fetcher{Reader: r, Bucket: bucket, MaxBytes: maxBytes}
}

// Fetch returns the content of the object at key.
func (f *Fetcher) Fetch(ctx context.Context, key string) ([]byte, error) {
	rc, err := f.Reader.NewReader(ctx, f.Bucket, key)
	if err != nil {
		return nil, fmt.Errorf("open reader %s/%s: %w", f.Bucket, key, err)
	}
	defer rc.Close()

	var src io.Reader = rc
	if f.MaxBytes > 0 {
		src = io.LimitReader(rc, f.MaxBytes+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", f.Bucket, key, err)
	}
	if f.MaxBytes > 0 && int64(len(data)) > f.MaxBytes {
		return nil, fmt.Errorf("%s/%s exceeds %d bytes: %w", f.Bucket, key, f.MaxBytes, ErrTooLarge)
	}
	return data, nil
}
