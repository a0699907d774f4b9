// Package storage reads raw uploads and publishes processed moment assets to
// an object store (GCS, S3-compatible, or the local filesystem).
package storage

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound is returned when the requested object does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrUnknownProvider is returned for an unsupported provider name.
	ErrUnknownProvider = errors.New("unknown storage provider")
	// ErrTooLarge is returned by Fetch when an object exceeds the byte limit.
	ErrTooLarge = errors.New("object too large")
)

// ObjectMetadata is written alongside an uploaded object.
type ObjectMetadata struct {
	ContentType  string
	CacheControl string
	Attributes   map[string]string
}

// UploadResult describes a stored object.
type UploadResult struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// Backend publishes processed assets.
type Backend interface {
	Upload(ctx context.Context, key string, data []byte, meta ObjectMetadata) (UploadResult, error)
	Delete(ctx context.Context, key string) error
	URL(key, quality string) string
}

// ObjectReader abstracts object reads so tests can inject a stub.
type ObjectReader interface {
	// NewReader opens a reader for the given bucket/object. A missing object
	// is reported as ErrNotFound.
	NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error)
}

// ObjectWriter abstracts object writes so tests can inject a stub.
type ObjectWriter interface {
	// NewWriter opens a writer for the given bucket/object.
	// The caller must close the writer to finalise the upload.
	NewWriter(ctx context.Context, bucket, object string, meta ObjectMetadata) io.WriteCloser
}

// ObjectDeleter abstracts object removal.
type ObjectDeleter interface {
	Delete(ctx context.Context, bucket, object string) error
}

// ObjectClient is the full set of object operations a provider supplies.
type ObjectClient interface {
	ObjectReader
	ObjectWriter
	ObjectDeleter
}

// Client is an ObjectClient holding resources that must be released.
type Client interface {
	ObjectClient
	io.Closer
}
