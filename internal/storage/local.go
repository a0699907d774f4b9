package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalClient stores objects as files under Root/<bucket>/<object>.
type LocalClient struct {
	Root string
}

// NewLocalClient constructs a LocalClient rooted at dir.
func NewLocalClient(dir string) *LocalClient {
	return &LocalClient{Root: dir}
}

func (l *LocalClient) path(bucket, object string) (string, error) {
	rel := filepath.FromSlash(object)
	if !filepath.IsLocal(bucket) || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("invalid object path %q/%q", bucket, object)
	}
	return filepath.Join(l.Root, bucket, rel), nil
}

func (l *LocalClient) NewReader(_ context.Context, bucket, object string) (io.ReadCloser, error) {
	p, err := l.path(bucket, object)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// NewWriter writes to a temp file beside the target and renames it into
// place on Close.
func (l *LocalClient) NewWriter(_ context.Context, bucket, object string, _ ObjectMetadata) io.WriteCloser {
	p, err := l.path(bucket, object)
	if err != nil {
		return errWriter{err}
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return errWriter{fmt.Errorf("mkdir %s: %w", filepath.Dir(p), err)}
	}
	f, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return errWriter{fmt.Errorf("create temp file: %w", err)}
	}
	return &localWriter{f: f, dest: p}
}

func (l *LocalClient) Delete(_ context.Context, bucket, object string) error {
	p, err := l.path(bucket, object)
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

func (l *LocalClient) Close() error { return nil }

type localWriter struct {
	f    *os.File
	dest string
	err  error
}

func (w *localWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	if err != nil && w.err == nil {
		w.err = err
	}
	return n, err
}

// Close discards the temp file if any write failed.
func (w *localWriter) Close() error {
	if err := w.f.Close(); err != nil || w.err != nil {
		if err == nil {
			err = w.err
		}
		os.Remove(w.f.Name())
		return err
	}
	if err := os.Rename(w.f.Name(), w.dest); err != nil {
		os.Remove(w.f.Name())
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// errWriter reports a deferred construction error on first use.
type errWriter struct{ err error }

func (e errWriter) Write([]byte) (int, error) { return 0, e.err }
func (e errWriter) Close() error              { return e.err }
