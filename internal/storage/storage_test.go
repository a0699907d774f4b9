package storage_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ai-teammate/mytube/moments/internal/storage"
)

// ── stub ObjectReader ──────────────────────────────────────────────────────────

type stubReader struct {
	content string
	err     error
	// recorded calls
	calledBucket string
	calledObject string
}

func (s *stubReader) NewReader(_ context.Context, bucket, object string) (io.ReadCloser, error) {
	s.calledBucket = bucket
	s.calledObject = object
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader(s.content)), nil
}

// ── stub ObjectClient ──────────────────────────────────────────────────────────

type stubWriteCloser struct {
	buf      strings.Builder
	writeErr error
	closeErr error
	closed   bool
}

func (s *stubWriteCloser) Write(p []byte) (int, error) {
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	return s.buf.Write(p)
}

func (s *stubWriteCloser) Close() error {
	s.closed = true
	return s.closeErr
}

type stubClient struct {
	stubReader
	wc        *stubWriteCloser
	meta      storage.ObjectMetadata
	deleteErr error
	deleted   []string
	written   []string
}

func (s *stubClient) NewWriter(_ context.Context, bucket, object string, meta storage.ObjectMetadata) io.WriteCloser {
	s.written = append(s.written, bucket+"/"+object)
	s.meta = meta
	if s.wc == nil {
		s.wc = &stubWriteCloser{}
	}
	return s.wc
}

func (s *stubClient) Delete(_ context.Context, bucket, object string) error {
	s.deleted = append(s.deleted, bucket+"/"+object)
	return s.deleteErr
}

// ── Fetcher ───────────────────────────────────────────────────────────────────

func TestFetcher_Fetch_Success(t *testing.T) {
	rdr := &stubReader{content: "video-bytes"}
	f := storage.NewFetcher(rdr, "raw-bucket", 0)

	got, err := f.Fetch(context.Background(), "raw/abc.mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "video-bytes" {
		t.Errorf("content = %q, want %q", got, "video-bytes")
	}
	if rdr.calledBucket != "raw-bucket" || rdr.calledObject != "raw/abc.mp4" {
		t.Errorf("read %s/%s", rdr.calledBucket, rdr.calledObject)
	}
}

func TestFetcher_Fetch_ReaderError(t *testing.T) {
	f := storage.NewFetcher(&stubReader{err: storage.ErrNotFound}, "b", 0)

	_, err := f.Fetch(context.Background(), "o")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected wrapped ErrNotFound, got %v", err)
	}
}

func TestFetcher_Fetch_ExactlyAtLimit(t *testing.T) {
	f := storage.NewFetcher(&stubReader{content: "12345"}, "b", 5)

	got, err := f.Fetch(context.Background(), "o")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 5 {
		t.Errorf("len = %d, want 5", len(got))
	}
}

func TestFetcher_Fetch_OverLimit(t *testing.T) {
	f := storage.NewFetcher(&stubReader{content: "123456"}, "b", 5)

	_, err := f.Fetch(context.Background(), "o")
	if !errors.Is(err, storage.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

type errorReader struct{}

func (errorReader) Read(_ []byte) (int, error) { return 0, errors.New("read error") }
func (errorReader) Close() error               { return nil }

type errorOpenReader struct{}

func (*errorOpenReader) NewReader(_ context.Context, _, _ string) (io.ReadCloser, error) {
	return errorReader{}, nil
}

func TestFetcher_Fetch_CopyError(t *testing.T) {
	f := storage.NewFetcher(&errorOpenReader{}, "b", 0)

	if _, err := f.Fetch(context.Background(), "o"); err == nil {
		t.Fatal("expected error from read, got nil")
	}
}

// ── Store ─────────────────────────────────────────────────────────────────────

func TestStore_Upload_Success(t *testing.T) {
	c := &stubClient{}
	s := storage.NewStore(c, "assets", "https://cdn.example.com/")

	res, err := s.Upload(context.Background(), "videos/o/c.mp4", []byte("mp4-data"),
		storage.ObjectMetadata{ContentType: "video/mp4"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.wc.buf.String() != "mp4-data" {
		t.Errorf("uploaded content = %q", c.wc.buf.String())
	}
	if !c.wc.closed {
		t.Error("writer not closed")
	}
	if len(c.written) != 1 || c.written[0] != "assets/videos/o/c.mp4" {
		t.Errorf("written = %v", c.written)
	}
	if c.meta.ContentType != "video/mp4" {
		t.Errorf("content type = %q", c.meta.ContentType)
	}
	want := storage.UploadResult{Key: "videos/o/c.mp4", URL: "https://cdn.example.com/videos/o/c.mp4", Size: 8}
	if res != want {
		t.Errorf("result = %+v, want %+v", res, want)
	}
}

func TestStore_Upload_EmptyKey(t *testing.T) {
	c := &stubClient{}
	s := storage.NewStore(c, "b", "https://cdn")

	if _, err := s.Upload(context.Background(), "", []byte("x"), storage.ObjectMetadata{}); err == nil {
		t.Fatal("expected error for empty key")
	}
	if len(c.written) != 0 {
		t.Error("no writer should be opened")
	}
}

func TestStore_Upload_CloseError(t *testing.T) {
	c := &stubClient{wc: &stubWriteCloser{closeErr: errors.New("finalise error")}}
	s := storage.NewStore(c, "b", "https://cdn")

	if _, err := s.Upload(context.Background(), "k", []byte("data"), storage.ObjectMetadata{}); err == nil {
		t.Fatal("expected close error")
	}
}

func TestStore_Upload_WriteErrorStillCloses(t *testing.T) {
	c := &stubClient{wc: &stubWriteCloser{writeErr: errors.New("write error")}}
	s := storage.NewStore(c, "b", "https://cdn")

	if _, err := s.Upload(context.Background(), "k", []byte("data"), storage.ObjectMetadata{}); err == nil {
		t.Fatal("expected write error")
	}
	if !c.wc.closed {
		t.Error("writer must be closed after a failed write")
	}
}

func TestStore_Delete(t *testing.T) {
	c := &stubClient{}
	s := storage.NewStore(c, "b", "https://cdn")

	if err := s.Delete(context.Background(), "thumbnails/o/c.jpg"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.deleted) != 1 || c.deleted[0] != "b/thumbnails/o/c.jpg" {
		t.Errorf("deleted = %v", c.deleted)
	}

	c.deleteErr = storage.ErrNotFound
	if err := s.Delete(context.Background(), "x"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_URL_QualityHints(t *testing.T) {
	s := storage.NewStore(&stubClient{}, "b", "https://cdn.example.com")

	cases := map[string]string{
		"":        "https://cdn.example.com/videos/o/c.mp4",
		"low":     "https://cdn.example.com/videos/o/c.mp4?quality=low",
		"medium":  "https://cdn.example.com/videos/o/c.mp4?quality=medium",
		"high":    "https://cdn.example.com/videos/o/c.mp4?quality=high",
		"extreme": "https://cdn.example.com/videos/o/c.mp4",
	}
	for quality, want := range cases {
		if got := s.URL("videos/o/c.mp4", quality); got != want {
			t.Errorf("URL(%q) = %q, want %q", quality, got, want)
		}
	}
}

// ── LocalClient ───────────────────────────────────────────────────────────────

func TestLocalClient_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := storage.NewLocalClient(dir)
	s := storage.NewStore(c, "assets", "file://"+dir+"/assets")
	ctx := context.Background()

	if _, err := s.Upload(ctx, "videos/o/c.mp4", []byte("payload"), storage.ObjectMetadata{}); err != nil {
		t.Fatalf("upload: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "assets", "videos", "o", "c.mp4"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("content = %q", got)
	}

	data, err := storage.NewFetcher(c, "assets", 0).Fetch(ctx, "videos/o/c.mp4")
	if err != nil || string(data) != "payload" {
		t.Fatalf("fetch = %q, %v", data, err)
	}

	if err := s.Delete(ctx, "videos/o/c.mp4"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "videos/o/c.mp4"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
	if _, err := c.NewReader(ctx, "assets", "videos/o/c.mp4"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("read after delete = %v, want ErrNotFound", err)
	}
}

func TestLocalClient_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := storage.NewStore(storage.NewLocalClient(dir), "b", "file://x")

	if _, err := s.Upload(context.Background(), "k/obj", []byte("x"), storage.ObjectMetadata{}); err != nil {
		t.Fatalf("upload: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "b", "k"))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "obj" {
		t.Errorf("entries = %v, want only obj", entries)
	}
}

func TestLocalClient_RejectsTraversal(t *testing.T) {
	c := storage.NewLocalClient(t.TempDir())

	if _, err := c.NewReader(context.Background(), "b", "../../etc/passwd"); err == nil || errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected path error, got %v", err)
	}
	wc := c.NewWriter(context.Background(), "b", "../escape", storage.ObjectMetadata{})
	if _, err := wc.Write([]byte("x")); err == nil {
		t.Error("expected write to fail for escaping path")
	}
	if err := wc.Close(); err == nil {
		t.Error("expected close to fail for escaping path")
	}
}

// ── keys ──────────────────────────────────────────────────────────────────────

func TestKeys(t *testing.T) {
	if got := storage.VideoKey("owner", "content"); got != "videos/owner/content.mp4" {
		t.Errorf("VideoKey = %q", got)
	}
	for format, want := range map[string]string{
		"jpeg": "thumbnails/owner/content.jpg",
		"JPG":  "thumbnails/owner/content.jpg",
		"png":  "thumbnails/owner/content.png",
		"webp": "thumbnails/owner/content.webp",
	} {
		if got := storage.ThumbnailKey("owner", "content", format); got != want {
			t.Errorf("ThumbnailKey(%q) = %q, want %q", format, got, want)
		}
	}
}

func TestContentIDFromKey(t *testing.T) {
	cases := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{"raw/0f9c.mp4", "0f9c", false},
		{"raw/nested/abc.mov", "abc", false},
		{"abc", "abc", false},
		{"raw/.mp4", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := storage.ContentIDFromKey(tc.key)
		if (err != nil) != tc.wantErr {
			t.Errorf("ContentIDFromKey(%q) err = %v, wantErr %v", tc.key, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ContentIDFromKey(%q) = %q, want %q", tc.key, got, tc.want)
		}
	}
}

// ── provider selection ────────────────────────────────────────────────────────

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := storage.NewClient(context.Background(), storage.Config{Provider: "ftp"})
	if !errors.Is(err, storage.ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestNewClient_Local(t *testing.T) {
	dir := t.TempDir()
	c, err := storage.NewClient(context.Background(), storage.Config{Provider: "LOCAL", LocalDir: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()
	if _, ok := c.(*storage.LocalClient); !ok {
		t.Errorf("client = %T, want *storage.LocalClient", c)
	}

	if _, err := storage.NewClient(context.Background(), storage.Config{Provider: "local"}); err == nil {
		t.Error("expected error without a directory")
	}
}

func TestBaseURL(t *testing.T) {
	cases := []struct {
		cfg  storage.Config
		want string
	}{
		{storage.Config{Provider: "gcs", Bucket: "b", PublicBaseURL: "https://cdn.example.com/"}, "https://cdn.example.com"},
		{storage.Config{Provider: "gcs", Bucket: "b"}, "https://storage.googleapis.com/b"},
		{storage.Config{Provider: "s3", Bucket: "b", Endpoint: "minio:9000"}, "http://minio:9000/b"},
		{storage.Config{Provider: "s3", Bucket: "b", Endpoint: "s3.example.com", UseSSL: true}, "https://s3.example.com/b"},
		{storage.Config{Provider: "local", Bucket: "b", LocalDir: "/srv/data"}, "file:///srv/data/b"},
	}
	for _, tc := range cases {
		if got := storage.BaseURL(tc.cfg); got != tc.want {
			t.Errorf("BaseURL(%+v) = %q, want %q", tc.cfg, got, tc.want)
		}
	}
}
