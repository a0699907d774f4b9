package ingest_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ai-teammate/mytube/moments/internal/ingest"
	"github.com/ai-teammate/mytube/moments/internal/media"
	"github.com/ai-teammate/mytube/moments/internal/moment"
	"github.com/ai-teammate/mytube/moments/internal/processor"
	"github.com/ai-teammate/mytube/moments/internal/storage"
)

// ── stub implementations ──────────────────────────────────────────────────────

type stubFetcher struct {
	data    []byte
	err     error
	fetched []string
}

func (s *stubFetcher) Fetch(_ context.Context, key string) ([]byte, error) {
	s.fetched = append(s.fetched, key)
	return s.data, s.err
}

type stubProcessor struct {
	result  processor.Result
	lastReq processor.Request
	called  bool
}

func (s *stubProcessor) ProcessVideo(_ context.Context, req processor.Request) processor.Result {
	s.called = true
	s.lastReq = req
	return s.result
}

type stubBackend struct {
	failKey string
	uploads map[string]storage.ObjectMetadata
	deleted []string
	order   []string
}

func (s *stubBackend) Upload(_ context.Context, key string, data []byte, meta storage.ObjectMetadata) (storage.UploadResult, error) {
	if s.uploads == nil {
		s.uploads = map[string]storage.ObjectMetadata{}
	}
	s.order = append(s.order, key)
	if s.failKey != "" && strings.HasPrefix(key, s.failKey) {
		return storage.UploadResult{}, errors.New("upload failed")
	}
	s.uploads[key] = meta
	return storage.UploadResult{Key: key, URL: s.URL(key, ""), Size: int64(len(data))}, nil
}

func (s *stubBackend) Delete(_ context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *stubBackend) URL(key, _ string) string { return "https://cdn.example.com/" + key }

type stubRecorder struct{ statuses []string }

func (s *stubRecorder) IngestFinished(status string) { s.statuses = append(s.statuses, status) }

// failingUpdateRepo fails the final Update.
type failingUpdateRepo struct {
	*moment.MemoryStore
}

func (failingUpdateRepo) Update(context.Context, string, moment.Update) error {
	return errors.New("db down")
}

// ── helpers ───────────────────────────────────────────────────────────────────

func successResult() processor.Result {
	return processor.Result{
		Success:   true,
		ContentID: "c1",
		Thumbnail: media.Thumbnail{Data: []byte("jpeg"), Width: 360, Height: 558, Format: "jpeg"},
		VideoMetadata: media.Metadata{
			DurationSeconds: 12, Width: 1080, Height: 1674, Format: "mp4", Codec: "h264", HasAudio: true, SizeBytes: 5,
		},
		ProcessedVideo:   media.TransformResult{OutputBytes: []byte("video"), WasProcessed: true, WasCropped: true},
		ProcessingTimeMs: 321,
	}
}

func newJob() ingest.Job {
	return ingest.Job{ContentID: "c1", OwnerID: "o1", RawKey: "raw/c1.mov", Filename: "clip.mov", MIMEType: "video/quicktime"}
}

type fixture struct {
	fetch *stubFetcher
	proc  *stubProcessor
	store *stubBackend
	repo  *moment.MemoryStore
	rec   *stubRecorder
	svc   *ingest.Service
}

func newFixture(res processor.Result) *fixture {
	f := &fixture{
		fetch: &stubFetcher{data: []byte("raw-video")},
		proc:  &stubProcessor{result: res},
		store: &stubBackend{},
		repo:  moment.NewMemoryStore(),
		rec:   &stubRecorder{},
	}
	f.svc = ingest.New(f.fetch, f.proc, f.store, f.repo, f.rec, nil)
	return f
}

// ── happy path ────────────────────────────────────────────────────────────────

func TestIngest_HappyPath_PublishesMoment(t *testing.T) {
	f := newFixture(successResult())

	out, err := f.svc.Ingest(context.Background(), newJob())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != moment.StatusPublished {
		t.Errorf("Status = %q, want published", out.Status)
	}
	if out.VideoURL != "https://cdn.example.com/videos/o1/c1.mp4" {
		t.Errorf("VideoURL = %q", out.VideoURL)
	}
	if out.ThumbnailURL != "https://cdn.example.com/thumbnails/o1/c1.jpg" {
		t.Errorf("ThumbnailURL = %q", out.ThumbnailURL)
	}

	m, err := f.repo.FindByID(context.Background(), "c1")
	if err != nil {
		t.Fatalf("moment not stored: %v", err)
	}
	if m.Status != moment.StatusPublished || m.Width != 1080 || m.Height != 1674 || m.Codec != "h264" {
		t.Errorf("stored moment = %+v", m)
	}
	if m.ProcessingTimeMs != 321 {
		t.Errorf("ProcessingTimeMs = %d, want 321", m.ProcessingTimeMs)
	}
	if len(f.rec.statuses) != 1 || f.rec.statuses[0] != ingest.StatusPublished {
		t.Errorf("recorded = %v", f.rec.statuses)
	}
}

func TestIngest_PassesRequestToProcessor(t *testing.T) {
	f := newFixture(successResult())

	_, _ = f.svc.Ingest(context.Background(), newJob())

	req := f.proc.lastReq
	if req.ContentID != "c1" || req.OwnerID != "o1" {
		t.Errorf("ids = %q/%q", req.ContentID, req.OwnerID)
	}
	if string(req.Data) != "raw-video" {
		t.Errorf("data = %q", req.Data)
	}
	if req.Metadata.MIMEType != "video/quicktime" || req.Metadata.Size != int64(len("raw-video")) {
		t.Errorf("metadata = %+v", req.Metadata)
	}
	if len(f.fetch.fetched) != 1 || f.fetch.fetched[0] != "raw/c1.mov" {
		t.Errorf("fetched = %v", f.fetch.fetched)
	}
}

func TestIngest_UploadMetadata(t *testing.T) {
	f := newFixture(successResult())

	_, _ = f.svc.Ingest(context.Background(), newJob())

	video := f.store.uploads["videos/o1/c1.mp4"]
	if video.ContentType != "video/mp4" {
		t.Errorf("video content type = %q", video.ContentType)
	}
	if video.Attributes["owner_id"] != "o1" {
		t.Errorf("video attributes = %v", video.Attributes)
	}
	if thumb := f.store.uploads["thumbnails/o1/c1.jpg"]; thumb.ContentType != "image/jpeg" {
		t.Errorf("thumbnail content type = %q", thumb.ContentType)
	}
}

func TestIngest_ExistingMomentIsReused(t *testing.T) {
	f := newFixture(successResult())
	if _, err := f.repo.Create(context.Background(), moment.Moment{ID: "c1", OwnerID: "o1"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := f.svc.Ingest(context.Background(), newJob()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIngest_EmptyThumbnailIsNotUploaded(t *testing.T) {
	res := successResult()
	res.Thumbnail = media.Thumbnail{Data: []byte{}, Width: 360, Height: 558, Format: "jpeg"}
	f := newFixture(res)

	out, err := f.svc.Ingest(context.Background(), newJob())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ThumbnailURL != "" {
		t.Errorf("ThumbnailURL = %q, want empty", out.ThumbnailURL)
	}
	if len(f.store.order) != 1 {
		t.Errorf("uploads = %v, want only the video", f.store.order)
	}
}

// ── job normalization ─────────────────────────────────────────────────────────

func TestJobNormalize_DerivesIDAndMIME(t *testing.T) {
	j, err := ingest.Job{OwnerID: "o1", RawKey: "raw/abc.MOV"}.Normalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.ContentID != "abc" {
		t.Errorf("ContentID = %q, want abc", j.ContentID)
	}
	if j.Filename != "abc.MOV" {
		t.Errorf("Filename = %q", j.Filename)
	}
	if j.MIMEType != "video/mov" {
		t.Errorf("MIMEType = %q, want video/mov", j.MIMEType)
	}
}

func TestIngest_InvalidJobIsRejected(t *testing.T) {
	f := newFixture(successResult())

	_, err := f.svc.Ingest(context.Background(), ingest.Job{RawKey: "raw/x.mp4"})
	if !errors.Is(err, ingest.ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	if f.proc.called {
		t.Error("processor must not run for an invalid job")
	}
	if f.rec.statuses[0] != ingest.StatusRejected {
		t.Errorf("recorded = %v", f.rec.statuses)
	}
}

func TestIngest_InvalidJobKeepsCallerContentID(t *testing.T) {
	f := newFixture(successResult())

	out, err := f.svc.Ingest(context.Background(), ingest.Job{ContentID: "c7", RawKey: "raw/c7.mp4"})
	if !errors.Is(err, ingest.ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	if out.ContentID != "c7" {
		t.Errorf("expected content id c7, got %q", out.ContentID)
	}
	if out.Status != moment.StatusFailed {
		t.Errorf("expected status failed, got %q", out.Status)
	}
}

// ── failure paths ─────────────────────────────────────────────────────────────

func TestIngest_ValidationFailure_RejectedAndMarkedFailed(t *testing.T) {
	f := newFixture(processor.Result{
		ContentID: "c1",
		Error:     "video validation failed: video too long",
		ErrorKind: processor.OutcomeValidation,
	})

	out, err := f.svc.Ingest(context.Background(), newJob())
	if !errors.Is(err, ingest.ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	if out.Status != moment.StatusFailed {
		t.Errorf("Status = %q, want failed", out.Status)
	}
	m, _ := f.repo.FindByID(context.Background(), "c1")
	if m.Status != moment.StatusFailed {
		t.Errorf("moment status = %q, want failed", m.Status)
	}
	if !strings.Contains(m.FailureReason, "video too long") {
		t.Errorf("FailureReason = %q", m.FailureReason)
	}
	if len(f.store.order) != 0 {
		t.Errorf("nothing should be uploaded, got %v", f.store.order)
	}
}

func TestIngest_ProcessingError_IsRetryable(t *testing.T) {
	f := newFixture(processor.Result{ContentID: "c1", Error: "probe exploded", ErrorKind: processor.OutcomeError})

	_, err := f.svc.Ingest(context.Background(), newJob())
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ingest.ErrRejected) {
		t.Error("an unexpected processing error must stay retryable")
	}
	if f.rec.statuses[0] != ingest.StatusFailed {
		t.Errorf("recorded = %v", f.rec.statuses)
	}
}

func TestIngest_FetchError(t *testing.T) {
	f := newFixture(successResult())
	f.fetch.err = storage.ErrNotFound

	_, err := f.svc.Ingest(context.Background(), newJob())
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected wrapped ErrNotFound, got %v", err)
	}
	if f.proc.called {
		t.Error("processor must not run without data")
	}
}

func TestIngest_OversizedUploadIsRejected(t *testing.T) {
	f := newFixture(successResult())
	f.fetch.err = storage.ErrTooLarge

	if _, err := f.svc.Ingest(context.Background(), newJob()); !errors.Is(err, ingest.ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestIngest_ThumbnailUploadError_RemovesVideo(t *testing.T) {
	f := newFixture(successResult())
	f.store.failKey = "thumbnails/"

	if _, err := f.svc.Ingest(context.Background(), newJob()); err == nil {
		t.Fatal("expected error")
	}
	if len(f.store.deleted) != 1 || f.store.deleted[0] != "videos/o1/c1.mp4" {
		t.Errorf("deleted = %v, want the uploaded video", f.store.deleted)
	}
}

func TestIngest_VideoUploadError(t *testing.T) {
	f := newFixture(successResult())
	f.store.failKey = "videos/"

	if _, err := f.svc.Ingest(context.Background(), newJob()); err == nil {
		t.Fatal("expected error")
	}
	if len(f.store.deleted) != 0 {
		t.Errorf("deleted = %v, want nothing", f.store.deleted)
	}
	m, _ := f.repo.FindByID(context.Background(), "c1")
	if m.Status != moment.StatusFailed {
		t.Errorf("moment status = %q, want failed", m.Status)
	}
}

func TestIngest_UpdateError_RemovesAssets(t *testing.T) {
	f := newFixture(successResult())
	repo := failingUpdateRepo{moment.NewMemoryStore()}
	svc := ingest.New(f.fetch, f.proc, f.store, repo, nil, nil)

	if _, err := svc.Ingest(context.Background(), newJob()); err == nil {
		t.Fatal("expected error")
	}
	if len(f.store.deleted) != 2 {
		t.Errorf("deleted = %v, want video and thumbnail", f.store.deleted)
	}
}
