// Package ingest turns one raw upload into a published moment: it fetches the
// raw object, runs it through the processor, publishes the processed video
// and thumbnail, and records the outcome on the moment.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/ai-teammate/mytube/moments/internal/moment"
	"github.com/ai-teammate/mytube/moments/internal/processor"
	"github.com/ai-teammate/mytube/moments/internal/storage"
)

// ErrRejected marks a job whose video failed validation; running it again
// cannot succeed.
var ErrRejected = errors.New("video rejected")

// Ingest statuses reported to the Recorder.
const (
	StatusPublished = "published"
	StatusRejected  = "rejected"
	StatusFailed    = "failed"
)

const videoCacheControl = "public, max-age=31536000, immutable"

// Job identifies one raw upload to ingest.
type Job struct {
	ContentID string `json:"contentId"`
	OwnerID   string `json:"ownerId"`
	RawKey    string `json:"rawKey"`
	Filename  string `json:"filename,omitempty"`
	MIMEType  string `json:"mimeType,omitempty"`
}

// Normalize derives the content ID from the raw key and the MIME type from
// the file extension when they are not set.
func (j Job) Normalize() (Job, error) {
	if j.RawKey == "" {
		return Job{}, fmt.Errorf("%w: raw key is required", ErrRejected)
	}
	if j.OwnerID == "" {
		return Job{}, fmt.Errorf("%w: owner id is required", ErrRejected)
	}
	if j.ContentID == "" {
		id, err := storage.ContentIDFromKey(j.RawKey)
		if err != nil {
			return Job{}, fmt.Errorf("%w: %v", ErrRejected, err)
		}
		j.ContentID = id
	}
	if j.Filename == "" {
		j.Filename = path.Base(j.RawKey)
	}
	if j.MIMEType == "" {
		if ext := strings.TrimPrefix(strings.ToLower(path.Ext(j.Filename)), "."); ext != "" {
			j.MIMEType = "video/" + ext
		}
	}
	return j, nil
}

// Fetcher reads raw uploads.
type Fetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// VideoProcessor runs the processing pipeline; *processor.Processor implements it.
type VideoProcessor interface {
	ProcessVideo(ctx context.Context, req processor.Request) processor.Result
}

// Recorder counts finished jobs; *metrics.Metrics implements it.
type Recorder interface {
	IngestFinished(status string)
}

// Outcome describes a finished job.
type Outcome struct {
	ContentID    string           `json:"contentId"`
	Status       moment.Status    `json:"status"`
	VideoURL     string           `json:"videoUrl,omitempty"`
	ThumbnailURL string           `json:"thumbnailUrl,omitempty"`
	Result       processor.Result `json:"result"`
}

// Service groups the dependencies needed for ingesting moments.
type Service struct {
	fetch Fetcher
	proc  VideoProcessor
	store storage.Backend
	repo  moment.Repository
	rec   Recorder
	log   hclog.Logger
}

// New constructs a Service. logger and rec may be nil.
func New(f Fetcher, p VideoProcessor, b storage.Backend, r moment.Repository, rec Recorder, logger hclog.Logger) *Service {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Service{fetch: f, proc: p, store: b, repo: r, rec: rec, log: logger.Named("ingest")}
}

// Ingest executes the full pipeline for one job. On any failure it makes a
// best-effort call to MarkFailed before returning the original error.
// Errors wrapping ErrRejected are not worth retrying.
func (s *Service) Ingest(ctx context.Context, job Job) (Outcome, error) {
	normalized, err := job.Normalize()
	if err != nil {
		s.record(StatusRejected)
		return Outcome{ContentID: job.ContentID, Status: moment.StatusFailed}, err
	}
	job = normalized
	log := s.log.With("content_id", job.ContentID, "owner_id", job.OwnerID)

	out, err := s.run(ctx, job, log)
	if err != nil {
		out.ContentID = job.ContentID
		out.Status = moment.StatusFailed
		if markErr := s.repo.MarkFailed(context.WithoutCancel(ctx), job.ContentID, err.Error()); markErr != nil {
			log.Warn("could not mark moment as failed", "error", markErr)
		}
		if errors.Is(err, ErrRejected) {
			s.record(StatusRejected)
			log.Info("moment rejected", "reason", err)
		} else {
			s.record(StatusFailed)
			log.Error("ingest failed", "error", err)
		}
		return out, err
	}
	s.record(StatusPublished)
	log.Info("moment published", "video_url", out.VideoURL, "elapsed_ms", out.Result.ProcessingTimeMs)
	return out, nil
}

func (s *Service) record(status string) {
	if s.rec != nil {
		s.rec.IngestFinished(status)
	}
}

// run contains the core pipeline steps.
func (s *Service) run(ctx context.Context, job Job, log hclog.Logger) (Outcome, error) {
	// ── Step 1: Ensure the moment row exists ──────────────────────────────────
	if err := s.ensureMoment(ctx, job); err != nil {
		return Outcome{}, err
	}
	if err := s.repo.SetStatus(ctx, job.ContentID, moment.StatusProcessing); err != nil {
		return Outcome{}, fmt.Errorf("mark processing: %w", err)
	}

	// ── Step 2: Fetch raw upload ──────────────────────────────────────────────
	log.Debug("fetching raw upload", "key", job.RawKey)
	data, err := s.fetch.Fetch(ctx, job.RawKey)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return Outcome{}, fmt.Errorf("%w: %v", ErrRejected, err)
		}
		return Outcome{}, fmt.Errorf("fetch raw upload: %w", err)
	}

	// ── Step 3: Process ───────────────────────────────────────────────────────
	res := s.proc.ProcessVideo(ctx, processor.Request{
		ContentID: job.ContentID,
		OwnerID:   job.OwnerID,
		Data:      data,
		Metadata: processor.FileMetadata{
			Filename: job.Filename,
			MIMEType: job.MIMEType,
			Size:     int64(len(data)),
		},
	})
	out := Outcome{Result: res}
	if !res.Success {
		if !res.Retryable() {
			return out, fmt.Errorf("%w: %s", ErrRejected, res.Error)
		}
		return out, fmt.Errorf("process video: %s", res.Error)
	}

	// ── Step 4: Publish assets ────────────────────────────────────────────────
	attrs := map[string]string{"content_id": job.ContentID, "owner_id": job.OwnerID}
	video, err := s.store.Upload(ctx, storage.VideoKey(job.OwnerID, job.ContentID), res.ProcessedVideo.OutputBytes,
		storage.ObjectMetadata{ContentType: "video/mp4", CacheControl: videoCacheControl, Attributes: attrs})
	if err != nil {
		return out, fmt.Errorf("upload video: %w", err)
	}
	uploaded := []string{video.Key}
	out.VideoURL = video.URL

	if res.Thumbnail.Empty() {
		log.Warn("thumbnail extraction produced no image; publishing without thumbnail")
	} else {
		thumb, err := s.store.Upload(ctx, storage.ThumbnailKey(job.OwnerID, job.ContentID, res.Thumbnail.Format), res.Thumbnail.Data,
			storage.ObjectMetadata{ContentType: "image/" + res.Thumbnail.Format, CacheControl: videoCacheControl, Attributes: attrs})
		if err != nil {
			s.cleanup(ctx, uploaded, log)
			return out, fmt.Errorf("upload thumbnail: %w", err)
		}
		uploaded = append(uploaded, thumb.Key)
		out.ThumbnailURL = thumb.URL
	}

	// ── Step 5: Record the published moment ───────────────────────────────────
	err = s.repo.Update(ctx, job.ContentID, moment.Update{
		Status:           moment.StatusPublished,
		VideoURL:         out.VideoURL,
		ThumbnailURL:     out.ThumbnailURL,
		Video:            res.VideoMetadata,
		ProcessingTimeMs: res.ProcessingTimeMs,
	})
	if err != nil {
		s.cleanup(ctx, uploaded, log)
		return out, fmt.Errorf("update moment record: %w", err)
	}
	out.Status = moment.StatusPublished
	return out, nil
}

func (s *Service) ensureMoment(ctx context.Context, job Job) error {
	_, err := s.repo.FindByID(ctx, job.ContentID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, moment.ErrNotFound) {
		return fmt.Errorf("find moment: %w", err)
	}
	_, err = s.repo.Create(ctx, moment.Moment{ID: job.ContentID, OwnerID: job.OwnerID, RawKey: job.RawKey})
	if err != nil && !errors.Is(err, moment.ErrAlreadyExists) {
		return fmt.Errorf("create moment: %w", err)
	}
	return nil
}

// cleanup removes assets published by a run that did not complete.
func (s *Service) cleanup(ctx context.Context, keys []string, log hclog.Logger) {
	for _, key := range keys {
		if err := s.store.Delete(context.WithoutCancel(ctx), key); err != nil {
			log.Warn("could not remove orphaned asset", "key", key, "error", err)
		}
	}
}
