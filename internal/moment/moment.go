// Package moment provides persistence for moment records and their
// engagement metrics.
package moment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ai-teammate/mytube/moments/internal/media"
)

var (
	// ErrNotFound is returned when no moment matches the given ID.
	ErrNotFound = errors.New("moment not found")
	// ErrAlreadyExists is returned by Create for a duplicate ID.
	ErrAlreadyExists = errors.New("moment already exists")
	// ErrInvalid is returned for records that cannot be stored.
	ErrInvalid = errors.New("invalid moment")
)

// Status represents the processing state of a moment.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusPublished  Status = "published"
	StatusFailed     Status = "failed"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Moment is one short-form video owned by a user.
type Moment struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"ownerId"`
	Status           Status    `json:"status"`
	RawKey           string    `json:"rawKey,omitempty"`
	VideoURL         string    `json:"videoUrl,omitempty"`
	ThumbnailURL     string    `json:"thumbnailUrl,omitempty"`
	DurationSeconds  float64   `json:"durationSeconds"`
	Width            int       `json:"width"`
	Height           int       `json:"height"`
	Format           string    `json:"format,omitempty"`
	Codec            string    `json:"codec,omitempty"`
	HasAudio         bool      `json:"hasAudio"`
	SizeBytes        int64     `json:"sizeBytes"`
	ProcessingTimeMs int64     `json:"processingTimeMs"`
	FailureReason    string    `json:"failureReason,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// prepare fills the defaults of a new moment.
func prepare(m Moment) (Moment, error) {
	if m.OwnerID == "" {
		return Moment{}, fmt.Errorf("%w: owner id is required", ErrInvalid)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = StatusPending
	}
	return m, nil
}

// Update holds the fields written to a moment once processing completes.
type Update struct {
	Status           Status
	VideoURL         string
	ThumbnailURL     string
	Video            media.Metadata
	ProcessingTimeMs int64
}

func (u Update) apply(m *Moment) {
	m.Status = u.Status
	m.VideoURL = u.VideoURL
	m.ThumbnailURL = u.ThumbnailURL
	m.DurationSeconds = u.Video.DurationSeconds
	m.Width = u.Video.Width
	m.Height = u.Video.Height
	m.Format = u.Video.Format
	m.Codec = u.Video.Codec
	m.HasAudio = u.Video.HasAudio
	m.SizeBytes = u.Video.SizeBytes
	m.ProcessingTimeMs = u.ProcessingTimeMs
	m.FailureReason = ""
}

// Metrics are the engagement counters of one moment.
type Metrics struct {
	MomentID  string    `json:"momentId"`
	Views     int64     `json:"views"`
	Likes     int64     `json:"likes"`
	Comments  int64     `json:"comments"`
	Shares    int64     `json:"shares"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (m Metrics) valid() bool {
	return m.MomentID != "" && m.Views >= 0 && m.Likes >= 0 && m.Comments >= 0 && m.Shares >= 0
}

// Summary aggregates an owner's moments and their engagement.
type Summary struct {
	OwnerID  string `json:"ownerId"`
	Moments  int64  `json:"moments"`
	Views    int64  `json:"views"`
	Likes    int64  `json:"likes"`
	Comments int64  `json:"comments"`
	Shares   int64  `json:"shares"`
}

// Page selects a window of a listing ordered newest first.
type Page struct {
	Limit  int
	Offset int
}

// Normalize applies the default limit, caps it and clamps a negative offset.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Repository is the moment store used by the ingest service.
type Repository interface {
	Create(ctx context.Context, m Moment) (Moment, error)
	FindByID(ctx context.Context, id string) (Moment, error)
	Update(ctx context.Context, id string, u Update) error
	SetStatus(ctx context.Context, id string, status Status) error
	MarkFailed(ctx context.Context, id, reason string) error
	Delete(ctx context.Context, id string) error
	FindByOwnerID(ctx context.Context, ownerID string, page Page) ([]Moment, error)
	FindByStatus(ctx context.Context, status Status, page Page) ([]Moment, error)
	SaveMetrics(ctx context.Context, m Metrics) error
	FindMetrics(ctx context.Context, momentID string) (Metrics, error)
	OwnerSummary(ctx context.Context, ownerID string) (Summary, error)
}
