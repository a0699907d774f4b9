package moment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Postgres error codes handled by the repository.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Querier abstracts *sql.DB so that tests can inject a stub.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// PostgresRepository stores moments in the moments and moment_metrics tables.
type PostgresRepository struct {
	db Querier
}

// NewPostgresRepository constructs a PostgresRepository backed by db.
func NewPostgresRepository(db Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ Repository = (*PostgresRepository)(nil)

const momentColumns = `id, owner_id, status, raw_key, video_url, thumbnail_url,
       duration_seconds, width, height, format, codec, has_audio, size_bytes,
       processing_time_ms, failure_reason, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanMoment(s scanner) (Moment, error) {
	var (
		m      Moment
		status string
	)
	err := s.Scan(
		&m.ID, &m.OwnerID, &status, &m.RawKey, &m.VideoURL, &m.ThumbnailURL,
		&m.DurationSeconds, &m.Width, &m.Height, &m.Format, &m.Codec, &m.HasAudio, &m.SizeBytes,
		&m.ProcessingTimeMs, &m.FailureReason, &m.CreatedAt, &m.UpdatedAt,
	)
	m.Status = Status(status)
	return m, err
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// Create inserts m, assigning an ID and the pending status when unset.
func (r *PostgresRepository) Create(ctx context.Context, m Moment) (Moment, error) {
	m, err := prepare(m)
	if err != nil {
		return Moment{}, err
	}

	const query = `
INSERT INTO moments (id, owner_id, status, raw_key)
VALUES ($1, $2, $3, $4)
RETURNING created_at, updated_at`

	row := r.db.QueryRowContext(ctx, query, m.ID, m.OwnerID, string(m.Status), m.RawKey)
	if err := row.Scan(&m.CreatedAt, &m.UpdatedAt); err != nil {
		if pqCode(err) == pgUniqueViolation {
			return Moment{}, fmt.Errorf("create moment %s: %w", m.ID, ErrAlreadyExists)
		}
		return Moment{}, fmt.Errorf("create moment %s: %w", m.ID, err)
	}
	return m, nil
}

// FindByID returns the moment identified by id or ErrNotFound.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Moment, error) {
	query := `SELECT ` + momentColumns + ` FROM moments WHERE id = $1`

	m, err := scanMoment(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Moment{}, fmt.Errorf("moment %s: %w", id, ErrNotFound)
		}
		return Moment{}, fmt.Errorf("find moment %s: %w", id, err)
	}
	return m, nil
}

// Update applies u to the moment identified by id and clears any failure
// reason. It returns ErrNotFound if the row does not exist.
func (r *PostgresRepository) Update(ctx context.Context, id string, u Update) error {
	const query = `
		UPDATE moments
		SET status             = $1,
		    video_url          = $2,
		    thumbnail_url      = $3,
		    duration_seconds   = $4,
		    width              = $5,
		    height             = $6,
		    format             = $7,
		    codec              = $8,
		    has_audio          = $9,
		    size_bytes         = $10,
		    processing_time_ms = $11,
		    failure_reason     = '',
		    updated_at         = now()
		WHERE id = $12`

	return r.exec(ctx, "update", id, query,
		string(u.Status), u.VideoURL, u.ThumbnailURL,
		u.Video.DurationSeconds, u.Video.Width, u.Video.Height, u.Video.Format, u.Video.Codec,
		u.Video.HasAudio, u.Video.SizeBytes, u.ProcessingTimeMs, id,
	)
}

// SetStatus moves the moment to status.
func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status Status) error {
	const query = `UPDATE moments SET status = $1, updated_at = now() WHERE id = $2`
	return r.exec(ctx, "set status of", id, query, string(status), id)
}

// MarkFailed sets the moment status to "failed" and records reason.
// It is a best-effort call: callers may log and ignore the error so as not
// to mask the original failure.
func (r *PostgresRepository) MarkFailed(ctx context.Context, id, reason string) error {
	const query = `UPDATE moments SET status = $1, failure_reason = $2, updated_at = now() WHERE id = $3`
	return r.exec(ctx, "mark failed", id, query, string(StatusFailed), reason, id)
}

// Delete removes the moment and, by cascade, its metrics.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM moments WHERE id = $1`
	return r.exec(ctx, "delete", id, query, id)
}

func (r *PostgresRepository) exec(ctx context.Context, op, id, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s moment %s: %w", op, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for moment %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("moment %s: %w", id, ErrNotFound)
	}
	return nil
}

// FindByOwnerID lists the owner's moments, newest first.
func (r *PostgresRepository) FindByOwnerID(ctx context.Context, ownerID string, page Page) ([]Moment, error) {
	query := `SELECT ` + momentColumns + `
FROM   moments
WHERE  owner_id = $1
ORDER  BY created_at DESC, id DESC
LIMIT  $2 OFFSET $3`
	return r.list(ctx, query, ownerID, page)
}

// FindByStatus lists moments in the given status, newest first.
func (r *PostgresRepository) FindByStatus(ctx context.Context, status Status, page Page) ([]Moment, error) {
	query := `SELECT ` + momentColumns + `
FROM   moments
WHERE  status = $1
ORDER  BY created_at DESC, id DESC
LIMIT  $2 OFFSET $3`
	return r.list(ctx, query, string(status), page)
}

func (r *PostgresRepository) list(ctx context.Context, query, key string, page Page) ([]Moment, error) {
	page = page.Normalize()
	rows, err := r.db.QueryContext(ctx, query, key, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list moments: %w", err)
	}
	defer rows.Close()

	out := []Moment{}
	for rows.Next() {
		m, err := scanMoment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan moment: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list moments: %w", err)
	}
	return out, nil
}

// SaveMetrics upserts the engagement counters of a moment.
func (r *PostgresRepository) SaveMetrics(ctx context.Context, m Metrics) error {
	if !m.valid() {
		return fmt.Errorf("%w: metrics need a moment id and non-negative counters", ErrInvalid)
	}

	const query = `
INSERT INTO moment_metrics (moment_id, views, likes, comments, shares, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (moment_id) DO UPDATE
SET views = EXCLUDED.views,
    likes = EXCLUDED.likes,
    comments = EXCLUDED.comments,
    shares = EXCLUDED.shares,
    updated_at = EXCLUDED.updated_at`

	if _, err := r.db.ExecContext(ctx, query, m.MomentID, m.Views, m.Likes, m.Comments, m.Shares); err != nil {
		if pqCode(err) == pgForeignKeyViolation {
			return fmt.Errorf("save metrics for moment %s: %w", m.MomentID, ErrNotFound)
		}
		return fmt.Errorf("save metrics for moment %s: %w", m.MomentID, err)
	}
	return nil
}

// FindMetrics returns the counters of a moment. A moment without recorded
// metrics has zero counters; a missing moment is ErrNotFound.
func (r *PostgresRepository) FindMetrics(ctx context.Context, momentID string) (Metrics, error) {
	const query = `
SELECT m.id,
       COALESCE(mm.views, 0), COALESCE(mm.likes, 0), COALESCE(mm.comments, 0), COALESCE(mm.shares, 0),
       COALESCE(mm.updated_at, m.updated_at)
FROM   moments m
LEFT   JOIN moment_metrics mm ON mm.moment_id = m.id
WHERE  m.id = $1`

	var out Metrics
	err := r.db.QueryRowContext(ctx, query, momentID).
		Scan(&out.MomentID, &out.Views, &out.Likes, &out.Comments, &out.Shares, &out.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Metrics{}, fmt.Errorf("moment %s: %w", momentID, ErrNotFound)
		}
		return Metrics{}, fmt.Errorf("find metrics for moment %s: %w", momentID, err)
	}
	return out, nil
}

// OwnerSummary aggregates the owner's moment count and engagement totals.
// An owner without moments yields a zero summary.
func (r *PostgresRepository) OwnerSummary(ctx context.Context, ownerID string) (Summary, error) {
	const query = `
SELECT COUNT(m.id),
       COALESCE(SUM(mm.views), 0), COALESCE(SUM(mm.likes), 0),
       COALESCE(SUM(mm.comments), 0), COALESCE(SUM(mm.shares), 0)
FROM   moments m
LEFT   JOIN moment_metrics mm ON mm.moment_id = m.id
WHERE  m.owner_id = $1`

	s := Summary{OwnerID: ownerID}
	err := r.db.QueryRowContext(ctx, query, ownerID).
		Scan(&s.Moments, &s.Views, &s.Likes, &s.Comments, &s.Shares)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize owner %s: %w", ownerID, err)
	}
	return s, nil
}
