package streams

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/pkg/database"
)

// Repository handles stream_sessions persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a stream sessions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const sessionColumns = `id, webinar_id, started_at, ended_at, peak_viewers, peak_participants, updated_at`

func scanSession(row interface{ Scan(...interface{}) error }) (*models.StreamSession, error) {
	var s models.StreamSession
	err := row.Scan(&s.ID, &s.WebinarID, &s.StartedAt, &s.EndedAt, &s.PeakViewers, &s.PeakParticipants, &s.UpdatedAt)
	if err != nil {
		return nil, database.NoRows(err)
	}
	return &s, nil
}

// GetActiveByWebinar returns the open (no ended_at) session of a webinar, or database.ErrNotFound.
func (r *Repository) GetActiveByWebinar(ctx context.Context, webinarID int64) (*models.StreamSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM stream_sessions
		WHERE webinar_id = $1 AND ended_at IS NULL ORDER BY started_at DESC LIMIT 1`
	return scanSession(r.pool.QueryRow(ctx, q, webinarID))
}

// Start returns the open session of a webinar, creating one if none exists.
func (r *Repository) Start(ctx context.Context, webinarID int64) (*models.StreamSession, error) {
	s, err := r.GetActiveByWebinar(ctx, webinarID)
	if !errors.Is(err, database.ErrNotFound) {
		return s, err
	}
	q := `INSERT INTO stream_sessions (webinar_id) VALUES ($1) RETURNING ` + sessionColumns
	return scanSession(r.pool.QueryRow(ctx, q, webinarID))
}

// End closes the open session of a webinar. Returns database.ErrNotFound if none is open.
func (r *Repository) End(ctx context.Context, webinarID int64) (*models.StreamSession, error) {
	q := `UPDATE stream_sessions SET ended_at = NOW(), updated_at = NOW()
		WHERE webinar_id = $1 AND ended_at IS NULL RETURNING ` + sessionColumns
	return scanSession(r.pool.QueryRow(ctx, q, webinarID))
}

// RaisePeaks lifts the peak counters of the open session; lower values never overwrite a peak.
func (r *Repository) RaisePeaks(ctx context.Context, webinarID int64, viewers, participants int) error {
	const q = `UPDATE stream_sessions
		SET peak_viewers = GREATEST(peak_viewers, $2), peak_participants = GREATEST(peak_participants, $3), updated_at = NOW()
		WHERE webinar_id = $1 AND ended_at IS NULL`
	_, err := r.pool.Exec(ctx, q, webinarID, viewers, participants)
	return err
}

// ListByWebinar returns every session of a webinar, newest first.
func (r *Repository) ListByWebinar(ctx context.Context, webinarID int64) ([]models.StreamSession, error) {
	return r.list(ctx, `SELECT `+sessionColumns+` FROM stream_sessions WHERE webinar_id = $1 ORDER BY started_at DESC`, webinarID)
}

// ListOpen returns the sessions that have not ended, across all webinars.
func (r *Repository) ListOpen(ctx context.Context) ([]models.StreamSession, error) {
	return r.list(ctx, `SELECT `+sessionColumns+` FROM stream_sessions WHERE ended_at IS NULL ORDER BY started_at`)
}

func (r *Repository) list(ctx context.Context, q string, args ...interface{}) ([]models.StreamSession, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.StreamSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}
