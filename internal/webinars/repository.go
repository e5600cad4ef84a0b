package webinars

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/pkg/database"
)

// Repository handles webinar persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a webinar repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const webinarColumns = `id, title, description, scheduled_at, duration_minutes, stream_url, status,
	required_tier, price_cents, host_user_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWebinar(row rowScanner) (*models.Webinar, error) {
	var w models.Webinar
	err := row.Scan(&w.ID, &w.Title, &w.Description, &w.ScheduledAt, &w.DurationMinutes, &w.StreamURL, &w.Status,
		&w.RequiredTier, &w.PriceCents, &w.HostUserID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, database.NoRows(err)
	}
	return &w, nil
}

func (r *Repository) list(ctx context.Context, q string, args ...interface{}) ([]models.Webinar, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Webinar
	for rows.Next() {
		w, err := scanWebinar(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *w)
	}
	return list, rows.Err()
}

// Create inserts a new webinar.
func (r *Repository) Create(ctx context.Context, w *models.Webinar) error {
	const q = `INSERT INTO webinar_schedules (title, description, scheduled_at, duration_minutes, stream_url, status, required_tier, price_cents, host_user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, w.Title, w.Description, w.ScheduledAt, w.DurationMinutes, w.StreamURL,
		string(w.Status), string(w.RequiredTier), w.PriceCents, w.HostUserID).
		Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
}

// GetByID returns a webinar by ID.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Webinar, error) {
	return scanWebinar(r.pool.QueryRow(ctx, `SELECT `+webinarColumns+` FROM webinar_schedules WHERE id = $1`, id))
}

// HostOf returns the host user id of a webinar.
func (r *Repository) HostOf(ctx context.Context, id int64) (int64, error) {
	var host int64
	err := r.pool.QueryRow(ctx, `SELECT host_user_id FROM webinar_schedules WHERE id = $1`, id).Scan(&host)
	return host, database.NoRows(err)
}

// ListUpcoming returns webinars that have not started yet or whose join window is still open.
func (r *Repository) ListUpcoming(ctx context.Context, now time.Time, window time.Duration) ([]models.Webinar, error) {
	q := `SELECT ` + webinarColumns + ` FROM webinar_schedules
		WHERE scheduled_at >= $1 AND status <> 'cancelled' ORDER BY scheduled_at`
	return r.list(ctx, q, now.Add(-window))
}

// ListByHost returns webinars hosted by a user, newest first.
func (r *Repository) ListByHost(ctx context.Context, hostID int64) ([]models.Webinar, error) {
	q := `SELECT ` + webinarColumns + ` FROM webinar_schedules WHERE host_user_id = $1 ORDER BY scheduled_at DESC`
	return r.list(ctx, q, hostID)
}

// ListRegisteredBy returns webinars the user holds an active registration for.
func (r *Repository) ListRegisteredBy(ctx context.Context, userID int64) ([]models.Webinar, error) {
	q := `SELECT w.id, w.title, w.description, w.scheduled_at, w.duration_minutes, w.stream_url, w.status,
			w.required_tier, w.price_cents, w.host_user_id, w.created_at, w.updated_at
		FROM webinar_schedules w
		JOIN webinar_registrations r ON r.webinar_id = w.id AND r.is_active
		WHERE r.user_id = $1 ORDER BY w.scheduled_at`
	return r.list(ctx, q, userID)
}

// Update writes editable fields of w.
func (r *Repository) Update(ctx context.Context, w *models.Webinar) error {
	const q = `UPDATE webinar_schedules SET title = $2, description = $3, scheduled_at = $4, duration_minutes = $5,
			stream_url = $6, required_tier = $7, price_cents = $8, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, w.ID, w.Title, w.Description, w.ScheduledAt, w.DurationMinutes,
		w.StreamURL, string(w.RequiredTier), w.PriceCents).Scan(&w.UpdatedAt)
	return database.NoRows(err)
}

// SetStatus moves a webinar from one status to another. Returns database.ErrNotFound
// if the webinar is missing or no longer in status from.
func (r *Repository) SetStatus(ctx context.Context, id int64, from, to models.WebinarStatus) (time.Time, error) {
	var updated time.Time
	err := r.pool.QueryRow(ctx,
		`UPDATE webinar_schedules SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2 RETURNING updated_at`,
		id, string(from), string(to)).Scan(&updated)
	return updated, database.NoRows(err)
}
