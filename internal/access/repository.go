package access

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/live/internal/models"
)

// Repository persists webinar access audit rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an access audit repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends an audit row. Rows are never updated.
func (r *Repository) Insert(ctx context.Context, a *models.WebinarAccess) error {
	const q = `INSERT INTO webinar_access (webinar_id, user_id, accessed_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`
	return r.pool.QueryRow(ctx, q, a.WebinarID, a.UserID, a.AccessedAt, a.IPAddress, a.UserAgent).Scan(&a.ID)
}

// ListByWebinar returns the most recent audit rows of a webinar.
func (r *Repository) ListByWebinar(ctx context.Context, webinarID int64, limit int) ([]models.WebinarAccess, error) {
	const q = `SELECT id, webinar_id, user_id, accessed_at, ip_address, user_agent
		FROM webinar_access WHERE webinar_id = $1 ORDER BY accessed_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, q, webinarID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.WebinarAccess
	for rows.Next() {
		var a models.WebinarAccess
		if err := rows.Scan(&a.ID, &a.WebinarID, &a.UserID, &a.AccessedAt, &a.IPAddress, &a.UserAgent); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}
