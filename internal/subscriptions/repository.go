package subscriptions

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/pkg/database"
)

// Repository handles subscription persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a subscriptions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const subscriptionColumns = `id, user_id, tier, start_date, end_date, is_active, created_at`

// Create inserts a subscription.
func (r *Repository) Create(ctx context.Context, s *models.Subscription) error {
	const q = `INSERT INTO user_subscriptions (user_id, tier, start_date, end_date, is_active)
		VALUES ($1, $2, $3, $4, TRUE) RETURNING id, is_active, created_at`
	return r.pool.QueryRow(ctx, q, s.UserID, string(s.Tier), s.StartDate, s.EndDate).
		Scan(&s.ID, &s.IsActive, &s.CreatedAt)
}

// Current returns the most recently created active subscription that has not ended at now.
func (r *Repository) Current(ctx context.Context, userID int64, now time.Time) (*models.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM user_subscriptions
		WHERE user_id = $1 AND is_active AND start_date <= $2 AND end_date > $2
		ORDER BY created_at DESC LIMIT 1`
	var s models.Subscription
	err := r.pool.QueryRow(ctx, q, userID, now).
		Scan(&s.ID, &s.UserID, &s.Tier, &s.StartDate, &s.EndDate, &s.IsActive, &s.CreatedAt)
	if err != nil {
		return nil, database.NoRows(err)
	}
	return &s, nil
}

// ListByUser returns every subscription of a user, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]models.Subscription, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+subscriptionColumns+` FROM user_subscriptions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Subscription
	for rows.Next() {
		var s models.Subscription
		if err := rows.Scan(&s.ID, &s.UserID, &s.Tier, &s.StartDate, &s.EndDate, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// Deactivate turns a subscription off.
func (r *Repository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE user_subscriptions SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}
