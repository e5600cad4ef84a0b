package registrations

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/pkg/database"
)

// Repository handles registration persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const registrationColumns = `id, webinar_id, user_id, subscription_used, amount_paid_cents, is_active, registered_at, updated_at`

func scanRegistration(row interface{ Scan(...interface{}) error }) (*models.Registration, error) {
	var reg models.Registration
	err := row.Scan(&reg.ID, &reg.WebinarID, &reg.UserID, &reg.SubscriptionUsed, &reg.AmountPaidCents,
		&reg.IsActive, &reg.RegisteredAt, &reg.UpdatedAt)
	if err != nil {
		return nil, database.NoRows(err)
	}
	return &reg, nil
}

// Create inserts an active registration. A second active registration for the
// same webinar and user violates uq_webinar_registrations_active.
func (r *Repository) Create(ctx context.Context, reg *models.Registration) error {
	const q = `INSERT INTO webinar_registrations (webinar_id, user_id, subscription_used, amount_paid_cents)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_active, registered_at, updated_at`
	return r.pool.QueryRow(ctx, q, reg.WebinarID, reg.UserID, string(reg.SubscriptionUsed), reg.AmountPaidCents).
		Scan(&reg.ID, &reg.IsActive, &reg.RegisteredAt, &reg.UpdatedAt)
}

// GetActive returns the active registration of a user for a webinar.
func (r *Repository) GetActive(ctx context.Context, webinarID, userID int64) (*models.Registration, error) {
	q := `SELECT ` + registrationColumns + ` FROM webinar_registrations
		WHERE webinar_id = $1 AND user_id = $2 AND is_active`
	return scanRegistration(r.pool.QueryRow(ctx, q, webinarID, userID))
}

// Cancel deactivates the active registration of a user for a webinar.
func (r *Repository) Cancel(ctx context.Context, webinarID, userID int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE webinar_registrations SET is_active = FALSE, updated_at = NOW() WHERE webinar_id = $1 AND user_id = $2 AND is_active`,
		webinarID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// ListActiveByUser returns a user's active registrations, newest first.
func (r *Repository) ListActiveByUser(ctx context.Context, userID int64) ([]models.Registration, error) {
	q := `SELECT ` + registrationColumns + ` FROM webinar_registrations WHERE user_id = $1 AND is_active ORDER BY registered_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *reg)
	}
	return list, rows.Err()
}

// CountActiveByWebinar returns the number of active registrations for a webinar.
func (r *Repository) CountActiveByWebinar(ctx context.Context, webinarID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM webinar_registrations WHERE webinar_id = $1 AND is_active`, webinarID).Scan(&n)
	return n, err
}
