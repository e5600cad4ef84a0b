package presence

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/pkg/database"
)

// Repository persists participants in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a participant repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const participantColumns = `id, webinar_id, user_id, connection_id, role, connected_at`

// Upsert inserts p or replaces the row of the same (user, webinar) pair.
// It fills p.ID and p.ConnectedAt and returns the connection id that was replaced, if any.
func (r *Repository) Upsert(ctx context.Context, p *models.Participant) (string, error) {
	const q = `WITH prev AS (
			SELECT connection_id FROM participants WHERE user_id = $1 AND webinar_id = $2
		)
		INSERT INTO participants (user_id, webinar_id, connection_id, role, connected_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, webinar_id) DO UPDATE
			SET connection_id = EXCLUDED.connection_id, role = EXCLUDED.role, connected_at = EXCLUDED.connected_at
		RETURNING id, connected_at, COALESCE((SELECT connection_id FROM prev), '')`
	var prev string
	err := r.pool.QueryRow(ctx, q, p.UserID, p.WebinarID, p.ConnectionID, string(p.Role)).
		Scan(&p.ID, &p.ConnectedAt, &prev)
	if err != nil {
		return "", err
	}
	return prev, nil
}

// GetByConnection returns the participant of a connection.
func (r *Repository) GetByConnection(ctx context.Context, connID string) (*models.Participant, error) {
	q := `SELECT ` + participantColumns + ` FROM participants WHERE connection_id = $1`
	var p models.Participant
	err := r.pool.QueryRow(ctx, q, connID).
		Scan(&p.ID, &p.WebinarID, &p.UserID, &p.ConnectionID, &p.Role, &p.ConnectedAt)
	if err != nil {
		return nil, database.NoRows(err)
	}
	return &p, nil
}

// GetByUserAndWebinar returns the participant row of a user in a webinar.
func (r *Repository) GetByUserAndWebinar(ctx context.Context, userID, webinarID int64) (*models.Participant, error) {
	q := `SELECT ` + participantColumns + ` FROM participants WHERE user_id = $1 AND webinar_id = $2`
	var p models.Participant
	err := r.pool.QueryRow(ctx, q, userID, webinarID).
		Scan(&p.ID, &p.WebinarID, &p.UserID, &p.ConnectionID, &p.Role, &p.ConnectedAt)
	if err != nil {
		return nil, database.NoRows(err)
	}
	return &p, nil
}

// DeleteByConnection removes and returns the participant of a connection.
func (r *Repository) DeleteByConnection(ctx context.Context, connID string) (*models.Participant, error) {
	q := `DELETE FROM participants WHERE connection_id = $1 RETURNING ` + participantColumns
	var p models.Participant
	err := r.pool.QueryRow(ctx, q, connID).
		Scan(&p.ID, &p.WebinarID, &p.UserID, &p.ConnectionID, &p.Role, &p.ConnectedAt)
	if err != nil {
		return nil, database.NoRows(err)
	}
	return &p, nil
}

// DeleteByUser removes and returns every participant row of a user.
func (r *Repository) DeleteByUser(ctx context.Context, userID int64) ([]models.Participant, error) {
	q := `DELETE FROM participants WHERE user_id = $1 RETURNING ` + participantColumns
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.WebinarID, &p.UserID, &p.ConnectionID, &p.Role, &p.ConnectedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// Counts returns (viewers, participants) of a webinar.
func (r *Repository) Counts(ctx context.Context, webinarID int64) (int, int, error) {
	const q = `SELECT COUNT(*) FILTER (WHERE role = 'viewer'), COUNT(*) FROM participants WHERE webinar_id = $1`
	var viewers, participants int
	if err := r.pool.QueryRow(ctx, q, webinarID).Scan(&viewers, &participants); err != nil {
		return 0, 0, err
	}
	return viewers, participants, nil
}

// ExistsForUser reports whether the user has any participant row.
func (r *Repository) ExistsForUser(ctx context.Context, userID int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM participants WHERE user_id = $1)`, userID).Scan(&ok)
	return ok, err
}

// DeleteAll removes every participant row.
func (r *Repository) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM participants`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
