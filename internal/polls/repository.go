package polls

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/pkg/database"
)

// Repository handles poll persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a polls repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const pollColumns = `id, webinar_id, question, option_a, option_b, option_c, option_d, launched, closed, created_at`

func scanPoll(row interface{ Scan(...interface{}) error }) (*models.Poll, error) {
	var p models.Poll
	err := row.Scan(&p.ID, &p.WebinarID, &p.Question, &p.OptionA, &p.OptionB, &p.OptionC, &p.OptionD,
		&p.Launched, &p.Closed, &p.CreatedAt)
	if err != nil {
		return nil, database.NoRows(err)
	}
	return &p, nil
}

// Create inserts a new poll.
func (r *Repository) Create(ctx context.Context, p *models.Poll) error {
	const query = `INSERT INTO polls (webinar_id, question, option_a, option_b, option_c, option_d)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, launched, closed, created_at`
	return r.pool.QueryRow(ctx, query, p.WebinarID, p.Question, p.OptionA, p.OptionB, p.OptionC, p.OptionD).
		Scan(&p.ID, &p.Launched, &p.Closed, &p.CreatedAt)
}

// GetByID returns a poll by ID.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Poll, error) {
	return scanPoll(r.pool.QueryRow(ctx, `SELECT `+pollColumns+` FROM polls WHERE id = $1`, id))
}

// ListByWebinar returns the polls of a webinar, oldest first.
func (r *Repository) ListByWebinar(ctx context.Context, webinarID int64) ([]models.Poll, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+pollColumns+` FROM polls WHERE webinar_id = $1 ORDER BY id`, webinarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Poll
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

// Launch opens a poll for answers. Returns database.ErrNotFound if it was already launched.
func (r *Repository) Launch(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE polls SET launched = TRUE WHERE id = $1 AND NOT launched`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// Close stops a launched poll. Returns database.ErrNotFound if it was not open.
func (r *Repository) Close(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE polls SET closed = TRUE WHERE id = $1 AND launched AND NOT closed`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// Answer records a user's poll answer (A/B/C/D). One per user per poll; answering again replaces it.
func (r *Repository) Answer(ctx context.Context, pollID, userID int64, option string) error {
	const query = `INSERT INTO poll_answers (poll_id, user_id, option) VALUES ($1, $2, $3)
		ON CONFLICT (poll_id, user_id) DO UPDATE SET option = EXCLUDED.option, answered_at = NOW()`
	_, err := r.pool.Exec(ctx, query, pollID, userID, option)
	return err
}

// Tally counts answers per option.
func (r *Repository) Tally(ctx context.Context, pollID int64) (models.PollTally, error) {
	const query = `SELECT
		COUNT(*) FILTER (WHERE option = 'A'),
		COUNT(*) FILTER (WHERE option = 'B'),
		COUNT(*) FILTER (WHERE option = 'C'),
		COUNT(*) FILTER (WHERE option = 'D')
		FROM poll_answers WHERE poll_id = $1`
	var t models.PollTally
	err := r.pool.QueryRow(ctx, query, pollID).Scan(&t.A, &t.B, &t.C, &t.D)
	return t, err
}
