package questions

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/pkg/database"
)

// Repository handles question persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a questions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const questionColumns = `id, webinar_id, user_id, content, approved, answered, created_at`

func scanQuestion(row interface{ Scan(...interface{}) error }) (*models.Question, error) {
	var q models.Question
	if err := row.Scan(&q.ID, &q.WebinarID, &q.UserID, &q.Content, &q.Approved, &q.Answered, &q.CreatedAt); err != nil {
		return nil, database.NoRows(err)
	}
	return &q, nil
}

// Create inserts a new, unapproved question.
func (r *Repository) Create(ctx context.Context, q *models.Question) error {
	const query = `INSERT INTO questions (webinar_id, user_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, approved, answered, created_at`
	return r.pool.QueryRow(ctx, query, q.WebinarID, q.UserID, q.Content).
		Scan(&q.ID, &q.Approved, &q.Answered, &q.CreatedAt)
}

// GetByID returns a question by ID.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Question, error) {
	return scanQuestion(r.pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id))
}

// ListByWebinar returns questions of a webinar, oldest first. approvedOnly hides the moderation queue.
func (r *Repository) ListByWebinar(ctx context.Context, webinarID int64, approvedOnly bool) ([]models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE webinar_id = $1`
	if approvedOnly {
		query += ` AND approved`
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY created_at`, webinarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *q)
	}
	return list, rows.Err()
}

// Approve marks a question approved. Returns database.ErrNotFound if it already was.
func (r *Repository) Approve(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE questions SET approved = TRUE WHERE id = $1 AND NOT approved`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// MarkAnswered marks a question answered.
func (r *Repository) MarkAnswered(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE questions SET answered = TRUE WHERE id = $1`, id)
	return err
}

// CountByWebinar returns the number of questions for a webinar.
func (r *Repository) CountByWebinar(ctx context.Context, webinarID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions WHERE webinar_id = $1`, webinarID).Scan(&n)
	return n, err
}
