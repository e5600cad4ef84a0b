package auth

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/pkg/database"
)

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, mobile, name, COALESCE(email,''), COALESCE(city,''), COALESCE(state,''), COALESCE(country,''),
	role, COALESCE(password_hash,''), is_mobile_verified, is_email_verified, is_active, created_at, last_login_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Mobile, &u.Name, &u.Email, &u.City, &u.State, &u.Country,
		&u.Role, &u.PasswordHash, &u.IsMobileVerified, &u.IsEmailVerified, &u.IsActive, &u.CreatedAt, &u.LastLoginAt)
	if err != nil {
		return nil, database.NoRows(err)
	}
	return &u, nil
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByMobile returns a user by normalised mobile number.
func (r *Repository) GetByMobile(ctx context.Context, mobile string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE mobile = $1`, mobile))
}

// Profile holds the contact fields supplied at login.
type Profile struct {
	Name    string
	Email   string
	City    string
	State   string
	Country string
}

// Create inserts a new user that has just logged in.
func (r *Repository) Create(ctx context.Context, mobile string, p Profile, role models.Role) (*models.User, error) {
	q := `INSERT INTO users (mobile, name, email, city, state, country, role, is_mobile_verified, last_login_at)
		VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''), NULLIF($5,''), NULLIF($6,''), $7, TRUE, NOW())
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, mobile, p.Name, p.Email, p.City, p.State, p.Country, string(role)))
}

// UpdateOnLogin refreshes contact fields and last_login_at. Empty fields keep their stored value.
func (r *Repository) UpdateOnLogin(ctx context.Context, id int64, p Profile) (*models.User, error) {
	q := `UPDATE users SET
			name = COALESCE(NULLIF($2,''), name),
			email = COALESCE(NULLIF($3,''), email),
			city = COALESCE(NULLIF($4,''), city),
			state = COALESCE(NULLIF($5,''), state),
			country = COALESCE(NULLIF($6,''), country),
			last_login_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, id, p.Name, p.Email, p.City, p.State, p.Country))
}

// TouchLogin sets last_login_at to now.
func (r *Repository) TouchLogin(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, id)
	return err
}

// List returns all users ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *u)
	}
	return list, rows.Err()
}

// SetRole changes a user's role.
func (r *Repository) SetRole(ctx context.Context, id int64, role models.Role) (*models.User, error) {
	q := `UPDATE users SET role = $2 WHERE id = $1 RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, id, string(role)))
}

// SetPassword stores a bcrypt hash for dashboard login.
func (r *Repository) SetPassword(ctx context.Context, id int64, hash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// Deactivate marks a user inactive. Users are never deleted.
func (r *Repository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}
