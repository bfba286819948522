package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/weddingphotos/server/internal/models"
)

// UserRepository implements UserRepo for PostgreSQL/SQLite
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, display_name, created_at, last_login_at, is_active`

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	var user models.User
	var lastLogin sql.NullTime
	if err := row.Scan(&user.ID, &user.Email, &user.DisplayName, &user.CreatedAt, &lastLogin, &user.IsActive); err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLoginAt = &t
	}
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return user, err
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return user, err
}

func (r *UserRepository) Add(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (id, email, display_name, created_at, last_login_at, is_active)
			  VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.DisplayName, user.CreatedAt, user.LastLoginAt, user.IsActive,
	)
	return err
}

func (r *UserRepository) RecordLogin(ctx context.Context, id string) error {
	query := `UPDATE users SET last_login_at = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	return err
}
