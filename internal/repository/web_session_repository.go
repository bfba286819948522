package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/weddingphotos/server/internal/models"
)

// WebSessionRepository implements WebSessionRepo for PostgreSQL/SQLite
type WebSessionRepository struct {
	db DBTX
}

// NewWebSessionRepository creates a new WebSessionRepository
func NewWebSessionRepository(db DBTX) *WebSessionRepository {
	return &WebSessionRepository{db: db}
}

func (r *WebSessionRepository) GetByID(ctx context.Context, id string) (*models.WebSession, error) {
	query := `SELECT id, user_id, magic_link_id, created_at, expires_at, last_activity_at, ip_address, user_agent, is_active
			  FROM web_sessions WHERE id = $1`

	var session models.WebSession
	var magicLinkID, ipAddress, userAgent sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID, &session.UserID, &magicLinkID, &session.CreatedAt,
		&session.ExpiresAt, &session.LastActivityAt, &ipAddress,
		&userAgent, &session.IsActive,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if magicLinkID.Valid {
		session.MagicLinkID = &magicLinkID.String
	}
	session.IPAddress = ipAddress.String
	session.UserAgent = userAgent.String
	return &session, nil
}

func (r *WebSessionRepository) Add(ctx context.Context, session *models.WebSession) error {
	query := `INSERT INTO web_sessions (id, user_id, magic_link_id, created_at, expires_at, last_activity_at, ip_address, user_agent, is_active)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	var magicLinkID interface{}
	if session.MagicLinkID != nil {
		magicLinkID = *session.MagicLinkID
	}

	_, err := r.db.ExecContext(ctx, query,
		session.ID, session.UserID, magicLinkID, session.CreatedAt,
		session.ExpiresAt, session.LastActivityAt, session.IPAddress,
		session.UserAgent, session.IsActive,
	)
	return err
}

func (r *WebSessionRepository) Touch(ctx context.Context, id string) error {
	query := `UPDATE web_sessions SET last_activity_at = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	return err
}

func (r *WebSessionRepository) Invalidate(ctx context.Context, id string) error {
	query := `UPDATE web_sessions SET is_active = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, false, id)
	return err
}

func (r *WebSessionRepository) CleanupExpired(ctx context.Context) (int, error) {
	query := `DELETE FROM web_sessions WHERE expires_at <= $1 OR is_active = $2`

	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), false)
	if err != nil {
		return 0, err
	}
	rows, err := result.RowsAffected()
	return int(rows), err
}
