package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/weddingphotos/server/internal/models"
)

// MagicLinkRepository implements MagicLinkRepo
type MagicLinkRepository struct {
	db DBTX
}

// NewMagicLinkRepository creates a new magic link repository
func NewMagicLinkRepository(db DBTX) *MagicLinkRepository {
	return &MagicLinkRepository{db: db}
}

const magicLinkColumns = `id, user_id, email, token_hash, code_hash, created_at, expires_at, used, used_at, attempts, ip_address`

func scanMagicLink(row interface{ Scan(...interface{}) error }) (*models.MagicLink, error) {
	link := &models.MagicLink{}
	var usedAt sql.NullTime
	var ipAddress sql.NullString

	err := row.Scan(
		&link.ID,
		&link.UserID,
		&link.Email,
		&link.TokenHash,
		&link.CodeHash,
		&link.CreatedAt,
		&link.ExpiresAt,
		&link.Used,
		&usedAt,
		&link.Attempts,
		&ipAddress,
	)
	if err != nil {
		return nil, err
	}

	if usedAt.Valid {
		t := usedAt.Time
		link.UsedAt = &t
	}
	link.IPAddress = ipAddress.String
	return link, nil
}

// Add stores a new magic link
func (r *MagicLinkRepository) Add(ctx context.Context, link *models.MagicLink) error {
	query := `
		INSERT INTO magic_links (` + magicLinkColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		link.ID,
		link.UserID,
		link.Email,
		link.TokenHash,
		link.CodeHash,
		link.CreatedAt,
		link.ExpiresAt,
		link.Used,
		link.UsedAt,
		link.Attempts,
		link.IPAddress,
	)
	return err
}

// GetByTokenHash retrieves a magic link by the hash of its URL token
func (r *MagicLinkRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.MagicLink, error) {
	query := `SELECT ` + magicLinkColumns + ` FROM magic_links WHERE token_hash = $1`

	link, err := scanMagicLink(r.db.QueryRowContext(ctx, query, tokenHash))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return link, err
}

// GetLatestForEmail returns the newest link issued to an email
func (r *MagicLinkRepository) GetLatestForEmail(ctx context.Context, email string) (*models.MagicLink, error) {
	query := `SELECT ` + magicLinkColumns + ` FROM magic_links
			  WHERE email = $1 ORDER BY created_at DESC LIMIT 1`

	link, err := scanMagicLink(r.db.QueryRowContext(ctx, query, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return link, err
}

// CountRecentForEmail counts links created for an email since a given time
func (r *MagicLinkRepository) CountRecentForEmail(ctx context.Context, email string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM magic_links WHERE email = $1 AND created_at > $2`

	var count int
	err := r.db.QueryRowContext(ctx, query, email, since).Scan(&count)
	return count, err
}

// RecordAttempt increments the wrong-code counter
func (r *MagicLinkRepository) RecordAttempt(ctx context.Context, id string) error {
	query := `UPDATE magic_links SET attempts = attempts + 1 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// MarkUsed consumes a link. It returns false when another request consumed it first.
func (r *MagicLinkRepository) MarkUsed(ctx context.Context, id string) (bool, error) {
	query := `UPDATE magic_links SET used = $1, used_at = $2 WHERE id = $3 AND used = $4`
	result, err := r.db.ExecContext(ctx, query, true, time.Now().UTC(), id, false)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows == 1, err
}

// ExpireOld deletes links that have expired
func (r *MagicLinkRepository) ExpireOld(ctx context.Context) (int, error) {
	query := `DELETE FROM magic_links WHERE expires_at < $1`
	result, err := r.db.ExecContext(ctx, query, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	rows, err := result.RowsAffected()
	return int(rows), err
}
