package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/weddingphotos/server/internal/models"
)

// DBTX is the subset of *sql.DB the repositories use. The traced wrapper in
// the observability package satisfies it too.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// UserRepo defines the interface for user persistence operations
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Add(ctx context.Context, user *models.User) error
	RecordLogin(ctx context.Context, id string) error
}

// WebSessionRepo defines the interface for web session persistence
type WebSessionRepo interface {
	GetByID(ctx context.Context, id string) (*models.WebSession, error)
	Add(ctx context.Context, session *models.WebSession) error
	Touch(ctx context.Context, id string) error
	Invalidate(ctx context.Context, id string) error
	CleanupExpired(ctx context.Context) (int, error)
}

// MagicLinkRepo defines the interface for sign-in link persistence
type MagicLinkRepo interface {
	Add(ctx context.Context, link *models.MagicLink) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.MagicLink, error)
	GetLatestForEmail(ctx context.Context, email string) (*models.MagicLink, error)
	CountRecentForEmail(ctx context.Context, email string, since time.Time) (int, error)
	RecordAttempt(ctx context.Context, id string) error
	MarkUsed(ctx context.Context, id string) (bool, error)
	ExpireOld(ctx context.Context) (int, error)
}

// AlbumRepo defines the interface for album persistence
type AlbumRepo interface {
	GetByID(ctx context.Context, id string) (*models.Album, error)
	GetByOwner(ctx context.Context, ownerUserID string) (*models.Album, error)
	GetByProviderID(ctx context.Context, providerAlbumID string) (*models.Album, error)
	Add(ctx context.Context, album *models.Album) error
	ListVisible(ctx context.Context, userID string, offset, limit int) ([]*models.Album, error)
	CountVisible(ctx context.Context, userID string) (int, error)
	RefreshStats(ctx context.Context, albumID string) error
}

// MediaItemRepo defines the interface for media item mirror persistence
type MediaItemRepo interface {
	GetByID(ctx context.Context, id string) (*models.MediaItem, error)
	GetByProviderID(ctx context.Context, providerItemID string) (*models.MediaItem, error)
	Upsert(ctx context.Context, items []*models.MediaItem) error
	ListByAlbum(ctx context.Context, albumID string, offset, limit int) ([]*models.MediaItem, error)
	CountByAlbum(ctx context.Context, albumID string) (int, error)
	ListGallery(ctx context.Context, userID string, offset, limit int) ([]*models.MediaItem, error)
	CountGallery(ctx context.Context, userID string) (int, error)
}
