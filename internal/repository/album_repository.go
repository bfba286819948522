package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/weddingphotos/server/internal/models"
)

// AlbumRepository implements AlbumRepo for PostgreSQL/SQLite
type AlbumRepository struct {
	db DBTX
}

// NewAlbumRepository creates a new AlbumRepository
func NewAlbumRepository(db DBTX) *AlbumRepository {
	return &AlbumRepository{db: db}
}

const albumColumns = `id, provider_album_id, owner_user_id, title, product_url, is_public, is_writeable,
	created_by_app, media_items_count, cover_photo_base_url, created_at, updated_at`

func scanAlbum(row interface{ Scan(...interface{}) error }) (*models.Album, error) {
	var album models.Album
	var productURL, coverURL sql.NullString
	err := row.Scan(
		&album.ID, &album.ProviderAlbumID, &album.OwnerUserID, &album.Title, &productURL,
		&album.IsPublic, &album.IsWriteable, &album.CreatedByApp, &album.MediaItemsCount,
		&coverURL, &album.CreatedAt, &album.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	album.ProductURL = productURL.String
	album.CoverPhotoBaseURL = coverURL.String
	return &album, nil
}

func (r *AlbumRepository) getOne(ctx context.Context, where string, arg interface{}) (*models.Album, error) {
	query := `SELECT ` + albumColumns + ` FROM albums WHERE ` + where + ` = $1`

	album, err := scanAlbum(r.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return album, err
}

func (r *AlbumRepository) GetByID(ctx context.Context, id string) (*models.Album, error) {
	return r.getOne(ctx, "id", id)
}

// GetByOwner returns the user's app-managed album, or nil when none exists yet
func (r *AlbumRepository) GetByOwner(ctx context.Context, ownerUserID string) (*models.Album, error) {
	return r.getOne(ctx, "owner_user_id", ownerUserID)
}

func (r *AlbumRepository) GetByProviderID(ctx context.Context, providerAlbumID string) (*models.Album, error) {
	return r.getOne(ctx, "provider_album_id", providerAlbumID)
}

// Add inserts an album. A second album for the same owner fails with a
// unique violation (see IsUniqueViolation).
func (r *AlbumRepository) Add(ctx context.Context, album *models.Album) error {
	query := `INSERT INTO albums (` + albumColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		album.ID, album.ProviderAlbumID, album.OwnerUserID, album.Title, album.ProductURL,
		album.IsPublic, album.IsWriteable, album.CreatedByApp, album.MediaItemsCount,
		album.CoverPhotoBaseURL, album.CreatedAt, album.UpdatedAt,
	)
	return err
}

// ListVisible returns albums owned by the user or public, newest first
func (r *AlbumRepository) ListVisible(ctx context.Context, userID string, offset, limit int) ([]*models.Album, error) {
	query := `SELECT ` + albumColumns + ` FROM albums
			  WHERE owner_user_id = $1 OR is_public = $2
			  ORDER BY created_at DESC, id
			  LIMIT $3 OFFSET $4`

	rows, err := r.db.QueryContext(ctx, query, userID, true, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	albums := make([]*models.Album, 0)
	for rows.Next() {
		album, err := scanAlbum(rows)
		if err != nil {
			return nil, err
		}
		albums = append(albums, album)
	}
	return albums, rows.Err()
}

func (r *AlbumRepository) CountVisible(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM albums WHERE owner_user_id = $1 OR is_public = $2`

	var count int
	err := r.db.QueryRowContext(ctx, query, userID, true).Scan(&count)
	return count, err
}

// RefreshStats recomputes the cached item count and cover of an album
func (r *AlbumRepository) RefreshStats(ctx context.Context, albumID string) error {
	query := `UPDATE albums SET
				media_items_count = (SELECT COUNT(*) FROM media_items WHERE album_id = $1),
				cover_photo_base_url = COALESCE((SELECT base_url FROM media_items
					WHERE album_id = $2 AND media_type = $3
					ORDER BY COALESCE(creation_time, created_at) DESC, id LIMIT 1), cover_photo_base_url),
				updated_at = $4
			  WHERE id = $5`

	_, err := r.db.ExecContext(ctx, query, albumID, albumID, string(models.MediaTypePhoto), time.Now().UTC(), albumID)
	return err
}
