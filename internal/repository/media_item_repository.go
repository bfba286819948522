package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/weddingphotos/server/internal/models"
)

// MediaItemRepository implements MediaItemRepo for PostgreSQL/SQLite
type MediaItemRepository struct {
	db DBTX
}

// NewMediaItemRepository creates a new MediaItemRepository
func NewMediaItemRepository(db DBTX) *MediaItemRepository {
	return &MediaItemRepository{db: db}
}

var mediaItemColumnList = []string{
	"id", "provider_item_id", "owner_user_id", "album_id", "description", "product_url",
	"base_url", "mime_type", "filename", "width", "height", "creation_time", "media_type",
	"camera_make", "camera_model", "focal_length", "aperture_f_number", "iso_equivalent",
	"exposure_time", "fps", "processing_status", "contributor_info", "created_at", "updated_at",
}

// mediaItemColumns renders the column list, optionally qualified by a table alias
func mediaItemColumns(alias string) string {
	if alias == "" {
		return strings.Join(mediaItemColumnList, ", ")
	}
	qualified := make([]string, len(mediaItemColumnList))
	for i, c := range mediaItemColumnList {
		qualified[i] = alias + "." + c
	}
	return strings.Join(qualified, ", ")
}

func scanMediaItem(row interface{ Scan(...interface{}) error }) (*models.MediaItem, error) {
	var item models.MediaItem
	var (
		albumID, description, productURL, baseURL sql.NullString
		cameraMake, cameraModel, exposure, status sql.NullString
		contributor                               sql.NullString
		width, height, iso                        sql.NullInt64
		focal, aperture, fps                      sql.NullFloat64
		creationTime                              sql.NullTime
		mediaType                                 string
	)

	err := row.Scan(
		&item.ID, &item.ProviderItemID, &item.OwnerUserID, &albumID, &description, &productURL,
		&baseURL, &item.MimeType, &item.Filename, &width, &height, &creationTime, &mediaType,
		&cameraMake, &cameraModel, &focal, &aperture, &iso,
		&exposure, &fps, &status, &contributor, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.AlbumID = nullStringPtr(albumID)
	item.Description = description.String
	item.ProductURL = productURL.String
	item.BaseURL = baseURL.String
	item.MediaType = models.MediaType(mediaType)
	item.Width = nullIntPtr(width)
	item.Height = nullIntPtr(height)
	item.ISOEquivalent = nullIntPtr(iso)
	item.FocalLength = nullFloatPtr(focal)
	item.ApertureFNumber = nullFloatPtr(aperture)
	item.FPS = nullFloatPtr(fps)
	item.CameraMake = nullStringPtr(cameraMake)
	item.CameraModel = nullStringPtr(cameraModel)
	item.ExposureTime = nullStringPtr(exposure)
	item.ProcessingStatus = nullStringPtr(status)
	if creationTime.Valid {
		t := creationTime.Time
		item.CreationTime = &t
	}
	if contributor.Valid && contributor.String != "" {
		var info models.ContributorInfo
		if err := json.Unmarshal([]byte(contributor.String), &info); err == nil {
			item.Contributor = &info
		}
	}
	return &item, nil
}

func (r *MediaItemRepository) getOne(ctx context.Context, column, value string) (*models.MediaItem, error) {
	query := `SELECT ` + mediaItemColumns("") + ` FROM media_items WHERE ` + column + ` = $1`

	item, err := scanMediaItem(r.db.QueryRowContext(ctx, query, value))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return item, err
}

func (r *MediaItemRepository) GetByID(ctx context.Context, id string) (*models.MediaItem, error) {
	return r.getOne(ctx, "id", id)
}

func (r *MediaItemRepository) GetByProviderID(ctx context.Context, providerItemID string) (*models.MediaItem, error) {
	return r.getOne(ctx, "provider_item_id", providerItemID)
}

// Upsert writes items keyed by provider item id inside one transaction.
// The local id, owner and creation timestamp of an existing row are kept, and
// each item.ID is set to the id stored for its provider item.
func (r *MediaItemRepository) Upsert(ctx context.Context, items []*models.MediaItem) error {
	if len(items) == 0 {
		return nil
	}

	query := `INSERT INTO media_items (` + mediaItemColumns("") + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		ON CONFLICT (provider_item_id) DO UPDATE SET
			album_id = COALESCE(excluded.album_id, media_items.album_id),
			description = excluded.description,
			product_url = excluded.product_url,
			base_url = excluded.base_url,
			mime_type = excluded.mime_type,
			filename = excluded.filename,
			width = excluded.width,
			height = excluded.height,
			creation_time = excluded.creation_time,
			media_type = excluded.media_type,
			camera_make = excluded.camera_make,
			camera_model = excluded.camera_model,
			focal_length = excluded.focal_length,
			aperture_f_number = excluded.aperture_f_number,
			iso_equivalent = excluded.iso_equivalent,
			exposure_time = excluded.exposure_time,
			fps = excluded.fps,
			processing_status = excluded.processing_status,
			contributor_info = excluded.contributor_info,
			updated_at = excluded.updated_at
		RETURNING id`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, item := range items {
		var contributor interface{}
		if item.Contributor != nil {
			data, err := json.Marshal(item.Contributor)
			if err != nil {
				return err
			}
			contributor = string(data)
		}

		err := stmt.QueryRowContext(ctx,
			item.ID, item.ProviderItemID, item.OwnerUserID, item.AlbumID, item.Description, item.ProductURL,
			item.BaseURL, item.MimeType, item.Filename, item.Width, item.Height, item.CreationTime, string(item.MediaType),
			item.CameraMake, item.CameraModel, item.FocalLength, item.ApertureFNumber, item.ISOEquivalent,
			item.ExposureTime, item.FPS, item.ProcessingStatus, contributor, item.CreatedAt, item.UpdatedAt,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", item.ProviderItemID, err)
		}
	}

	return tx.Commit()
}

func (r *MediaItemRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.MediaItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*models.MediaItem, 0)
	for rows.Next() {
		item, err := scanMediaItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListByAlbum returns an album's items by capture time, newest first
func (r *MediaItemRepository) ListByAlbum(ctx context.Context, albumID string, offset, limit int) ([]*models.MediaItem, error) {
	query := `SELECT ` + mediaItemColumns("") + ` FROM media_items
			  WHERE album_id = $1
			  ORDER BY COALESCE(creation_time, created_at) DESC, id
			  LIMIT $2 OFFSET $3`
	return r.list(ctx, query, albumID, limit, offset)
}

func (r *MediaItemRepository) CountByAlbum(ctx context.Context, albumID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media_items WHERE album_id = $1`, albumID).Scan(&count)
	return count, err
}

// ListGallery returns the user's own items plus those in public albums
func (r *MediaItemRepository) ListGallery(ctx context.Context, userID string, offset, limit int) ([]*models.MediaItem, error) {
	query := `SELECT ` + mediaItemColumns("m") + ` FROM media_items m
			  LEFT JOIN albums a ON a.id = m.album_id
			  WHERE m.owner_user_id = $1 OR a.is_public = $2
			  ORDER BY COALESCE(m.creation_time, m.created_at) DESC, m.id
			  LIMIT $3 OFFSET $4`
	return r.list(ctx, query, userID, true, limit, offset)
}

func (r *MediaItemRepository) CountGallery(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM media_items m
			  LEFT JOIN albums a ON a.id = m.album_id
			  WHERE m.owner_user_id = $1 OR a.is_public = $2`

	var count int
	err := r.db.QueryRowContext(ctx, query, userID, true).Scan(&count)
	return count, err
}

func nullStringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullFloatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
