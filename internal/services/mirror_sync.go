package services

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/weddingphotos/server/internal/medialibrary"
	"github.com/weddingphotos/server/internal/models"
	"github.com/weddingphotos/server/internal/observability"
	"github.com/weddingphotos/server/internal/repository"
)

// MirrorSync copies provider metadata into the local media_items table.
// It is best effort: failures are logged and never returned.
type MirrorSync struct {
	itemRepo  repository.MediaItemRepo
	albumRepo repository.AlbumRepo
	events    EventPublisher
	metrics   *observability.BusinessMetrics
	timeout   time.Duration
	logger    *observability.Logger
	wg        sync.WaitGroup
}

// NewMirrorSync creates a MirrorSync. timeout bounds each background run.
func NewMirrorSync(
	itemRepo repository.MediaItemRepo,
	albumRepo repository.AlbumRepo,
	events EventPublisher,
	metrics *observability.BusinessMetrics,
	timeout time.Duration,
) *MirrorSync {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &MirrorSync{
		itemRepo:  itemRepo,
		albumRepo: albumRepo,
		events:    events,
		metrics:   metrics,
		timeout:   timeout,
		logger:    observability.GetLogger().WithField("component", "mirror"),
	}
}

// Sync upserts items for ownerUserID into albumID ("" for none) and returns
// the mirrored rows. The returned rows carry their stored local ids when the
// write succeeded and the provider item ids otherwise.
func (m *MirrorSync) Sync(ctx context.Context, ownerUserID, albumID string, items []medialibrary.MediaItem) []*models.MediaItem {
	if len(items) == 0 {
		return nil
	}

	ctx, span := observability.StartServiceSpan(ctx, "mirror", "sync",
		observability.UserID(ownerUserID),
		observability.AlbumID(albumID),
		observability.BatchSize(len(items)),
	)
	defer span.End()

	var albumRef *string
	if albumID != "" {
		albumRef = &albumID
	}

	rows := make([]*models.MediaItem, len(items))
	for i := range items {
		rows[i] = ToMediaItem(ownerUserID, albumRef, items[i])
	}

	logger := m.logger.WithContext(ctx).WithFields(observability.Fields{
		"user_id":  ownerUserID,
		"album_id": albumID,
		"items":    len(rows),
	})

	if err := m.itemRepo.Upsert(ctx, rows); err != nil {
		m.metrics.RecordMirrorWrite(ctx, len(rows), false)
		observability.RecordError(span, err)
		logger.WithError(err).Errorf("Metadata mirror write failed")
		// nothing was stored; hand back ids the item lookups still resolve
		for _, row := range rows {
			row.ID = row.ProviderItemID
		}
		return rows
	}
	m.metrics.RecordMirrorWrite(ctx, len(rows), true)

	if albumID != "" {
		if err := m.albumRepo.RefreshStats(ctx, albumID); err != nil {
			logger.WithError(err).Warnf("Failed to refresh album stats")
		}
		if m.events != nil {
			m.events.SendToUser(ownerUserID, WSMessage{
				Type:    EventMirrorSynced,
				Payload: MirrorSyncedPayload{AlbumID: albumID, Count: len(rows)},
			})
		}
	}

	observability.SetSuccess(span)
	logger.Debugf("Mirrored %d items", len(rows))
	return rows
}

// SyncInBackground runs Sync detached from the request with its own timeout
func (m *MirrorSync) SyncInBackground(ctx context.Context, ownerUserID, albumID string, items []medialibrary.MediaItem) {
	if len(items) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		m.Sync(ctx, ownerUserID, albumID, items)
	}()
}

// Wait blocks until every background sync has finished
func (m *MirrorSync) Wait() {
	m.wg.Wait()
}

// ToMediaItem flattens a provider media item into a mirror row
func ToMediaItem(ownerUserID string, albumID *string, item medialibrary.MediaItem) *models.MediaItem {
	meta := item.MediaMetadata
	now := time.Now().UTC()

	row := &models.MediaItem{
		ID:             uuid.New().String(),
		ProviderItemID: item.ID,
		OwnerUserID:    ownerUserID,
		AlbumID:        albumID,
		Description:    item.Description,
		ProductURL:     item.ProductURL,
		BaseURL:        item.BaseURL,
		MimeType:       item.MimeType,
		Filename:       item.Filename,
		Width:          parseDimension(meta.Width),
		Height:         parseDimension(meta.Height),
		MediaType:      models.ClassifyMediaType(item.MimeType, meta.Photo != nil, meta.Video != nil),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if meta.CreationTime != nil {
		t := meta.CreationTime.UTC()
		row.CreationTime = &t
	}

	if p := meta.Photo; p != nil {
		row.CameraMake = optString(p.CameraMake)
		row.CameraModel = optString(p.CameraModel)
		row.FocalLength = optFloat(p.FocalLength)
		row.ApertureFNumber = optFloat(p.ApertureFNumber)
		if p.IsoEquivalent > 0 {
			iso := p.IsoEquivalent
			row.ISOEquivalent = &iso
		}
		row.ExposureTime = optString(p.ExposureTime)
	}

	if v := meta.Video; v != nil {
		row.FPS = optFloat(v.Fps)
		row.ProcessingStatus = optString(v.Status)
		if row.CameraMake == nil {
			row.CameraMake = optString(v.CameraMake)
		}
		if row.CameraModel == nil {
			row.CameraModel = optString(v.CameraModel)
		}
	}

	if c := item.ContributorInfo; c != nil && (c.DisplayName != "" || c.ProfilePictureBaseURL != "") {
		row.Contributor = &models.ContributorInfo{
			DisplayName:           c.DisplayName,
			ProfilePictureBaseURL: c.ProfilePictureBaseURL,
		}
	}

	return row
}

func parseDimension(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optFloat(f float64) *float64 {
	if f == 0 {
		return nil
	}
	return &f
}
