package services

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/weddingphotos/server/internal/medialibrary"
	"github.com/weddingphotos/server/internal/models"
	"github.com/weddingphotos/server/internal/observability"
	"github.com/weddingphotos/server/internal/repository"
)

const (
	// MaxBulkDownload is the largest number of links minted per request
	MaxBulkDownload = 50
	// MaxLibraryPageSize is the provider's page size ceiling
	MaxLibraryPageSize = 100

	bulkDownloadConcurrency = 8
)

// GalleryService serves paginated reads over the metadata mirror and mints
// fresh provider URLs for individual items.
type GalleryService struct {
	albumRepo repository.AlbumRepo
	itemRepo  repository.MediaItemRepo
	library   MediaLibrary
	mirror    *MirrorSync
	metrics   *observability.BusinessMetrics
	logger    *observability.Logger
}

// NewGalleryService creates a new GalleryService
func NewGalleryService(
	albumRepo repository.AlbumRepo,
	itemRepo repository.MediaItemRepo,
	library MediaLibrary,
	mirror *MirrorSync,
	metrics *observability.BusinessMetrics,
) *GalleryService {
	return &GalleryService{
		albumRepo: albumRepo,
		itemRepo:  itemRepo,
		library:   library,
		mirror:    mirror,
		metrics:   metrics,
		logger:    observability.GetLogger().WithField("component", "gallery"),
	}
}

// ListAlbums returns the albums the user owns plus public ones, newest first
func (s *GalleryService) ListAlbums(ctx context.Context, user *models.User, page models.Page) (*models.AlbumListResponse, error) {
	if user == nil {
		return nil, models.ErrAuthenticationRequired
	}
	page = page.Normalize()

	total, err := s.albumRepo.CountVisible(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count albums: %w", err)
	}
	albums, err := s.albumRepo.ListVisible(ctx, user.ID, page.Offset(), page.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to list albums: %w", err)
	}

	resp := &models.AlbumListResponse{
		Albums:        make([]models.AlbumResponse, len(albums)),
		NextPageToken: page.NextPageToken(total),
		TotalCount:    total,
	}
	for i, a := range albums {
		resp.Albums[i] = a.ToResponse(user.ID)
	}
	return resp, nil
}

// AlbumItems returns one page of an album the user may view
func (s *GalleryService) AlbumItems(ctx context.Context, user *models.User, albumID string, page models.Page) (*models.AlbumItemsResponse, error) {
	if user == nil {
		return nil, models.ErrAuthenticationRequired
	}
	page = page.Normalize()

	album, err := s.albumRepo.GetByID(ctx, albumID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up album: %w", err)
	}
	if album == nil {
		return nil, models.ErrAlbumNotFound
	}
	if !album.CanBeViewedBy(user.ID) {
		return nil, models.ErrAlbumAccessDenied
	}

	total, err := s.itemRepo.CountByAlbum(ctx, album.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count album items: %w", err)
	}
	items, err := s.itemRepo.ListByAlbum(ctx, album.ID, page.Offset(), page.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to list album items: %w", err)
	}

	return &models.AlbumItemsResponse{
		AlbumID:       album.ID,
		AlbumTitle:    album.Title,
		Items:         toItemResponses(items, user.ID),
		NextPageToken: page.NextPageToken(total),
		TotalCount:    total,
	}, nil
}

// GalleryItems returns the user's own items plus items of public albums
func (s *GalleryService) GalleryItems(ctx context.Context, user *models.User, page models.Page) (*models.GalleryResponse, error) {
	if user == nil {
		return nil, models.ErrAuthenticationRequired
	}
	page = page.Normalize()

	total, err := s.itemRepo.CountGallery(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count gallery items: %w", err)
	}
	items, err := s.itemRepo.ListGallery(ctx, user.ID, page.Offset(), page.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to list gallery items: %w", err)
	}

	return &models.GalleryResponse{
		Items:         toItemResponses(items, user.ID),
		NextPageToken: page.NextPageToken(total),
		TotalCount:    total,
	}, nil
}

// DownloadURL re-fetches the item from the provider and builds an
// original-quality download link.
func (s *GalleryService) DownloadURL(ctx context.Context, user *models.User, itemID string) (*models.DownloadURLResponse, error) {
	if user == nil {
		return nil, models.ErrAuthenticationRequired
	}

	ctx, span := observability.StartServiceSpan(ctx, "gallery", "download_url",
		observability.UserID(user.ID), observability.MediaItemID(itemID))
	defer span.End()

	row, fresh, err := s.freshItem(ctx, user, itemID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	mimeType := fresh.MimeType
	if mimeType == "" {
		mimeType = row.MimeType
	}
	filename := row.Filename
	if filename == "" {
		filename = fresh.Filename
	}
	if filename == "" {
		filename = "download"
	}

	s.metrics.RecordDownloadURL(ctx, 1)
	observability.SetSuccess(span)

	return &models.DownloadURLResponse{
		MediaItemID: row.ID,
		DownloadURL: models.DownloadURL(fresh.BaseURL, mimeType),
		Filename:    filename,
		MimeType:    mimeType,
	}, nil
}

// BulkDownload mints download links for up to MaxBulkDownload items. Each id
// gets either a link or an error message.
func (s *GalleryService) BulkDownload(ctx context.Context, user *models.User, itemIDs []string) (*models.BulkDownloadResponse, error) {
	if user == nil {
		return nil, models.ErrAuthenticationRequired
	}
	if len(itemIDs) == 0 {
		return nil, models.NewValidationError("mediaItemIds must not be empty")
	}
	if len(itemIDs) > MaxBulkDownload {
		return nil, models.NewValidationError(fmt.Sprintf("Too many items: %d (maximum %d per request)", len(itemIDs), MaxBulkDownload))
	}

	items := make([]models.BulkDownloadItem, len(itemIDs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(bulkDownloadConcurrency)
	for i, id := range itemIDs {
		g.Go(func() error {
			entry := models.BulkDownloadItem{MediaItemID: id}
			link, err := s.DownloadURL(gCtx, user, id)
			if err != nil {
				entry.Error = err.Error()
			} else {
				entry.DownloadURL = link.DownloadURL
				entry.Filename = link.Filename
				entry.MimeType = link.MimeType
			}
			items[i] = entry
			return nil
		})
	}
	_ = g.Wait()

	resp := &models.BulkDownloadResponse{Items: items, TotalCount: len(items)}
	for _, item := range items {
		if item.Error == "" {
			resp.SuccessCount++
		}
	}
	return resp, nil
}

// DisplayURL builds a sized rendition link from a fresh base URL
func (s *GalleryService) DisplayURL(ctx context.Context, user *models.User, itemID string, width, height int) (*models.DisplayURLResponse, error) {
	if user == nil {
		return nil, models.ErrAuthenticationRequired
	}

	row, fresh, err := s.freshItem(ctx, user, itemID)
	if err != nil {
		return nil, err
	}

	return &models.DisplayURLResponse{
		MediaItemID: row.ID,
		DisplayURL:  models.DisplayURL(fresh.BaseURL, width, height),
	}, nil
}

// Image opens the bytes of a sized rendition. The caller closes the body.
func (s *GalleryService) Image(ctx context.Context, user *models.User, itemID string, width, height int) (io.ReadCloser, string, error) {
	display, err := s.DisplayURL(ctx, user, itemID, width, height)
	if err != nil {
		return nil, "", err
	}

	body, contentType, err := s.library.FetchContent(ctx, display.DisplayURL)
	if err != nil {
		return nil, "", &models.UpstreamError{Op: "fetch image", Err: err}
	}
	return body, contentType, nil
}

// LibraryItems lists a page of the user's album straight from the provider
// and mirrors what it saw.
func (s *GalleryService) LibraryItems(ctx context.Context, user *models.User, pageSize int, pageToken string) (*models.LibraryItemsResponse, error) {
	if user == nil {
		return nil, models.ErrAuthenticationRequired
	}

	album, err := s.albumRepo.GetByOwner(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up album: %w", err)
	}
	if album == nil {
		return &models.LibraryItemsResponse{Items: []models.MediaItemResponse{}}, nil
	}

	if pageSize <= 0 || pageSize > MaxLibraryPageSize {
		pageSize = MaxLibraryPageSize
	}

	page, err := s.library.ListItemsInAlbum(ctx, album.ProviderAlbumID, pageSize, pageToken)
	if err != nil {
		return nil, &models.UpstreamError{Op: "list album items", Err: err}
	}

	rows := s.mirror.Sync(ctx, user.ID, album.ID, page.MediaItems)

	return &models.LibraryItemsResponse{
		AlbumID:       album.ID,
		Items:         toItemResponses(rows, user.ID),
		NextPageToken: page.NextPageToken,
	}, nil
}

// freshItem resolves a visible mirror row and re-fetches it from the provider
func (s *GalleryService) freshItem(ctx context.Context, user *models.User, itemID string) (*models.MediaItem, *medialibrary.MediaItem, error) {
	row, err := s.visibleItem(ctx, user, itemID)
	if err != nil {
		return nil, nil, err
	}

	fresh, err := s.library.GetItem(ctx, row.ProviderItemID)
	if err != nil {
		if medialibrary.IsNotFound(err) {
			return nil, nil, models.ErrMediaItemNotFound
		}
		return nil, nil, &models.UpstreamError{Op: "get media item", Err: err}
	}
	return row, fresh, nil
}

// visibleItem looks an item up by local id, then by provider id, and checks
// the user may see it.
func (s *GalleryService) visibleItem(ctx context.Context, user *models.User, itemID string) (*models.MediaItem, error) {
	row, err := s.itemRepo.GetByID(ctx, itemID)
	if err == nil && row == nil {
		row, err = s.itemRepo.GetByProviderID(ctx, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up media item: %w", err)
	}
	if row == nil {
		return nil, models.ErrMediaItemNotFound
	}
	if row.OwnerUserID == user.ID {
		return row, nil
	}

	if row.AlbumID != nil {
		album, err := s.albumRepo.GetByID(ctx, *row.AlbumID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up album: %w", err)
		}
		if album != nil && album.CanBeViewedBy(user.ID) {
			return row, nil
		}
	}
	return nil, models.ErrMediaItemAccessDenied
}

func toItemResponses(items []*models.MediaItem, viewerID string) []models.MediaItemResponse {
	out := make([]models.MediaItemResponse, len(items))
	for i, item := range items {
		out[i] = item.ToResponse(viewerID)
	}
	return out
}
