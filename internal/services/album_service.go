package services

import (
	"context"
	"fmt"
	"time"

	"github.com/weddingphotos/server/internal/models"
	"github.com/weddingphotos/server/internal/observability"
	"github.com/weddingphotos/server/internal/repository"
)

// AlbumService resolves the single app-managed album of each user
type AlbumService struct {
	albumRepo repository.AlbumRepo
	library   MediaLibrary
	metrics   *observability.BusinessMetrics
	logger    *observability.Logger
	now       func() time.Time
}

// NewAlbumService creates a new AlbumService
func NewAlbumService(albumRepo repository.AlbumRepo, library MediaLibrary, metrics *observability.BusinessMetrics) *AlbumService {
	return &AlbumService{
		albumRepo: albumRepo,
		library:   library,
		metrics:   metrics,
		logger:    observability.GetLogger().WithField("component", "album"),
		now:       time.Now,
	}
}

// GetOrCreate returns the user's album, creating it remotely and locally on
// first use. Concurrent first calls converge on one row through the owner
// unique constraint; the loser's remote album is logged as orphaned.
func (s *AlbumService) GetOrCreate(ctx context.Context, user *models.User) (*models.Album, error) {
	ctx, span := observability.StartServiceSpan(ctx, "album", "get_or_create", observability.UserID(user.ID))
	defer span.End()

	existing, err := s.albumRepo.GetByOwner(ctx, user.ID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to look up album: %w", err)
	}
	if existing != nil {
		observability.SetSuccess(span)
		return existing, nil
	}

	remote, err := s.library.CreateAlbum(ctx, models.AlbumTitleFor(user.Email, s.now()))
	if err != nil {
		observability.RecordError(span, err)
		return nil, &models.UpstreamError{Op: "create album", Err: err}
	}

	logger := s.logger.WithContext(ctx).WithFields(observability.Fields{
		"user_id":           user.ID,
		"provider_album_id": remote.ID,
	})

	album, err := models.NewAlbum(user.ID, remote.ID, remote.Title, remote.ProductURL, remote.IsWriteable)
	if err != nil {
		return nil, err
	}

	if err := s.albumRepo.Add(ctx, album); err != nil {
		if repository.IsUniqueViolation(err) {
			winner, getErr := s.albumRepo.GetByOwner(ctx, user.ID)
			if getErr == nil && winner != nil {
				s.metrics.RecordOrphanedAlbum(ctx)
				logger.WithField("adopted_album_id", winner.ID).
					Warnf("%s: lost album creation race, remote album left unused", models.ErrOrphanedAlbum)
				observability.SetSuccess(span)
				return winner, nil
			}
		}

		s.metrics.RecordOrphanedAlbum(ctx)
		logger.WithError(err).Errorf("%s: remote album created but not recorded", models.ErrOrphanedAlbum)
		observability.RecordError(span, err)
		return nil, models.ErrAlbumCreationFailed
	}

	logger.WithField("album_id", album.ID).Infof("Created album %q", album.Title)
	observability.SetSuccess(span)
	return album, nil
}
