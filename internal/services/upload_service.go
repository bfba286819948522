package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/weddingphotos/server/internal/medialibrary"
	"github.com/weddingphotos/server/internal/models"
	"github.com/weddingphotos/server/internal/observability"
	"github.com/weddingphotos/server/internal/repository"
)

// UploadService runs the server side of the upload pipeline: negotiating a
// direct upload session and materializing the resulting tokens.
type UploadService struct {
	validator *UploadValidator
	albums    *AlbumService
	albumRepo repository.AlbumRepo
	library   MediaLibrary
	mirror    *MirrorSync
	events    EventPublisher
	metrics   *observability.BusinessMetrics
	logger    *observability.Logger
}

// NewUploadService creates a new UploadService
func NewUploadService(
	validator *UploadValidator,
	albums *AlbumService,
	albumRepo repository.AlbumRepo,
	library MediaLibrary,
	mirror *MirrorSync,
	events EventPublisher,
	metrics *observability.BusinessMetrics,
) *UploadService {
	return &UploadService{
		validator: validator,
		albums:    albums,
		albumRepo: albumRepo,
		library:   library,
		mirror:    mirror,
		events:    events,
		metrics:   metrics,
		logger:    observability.GetLogger().WithField("component", "upload"),
	}
}

// Negotiate validates the batch, resolves the user's album and returns the
// endpoint and authorization the client streams bytes to.
func (s *UploadService) Negotiate(ctx context.Context, user *models.User, files []models.FileDescriptor) (*models.NegotiateResult, error) {
	if user == nil {
		return nil, models.ErrAuthenticationRequired
	}

	ctx, span := observability.StartServiceSpan(ctx, "upload", "negotiate",
		observability.UserID(user.ID),
		observability.BatchSize(len(files)),
	)
	defer span.End()

	if err := s.validator.ValidateBatch(files); err != nil {
		s.metrics.RecordNegotiation(ctx, len(files), false)
		return nil, err
	}

	album, err := s.albums.GetOrCreate(ctx, user)
	if err != nil {
		s.metrics.RecordNegotiation(ctx, len(files), false)
		observability.RecordError(span, err)
		return nil, err
	}

	session, err := s.library.UploadSession(ctx)
	if err != nil {
		s.metrics.RecordNegotiation(ctx, len(files), false)
		observability.RecordError(span, err)
		return nil, &models.UpstreamError{Op: "upload session", Err: err}
	}

	s.metrics.RecordNegotiation(ctx, len(files), true)
	observability.SetSuccess(span)

	return &models.NegotiateResult{
		AlbumID:        album.ProviderAlbumID,
		UploadEndpoint: session.Endpoint,
		Authorization:  "Bearer " + session.AccessToken,
		Expiry:         session.Expiry,
	}, nil
}

// Finalize materializes uploaded tokens in one batch call. Items the provider
// rejects are reported per item; only a failed call is an error.
func (s *UploadService) Finalize(ctx context.Context, user *models.User, req models.FinalizeRequest) (*models.FinalizeResult, error) {
	if user == nil {
		return nil, models.ErrAuthenticationRequired
	}

	ctx, span := observability.StartServiceSpan(ctx, "upload", "finalize",
		observability.UserID(user.ID),
		observability.AlbumID(req.AlbumID),
		observability.BatchSize(len(req.Tokens)),
	)
	defer span.End()

	if err := s.validateFinalize(req); err != nil {
		return nil, err
	}

	album, err := s.albumRepo.GetByProviderID(ctx, req.AlbumID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to look up album: %w", err)
	}
	if album == nil {
		return nil, models.ErrAlbumNotFound
	}
	if !album.IsOwnedBy(user.ID) {
		return nil, models.ErrAlbumAccessDenied
	}

	items := make([]medialibrary.NewItem, len(req.Tokens))
	for i, tok := range req.Tokens {
		items[i] = medialibrary.NewItem{
			UploadToken: tok.UploadSessionToken,
			Description: itemDescription(tok, req.Description),
		}
	}

	results, err := s.library.BatchCreateItems(ctx, album.ProviderAlbumID, items)
	if err != nil {
		observability.RecordError(span, err)
		s.logger.WithContext(ctx).WithError(err).Errorf("Batch create failed for %d tokens", len(items))
		return nil, &models.UpstreamError{Op: "batch create", Err: err}
	}

	result, created := zipResults(req.Tokens, results)
	s.metrics.RecordFinalize(ctx, result.CreatedCount, result.TotalCount)

	s.logger.WithContext(ctx).WithFields(observability.Fields{
		"user_id":  user.ID,
		"album_id": album.ID,
	}).Infof("Finalized upload: %s", result.Message)

	if s.events != nil {
		s.events.SendToUser(user.ID, WSMessage{
			Type: EventUploadFinalized,
			Payload: UploadFinalizedPayload{
				AlbumID:       album.ID,
				FilesUploaded: result.CreatedCount,
				TotalCount:    result.TotalCount,
			},
		})
	}

	if len(created) > 0 {
		s.mirror.SyncInBackground(ctx, user.ID, album.ID, created)
	}

	observability.SetSuccess(span)
	return result, nil
}

// itemDescription picks the token's own description, then the batch one,
// then a default naming the file.
func itemDescription(tok models.UploadedToken, batch string) string {
	if d := strings.TrimSpace(tok.Description); d != "" {
		return d
	}
	if d := strings.TrimSpace(batch); d != "" {
		return d
	}
	return "Uploaded: " + tok.Filename
}

func (s *UploadService) validateFinalize(req models.FinalizeRequest) error {
	if len(req.Tokens) == 0 {
		return models.ErrNoTokens
	}

	verr := models.NewValidationError()
	if strings.TrimSpace(req.AlbumID) == "" {
		verr.Add("albumId is required")
	}
	if limit := s.validator.MaxBatchSize(); len(req.Tokens) > limit {
		verr.Add("Too many tokens: %d (maximum %d per upload)", len(req.Tokens), limit)
	}
	for i, tok := range req.Tokens {
		if strings.TrimSpace(tok.Filename) == "" {
			verr.Add("tokens[%d]: filename is required", i)
		}
		if strings.TrimSpace(tok.UploadSessionToken) == "" {
			verr.Add("tokens[%d]: uploadSessionToken is required", i)
		}
	}

	if verr.HasProblems() {
		return verr
	}
	return nil
}

// zipResults pairs batch results with the submitted tokens by position.
// A missing result counts as a failure.
func zipResults(tokens []models.UploadedToken, results []medialibrary.ItemResult) (*models.FinalizeResult, []medialibrary.MediaItem) {
	result := &models.FinalizeResult{
		TotalCount: len(tokens),
		Items:      make([]models.FinalizeItem, len(tokens)),
	}
	var created []medialibrary.MediaItem

	for i, tok := range tokens {
		item := models.FinalizeItem{Filename: tok.Filename, Status: models.FinalizeItemFailed}

		switch {
		case i >= len(results):
			item.Message = "no result returned for this file"
		case results[i].Status.OK() && results[i].MediaItem != nil && results[i].MediaItem.ID != "":
			id := results[i].MediaItem.ID
			item.ProviderItemID = &id
			item.Status = models.FinalizeItemCreated
			item.Message = results[i].Status.Message
			created = append(created, *results[i].MediaItem)
			result.CreatedCount++
		default:
			item.Message = results[i].Status.Message
			if item.Message == "" {
				item.Message = "media item was not created"
			}
		}

		result.Items[i] = item
	}

	result.Message = models.UploadSummary(result.CreatedCount, result.TotalCount)
	return result, created
}
