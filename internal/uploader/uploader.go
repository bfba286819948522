package uploader

import (
	"context"
	"fmt"

	"github.com/weddingphotos/server/internal/models"
	"github.com/weddingphotos/server/internal/observability"
)

// Result is the outcome of one negotiate, transfer and finalize run
type Result struct {
	AlbumID  string
	Transfer *TransferReport
	Finalize *models.FinalizeResult
}

// Uploader runs the whole upload pipeline against a server
type Uploader struct {
	api      *APIClient
	executor *Executor
	// UseCaptions sends each file's EXIF caption as its item description
	UseCaptions bool
	logger      *observability.Logger
}

// New creates an Uploader
func New(api *APIClient, executor *Executor) *Uploader {
	return &Uploader{
		api:         api,
		executor:    executor,
		UseCaptions: true,
		logger:      observability.GetLogger().WithField("component", "uploader"),
	}
}

// Upload negotiates a batch for files, streams them to the provider and
// finalizes whatever transferred. Finalize is skipped when nothing did.
func (u *Uploader) Upload(ctx context.Context, files []*LocalFile, description string) (*Result, error) {
	session, err := u.api.Negotiate(ctx, Descriptors(files))
	if err != nil {
		return nil, fmt.Errorf("negotiate failed: %w", err)
	}
	u.logger.WithField("album_id", session.AlbumID).Infof("Negotiated upload of %d files", len(files))

	result := &Result{AlbumID: session.AlbumID}

	report, err := u.executor.TransferAll(ctx, files, session)
	result.Transfer = report
	if err != nil {
		return result, err
	}

	req := models.FinalizeRequest{AlbumID: session.AlbumID, Description: description}
	for _, f := range files {
		token, ok := report.Tokens[f.Name]
		if !ok {
			continue
		}
		tok := models.UploadedToken{Filename: f.Name, UploadSessionToken: token}
		if u.UseCaptions {
			tok.Description = f.Caption
		}
		req.Tokens = append(req.Tokens, tok)
	}

	finalized, err := u.api.Finalize(ctx, req)
	if err != nil {
		return result, fmt.Errorf("finalize failed: %w", err)
	}
	result.Finalize = finalized
	return result, nil
}
