package services

import (
	"context"
	"io"

	"github.com/weddingphotos/server/internal/medialibrary"
)

// MediaLibrary is the provider surface the services depend on.
// *medialibrary.Client implements it.
type MediaLibrary interface {
	CreateAlbum(ctx context.Context, title string) (*medialibrary.Album, error)
	UploadSession(ctx context.Context) (*medialibrary.UploadSession, error)
	BatchCreateItems(ctx context.Context, albumID string, items []medialibrary.NewItem) ([]medialibrary.ItemResult, error)
	GetItem(ctx context.Context, id string) (*medialibrary.MediaItem, error)
	ListItemsInAlbum(ctx context.Context, albumID string, pageSize int, pageToken string) (*medialibrary.MediaItems, error)
	FetchContent(ctx context.Context, contentURL string) (io.ReadCloser, string, error)
}

var _ MediaLibrary = (*medialibrary.Client)(nil)
