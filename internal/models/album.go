package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Album is the local mirror of an app-managed provider album.
// Each user owns at most one; it is created on the first upload negotiation.
type Album struct {
	ID                string    `json:"id"`
	ProviderAlbumID   string    `json:"providerAlbumId"`
	OwnerUserID       string    `json:"ownerUserId"`
	Title             string    `json:"title"`
	ProductURL        string    `json:"productUrl,omitempty"`
	IsPublic          bool      `json:"isPublic"`
	IsWriteable       bool      `json:"isWriteable"`
	CreatedByApp      bool      `json:"createdByApp"`
	MediaItemsCount   int       `json:"mediaItemsCount"`
	CoverPhotoBaseURL string    `json:"coverPhotoBaseUrl,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// NewAlbum creates the local row for an album the provider just created
func NewAlbum(ownerUserID, providerAlbumID, title, productURL string, isWriteable bool) (*Album, error) {
	if strings.TrimSpace(ownerUserID) == "" {
		return nil, ErrAlbumOwnerRequired
	}
	if strings.TrimSpace(providerAlbumID) == "" {
		return nil, ErrProviderAlbumIDRequired
	}

	now := time.Now().UTC()
	return &Album{
		ID:              uuid.New().String(),
		ProviderAlbumID: providerAlbumID,
		OwnerUserID:     ownerUserID,
		Title:           title,
		ProductURL:      productURL,
		IsWriteable:     isWriteable,
		CreatedByApp:    true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// AlbumTitleFor builds the deterministic title of a user's album
func AlbumTitleFor(email string, now time.Time) string {
	return fmt.Sprintf("Wedding Photos - %s - %s", email, now.UTC().Format("2006-01-02"))
}

// CanBeViewedBy reports whether userID may read the album
func (a *Album) CanBeViewedBy(userID string) bool {
	return a.OwnerUserID == userID || a.IsPublic
}

// IsOwnedBy reports whether userID owns the album
func (a *Album) IsOwnedBy(userID string) bool {
	return a.OwnerUserID == userID
}

// AlbumResponse is the API representation of an album
type AlbumResponse struct {
	ID                string    `json:"id"`
	ProviderAlbumID   string    `json:"providerAlbumId"`
	Title             string    `json:"title"`
	ProductURL        string    `json:"productUrl,omitempty"`
	MediaItemsCount   int       `json:"mediaItemsCount"`
	CoverPhotoBaseURL string    `json:"coverPhotoBaseUrl,omitempty"`
	IsPublic          bool      `json:"isPublic"`
	IsOwner           bool      `json:"isOwner"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// ToResponse converts an Album for the given viewer
func (a *Album) ToResponse(viewerID string) AlbumResponse {
	return AlbumResponse{
		ID:                a.ID,
		ProviderAlbumID:   a.ProviderAlbumID,
		Title:             a.Title,
		ProductURL:        a.ProductURL,
		MediaItemsCount:   a.MediaItemsCount,
		CoverPhotoBaseURL: a.CoverPhotoBaseURL,
		IsPublic:          a.IsPublic,
		IsOwner:           a.IsOwnedBy(viewerID),
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

// Album errors
var (
	ErrAlbumNotFound           = AlbumError{"album not found"}
	ErrAlbumAccessDenied       = AlbumError{"access denied to this album"}
	ErrAlbumCreationFailed     = AlbumError{"failed to create album"}
	ErrAlbumOwnerRequired      = AlbumError{"album owner cannot be empty"}
	ErrProviderAlbumIDRequired = AlbumError{"provider album id cannot be empty"}

	// ErrOrphanedAlbum marks a provider album that exists remotely but has no local row.
	ErrOrphanedAlbum = AlbumError{"provider album created but not recorded"}
)

type AlbumError struct {
	Message string
}

func (e AlbumError) Error() string {
	return e.Message
}
