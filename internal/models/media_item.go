package models

import (
	"fmt"
	"strings"
	"time"
)

// MediaType classifies a media item
type MediaType string

const (
	MediaTypePhoto MediaType = "photo"
	MediaTypeVideo MediaType = "video"
	MediaTypeOther MediaType = "other"
)

// ContributorInfo identifies who added an item to a shared album
type ContributorInfo struct {
	DisplayName           string `json:"displayName,omitempty"`
	ProfilePictureBaseURL string `json:"profilePictureBaseUrl,omitempty"`
}

// MediaItem is the local mirror row of a provider media item.
// BaseURL is a cache hint only; the provider expires it after about an hour.
type MediaItem struct {
	ID             string     `json:"id"`
	ProviderItemID string     `json:"providerItemId"`
	OwnerUserID    string     `json:"ownerUserId"`
	AlbumID        *string    `json:"albumId,omitempty"`
	Description    string     `json:"description,omitempty"`
	ProductURL     string     `json:"productUrl,omitempty"`
	BaseURL        string     `json:"baseUrl,omitempty"`
	MimeType       string     `json:"mimeType"`
	Filename       string     `json:"filename"`
	Width          *int       `json:"width,omitempty"`
	Height         *int       `json:"height,omitempty"`
	CreationTime   *time.Time `json:"creationTime,omitempty"`
	MediaType      MediaType  `json:"mediaType"`

	// Photo metadata
	CameraMake      *string  `json:"cameraMake,omitempty"`
	CameraModel     *string  `json:"cameraModel,omitempty"`
	FocalLength     *float64 `json:"focalLength,omitempty"`
	ApertureFNumber *float64 `json:"apertureFNumber,omitempty"`
	ISOEquivalent   *int     `json:"isoEquivalent,omitempty"`
	ExposureTime    *string  `json:"exposureTime,omitempty"`

	// Video metadata
	FPS              *float64 `json:"fps,omitempty"`
	ProcessingStatus *string  `json:"processingStatus,omitempty"`

	Contributor *ContributorInfo `json:"contributorInfo,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ClassifyMediaType derives the media type from the metadata sub-objects the
// provider returned, falling back to the mime type.
func ClassifyMediaType(mimeType string, hasPhotoMetadata, hasVideoMetadata bool) MediaType {
	switch {
	case hasVideoMetadata:
		return MediaTypeVideo
	case hasPhotoMetadata:
		return MediaTypePhoto
	case IsVideoMimeType(mimeType):
		return MediaTypeVideo
	case strings.HasPrefix(strings.ToLower(mimeType), "image/"):
		return MediaTypePhoto
	default:
		return MediaTypeOther
	}
}

// IsVideoMimeType reports whether the mime type belongs to the video family
func IsVideoMimeType(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(mimeType), "video/")
}

// DownloadURL builds an original-quality download URL from a fresh base URL.
// Videos need the "dv" suffix, anything else "d".
func DownloadURL(baseURL, mimeType string) string {
	if IsVideoMimeType(mimeType) {
		return baseURL + "=dv"
	}
	return baseURL + "=d"
}

// DisplayURL builds a sized rendition URL from a fresh base URL
func DisplayURL(baseURL string, width, height int) string {
	switch {
	case width > 0 && height > 0:
		return fmt.Sprintf("%s=w%d-h%d", baseURL, width, height)
	case width > 0:
		return fmt.Sprintf("%s=w%d", baseURL, width)
	case height > 0:
		return fmt.Sprintf("%s=h%d", baseURL, height)
	default:
		return fmt.Sprintf("%s=w%d-h%d", baseURL, DefaultDisplaySize, DefaultDisplaySize)
	}
}

// DefaultDisplaySize is the edge length used when no size is requested
const DefaultDisplaySize = 400

// MediaItemResponse is a single item in gallery and album listings
type MediaItemResponse struct {
	ID              string           `json:"id"`
	ProviderItemID  string           `json:"providerItemId"`
	AlbumID         *string          `json:"albumId,omitempty"`
	Filename        string           `json:"filename"`
	Description     string           `json:"description,omitempty"`
	MimeType        string           `json:"mimeType"`
	MediaType       MediaType        `json:"mediaType"`
	ProductURL      string           `json:"productUrl,omitempty"`
	Width           *int             `json:"width,omitempty"`
	Height          *int             `json:"height,omitempty"`
	CreationTime    *time.Time       `json:"creationTime,omitempty"`
	CameraMake      *string          `json:"cameraMake,omitempty"`
	CameraModel     *string          `json:"cameraModel,omitempty"`
	FocalLength     *float64         `json:"focalLength,omitempty"`
	ApertureFNumber *float64         `json:"apertureFNumber,omitempty"`
	ISOEquivalent   *int             `json:"isoEquivalent,omitempty"`
	ExposureTime    *string          `json:"exposureTime,omitempty"`
	FPS             *float64         `json:"fps,omitempty"`
	Contributor     *ContributorInfo `json:"contributorInfo,omitempty"`
	IsOwner         bool             `json:"isOwner"`
}

// ToResponse converts a MediaItem for the given viewer
func (m *MediaItem) ToResponse(viewerID string) MediaItemResponse {
	return MediaItemResponse{
		ID:              m.ID,
		ProviderItemID:  m.ProviderItemID,
		AlbumID:         m.AlbumID,
		Filename:        m.Filename,
		Description:     m.Description,
		MimeType:        m.MimeType,
		MediaType:       m.MediaType,
		ProductURL:      m.ProductURL,
		Width:           m.Width,
		Height:          m.Height,
		CreationTime:    m.CreationTime,
		CameraMake:      m.CameraMake,
		CameraModel:     m.CameraModel,
		FocalLength:     m.FocalLength,
		ApertureFNumber: m.ApertureFNumber,
		ISOEquivalent:   m.ISOEquivalent,
		ExposureTime:    m.ExposureTime,
		FPS:             m.FPS,
		Contributor:     m.Contributor,
		IsOwner:         m.OwnerUserID == viewerID,
	}
}

// Media item errors
var (
	ErrMediaItemNotFound     = MediaItemError{"media item not found"}
	ErrMediaItemAccessDenied = MediaItemError{"access denied to this media item"}
)

type MediaItemError struct {
	Message string
}

func (e MediaItemError) Error() string {
	return e.Message
}
