package medialibrary

import (
	"fmt"
	"time"
)

// ErrorDetails is the body of a provider error
type ErrorDetails struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// APIError is returned when the provider answers with a non-2xx status
type APIError struct {
	StatusCode int          `json:"-"`
	Details    ErrorDetails `json:"error"`
}

func (e *APIError) Error() string {
	if e.Details.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("%s (%d %s)", e.Details.Message, e.StatusCode, e.Details.Status)
}

// Retryable reports whether a read may be repeated after this error
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// Album as the provider returns it
type Album struct {
	ID                string `json:"id,omitempty"`
	Title             string `json:"title"`
	ProductURL        string `json:"productUrl,omitempty"`
	MediaItemsCount   string `json:"mediaItemsCount,omitempty"`
	CoverPhotoBaseURL string `json:"coverPhotoBaseUrl,omitempty"`
	IsWriteable       bool   `json:"isWriteable,omitempty"`
}

type createAlbumRequest struct {
	Album *Album `json:"album"`
}

// PhotoMetadata is present only on photos
type PhotoMetadata struct {
	CameraMake      string  `json:"cameraMake,omitempty"`
	CameraModel     string  `json:"cameraModel,omitempty"`
	FocalLength     float64 `json:"focalLength,omitempty"`
	ApertureFNumber float64 `json:"apertureFNumber,omitempty"`
	IsoEquivalent   int     `json:"isoEquivalent,omitempty"`
	ExposureTime    string  `json:"exposureTime,omitempty"`
}

// VideoMetadata is present only on videos
type VideoMetadata struct {
	CameraMake  string  `json:"cameraMake,omitempty"`
	CameraModel string  `json:"cameraModel,omitempty"`
	Fps         float64 `json:"fps,omitempty"`
	Status      string  `json:"status,omitempty"`
}

// MediaMetadata holds the nested metadata of a media item.
// Width and height arrive as decimal strings.
type MediaMetadata struct {
	CreationTime *time.Time     `json:"creationTime,omitempty"`
	Width        string         `json:"width,omitempty"`
	Height       string         `json:"height,omitempty"`
	Photo        *PhotoMetadata `json:"photo,omitempty"`
	Video        *VideoMetadata `json:"video,omitempty"`
}

// ContributorInfo is set on items added to shared albums
type ContributorInfo struct {
	ProfilePictureBaseURL string `json:"profilePictureBaseUrl,omitempty"`
	DisplayName           string `json:"displayName,omitempty"`
}

// MediaItem is a photo or video
type MediaItem struct {
	ID              string           `json:"id"`
	Description     string           `json:"description,omitempty"`
	ProductURL      string           `json:"productUrl"`
	BaseURL         string           `json:"baseUrl"`
	MimeType        string           `json:"mimeType"`
	MediaMetadata   MediaMetadata    `json:"mediaMetadata"`
	ContributorInfo *ContributorInfo `json:"contributorInfo,omitempty"`
	Filename        string           `json:"filename"`
}

// MediaItems is a page returned by mediaItems:search
type MediaItems struct {
	MediaItems    []MediaItem `json:"mediaItems"`
	NextPageToken string      `json:"nextPageToken"`
}

type searchRequest struct {
	AlbumID   string `json:"albumId,omitempty"`
	PageSize  int    `json:"pageSize"`
	PageToken string `json:"pageToken,omitempty"`
}

// NewItem is one upload token to materialize
type NewItem struct {
	UploadToken string
	Description string
}

type simpleMediaItem struct {
	UploadToken string `json:"uploadToken"`
}

type newMediaItem struct {
	Description     string          `json:"description"`
	SimpleMediaItem simpleMediaItem `json:"simpleMediaItem"`
}

type batchCreateRequest struct {
	AlbumID       string         `json:"albumId,omitempty"`
	NewMediaItems []newMediaItem `json:"newMediaItems"`
}

// Status is the per-item status of a batch create
type Status struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// OK reports whether the item was created
func (s Status) OK() bool {
	return s.Code == 0
}

// ItemResult is one entry of a batch create response. Results are in the
// same order as the submitted items.
type ItemResult struct {
	UploadToken string     `json:"uploadToken"`
	Status      Status     `json:"status"`
	MediaItem   *MediaItem `json:"mediaItem,omitempty"`
}

type batchCreateResponse struct {
	NewMediaItemResults []ItemResult `json:"newMediaItemResults"`
}

// UploadSession is what a client needs to stream bytes to the provider
type UploadSession struct {
	Endpoint    string
	AccessToken string
	Expiry      time.Time
}
