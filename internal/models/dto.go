package models

import (
	"math"
	"strconv"
	"time"
)

// AlbumListResponse is returned when listing albums
type AlbumListResponse struct {
	Albums        []AlbumResponse `json:"albums"`
	NextPageToken string          `json:"nextPageToken,omitempty"`
	TotalCount    int             `json:"totalCount"`
}

// AlbumItemsResponse is returned when listing the items of one album
type AlbumItemsResponse struct {
	AlbumID       string              `json:"albumId"`
	AlbumTitle    string              `json:"albumTitle"`
	Items         []MediaItemResponse `json:"items"`
	NextPageToken string              `json:"nextPageToken,omitempty"`
	TotalCount    int                 `json:"totalCount"`
}

// GalleryResponse is returned when listing the user's gallery
type GalleryResponse struct {
	Items         []MediaItemResponse `json:"items"`
	NextPageToken string              `json:"nextPageToken,omitempty"`
	TotalCount    int                 `json:"totalCount"`
}

// LibraryItemsResponse is a page of items read straight from the provider
type LibraryItemsResponse struct {
	AlbumID       string              `json:"albumId"`
	Items         []MediaItemResponse `json:"items"`
	NextPageToken string              `json:"nextPageToken,omitempty"`
}

// DownloadURLResponse carries a freshly minted download link
type DownloadURLResponse struct {
	MediaItemID string `json:"mediaItemId"`
	DownloadURL string `json:"downloadUrl"`
	Filename    string `json:"filename"`
	MimeType    string `json:"mimeType"`
}

// DisplayURLResponse carries a freshly minted sized rendition link
type DisplayURLResponse struct {
	MediaItemID string `json:"mediaItemId"`
	DisplayURL  string `json:"displayUrl"`
}

// BulkDownloadRequest is the request body for minting several download links
type BulkDownloadRequest struct {
	MediaItemIDs []string `json:"mediaItemIds"`
}

// BulkDownloadItem is one entry of a bulk download response
type BulkDownloadItem struct {
	MediaItemID string `json:"mediaItemId"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	Filename    string `json:"filename,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
	Error       string `json:"error,omitempty"`
}

// BulkDownloadResponse lists a link or an error for every requested id
type BulkDownloadResponse struct {
	Items        []BulkDownloadItem `json:"items"`
	SuccessCount int                `json:"successCount"`
	TotalCount   int                `json:"totalCount"`
}

// MagicLinkRequest asks for a sign-in email
type MagicLinkRequest struct {
	Email string `json:"email"`
}

// VerifyCodeRequest redeems the 6-digit code from a sign-in email
type VerifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// MessageResponse is a generic acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse is returned by health check
type HealthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse is returned on errors. UpstreamStatus is the HTTP status the
// media library answered with, when a provider call caused the error.
type ErrorResponse struct {
	Error          string   `json:"error"`
	Details        []string `json:"details,omitempty"`
	UpstreamStatus int      `json:"upstreamStatus,omitempty"`
}

// Paging bounds. MaxPageNumber keeps Offset inside a 32-bit SQL OFFSET.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	MaxPageNumber   = math.MaxInt32/MaxPageSize - 1
)

// Page is a 1-based page request
type Page struct {
	Number int
	Size   int
}

// Normalize fills in defaults and clamps the number and size into range
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Number > MaxPageNumber {
		p.Number = MaxPageNumber
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset returns the number of rows to skip
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// NextPageToken returns the token of the following page, or "" on the last one
func (p Page) NextPageToken(total int) string {
	if total > p.Offset()+p.Size {
		return strconv.Itoa(p.Number + 1)
	}
	return ""
}
