package models

import (
	"fmt"
	"strings"
	"time"
)

// FileDescriptor describes a file the client intends to upload
type FileDescriptor struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"type"`
}

// NegotiateRequest is the request body for starting an upload batch
type NegotiateRequest struct {
	Files []FileDescriptor `json:"files"`
}

// NegotiateResult carries everything the client needs to stream bytes
// directly to the provider.
type NegotiateResult struct {
	AlbumID        string    `json:"albumId"`
	UploadEndpoint string    `json:"uploadEndpoint"`
	Authorization  string    `json:"authorization"`
	Expiry         time.Time `json:"expiry"`
}

// UploadedToken pairs a filename with the opaque token the provider returned
// for its raw byte transfer. Description overrides the batch description.
type UploadedToken struct {
	Filename           string `json:"filename"`
	UploadSessionToken string `json:"uploadSessionToken"`
	Description        string `json:"description,omitempty"`
}

// FinalizeRequest is the request body for materializing uploaded tokens
type FinalizeRequest struct {
	AlbumID     string          `json:"albumId"`
	Tokens      []UploadedToken `json:"tokens"`
	Description string          `json:"description,omitempty"`
}

// FinalizeItemStatus is the per-item outcome of a batch finalize
type FinalizeItemStatus string

const (
	FinalizeItemCreated FinalizeItemStatus = "created"
	FinalizeItemFailed  FinalizeItemStatus = "failed"
)

// FinalizeItem is one position-matched result of a batch finalize
type FinalizeItem struct {
	Filename       string             `json:"filename"`
	ProviderItemID *string            `json:"providerItemId"`
	Status         FinalizeItemStatus `json:"status"`
	Message        string             `json:"message,omitempty"`
}

// FinalizeResult summarizes a batch finalize
type FinalizeResult struct {
	CreatedCount int            `json:"filesUploaded"`
	TotalCount   int            `json:"totalCount"`
	Message      string         `json:"message"`
	Items        []FinalizeItem `json:"mediaItems"`
}

// UploadSummary is the user-visible count line for a batch
func UploadSummary(created, total int) string {
	return fmt.Sprintf("%d of %d files uploaded", created, total)
}

// ValidationError lists every problem found in a request, not just the first
type ValidationError struct {
	Problems []string
}

// NewValidationError creates a ValidationError from a list of problems
func NewValidationError(problems ...string) *ValidationError {
	return &ValidationError{Problems: problems}
}

// Add appends a problem
func (e *ValidationError) Add(format string, args ...interface{}) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// HasProblems reports whether any problem was recorded
func (e *ValidationError) HasProblems() bool {
	return len(e.Problems) > 0
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return e.Problems[0]
	}
	return fmt.Sprintf("%d validation problems: %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

// UpstreamError wraps a failed call to the media library provider
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("media library %s failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Upload errors
var (
	ErrAuthenticationRequired = UploadError{"authentication required"}
	ErrEmptyBatch             = UploadError{"no files provided"}
	ErrNoTokens               = UploadError{"no upload tokens provided"}
	ErrAllTransfersFailed     = UploadError{"All files failed to upload"}
)

type UploadError struct {
	Message string
}

func (e UploadError) Error() string {
	return e.Message
}
