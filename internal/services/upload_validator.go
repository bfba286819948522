package services

import (
	"path/filepath"
	"strings"

	"github.com/weddingphotos/server/internal/config"
	"github.com/weddingphotos/server/internal/models"
)

const bytesPerMB = 1024 * 1024

// UploadValidator checks a batch of file descriptors before any provider call
type UploadValidator struct {
	maxImageBytes int64
	maxVideoBytes int64
	maxBatchSize  int
	imageTypes    map[string]bool
	videoTypes    map[string]bool
	imageExts     map[string]bool
	videoExts     map[string]bool
	cfg           config.Upload
}

// NewUploadValidator builds a validator from the upload configuration
func NewUploadValidator(cfg config.Upload) *UploadValidator {
	return &UploadValidator{
		maxImageBytes: cfg.MaxImageSizeMB * bytesPerMB,
		maxVideoBytes: cfg.MaxVideoSizeMB * bytesPerMB,
		maxBatchSize:  cfg.MaxBatchSize,
		imageTypes:    toSet(cfg.ImageMimeTypes),
		videoTypes:    toSet(cfg.VideoMimeTypes),
		imageExts:     toSet(cfg.ImageExtensions),
		videoExts:     toSet(cfg.VideoExtensions),
		cfg:           cfg,
	}
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[strings.ToLower(v)] = true
	}
	return set
}

// MaxBatchSize is the largest number of files one batch may carry
func (v *UploadValidator) MaxBatchSize() int {
	return v.maxBatchSize
}

// ValidateBatch returns ErrEmptyBatch for an empty batch and otherwise a
// *models.ValidationError naming every offending file, or nil.
func (v *UploadValidator) ValidateBatch(files []models.FileDescriptor) error {
	if len(files) == 0 {
		return models.ErrEmptyBatch
	}

	verr := models.NewValidationError()
	if len(files) > v.maxBatchSize {
		verr.Add("Too many files: %d (maximum %d per upload)", len(files), v.maxBatchSize)
	}
	for _, f := range files {
		v.validateFile(f, verr)
	}

	if verr.HasProblems() {
		return verr
	}
	return nil
}

func (v *UploadValidator) validateFile(f models.FileDescriptor, verr *models.ValidationError) {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		verr.Add("File name is required")
		return
	}

	mimeType := strings.ToLower(strings.TrimSpace(f.MimeType))
	ext := strings.ToLower(filepath.Ext(name))

	var maxBytes int64
	var extOK bool
	switch {
	case v.imageTypes[mimeType]:
		maxBytes, extOK = v.maxImageBytes, v.imageExts[ext]
	case v.videoTypes[mimeType]:
		maxBytes, extOK = v.maxVideoBytes, v.videoExts[ext]
	default:
		verr.Add("%s: file type %q is not allowed. Allowed types: %s", name, f.MimeType,
			strings.Join(append(append([]string{}, v.cfg.ImageMimeTypes...), v.cfg.VideoMimeTypes...), ", "))
		return
	}

	if !extOK {
		if ext == "" {
			verr.Add("%s: file has no extension", name)
		} else {
			verr.Add("%s: file extension %s is not allowed for %s", name, ext, mimeType)
		}
	}

	switch {
	case f.Size <= 0:
		verr.Add("%s: file is empty", name)
	case f.Size > maxBytes:
		verr.Add("%s: file size exceeds maximum allowed size of %dMB", name, maxBytes/bytesPerMB)
	}
}
