package handlers

import (
	"net/http"

	"github.com/weddingphotos/server/internal/middleware"
	"github.com/weddingphotos/server/internal/models"
	"github.com/weddingphotos/server/internal/services"
)

// UploadHandler handles the negotiate and finalize endpoints
type UploadHandler struct {
	uploads *services.UploadService
}

// NewUploadHandler creates a new UploadHandler
func NewUploadHandler(uploads *services.UploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

// Negotiate opens a direct upload batch
// @Summary Negotiate upload
// @Description Validates the files, resolves the caller's album and returns the provider endpoint and authorization the client streams bytes to
// @Tags uploads
// @Accept json
// @Produce json
// @Param request body models.NegotiateRequest true "Files to upload"
// @Success 200 {object} models.NegotiateResult
// @Failure 400 {object} models.ErrorResponse "Validation failed"
// @Failure 401 {object} models.ErrorResponse "Not signed in"
// @Failure 502 {object} models.ErrorResponse "Media library unavailable"
// @Security SessionAuth
// @Router /api/uploads/negotiate [post]
func (h *UploadHandler) Negotiate(w http.ResponseWriter, r *http.Request) {
	var req models.NegotiateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.uploads.Negotiate(r.Context(), middleware.GetUserFromContext(r.Context()), req.Files)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Finalize materializes uploaded tokens as media items
// @Summary Finalize upload
// @Description Creates media items for uploaded tokens in one batch. Items the media library rejects are reported per item.
// @Tags uploads
// @Accept json
// @Produce json
// @Param request body models.FinalizeRequest true "Uploaded tokens"
// @Success 200 {object} models.FinalizeResult
// @Failure 400 {object} models.ErrorResponse "Validation failed"
// @Failure 401 {object} models.ErrorResponse "Not signed in"
// @Failure 403 {object} models.ErrorResponse "Album belongs to someone else"
// @Failure 404 {object} models.ErrorResponse "Album not found"
// @Failure 502 {object} models.ErrorResponse "Media library unavailable"
// @Security SessionAuth
// @Router /api/uploads/finalize [post]
func (h *UploadHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	var req models.FinalizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.uploads.Finalize(r.Context(), middleware.GetUserFromContext(r.Context()), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
