package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/weddingphotos/server/internal/middleware"
	"github.com/weddingphotos/server/internal/models"
	"github.com/weddingphotos/server/internal/observability"
	"github.com/weddingphotos/server/internal/services"
)

// GalleryHandler handles album, gallery and item endpoints
type GalleryHandler struct {
	gallery *services.GalleryService
}

// NewGalleryHandler creates a new GalleryHandler
func NewGalleryHandler(gallery *services.GalleryService) *GalleryHandler {
	return &GalleryHandler{gallery: gallery}
}

// ListAlbums returns the albums the caller may view
// @Summary List albums
// @Description The caller's own album plus every public album, newest first
// @Tags gallery
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Success 200 {object} models.AlbumListResponse
// @Failure 401 {object} models.ErrorResponse
// @Security SessionAuth
// @Router /api/albums [get]
func (h *GalleryHandler) ListAlbums(w http.ResponseWriter, r *http.Request) {
	resp, err := h.gallery.ListAlbums(r.Context(), middleware.GetUserFromContext(r.Context()), parsePage(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// AlbumItems returns one page of an album
// @Summary List album items
// @Tags gallery
// @Produce json
// @Param albumId path string true "Album ID"
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Success 200 {object} models.AlbumItemsResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security SessionAuth
// @Router /api/albums/{albumId}/items [get]
func (h *GalleryHandler) AlbumItems(w http.ResponseWriter, r *http.Request) {
	albumID := chi.URLParam(r, "albumId")

	resp, err := h.gallery.AlbumItems(r.Context(), middleware.GetUserFromContext(r.Context()), albumID, parsePage(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// GalleryItems returns the caller's items plus those of public albums
// @Summary List gallery items
// @Tags gallery
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Success 200 {object} models.GalleryResponse
// @Failure 401 {object} models.ErrorResponse
// @Security SessionAuth
// @Router /api/gallery/items [get]
func (h *GalleryHandler) GalleryItems(w http.ResponseWriter, r *http.Request) {
	resp, err := h.gallery.GalleryItems(r.Context(), middleware.GetUserFromContext(r.Context()), parsePage(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// DownloadURL mints an original-quality download link
// @Summary Get download URL
// @Tags items
// @Produce json
// @Param itemId path string true "Media item ID (local or provider)"
// @Success 200 {object} models.DownloadURLResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Security SessionAuth
// @Router /api/items/{itemId}/download-url [get]
func (h *GalleryHandler) DownloadURL(w http.ResponseWriter, r *http.Request) {
	resp, err := h.gallery.DownloadURL(r.Context(), middleware.GetUserFromContext(r.Context()), chi.URLParam(r, "itemId"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// BulkDownloadURLs mints download links for several items
// @Summary Get download URLs
// @Description Each id gets a link or an error message
// @Tags items
// @Accept json
// @Produce json
// @Param request body models.BulkDownloadRequest true "Media item IDs (at most 50)"
// @Success 200 {object} models.BulkDownloadResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Security SessionAuth
// @Router /api/items/download-urls [post]
func (h *GalleryHandler) BulkDownloadURLs(w http.ResponseWriter, r *http.Request) {
	var req models.BulkDownloadRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.gallery.BulkDownload(r.Context(), middleware.GetUserFromContext(r.Context()), req.MediaItemIDs)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// DisplayURL mints a sized rendition link
// @Summary Get display URL
// @Tags items
// @Produce json
// @Param itemId path string true "Media item ID (local or provider)"
// @Param w query int false "Width in pixels"
// @Param h query int false "Height in pixels"
// @Success 200 {object} models.DisplayURLResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Security SessionAuth
// @Router /api/items/{itemId}/display-url [get]
func (h *GalleryHandler) DisplayURL(w http.ResponseWriter, r *http.Request) {
	resp, err := h.gallery.DisplayURL(r.Context(), middleware.GetUserFromContext(r.Context()),
		chi.URLParam(r, "itemId"), queryInt(r, "w"), queryInt(r, "h"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Image proxies the bytes of a sized rendition
// @Summary Get image
// @Tags items
// @Produce image/jpeg
// @Param itemId path string true "Media item ID (local or provider)"
// @Param w query int false "Width in pixels"
// @Param h query int false "Height in pixels"
// @Success 200 {file} binary
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Security SessionAuth
// @Router /api/items/{itemId}/image [get]
func (h *GalleryHandler) Image(w http.ResponseWriter, r *http.Request) {
	body, contentType, err := h.gallery.Image(r.Context(), middleware.GetUserFromContext(r.Context()),
		chi.URLParam(r, "itemId"), queryInt(r, "w"), queryInt(r, "h"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	defer body.Close()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	// provider base URLs expire after about an hour
	w.Header().Set("Cache-Control", "private, max-age=3000")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		observability.GetLogger().WithContext(r.Context()).WithError(err).Debugf("Image stream interrupted")
	}
}

// LibraryItems lists the caller's album straight from the media library
// @Summary List library items
// @Description Reads a page from the media library and refreshes the local mirror with it
// @Tags gallery
// @Produce json
// @Param pageSize query int false "Page size (max 100)"
// @Param pageToken query string false "Provider page token"
// @Success 200 {object} models.LibraryItemsResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Security SessionAuth
// @Router /api/library/items [get]
func (h *GalleryHandler) LibraryItems(w http.ResponseWriter, r *http.Request) {
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))

	resp, err := h.gallery.LibraryItems(r.Context(), middleware.GetUserFromContext(r.Context()),
		pageSize, r.URL.Query().Get("pageToken"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
