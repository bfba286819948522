package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/weddingphotos/server/internal/medialibrary"
	"github.com/weddingphotos/server/internal/models"
	"github.com/weddingphotos/server/internal/observability"
)

const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResponse{Error: message})
}

// respondServiceError maps a service error onto its HTTP status
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *models.ValidationError
	var upErr *models.UpstreamError

	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Validation failed.", Details: verr.Problems})

	case errors.Is(err, models.ErrEmptyBatch),
		errors.Is(err, models.ErrNoTokens),
		errors.Is(err, models.ErrInvalidEmail),
		errors.Is(err, models.ErrEmptyEmail):
		respondError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, models.ErrAuthenticationRequired),
		errors.Is(err, models.ErrMagicLinkInvalid),
		errors.Is(err, models.ErrInvalidCode),
		errors.Is(err, models.ErrSessionNotFound),
		errors.Is(err, models.ErrSessionExpired),
		errors.Is(err, models.ErrUserNotFound):
		respondError(w, http.StatusUnauthorized, err.Error())

	case errors.Is(err, models.ErrAlbumAccessDenied),
		errors.Is(err, models.ErrMediaItemAccessDenied),
		errors.Is(err, models.ErrUserDisabled):
		respondError(w, http.StatusForbidden, err.Error())

	case errors.Is(err, models.ErrAlbumNotFound),
		errors.Is(err, models.ErrMediaItemNotFound):
		respondError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, models.ErrRateLimited),
		errors.Is(err, models.ErrTooManyAttempts):
		respondError(w, http.StatusTooManyRequests, err.Error())

	case errors.As(err, &upErr):
		observability.GetLogger().WithContext(r.Context()).WithError(err).Errorf("%s %s: upstream failure", r.Method, r.URL.Path)
		respondJSON(w, http.StatusBadGateway, upstreamErrorResponse(upErr))

	case errors.Is(err, models.ErrAlbumCreationFailed):
		respondError(w, http.StatusBadGateway, err.Error())

	default:
		observability.GetLogger().WithContext(r.Context()).WithError(err).Errorf("%s %s failed", r.Method, r.URL.Path)
		respondError(w, http.StatusInternalServerError, "Internal server error.")
	}
}

// upstreamErrorResponse attaches the provider's status and message
func upstreamErrorResponse(upErr *models.UpstreamError) models.ErrorResponse {
	resp := models.ErrorResponse{
		Error:   "The media library is unavailable. Please try again.",
		Details: []string{upErr.Op + " failed: " + upErr.Err.Error()},
	}

	var apiErr *medialibrary.APIError
	if errors.As(upErr.Err, &apiErr) {
		msg := apiErr.Details.Message
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		resp.UpstreamStatus = apiErr.StatusCode
		resp.Details = []string{fmt.Sprintf("%s failed: %d %s", upErr.Op, apiErr.StatusCode, msg)}
		if apiErr.Details.Status != "" {
			resp.Details = append(resp.Details, apiErr.Details.Status)
		}
	}
	return resp
}

// decodeJSON reads a JSON request body of bounded size
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return false
	}
	return true
}

// parsePage reads page (or pageToken) and pageSize query parameters
func parsePage(r *http.Request) models.Page {
	q := r.URL.Query()

	var page models.Page
	raw := q.Get("page")
	if raw == "" {
		raw = q.Get("pageToken")
	}
	if n, err := strconv.Atoi(raw); err == nil {
		page.Number = n
	}
	if n, err := strconv.Atoi(q.Get("pageSize")); err == nil {
		page.Size = n
	}
	return page.Normalize()
}

func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
