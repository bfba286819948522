package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/weddingphotos/server/internal/models"
)

// Pinger reports whether the metadata store is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// HealthCheck returns the server health status
// @Summary Health check
// @Description Returns the current health status of the server and its database
// @Tags health
// @Produce json
// @Success 200 {object} models.HealthResponse "Server is healthy"
// @Failure 503 {object} models.HealthResponse "Database unreachable"
// @Router /api/health [get]
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.HealthResponse{
		Status:    "healthy",
		Database:  "ok",
		Timestamp: time.Now().UTC(),
	}
	status := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		response.Status = "unhealthy"
		response.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, response)
}
