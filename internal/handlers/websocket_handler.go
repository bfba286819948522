package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/weddingphotos/server/internal/middleware"
	"github.com/weddingphotos/server/internal/observability"
	"github.com/weddingphotos/server/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WebSocketHandler streams upload events to signed-in browsers
type WebSocketHandler struct {
	hub    *services.WebSocketHub
	logger *observability.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler
func NewWebSocketHandler(hub *services.WebSocketHub) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		logger: observability.GetLogger().WithField("component", "websocket"),
	}
}

// HandleConnection upgrades HTTP to WebSocket and manages the connection
// @Summary Event stream
// @Description Upgrades to a websocket that receives upload.finalized and mirror.synced events for the signed-in user
// @Tags events
// @Success 101 "Switching protocols"
// @Failure 401 {object} models.ErrorResponse
// @Security SessionAuth
// @Router /ws [get]
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "Authentication required.")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warnf("WebSocket upgrade failed")
		return
	}

	client := h.hub.NewClient(uuid.New().String(), user.ID, conn)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	client.ReadPump()
}
