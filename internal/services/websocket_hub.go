package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/weddingphotos/server/internal/observability"
)

// Event types pushed to signed-in browsers
const (
	EventUploadFinalized = "upload.finalized"
	EventMirrorSynced    = "mirror.synced"
	EventPing            = "ping"
	EventPong            = "pong"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// UploadFinalizedPayload is sent after a batch finalize
type UploadFinalizedPayload struct {
	AlbumID       string `json:"albumId"`
	FilesUploaded int    `json:"filesUploaded"`
	TotalCount    int    `json:"totalCount"`
}

// MirrorSyncedPayload is sent after the metadata mirror absorbed new items
type MirrorSyncedPayload struct {
	AlbumID string `json:"albumId"`
	Count   int    `json:"count"`
}

// EventPublisher delivers events to every connection of a user
type EventPublisher interface {
	SendToUser(userID string, msg WSMessage)
}

// WSClient is one websocket connection of a signed-in user
type WSClient struct {
	ID         string
	UserID     string
	Conn       *websocket.Conn
	Send       chan []byte
	hub        *WebSocketHub
	closedOnce sync.Once
}

// WebSocketHub fans events out to the connections of each user
type WebSocketHub struct {
	userConns  map[string]map[*WSClient]bool
	register   chan *WSClient
	unregister chan *WSClient
	broadcast  chan *userMessage
	done       chan struct{}
	mu         sync.RWMutex
	logger     *observability.Logger
}

type userMessage struct {
	userID  string
	message []byte
}

// NewWebSocketHub creates a new WebSocket hub
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		userConns:  make(map[string]map[*WSClient]bool),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		broadcast:  make(chan *userMessage, 256),
		done:       make(chan struct{}),
		logger:     observability.GetLogger().WithField("component", "websocket"),
	}
}

// Run serves register, unregister and delivery requests until ctx is done
func (h *WebSocketHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.userConns[client.UserID] == nil {
				h.userConns[client.UserID] = make(map[*WSClient]bool)
			}
			h.userConns[client.UserID][client] = true
			h.mu.Unlock()
			h.logger.WithField("user_id", client.UserID).Debugf("WebSocket client connected: %s", client.ID)

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.userConns[msg.userID] {
				select {
				case client.Send <- msg.message:
				default:
					// Slow consumer
					go h.Unregister(client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *WebSocketHub) remove(client *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.userConns[client.UserID]
	if !ok || !conns[client] {
		return
	}
	delete(conns, client)
	if len(conns) == 0 {
		delete(h.userConns, client.UserID)
	}
	close(client.Send)
	h.logger.WithField("user_id", client.UserID).Debugf("WebSocket client disconnected: %s", client.ID)
}

func (h *WebSocketHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, conns := range h.userConns {
		for client := range conns {
			close(client.Send)
		}
		delete(h.userConns, userID)
	}
}

// Register adds a client to the hub. It returns false once the hub stopped.
func (h *WebSocketHub) Register(client *WSClient) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client from the hub
func (h *WebSocketHub) Unregister(client *WSClient) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// SendToUser queues msg for every connection of userID. Events are dropped
// when the queue is full.
func (h *WebSocketHub) SendToUser(userID string, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.WithError(err).Errorf("Failed to marshal %s event", msg.Type)
		return
	}

	select {
	case h.broadcast <- &userMessage{userID: userID, message: data}:
	default:
		h.logger.WithField("user_id", userID).Warnf("Dropping %s event, hub queue full", msg.Type)
	}
}

// ConnectionCount returns the number of open connections of userID
func (h *WebSocketHub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userConns[userID])
}

// NewClient creates a client for userID connected to this hub
func (h *WebSocketHub) NewClient(id, userID string, conn *websocket.Conn) *WSClient {
	return &WSClient{
		ID:     id,
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 64),
		hub:    h,
	}
}

// Close unregisters the client and closes its connection
func (c *WSClient) Close() {
	c.closedOnce.Do(func() {
		c.hub.Unregister(c)
		c.Conn.Close()
	})
}

// WritePump pumps messages from the hub to the websocket connection
func (c *WSClient) WritePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump reads client messages until the connection drops. Only ping is
// understood; the answer goes through the send queue.
func (c *WSClient) ReadPump() {
	defer c.Close()

	c.Conn.SetReadLimit(4 * 1024)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithError(err).Warnf("WebSocket read error")
			}
			return
		}

		var msg WSMessage
		if json.Unmarshal(data, &msg) == nil && msg.Type == EventPing {
			c.hub.SendToUser(c.UserID, WSMessage{Type: EventPong})
		}
	}
}
