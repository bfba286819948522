package models

import (
	"time"

	"github.com/google/uuid"
)

// WebSession represents an authenticated browser session
type WebSession struct {
	ID             string    `json:"id"` // This is the session token
	UserID         string    `json:"userId"`
	MagicLinkID    *string   `json:"magicLinkId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	IPAddress      string    `json:"ipAddress,omitempty"`
	UserAgent      string    `json:"userAgent,omitempty"`
	IsActive       bool      `json:"isActive"`
}

// SessionResponse is the safe response format
type SessionResponse struct {
	ExpiresAt      time.Time    `json:"expiresAt"`
	LastActivityAt time.Time    `json:"lastActivityAt"`
	User           UserResponse `json:"user"`
}

// NewWebSession creates a session opened by redeeming a magic link
func NewWebSession(userID string, magicLinkID *string, ipAddress, userAgent string, durationHours int) *WebSession {
	now := time.Now().UTC()
	return &WebSession{
		ID:             uuid.New().String(),
		UserID:         userID,
		MagicLinkID:    magicLinkID,
		CreatedAt:      now,
		ExpiresAt:      now.Add(time.Duration(durationHours) * time.Hour),
		LastActivityAt: now,
		IPAddress:      ipAddress,
		UserAgent:      userAgent,
		IsActive:       true,
	}
}

// IsExpired checks if the session has expired
func (s *WebSession) IsExpired() bool {
	return time.Now().UTC().After(s.ExpiresAt)
}

// IsUsable reports whether the session may authenticate a request
func (s *WebSession) IsUsable() bool {
	return s.IsActive && !s.IsExpired()
}

// WebSession errors
var (
	ErrSessionNotFound = SessionError{"session not found"}
	ErrSessionExpired  = SessionError{"session has expired"}
)

type SessionError struct {
	Message string
}

func (e SessionError) Error() string {
	return e.Message
}
