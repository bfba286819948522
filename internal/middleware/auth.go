package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/weddingphotos/server/internal/models"
	"github.com/weddingphotos/server/internal/observability"
)

type contextKey string

const (
	UserContextKey    contextKey = "user"
	SessionContextKey contextKey = "session"
)

// SessionResolver looks up a web session and its user
type SessionResolver interface {
	GetSession(ctx context.Context, sessionID string) (*models.WebSession, *models.User, error)
	TouchSession(ctx context.Context, sessionID string) error
}

// GetUserFromContext retrieves the authenticated user from request context
func GetUserFromContext(ctx context.Context) *models.User {
	if user, ok := ctx.Value(UserContextKey).(*models.User); ok {
		return user
	}
	return nil
}

// GetSessionFromContext retrieves the web session from request context
func GetSessionFromContext(ctx context.Context) *models.WebSession {
	if session, ok := ctx.Value(SessionContextKey).(*models.WebSession); ok {
		return session
	}
	return nil
}

// SessionAuth resolves the session cookie into the request context. Requests
// without a usable session pass through anonymously; RequireUser rejects them.
func SessionAuth(resolver SessionResolver, cookieName string) func(http.Handler) http.Handler {
	logger := observability.GetLogger().WithField("component", "auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, user, err := resolver.GetSession(r.Context(), cookie.Value)
			if err != nil {
				if !isSessionRejection(err) {
					logger.WithContext(r.Context()).WithError(err).Errorf("Session lookup failed")
				}
				next.ServeHTTP(w, r)
				return
			}

			// Update last activity (async, don't wait)
			go func(id string) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := resolver.TouchSession(ctx, id); err != nil {
					logger.WithError(err).Debugf("Failed to touch session")
				}
			}(session.ID)

			ctx := context.WithValue(r.Context(), SessionContextKey, session)
			ctx = context.WithValue(ctx, UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects requests that carry no signed-in user
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserFromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "Authentication required.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isSessionRejection(err error) bool {
	return errors.Is(err, models.ErrSessionNotFound) ||
		errors.Is(err, models.ErrSessionExpired) ||
		errors.Is(err, models.ErrUserNotFound)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{Error: message})
}
