package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/weddingphotos/server/internal/config"
	"github.com/weddingphotos/server/internal/middleware"
	"github.com/weddingphotos/server/internal/models"
	"github.com/weddingphotos/server/internal/services"
)

// AuthHandler handles passwordless sign in and web sessions
type AuthHandler struct {
	auth *services.AuthService
	cfg  config.Auth
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(auth *services.AuthService, cfg config.Auth) *AuthHandler {
	if cfg.CookieName == "" {
		cfg.CookieName = "session_token"
	}
	return &AuthHandler{auth: auth, cfg: cfg}
}

// RequestMagicLink emails a sign-in link and code
// @Summary Request sign-in email
// @Description Sends a one-time link and 6-digit code. The answer does not reveal whether the address has an account.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.MagicLinkRequest true "Email address"
// @Success 200 {object} models.MessageResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /api/auth/magic-link [post]
func (h *AuthHandler) RequestMagicLink(w http.ResponseWriter, r *http.Request) {
	var req models.MagicLinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.auth.RequestMagicLink(r.Context(), req.Email, middleware.ClientIP(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.MessageResponse{
		Message: "If this address can sign in, a sign-in link is on its way.",
	})
}

// Confirm redeems the token of an emailed link and redirects to the gallery
// @Summary Confirm sign-in link
// @Tags auth
// @Param token query string true "Token from the emailed link"
// @Success 303 "Redirect to /gallery with a session cookie"
// @Failure 303 "Redirect to /login with an error"
// @Router /api/auth/confirm [get]
func (h *AuthHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Redirect(w, r, loginErrorURL(models.ErrMagicLinkInvalid.Error()), http.StatusSeeOther)
		return
	}

	session, _, err := h.auth.ConfirmLink(r.Context(), token, middleware.ClientIP(r), r.UserAgent())
	if err != nil {
		http.Redirect(w, r, loginErrorURL(err.Error()), http.StatusSeeOther)
		return
	}

	h.setSessionCookie(w, session)
	http.Redirect(w, r, "/gallery", http.StatusSeeOther)
}

// VerifyCode redeems the 6-digit code of an emailed link
// @Summary Verify sign-in code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.VerifyCodeRequest true "Email and code"
// @Success 200 {object} models.SessionResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse "Too many attempts"
// @Router /api/auth/verify-code [post]
func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyCodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, user, err := h.auth.VerifyCode(r.Context(), req.Email, req.Code, middleware.ClientIP(r), r.UserAgent())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	h.setSessionCookie(w, session)
	respondJSON(w, http.StatusOK, models.SessionResponse{
		ExpiresAt:      session.ExpiresAt,
		LastActivityAt: session.LastActivityAt,
		User:           user.ToResponse(),
	})
}

// Session returns the signed-in user
// @Summary Current session
// @Tags auth
// @Produce json
// @Success 200 {object} models.SessionResponse
// @Failure 401 {object} models.ErrorResponse
// @Security SessionAuth
// @Router /api/auth/session [get]
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	user := middleware.GetUserFromContext(r.Context())
	if session == nil || user == nil {
		respondServiceError(w, r, models.ErrAuthenticationRequired)
		return
	}

	respondJSON(w, http.StatusOK, models.SessionResponse{
		ExpiresAt:      session.ExpiresAt,
		LastActivityAt: session.LastActivityAt,
		User:           user.ToResponse(),
	})
}

// Logout ends the current session
// @Summary Sign out
// @Tags auth
// @Produce json
// @Success 200 {object} models.MessageResponse
// @Router /api/auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if session := middleware.GetSessionFromContext(r.Context()); session != nil {
		if err := h.auth.Logout(r.Context(), session.ID); err != nil {
			respondServiceError(w, r, err)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, models.MessageResponse{Message: "Signed out."})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, session *models.WebSession) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func loginErrorURL(message string) string {
	return "/login?error=" + url.QueryEscape(message)
}
