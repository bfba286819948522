package services

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/url"
	"time"

	"github.com/weddingphotos/server/internal/config"
	"github.com/weddingphotos/server/internal/models"
	"github.com/weddingphotos/server/internal/observability"
	"github.com/weddingphotos/server/internal/repository"
)

// magicLinkInterval is the minimum gap between two links for one address
const magicLinkInterval = time.Minute

// AuthService runs passwordless email sign in and web sessions
type AuthService struct {
	userRepo    repository.UserRepo
	linkRepo    repository.MagicLinkRepo
	sessionRepo repository.WebSessionRepo
	mailer      Mailer
	cfg         config.Auth
	metrics     *observability.BusinessMetrics
	logger      *observability.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	userRepo repository.UserRepo,
	linkRepo repository.MagicLinkRepo,
	sessionRepo repository.WebSessionRepo,
	mailer Mailer,
	cfg config.Auth,
	metrics *observability.BusinessMetrics,
) *AuthService {
	if cfg.SessionDurationHours <= 0 {
		cfg.SessionDurationHours = 24
	}
	if cfg.MagicLinkTTLMinutes <= 0 {
		cfg.MagicLinkTTLMinutes = 15
	}
	return &AuthService{
		userRepo:    userRepo,
		linkRepo:    linkRepo,
		sessionRepo: sessionRepo,
		mailer:      mailer,
		cfg:         cfg,
		metrics:     metrics,
		logger:      observability.GetLogger().WithField("component", "auth"),
	}
}

// RequestMagicLink emails a sign-in link and code. Unknown addresses get an
// account on first use. Disabled accounts get nothing, and the caller cannot
// tell the difference.
func (s *AuthService) RequestMagicLink(ctx context.Context, email, ipAddress string) error {
	email, err := models.NormalizeEmail(email)
	if err != nil {
		return err
	}
	logger := s.logger.WithContext(ctx).WithFields(observability.Fields{"email": email, "ip": ipAddress})

	recent, err := s.linkRepo.CountRecentForEmail(ctx, email, time.Now().UTC().Add(-magicLinkInterval))
	if err != nil {
		logger.WithError(err).Warnf("Rate limit check failed")
	}
	if recent > 0 {
		logger.Infof("Rate limited sign-in request")
		return models.ErrRateLimited
	}

	user, err := s.findOrCreateUser(ctx, email)
	if err != nil {
		return err
	}
	if !user.IsActive {
		logger.Warnf("Sign-in requested for disabled account")
		return nil
	}

	link, token, code, err := models.NewMagicLink(user.ID, email, ipAddress, s.cfg.MagicLinkTTL())
	if err != nil {
		return fmt.Errorf("failed to generate sign-in link: %w", err)
	}
	if err := s.linkRepo.Add(ctx, link); err != nil {
		return fmt.Errorf("failed to save sign-in link: %w", err)
	}

	data := SignInEmailData{
		Name:             user.DisplayName,
		Link:             fmt.Sprintf("%s/api/auth/confirm?token=%s", s.cfg.BaseURL, url.QueryEscape(token)),
		Code:             code,
		ExpiresInMinutes: s.cfg.MagicLinkTTLMinutes,
	}
	if err := s.mailer.SendSignInEmail(ctx, email, data); err != nil {
		logger.WithError(err).Errorf("Failed to send sign-in email")
		return fmt.Errorf("failed to send sign-in email: %w", err)
	}

	s.metrics.RecordMagicLink(ctx, "issued")
	logger.Infof("Sign-in email sent")
	return nil
}

func (s *AuthService) findOrCreateUser(ctx context.Context, email string) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user != nil {
		return user, nil
	}

	user, err = models.NewUser(email)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.Add(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return s.userRepo.GetByEmail(ctx, email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.logger.WithField("user_id", user.ID).Infof("Created account for %s", email)
	return user, nil
}

// ConfirmLink redeems the token from an emailed link and opens a session
func (s *AuthService) ConfirmLink(ctx context.Context, token, ipAddress, userAgent string) (*models.WebSession, *models.User, error) {
	tokenHash := models.HashToken(token)

	link, err := s.linkRepo.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up sign-in link: %w", err)
	}
	if link == nil || subtle.ConstantTimeCompare([]byte(link.TokenHash), []byte(tokenHash)) != 1 {
		s.metrics.RecordMagicLink(ctx, "rejected")
		s.logger.WithField("ip", ipAddress).Warnf("Unknown sign-in token")
		return nil, nil, models.ErrMagicLinkInvalid
	}

	return s.redeem(ctx, link, ipAddress, userAgent)
}

// VerifyCode redeems the 6-digit code of the latest link sent to email
func (s *AuthService) VerifyCode(ctx context.Context, email, code, ipAddress, userAgent string) (*models.WebSession, *models.User, error) {
	email, err := models.NormalizeEmail(email)
	if err != nil {
		return nil, nil, err
	}

	link, err := s.linkRepo.GetLatestForEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up sign-in link: %w", err)
	}
	if link == nil || !link.IsValid() {
		s.metrics.RecordMagicLink(ctx, "rejected")
		return nil, nil, models.ErrMagicLinkInvalid
	}
	if !link.CanAttempt() {
		s.metrics.RecordMagicLink(ctx, "rejected")
		return nil, nil, models.ErrTooManyAttempts
	}

	if !link.VerifyCode(code) {
		if err := s.linkRepo.RecordAttempt(ctx, link.ID); err != nil {
			s.logger.WithError(err).Warnf("Failed to record code attempt")
		}
		s.metrics.RecordMagicLink(ctx, "rejected")
		s.logger.WithFields(observability.Fields{"email": email, "ip": ipAddress}).Warnf("Wrong sign-in code")
		return nil, nil, models.ErrInvalidCode
	}

	return s.redeem(ctx, link, ipAddress, userAgent)
}

// redeem marks the link used exactly once and opens a session for its user
func (s *AuthService) redeem(ctx context.Context, link *models.MagicLink, ipAddress, userAgent string) (*models.WebSession, *models.User, error) {
	if !link.IsValid() {
		s.metrics.RecordMagicLink(ctx, "rejected")
		return nil, nil, models.ErrMagicLinkInvalid
	}

	claimed, err := s.linkRepo.MarkUsed(ctx, link.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to redeem sign-in link: %w", err)
	}
	if !claimed {
		s.metrics.RecordMagicLink(ctx, "rejected")
		return nil, nil, models.ErrMagicLinkInvalid
	}

	user, err := s.userRepo.GetByID(ctx, link.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, nil, models.ErrUserNotFound
	}
	if !user.IsActive {
		return nil, nil, models.ErrUserDisabled
	}

	linkID := link.ID
	session := models.NewWebSession(user.ID, &linkID, ipAddress, userAgent, s.cfg.SessionDurationHours)
	if err := s.sessionRepo.Add(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}
	if err := s.userRepo.RecordLogin(ctx, user.ID); err != nil {
		s.logger.WithError(err).Warnf("Failed to record login")
	}

	s.metrics.RecordMagicLink(ctx, "redeemed")
	s.logger.WithContext(ctx).WithFields(observability.Fields{"user_id": user.ID, "ip": ipAddress}).Infof("Signed in")
	return session, user, nil
}

// GetSession retrieves a session and validates it
func (s *AuthService) GetSession(ctx context.Context, sessionID string) (*models.WebSession, *models.User, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session == nil || !session.IsActive {
		return nil, nil, models.ErrSessionNotFound
	}
	if session.IsExpired() {
		return nil, nil, models.ErrSessionExpired
	}

	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil || !user.IsActive {
		return nil, nil, models.ErrUserNotFound
	}

	return session, user, nil
}

// TouchSession records activity on a session
func (s *AuthService) TouchSession(ctx context.Context, sessionID string) error {
	return s.sessionRepo.Touch(ctx, sessionID)
}

// Logout invalidates a session
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.sessionRepo.Invalidate(ctx, sessionID)
}

// Cleanup removes expired sign-in links and sessions
func (s *AuthService) Cleanup(ctx context.Context) {
	if n, err := s.linkRepo.ExpireOld(ctx); err != nil {
		s.logger.WithError(err).Warnf("Failed to remove expired sign-in links")
	} else if n > 0 {
		s.logger.Infof("Removed %d expired sign-in links", n)
	}

	if n, err := s.sessionRepo.CleanupExpired(ctx); err != nil {
		s.logger.WithError(err).Warnf("Failed to remove expired sessions")
	} else if n > 0 {
		s.logger.Infof("Removed %d expired sessions", n)
	}
}

// RunCleanup calls Cleanup every interval until ctx is done
func (s *AuthService) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup(ctx)
		}
	}
}

// SessionDuration is how long a new session stays valid
func (s *AuthService) SessionDuration() time.Duration {
	return time.Duration(s.cfg.SessionDurationHours) * time.Hour
}
