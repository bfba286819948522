package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MaxMagicLinkAttempts is how many wrong codes a link tolerates
const MaxMagicLinkAttempts = 3

// MagicLink is a single-use passwordless sign-in credential. The email carries
// both a clickable link token and a 6-digit code; only hashes are stored.
type MagicLink struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Email     string     `json:"email"`
	TokenHash string     `json:"-"`
	CodeHash  string     `json:"-"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt time.Time  `json:"expiresAt"`
	Used      bool       `json:"used"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	Attempts  int        `json:"attempts"`
	IPAddress string     `json:"ipAddress,omitempty"`
}

// NewMagicLink creates a link valid for ttl.
// Returns the link and the plaintext token and code (only shown once).
func NewMagicLink(userID, email, ipAddress string, ttl time.Duration) (*MagicLink, string, string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, "", "", err
	}
	plainToken := hex.EncodeToString(tokenBytes)

	code, err := generateSixDigitCode()
	if err != nil {
		return nil, "", "", err
	}
	codeHash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to hash code: %w", err)
	}

	now := time.Now().UTC()
	return &MagicLink{
		ID:        uuid.New().String(),
		UserID:    userID,
		Email:     email,
		TokenHash: HashToken(plainToken),
		CodeHash:  string(codeHash),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		IPAddress: ipAddress,
	}, plainToken, code, nil
}

// VerifyCode checks if the provided code matches (constant-time via bcrypt)
func (m *MagicLink) VerifyCode(code string) bool {
	if m.CodeHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(m.CodeHash), []byte(code)) == nil
}

// IsExpired checks if the link has expired
func (m *MagicLink) IsExpired() bool {
	return time.Now().UTC().After(m.ExpiresAt)
}

// IsValid checks if the link is still redeemable
func (m *MagicLink) IsValid() bool {
	return !m.Used && !m.IsExpired()
}

// CanAttempt checks if more code attempts are allowed
func (m *MagicLink) CanAttempt() bool {
	return m.Attempts < MaxMagicLinkAttempts
}

func generateSixDigitCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Magic link errors
var (
	ErrMagicLinkInvalid = MagicLinkError{"sign-in link is invalid or has expired"}
	ErrInvalidCode      = MagicLinkError{"invalid sign-in code"}
	ErrTooManyAttempts  = MagicLinkError{"too many attempts"}
	ErrRateLimited      = MagicLinkError{"please wait before requesting another link"}
)

type MagicLinkError struct {
	Message string
}

func (e MagicLinkError) Error() string {
	return e.Message
}
