package models

import (
	"crypto/sha256"
	"encoding/hex"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is an account that signs in through an emailed magic link
type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"displayName"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	IsActive    bool       `json:"isActive"`
}

// UserResponse is the safe response format
type UserResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewUser creates a user on first sign in. The display name defaults to the
// local part of the address.
func NewUser(email string) (*User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	displayName := email
	if at := strings.Index(email, "@"); at > 0 {
		displayName = email[:at]
	}

	return &User{
		ID:          uuid.New().String(),
		Email:       email,
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
		IsActive:    true,
	}, nil
}

// NormalizeEmail trims, lowercases and validates an email address
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "", ErrEmptyEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// ToResponse converts User to UserResponse (safe for API)
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}

// HashToken creates a SHA256 hash of a secret token
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// User errors
var (
	ErrEmptyEmail   = UserError{"email cannot be empty"}
	ErrInvalidEmail = UserError{"email address is not valid"}
	ErrUserNotFound = UserError{"user not found"}
	ErrUserDisabled = UserError{"user account is disabled"}
)

type UserError struct {
	Message string
}

func (e UserError) Error() string {
	return e.Message
}
