package auth

import (
	"errors"
	"time"
)

// User represents an authenticated user account.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ErrInvalidCredentials indicates login failure. It deliberately does not
// distinguish unknown accounts from wrong passwords.
var ErrInvalidCredentials = errors.New("invalid credentials")
