package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/odyssey-erp/grouprole-condition/internal/platform/httpx"
)

var (
	// ErrInvalidCredentials is returned for unknown users, wrong passwords and inactive accounts alike.
	ErrInvalidCredentials = fmt.Errorf("auth: invalid credentials: %w", httpx.ErrUnauthorized)
	// ErrUserNotFound indicates that no account matches the email.
	ErrUserNotFound = errors.New("auth: user not found")
)

// User represents an account that can act on conditions.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
