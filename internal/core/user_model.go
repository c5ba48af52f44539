package core

import (
	"context"
	"time"
)

// User is a registered account. Every user is a Principal for the data they own.
type User struct {
	ID           int
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Principal returns the ownership identity for u.
func (u *User) Principal() Principal {
	return Principal{UserID: u.ID, Username: u.Username}
}

// UserService registers and authenticates users.
type UserService interface {
	// Register creates a user with a bcrypt-hashed password. ErrUsernameTaken on duplicates.
	Register(ctx context.Context, username, password string) (*User, error)

	// Authenticate returns the user when the password matches. Unknown usernames and
	// wrong passwords both yield ErrInvalidCredentials.
	Authenticate(ctx context.Context, username, password string) (*User, error)

	// GetByID returns a user by primary key.
	GetByID(ctx context.Context, userID int) (*User, error)
}
