package models

import "time"

const DefaultAvatar = "default"

type User struct {
	ID           int64
	Username     string
	PasswordHash []byte
	Points       int64
	Avatar       string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Authenticated is request scoped and never persisted.
	Authenticated bool
}

// HasCredentials reports whether the user registered with a password, as
// opposed to a reference row created when someone added them to a game.
func (u User) HasCredentials() bool {
	return len(u.PasswordHash) > 0
}

type SessionToken struct {
	ID        int64
	UserID    int64
	TokenHash []byte
	CreatedAt time.Time
	RenewedAt time.Time
	ExpiresAt time.Time
}

func (t SessionToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
