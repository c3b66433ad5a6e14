// Package repository defines the persistence contract for the game backend and
// its PostgreSQL implementation. Every mutation runs inside Store.Tx.
package repository

import (
	"context"
	"errors"
	"time"

	"bossfit/internal/models"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrTokenNotFound = errors.New("session token not found")
	ErrEdgeNotFound  = errors.New("friend edge not found")
	ErrGameNotFound  = errors.New("game session not found")

	// ErrNotUnique means a lookup the schema should make unique matched
	// several rows. It is a data integrity fault, never resolved by picking one.
	ErrNotUnique = errors.New("lookup matched more than one row")

	// ErrDuplicate reports a unique constraint violation on insert.
	ErrDuplicate = errors.New("duplicate row")

	// ErrUnavailable wraps store failures that are worth retrying later.
	ErrUnavailable = errors.New("store unavailable")
)

// UserQuery selects users by exactly the fields that are set.
type UserQuery struct {
	ID       *int64
	Username *string
}

func ByID(id int64) UserQuery {
	return UserQuery{ID: &id}
}

func ByUsername(username string) UserQuery {
	return UserQuery{Username: &username}
}

func (q UserQuery) Empty() bool {
	return q.ID == nil && q.Username == nil
}

func (q UserQuery) Matches(u models.User) bool {
	if q.ID != nil && u.ID != *q.ID {
		return false
	}
	if q.Username != nil && u.Username != *q.Username {
		return false
	}
	return true
}

type UserRepository interface {
	// Create assigns ID and timestamps. A taken username yields ErrDuplicate.
	Create(ctx context.Context, user *models.User) error
	Find(ctx context.Context, q UserQuery) (models.User, error)
	// FindForUpdate locks the row until the transaction ends.
	FindForUpdate(ctx context.Context, id int64) (models.User, error)
	ListByIDs(ctx context.Context, ids []int64) ([]models.User, error)
	// ClaimPasswordHash sets hash on a row that has none. A row that already
	// carries credentials yields ErrDuplicate and is left unchanged.
	ClaimPasswordHash(ctx context.Context, id int64, hash []byte) error
	// Reference returns the row for username, inserting one without
	// credentials when it is missing.
	Reference(ctx context.Context, username string) (models.User, error)
	AddPoints(ctx context.Context, id int64, delta int64) error
	UpdateWallet(ctx context.Context, id int64, points int64, avatar string) error
}

type TokenRepository interface {
	Create(ctx context.Context, token *models.SessionToken) error
	GetByHash(ctx context.Context, hash []byte) (models.SessionToken, error)
	Renew(ctx context.Context, hash []byte, renewedAt time.Time, expiresAt time.Time) error
	// DeleteByHash is a no-op for unknown hashes.
	DeleteByHash(ctx context.Context, hash []byte) error
	CountByUser(ctx context.Context, userID int64) (int, error)
	// DeleteOldest keeps the keepLatest most recently renewed tokens of userID
	// and returns the digests it removed.
	DeleteOldest(ctx context.Context, userID int64, keepLatest int) ([][]byte, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type FriendRepository interface {
	// Create inserts an edge; any existing edge for the unordered pair yields ErrDuplicate.
	Create(ctx context.Context, edge *models.FriendEdge) error
	// FindBetween looks the pair up in either direction.
	FindBetween(ctx context.Context, a int64, b int64) (models.FriendEdge, error)
	Confirm(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	// ListTouching returns every edge with userID at either end, in insertion order.
	ListTouching(ctx context.Context, userID int64) ([]models.FriendEdge, error)
}

type GameRepository interface {
	Create(ctx context.Context, game *models.GameSession) error
	Get(ctx context.Context, id int64) (models.GameSession, error)
	GetForUpdate(ctx context.Context, id int64) (models.GameSession, error)
	UpdateBossHealth(ctx context.Context, id int64, health int) error
	// Delete removes the session and detaches its members.
	Delete(ctx context.Context, id int64) error
	ListByMember(ctx context.Context, userID int64) ([]models.GameSession, error)
	DeleteStartedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Repos interface {
	Users() UserRepository
	Tokens() TokenRepository
	Friends() FriendRepository
	Games() GameRepository
}

// Store hands out transaction-scoped repositories. fn's error rolls the
// transaction back; nil commits it.
type Store interface {
	Tx(ctx context.Context, fn func(Repos) error) error
	Ping(ctx context.Context) error
}
