package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"bossfit/internal/models"
	"bossfit/internal/repository"
	"bossfit/internal/security"
)

// TokenCache is an optional read-through cache of token digest to user id.
type TokenCache interface {
	Get(ctx context.Context, hash []byte) (int64, bool, error)
	Set(ctx context.Context, hash []byte, userID int64, ttl time.Duration) error
	Delete(ctx context.Context, hash []byte) error
}

type TokenConfig struct {
	TTL        time.Duration
	MaxPerUser int
	Cache      TokenCache
	Clock      func() time.Time
}

// TokenManager issues opaque bearer tokens with a sliding expiry. Only the
// token digest is stored.
type TokenManager struct {
	store      repository.Store
	cache      TokenCache
	ttl        time.Duration
	maxPerUser int
	now        func() time.Time
	log        zerolog.Logger
}

func NewTokenManager(store repository.Store, cfg TokenConfig, log zerolog.Logger) *TokenManager {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &TokenManager{
		store:      store,
		cache:      cfg.Cache,
		ttl:        cfg.TTL,
		maxPerUser: cfg.MaxPerUser,
		now:        now,
		log:        log,
	}
}

func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

func (m *TokenManager) Issue(ctx context.Context, user models.User) (string, error) {
	token, hash, err := security.GenerateSessionToken()
	if err != nil {
		return "", storeErr(err)
	}

	now := m.now()
	record := models.SessionToken{
		UserID:    user.ID,
		TokenHash: hash,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	var dropped [][]byte
	err = m.store.Tx(ctx, func(r repository.Repos) error {
		if err := r.Tokens().Create(ctx, &record); err != nil {
			return err
		}
		if m.maxPerUser <= 0 {
			return nil
		}
		count, err := r.Tokens().CountByUser(ctx, user.ID)
		if err != nil {
			return err
		}
		if count > m.maxPerUser {
			dropped, err = r.Tokens().DeleteOldest(ctx, user.ID, m.maxPerUser)
		}
		return err
	})
	if err != nil {
		return "", storeErr(err)
	}

	for _, old := range dropped {
		m.cacheDelete(ctx, old)
	}
	m.cacheSet(ctx, hash, user.ID)
	return token, nil
}

// Resolve returns the user bound to token. Any failure, including store
// errors, reads as unauthenticated.
func (m *TokenManager) Resolve(ctx context.Context, token string) (models.User, bool) {
	if token == "" {
		return models.User{}, false
	}
	hash := security.HashSessionToken(token)

	if user, ok := m.resolveCached(ctx, hash); ok {
		return user, true
	}

	var (
		user    models.User
		expired bool
	)
	err := m.store.Tx(ctx, func(r repository.Repos) error {
		record, err := r.Tokens().GetByHash(ctx, hash)
		if err != nil {
			return err
		}
		if record.Expired(m.now()) {
			expired = true
			return r.Tokens().DeleteByHash(ctx, hash)
		}
		user, err = r.Users().Find(ctx, repository.ByID(record.UserID))
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTokenNotFound), errors.Is(err, repository.ErrUserNotFound):
		case errors.Is(err, repository.ErrNotUnique):
			m.log.Error().Err(err).Msg("session token digest matched several rows")
		default:
			m.log.Warn().Err(err).Msg("resolve session token failed")
		}
		return models.User{}, false
	}
	if expired {
		m.cacheDelete(ctx, hash)
		return models.User{}, false
	}

	m.cacheSet(ctx, hash, user.ID)
	user.Authenticated = true
	return user, true
}

func (m *TokenManager) resolveCached(ctx context.Context, hash []byte) (models.User, bool) {
	if m.cache == nil {
		return models.User{}, false
	}
	userID, ok, err := m.cache.Get(ctx, hash)
	if err != nil {
		m.log.Warn().Err(err).Msg("token cache read failed")
		return models.User{}, false
	}
	if !ok {
		return models.User{}, false
	}

	var user models.User
	err = m.store.Tx(ctx, func(r repository.Repos) error {
		var err error
		user, err = r.Users().Find(ctx, repository.ByID(userID))
		return err
	})
	if err != nil {
		return models.User{}, false
	}
	user.Authenticated = true
	return user, true
}

// Renew pushes the expiry of token to now+TTL without rotating its value.
func (m *TokenManager) Renew(ctx context.Context, token string) (time.Time, error) {
	hash := security.HashSessionToken(token)
	now := m.now()
	expiresAt := now.Add(m.ttl)

	err := m.store.Tx(ctx, func(r repository.Repos) error {
		return r.Tokens().Renew(ctx, hash, now, expiresAt)
	})
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return time.Time{}, ErrUnauthenticated
		}
		return time.Time{}, storeErr(err)
	}

	m.cacheSet(ctx, hash, 0)
	return expiresAt, nil
}

// Revoke deletes the binding. Unknown tokens are not an error.
func (m *TokenManager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	hash := security.HashSessionToken(token)
	err := m.store.Tx(ctx, func(r repository.Repos) error {
		return r.Tokens().DeleteByHash(ctx, hash)
	})
	if err != nil {
		return storeErr(err)
	}
	m.cacheDelete(ctx, hash)
	return nil
}

// cacheSet refreshes the cached binding. userID 0 only extends the TTL of an
// existing entry.
func (m *TokenManager) cacheSet(ctx context.Context, hash []byte, userID int64) {
	if m.cache == nil {
		return
	}
	if userID == 0 {
		cached, ok, err := m.cache.Get(ctx, hash)
		if err != nil || !ok {
			return
		}
		userID = cached
	}
	if err := m.cache.Set(ctx, hash, userID, m.ttl); err != nil {
		m.log.Warn().Err(err).Msg("token cache write failed")
	}
}

func (m *TokenManager) cacheDelete(ctx context.Context, hash []byte) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Delete(ctx, hash); err != nil {
		m.log.Warn().Err(err).Msg("token cache delete failed")
	}
}
