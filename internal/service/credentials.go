package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"bossfit/internal/apperr"
	"bossfit/internal/models"
	"bossfit/internal/repository"
	"bossfit/internal/security"
)

const maxUsernameLength = 32

type CredentialConfig struct {
	MinPasswordLength int
	// Hash overrides the argon2id cost parameters. Zero means defaults.
	Hash security.Argon2Params
}

// CredentialStore owns user identity and password verification.
type CredentialStore struct {
	store  repository.Store
	params security.Argon2Params
	minPW  int
	log    zerolog.Logger
}

func NewCredentialStore(store repository.Store, cfg CredentialConfig, log zerolog.Logger) *CredentialStore {
	params := cfg.Hash
	if params == (security.Argon2Params{}) {
		params = security.DefaultArgon2Params()
	}
	return &CredentialStore{
		store:  store,
		params: params,
		minPW:  cfg.MinPasswordLength,
		log:    log,
	}
}

// normalizeUsername is applied to every username that reaches a lookup or
// an insert, so registration and login agree on the stored form.
func normalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

func validateUsername(username string) (string, error) {
	username = normalizeUsername(username)
	if username == "" {
		return "", apperr.Validationf("username required")
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return "", apperr.Validationf("username longer than %d characters", maxUsernameLength)
	}
	return username, nil
}

// Register creates a user with a hashed password. A reference row created by
// a game invitation has no credentials yet and is claimed instead.
func (c *CredentialStore) Register(ctx context.Context, username string, password string) (models.User, error) {
	username, err := validateUsername(username)
	if err != nil {
		return models.User{}, err
	}
	if password == "" || utf8.RuneCountInString(password) < c.minPW {
		return models.User{}, apperr.Validationf("password must be at least %d characters", max(c.minPW, 1))
	}

	hash, err := security.HashPasswordWithParams(password, c.params)
	if err != nil {
		return models.User{}, apperr.Wrap(apperr.Internal, "internal error", err)
	}

	var user models.User
	err = c.store.Tx(ctx, func(r repository.Repos) error {
		existing, err := r.Users().Find(ctx, repository.ByUsername(username))
		switch {
		case err == nil:
			if existing.HasCredentials() {
				return ErrUsernameTaken
			}
			if err := r.Users().ClaimPasswordHash(ctx, existing.ID, hash); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					return ErrUsernameTaken
				}
				return err
			}
			existing.PasswordHash = hash
			user = existing
			return nil
		case errors.Is(err, repository.ErrUserNotFound):
		default:
			return err
		}

		user = models.User{Username: username, PasswordHash: hash}
		if err := r.Users().Create(ctx, &user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrUsernameTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return models.User{}, c.fail(err, "register")
	}

	c.log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("user registered")
	return user, nil
}

// Find resolves a typed query. More than one match is an integrity fault.
func (c *CredentialStore) Find(ctx context.Context, q repository.UserQuery) (models.User, error) {
	var user models.User
	err := c.store.Tx(ctx, func(r repository.Repos) error {
		var err error
		user, err = r.Users().Find(ctx, q)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, c.fail(err, "find user")
	}
	return user, nil
}

// Verify checks candidate against the stored hash and marks the handle
// authenticated for the current request. Stored state is untouched.
func (c *CredentialStore) Verify(user *models.User, candidate string) bool {
	ok, err := security.VerifyPassword(candidate, user.PasswordHash)
	if err != nil {
		c.log.Error().Err(err).Int64("user_id", user.ID).Msg("stored password hash unreadable")
		return false
	}
	if ok {
		user.Authenticated = true
	}
	return ok
}

func (c *CredentialStore) Avatar(ctx context.Context, username string) (string, error) {
	user, err := c.Find(ctx, repository.ByUsername(normalizeUsername(username)))
	if err != nil {
		return "", err
	}
	return user.Avatar, nil
}

func (c *CredentialStore) fail(err error, op string) error {
	err = storeErr(err)
	if apperr.KindOf(err) == apperr.Integrity {
		c.log.Error().Err(err).Str("op", op).Msg("data integrity violation")
	}
	return err
}
