package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"bossfit/internal/models"
	"bossfit/internal/repository"
)

// AuthService combines credential checks with token issuance for the login
// and logout flows.
type AuthService struct {
	creds  *CredentialStore
	tokens *TokenManager
	log    zerolog.Logger
}

func NewAuthService(creds *CredentialStore, tokens *TokenManager, log zerolog.Logger) *AuthService {
	return &AuthService{
		creds:  creds,
		tokens: tokens,
		log:    log,
	}
}

type LoginResult struct {
	Token string
	User  models.User
}

func (s *AuthService) Register(ctx context.Context, username string, password string) (models.User, error) {
	return s.creds.Register(ctx, username, password)
}

// Login never reveals whether the username exists.
func (s *AuthService) Login(ctx context.Context, username string, password string) (LoginResult, error) {
	user, err := s.creds.Find(ctx, repository.ByUsername(normalizeUsername(username)))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if !s.creds.Verify(&user, password) {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}

	s.log.Info().Int64("user_id", user.ID).Msg("user logged in")
	return LoginResult{Token: token, User: user}, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}
