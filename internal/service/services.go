package service

import (
	"time"

	"github.com/rs/zerolog"

	"bossfit/internal/config"
	"bossfit/internal/repository"
	"bossfit/internal/security"
)

// Options carry the optional collaborators. Nil members disable the
// feature they back.
type Options struct {
	TokenCache TokenCache
	Board      ScoreBoard
	Catalog    ExerciseCatalog
	Clock      func() time.Time
	Hash       security.Argon2Params
}

type Services struct {
	Credentials *CredentialStore
	Tokens      *TokenManager
	Auth        *AuthService
	Friends     *FriendGraph
	Games       *GameEngine
	Ledger      *Ledger
}

func New(store repository.Store, cfg *config.AppConfig, opts Options, log zerolog.Logger) *Services {
	creds := NewCredentialStore(store, CredentialConfig{
		MinPasswordLength: cfg.Security.MinPasswordLength,
		Hash:              opts.Hash,
	}, log.With().Str("component", "credentials").Logger())

	tokens := NewTokenManager(store, TokenConfig{
		TTL:        cfg.Security.TokenTTL,
		MaxPerUser: cfg.Security.MaxSessions,
		Cache:      opts.TokenCache,
		Clock:      opts.Clock,
	}, log.With().Str("component", "tokens").Logger())

	return &Services{
		Credentials: creds,
		Tokens:      tokens,
		Auth:        NewAuthService(creds, tokens, log.With().Str("component", "auth").Logger()),
		Friends:     NewFriendGraph(store, log.With().Str("component", "friends").Logger()),
		Games: NewGameEngine(store, GameConfig{
			Rules:   RulesFromConfig(cfg.Game),
			Catalog: opts.Catalog,
			Board:   opts.Board,
			Clock:   opts.Clock,
		}, log.With().Str("component", "games").Logger()),
		Ledger: NewLedger(store, log.With().Str("component", "ledger").Logger()),
	}
}

func RulesFromConfig(cfg config.GameConfig) GameRules {
	return GameRules{
		BossHealth:   cfg.BossHealth,
		PartyHealth:  cfg.PartyHealth,
		DecayPerDay:  cfg.DecayPerDay,
		DefeatReward: int64(cfg.DefeatReward),
		MaxDamage:    cfg.MaxDamage,
	}
}
