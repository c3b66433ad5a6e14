package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"bossfit/internal/ids"
	"bossfit/internal/repository"
)

type ReapResult struct {
	RunID  string `json:"runId"`
	Tokens int64  `json:"tokens"`
	Games  int64  `json:"games"`
}

// Reaper sweeps state that lazy expiry only catches on read: expired session
// tokens and game sessions whose party health has run out. Running it twice
// is harmless.
type Reaper struct {
	store    repository.Store
	lifetime time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

// NewReaper removes sessions older than gameLifetime. A zero lifetime skips
// the game sweep.
func NewReaper(store repository.Store, gameLifetime time.Duration, now func() time.Time, log zerolog.Logger) *Reaper {
	if now == nil {
		now = time.Now
	}
	return &Reaper{
		store:    store,
		lifetime: gameLifetime,
		now:      now,
		log:      log,
	}
}

func (r *Reaper) Run(ctx context.Context) (ReapResult, error) {
	return r.RunWithID(ctx, ids.New())
}

func (r *Reaper) RunWithID(ctx context.Context, runID string) (ReapResult, error) {
	result := ReapResult{RunID: runID}
	now := r.now()

	err := r.store.Tx(ctx, func(repos repository.Repos) error {
		var err error
		result.Tokens, err = repos.Tokens().DeleteExpired(ctx, now)
		if err != nil {
			return fmt.Errorf("delete expired tokens: %w", err)
		}
		if r.lifetime <= 0 {
			return nil
		}
		result.Games, err = repos.Games().DeleteStartedBefore(ctx, now.Add(-r.lifetime))
		if err != nil {
			return fmt.Errorf("delete expired games: %w", err)
		}
		return nil
	})
	if err != nil {
		r.log.Error().Err(err).Str("run_id", runID).Msg("reaper run failed")
		return ReapResult{RunID: runID}, err
	}

	r.log.Info().
		Str("run_id", runID).
		Int64("tokens", result.Tokens).
		Int64("games", result.Games).
		Msg("reaper run complete")
	return result, nil
}
