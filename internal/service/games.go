package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"bossfit/internal/apperr"
	"bossfit/internal/models"
	"bossfit/internal/repository"
)

const day = 24 * time.Hour

// GameRules are the numeric constants of an encounter.
type GameRules struct {
	BossHealth   int
	PartyHealth  int
	DecayPerDay  int
	DefeatReward int64
	MaxDamage    int
}

func DefaultGameRules() GameRules {
	return GameRules{
		BossHealth:   1000,
		PartyHealth:  1000,
		DecayPerDay:  100,
		DefeatReward: 100,
		MaxDamage:    1000,
	}
}

// PartyHealthAt steps down by DecayPerDay for every full day since start.
func (g GameRules) PartyHealthAt(start time.Time, now time.Time) int {
	elapsed := now.Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}
	return g.PartyHealth - g.DecayPerDay*int(elapsed/day)
}

func (g GameRules) Expired(start time.Time, now time.Time) bool {
	return g.PartyHealthAt(start, now) <= 0
}

// Lifetime is the age at which a session's party health reaches zero.
func (g GameRules) Lifetime() time.Duration {
	if g.DecayPerDay <= 0 {
		return 0
	}
	days := (g.PartyHealth + g.DecayPerDay - 1) / g.DecayPerDay
	return time.Duration(days) * day
}

// ExerciseCatalog groups the exercises unlocked by a tag per difficulty.
type ExerciseCatalog interface {
	ForTag(tag string) map[models.Difficulty][]string
}

type GameConfig struct {
	Rules   GameRules
	Catalog ExerciseCatalog
	Board   ScoreBoard
	Clock   func() time.Time
}

// AttackResult carries the updated view, or Defeated with a nil View when
// the hit ended the encounter.
type AttackResult struct {
	View     *models.GameView
	Defeated bool
}

// GameEngine runs the session lifecycle. Terminal states are applied lazily
// by whichever operation observes them first.
type GameEngine struct {
	store   repository.Store
	rules   GameRules
	catalog ExerciseCatalog
	board   ScoreBoard
	now     func() time.Time
	log     zerolog.Logger
}

func NewGameEngine(store repository.Store, cfg GameConfig, log zerolog.Logger) *GameEngine {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	rules := cfg.Rules
	if rules == (GameRules{}) {
		rules = DefaultGameRules()
	}
	return &GameEngine{
		store:   store,
		rules:   rules,
		catalog: cfg.Catalog,
		board:   cfg.Board,
		now:     now,
		log:     log,
	}
}

func (e *GameEngine) Rules() GameRules {
	return e.rules
}

// Create starts an encounter for the caller and the named users. Unknown
// names get a reference row without credentials.
func (e *GameEngine) Create(ctx context.Context, callerID int64, usernames []string, name string, tag string) (models.GameView, error) {
	names := make([]string, 0, len(usernames))
	seen := make(map[string]bool, len(usernames))
	for _, raw := range usernames {
		username, err := validateUsername(raw)
		if err != nil {
			return models.GameView{}, err
		}
		if !seen[username] {
			seen[username] = true
			names = append(names, username)
		}
	}

	var view models.GameView
	err := e.store.Tx(ctx, func(r repository.Repos) error {
		memberIDs := []int64{callerID}
		for _, username := range names {
			user, err := r.Users().Reference(ctx, username)
			if err != nil {
				return err
			}
			memberIDs = append(memberIDs, user.ID)
		}

		game := models.GameSession{
			Name:       strings.TrimSpace(name),
			Tag:        strings.TrimSpace(tag),
			BossHealth: e.rules.BossHealth,
			StartTime:  e.now(),
			MemberIDs:  memberIDs,
		}
		if err := r.Games().Create(ctx, &game); err != nil {
			return err
		}

		var err error
		view, err = e.view(ctx, r, game)
		return err
	})
	if err != nil {
		return models.GameView{}, e.fail(err, "create")
	}

	e.log.Info().Int64("game_id", view.ID).Int("members", len(view.Users)).Msg("game session created")
	return view, nil
}

// Attack applies damage to the boss. Reaching zero or below pays every
// member DefeatReward and deletes the session in the same transaction.
func (e *GameEngine) Attack(ctx context.Context, callerID int64, gameID int64, damage int) (AttackResult, error) {
	if damage < 0 || (e.rules.MaxDamage > 0 && damage > e.rules.MaxDamage) {
		return AttackResult{}, apperr.Validationf("damage must be between 0 and %d", e.rules.MaxDamage)
	}

	var (
		result  AttackResult
		members []int64
		gone    bool
	)
	err := e.store.Tx(ctx, func(r repository.Repos) error {
		game, err := r.Games().GetForUpdate(ctx, gameID)
		if err != nil {
			return err
		}
		if !game.HasMember(callerID) {
			return ErrGameNotFound
		}
		if e.rules.Expired(game.StartTime, e.now()) {
			gone = true
			return r.Games().Delete(ctx, game.ID)
		}

		game.BossHealth -= damage
		if game.BossHealth <= 0 {
			if err := credit(ctx, r, game.MemberIDs, e.rules.DefeatReward); err != nil {
				return err
			}
			result.Defeated = true
			members = game.MemberIDs
			return r.Games().Delete(ctx, game.ID)
		}

		if err := r.Games().UpdateBossHealth(ctx, game.ID, game.BossHealth); err != nil {
			return err
		}
		view, err := e.view(ctx, r, game)
		if err != nil {
			return err
		}
		result.View = &view
		return nil
	})
	if err != nil {
		return AttackResult{}, e.fail(err, "attack")
	}
	if gone {
		return AttackResult{}, ErrGameNotFound
	}

	if result.Defeated {
		e.log.Info().Int64("game_id", gameID).Int("members", len(members)).Msg("boss defeated")
		e.record(ctx, members)
	}
	return result, nil
}

func (e *GameEngine) record(ctx context.Context, members []int64) {
	if e.board == nil {
		return
	}
	if err := e.board.Record(ctx, members, e.rules.DefeatReward); err != nil {
		e.log.Warn().Err(err).Msg("leaderboard update failed")
	}
}

// View returns the session as seen by a member.
func (e *GameEngine) View(ctx context.Context, callerID int64, gameID int64) (models.GameView, error) {
	var (
		view models.GameView
		gone bool
	)
	err := e.store.Tx(ctx, func(r repository.Repos) error {
		game, err := r.Games().Get(ctx, gameID)
		if err != nil {
			return err
		}
		if !game.HasMember(callerID) {
			return ErrGameNotFound
		}
		if e.rules.Expired(game.StartTime, e.now()) {
			gone = true
			return r.Games().Delete(ctx, game.ID)
		}
		view, err = e.view(ctx, r, game)
		return err
	})
	if err != nil {
		return models.GameView{}, e.fail(err, "view")
	}
	if gone {
		return models.GameView{}, ErrGameNotFound
	}
	return view, nil
}

// ListActive returns the caller's live sessions and deletes the expired ones
// it comes across.
func (e *GameEngine) ListActive(ctx context.Context, userID int64) ([]models.GameView, error) {
	var views []models.GameView
	err := e.store.Tx(ctx, func(r repository.Repos) error {
		games, err := r.Games().ListByMember(ctx, userID)
		if err != nil {
			return err
		}
		now := e.now()
		views = make([]models.GameView, 0, len(games))
		for _, game := range games {
			if e.rules.Expired(game.StartTime, now) {
				if err := r.Games().Delete(ctx, game.ID); err != nil {
					return err
				}
				continue
			}
			view, err := e.view(ctx, r, game)
			if err != nil {
				return err
			}
			views = append(views, view)
		}
		return nil
	})
	if err != nil {
		return nil, e.fail(err, "list")
	}
	return views, nil
}

// Leaderboard ranks players by lifetime points won.
func (e *GameEngine) Leaderboard(ctx context.Context, limit int) ([]Standing, error) {
	if e.board == nil {
		return nil, apperr.New(apperr.Unavailable, "leaderboard disabled")
	}
	if limit <= 0 {
		limit = 10
	}
	standings, err := e.board.Top(ctx, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unavailable, "leaderboard unavailable", err)
	}

	ids := make([]int64, 0, len(standings))
	for _, s := range standings {
		ids = append(ids, s.UserID)
	}
	err = e.store.Tx(ctx, func(r repository.Repos) error {
		users, err := r.Users().ListByIDs(ctx, ids)
		if err != nil {
			return err
		}
		names := make(map[int64]string, len(users))
		for _, u := range users {
			names[u.ID] = u.Username
		}
		for i := range standings {
			standings[i].Username = names[standings[i].UserID]
		}
		return nil
	})
	if err != nil {
		return nil, e.fail(err, "leaderboard")
	}
	return standings, nil
}

func (e *GameEngine) view(ctx context.Context, r repository.Repos, game models.GameSession) (models.GameView, error) {
	users, err := r.Users().ListByIDs(ctx, game.MemberIDs)
	if err != nil {
		return models.GameView{}, err
	}
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Username)
	}

	view := models.GameView{
		ID:          game.ID,
		Name:        game.Name,
		BossHealth:  game.BossHealth,
		PartyHealth: e.rules.PartyHealthAt(game.StartTime, e.now()),
		Users:       names,
		Tag:         game.Tag,
	}
	if e.catalog != nil {
		view.Exercises = e.catalog.ForTag(game.Tag)
	} else {
		view.Exercises = make(map[models.Difficulty][]string, len(models.Difficulties))
		for _, d := range models.Difficulties {
			view.Exercises[d] = []string{}
		}
	}
	return view, nil
}

func (e *GameEngine) fail(err error, op string) error {
	if errors.Is(err, repository.ErrGameNotFound) {
		return ErrGameNotFound
	}
	err = storeErr(err)
	if apperr.KindOf(err) == apperr.Integrity {
		e.log.Error().Err(err).Str("op", op).Msg("data integrity violation")
	}
	return err
}
