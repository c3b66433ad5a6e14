package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"bossfit/internal/apperr"
	"bossfit/internal/models"
)

type recordingBoard struct {
	mu      sync.Mutex
	calls   int
	members []int64
	top     []Standing
}

func (b *recordingBoard) Record(_ context.Context, userIDs []int64, _ int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.members = append(b.members, userIDs...)
	return nil
}

func (b *recordingBoard) Top(_ context.Context, limit int) ([]Standing, error) {
	if limit < len(b.top) {
		return b.top[:limit], nil
	}
	return b.top, nil
}

type staticCatalog map[string][]string

func (c staticCatalog) ForTag(tag string) map[models.Difficulty][]string {
	return map[models.Difficulty][]string{
		models.DifficultyBeginner:     c[tag],
		models.DifficultyIntermediate: {},
		models.DifficultyAdvanced:     {},
	}
}

func TestPartyHealthSteps(t *testing.T) {
	rules := DefaultGameRules()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		elapsed time.Duration
		want    int
	}{
		{0, 1000},
		{day - time.Nanosecond, 1000},
		{day, 900},
		{25 * time.Hour, 900},
		{9*day + 23*time.Hour, 100},
		{10 * day, 0},
		{10*day + time.Second, 0},
		{-time.Hour, 1000},
	}
	for _, tc := range cases {
		if got := rules.PartyHealthAt(start, start.Add(tc.elapsed)); got != tc.want {
			t.Errorf("party health after %v = %d, want %d", tc.elapsed, got, tc.want)
		}
	}
	if rules.Lifetime() != 10*day {
		t.Fatalf("lifetime = %v, want 10 days", rules.Lifetime())
	}

	odd := GameRules{PartyHealth: 250, DecayPerDay: 100}
	if odd.Lifetime() != 3*day {
		t.Fatalf("lifetime = %v, want 3 days", odd.Lifetime())
	}
}

func TestCreateAndView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	log := zerolog.Nop()
	games := NewGameEngine(f.db, GameConfig{
		Rules:   DefaultGameRules(),
		Catalog: staticCatalog{"core": {"Plank"}},
		Clock:   f.clock.Now,
	}, log)

	alice := f.register(t, "alice")
	view, err := games.Create(ctx, alice.ID, []string{"bob", "bob", "alice"}, "Morning raid", "core")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if view.BossHealth != 1000 || view.PartyHealth != 1000 {
		t.Fatalf("unexpected health: %+v", view)
	}
	if len(view.Users) != 2 || view.Users[0] != "alice" || view.Users[1] != "bob" {
		t.Fatalf("unexpected members: %v", view.Users)
	}
	if got := view.Exercises[models.DifficultyBeginner]; len(got) != 1 || got[0] != "Plank" {
		t.Fatalf("unexpected exercises: %v", view.Exercises)
	}

	again, err := games.View(ctx, alice.ID, view.ID)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if again.Name != "Morning raid" || again.Tag != "core" {
		t.Fatalf("unexpected view: %+v", again)
	}

	stranger := f.register(t, "mallory")
	if _, err := games.View(ctx, stranger.ID, view.ID); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("non-member view: expected ErrGameNotFound, got %v", err)
	}
	if _, err := games.Attack(ctx, stranger.ID, view.ID, 10); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("non-member attack: expected ErrGameNotFound, got %v", err)
	}
}

func TestDefeatPaysOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	board := &recordingBoard{}
	games := NewGameEngine(f.db, GameConfig{Rules: DefaultGameRules(), Board: board, Clock: f.clock.Now}, zerolog.Nop())

	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	view, err := games.Create(ctx, alice.ID, []string{"bob", "carol"}, "raid", "cardio")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	res, err := games.Attack(ctx, alice.ID, view.ID, 990)
	if err != nil {
		t.Fatalf("attack: %v", err)
	}
	if res.Defeated || res.View == nil || res.View.BossHealth != 10 {
		t.Fatalf("unexpected result: %+v", res)
	}

	res, err = games.Attack(ctx, bob.ID, view.ID, 50)
	if err != nil {
		t.Fatalf("finishing attack: %v", err)
	}
	if !res.Defeated || res.View != nil {
		t.Fatalf("expected defeat, got %+v", res)
	}

	for _, id := range []int64{alice.ID, bob.ID} {
		wallet, err := f.ledger.Balance(ctx, id)
		if err != nil {
			t.Fatalf("balance: %v", err)
		}
		if wallet.Points != 100 {
			t.Fatalf("user %d has %d points, want 100", id, wallet.Points)
		}
	}
	if board.calls != 1 || len(board.members) != 3 {
		t.Fatalf("leaderboard recorded %d times for %v", board.calls, board.members)
	}

	if _, err := games.View(ctx, alice.ID, view.ID); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("view after defeat: expected ErrGameNotFound, got %v", err)
	}
	if _, err := games.Attack(ctx, alice.ID, view.ID, 50); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("attack after defeat: expected ErrGameNotFound, got %v", err)
	}
	wallet, _ := f.ledger.Balance(ctx, alice.ID)
	if wallet.Points != 100 {
		t.Fatalf("payout repeated: %d points", wallet.Points)
	}
}

func TestAttackDamageBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	view, err := f.games.Create(ctx, alice.ID, nil, "solo", "core")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = f.games.Attack(ctx, alice.ID, view.ID, -1)
	wantKind(t, err, apperr.Validation)
	_, err = f.games.Attack(ctx, alice.ID, view.ID, 1001)
	wantKind(t, err, apperr.Validation)

	res, err := f.games.Attack(ctx, alice.ID, view.ID, 0)
	if err != nil || res.View.BossHealth != 1000 {
		t.Fatalf("zero damage: %+v, %v", res, err)
	}
}

func TestPartyDecayExpiresSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")

	view, err := f.games.Create(ctx, alice.ID, nil, "slow", "balance")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if view.PartyHealth != 1000 {
		t.Fatalf("party health at start = %d", view.PartyHealth)
	}

	f.clock.Advance(25 * time.Hour)
	view, err = f.games.View(ctx, alice.ID, view.ID)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if view.PartyHealth != 900 {
		t.Fatalf("party health after 25h = %d, want 900", view.PartyHealth)
	}

	f.clock.Advance(10*day - 25*time.Hour + time.Second)
	list, err := f.games.ListActive(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expired session listed: %+v", list)
	}
	if _, err := f.games.View(ctx, alice.ID, view.ID); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("expected ErrGameNotFound, got %v", err)
	}

	wallet, _ := f.ledger.Balance(ctx, alice.ID)
	if wallet.Points != 0 {
		t.Fatalf("expiry paid %d points", wallet.Points)
	}
}

func TestExpiredSessionRejectsAttack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")

	view, err := f.games.Create(ctx, alice.ID, nil, "late", "core")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.clock.Advance(10 * day)

	if _, err := f.games.Attack(ctx, alice.ID, view.ID, 1000); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("expected ErrGameNotFound, got %v", err)
	}
	wallet, _ := f.ledger.Balance(ctx, alice.ID)
	if wallet.Points != 0 {
		t.Fatalf("expired session paid out %d points", wallet.Points)
	}
}

func TestConcurrentAttacksPayOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	view, err := f.games.Create(ctx, alice.ID, []string{"bob"}, "race", "core")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		defeats  int
		survived []int
		failures []error
	)
	for _, id := range []int64{alice.ID, bob.ID} {
		wg.Add(1)
		go func(callerID int64) {
			defer wg.Done()
			res, err := f.games.Attack(ctx, callerID, view.ID, 600)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				failures = append(failures, err)
			case res.Defeated:
				defeats++
			default:
				survived = append(survived, res.View.BossHealth)
			}
		}(id)
	}
	wg.Wait()

	if len(failures) != 0 {
		t.Fatalf("attack failed: %v", failures)
	}
	if defeats != 1 || len(survived) != 1 || survived[0] != 400 {
		t.Fatalf("defeats=%d survived=%v", defeats, survived)
	}
	for _, id := range []int64{alice.ID, bob.ID} {
		wallet, _ := f.ledger.Balance(ctx, id)
		if wallet.Points != 100 {
			t.Fatalf("user %d has %d points, want 100", id, wallet.Points)
		}
	}
}

func TestLeaderboardNames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	if _, err := f.games.Leaderboard(ctx, 5); apperr.KindOf(err) != apperr.Unavailable {
		t.Fatalf("expected unavailable without a board, got %v", err)
	}

	board := &recordingBoard{top: []Standing{
		{Rank: 1, UserID: bob.ID, Points: 300},
		{Rank: 2, UserID: alice.ID, Points: 100},
	}}
	games := NewGameEngine(f.db, GameConfig{Board: board, Clock: f.clock.Now}, zerolog.Nop())

	standings, err := games.Leaderboard(ctx, 5)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(standings) != 2 || standings[0].Username != "bob" || standings[1].Username != "alice" {
		t.Fatalf("unexpected standings: %+v", standings)
	}
}

func TestConcurrentCreatesShareReferenceRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, owner := range []int64{alice.ID, bob.ID} {
		wg.Add(1)
		go func(owner int64) {
			defer wg.Done()
			_, err := f.games.Create(ctx, owner, []string{"zed"}, "raid", "core")
			errs <- err
		}(owner)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	zed, err := f.creds.Register(ctx, "zed", "pw")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	games, err := f.games.ListActive(ctx, zed.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("zed is in %d sessions, want 2", len(games))
	}
}
