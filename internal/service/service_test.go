package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"bossfit/internal/apperr"
	"bossfit/internal/models"
	"bossfit/internal/repository/memory"
	"bossfit/internal/security"
)

var fastHash = security.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	db      *memory.DB
	clock   *clock
	creds   *CredentialStore
	tokens  *TokenManager
	friends *FriendGraph
	ledger  *Ledger
	games   *GameEngine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := newClock()
	db := memory.New().WithClock(c.Now)
	log := zerolog.Nop()
	return &fixture{
		db:      db,
		clock:   c,
		creds:   NewCredentialStore(db, CredentialConfig{MinPasswordLength: 1, Hash: fastHash}, log),
		tokens:  NewTokenManager(db, TokenConfig{TTL: 14 * day, MaxPerUser: 3, Clock: c.Now}, log),
		friends: NewFriendGraph(db, log),
		ledger:  NewLedger(db, log),
		games:   NewGameEngine(db, GameConfig{Rules: DefaultGameRules(), Clock: c.Now}, log),
	}
}

func (f *fixture) register(t *testing.T, username string) models.User {
	t.Helper()
	user, err := f.creds.Register(context.Background(), username, "pw-"+username)
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return user
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, got, err)
	}
}
