// Package memory implements repository.Store in process memory for
// development and tests. Transactions are serialised by one mutex and
// rolled back by restoring a snapshot taken when they begin.
package memory

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"bossfit/internal/models"
	"bossfit/internal/repository"
)

var _ repository.Store = (*DB)(nil)

type state struct {
	users   []models.User
	tokens  []models.SessionToken
	edges   []models.FriendEdge
	games   []models.GameSession
	members map[int64][]int64

	userSeq  int64
	tokenSeq int64
	edgeSeq  int64
	gameSeq  int64
}

func (s *state) clone() *state {
	c := *s
	c.users = append([]models.User(nil), s.users...)
	c.tokens = append([]models.SessionToken(nil), s.tokens...)
	c.edges = append([]models.FriendEdge(nil), s.edges...)
	c.games = append([]models.GameSession(nil), s.games...)
	c.members = make(map[int64][]int64, len(s.members))
	for id, m := range s.members {
		c.members[id] = append([]int64(nil), m...)
	}
	return &c
}

// DB is an in-memory store.
type DB struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

func New() *DB {
	return &DB{
		state: &state{members: make(map[int64][]int64)},
		now:   time.Now,
	}
}

// WithClock overrides the timestamp source for created_at style columns.
func (db *DB) WithClock(now func() time.Time) *DB {
	db.now = now
	return db
}

func (db *DB) Tx(ctx context.Context, fn func(repository.Repos) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	snapshot := db.state.clone()
	defer func() {
		if p := recover(); p != nil {
			db.state = snapshot
			panic(p)
		}
		if err != nil {
			db.state = snapshot
		}
	}()

	return fn(repos{db: db})
}

func (db *DB) Ping(ctx context.Context) error {
	return ctx.Err()
}

type repos struct {
	db *DB
}

func (r repos) Users() repository.UserRepository     { return users{r.db} }
func (r repos) Tokens() repository.TokenRepository   { return tokens{r.db} }
func (r repos) Friends() repository.FriendRepository { return friends{r.db} }
func (r repos) Games() repository.GameRepository     { return games{r.db} }

// --- users ---

type users struct{ db *DB }

func (u users) Create(ctx context.Context, user *models.User) error {
	s := u.db.state
	for _, existing := range s.users {
		if existing.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	s.userSeq++
	now := u.db.now()
	user.ID = s.userSeq
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Avatar == "" {
		user.Avatar = models.DefaultAvatar
	}
	stored := *user
	stored.Authenticated = false
	s.users = append(s.users, stored)
	return nil
}

func (u users) Find(ctx context.Context, q repository.UserQuery) (models.User, error) {
	var found []models.User
	for _, user := range u.db.state.users {
		if q.Matches(user) {
			found = append(found, user)
		}
	}
	switch len(found) {
	case 0:
		return models.User{}, repository.ErrUserNotFound
	case 1:
		return found[0], nil
	default:
		return models.User{}, repository.ErrNotUnique
	}
}

func (u users) FindForUpdate(ctx context.Context, id int64) (models.User, error) {
	return u.Find(ctx, repository.ByID(id))
}

func (u users) ListByIDs(ctx context.Context, ids []int64) ([]models.User, error) {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []models.User
	for _, user := range u.db.state.users {
		if want[user.ID] {
			out = append(out, user)
		}
	}
	return out, nil
}

func (u users) index(id int64) int {
	for i, user := range u.db.state.users {
		if user.ID == id {
			return i
		}
	}
	return -1
}

func (u users) ClaimPasswordHash(ctx context.Context, id int64, hash []byte) error {
	i := u.index(id)
	if i < 0 {
		return repository.ErrUserNotFound
	}
	if u.db.state.users[i].HasCredentials() {
		return repository.ErrDuplicate
	}
	u.db.state.users[i].PasswordHash = hash
	u.db.state.users[i].UpdatedAt = u.db.now()
	return nil
}

func (u users) Reference(ctx context.Context, username string) (models.User, error) {
	user, err := u.Find(ctx, repository.ByUsername(username))
	if !errors.Is(err, repository.ErrUserNotFound) {
		return user, err
	}
	user = models.User{Username: username}
	if err := u.Create(ctx, &user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (u users) AddPoints(ctx context.Context, id int64, delta int64) error {
	i := u.index(id)
	if i < 0 {
		return repository.ErrUserNotFound
	}
	u.db.state.users[i].Points += delta
	u.db.state.users[i].UpdatedAt = u.db.now()
	return nil
}

func (u users) UpdateWallet(ctx context.Context, id int64, points int64, avatar string) error {
	i := u.index(id)
	if i < 0 {
		return repository.ErrUserNotFound
	}
	u.db.state.users[i].Points = points
	u.db.state.users[i].Avatar = avatar
	u.db.state.users[i].UpdatedAt = u.db.now()
	return nil
}

// InsertRawUser bypasses the username check. Tests use it to simulate a
// corrupted table.
func (db *DB) InsertRawUser(user models.User) models.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.state.userSeq++
	user.ID = db.state.userSeq
	db.state.users = append(db.state.users, user)
	return user
}

// --- tokens ---

type tokens struct{ db *DB }

func (t tokens) Create(ctx context.Context, token *models.SessionToken) error {
	s := t.db.state
	for _, existing := range s.tokens {
		if bytes.Equal(existing.TokenHash, token.TokenHash) {
			return repository.ErrDuplicate
		}
	}
	s.tokenSeq++
	token.ID = s.tokenSeq
	token.RenewedAt = token.CreatedAt
	s.tokens = append(s.tokens, *token)
	return nil
}

func (t tokens) GetByHash(ctx context.Context, hash []byte) (models.SessionToken, error) {
	for _, token := range t.db.state.tokens {
		if bytes.Equal(token.TokenHash, hash) {
			return token, nil
		}
	}
	return models.SessionToken{}, repository.ErrTokenNotFound
}

func (t tokens) Renew(ctx context.Context, hash []byte, renewedAt time.Time, expiresAt time.Time) error {
	for i, token := range t.db.state.tokens {
		if bytes.Equal(token.TokenHash, hash) {
			t.db.state.tokens[i].RenewedAt = renewedAt
			t.db.state.tokens[i].ExpiresAt = expiresAt
			return nil
		}
	}
	return repository.ErrTokenNotFound
}

func (t tokens) DeleteByHash(ctx context.Context, hash []byte) error {
	t.filter(func(token models.SessionToken) bool {
		return !bytes.Equal(token.TokenHash, hash)
	})
	return nil
}

func (t tokens) CountByUser(ctx context.Context, userID int64) (int, error) {
	count := 0
	for _, token := range t.db.state.tokens {
		if token.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (t tokens) DeleteOldest(ctx context.Context, userID int64, keepLatest int) ([][]byte, error) {
	var mine []models.SessionToken
	for _, token := range t.db.state.tokens {
		if token.UserID == userID {
			mine = append(mine, token)
		}
	}
	if len(mine) <= keepLatest {
		return nil, nil
	}
	sort.SliceStable(mine, func(i, j int) bool {
		if mine[i].RenewedAt.Equal(mine[j].RenewedAt) {
			return mine[i].ID > mine[j].ID
		}
		return mine[i].RenewedAt.After(mine[j].RenewedAt)
	})
	drop := make(map[int64]bool)
	var dropped [][]byte
	for _, token := range mine[keepLatest:] {
		drop[token.ID] = true
		dropped = append(dropped, token.TokenHash)
	}
	t.filter(func(token models.SessionToken) bool { return !drop[token.ID] })
	return dropped, nil
}

func (t tokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	before := len(t.db.state.tokens)
	t.filter(func(token models.SessionToken) bool { return !token.Expired(now) })
	return int64(before - len(t.db.state.tokens)), nil
}

func (t tokens) filter(keep func(models.SessionToken) bool) {
	kept := t.db.state.tokens[:0:0]
	for _, token := range t.db.state.tokens {
		if keep(token) {
			kept = append(kept, token)
		}
	}
	t.db.state.tokens = kept
}

// --- friends ---

type friends struct{ db *DB }

func samePair(e models.FriendEdge, a, b int64) bool {
	return (e.RequesterID == a && e.TargetID == b) || (e.RequesterID == b && e.TargetID == a)
}

func (f friends) Create(ctx context.Context, edge *models.FriendEdge) error {
	s := f.db.state
	for _, existing := range s.edges {
		if samePair(existing, edge.RequesterID, edge.TargetID) {
			return repository.ErrDuplicate
		}
	}
	s.edgeSeq++
	edge.ID = s.edgeSeq
	edge.CreatedAt = f.db.now()
	s.edges = append(s.edges, *edge)
	return nil
}

func (f friends) FindBetween(ctx context.Context, a int64, b int64) (models.FriendEdge, error) {
	var found []models.FriendEdge
	for _, edge := range f.db.state.edges {
		if samePair(edge, a, b) {
			found = append(found, edge)
		}
	}
	switch len(found) {
	case 0:
		return models.FriendEdge{}, repository.ErrEdgeNotFound
	case 1:
		return found[0], nil
	default:
		return models.FriendEdge{}, repository.ErrNotUnique
	}
}

func (f friends) Confirm(ctx context.Context, id int64) error {
	for i, edge := range f.db.state.edges {
		if edge.ID == id {
			f.db.state.edges[i].Confirmed = true
			return nil
		}
	}
	return repository.ErrEdgeNotFound
}

func (f friends) Delete(ctx context.Context, id int64) error {
	for i, edge := range f.db.state.edges {
		if edge.ID == id {
			f.db.state.edges = append(f.db.state.edges[:i:i], f.db.state.edges[i+1:]...)
			return nil
		}
	}
	return repository.ErrEdgeNotFound
}

func (f friends) ListTouching(ctx context.Context, userID int64) ([]models.FriendEdge, error) {
	var out []models.FriendEdge
	for _, edge := range f.db.state.edges {
		if edge.Touches(userID) {
			out = append(out, edge)
		}
	}
	return out, nil
}

// --- games ---

type games struct{ db *DB }

func (g games) Create(ctx context.Context, game *models.GameSession) error {
	s := g.db.state
	s.gameSeq++
	game.ID = s.gameSeq

	seen := make(map[int64]bool)
	var members []int64
	for _, id := range game.MemberIDs {
		if !seen[id] {
			seen[id] = true
			members = append(members, id)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	game.MemberIDs = members

	stored := *game
	stored.MemberIDs = nil
	s.games = append(s.games, stored)
	s.members[game.ID] = append([]int64(nil), members...)
	return nil
}

func (g games) Get(ctx context.Context, id int64) (models.GameSession, error) {
	for _, game := range g.db.state.games {
		if game.ID == id {
			game.MemberIDs = append([]int64(nil), g.db.state.members[id]...)
			return game, nil
		}
	}
	return models.GameSession{}, repository.ErrGameNotFound
}

func (g games) GetForUpdate(ctx context.Context, id int64) (models.GameSession, error) {
	return g.Get(ctx, id)
}

func (g games) UpdateBossHealth(ctx context.Context, id int64, health int) error {
	for i, game := range g.db.state.games {
		if game.ID == id {
			g.db.state.games[i].BossHealth = health
			return nil
		}
	}
	return repository.ErrGameNotFound
}

func (g games) Delete(ctx context.Context, id int64) error {
	for i, game := range g.db.state.games {
		if game.ID == id {
			g.db.state.games = append(g.db.state.games[:i:i], g.db.state.games[i+1:]...)
			delete(g.db.state.members, id)
			return nil
		}
	}
	return repository.ErrGameNotFound
}

func (g games) ListByMember(ctx context.Context, userID int64) ([]models.GameSession, error) {
	var out []models.GameSession
	for _, game := range g.db.state.games {
		members := g.db.state.members[game.ID]
		for _, id := range members {
			if id == userID {
				game.MemberIDs = append([]int64(nil), members...)
				out = append(out, game)
				break
			}
		}
	}
	return out, nil
}

func (g games) DeleteStartedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var kept []models.GameSession
	var removed int64
	for _, game := range g.db.state.games {
		if !game.StartTime.After(cutoff) {
			delete(g.db.state.members, game.ID)
			removed++
			continue
		}
		kept = append(kept, game)
	}
	g.db.state.games = kept
	return removed, nil
}
