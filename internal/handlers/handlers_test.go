package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"bossfit/internal/config"
	"bossfit/internal/jobs"
	"bossfit/internal/repository/memory"
	"bossfit/internal/security"
	"bossfit/internal/service"
)

const adminSecret = "test-admin-secret"

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Environment: "test",
		Security: config.SecurityConfig{
			TokenTTL:          336 * time.Hour,
			CookieName:        "session",
			CookieSecure:      true,
			CookieSameSite:    "none",
			MaxSessions:       10,
			MinPasswordLength: 1,
			AdminJWTSecret:    adminSecret,
		},
		Game: config.GameConfig{
			BossHealth:   1000,
			PartyHealth:  1000,
			DecayPerDay:  100,
			DefeatReward: 100,
			MaxDamage:    1000,
		},
	}
}

type apiClient struct {
	t      *testing.T
	router *gin.Engine
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	db := memory.New()
	log := zerolog.Nop()
	svc := service.New(db, cfg, service.Options{
		Hash: security.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16},
	}, log)

	h := NewHandlerSet(log, cfg, Deps{
		Services: svc,
		Store:    db,
		Reaper:   jobs.NewReaper(db, svc.Games.Rules().Lifetime(), nil, log),
	})
	router := gin.New()
	h.Register(&router.RouterGroup)
	return &apiClient{t: t, router: router}
}

func (a *apiClient) do(method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			a.t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, out
}

func (a *apiClient) expect(method, path, token string, body any, status int) map[string]any {
	a.t.Helper()
	rec, out := a.do(method, path, token, body)
	if rec.Code != status {
		a.t.Fatalf("%s %s: status %d, want %d (%s)", method, path, rec.Code, status, rec.Body.String())
	}
	return out
}

func (a *apiClient) signup(username string) string {
	a.t.Helper()
	creds := map[string]string{"username": username, "password": "pw-" + username}
	a.expect(http.MethodPost, "/register", "", creds, http.StatusOK)
	out := a.expect(http.MethodPost, "/login", "", creds, http.StatusOK)
	token, _ := out["token"].(string)
	if token == "" {
		a.t.Fatalf("login returned no token: %v", out)
	}
	return token
}

func TestRegisterAndLogin(t *testing.T) {
	api := newAPI(t)
	creds := map[string]string{"username": "alice", "password": "secret"}

	api.expect(http.MethodPost, "/register", "", creds, http.StatusOK)
	out := api.expect(http.MethodPost, "/register", "", creds, http.StatusBadRequest)
	if out["success"] != false {
		t.Fatalf("duplicate register body: %v", out)
	}

	api.expect(http.MethodPost, "/login", "", map[string]string{"username": "alice", "password": "wrong"}, http.StatusForbidden)
	api.expect(http.MethodPost, "/login", "", map[string]string{"username": "ghost", "password": "secret"}, http.StatusForbidden)

	rec, _ := api.do(http.MethodPost, "/login", "", creds)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status %d", rec.Code)
	}
	cookie := rec.Header().Get("Set-Cookie")
	if !strings.Contains(cookie, "session=") || !strings.Contains(cookie, "SameSite=None") || !strings.Contains(cookie, "Secure") {
		t.Fatalf("unexpected cookie %q", cookie)
	}

	api.expect(http.MethodPost, "/register", "", map[string]string{"username": "bob"}, http.StatusBadRequest)
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	api := newAPI(t)
	for _, path := range []string{"/friends_list", "/sessions", "/points", "/logout"} {
		api.expect(http.MethodGet, path, "", nil, http.StatusUnauthorized)
	}
	api.expect(http.MethodPost, "/attack", "bogus", map[string]any{"id": 1, "damage": 5}, http.StatusUnauthorized)
}

func TestLogoutRevokesToken(t *testing.T) {
	api := newAPI(t)
	token := api.signup("alice")

	api.expect(http.MethodGet, "/points", token, nil, http.StatusOK)

	rec, _ := api.do(http.MethodGet, "/logout", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status %d", rec.Code)
	}
	if cookies := rec.Header().Values("Set-Cookie"); len(cookies) != 1 || !strings.Contains(cookies[0], "Max-Age=0") {
		t.Fatalf("logout should only clear the cookie: %v", cookies)
	}

	api.expect(http.MethodGet, "/points", token, nil, http.StatusUnauthorized)
}

func TestFriendFlow(t *testing.T) {
	api := newAPI(t)
	alice := api.signup("alice")
	bob := api.signup("bob")

	api.expect(http.MethodPost, "/add_friend", alice, map[string]string{"username": "nobody"}, http.StatusForbidden)

	out := api.expect(http.MethodPost, "/add_friend", alice, map[string]string{"username": "bob"}, http.StatusOK)
	if out["success"] != true {
		t.Fatalf("add friend: %v", out)
	}
	out = api.expect(http.MethodPost, "/add_friend", bob, map[string]string{"username": "alice"}, http.StatusOK)
	if out["success"] != false {
		t.Fatalf("reverse request should report success:false: %v", out)
	}

	out = api.expect(http.MethodGet, "/friends_list", alice, nil, http.StatusOK)
	if friends := out["friends"].([]any); len(friends) != 0 {
		t.Fatalf("pending outgoing request listed: %v", friends)
	}

	api.expect(http.MethodPost, "/accept_friend", alice, map[string]string{"username": "bob"}, http.StatusNotFound)
	api.expect(http.MethodPost, "/accept_friend", bob, map[string]string{"username": "alice"}, http.StatusOK)

	out = api.expect(http.MethodGet, "/friends_list", alice, nil, http.StatusOK)
	friends := out["friends"].([]any)
	if len(friends) != 1 {
		t.Fatalf("expected one friend, got %v", friends)
	}
	entry := friends[0].(map[string]any)
	if entry["name"] != "bob" || entry["confirmed"] != true || entry["avatar"] != "default" {
		t.Fatalf("unexpected friend entry %v", entry)
	}

	api.expect(http.MethodPost, "/unfriend", bob, map[string]string{"username": "alice"}, http.StatusOK)
	api.expect(http.MethodPost, "/deny_friend", bob, map[string]string{"username": "alice"}, http.StatusNotFound)
}

func TestGameAndWalletFlow(t *testing.T) {
	api := newAPI(t)
	alice := api.signup("alice")
	bob := api.signup("bob")

	out := api.expect(http.MethodPost, "/create_session", alice, map[string]any{
		"users": []string{"bob"},
		"name":  "Leg day",
		"tag":   "lower_body",
	}, http.StatusOK)
	if out["bossHealth"] != float64(1000) || out["partyHealth"] != float64(1000) {
		t.Fatalf("unexpected session %v", out)
	}
	for _, tier := range []string{"beginner", "intermediate", "advanced"} {
		if _, ok := out[tier].([]any); !ok {
			t.Fatalf("missing %s exercises: %v", tier, out)
		}
	}
	if _, nested := out["exercises"]; nested {
		t.Fatalf("exercise tiers must sit at the top level: %v", out)
	}
	id := out["id"].(float64)

	out = api.expect(http.MethodGet, "/sessions", bob, nil, http.StatusOK)
	if sessions := out["sessions"].([]any); len(sessions) != 1 {
		t.Fatalf("bob should see the session: %v", sessions)
	}

	api.expect(http.MethodPost, "/attack", alice, map[string]any{"id": id, "damage": -5}, http.StatusBadRequest)
	api.expect(http.MethodPost, "/attack", alice, map[string]any{"id": id}, http.StatusBadRequest)

	out = api.expect(http.MethodPost, "/attack", alice, map[string]any{"id": id, "damage": 600}, http.StatusOK)
	if out["bossHealth"] != float64(400) {
		t.Fatalf("unexpected boss health %v", out["bossHealth"])
	}
	out = api.expect(http.MethodPost, "/attack", bob, map[string]any{"id": id, "damage": 600}, http.StatusOK)
	if out["defeated"] != true {
		t.Fatalf("expected defeat: %v", out)
	}
	api.expect(http.MethodGet, "/sessions/"+jsonNumber(id), alice, nil, http.StatusNotFound)

	out = api.expect(http.MethodGet, "/points", alice, nil, http.StatusOK)
	if out["points"] != float64(100) {
		t.Fatalf("points = %v, want 100", out["points"])
	}

	out = api.expect(http.MethodPost, "/buy", alice, map[string]any{"avatar": "wizard", "price": 150}, http.StatusOK)
	if out["success"] != false {
		t.Fatalf("overspend should fail softly: %v", out)
	}
	out = api.expect(http.MethodPost, "/buy", alice, map[string]any{"avatar": "wizard", "price": 100}, http.StatusOK)
	if out["success"] != true || out["points"] != float64(0) {
		t.Fatalf("purchase: %v", out)
	}

	out = api.expect(http.MethodPost, "/avatar", bob, map[string]string{"username": "alice"}, http.StatusOK)
	if out["avatar"] != "wizard" {
		t.Fatalf("avatar = %v", out["avatar"])
	}
	api.expect(http.MethodPost, "/avatar", bob, map[string]string{"username": "ghost"}, http.StatusNotFound)

	api.expect(http.MethodGet, "/leaderboard", alice, nil, http.StatusServiceUnavailable)
}

func jsonNumber(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}

func TestSessionNotVisibleToStrangers(t *testing.T) {
	api := newAPI(t)
	alice := api.signup("alice")
	eve := api.signup("eve")

	out := api.expect(http.MethodPost, "/create_session", alice, map[string]any{"name": "solo", "tag": "core"}, http.StatusOK)
	path := "/sessions/" + jsonNumber(out["id"].(float64))

	api.expect(http.MethodGet, path, alice, nil, http.StatusOK)
	api.expect(http.MethodGet, path, eve, nil, http.StatusNotFound)
	api.expect(http.MethodGet, "/sessions/abc", alice, nil, http.StatusBadRequest)
}

func TestAdminReap(t *testing.T) {
	api := newAPI(t)

	api.expect(http.MethodPost, "/admin/reap", "", nil, http.StatusUnauthorized)

	player := api.signup("alice")
	api.expect(http.MethodPost, "/admin/reap", player, nil, http.StatusForbidden)

	token, err := security.GenerateAdminToken(adminSecret, "ops", time.Minute)
	if err != nil {
		t.Fatalf("admin token: %v", err)
	}
	out := api.expect(http.MethodPost, "/admin/reap", token, nil, http.StatusOK)
	result := out["result"].(map[string]any)
	if result["runId"] == "" || result["tokens"] != float64(0) || result["games"] != float64(0) {
		t.Fatalf("unexpected reap result %v", result)
	}
}

func TestHealth(t *testing.T) {
	api := newAPI(t)
	out := api.expect(http.MethodGet, "/healthz", "", nil, http.StatusOK)
	if out["store"] != "ok" || out["cache"] != "disabled" {
		t.Fatalf("unexpected health %v", out)
	}
}
