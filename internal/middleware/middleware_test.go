package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"bossfit/internal/config"
	"bossfit/internal/models"
	"bossfit/internal/security"
)

type fakeSessions struct {
	users   map[string]models.User
	renewed []string
}

func (f *fakeSessions) Resolve(_ context.Context, token string) (models.User, bool) {
	user, ok := f.users[token]
	return user, ok
}

func (f *fakeSessions) Renew(_ context.Context, token string) (time.Time, error) {
	f.renewed = append(f.renewed, token)
	return time.Now().Add(time.Hour), nil
}

var testCookie = CookieSettings{Name: "session", Secure: true, SameSite: http.SameSiteNoneMode, TTL: 336 * time.Hour}

func newAuthRouter(sessions SessionResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", Auth(sessions, testCookie), func(c *gin.Context) {
		user, _ := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"name": user.Username, "token": SessionToken(c)})
	})
	return r
}

func TestAuthRejectsMissingOrUnknownToken(t *testing.T) {
	r := newAuthRouter(&fakeSessions{users: map[string]models.User{}})

	for _, header := range []string{"", "Bearer nope"} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status %d, want 401", header, rec.Code)
		}
	}
}

func TestAuthRenewsCookie(t *testing.T) {
	sessions := &fakeSessions{users: map[string]models.User{"tok": {ID: 7, Username: "alice"}}}
	r := newAuthRouter(sessions)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "tok"})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"name":"alice"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if len(sessions.renewed) != 1 || sessions.renewed[0] != "tok" {
		t.Fatalf("token not renewed: %v", sessions.renewed)
	}

	cookie := rec.Header().Get("Set-Cookie")
	for _, want := range []string{"session=tok", "Max-Age=1209600", "Secure", "HttpOnly", "SameSite=None"} {
		if !strings.Contains(cookie, want) {
			t.Fatalf("cookie %q missing %q", cookie, want)
		}
	}
}

func TestAuthAcceptsBearerHeader(t *testing.T) {
	sessions := &fakeSessions{users: map[string]models.User{"tok": {ID: 7, Username: "alice"}}}
	r := newAuthRouter(sessions)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	secret := "operator-secret"
	r := gin.New()
	r.POST("/admin", RequireAdmin(secret), func(c *gin.Context) {
		c.String(http.StatusOK, AdminSubject(c))
	})

	token, err := security.GenerateAdminToken(secret, "ops", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	forged, err := security.GenerateAdminToken("other-secret", "ops", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	cases := []struct {
		header string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"Bearer " + forged, http.StatusForbidden},
		{"Bearer " + token, http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/admin", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("header %q: status %d, want %d", tc.header, rec.Code, tc.want)
		}
	}
}

func TestRateLimitPerCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", RateLimit(NewRateLimiter(config.RateLimitConfig{UserRPS: 0.001, Burst: 2})), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes %v", codes)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("second caller throttled: %d", rec.Code)
	}
}

func bucketCount(rl *RateLimiter) int {
	n := 0
	rl.buckets.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func TestRateLimiterDropsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{UserRPS: 1, Burst: 1, IdleTTL: time.Minute})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		rl.allow("ip:10.0.0." + strconv.Itoa(i))
	}
	if n := bucketCount(rl); n != 5 {
		t.Fatalf("buckets = %d, want 5", n)
	}

	now = now.Add(30 * time.Second)
	rl.allow("ip:10.0.0.0")
	if n := bucketCount(rl); n != 5 {
		t.Fatalf("swept before the idle period: %d buckets", n)
	}

	now = now.Add(2 * time.Minute)
	if !rl.allow("ip:10.0.0.9") {
		t.Fatal("fresh caller throttled")
	}
	if n := bucketCount(rl); n != 1 {
		t.Fatalf("buckets after sweep = %d, want 1", n)
	}
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS(config.CORSConfig{AllowedOrigins: []string{"https://app.example/"}, MaxAge: 10 * time.Minute}))
	r.GET("/points", func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := []struct {
		method      string
		origin      string
		status      int
		allowOrigin string
	}{
		{http.MethodOptions, "https://app.example", http.StatusNoContent, "https://app.example"},
		{http.MethodGet, "https://app.example", http.StatusOK, "https://app.example"},
		{http.MethodOptions, "https://evil.example", http.StatusForbidden, ""},
		{http.MethodGet, "https://evil.example", http.StatusOK, ""},
		{http.MethodGet, "", http.StatusOK, ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, "/points", nil)
		if tc.origin != "" {
			req.Header.Set("Origin", tc.origin)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != tc.status {
			t.Errorf("%s from %q: status %d, want %d", tc.method, tc.origin, rec.Code, tc.status)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.allowOrigin {
			t.Errorf("%s from %q: allow origin %q, want %q", tc.method, tc.origin, got, tc.allowOrigin)
		}
		if tc.status == http.StatusNoContent && rec.Header().Get("Access-Control-Max-Age") != "600" {
			t.Errorf("preflight max age = %q", rec.Header().Get("Access-Control-Max-Age"))
		}
	}
}

func TestRecoveryWritesFailureEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Recovery(zerolog.Nop()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"success":false`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}
