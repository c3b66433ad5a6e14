package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"bossfit/internal/models"
)

const (
	currentUserKey  = "current_user"
	sessionTokenKey = "session_token"
)

// SessionResolver is the token side of authentication.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (models.User, bool)
	Renew(ctx context.Context, token string) (time.Time, error)
}

// CookieSettings describe the session cookie echoed on every authenticated
// response.
type CookieSettings struct {
	Name     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	TTL      time.Duration
}

// Auth resolves the session cookie or bearer header, renews it and rejects
// the request with 401 when neither resolves.
func Auth(sessions SessionResolver, cookie CookieSettings) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := requestToken(c, cookie.Name)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authentication required"})
			return
		}

		user, ok := sessions.Resolve(c.Request.Context(), token)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authentication required"})
			return
		}

		if _, err := sessions.Renew(c.Request.Context(), token); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authentication required"})
			return
		}
		SetSessionCookie(c, cookie, token)

		c.Set(sessionTokenKey, token)
		c.Set(currentUserKey, user)

		c.Next()
	}
}

func requestToken(c *gin.Context, cookieName string) string {
	if value, err := c.Cookie(cookieName); err == nil && value != "" {
		return value
	}
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

func SetSessionCookie(c *gin.Context, cookie CookieSettings, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     cookie.Name,
		Value:    token,
		Path:     "/",
		Domain:   cookie.Domain,
		MaxAge:   int(cookie.TTL / time.Second),
		Secure:   cookie.Secure,
		HttpOnly: true,
		SameSite: cookie.SameSite,
	})
}

// ClearSessionCookie replaces any cookie set earlier in the request with an
// expired one.
func ClearSessionCookie(c *gin.Context, cookie CookieSettings) {
	c.Writer.Header().Del("Set-Cookie")
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     cookie.Name,
		Value:    "",
		Path:     "/",
		Domain:   cookie.Domain,
		MaxAge:   -1,
		Secure:   cookie.Secure,
		HttpOnly: true,
		SameSite: cookie.SameSite,
	})
}

func CurrentUser(c *gin.Context) (models.User, bool) {
	value, ok := c.Get(currentUserKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := value.(models.User)
	return user, ok
}

func SessionToken(c *gin.Context) string {
	return c.GetString(sessionTokenKey)
}
