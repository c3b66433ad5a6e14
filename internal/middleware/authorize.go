package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bossfit/internal/security"
)

const adminSubjectKey = "admin_subject"

// RequireAdmin guards operator routes with an HS512 admin JWT. An empty
// secret disables the routes entirely.
func RequireAdmin(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "missing_token"})
			return
		}

		claims, err := security.ParseAdminToken(strings.TrimPrefix(authHeader, "Bearer "), secret)
		if err != nil {
			if errors.Is(err, security.ErrAdminDisabled) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"success": false, "error": "not_found"})
				return
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "forbidden"})
			return
		}

		c.Set(adminSubjectKey, claims.Subject)
		c.Next()
	}
}

func AdminSubject(c *gin.Context) string {
	return c.GetString(adminSubjectKey)
}
