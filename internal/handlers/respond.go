package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bossfit/internal/apperr"
	"bossfit/internal/middleware"
	"bossfit/internal/models"
)

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.Validation:
		return http.StatusBadRequest
	case apperr.Authentication:
		return http.StatusUnauthorized
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error with the status its kind maps to.
func (h HandlerSet) fail(c *gin.Context, err error) {
	h.failWith(c, statusFor(apperr.KindOf(err)), err)
}

func (h HandlerSet) failWith(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"success": false, "error": apperr.Message(err)})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
}

// caller is only called behind middleware.Auth.
func caller(c *gin.Context) models.User {
	user, _ := middleware.CurrentUser(c)
	return user
}
