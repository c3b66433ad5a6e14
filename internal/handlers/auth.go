package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bossfit/internal/middleware"
	"bossfit/internal/service"
)

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h HandlerSet) RegisterUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if _, err := h.svc.Auth.Register(c.Request.Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, service.ErrUsernameTaken) {
			h.failWith(c, http.StatusBadRequest, err)
			return
		}
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h HandlerSet) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.svc.Auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.failWith(c, http.StatusForbidden, err)
			return
		}
		h.fail(c, err)
		return
	}

	middleware.SetSessionCookie(c, h.cookie, result.Token)
	c.JSON(http.StatusOK, gin.H{"success": true, "token": result.Token})
}

func (h HandlerSet) Logout(c *gin.Context) {
	if err := h.svc.Auth.Logout(c.Request.Context(), middleware.SessionToken(c)); err != nil {
		h.fail(c, err)
		return
	}
	middleware.ClearSessionCookie(c, h.cookie)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
