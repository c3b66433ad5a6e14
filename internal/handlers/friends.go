package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bossfit/internal/service"
)

type usernameRequest struct {
	Username string `json:"username" binding:"required"`
}

// AddFriend answers success:false for a pair that already has an edge.
func (h HandlerSet) AddFriend(c *gin.Context) {
	var req usernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	err := h.svc.Friends.RequestByUsername(c.Request.Context(), caller(c).ID, req.Username)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true})
	case errors.Is(err, service.ErrAlreadyRequested):
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "friend request already exists"})
	case errors.Is(err, service.ErrUserNotFound):
		h.failWith(c, http.StatusForbidden, err)
	default:
		h.fail(c, err)
	}
}

func (h HandlerSet) AcceptFriend(c *gin.Context) {
	var req usernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.Friends.Accept(c.Request.Context(), caller(c).ID, req.Username); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h HandlerSet) DenyFriend(c *gin.Context) {
	var req usernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.Friends.Deny(c.Request.Context(), caller(c).ID, req.Username); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h HandlerSet) Unfriend(c *gin.Context) {
	var req usernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.Friends.Unfriend(c.Request.Context(), caller(c).ID, req.Username); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h HandlerSet) FriendsList(c *gin.Context) {
	friends, err := h.svc.Friends.List(c.Request.Context(), caller(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "friends": friends})
}
