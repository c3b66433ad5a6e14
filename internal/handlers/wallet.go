package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bossfit/internal/service"
)

type buyRequest struct {
	Avatar string `json:"avatar" binding:"required"`
	Price  *int64 `json:"price" binding:"required"`
}

// withAvatarURL adds a signed image URL when object storage is configured.
func (h HandlerSet) withAvatarURL(ctx context.Context, body gin.H, avatar string) gin.H {
	if h.avatars == nil {
		return body
	}
	url, err := h.avatars.AvatarURL(ctx, avatar)
	if err != nil {
		h.log.Warn().Err(err).Str("avatar", avatar).Msg("presign avatar failed")
		return body
	}
	body["avatarUrl"] = url
	return body
}

func (h HandlerSet) Points(c *gin.Context) {
	wallet, err := h.svc.Ledger.Balance(c.Request.Context(), caller(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.withAvatarURL(c.Request.Context(), gin.H{
		"success": true,
		"points":  wallet.Points,
		"avatar":  wallet.Avatar,
	}, wallet.Avatar))
}

// Buy answers success:false when the balance does not cover the price.
func (h HandlerSet) Buy(c *gin.Context) {
	var req buyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	wallet, err := h.svc.Ledger.Purchase(c.Request.Context(), caller(c).ID, req.Avatar, *req.Price)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "points": wallet.Points, "avatar": wallet.Avatar})
	case errors.Is(err, service.ErrInsufficientFunds):
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "insufficient points"})
	default:
		h.fail(c, err)
	}
}

func (h HandlerSet) Avatar(c *gin.Context) {
	var req usernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	avatar, err := h.svc.Credentials.Avatar(c.Request.Context(), req.Username)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.withAvatarURL(c.Request.Context(), gin.H{
		"success": true,
		"avatar":  avatar,
	}, avatar))
}
