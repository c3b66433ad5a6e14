package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bossfit/internal/apperr"
	"bossfit/internal/models"
)

type createSessionRequest struct {
	Users []string `json:"users"`
	Name  string   `json:"name" binding:"required"`
	Tag   string   `json:"tag"`
}

type attackRequest struct {
	ID     int64 `json:"id" binding:"required"`
	Damage *int  `json:"damage" binding:"required"`
}

// sessionPayload spreads the exercise tiers next to the session fields.
func sessionPayload(view models.GameView) gin.H {
	body := gin.H{
		"id":          view.ID,
		"name":        view.Name,
		"bossHealth":  view.BossHealth,
		"partyHealth": view.PartyHealth,
		"users":       view.Users,
		"tag":         view.Tag,
	}
	for _, difficulty := range models.Difficulties {
		names := view.Exercises[difficulty]
		if names == nil {
			names = []string{}
		}
		body[string(difficulty)] = names
	}
	return body
}

func (h HandlerSet) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	view, err := h.svc.Games.Create(c.Request.Context(), caller(c).ID, req.Users, req.Name, req.Tag)
	if err != nil {
		h.fail(c, err)
		return
	}

	body := sessionPayload(view)
	body["success"] = true
	c.JSON(http.StatusOK, body)
}

func (h HandlerSet) Attack(c *gin.Context) {
	var req attackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.svc.Games.Attack(c.Request.Context(), caller(c).ID, req.ID, *req.Damage)
	if err != nil {
		h.fail(c, err)
		return
	}
	if result.Defeated {
		c.JSON(http.StatusOK, gin.H{"success": true, "defeated": true})
		return
	}

	body := sessionPayload(*result.View)
	body["success"] = true
	c.JSON(http.StatusOK, body)
}

func (h HandlerSet) ListSessions(c *gin.Context) {
	views, err := h.svc.Games.ListActive(c.Request.Context(), caller(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}

	sessions := make([]gin.H, 0, len(views))
	for _, view := range views {
		sessions = append(sessions, sessionPayload(view))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sessions": sessions})
}

func (h HandlerSet) GetSession(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.fail(c, apperr.Validationf("invalid session id"))
		return
	}

	view, err := h.svc.Games.View(c.Request.Context(), caller(c).ID, id)
	if err != nil {
		h.fail(c, err)
		return
	}

	body := sessionPayload(view)
	body["success"] = true
	c.JSON(http.StatusOK, body)
}

func (h HandlerSet) Leaderboard(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			h.fail(c, apperr.Validationf("limit must be between 1 and 100"))
			return
		}
		limit = n
	}

	standings, err := h.svc.Games.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "leaderboard": standings})
}
