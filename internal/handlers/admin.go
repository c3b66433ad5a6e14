package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bossfit/internal/apperr"
	"bossfit/internal/middleware"
)

// Reap runs the expiry sweep on demand.
func (h HandlerSet) Reap(c *gin.Context) {
	if h.reaper == nil {
		h.fail(c, apperr.New(apperr.Unavailable, "reaper not configured"))
		return
	}

	result, err := h.reaper.Run(c.Request.Context())
	if err != nil {
		h.fail(c, apperr.Wrap(apperr.Unavailable, "reap failed", err))
		return
	}

	h.log.Info().
		Str("admin", middleware.AdminSubject(c)).
		Str("run_id", result.RunID).
		Msg("manual reap")
	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}
