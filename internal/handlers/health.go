package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status      string `json:"status"`
	Store       string `json:"store"`
	Cache       string `json:"cache"`
	Storage     string `json:"storage"`
	Environment string `json:"environment"`
}

// Health reports 503 only when the store is down; cache and storage are
// optional.
func (h HandlerSet) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:      "ok",
		Store:       "ok",
		Cache:       "disabled",
		Storage:     "disabled",
		Environment: h.cfg.Environment,
	}
	status := http.StatusOK

	if err := h.store.Ping(ctx); err != nil {
		resp.Status, resp.Store = "degraded", "error"
		status = http.StatusServiceUnavailable
		h.log.Error().Err(err).Msg("store ping failed")
	}

	if h.cache != nil {
		resp.Cache = "ok"
		if err := h.cache.Ping(ctx).Err(); err != nil {
			resp.Cache = "error"
			h.log.Error().Err(err).Msg("redis ping failed")
		}
	}

	if h.avatars != nil {
		resp.Storage = "ok"
		if err := h.avatars.Ping(ctx); err != nil {
			resp.Storage = "error"
			h.log.Warn().Err(err).Msg("object storage ping failed")
		}
	}

	c.JSON(status, resp)
}
