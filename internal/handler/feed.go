package handler

import (
	"github.com/gin-gonic/gin"

	"betledger/internal/service"
)

type FeedHandler struct {
	Feed *service.FeedService
}

func (h *FeedHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/feed")
	group.GET("", h.feed)
	group.DELETE("", h.invalidate)
}

func (h *FeedHandler) feed(c *gin.Context) {
	userID, ok := sessionID(c)
	if !ok {
		return
	}
	refresh := c.Query("refresh") == "true"
	feed, err := h.Feed.Feed(c.Request.Context(), userID, refresh)
	if err != nil {
		serviceError(c, err)
		return
	}
	Ok(c, feed, map[string]any{
		"predictions":  len(feed.Predictions),
		"accumulators": len(feed.Accumulators),
	})
}

func (h *FeedHandler) invalidate(c *gin.Context) {
	userID, ok := sessionID(c)
	if !ok {
		return
	}
	if err := h.Feed.Invalidate(c.Request.Context(), userID); err != nil {
		serviceError(c, err)
		return
	}
	Ok(c, gin.H{"invalidated": true}, nil)
}
