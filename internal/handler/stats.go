package handler

import (
	"github.com/gin-gonic/gin"

	"betledger/internal/service"
)

type StatsHandler struct {
	Ledger *service.LedgerService
}

func (h *StatsHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/stats", h.stats)
}

func (h *StatsHandler) stats(c *gin.Context) {
	userID, ok := sessionID(c)
	if !ok {
		return
	}
	stats, err := h.Ledger.Stats(c.Request.Context(), userID)
	if err != nil {
		serviceError(c, err)
		return
	}
	Ok(c, stats, nil)
}
