package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"betledger/internal/service"
)

type SettingsHandler struct {
	Settings *service.SettingsService
}

func (h *SettingsHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/settings")
	group.GET("/budget", h.budget)
	group.PUT("/budget", h.setBudget)
}

type setBudgetRequest struct {
	Budget decimal.Decimal `json:"budget"`
}

func (h *SettingsHandler) budget(c *gin.Context) {
	userID, ok := sessionID(c)
	if !ok {
		return
	}
	budget, err := h.Settings.InitialBudget(c.Request.Context(), userID)
	if err != nil {
		serviceError(c, err)
		return
	}
	Ok(c, gin.H{"budget": budget}, nil)
}

func (h *SettingsHandler) setBudget(c *gin.Context) {
	userID, ok := sessionID(c)
	if !ok {
		return
	}
	var req setBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.Settings.SetInitialBudget(c.Request.Context(), userID, req.Budget); err != nil {
		serviceError(c, err)
		return
	}
	Ok(c, gin.H{"budget": req.Budget}, nil)
}
