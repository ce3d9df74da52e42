package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"betledger/internal/models"
	"betledger/internal/service"
)

type BetsHandler struct {
	Ledger *service.LedgerService
}

func (h *BetsHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/bets")
	group.POST("/predictions", h.trackPrediction)
	group.GET("/predictions", h.listPredictions)
	group.DELETE("/predictions/:id", h.removePrediction)
	group.POST("/accumulators", h.trackAccumulator)
	group.GET("/accumulators", h.listAccumulators)
	group.DELETE("/accumulators/:id", h.removeAccumulator)
	group.DELETE("", h.clearAll)
}

type trackPredictionRequest struct {
	Prediction models.Prediction `json:"prediction"`
	Stake      decimal.Decimal   `json:"stake"`
}

type trackAccumulatorRequest struct {
	Accumulator models.Accumulator `json:"accumulator"`
	Stake       decimal.Decimal    `json:"stake"`
}

type predictionView struct {
	Prediction models.Prediction        `json:"prediction"`
	Stake      decimal.Decimal          `json:"stake"`
	TrackedAt  time.Time                `json:"trackedAt"`
	Result     *models.PredictionResult `json:"result,omitempty"`
	PnL        decimal.Decimal          `json:"pnl"`
}

type accumulatorView struct {
	Accumulator models.Accumulator        `json:"accumulator"`
	Stake       decimal.Decimal           `json:"stake"`
	TrackedAt   time.Time                 `json:"trackedAt"`
	Result      *models.AccumulatorResult `json:"result,omitempty"`
	PnL         decimal.Decimal           `json:"pnl"`
}

func (h *BetsHandler) trackPrediction(c *gin.Context) {
	userID, ok := sessionID(c)
	if !ok {
		return
	}
	var req trackPredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.Ledger.TrackPrediction(c.Request.Context(), userID, req.Prediction, req.Stake); err != nil {
		serviceError(c, err)
		return
	}
	Ok(c, gin.H{"tracked": req.Prediction.ID}, nil)
}

func (h *BetsHandler) listPredictions(c *gin.Context) {
	userID, ok := sessionID(c)
	if !ok {
		return
	}
	entries, err := h.Ledger.Predictions(c.Request.Context(), userID)
	if err != nil {
		serviceError(c, err)
		return
	}
	views := make([]predictionView, 0, len(entries))
	for _, e := range entries {
		views = append(views, predictionView{
			Prediction: e.Snapshot,
			Stake:      e.Row.Stake,
			TrackedAt:  e.Row.CreatedAt,
			Result:     e.Result,
			PnL:        e.PnL,
		})
	}
	Ok(c, views, map[string]any{"count": len(views)})
}

func (h *BetsHandler) removePrediction(c *gin.Context) {
	userID, ok := sessionID(c)
	if !ok {
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "id required", nil)
		return
	}
	if err := h.Ledger.RemovePrediction(c.Request.Context(), userID, id); err != nil {
		serviceError(c, err)
		return
	}
	Ok(c, gin.H{"removed": id}, nil)
}

func (h *BetsHandler) trackAccumulator(c *gin.Context) {
	userID, ok := sessionID(c)
	if !ok {
		return
	}
	var req trackAccumulatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.Ledger.TrackAccumulator(c.Request.Context(), userID, req.Accumulator, req.Stake); err != nil {
		serviceError(c, err)
		return
	}
	Ok(c, gin.H{"tracked": req.Accumulator.ID}, nil)
}

func (h *BetsHandler) listAccumulators(c *gin.Context) {
	userID, ok := sessionID(c)
	if !ok {
		return
	}
	entries, err := h.Ledger.Accumulators(c.Request.Context(), userID)
	if err != nil {
		serviceError(c, err)
		return
	}
	views := make([]accumulatorView, 0, len(entries))
	for _, e := range entries {
		views = append(views, accumulatorView{
			Accumulator: e.Snapshot,
			Stake:       e.Row.Stake,
			TrackedAt:   e.Row.CreatedAt,
			Result:      e.Result,
			PnL:         e.PnL,
		})
	}
	Ok(c, views, map[string]any{"count": len(views)})
}

func (h *BetsHandler) removeAccumulator(c *gin.Context) {
	userID, ok := sessionID(c)
	if !ok {
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "id required", nil)
		return
	}
	if err := h.Ledger.RemoveAccumulator(c.Request.Context(), userID, id); err != nil {
		serviceError(c, err)
		return
	}
	Ok(c, gin.H{"removed": id}, nil)
}

func (h *BetsHandler) clearAll(c *gin.Context) {
	userID, ok := sessionID(c)
	if !ok {
		return
	}
	if err := h.Ledger.ClearAll(c.Request.Context(), userID); err != nil {
		serviceError(c, err)
		return
	}
	Ok(c, gin.H{"cleared": true}, nil)
}
