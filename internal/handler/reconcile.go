package handler

import (
	"github.com/gin-gonic/gin"

	"betledger/internal/service"
)

type ReconcileHandler struct {
	Reconcile *service.ReconcileService
}

func (h *ReconcileHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/reconcile")
	group.POST("", h.trigger)
	group.GET("", h.status)
}

// trigger kicks off a pass; a 409 means one is already running.
func (h *ReconcileHandler) trigger(c *gin.Context) {
	if err := h.Reconcile.TryRun(c.Request.Context()); err != nil {
		serviceError(c, err)
		return
	}
	Ok(c, gin.H{"completed": true}, nil)
}

func (h *ReconcileHandler) status(c *gin.Context) {
	Ok(c, gin.H{"running": h.Reconcile.Running()}, nil)
}
