package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"betledger/internal/service"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// sessionID extracts the owner of the request. Every user-scoped route
// requires it.
func sessionID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.GetHeader("X-Session-ID"))
	if id == "" {
		Error(c, http.StatusBadRequest, "X-Session-ID header required", nil)
		return "", false
	}
	return id, true
}

// serviceError maps classified service errors onto HTTP statuses.
func serviceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		Error(c, http.StatusNotFound, "not found", nil)
	case errors.Is(err, service.ErrInvalidStake), errors.Is(err, service.ErrInvalidBudget):
		Error(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, service.ErrAuthFailed):
		Error(c, http.StatusUnauthorized, "storage credentials rejected", nil)
	case errors.Is(err, service.ErrSchemaMissing):
		Error(c, http.StatusServiceUnavailable, "storage schema missing, run migrations", nil)
	case errors.Is(err, service.ErrStoreUnavailable):
		Error(c, http.StatusBadGateway, "storage unavailable", nil)
	case errors.Is(err, service.ErrPassInFlight):
		Error(c, http.StatusConflict, "reconciliation already running", nil)
	case errors.Is(err, service.ErrEmptyFeed):
		Error(c, http.StatusNotFound, "no recommendations available", nil)
	default:
		Error(c, http.StatusInternalServerError, err.Error(), nil)
	}
}
