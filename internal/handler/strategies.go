package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"betledger/internal/service"
)

type StrategiesHandler struct {
	Strategies *service.StrategyService
}

func (h *StrategiesHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/strategies")
	group.GET("", h.list)
	group.POST("", h.create)
	group.PATCH("/:id", h.update)
	group.GET("/:id/versions", h.versions)
	group.POST("/:id/versions", h.saveVersion)
	group.POST("/:id/versions/:version/deploy", h.deploy)
}

type createStrategyRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Content     datatypes.JSON `json:"content"`
	Author      string         `json:"author"`
}

type saveVersionRequest struct {
	Content   datatypes.JSON `json:"content"`
	Author    string         `json:"author"`
	Changelog string         `json:"changelog"`
}

type updateStrategyRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Archived    *bool   `json:"archived"`
	Promoted    *bool   `json:"promoted"`
}

func strategyID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id == 0 {
		Error(c, http.StatusBadRequest, "invalid strategy id", nil)
		return 0, false
	}
	return id, true
}

func (h *StrategiesHandler) list(c *gin.Context) {
	userID, ok := sessionID(c)
	if !ok {
		return
	}
	includeArchived := c.Query("archived") == "true"
	views, err := h.Strategies.List(c.Request.Context(), userID, includeArchived)
	if err != nil {
		serviceError(c, err)
		return
	}
	Ok(c, views, map[string]any{"count": len(views)})
}

func (h *StrategiesHandler) create(c *gin.Context) {
	userID, ok := sessionID(c)
	if !ok {
		return
	}
	var req createStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	strategy, err := h.Strategies.Create(c.Request.Context(), userID, req.Name, req.Description, req.Content, req.Author)
	if err != nil {
		serviceError(c, err)
		return
	}
	Ok(c, strategy, nil)
}

func (h *StrategiesHandler) update(c *gin.Context) {
	userID, ok := sessionID(c)
	if !ok {
		return
	}
	id, ok := strategyID(c)
	if !ok {
		return
	}
	var req updateStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.Strategies.Update(c.Request.Context(), userID, id, req.Name, req.Description, req.Archived, req.Promoted); err != nil {
		serviceError(c, err)
		return
	}
	Ok(c, gin.H{"updated": id}, nil)
}

func (h *StrategiesHandler) versions(c *gin.Context) {
	userID, ok := sessionID(c)
	if !ok {
		return
	}
	id, ok := strategyID(c)
	if !ok {
		return
	}
	versions, err := h.Strategies.Versions(c.Request.Context(), userID, id)
	if err != nil {
		serviceError(c, err)
		return
	}
	Ok(c, versions, map[string]any{"count": len(versions)})
}

func (h *StrategiesHandler) saveVersion(c *gin.Context) {
	userID, ok := sessionID(c)
	if !ok {
		return
	}
	id, ok := strategyID(c)
	if !ok {
		return
	}
	var req saveVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	version, err := h.Strategies.SaveVersion(c.Request.Context(), userID, id, req.Content, req.Author, req.Changelog)
	if err != nil {
		serviceError(c, err)
		return
	}
	Ok(c, version, nil)
}

func (h *StrategiesHandler) deploy(c *gin.Context) {
	userID, ok := sessionID(c)
	if !ok {
		return
	}
	id, ok := strategyID(c)
	if !ok {
		return
	}
	versionNumber, err := strconv.Atoi(strings.TrimSpace(c.Param("version")))
	if err != nil || versionNumber <= 0 {
		Error(c, http.StatusBadRequest, "invalid version number", nil)
		return
	}
	if err := h.Strategies.Deploy(c.Request.Context(), userID, id, versionNumber); err != nil {
		serviceError(c, err)
		return
	}
	Ok(c, gin.H{"deployed": versionNumber}, nil)
}
