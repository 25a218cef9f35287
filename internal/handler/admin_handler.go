package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/frameseal/internal/model"
	"github.com/fleveque/frameseal/internal/service"
	"github.com/fleveque/frameseal/internal/storage"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// AdminHandler handles administrative endpoints: ledger and preview
// statistics, and browsing past batch runs.
type AdminHandler struct {
	runs   storage.RunRepository
	hub    *service.PreviewHub
	logger *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(runs storage.RunRepository, hub *service.PreviewHub, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		runs:   runs,
		hub:    hub,
		logger: logger,
	}
}

// Stats returns run and per-image counts from the ledger plus preview
// counters since the server started.
// Route: GET /api/v1/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	runs, err := h.runs.CountRuns(ctx)
	if err != nil {
		h.logger.Error("counting runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	images := make(gin.H, len(model.AllStatuses))
	for _, status := range model.AllStatuses {
		n, err := h.runs.CountResultsByStatus(ctx, status)
		if err != nil {
			h.logger.Error("counting results",
				zap.String("status", string(status)),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		images[string(status)] = n
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":    runs,
		"images":  images,
		"preview": h.hub.Stats(),
	})
}

// Runs lists the most recent batch runs.
// Route: GET /api/v1/admin/runs?limit=20
func (h *AdminHandler) Runs(c *gin.Context) {
	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := h.runs.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("listing runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// Run returns one run with its per-image results.
// Route: GET /api/v1/admin/runs/:id
func (h *AdminHandler) Run(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}

	ctx := c.Request.Context()
	run, err := h.runs.GetRun(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		h.logger.Error("getting run", zap.Int64("run_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	results, err := h.runs.ListResults(ctx, id)
	if err != nil {
		h.logger.Error("listing results", zap.Int64("run_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if results == nil {
		results = []model.ImageResult{}
	}

	c.JSON(http.StatusOK, gin.H{
		"run":     run,
		"results": results,
	})
}
