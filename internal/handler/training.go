package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mimicbot/internal/trainer"
)

type TrainingHandler struct {
	manager *trainer.Manager
	baseCtx context.Context
	logger  *zap.Logger
}

// NewTrainingHandler creates the training endpoints. baseCtx outlives
// individual requests; a run started over HTTP keeps going after the
// request returns.
func NewTrainingHandler(manager *trainer.Manager, baseCtx context.Context, logger *zap.Logger) *TrainingHandler {
	return &TrainingHandler{manager: manager, baseCtx: baseCtx, logger: logger}
}

// Start launches a training run for the community and returns immediately.
func (h *TrainingHandler) Start(c *gin.Context) {
	communityID := c.Param("id")

	run, err := h.manager.Start(h.baseCtx, communityID, nil)
	if err != nil {
		if errors.Is(err, trainer.ErrRunInFlight) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to start training run", zap.String("community_id", communityID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start training run"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"run_id":       run.ID,
		"community_id": communityID,
	})
}

// Progress reports the latest run's snapshot for the community.
func (h *TrainingHandler) Progress(c *gin.Context) {
	communityID := c.Param("id")

	snapshot, ok := h.manager.Progress(communityID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No training run found for this community"})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}
