package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mimicbot/internal/generator"
	"mimicbot/internal/service"
)

type GenerateRequest struct {
	StartSeed string `json:"start_seed"`
	Debug     bool   `json:"debug"`
	TTS       bool   `json:"tts"`
}

type GenerateHandler struct {
	coordinator *generator.Coordinator
	locks       service.Locker
	logger      *zap.Logger
}

func NewGenerateHandler(coordinator *generator.Coordinator, locks service.Locker, logger *zap.Logger) *GenerateHandler {
	return &GenerateHandler{coordinator: coordinator, locks: locks, logger: logger}
}

// Generate produces one response for the community. Recoverable failures
// come back as an error field inside a 200 body; only a busy model is a
// non-200.
func (h *GenerateHandler) Generate(c *gin.Context) {
	communityID := c.Param("id")

	var req GenerateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	release, ok := h.locks.TryAcquire(communityID)
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "The community's model is busy. Try again once training finishes."})
		return
	}
	defer release()

	result := h.coordinator.Generate(c.Request.Context(), communityID, generator.Options{
		TTS:       req.TTS,
		Debug:     req.Debug,
		StartSeed: req.StartSeed,
	})

	c.JSON(http.StatusOK, result)
}
