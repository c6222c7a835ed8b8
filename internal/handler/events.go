package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mimicbot/internal/collector_client"
	"mimicbot/internal/service"
	"mimicbot/internal/trainer"
)

// EventsHandler receives push-delivered live events from the collector
// service: message created/edited/deleted and thread deleted.
type EventsHandler struct {
	ingest *service.IngestService
	logger *zap.Logger
}

func NewEventsHandler(ingest *service.IngestService, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{ingest: ingest, logger: logger}
}

type MessageEvent struct {
	CommunityID     string                   `json:"community_id" binding:"required"`
	ParentChannelID string                   `json:"parent_channel_id"`
	Message         collector_client.Message `json:"message" binding:"required"`
}

type MessageDeletedEvent struct {
	CommunityID string `json:"community_id" binding:"required"`
	MessageID   string `json:"message_id" binding:"required"`
}

type ThreadDeletedEvent struct {
	CommunityID string `json:"community_id" binding:"required"`
	ThreadID    string `json:"thread_id" binding:"required"`
}

func (h *EventsHandler) MessageCreated(c *gin.Context) {
	var event MessageEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.ingest.HandleMessageCreated(c.Request.Context(), event.CommunityID, event.Message, event.ParentChannelID)
	h.respond(c, err)
}

func (h *EventsHandler) MessageEdited(c *gin.Context) {
	var event MessageEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.ingest.HandleMessageEdited(c.Request.Context(), event.CommunityID, event.Message, event.ParentChannelID)
	h.respond(c, err)
}

func (h *EventsHandler) MessageDeleted(c *gin.Context) {
	var event MessageDeletedEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.ingest.HandleMessageDeleted(c.Request.Context(), event.CommunityID, event.MessageID)
	h.respond(c, err)
}

func (h *EventsHandler) ThreadDeleted(c *gin.Context) {
	var event ThreadDeletedEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.ingest.HandleThreadDeleted(c.Request.Context(), event.CommunityID, event.ThreadID)
	h.respond(c, err)
}

func (h *EventsHandler) respond(c *gin.Context, err error) {
	if err != nil {
		if errors.Is(err, trainer.ErrCommunityBusy) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to process event", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process event"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
