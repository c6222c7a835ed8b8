package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mimicbot/internal/listen"
	"mimicbot/internal/repository"
)

type ChannelsHandler struct {
	gate        *listen.Gate
	channels    repository.ChannelRepository
	communities repository.CommunityRepository
	logger      *zap.Logger
}

func NewChannelsHandler(gate *listen.Gate, channels repository.ChannelRepository, communities repository.CommunityRepository, logger *zap.Logger) *ChannelsHandler {
	return &ChannelsHandler{gate: gate, channels: channels, communities: communities, logger: logger}
}

// List returns every known channel of the community with its listen flag.
func (h *ChannelsHandler) List(c *gin.Context) {
	communityID := c.Param("id")

	channels, err := h.channels.FindChannels(communityID)
	if err != nil {
		h.logger.Error("Failed to list channels", zap.String("community_id", communityID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list channels"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

type SetListenRequest struct {
	Listen *bool `json:"listen" binding:"required"`
}

// SetListen updates one channel's listen flag, creating community and
// channel records as needed.
func (h *ChannelsHandler) SetListen(c *gin.Context) {
	communityID := c.Param("id")
	channelID := c.Param("channelID")

	var req SetListenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.communities.UpsertCommunity(communityID); err != nil {
		h.logger.Error("Failed to upsert community", zap.String("community_id", communityID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update channel"})
		return
	}

	if err := h.gate.SetListening(communityID, channelID, *req.Listen); err != nil {
		h.logger.Error("Failed to set listen state",
			zap.String("community_id", communityID),
			zap.String("channel_id", channelID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update channel"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"channel_id": channelID,
		"listen":     *req.Listen,
	})
}
