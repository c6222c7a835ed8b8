// Package listen implements the per-channel listen-state gate backed by
// the channel store.
package listen

import (
	"go.uber.org/zap"

	"mimicbot/internal/models"
	"mimicbot/internal/repository"
)

// Gate answers whether a channel (or a thread, through its parent channel)
// is in listening state. Unknown channels are lazily created with the
// configured default policy so future lookups hit the store directly.
type Gate struct {
	channels      repository.ChannelRepository
	defaultListen bool
	logger        *zap.Logger
}

func NewGate(channels repository.ChannelRepository, defaultListen bool, logger *zap.Logger) *Gate {
	return &Gate{
		channels:      channels,
		defaultListen: defaultListen,
		logger:        logger,
	}
}

// IsListening resolves the listen state for a channel or thread. For a
// thread, parentChannelID must be the containing channel; threads are not
// independently configurable.
func (g *Gate) IsListening(communityID, channelID, parentChannelID string) (bool, error) {
	target := channelID
	if parentChannelID != "" {
		target = parentChannelID
	}

	channel, err := g.channels.GetChannelByID(target)
	if err != nil {
		return false, err
	}
	if channel == nil {
		channel = &models.Channel{ID: target, CommunityID: communityID, Listen: g.defaultListen}
		if err := g.channels.UpsertChannel(channel); err != nil {
			return false, err
		}
		g.logger.Debug("Lazily created channel record",
			zap.String("channel_id", target),
			zap.String("community_id", communityID),
			zap.Bool("listen", g.defaultListen))
	}
	return channel.Listen, nil
}

// SetListening updates a channel's listen flag, creating the record if the
// channel was never seen before.
func (g *Gate) SetListening(communityID, channelID string, listening bool) error {
	return g.channels.SetListen(channelID, communityID, listening)
}

// ListeningChannels returns the community's channels currently being
// listened to.
func (g *Gate) ListeningChannels(communityID string) ([]*models.Channel, error) {
	return g.channels.FindListeningChannels(communityID)
}
