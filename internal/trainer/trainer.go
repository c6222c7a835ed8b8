// Package trainer drives full-rebuild training runs: it walks every
// listening channel of a community, feeds the resulting training records
// to the markov service and tracks progress with a remaining-time
// estimate.
package trainer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mimicbot/internal/classifier"
	"mimicbot/internal/collector_client"
	"mimicbot/internal/history"
	"mimicbot/internal/markov_client"
	"mimicbot/internal/models"
)

// NoChannelsMessage is returned when a community has nothing to train from.
const NoChannelsMessage = "No channels configured to learn from. Set some with the listen command."

// Walker pages through a channel's history.
type Walker interface {
	Walk(ctx context.Context, channelID string, onPage func(history.Page) error) (int, error)
}

// Model is the slice of the markov service the trainer needs.
type Model interface {
	AddData(ctx context.Context, communityID string, records []markov_client.TrainingRecord) error
	Delete(ctx context.Context, communityID string) error
}

// ChannelStore resolves a community's listening channels.
type ChannelStore interface {
	FindListeningChannels(communityID string) ([]*models.Channel, error)
}

// ChannelInfoFetcher supplies channel metadata for progress estimation.
type ChannelInfoFetcher interface {
	GetChannelInfo(ctx context.Context, channelID string) (*collector_client.ChannelInfo, error)
}

// Trainer orchestrates one community's training run.
type Trainer struct {
	walker     Walker
	model      Model
	channels   ChannelStore
	info       ChannelInfoFetcher
	updateRate int
	logger     *zap.Logger

	now func() time.Time // overridable in tests
}

func NewTrainer(walker Walker, model Model, channels ChannelStore, info ChannelInfoFetcher, updateRate int, logger *zap.Logger) *Trainer {
	return &Trainer{
		walker:     walker,
		model:      model,
		channels:   channels,
		info:       info,
		updateRate: updateRate,
		logger:     logger,
		now:        time.Now,
	}
}

// TrainCommunity rebuilds the community's model from the history of all
// its listening channels. The existing model is discarded first;
// incremental re-training is not supported.
//
// Per-channel and per-thread fetch failures are logged and skipped; a
// failing training batch submission aborts the whole run, since partial,
// un-recorded corpus state is worse than an explicit failure.
func (t *Trainer) TrainCommunity(ctx context.Context, communityID string, sink ProgressSink) (string, error) {
	if sink == nil {
		sink = NopSink{}
	}

	channels, err := t.channels.FindListeningChannels(communityID)
	if err != nil {
		return "", fmt.Errorf("failed to find listening channels: %w", err)
	}
	if len(channels) == 0 {
		t.logger.Warn("No channels to train from", zap.String("community_id", communityID))
		return NoChannelsMessage, nil
	}

	t.logger.Debug("Deleting old model data", zap.String("community_id", communityID))
	if err := t.model.Delete(ctx, communityID); err != nil {
		return "", fmt.Errorf("failed to delete existing model: %w", err)
	}

	state := ProgressState{}

	for _, channel := range channels {
		t.logger.Debug("Training from channel",
			zap.String("channel_id", channel.ID),
			zap.Int("messages_count", state.MessagesCount))

		state.CurrentChannel = channel.ID
		state.PercentComplete = 0
		state.ETAText = "Pending..."

		if err := t.trainChannel(ctx, communityID, channel.ID, &state, sink); err != nil {
			if history.IsFetchError(err) {
				// Give up on this channel only; everything ingested so far
				// stays ingested.
				continue
			}
			return "", err
		}
		state.CompletedChannels = append(state.CompletedChannels, channel.ID)
	}

	summary := fmt.Sprintf("Trained from %d past human authored messages.", state.MessagesCount)
	t.logger.Info("Training run finished",
		zap.String("community_id", communityID),
		zap.Int("messages_count", state.MessagesCount),
		zap.Int("completed_channels", len(state.CompletedChannels)))
	return summary, nil
}

func (t *Trainer) trainChannel(ctx context.Context, communityID, channelID string, state *ProgressState, sink ProgressSink) error {
	var channelCreatedAt time.Time
	if info, err := t.info.GetChannelInfo(ctx, channelID); err != nil {
		t.logger.Warn("Could not fetch channel info, progress estimation disabled for this channel",
			zap.String("channel_id", channelID), zap.Error(err))
	} else {
		channelCreatedAt = info.CreatedAt
	}

	eta := newEtaEstimator(1, 10*time.Second, t.now)
	var firstPageNewest time.Time

	_, err := t.walker.Walk(ctx, channelID, func(page history.Page) error {
		records := classifier.ToRecords(page.Messages, channelID, communityID)
		if err := t.model.AddData(ctx, communityID, records); err != nil {
			return fmt.Errorf("failed to submit training batch for channel %s: %w", channelID, err)
		}
		state.MessagesCount += len(records)

		if firstPageNewest.IsZero() {
			firstPageNewest = page.NewestCreatedAt
		}
		if !firstPageNewest.IsZero() && !channelCreatedAt.IsZero() {
			channelAge := firstPageNewest.Sub(channelCreatedAt).Seconds()
			walkedAge := firstPageNewest.Sub(page.OldestCreatedAt).Seconds()
			if channelAge > 0 {
				fraction := walkedAge / channelAge
				if fraction < 0 {
					fraction = 0
				} else if fraction > 1 {
					fraction = 1
				}
				state.PercentComplete = fraction * 100
				eta.Report(fraction)
				state.ETAText = formatRemaining(eta.Estimate())
			}
		}

		if state.MessagesCount >= state.lastUpdateCount+t.updateRate {
			state.lastUpdateCount = state.MessagesCount
			t.logger.Debug("Sending metrics update",
				zap.Int("messages_count", state.MessagesCount),
				zap.Float64("percent_complete", state.PercentComplete))
			sink.Update(state.snapshot())
		}
		return nil
	})
	return err
}
