package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"mimicbot/internal/classifier"
	"mimicbot/internal/collector_client"
	"mimicbot/internal/listen"
	"mimicbot/internal/markov_client"
	"mimicbot/internal/repository"
	"mimicbot/internal/trainer"
)

// ModelMutator is the slice of the markov service live ingestion needs.
type ModelMutator interface {
	AddData(ctx context.Context, communityID string, records []markov_client.TrainingRecord) error
	RemoveByTags(ctx context.Context, communityID string, tags []string) error
}

// Locker hands out the per-community model lock.
type Locker interface {
	TryAcquire(communityID string) (release func(), ok bool)
}

// IngestService feeds live chat events into the model: created messages
// are gated and classified before submission, edits are remove-then-re-add
// by message-id tag, deletions are tag-scoped removals.
type IngestService struct {
	gate        *listen.Gate
	communities repository.CommunityRepository
	model       ModelMutator
	locks       Locker
	logger      *zap.Logger
}

func NewIngestService(gate *listen.Gate, communities repository.CommunityRepository, model ModelMutator, locks Locker, logger *zap.Logger) *IngestService {
	return &IngestService{
		gate:        gate,
		communities: communities,
		model:       model,
		locks:       locks,
		logger:      logger,
	}
}

// HandleMessageCreated ingests one live message. parentChannelID names the
// containing channel when the message lives inside a thread; otherwise it
// equals msg.ChannelID. Messages arriving while the community's model is
// locked by a training run are dropped — the rebuild re-ingests them from
// history.
func (s *IngestService) HandleMessageCreated(ctx context.Context, communityID string, msg collector_client.Message, parentChannelID string) error {
	if err := s.communities.UpsertCommunity(communityID); err != nil {
		return fmt.Errorf("failed to upsert community: %w", err)
	}
	if !classifier.Eligible(msg) {
		return nil
	}

	parent := ""
	if parentChannelID != "" && parentChannelID != msg.ChannelID {
		parent = parentChannelID
	}
	listening, err := s.gate.IsListening(communityID, msg.ChannelID, parent)
	if err != nil {
		return fmt.Errorf("failed to resolve listen state: %w", err)
	}
	if !listening {
		return nil
	}

	release, ok := s.locks.TryAcquire(communityID)
	if !ok {
		s.logger.Debug("Model busy, dropping live message",
			zap.String("community_id", communityID),
			zap.String("message_id", msg.ID))
		return nil
	}
	defer release()

	record := classifier.ToRecord(msg, containingChannel(msg, parentChannelID), communityID)
	return s.model.AddData(ctx, communityID, []markov_client.TrainingRecord{record})
}

// HandleMessageEdited removes the old content by message-id tag and
// re-adds the new content if it is still eligible for training.
func (s *IngestService) HandleMessageEdited(ctx context.Context, communityID string, msg collector_client.Message, parentChannelID string) error {
	release, ok := s.locks.TryAcquire(communityID)
	if !ok {
		return trainer.ErrCommunityBusy
	}
	defer release()

	if err := s.model.RemoveByTags(ctx, communityID, []string{msg.ID}); err != nil {
		return fmt.Errorf("failed to remove edited message: %w", err)
	}
	if !classifier.Eligible(msg) {
		return nil
	}

	parent := ""
	if parentChannelID != "" && parentChannelID != msg.ChannelID {
		parent = parentChannelID
	}
	listening, err := s.gate.IsListening(communityID, msg.ChannelID, parent)
	if err != nil {
		return fmt.Errorf("failed to resolve listen state: %w", err)
	}
	if !listening {
		return nil
	}

	record := classifier.ToRecord(msg, containingChannel(msg, parentChannelID), communityID)
	return s.model.AddData(ctx, communityID, []markov_client.TrainingRecord{record})
}

// HandleMessageDeleted removes a message's contribution by its id tag.
func (s *IngestService) HandleMessageDeleted(ctx context.Context, communityID, messageID string) error {
	release, ok := s.locks.TryAcquire(communityID)
	if !ok {
		return trainer.ErrCommunityBusy
	}
	defer release()
	s.logger.Debug("Deleting message contribution",
		zap.String("community_id", communityID),
		zap.String("message_id", messageID))
	return s.model.RemoveByTags(ctx, communityID, []string{messageID})
}

// HandleThreadDeleted bulk-removes every record tagged with the thread id.
func (s *IngestService) HandleThreadDeleted(ctx context.Context, communityID, threadID string) error {
	release, ok := s.locks.TryAcquire(communityID)
	if !ok {
		return trainer.ErrCommunityBusy
	}
	defer release()
	s.logger.Debug("Deleting thread contributions",
		zap.String("community_id", communityID),
		zap.String("thread_id", threadID))
	return s.model.RemoveByTags(ctx, communityID, []string{threadID})
}

func containingChannel(msg collector_client.Message, parentChannelID string) string {
	if parentChannelID != "" {
		return parentChannelID
	}
	return msg.ChannelID
}
