// Package history implements the paginated backward traversal of a
// channel's message history, including descent into threads discovered
// mid-page.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mimicbot/internal/classifier"
	"mimicbot/internal/collector_client"
)

// Gateway is the slice of the collector API the walker needs.
type Gateway interface {
	GetMessagesBefore(ctx context.Context, channelID, beforeID string, limit int) ([]collector_client.Message, error)
	GetThreadMessagesBefore(ctx context.Context, threadID, beforeID string, limit int) ([]collector_client.Message, error)
}

// FetchError marks a transport failure fetching a page. The walk gives up
// on the failing node but everything ingested so far stays ingested.
type FetchError struct {
	ChannelID string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch history page for %s: %v", e.ChannelID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Page is one thread-augmented, eligibility-filtered batch of messages
// handed to the walk callback. Timestamps describe the top-level page only
// and drive progress estimation.
type Page struct {
	ChannelID       string
	Messages        []collector_client.Message
	NewestCreatedAt time.Time
	OldestCreatedAt time.Time
}

// Walker traverses channel histories newest to oldest.
type Walker struct {
	gateway  Gateway
	pageSize int
	logger   *zap.Logger
}

func NewWalker(gateway Gateway, pageSize int, logger *zap.Logger) *Walker {
	return &Walker{
		gateway:  gateway,
		pageSize: pageSize,
		logger:   logger,
	}
}

// Walk pages backward through channelID's history. Each page is augmented
// with the full content of any threads discovered in it, filtered for
// eligibility and passed to onPage. The cursor advances to the oldest
// message physically returned by the top-level request; the walk ends when
// a short page comes back.
//
// A transport failure is returned as a *FetchError together with the count
// ingested so far. Errors from onPage are returned as-is.
func (w *Walker) Walk(ctx context.Context, channelID string, onPage func(Page) error) (int, error) {
	var cursor string
	total := 0

	for {
		messages, err := w.gateway.GetMessagesBefore(ctx, channelID, cursor, w.pageSize)
		if err != nil {
			w.logger.Error("Giving up on channel after page fetch failure",
				zap.String("channel_id", channelID),
				zap.String("cursor", cursor),
				zap.Error(err))
			return total, &FetchError{ChannelID: channelID, Err: err}
		}

		if len(messages) == 0 {
			return total, nil
		}

		page := Page{
			ChannelID:       channelID,
			NewestCreatedAt: messages[0].CreatedAt,
			OldestCreatedAt: messages[len(messages)-1].CreatedAt,
		}

		merged := messages
		for _, msg := range messages {
			if msg.ThreadID == "" {
				continue
			}
			threadMessages, err := w.walkThread(ctx, msg.ThreadID)
			if err != nil {
				// A failing thread aborts only that thread's sub-walk.
				w.logger.Error("Giving up on thread after fetch failure",
					zap.String("thread_id", msg.ThreadID),
					zap.String("channel_id", channelID),
					zap.Error(err))
				continue
			}
			merged = append(merged, threadMessages...)
		}

		for _, msg := range merged {
			if classifier.Eligible(msg) {
				page.Messages = append(page.Messages, msg)
			}
		}

		total += len(page.Messages)
		if err := onPage(page); err != nil {
			return total, err
		}

		if len(messages) < w.pageSize {
			return total, nil
		}
		cursor = messages[len(messages)-1].ID
	}
}

// walkThread exhausts a thread's history and returns all its messages.
// Threads do not nest, so this is a plain pagination loop.
func (w *Walker) walkThread(ctx context.Context, threadID string) ([]collector_client.Message, error) {
	var cursor string
	var all []collector_client.Message

	for {
		messages, err := w.gateway.GetThreadMessagesBefore(ctx, threadID, cursor, w.pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, messages...)
		if len(messages) < w.pageSize {
			return all, nil
		}
		cursor = messages[len(messages)-1].ID
	}
}

// IsFetchError reports whether err is a recoverable page-fetch failure.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
