// Package generator assembles chat responses from the markov service: a
// scored, retried generation with attachment resolution and a sanitized,
// optionally debug-annotated payload.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"mimicbot/internal/markov_client"
)

// NotEnoughDataMessage is the user-facing text for the exhausted outcome.
const NotEnoughDataMessage = "Not enough chat data to generate a response. Try training from more channels, or keep chatting."

// Model is the slice of the markov service the coordinator needs.
type Model interface {
	Generate(ctx context.Context, communityID string, opts markov_client.GenerateOptions) (*markov_client.Generated, error)
	RandomAttachmentRecord(ctx context.Context, communityID string) (*markov_client.TrainingRecord, error)
}

// Options controls one generation request.
type Options struct {
	TTS       bool
	Debug     bool
	StartSeed string
}

// Result is the assembled response. Exactly one of Text and Err is set.
// Debug, when requested, is a separate payload never merged into the
// primary message.
type Result struct {
	Text          string `json:"text,omitempty"`
	AttachmentURL string `json:"attachment_url,omitempty"`
	TTS           bool   `json:"tts,omitempty"`
	Debug         string `json:"debug,omitempty"`
	Err           string `json:"error,omitempty"`
}

// Coordinator requests sentences under a minimum-score filter and a
// bounded retry budget, then resolves attachments and sanitizes the text.
type Coordinator struct {
	model    Model
	minScore int
	maxTries int
	logger   *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewCoordinator(model Model, minScore, maxTries int, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		model:    model,
		minScore: minScore,
		maxTries: maxTries,
		logger:   logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Generate produces one response for the community. All recoverable
// failures come back inside the Result; this never panics and never
// returns a Go error to the caller.
func (c *Coordinator) Generate(ctx context.Context, communityID string, opts Options) Result {
	generated, err := c.model.Generate(ctx, communityID, markov_client.GenerateOptions{
		Filter: func(g *markov_client.Generated) bool {
			return g.Score >= c.minScore
		},
		MaxTries:  c.maxTries,
		StartSeed: opts.StartSeed,
	})
	if err != nil {
		if errors.Is(err, markov_client.ErrNoQualifyingSentence) {
			c.logger.Info("No qualifying sentence within retry budget",
				zap.String("community_id", communityID),
				zap.String("start_seed", opts.StartSeed))
			return Result{Err: NotEnoughDataMessage, TTS: opts.TTS}
		}
		c.logger.Error("Generation failed", zap.String("community_id", communityID), zap.Error(err))
		return Result{Err: "ERROR: " + err.Error(), TTS: opts.TTS}
	}

	c.logger.Info("Generated response text",
		zap.String("community_id", communityID),
		zap.String("text", generated.Text),
		zap.Int("score", generated.Score))

	result := Result{
		Text:          Sanitize(generated.Text),
		AttachmentURL: c.resolveAttachment(ctx, communityID, generated),
		TTS:           opts.TTS,
	}

	if opts.Debug {
		if dump, err := json.MarshalIndent(generated, "", "  "); err == nil {
			result.Debug = string(dump)
		} else {
			c.logger.Error("Failed to marshal debug dump", zap.Error(err))
		}
	}

	return result
}

// resolveAttachment picks an attachment in strict priority order: first a
// uniform random pick from the union of the contributing references'
// attachments, then a uniform random record with attachments from the
// whole corpus. Failures here only cost the attachment, not the response.
func (c *Coordinator) resolveAttachment(ctx context.Context, communityID string, generated *markov_client.Generated) string {
	var urls []string
	for _, ref := range generated.References {
		if ref.Custom != nil {
			urls = append(urls, ref.Custom.Attachments...)
		}
	}
	if len(urls) > 0 {
		return urls[c.intn(len(urls))]
	}

	record, err := c.model.RandomAttachmentRecord(ctx, communityID)
	if err != nil {
		c.logger.Error("Failed to fetch random attachment record",
			zap.String("community_id", communityID), zap.Error(err))
		return ""
	}
	if record == nil || record.Custom == nil || len(record.Custom.Attachments) == 0 {
		return ""
	}
	return record.Custom.Attachments[c.intn(len(record.Custom.Attachments))]
}

func (c *Coordinator) intn(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Intn(n)
}
