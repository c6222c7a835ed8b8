package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mimicbot/internal/markov_client"
)

type fakeModel struct {
	generated   *markov_client.Generated
	generateErr error
	lastOpts    markov_client.GenerateOptions

	randomRecord *markov_client.TrainingRecord
	randomErr    error
	randomCalls  int
}

func (m *fakeModel) Generate(_ context.Context, _ string, opts markov_client.GenerateOptions) (*markov_client.Generated, error) {
	m.lastOpts = opts
	if m.generateErr != nil {
		return nil, m.generateErr
	}
	return m.generated, nil
}

func (m *fakeModel) RandomAttachmentRecord(_ context.Context, _ string) (*markov_client.TrainingRecord, error) {
	m.randomCalls++
	return m.randomRecord, m.randomErr
}

func newTestCoordinator(model *fakeModel) *Coordinator {
	return NewCoordinator(model, 10, 1000, zap.NewNop())
}

func TestGeneratePassesScoreFilterAndBudget(t *testing.T) {
	model := &fakeModel{generated: &markov_client.Generated{Text: "hello world", Score: 42}}
	c := newTestCoordinator(model)

	result := c.Generate(context.Background(), "community-1", Options{StartSeed: "hello"})

	require.Equal(t, "hello world", result.Text)
	require.Empty(t, result.Err)
	require.Equal(t, 1000, model.lastOpts.MaxTries)
	require.Equal(t, "hello", model.lastOpts.StartSeed)

	require.NotNil(t, model.lastOpts.Filter)
	require.False(t, model.lastOpts.Filter(&markov_client.Generated{Score: 9}))
	require.True(t, model.lastOpts.Filter(&markov_client.Generated{Score: 10}))
}

func TestGenerateExhaustedRetryBudget(t *testing.T) {
	model := &fakeModel{generateErr: markov_client.ErrNoQualifyingSentence}
	c := newTestCoordinator(model)

	result := c.Generate(context.Background(), "community-1", Options{TTS: true})

	require.Equal(t, NotEnoughDataMessage, result.Err)
	require.Empty(t, result.Text)
	require.True(t, result.TTS)
}

func TestGenerateServiceFailure(t *testing.T) {
	model := &fakeModel{generateErr: errors.New("connection refused")}
	c := newTestCoordinator(model)

	result := c.Generate(context.Background(), "community-1", Options{})

	require.Equal(t, "ERROR: connection refused", result.Err)
	require.Empty(t, result.Text)
}

func TestGenerateSanitizesMassMentions(t *testing.T) {
	model := &fakeModel{generated: &markov_client.Generated{Text: "hey @everyone and @here look", Score: 50}}
	c := newTestCoordinator(model)

	result := c.Generate(context.Background(), "community-1", Options{})

	require.NotContains(t, result.Text, "@everyone")
	require.NotContains(t, result.Text, "@here")
	// The visible text survives, only the pingable forms are defused.
	require.Contains(t, result.Text, "hey ")
	require.Contains(t, result.Text, " look")
}

func TestGenerateAttachmentFromReferences(t *testing.T) {
	model := &fakeModel{
		generated: &markov_client.Generated{
			Text:  "nice picture",
			Score: 20,
			References: []markov_client.TrainingRecord{
				{Text: "a", Custom: &markov_client.CustomData{Attachments: []string{"https://cdn.example.com/ref.png"}}},
				{Text: "b"},
			},
		},
		randomRecord: &markov_client.TrainingRecord{Custom: &markov_client.CustomData{Attachments: []string{"https://cdn.example.com/corpus.png"}}},
	}
	c := newTestCoordinator(model)

	result := c.Generate(context.Background(), "community-1", Options{})

	require.Equal(t, "https://cdn.example.com/ref.png", result.AttachmentURL)
	require.Zero(t, model.randomCalls, "reference attachments win over the corpus fallback")
}

func TestGenerateAttachmentFallsBackToCorpus(t *testing.T) {
	model := &fakeModel{
		generated:    &markov_client.Generated{Text: "nice picture", Score: 20},
		randomRecord: &markov_client.TrainingRecord{Custom: &markov_client.CustomData{Attachments: []string{"https://cdn.example.com/corpus.png"}}},
	}
	c := newTestCoordinator(model)

	result := c.Generate(context.Background(), "community-1", Options{})

	require.Equal(t, "https://cdn.example.com/corpus.png", result.AttachmentURL)
	require.Equal(t, 1, model.randomCalls)
}

func TestGenerateNoAttachmentAnywhere(t *testing.T) {
	model := &fakeModel{generated: &markov_client.Generated{Text: "plain words", Score: 20}}
	c := newTestCoordinator(model)

	result := c.Generate(context.Background(), "community-1", Options{})

	require.Empty(t, result.AttachmentURL)
	require.Equal(t, "plain words", result.Text)
}

func TestGenerateAttachmentLookupFailureCostsOnlyTheAttachment(t *testing.T) {
	model := &fakeModel{
		generated: &markov_client.Generated{Text: "still fine", Score: 20},
		randomErr: errors.New("markov service down"),
	}
	c := newTestCoordinator(model)

	result := c.Generate(context.Background(), "community-1", Options{})

	require.Empty(t, result.Err)
	require.Equal(t, "still fine", result.Text)
	require.Empty(t, result.AttachmentURL)
}

func TestGenerateDebugIsSeparateFromText(t *testing.T) {
	model := &fakeModel{generated: &markov_client.Generated{Text: "debuggable", Score: 33}}
	c := newTestCoordinator(model)

	result := c.Generate(context.Background(), "community-1", Options{Debug: true})

	require.Equal(t, "debuggable", result.Text)
	require.Contains(t, result.Debug, `"score": 33`)
	require.NotContains(t, result.Text, "33")

	plain := c.Generate(context.Background(), "community-1", Options{})
	require.Empty(t, plain.Debug)
}
