package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mimicbot/internal/collector_client"
)

// fakeGateway serves channel and thread histories from in-memory slices
// ordered newest to oldest, honoring the before-cursor contract.
type fakeGateway struct {
	channels map[string][]collector_client.Message
	threads  map[string][]collector_client.Message

	failThread      map[string]error
	failChannelCall map[int]error // keyed by 1-based channel call number

	channelCalls int
	threadCalls  int
	beforeIDs    []string
}

func (g *fakeGateway) GetMessagesBefore(_ context.Context, channelID, beforeID string, limit int) ([]collector_client.Message, error) {
	g.channelCalls++
	g.beforeIDs = append(g.beforeIDs, beforeID)
	if err, ok := g.failChannelCall[g.channelCalls]; ok {
		return nil, err
	}
	return page(g.channels[channelID], beforeID, limit), nil
}

func (g *fakeGateway) GetThreadMessagesBefore(_ context.Context, threadID, beforeID string, limit int) ([]collector_client.Message, error) {
	g.threadCalls++
	if err, ok := g.failThread[threadID]; ok {
		return nil, err
	}
	return page(g.threads[threadID], beforeID, limit), nil
}

func page(all []collector_client.Message, beforeID string, limit int) []collector_client.Message {
	start := 0
	if beforeID != "" {
		for i, m := range all {
			if m.ID == beforeID {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

// makeMessages builds n human messages newest to oldest, one minute apart.
func makeMessages(prefix string, n int) []collector_client.Message {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	msgs := make([]collector_client.Message, n)
	for i := 0; i < n; i++ {
		msgs[i] = collector_client.Message{
			ID:        fmt.Sprintf("%s-%d", prefix, i),
			ChannelID: "chan-1",
			Text:      fmt.Sprintf("message %d", i),
			CreatedAt: base.Add(-time.Duration(i) * time.Minute),
		}
	}
	return msgs
}

func newWalker(g *fakeGateway, pageSize int) *Walker {
	return NewWalker(g, pageSize, zap.NewNop())
}

func TestWalkSinglePartialPage(t *testing.T) {
	g := &fakeGateway{channels: map[string][]collector_client.Message{
		"chan-1": makeMessages("m", 30),
	}}

	pages := 0
	total, err := newWalker(g, 100).Walk(context.Background(), "chan-1", func(p Page) error {
		pages++
		require.Len(t, p.Messages, 30)
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 30, total)
	require.Equal(t, 1, pages)
	require.Equal(t, 1, g.channelCalls, "a short page must end the walk without another request")
}

func TestWalkExactPageMultiple(t *testing.T) {
	// 200 messages at page size 100: two full pages plus one empty
	// request to discover the end.
	g := &fakeGateway{channels: map[string][]collector_client.Message{
		"chan-1": makeMessages("m", 200),
	}}

	pages := 0
	total, err := newWalker(g, 100).Walk(context.Background(), "chan-1", func(p Page) error {
		pages++
		require.Len(t, p.Messages, 100)
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 200, total)
	require.Equal(t, 2, pages)
	require.Equal(t, 3, g.channelCalls)
	require.Equal(t, []string{"", "m-99", "m-199"}, g.beforeIDs)
}

func TestWalkEmptyChannel(t *testing.T) {
	g := &fakeGateway{channels: map[string][]collector_client.Message{}}

	total, err := newWalker(g, 100).Walk(context.Background(), "chan-1", func(Page) error {
		t.Fatal("onPage must not be called for an empty channel")
		return nil
	})

	require.NoError(t, err)
	require.Zero(t, total)
	require.Equal(t, 1, g.channelCalls)
}

func TestWalkMergesThreadContent(t *testing.T) {
	channel := makeMessages("m", 10)
	channel[3].ThreadID = "t-1"

	g := &fakeGateway{
		channels: map[string][]collector_client.Message{"chan-1": channel},
		threads:  map[string][]collector_client.Message{"t-1": makeMessages("t", 5)},
	}

	total, err := newWalker(g, 100).Walk(context.Background(), "chan-1", func(p Page) error {
		require.Len(t, p.Messages, 15)
		// Page timestamps describe the top-level page only.
		require.Equal(t, channel[0].CreatedAt, p.NewestCreatedAt)
		require.Equal(t, channel[9].CreatedAt, p.OldestCreatedAt)
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 15, total)
}

func TestWalkThreadFailureSkipsOnlyTheThread(t *testing.T) {
	channel := makeMessages("m", 10)
	channel[2].ThreadID = "t-broken"
	channel[7].ThreadID = "t-ok"

	g := &fakeGateway{
		channels:   map[string][]collector_client.Message{"chan-1": channel},
		threads:    map[string][]collector_client.Message{"t-ok": makeMessages("t", 4)},
		failThread: map[string]error{"t-broken": errors.New("gone")},
	}

	total, err := newWalker(g, 100).Walk(context.Background(), "chan-1", func(p Page) error {
		require.Len(t, p.Messages, 14)
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 14, total)
}

func TestWalkChannelFetchError(t *testing.T) {
	g := &fakeGateway{
		channels:        map[string][]collector_client.Message{"chan-1": makeMessages("m", 200)},
		failChannelCall: map[int]error{2: errors.New("collector down")},
	}

	total, err := newWalker(g, 100).Walk(context.Background(), "chan-1", func(Page) error {
		return nil
	})

	require.Error(t, err)
	require.True(t, IsFetchError(err))
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "chan-1", fe.ChannelID)
	require.Equal(t, 100, total, "the first page's count survives the failure")
}

func TestWalkOnPageErrorPropagatesAsIs(t *testing.T) {
	g := &fakeGateway{channels: map[string][]collector_client.Message{
		"chan-1": makeMessages("m", 10),
	}}

	sentinel := errors.New("model rejected batch")
	_, err := newWalker(g, 100).Walk(context.Background(), "chan-1", func(Page) error {
		return sentinel
	})

	require.ErrorIs(t, err, sentinel)
	require.False(t, IsFetchError(err))
}

func TestWalkCursorAdvancesPastIneligibleMessages(t *testing.T) {
	// The last message of the first page is a bot message: filtered from
	// the page, but still the pagination cursor.
	channel := makeMessages("m", 150)
	channel[99].AuthorIsBot = true

	g := &fakeGateway{channels: map[string][]collector_client.Message{"chan-1": channel}}

	var sizes []int
	total, err := newWalker(g, 100).Walk(context.Background(), "chan-1", func(p Page) error {
		sizes = append(sizes, len(p.Messages))
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, []int{99, 50}, sizes)
	require.Equal(t, 149, total)
	require.Equal(t, []string{"", "m-99"}, g.beforeIDs)
}
