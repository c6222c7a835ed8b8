package trainer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mimicbot/internal/history"
)

// blockingWalker parks every walk until release is closed.
type blockingWalker struct {
	started chan struct{}
	release chan struct{}
}

func (w *blockingWalker) Walk(ctx context.Context, _ string, _ func(history.Page) error) (int, error) {
	close(w.started)
	select {
	case <-w.release:
		return 0, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func newBlockedManager(t *testing.T) (*Manager, *blockingWalker) {
	t.Helper()
	walker := &blockingWalker{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	tr := NewTrainer(walker, &fakeModel{}, &fakeChannelStore{channels: listening("chan-1")}, &fakeInfoFetcher{}, 1000, zap.NewNop())
	return NewManager(tr, zap.NewNop()), walker
}

func TestManagerRejectsConcurrentRuns(t *testing.T) {
	manager, walker := newBlockedManager(t)

	run, err := manager.Start(context.Background(), "community-1", nil)
	require.NoError(t, err)

	select {
	case <-walker.started:
	case <-time.After(time.Second):
		t.Fatal("training run never started")
	}

	_, err = manager.Start(context.Background(), "community-1", nil)
	require.ErrorIs(t, err, ErrRunInFlight)

	// Live ingestion and generation must also be locked out.
	_, ok := manager.TryAcquire("community-1")
	require.False(t, ok)

	close(walker.release)
	summary, err := run.Summary()
	require.NoError(t, err)
	require.Equal(t, "Trained from 0 past human authored messages.", summary)

	release, ok := manager.TryAcquire("community-1")
	require.True(t, ok)
	release()
}

func TestManagerCommunitiesAreIndependent(t *testing.T) {
	manager, walker := newBlockedManager(t)

	run, err := manager.Start(context.Background(), "community-1", nil)
	require.NoError(t, err)

	select {
	case <-walker.started:
	case <-time.After(time.Second):
		t.Fatal("training run never started")
	}

	release, ok := manager.TryAcquire("community-2")
	require.True(t, ok, "another community must not be blocked")
	release()

	close(walker.release)
	_, err = run.Summary()
	require.NoError(t, err)
}

func TestManagerProgressSnapshot(t *testing.T) {
	manager, walker := newBlockedManager(t)

	_, ok := manager.Progress("community-1")
	require.False(t, ok, "no run recorded yet")

	run, err := manager.Start(context.Background(), "community-1", nil)
	require.NoError(t, err)
	<-walker.started

	snap, ok := manager.Progress("community-1")
	require.True(t, ok)
	require.Equal(t, run.ID, snap.RunID)
	require.False(t, snap.Done)

	close(walker.release)
	<-run.Done()

	snap, ok = manager.Progress("community-1")
	require.True(t, ok)
	require.True(t, snap.Done)
	require.Equal(t, "Trained from 0 past human authored messages.", snap.Summary)
}

func TestRunUpdateForwardsToSink(t *testing.T) {
	sink := &recordingSink{}
	run := &Run{sink: sink, doneCh: make(chan struct{})}

	run.Update(ProgressState{MessagesCount: 1000})

	require.Len(t, sink.states, 1)
	require.Equal(t, 1000, sink.states[0].MessagesCount)
	require.Equal(t, 1000, run.Snapshot().State.MessagesCount)
}
