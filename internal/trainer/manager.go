package trainer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrRunInFlight is returned when a training run is already active for the
// community.
var ErrRunInFlight = errors.New("a training run is already in progress for this community")

// ErrCommunityBusy is returned when the community's model is locked by a
// training run and a mutation/generation cannot proceed.
var ErrCommunityBusy = errors.New("the community's model is busy")

// Manager serializes model operations per community: at most one training
// run and one mutation/generation in flight per community. Different
// communities never block one another.
type Manager struct {
	trainer *Trainer
	logger  *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	runs  map[string]*Run
}

func NewManager(trainer *Trainer, logger *zap.Logger) *Manager {
	return &Manager{
		trainer: trainer,
		logger:  logger,
		locks:   make(map[string]*sync.Mutex),
		runs:    make(map[string]*Run),
	}
}

// Run tracks one training run's lifecycle and progress.
type Run struct {
	ID          string
	CommunityID string
	StartedAt   time.Time

	mu      sync.Mutex
	state   ProgressState
	done    bool
	summary string
	runErr  error
	sink    ProgressSink
	doneCh  chan struct{}
}

// RunSnapshot is a point-in-time view of a run, safe to serialize.
type RunSnapshot struct {
	RunID       string        `json:"run_id"`
	CommunityID string        `json:"community_id"`
	StartedAt   time.Time     `json:"started_at"`
	Done        bool          `json:"done"`
	Summary     string        `json:"summary,omitempty"`
	Error       string        `json:"error,omitempty"`
	State       ProgressState `json:"state"`
}

// Update implements ProgressSink; it records the latest state and forwards
// it to the caller-provided sink, if any.
func (r *Run) Update(state ProgressState) {
	r.mu.Lock()
	r.state = state
	sink := r.sink
	r.mu.Unlock()
	if sink != nil {
		sink.Update(state)
	}
}

// Done is closed when the run finishes.
func (r *Run) Done() <-chan struct{} { return r.doneCh }

// Snapshot returns the run's current state.
func (r *Run) Snapshot() RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := RunSnapshot{
		RunID:       r.ID,
		CommunityID: r.CommunityID,
		StartedAt:   r.StartedAt,
		Done:        r.done,
		Summary:     r.summary,
		State:       r.state,
	}
	if r.runErr != nil {
		snap.Error = r.runErr.Error()
	}
	return snap
}

func (r *Run) finish(summary string, err error) {
	r.mu.Lock()
	r.done = true
	r.summary = summary
	r.runErr = err
	r.mu.Unlock()
	close(r.doneCh)
}

// Summary blocks until the run finishes and returns its outcome.
func (r *Run) Summary() (string, error) {
	<-r.doneCh
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary, r.runErr
}

func (m *Manager) communityLock(communityID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[communityID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[communityID] = lock
	}
	return lock
}

// TryAcquire takes the community's model lock without blocking, for live
// ingestion and generation. It fails while a training run holds the lock.
func (m *Manager) TryAcquire(communityID string) (release func(), ok bool) {
	lock := m.communityLock(communityID)
	if !lock.TryLock() {
		return nil, false
	}
	return lock.Unlock, true
}

// Start launches a training run for the community in the background. The
// community's model lock is held for the duration of the run. The sink, if
// non-nil, receives throttled progress updates.
func (m *Manager) Start(ctx context.Context, communityID string, sink ProgressSink) (*Run, error) {
	lock := m.communityLock(communityID)
	if !lock.TryLock() {
		return nil, ErrRunInFlight
	}

	run := &Run{
		ID:          uuid.NewString(),
		CommunityID: communityID,
		StartedAt:   time.Now(),
		sink:        sink,
		doneCh:      make(chan struct{}),
	}

	m.mu.Lock()
	m.runs[communityID] = run
	m.mu.Unlock()

	m.logger.Info("Training run started",
		zap.String("run_id", run.ID),
		zap.String("community_id", communityID))

	go func() {
		defer lock.Unlock()
		summary, err := m.trainer.TrainCommunity(ctx, communityID, run)
		if err != nil {
			m.logger.Error("Training run failed",
				zap.String("run_id", run.ID),
				zap.String("community_id", communityID),
				zap.Error(err))
		}
		run.finish(summary, err)
	}()

	return run, nil
}

// Progress returns the latest (possibly finished) run for the community.
func (m *Manager) Progress(communityID string) (RunSnapshot, bool) {
	m.mu.Lock()
	run, ok := m.runs[communityID]
	m.mu.Unlock()
	if !ok {
		return RunSnapshot{}, false
	}
	return run.Snapshot(), true
}
