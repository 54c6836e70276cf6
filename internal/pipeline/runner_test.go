package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sma-vol-breakdown/internal/backtest"
	"sma-vol-breakdown/internal/logger"
	"sma-vol-breakdown/internal/metrics"
	"sma-vol-breakdown/internal/model"
)

// blockingJob runs until release is closed.
type blockingJob struct {
	started chan string
	release chan struct{}
	err     error
}

func newBlockingJob() *blockingJob {
	return &blockingJob{started: make(chan string, 1), release: make(chan struct{})}
}

func (j *blockingJob) Run(ctx context.Context) (*Report, error) {
	j.started <- logger.RunID(ctx)
	select {
	case <-j.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if j.err != nil {
		return nil, j.err
	}
	return &Report{
		RunID:    logger.RunID(ctx),
		Signals:  make([]model.Signal, 2),
		Outcomes: make([]model.TradeOutcome, 1),
		Summary:  backtest.Summary{TotalTrades: 1, Wins: 1},
	}, nil
}

type memStatus struct {
	mu    sync.Mutex
	st    model.RunStatus
	saved int
}

func (m *memStatus) Save(_ context.Context, st model.RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = st
	m.saved++
	return nil
}

func (m *memStatus) Load(context.Context) (model.RunStatus, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st, m.saved > 0, nil
}

func waitStarted(t *testing.T, j *blockingJob) string {
	t.Helper()
	select {
	case id := <-j.started:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("job did not start")
		return ""
	}
}

func TestRunner_RejectsConcurrentStart(t *testing.T) {
	job := newBlockingJob()
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	r := NewRunner(context.Background(), job, WithMetrics(m))

	id, err := r.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, waitStarted(t, job), "run ID is propagated through the context")

	st := r.Status(context.Background())
	assert.Equal(t, model.RunStateRunning, st.State)
	assert.Equal(t, id, st.RunID)
	require.NotNil(t, st.StartedAt)
	assert.Nil(t, st.FinishedAt)

	_, err = r.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(job.release)
	r.Wait()

	st = r.Status(context.Background())
	assert.Equal(t, model.RunStateIdle, st.State)
	assert.Equal(t, id, st.RunID)
	assert.Equal(t, 2, st.Signals)
	assert.Equal(t, 1, st.Trades)
	assert.Empty(t, st.Error)
	require.NotNil(t, st.FinishedAt)

	sum, ok := r.LastSummary()
	require.True(t, ok)
	assert.Equal(t, 1, sum.Wins)

	// The lock is free again.
	job2 := newBlockingJob()
	r.job = job2
	_, err = r.Start(context.Background())
	require.NoError(t, err)
	waitStarted(t, job2)
	close(job2.release)
	r.Wait()
}

func TestRunner_RecordsFailure(t *testing.T) {
	job := newBlockingJob()
	job.err = errors.New("fetch stage: boom")
	r := NewRunner(context.Background(), job)

	_, err := r.Start(context.Background())
	require.NoError(t, err)
	waitStarted(t, job)
	close(job.release)
	r.Wait()

	st := r.Status(context.Background())
	assert.Equal(t, model.RunStateIdle, st.State)
	assert.Equal(t, "fetch stage: boom", st.Error)
	assert.Nil(t, r.LastReport())
	_, ok := r.LastSummary()
	assert.False(t, ok)
}

func TestRunner_IdleBeforeFirstRun(t *testing.T) {
	r := NewRunner(context.Background(), newBlockingJob())
	st := r.Status(context.Background())
	assert.Equal(t, model.RunStateIdle, st.State)
	assert.Empty(t, st.RunID)
	assert.Nil(t, r.LastReport())
}

func TestRunner_SharedStatus(t *testing.T) {
	shared := &memStatus{}
	job := newBlockingJob()
	r := NewRunner(context.Background(), job, WithStatusStore(shared))

	id, err := r.Start(context.Background())
	require.NoError(t, err)
	waitStarted(t, job)
	assert.Equal(t, model.RunStateRunning, shared.st.State)

	close(job.release)
	r.Wait()
	assert.Equal(t, model.RunStateIdle, shared.st.State)
	assert.Equal(t, id, shared.st.RunID)

	// A peer's run is visible through the shared store while idle here.
	now := time.Now()
	require.NoError(t, shared.Save(context.Background(), model.RunStatus{
		State: model.RunStateRunning, RunID: "peer", StartedAt: &now,
	}))
	st := r.Status(context.Background())
	assert.Equal(t, "peer", st.RunID)
	assert.Equal(t, model.RunStateRunning, st.State)
}

func TestRunner_BaseContextCancelsRun(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	job := newBlockingJob()
	r := NewRunner(base, job)

	_, err := r.Start(context.Background())
	require.NoError(t, err)
	waitStarted(t, job)
	cancel()
	r.Wait()

	assert.Equal(t, context.Canceled.Error(), r.Status(context.Background()).Error)
}

func TestRunner_SharedLockAcrossRunners(t *testing.T) {
	lock := NewMemLock()
	j1, j2 := newBlockingJob(), newBlockingJob()
	r1 := NewRunner(context.Background(), j1, WithLocker(lock))
	r2 := NewRunner(context.Background(), j2, WithLocker(lock))

	_, err := r1.Start(context.Background())
	require.NoError(t, err)
	waitStarted(t, j1)

	_, err = r2.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(j1.release)
	r1.Wait()
}

func TestRunner_TrackStage(t *testing.T) {
	job := newBlockingJob()
	r := NewRunner(context.Background(), job)

	id, err := r.Start(context.Background())
	require.NoError(t, err)
	waitStarted(t, job)

	r.Track(model.RunEvent{Type: model.EventStageStarted, RunID: "other", Stage: StageFetch})
	assert.Empty(t, r.Status(context.Background()).Stage)

	r.Track(model.RunEvent{Type: model.EventStageStarted, RunID: id, Stage: StageSignals})
	r.Track(model.RunEvent{Type: model.EventStageFinished, RunID: id, Stage: StageSignals})
	assert.Equal(t, StageSignals, r.Status(context.Background()).Stage)

	close(job.release)
	r.Wait()
	assert.Empty(t, r.Status(context.Background()).Stage)
}

func TestMemLock(t *testing.T) {
	ctx := context.Background()
	l := NewMemLock()

	ok, err := l.TryLock(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.TryLock(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Unlock(ctx, "b"), "non-holder unlock is a no-op")
	ok, _ = l.TryLock(ctx, "b")
	assert.False(t, ok)

	require.NoError(t, l.Unlock(ctx, "a"))
	ok, _ = l.TryLock(ctx, "b")
	assert.True(t, ok)
}
