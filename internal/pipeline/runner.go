package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"sma-vol-breakdown/internal/backtest"
	"sma-vol-breakdown/internal/logger"
	"sma-vol-breakdown/internal/metrics"
	"sma-vol-breakdown/internal/model"
)

// ErrAlreadyRunning is returned by Start while another run holds the lock.
var ErrAlreadyRunning = errors.New("a backtest run is already in progress")

// Locker guards against concurrent runs. Implemented in-process by MemLock
// and across instances by the Redis RunLock.
type Locker interface {
	TryLock(ctx context.Context, runID string) (bool, error)
	Unlock(ctx context.Context, runID string) error
}

// StatusStore shares the last run status between instances (optional).
type StatusStore interface {
	Save(ctx context.Context, st model.RunStatus) error
	Load(ctx context.Context) (model.RunStatus, bool, error)
}

// Job is one pipeline execution.
type Job interface {
	Run(ctx context.Context) (*Report, error)
}

// Runner starts pipeline runs in the background, one at a time.
type Runner struct {
	job     Job
	lock    Locker
	store   StatusStore
	metrics *metrics.Metrics
	log     *slog.Logger
	base    context.Context

	mu     sync.RWMutex
	status model.RunStatus
	last   *Report
	wg     sync.WaitGroup
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLocker replaces the in-process lock (e.g. with the Redis RunLock).
func WithLocker(l Locker) RunnerOption { return func(r *Runner) { r.lock = l } }

// WithStatusStore publishes status changes to s and reads peers' status from it.
func WithStatusStore(s StatusStore) RunnerOption { return func(r *Runner) { r.store = s } }

// WithMetrics records rejected runs and the in-progress gauge.
func WithMetrics(m *metrics.Metrics) RunnerOption { return func(r *Runner) { r.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RunnerOption { return func(r *Runner) { r.log = l } }

// NewRunner creates a runner. Runs inherit base, so cancelling it stops them.
func NewRunner(base context.Context, job Job, opts ...RunnerOption) *Runner {
	r := &Runner{
		job:    job,
		lock:   NewMemLock(),
		base:   base,
		log:    slog.Default(),
		status: model.RunStatus{State: model.RunStateIdle},
	}
	for _, o := range opts {
		o(r)
	}
	r.log = r.log.With(slog.String("component", "runner"))
	return r
}

// Start launches a run in the background and returns its ID, or
// ErrAlreadyRunning if a run is in flight.
func (r *Runner) Start(ctx context.Context) (string, error) {
	runID := uuid.NewString()
	ok, err := r.lock.TryLock(ctx, runID)
	if err != nil {
		return "", err
	}
	if !ok {
		if r.metrics != nil {
			r.metrics.RunsTotal.WithLabelValues("rejected").Inc()
		}
		return "", ErrAlreadyRunning
	}

	now := time.Now()
	r.setStatus(model.RunStatus{State: model.RunStateRunning, RunID: runID, StartedAt: &now})
	if r.metrics != nil {
		r.metrics.RunInProgress.Set(1)
	}

	r.wg.Add(1)
	go r.execute(runID, now)
	return runID, nil
}

func (r *Runner) execute(runID string, started time.Time) {
	defer r.wg.Done()
	defer func() {
		if err := r.lock.Unlock(context.Background(), runID); err != nil {
			r.log.Error("release run lock", slog.String("run_id", runID), slog.String("error", err.Error()))
		}
		if r.metrics != nil {
			r.metrics.RunInProgress.Set(0)
		}
	}()

	ctx := logger.WithRunID(r.base, runID)
	rep, err := r.job.Run(ctx)

	finished := time.Now()
	st := model.RunStatus{State: model.RunStateIdle, RunID: runID, StartedAt: &started, FinishedAt: &finished}
	if rep != nil {
		st.Signals = len(rep.Signals)
		st.Trades = len(rep.Outcomes)
	}
	if err != nil {
		st.Error = err.Error()
	}

	r.mu.Lock()
	if rep != nil {
		r.last = rep
	}
	r.mu.Unlock()
	r.setStatus(st)
}

func (r *Runner) setStatus(st model.RunStatus) {
	r.mu.Lock()
	r.status = st
	r.mu.Unlock()

	if r.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.store.Save(ctx, st); err != nil {
		r.log.Warn("save run status", slog.String("error", err.Error()))
	}
}

// Status returns this instance's run status. When idle locally and a status
// store is configured, the shared status is returned instead so a run started
// on another instance is visible.
func (r *Runner) Status(ctx context.Context) model.RunStatus {
	r.mu.RLock()
	local := r.status
	r.mu.RUnlock()

	if local.State == model.RunStateRunning || r.store == nil {
		return local
	}
	shared, ok, err := r.store.Load(ctx)
	if err != nil {
		r.log.Warn("load shared run status", slog.String("error", err.Error()))
		return local
	}
	if !ok {
		return local
	}
	return shared
}

// Track records the stage of the in-flight run from its events.
func (r *Runner) Track(ev model.RunEvent) {
	if ev.Type != model.EventStageStarted {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.State == model.RunStateRunning && r.status.RunID == ev.RunID {
		r.status.Stage = ev.Stage
	}
}

// LastReport returns the report of the most recent run finished by this
// instance, or nil.
func (r *Runner) LastReport() *Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// LastSummary returns the summary of the most recent local run.
func (r *Runner) LastSummary() (backtest.Summary, bool) {
	rep := r.LastReport()
	if rep == nil {
		return backtest.Summary{}, false
	}
	return rep.Summary, true
}

// Wait blocks until any in-flight run has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}
