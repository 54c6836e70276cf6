package pipeline

import (
	"context"
	"sync"
)

// MemLock is a process-local Locker.
type MemLock struct {
	mu     sync.Mutex
	holder string
}

// NewMemLock returns an unlocked MemLock.
func NewMemLock() *MemLock { return &MemLock{} }

func (l *MemLock) TryLock(_ context.Context, runID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder != "" {
		return false, nil
	}
	l.holder = runID
	return true, nil
}

// Unlock releases the lock only if runID holds it.
func (l *MemLock) Unlock(_ context.Context, runID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder == runID {
		l.holder = ""
	}
	return nil
}
