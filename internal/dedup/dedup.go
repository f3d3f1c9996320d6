// Package dedup remembers which destination addresses a campaign run has
// already attempted. The scope of a set is exactly one run.
package dedup

import (
	"context"
	"sync"
	"time"
)

type Tracker interface {
	// MarkAttempted records address for runID and reports whether it was new.
	MarkAttempted(ctx context.Context, runID, address string) (bool, error)
	// Forget drops the run's set.
	Forget(ctx context.Context, runID string) error
}

// MemoryTracker keeps one set per run in process memory. Like the redis
// keys, a set nobody touched for TTL is dropped.
type MemoryTracker struct {
	TTL time.Duration
	now func() time.Time

	mu   sync.Mutex
	runs map[string]*memorySet
}

type memorySet struct {
	addresses map[string]struct{}
	touched   time.Time
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		TTL:  DefaultTTL,
		now:  time.Now,
		runs: make(map[string]*memorySet),
	}
}

func (m *MemoryTracker) MarkAttempted(_ context.Context, runID, address string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.expireLocked(now)

	set, ok := m.runs[runID]
	if !ok {
		set = &memorySet{addresses: make(map[string]struct{})}
		m.runs[runID] = set
	}
	set.touched = now
	if _, seen := set.addresses[address]; seen {
		return false, nil
	}
	set.addresses[address] = struct{}{}
	return true, nil
}

func (m *MemoryTracker) Forget(_ context.Context, runID string) error {
	m.mu.Lock()
	delete(m.runs, runID)
	m.mu.Unlock()
	return nil
}

// Runs is the number of sets currently held.
func (m *MemoryTracker) Runs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(m.now())
	return len(m.runs)
}

func (m *MemoryTracker) expireLocked(now time.Time) {
	if m.TTL <= 0 {
		return
	}
	for id, set := range m.runs {
		if now.Sub(set.touched) > m.TTL {
			delete(m.runs, id)
		}
	}
}

var _ Tracker = (*MemoryTracker)(nil)
