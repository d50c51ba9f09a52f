package grace

import (
	"context"
	"sync"
	"time"
)

// MemoryTracker is the single-instance grace-period tracker: a keyed
// map of last-notified timestamps with a periodic sweep to bound
// memory. Deploying more than one service instance silently weakens
// the suppression guarantee to per-instance; use RedisTracker there.
type MemoryTracker struct {
	mu       sync.Mutex
	last     map[string]time.Time
	maxAge   time.Duration
	stopOnce sync.Once
	stop     chan struct{}
}

func NewMemoryTracker(maxAge, sweepEvery time.Duration) *MemoryTracker {
	t := &MemoryTracker{
		last:   make(map[string]time.Time),
		maxAge: maxAge,
		stop:   make(chan struct{}),
	}
	go t.sweep(sweepEvery)
	return t
}

// Allow returns true and records now when no prior entry exists or the
// grace window has elapsed; otherwise false without updating.
func (t *MemoryTracker) Allow(ctx context.Context, key string, now time.Time, grace time.Duration) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.last[key]; ok && now.Sub(prev) < grace {
		return false, nil
	}

	t.last[key] = now
	return true, nil
}

func (t *MemoryTracker) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-t.maxAge)
			t.mu.Lock()
			for k, v := range t.last {
				if v.Before(cutoff) {
					delete(t.last, k)
				}
			}
			t.mu.Unlock()
		}
	}
}

func (t *MemoryTracker) Close() {
	t.stopOnce.Do(func() { close(t.stop) })
}
