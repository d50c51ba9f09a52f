package delivery

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when a call is rejected locally without a
// network attempt. Callers can distinguish it from attempted-and-failed.
var ErrCircuitOpen = errors.New("circuit open")

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// Breaker is a per-destination circuit breaker. CLOSED permits calls;
// Threshold consecutive failures trip it OPEN for Cooldown, during
// which calls fail fast with ErrCircuitOpen; after the cooldown one
// trial call is let through (HALF_OPEN) — success closes the breaker,
// failure reopens it immediately.
type Breaker struct {
	mu        sync.Mutex
	state     breakerState
	failures  int
	openedAt  time.Time
	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Allow reports whether a call may proceed right now.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return nil
	case stateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		// Cooldown elapsed: admit exactly one trial call.
		b.state = stateHalfOpen
		return nil
	case stateHalfOpen:
		// A trial is already in flight.
		return ErrCircuitOpen
	}
	return nil
}

func (b *Breaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = stateClosed
	b.failures = 0
}

func (b *Breaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		// Failed trial reopens immediately.
		b.state = stateOpen
		b.openedAt = b.now()
		return
	}

	b.failures++
	if b.failures >= b.threshold {
		b.state = stateOpen
		b.openedAt = b.now()
	}
}

// BreakerGroup hands out one Breaker per destination URL so every
// outbound integration shares the same implementation.
type BreakerGroup struct {
	mu        sync.Mutex
	breakers  map[string]*Breaker
	threshold int
	cooldown  time.Duration
}

func NewBreakerGroup(threshold int, cooldown time.Duration) *BreakerGroup {
	return &BreakerGroup{
		breakers:  make(map[string]*Breaker),
		threshold: threshold,
		cooldown:  cooldown,
	}
}

func (g *BreakerGroup) For(destination string) *Breaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.breakers[destination]
	if !ok {
		b = NewBreaker(g.threshold, g.cooldown)
		g.breakers[destination] = b
	}
	return b
}
