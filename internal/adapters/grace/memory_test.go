package grace

import (
	"context"
	"testing"
	"time"
)

func TestMemoryTrackerAllowSuppressAllow(t *testing.T) {
	tracker := NewMemoryTracker(time.Hour, time.Hour)
	defer tracker.Close()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	grace := 5 * time.Minute

	allowed, err := tracker.Allow(context.Background(), "deviation:1", base, grace)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Fatal("first notification must be allowed")
	}

	allowed, _ = tracker.Allow(context.Background(), "deviation:1", base.Add(2*time.Minute), grace)
	if allowed {
		t.Error("notification inside the grace window must be suppressed")
	}

	allowed, _ = tracker.Allow(context.Background(), "deviation:1", base.Add(grace), grace)
	if !allowed {
		t.Error("notification at the end of the grace window must be allowed")
	}

	// The window restarts from the second allowed notification, not
	// from the suppressed attempt.
	allowed, _ = tracker.Allow(context.Background(), "deviation:1", base.Add(grace).Add(time.Minute), grace)
	if allowed {
		t.Error("window must restart from the last allowed notification")
	}
}

func TestMemoryTrackerKeysAreIndependent(t *testing.T) {
	tracker := NewMemoryTracker(time.Hour, time.Hour)
	defer tracker.Close()

	now := time.Now()
	grace := 5 * time.Minute

	if allowed, _ := tracker.Allow(context.Background(), "deviation:1", now, grace); !allowed {
		t.Fatal("first key must be allowed")
	}
	if allowed, _ := tracker.Allow(context.Background(), "deviation:2", now, grace); !allowed {
		t.Error("a different shipment must not be throttled by the first")
	}
}

func TestMemoryTrackerSuppressionDoesNotExtendWindow(t *testing.T) {
	tracker := NewMemoryTracker(time.Hour, time.Hour)
	defer tracker.Close()

	base := time.Now()
	grace := 5 * time.Minute

	tracker.Allow(context.Background(), "deviation:1", base, grace)
	for i := 1; i <= 4; i++ {
		allowed, _ := tracker.Allow(context.Background(), "deviation:1", base.Add(time.Duration(i)*time.Minute), grace)
		if allowed {
			t.Fatalf("attempt at t+%dm must be suppressed", i)
		}
	}

	allowed, _ := tracker.Allow(context.Background(), "deviation:1", base.Add(grace), grace)
	if !allowed {
		t.Error("repeated suppressed attempts must not push the window out")
	}
}
