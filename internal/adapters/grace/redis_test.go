package grace

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisTracker(t *testing.T) (*RedisTracker, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisTracker(client), srv
}

func TestRedisTrackerAllowThenSuppress(t *testing.T) {
	tracker, _ := newRedisTracker(t)
	grace := 5 * time.Minute

	allowed, err := tracker.Allow(context.Background(), "deviation:1", time.Now(), grace)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Fatal("first notification must be allowed")
	}

	allowed, err = tracker.Allow(context.Background(), "deviation:1", time.Now(), grace)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Error("second notification inside the TTL must be suppressed")
	}
}

func TestRedisTrackerExpiryReopens(t *testing.T) {
	tracker, srv := newRedisTracker(t)
	grace := 5 * time.Minute

	if allowed, _ := tracker.Allow(context.Background(), "deviation:1", time.Now(), grace); !allowed {
		t.Fatal("first notification must be allowed")
	}

	srv.FastForward(grace)

	allowed, err := tracker.Allow(context.Background(), "deviation:1", time.Now(), grace)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Error("expired key must allow the next notification")
	}
}

func TestRedisTrackerKeysAreIndependent(t *testing.T) {
	tracker, _ := newRedisTracker(t)
	grace := 5 * time.Minute

	if allowed, _ := tracker.Allow(context.Background(), "deviation:1", time.Now(), grace); !allowed {
		t.Fatal("first key must be allowed")
	}
	if allowed, _ := tracker.Allow(context.Background(), "deviation:2", time.Now(), grace); !allowed {
		t.Error("a different key must not be throttled")
	}
}
