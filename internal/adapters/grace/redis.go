package grace

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTracker is the multi-instance grace-period tracker. SET NX with
// a TTL equal to the grace window makes the allow decision atomic
// across instances, and redis expiry replaces the sweep.
type RedisTracker struct {
	client *redis.Client
}

func NewRedisTracker(client *redis.Client) *RedisTracker {
	return &RedisTracker{client: client}
}

func (t *RedisTracker) Allow(ctx context.Context, key string, now time.Time, grace time.Duration) (bool, error) {
	redisKey := "grace:" + key
	ok, err := t.client.SetNX(ctx, redisKey, now.Unix(), grace).Result()
	if err != nil {
		return false, fmt.Errorf("grace tracker: setnx %s: %w", redisKey, err)
	}
	return ok, nil
}
