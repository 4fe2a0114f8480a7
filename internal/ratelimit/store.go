package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store counts hits per key inside a fixed window.
type Store interface {
	// Increment records one hit and returns the count so far in the current
	// window and the time left until the window resets.
	Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error)
}

// RedisStore keeps counters in Redis so limits hold across replicas. INCR is
// atomic on the server, so concurrent replicas never lose a hit.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps client. Keys are namespaced with prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	key = fmt.Sprintf("%s:%s", s.prefix, key)
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("incr %s: %w", key, err)
	}
	if count == 1 {
		if err := s.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("pexpire %s: %w", key, err)
		}
		return 1, window, nil
	}

	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("pttl %s: %w", key, err)
	}
	if ttl < 0 {
		// counter lost its expiry; restart the window
		if err := s.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("pexpire %s: %w", key, err)
		}
		ttl = window
	}
	return int(count), ttl, nil
}
