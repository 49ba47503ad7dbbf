package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Decision is the outcome of one counted attempt.
type Decision struct {
	Allowed    bool
	Count      int64
	Limit      int64
	Remaining  int64
	RetryAfter time.Duration
}

// FixedWindowLimiter counts attempts per key in Redis. The first attempt in a
// window creates the counter and sets its expiry; every later attempt,
// allowed or not, increments it.
type FixedWindowLimiter struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

func NewFixedWindowLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{client: client, prefix: prefix, limit: int64(limit), window: window}
}

func (l *FixedWindowLimiter) key(id string) string {
	return fmt.Sprintf("%s:%s", l.prefix, id)
}

// Allow records an attempt for id and reports whether it fits the window.
func (l *FixedWindowLimiter) Allow(ctx context.Context, id string) (Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	key := l.key(id)
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: incr %s: %v", ErrCacheDown, key, err)
	}

	ttl := l.window
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("%w: expire %s: %v", ErrCacheDown, key, err)
		}
	} else {
		ttl, err = l.client.TTL(ctx, key).Result()
		if err != nil {
			return Decision{}, fmt.Errorf("%w: ttl %s: %v", ErrCacheDown, key, err)
		}
		// A counter left without expiry would block the id forever.
		if ttl < 0 {
			if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
				return Decision{}, fmt.Errorf("%w: expire %s: %v", ErrCacheDown, key, err)
			}
			ttl = l.window
		}
	}

	d := Decision{
		Allowed: count <= l.limit,
		Count:   count,
		Limit:   l.limit,
	}
	if d.Allowed {
		d.Remaining = l.limit - count
	} else {
		d.RetryAfter = ttl
	}
	return d, nil
}

// Reset clears the counter for id.
func (l *FixedWindowLimiter) Reset(ctx context.Context, id string) error {
	return l.client.Del(ctx, l.key(id)).Err()
}
