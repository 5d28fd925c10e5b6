// Package services provides business logic implementations.
package services

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiterInterface defines the contract for rate limiting operations.
type RateLimiterInterface interface {
	// CheckLimit returns whether the request is allowed and, when denied,
	// how long the caller should wait before retrying.
	CheckLimit(ctx context.Context, key string, limit int, duration time.Duration) (bool, time.Duration, error)
}

// RateLimitService provides rate limiting using Redis. Counters are shared
// across instances, so the limit holds fleet-wide.
type RateLimitService struct {
	redis     *redis.Client
	keyPrefix string
}

func NewRateLimitService(redis *redis.Client) *RateLimitService {
	return &RateLimitService{
		redis:     redis,
		keyPrefix: "rate_limit:",
	}
}

func (s *RateLimitService) CheckLimit(ctx context.Context, key string, limit int, duration time.Duration) (bool, time.Duration, error) {
	rKey := s.keyPrefix + key

	pipe := s.redis.Pipeline()
	incr := pipe.Incr(ctx, rKey)
	pipe.Expire(ctx, rKey, duration)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, err
	}

	count := incr.Val()
	if count > int64(limit) {
		ttl, err := s.redis.TTL(ctx, rKey).Result()
		if err != nil {
			return false, 0, err
		}
		return false, ttl, nil
	}

	return true, 0, nil
}

// LocalRateLimiter is an in-process fallback for single-instance deployments
// and development. Counters reset on restart and are not shared.
type LocalRateLimiter struct {
	mu      sync.Mutex
	windows map[string]*localWindow
}

type localWindow struct {
	count   int
	resetAt time.Time
}

func NewLocalRateLimiter() *LocalRateLimiter {
	return &LocalRateLimiter{windows: make(map[string]*localWindow)}
}

func (l *LocalRateLimiter) CheckLimit(_ context.Context, key string, limit int, duration time.Duration) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		l.windows[key] = &localWindow{count: 1, resetAt: now.Add(duration)}
		return true, 0, nil
	}

	w.count++
	if w.count > limit {
		return false, time.Until(w.resetAt), nil
	}
	return true, 0, nil
}
