package services

import (
	"context"
	"log/slog"
	"plugindir/internal/cache"
	"strconv"
	"time"
)

// RateLimitKey builds the counter key for one action by one identity.
func RateLimitKey(action, identity string) string {
	return cache.Key("ratelimit", action, identity)
}

// RateLimiter is a fixed-window counter over the cache store.
//
// The window starts at the first hit and is not sliding, so up to 2*limit calls can land
// around a window boundary. INCR and EXPIRE are separate commands, so two racing first hits can
// both set the TTL.
type RateLimiter struct {
	store cache.Store
}

func NewRateLimiter(store cache.Store) *RateLimiter {
	return &RateLimiter{store: store}
}

// Allow consumes one unit under key unless limit is already reached.
// A rejected call does not touch the counter. Cache failures are returned to the caller,
// which decides whether to fail open.
func (l *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	raw, ok, err := l.store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if ok {
		if n, err := strconv.Atoi(raw); err == nil && n >= limit {
			return false, nil
		}
	}

	n, err := l.store.Incr(ctx, key)
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := l.store.Expire(ctx, key, window); err != nil {
			// A counter without TTL would lock the identity out for good.
			slog.Warn("Rate limit window not set, dropping counter", "key", key, "error", err)
			_ = l.store.Del(ctx, key)
		}
	}
	return true, nil
}
