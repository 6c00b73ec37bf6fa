// Package cache is the transient key-value tier: per-key TTL, atomic INCR, nothing durable.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrUnavailable marks a failure of the cache tier itself (network, timeout, closed client).
// Callers treat it as soft: they degrade the feature instead of failing the request.
var ErrUnavailable = errors.New("cache unavailable")

// Store is the capability surface every backend implements.
// Get reports a miss with ok == false and a nil error.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

var keyEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// Key joins parts with ':' the way every key in this repo is laid out. '%' and ':' inside a
// part are percent-encoded, so distinct part lists never produce the same key.
func Key(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = keyEscaper.Replace(p)
	}
	return strings.Join(escaped, ":")
}
