package cache

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryingStore retries ErrUnavailable failures with jittered exponential backoff.
// Anything else (a miss, a malformed value) is returned at once.
type retryingStore struct {
	next     Store
	attempts uint64
	initial  time.Duration
}

// WithRetry wraps s so each call is retried up to attempts extra times.
// attempts == 0 returns s unchanged.
func WithRetry(s Store, attempts int) Store {
	if attempts <= 0 {
		return s
	}
	return &retryingStore{next: s, attempts: uint64(attempts), initial: 20 * time.Millisecond}
}

func (r *retryingStore) do(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initial
	b.MaxInterval = 10 * r.initial
	b.RandomizationFactor = 0.5

	return backoff.Retry(func() error {
		err := op()
		if err != nil && !errors.Is(err, ErrUnavailable) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, r.attempts), ctx))
}

func (r *retryingStore) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	err = r.do(ctx, func() error {
		var e error
		value, ok, e = r.next.Get(ctx, key)
		return e
	})
	return value, ok, err
}

func (r *retryingStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.do(ctx, func() error { return r.next.Set(ctx, key, value, ttl) })
}

func (r *retryingStore) Exists(ctx context.Context, key string) (found bool, err error) {
	err = r.do(ctx, func() error {
		var e error
		found, e = r.next.Exists(ctx, key)
		return e
	})
	return found, err
}

// Incr is not idempotent: a request that reached the server but timed out on the way back
// would be counted twice, turning a first hit into a second one. It is never retried.
func (r *retryingStore) Incr(ctx context.Context, key string) (int64, error) {
	return r.next.Incr(ctx, key)
}

func (r *retryingStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.do(ctx, func() error { return r.next.Expire(ctx, key, ttl) })
}

func (r *retryingStore) Del(ctx context.Context, key string) error {
	return r.do(ctx, func() error { return r.next.Del(ctx, key) })
}

func (r *retryingStore) Ping(ctx context.Context) error {
	return r.do(ctx, func() error { return r.next.Ping(ctx) })
}
