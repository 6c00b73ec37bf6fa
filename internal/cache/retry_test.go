package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// flakyStore fails the first n calls with ErrUnavailable, then delegates.
type flakyStore struct {
	Store
	failures int
	calls    int
}

func (f *flakyStore) Get(ctx context.Context, key string) (string, bool, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", false, fmt.Errorf("%w: boom", ErrUnavailable)
	}
	return f.Store.Get(ctx, key)
}

func (f *flakyStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.calls++
	if value == "bad" {
		return errors.New("value rejected")
	}
	return f.Store.Set(ctx, key, value, ttl)
}

func (f *flakyStore) Incr(ctx context.Context, key string) (int64, error) {
	f.calls++
	if f.calls <= f.failures {
		// The command landed but the reply was lost.
		_, _ = f.Store.Incr(ctx, key)
		return 0, fmt.Errorf("%w: i/o timeout", ErrUnavailable)
	}
	return f.Store.Incr(ctx, key)
}

func TestWithRetry_RecoversTransientFailures(t *testing.T) {
	ctx := context.Background()
	mem, err := NewMemoryStore(8)
	require.NoError(t, err)
	require.NoError(t, mem.Set(ctx, "k", "v", time.Minute))

	flaky := &flakyStore{Store: mem, failures: 2}
	s := WithRetry(flaky, 2).(*retryingStore)
	s.initial = time.Millisecond

	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)
	require.Equal(t, 3, flaky.calls)
}

func TestWithRetry_GivesUp(t *testing.T) {
	mem, err := NewMemoryStore(8)
	require.NoError(t, err)

	flaky := &flakyStore{Store: mem, failures: 10}
	s := WithRetry(flaky, 2).(*retryingStore)
	s.initial = time.Millisecond

	_, _, err = s.Get(context.Background(), "k")
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, 3, flaky.calls)
}

func TestWithRetry_DoesNotRetryPermanentErrors(t *testing.T) {
	mem, err := NewMemoryStore(8)
	require.NoError(t, err)

	flaky := &flakyStore{Store: mem}
	s := WithRetry(flaky, 3)

	err = s.Set(context.Background(), "k", "bad", time.Minute)
	require.Error(t, err)
	require.Equal(t, 1, flaky.calls)
}

func TestWithRetry_IncrIsNotRetried(t *testing.T) {
	ctx := context.Background()
	mem, err := NewMemoryStore(8)
	require.NoError(t, err)

	flaky := &flakyStore{Store: mem, failures: 1}
	s := WithRetry(flaky, 3).(*retryingStore)
	s.initial = time.Millisecond

	_, err = s.Incr(ctx, "view:u1:plugin-42")
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, 1, flaky.calls)

	// A retry would have answered 2 for what was the caller's first hit.
	n, err := s.Incr(ctx, "view:u1:plugin-42")
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestWithRetry_ZeroAttemptsIsPassthrough(t *testing.T) {
	mem, err := NewMemoryStore(8)
	require.NoError(t, err)
	require.Same(t, Store(mem), WithRetry(mem, 0))
}
