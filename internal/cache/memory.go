package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// memoryItem 包装缓存数据和过期时间，零值 ExpiresAt 表示永不过期
type memoryItem struct {
	Value     string
	ExpiresAt time.Time
}

// MemoryStore is a single-process Store on top of an LRU. Least recently used keys are
// evicted once the capacity is reached, so it only suits one instance or local development.
type MemoryStore struct {
	mu  sync.Mutex
	lru *lru.Cache[string, memoryItem]
	now func() time.Time
}

// NewMemoryStore creates an LRU-backed store holding at most size keys.
func NewMemoryStore(size int) (*MemoryStore, error) {
	l, err := lru.New[string, memoryItem](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &MemoryStore{lru: l, now: time.Now}, nil
}

// WithClock swaps the time source, used by tests to move past TTLs.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

// load returns a live item, dropping it if expired. Callers hold s.mu.
func (s *MemoryStore) load(key string) (memoryItem, bool) {
	item, ok := s.lru.Get(key)
	if !ok {
		return memoryItem{}, false
	}
	if !item.ExpiresAt.IsZero() && !s.now().Before(item.ExpiresAt) {
		s.lru.Remove(key)
		return memoryItem{}, false
	}
	return item, true
}

func (s *MemoryStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.load(key)
	if !ok {
		return "", false, nil
	}
	return item.Value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lru.Add(key, memoryItem{Value: value, ExpiresAt: s.expiry(ttl)})
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.load(key)
	return ok, nil
}

// Incr behaves like Redis INCR: a missing key starts at 0 and gets no TTL.
func (s *MemoryStore) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.load(key)
	var n int64
	if ok {
		v, err := strconv.ParseInt(item.Value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value at %q is not an integer", key)
		}
		n = v
	}
	n++
	item.Value = strconv.FormatInt(n, 10)
	s.lru.Add(key, item)
	return n, nil
}

func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.load(key)
	if !ok {
		return nil
	}
	if ttl <= 0 {
		s.lru.Remove(key)
		return nil
	}
	item.ExpiresAt = s.expiry(ttl)
	s.lru.Add(key, item)
	return nil
}

func (s *MemoryStore) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lru.Remove(key)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
