package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wordfall/leaderboard/pkg/metrics"
)

const defaultSweepInterval = time.Minute

// entry holds a value and its expiry deadline. A zero deadline never
// expires.
type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemStore implements Store with an in-process map and per-key TTL.
// Expired entries are dropped lazily on read and swept periodically by a
// janitor goroutine. It is the default backend and the test double for
// the Redis-backed store.
type MemStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	closed  bool

	sweepInterval time.Duration
	now           func() time.Time
	stopJanitor   chan struct{}
}

// NewMemStore creates a MemStore and starts its janitor.
func NewMemStore(opts ...Option) *MemStore {
	s := &MemStore{
		entries:       make(map[string]entry),
		sweepInterval: defaultSweepInterval,
		now:           time.Now,
		stopJanitor:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.janitor()
	return s
}

// Put writes value under key.
func (s *MemStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		metrics.RecordStoreOpError("put")
		return ErrClosed
	}

	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = e
	metrics.RecordStoreOp("put")
	return nil
}

// Get returns the value for key, or ErrNotFound.
func (s *MemStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	closed := s.closed
	s.mu.RUnlock()

	if closed {
		metrics.RecordStoreOpError("get")
		return nil, ErrClosed
	}
	if !ok || e.expired(s.now()) {
		return nil, ErrNotFound
	}
	metrics.RecordStoreOp("get")
	return append([]byte(nil), e.value...), nil
}

// List returns all live keys with the given prefix, sorted for
// deterministic iteration.
func (s *MemStore) List(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		metrics.RecordStoreOpError("list")
		return nil, ErrClosed
	}

	now := s.now()
	keys := make([]string, 0)
	for k, e := range s.entries {
		if strings.HasPrefix(k, prefix) && !e.expired(now) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	metrics.RecordStoreOp("list")
	return keys, nil
}

// Delete removes key.
func (s *MemStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		metrics.RecordStoreOpError("delete")
		return ErrClosed
	}
	delete(s.entries, key)
	metrics.RecordStoreOp("delete")
	return nil
}

// DeleteMany removes keys in bulk.
func (s *MemStore) DeleteMany(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		metrics.RecordStoreOpError("delete_many")
		return ErrClosed
	}
	for _, k := range keys {
		delete(s.entries, k)
	}
	metrics.RecordStoreOp("delete_many")
	return nil
}

// Close stops the janitor and rejects further operations.
func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.stopJanitor)
	return nil
}

// Len returns the number of live entries, for stats reporting.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	n := 0
	for _, e := range s.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// janitor periodically sweeps expired entries so the map does not grow
// without bound between reads.
func (s *MemStore) janitor() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopJanitor:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	now := s.now()
	swept := 0
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
			swept++
		}
	}
	if swept > 0 {
		metrics.RecordStoreKeysSwept(swept)
	}
}
