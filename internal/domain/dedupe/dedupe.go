// Package dedupe provides the gateway's advisory duplicate check: a
// bounded in-process cache of session hashes already enqueued or
// published. It is best-effort only; gateway instances do not share it
// and the backing store is eventually consistent, so a miss here never
// implies uniqueness. Authoritative dedup happens in the reconciler.
package dedupe

import (
	"context"
	"sync"
)

const defaultMaxSize = 50000

// Deduper records seen session hashes for advisory duplicate rejection.
type Deduper interface {
	// SeenAndRecord atomically checks whether hash was seen and records
	// it if not. Returns true if it was already seen.
	SeenAndRecord(ctx context.Context, hash string) bool

	// Unrecord removes a hash, allowing a retry after a failed enqueue.
	Unrecord(ctx context.Context, hash string)

	// Seed marks hashes as seen without eviction accounting, used to
	// preload the cache from the current published snapshot.
	Seed(ctx context.Context, hashes []string)

	// Size returns the current number of tracked hashes.
	Size() int64
}

// Option applies a configuration option to the in-memory deduper.
type Option func(*seenCache)

// WithMaxSize bounds the cache; the oldest recorded hash is evicted
// first. A non-positive size means unbounded.
func WithMaxSize(maxSize int) Option {
	return func(c *seenCache) {
		c.maxSize = maxSize
	}
}

// seenCache implements Deduper with a map plus a FIFO eviction queue.
type seenCache struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string
	maxSize int
}

// NewSeenCache creates an in-memory deduper.
func NewSeenCache(opts ...Option) Deduper {
	c := &seenCache{
		seen:    make(map[string]struct{}),
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *seenCache) SeenAndRecord(ctx context.Context, hash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[hash]; ok {
		return true
	}
	c.record(hash)
	return false
}

func (c *seenCache) Unrecord(ctx context.Context, hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[hash]; !ok {
		return
	}
	delete(c.seen, hash)
	for i, h := range c.order {
		if h == hash {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *seenCache) Seed(ctx context.Context, hashes []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, h := range hashes {
		if _, ok := c.seen[h]; !ok {
			c.record(h)
		}
	}
}

func (c *seenCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.seen))
}

// record inserts hash, evicting the oldest entry at capacity. Must be
// called with c.mu held.
func (c *seenCache) record(hash string) {
	if c.maxSize > 0 && len(c.seen) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.seen, oldest)
	}
	c.seen[hash] = struct{}{}
	c.order = append(c.order, hash)
}
