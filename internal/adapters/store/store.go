// Package store defines the durable key-value queue store. Records are
// opaque timestamped values with a bounded TTL; the store offers eventual
// consistency and no cross-key atomicity, so callers treat existence
// checks as advisory and push true consistency into reconciliation.
package store

import (
	"context"
	"time"
)

// Store provides TTL-bounded key-value access to pending records.
type Store interface {
	// Put writes value under key. A ttl of zero means no expiry.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns all live keys with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteMany removes keys in bulk.
	DeleteMany(ctx context.Context, keys []string) error

	// Close releases any resources held by the store.
	Close() error
}
