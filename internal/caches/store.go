// Package caches provides the dependent read caches that must be refreshed
// whenever purchase or access state changes: the owned-items list, the
// pending-purchases list, the access list, and per-item detail entries.
// Stores are injectable so tests can substitute in-memory fakes and assert
// invalidation counts.
package caches

import (
	"context"
	"time"
)

// Well-known cache keys for the dependent read views.
const (
	KeyOwnedItems       = "owned_items"
	KeyPendingPurchases = "pending_purchases"
	KeyAccessList       = "access_list"
)

// ItemKey returns the detail cache key for one content item.
func ItemKey(itemID string) string {
	return "item:" + itemID
}

// Store is a byte-value cache with TTL and explicit invalidation.
// Consumers must treat reads as eventually-consistent snapshots.
type Store interface {
	// Get returns the cached value, or ok=false on miss or expiry.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores a value under the key for the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Invalidate drops the keys. Missing keys are not an error; invalidation
	// is idempotent.
	Invalidate(ctx context.Context, keys ...string) error

	Close() error
}
