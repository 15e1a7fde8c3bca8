package caches

import (
	"context"
	"sync/atomic"

	"github.com/GateStream/orchestrator/internal/logger"
)

// Coordinator refreshes the dependent read views whenever a purchase or
// access state changes, so a subsequent render reflects updated ownership
// without a manual refresh. Invalidation is idempotent; the caller is
// responsible for firing it once per logical transition.
type Coordinator struct {
	store Store

	invalidations atomic.Int64

	// Metrics hook; nil-safe.
	onInvalidate func(reason string)
}

// CoordinatorOption configures Coordinator construction.
type CoordinatorOption func(*Coordinator)

// WithInvalidationHook observes every invalidation round, for metrics.
func WithInvalidationHook(fn func(reason string)) CoordinatorOption {
	return func(c *Coordinator) {
		c.onInvalidate = fn
	}
}

// NewCoordinator wraps a cache store.
func NewCoordinator(store Store, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{store: store}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PurchaseSettled invalidates every view that depends on ownership of the
// item: owned-items list, pending-purchases list, access list, and the
// item's detail entry. Fired on claim success, mint success, and detected
// purchase completion.
func (c *Coordinator) PurchaseSettled(ctx context.Context, itemID string) error {
	keys := []string{KeyOwnedItems, KeyPendingPurchases, KeyAccessList, ItemKey(itemID)}
	return c.invalidate(ctx, "purchase_settled", keys)
}

// PendingResolved invalidates the views touched by pending-mint
// reconciliation: the pending-purchases list and the access list.
func (c *Coordinator) PendingResolved(ctx context.Context) error {
	keys := []string{KeyPendingPurchases, KeyAccessList}
	return c.invalidate(ctx, "pending_resolved", keys)
}

// Invalidations reports how many invalidation rounds have run. Exposed for
// tests and metrics.
func (c *Coordinator) Invalidations() int64 {
	return c.invalidations.Load()
}

func (c *Coordinator) invalidate(ctx context.Context, reason string, keys []string) error {
	c.invalidations.Add(1)
	if c.onInvalidate != nil {
		c.onInvalidate(reason)
	}
	log := logger.FromContext(ctx)
	if err := c.store.Invalidate(ctx, keys...); err != nil {
		log.Error().Err(err).Str("reason", reason).Msg("caches.invalidate_failed")
		return err
	}
	log.Debug().Str("reason", reason).Int("keys", len(keys)).Msg("caches.invalidated")
	return nil
}
