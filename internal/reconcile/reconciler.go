// Package reconcile resolves paid-but-unminted purchases once a wallet
// becomes available. A mint batch runs exactly once per call; duplicate
// mint risk forbids any automatic retry.
package reconcile

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/GateStream/orchestrator/internal/caches"
	"github.com/GateStream/orchestrator/internal/purchase"
)

// Minter is the platform operation that mints all pending purchases to a
// wallet and reports a per-item outcome.
type Minter interface {
	MintPending(ctx context.Context, walletAddress string) ([]purchase.MintResult, error)
}

// Lister exposes the current pending set, for callers that want to show
// what a mint run would cover.
type Lister interface {
	PendingPurchases(ctx context.Context) ([]purchase.Pending, error)
}

// Reconciler drives pending-mint resolution and keeps the dependent list
// caches honest afterwards.
type Reconciler struct {
	minter      Minter
	lister      Lister
	coordinator *caches.Coordinator
	log         zerolog.Logger
}

// New builds a reconciler.
func New(minter Minter, lister Lister, coordinator *caches.Coordinator, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		minter:      minter,
		lister:      lister,
		coordinator: coordinator,
		log:         log.With().Str("component", "reconcile").Logger(),
	}
}

// Pending lists purchases that cleared payment without a connected wallet.
func (r *Reconciler) Pending(ctx context.Context) ([]purchase.Pending, error) {
	return r.lister.PendingPurchases(ctx)
}

// MintPending mints every pending purchase to the wallet, one shot. The
// platform keeps failed items in the pending set for a later run; success
// and already_minted drop out. Either way the pending and access-list
// caches are invalidated so the next read reflects the new state.
func (r *Reconciler) MintPending(ctx context.Context, walletAddress string) ([]purchase.MintResult, error) {
	results, err := r.minter.MintPending(ctx, walletAddress)
	if err != nil {
		return nil, err
	}

	var succeeded, failed int
	for _, res := range results {
		switch res.Outcome {
		case purchase.MintFailed:
			failed++
		default:
			succeeded++
		}
	}

	r.log.Info().
		Str("event", "reconcile.mint_pending").
		Str("wallet", walletAddress).
		Int("resolved", succeeded).
		Int("failed", failed).
		Msg("pending mint batch finished")

	if err := r.coordinator.PendingResolved(ctx); err != nil {
		// The mint itself succeeded; a cache invalidation failure only
		// delays visibility.
		r.log.Warn().Err(err).Str("event", "reconcile.invalidate_failed").Msg("cache invalidation failed")
	}
	return results, nil
}
