package caches

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_SetGetInvalidate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Set(ctx, KeyOwnedItems, []byte(`["p1"]`), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	value, ok, err := store.Get(ctx, KeyOwnedItems)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(value) != `["p1"]` {
		t.Errorf("value = %q", value)
	}

	if err := store.Invalidate(ctx, KeyOwnedItems, "never-set"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok, _ := store.Get(ctx, KeyOwnedItems); ok {
		t.Error("key survived invalidation")
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Set(ctx, "short", []byte("x"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok, _ := store.Get(ctx, "short"); ok {
		t.Error("expired entry still served")
	}
}

func TestCoordinator_PurchaseSettledInvalidatesDependentViews(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	coordinator := NewCoordinator(store)

	seed := map[string][]byte{
		KeyOwnedItems:       []byte("[]"),
		KeyPendingPurchases: []byte("[]"),
		KeyAccessList:       []byte("[]"),
		ItemKey("p1"):       []byte("{}"),
		ItemKey("p2"):       []byte("{}"),
	}
	for key, value := range seed {
		if err := store.Set(ctx, key, value, time.Minute); err != nil {
			t.Fatalf("seed %q: %v", key, err)
		}
	}

	if err := coordinator.PurchaseSettled(ctx, "p1"); err != nil {
		t.Fatalf("PurchaseSettled: %v", err)
	}

	for _, key := range []string{KeyOwnedItems, KeyPendingPurchases, KeyAccessList, ItemKey("p1")} {
		if _, ok, _ := store.Get(ctx, key); ok {
			t.Errorf("key %q survived settlement invalidation", key)
		}
	}
	// Unrelated item detail is untouched.
	if _, ok, _ := store.Get(ctx, ItemKey("p2")); !ok {
		t.Error("unrelated item detail was invalidated")
	}

	if got := coordinator.Invalidations(); got != 1 {
		t.Errorf("invalidation rounds = %d, want exactly 1", got)
	}
}

func TestCoordinator_PendingResolvedScope(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	coordinator := NewCoordinator(store)

	for _, key := range []string{KeyOwnedItems, KeyPendingPurchases, KeyAccessList} {
		if err := store.Set(ctx, key, []byte("[]"), time.Minute); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	if err := coordinator.PendingResolved(ctx); err != nil {
		t.Fatalf("PendingResolved: %v", err)
	}

	if _, ok, _ := store.Get(ctx, KeyPendingPurchases); ok {
		t.Error("pending-purchases cache survived")
	}
	if _, ok, _ := store.Get(ctx, KeyAccessList); ok {
		t.Error("access-list cache survived")
	}
	// Reconciliation does not touch owned-items; settlement events do.
	if _, ok, _ := store.Get(ctx, KeyOwnedItems); !ok {
		t.Error("owned-items cache should survive reconciliation")
	}
}

func TestCoordinator_InvalidationHookSeesReasons(t *testing.T) {
	ctx := context.Background()
	reasons := []string{}
	coordinator := NewCoordinator(NewMemoryStore(), WithInvalidationHook(func(reason string) {
		reasons = append(reasons, reason)
	}))

	if err := coordinator.PurchaseSettled(ctx, "p1"); err != nil {
		t.Fatalf("PurchaseSettled: %v", err)
	}
	if err := coordinator.PendingResolved(ctx); err != nil {
		t.Fatalf("PendingResolved: %v", err)
	}

	want := []string{"purchase_settled", "pending_resolved"}
	if len(reasons) != len(want) {
		t.Fatalf("hook reasons = %v, want %v", reasons, want)
	}
	for i := range want {
		if reasons[i] != want[i] {
			t.Fatalf("hook reasons = %v, want %v", reasons, want)
		}
	}
}
