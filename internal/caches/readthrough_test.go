package caches

import (
	"context"
	"errors"
	"testing"
	"time"
)

type listPayload struct {
	Items []string `json:"items"`
}

func TestGetJSONCachesFetchResult(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	fetches := 0
	fetch := func(context.Context) (listPayload, error) {
		fetches++
		return listPayload{Items: []string{"vid-1", "vid-2"}}, nil
	}

	first, cached, err := GetJSON(ctx, store, KeyAccessList, time.Minute, fetch)
	if err != nil {
		t.Fatalf("first GetJSON: %v", err)
	}
	if cached {
		t.Fatal("first read reported a cache hit")
	}

	second, cached, err := GetJSON(ctx, store, KeyAccessList, time.Minute, fetch)
	if err != nil {
		t.Fatalf("second GetJSON: %v", err)
	}
	if !cached {
		t.Fatal("second read missed the cache")
	}
	if fetches != 1 {
		t.Fatalf("fetches = %d, want 1", fetches)
	}
	if len(second.Items) != len(first.Items) {
		t.Fatalf("cached payload %v != fetched payload %v", second, first)
	}
}

func TestGetJSONRefetchesAfterInvalidation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	fetches := 0
	fetch := func(context.Context) (listPayload, error) {
		fetches++
		return listPayload{}, nil
	}

	if _, _, err := GetJSON(ctx, store, KeyPendingPurchases, time.Minute, fetch); err != nil {
		t.Fatal(err)
	}
	if err := store.Invalidate(ctx, KeyPendingPurchases); err != nil {
		t.Fatal(err)
	}
	if _, cached, err := GetJSON(ctx, store, KeyPendingPurchases, time.Minute, fetch); err != nil || cached {
		t.Fatalf("post-invalidation read: cached=%v err=%v", cached, err)
	}
	if fetches != 2 {
		t.Fatalf("fetches = %d, want 2", fetches)
	}
}

func TestGetJSONFetchErrorPassesThrough(t *testing.T) {
	boom := errors.New("upstream down")
	_, cached, err := GetJSON(context.Background(), NewMemoryStore(), KeyOwnedItems, time.Minute,
		func(context.Context) (listPayload, error) { return listPayload{}, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if cached {
		t.Fatal("error path reported a cache hit")
	}
}

func TestGetJSONNilStoreFetchesDirect(t *testing.T) {
	got, cached, err := GetJSON(context.Background(), nil, KeyAccessList, time.Minute,
		func(context.Context) (listPayload, error) {
			return listPayload{Items: []string{"vid-9"}}, nil
		})
	if err != nil || cached {
		t.Fatalf("nil store read: cached=%v err=%v", cached, err)
	}
	if len(got.Items) != 1 {
		t.Fatalf("payload = %v", got)
	}
}
