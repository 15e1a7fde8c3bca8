package caches

import (
	"context"
	"encoding/json"
	"time"
)

// GetJSON serves key from the store, falling back to fetch and caching the
// JSON-encoded result. Cache read, decode, or write failures degrade to a
// direct fetch; the cache never makes a working upstream look broken.
func GetJSON[T any](ctx context.Context, store Store, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, bool, error) {
	if store != nil {
		if raw, ok, err := store.Get(ctx, key); err == nil && ok {
			var cached T
			if json.Unmarshal(raw, &cached) == nil {
				return cached, true, nil
			}
		}
	}

	value, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}

	if store != nil {
		if raw, err := json.Marshal(value); err == nil {
			_ = store.Set(ctx, key, raw, ttl)
		}
	}
	return value, false, nil
}
