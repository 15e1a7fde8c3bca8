package chain

import (
	"context"
	"sync"
	"time"
)

// ContractMetadata describes the pass contract a purchase executes against.
// The expected chain id comes from here, never from the wallet's current
// binding.
type ContractMetadata struct {
	Address string `json:"address"`
	ChainID int64  `json:"chainId"`
	ABI     string `json:"abi,omitempty"` // JSON ABI; empty means the built-in purchase ABI
}

// MetadataSource fetches contract metadata from the platform.
type MetadataSource interface {
	ContractMetadata(ctx context.Context) (ContractMetadata, error)
}

// MetadataCache caches contract metadata for the process lifetime with a
// staleness window, so repeated purchases do not refetch the ABI. Uses
// double-checked locking so concurrent misses trigger a single fetch.
type MetadataCache struct {
	source MetadataSource
	ttl    time.Duration

	mu        sync.RWMutex
	cached    ContractMetadata
	fetchedAt time.Time
}

// NewMetadataCache wraps a source with a staleness window.
func NewMetadataCache(source MetadataSource, ttl time.Duration) *MetadataCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MetadataCache{source: source, ttl: ttl}
}

// Get returns cached metadata, fetching when absent or stale.
func (c *MetadataCache) Get(ctx context.Context) (ContractMetadata, error) {
	now := time.Now()

	c.mu.RLock()
	if !c.fetchedAt.IsZero() && now.Sub(c.fetchedAt) < c.ttl {
		meta := c.cached
		c.mu.RUnlock()
		return meta, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-check with a fresh timestamp; another flow may have fetched while
	// we waited for the write lock.
	now = time.Now()
	if !c.fetchedAt.IsZero() && now.Sub(c.fetchedAt) < c.ttl {
		return c.cached, nil
	}

	meta, err := c.source.ContractMetadata(ctx)
	if err != nil {
		// Serve stale metadata over failing the purchase outright.
		if !c.fetchedAt.IsZero() {
			return c.cached, nil
		}
		return ContractMetadata{}, err
	}

	c.cached = meta
	c.fetchedAt = now
	return meta, nil
}
