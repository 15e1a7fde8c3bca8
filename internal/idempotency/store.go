package idempotency

import (
	"context"
	"sync"
	"time"
)

// Response is a cached idempotent response.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	CachedAt   time.Time
}

// Store manages idempotency keys and cached responses.
type Store interface {
	Get(ctx context.Context, key string) (*Response, bool)
	Set(ctx context.Context, key string, response *Response, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore is an in-memory Store. Expired entries are swept lazily on
// writes, which bounds growth without a background goroutine.
type MemoryStore struct {
	mu        sync.RWMutex
	cache     map[string]*Response
	expires   map[string]time.Time
	lastSweep time.Time
}

// NewMemoryStore creates an empty in-memory idempotency store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache:   make(map[string]*Response),
		expires: make(map[string]time.Time),
	}
}

// Get retrieves a cached response for the key if it has not expired.
func (s *MemoryStore) Get(_ context.Context, key string) (*Response, bool) {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	expiry, ok := s.expires[key]
	if !ok || now.After(expiry) {
		return nil, false
	}
	response, found := s.cache[key]
	return response, found
}

// Set stores a response under the key with TTL.
func (s *MemoryStore) Set(_ context.Context, key string, response *Response, ttl time.Duration) error {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) > 5*time.Minute {
		s.sweepLocked(now)
	}

	s.cache[key] = response
	s.expires[key] = now.Add(ttl)
	return nil
}

// Delete removes a cached response.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, key)
	delete(s.expires, key)
	return nil
}

// sweepLocked drops expired entries. Caller must hold the write lock.
func (s *MemoryStore) sweepLocked(now time.Time) {
	for key, expiry := range s.expires {
		if now.After(expiry) {
			delete(s.cache, key)
			delete(s.expires, key)
		}
	}
	s.lastSweep = now
}
