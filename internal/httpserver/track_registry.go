package httpserver

import (
	"sync"

	"github.com/GateStream/orchestrator/internal/purchase"
)

// trackRegistry holds the active tracker handles keyed by purchase ref.
// Tracking the same ref twice is idempotent: the caller gets the handle
// that is already polling.
type trackRegistry struct {
	mu      sync.Mutex
	handles map[string]*purchase.Handle
}

func newTrackRegistry() *trackRegistry {
	return &trackRegistry{handles: make(map[string]*purchase.Handle)}
}

// acquire returns the existing handle for ref, or registers the one built
// by start. The second return reports whether a new handle was created.
func (t *trackRegistry) acquire(ref string, start func() *purchase.Handle) (*purchase.Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if handle, ok := t.handles[ref]; ok {
		select {
		case <-handle.Done():
			// finished; fall through and start fresh
		default:
			return handle, false
		}
	}

	handle := start()
	t.handles[ref] = handle
	return handle, true
}

func (t *trackRegistry) get(ref string) (*purchase.Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	handle, ok := t.handles[ref]
	return handle, ok
}

// stop halts tracking for ref, reporting whether a handle existed.
func (t *trackRegistry) stop(ref string) bool {
	t.mu.Lock()
	handle, ok := t.handles[ref]
	delete(t.handles, ref)
	t.mu.Unlock()

	if ok {
		handle.Stop()
	}
	return ok
}

func (t *trackRegistry) stopAll() {
	t.mu.Lock()
	handles := make([]*purchase.Handle, 0, len(t.handles))
	for _, handle := range t.handles {
		handles = append(handles, handle)
	}
	t.handles = make(map[string]*purchase.Handle)
	t.mu.Unlock()

	for _, handle := range handles {
		handle.Stop()
	}
}
