// Package lifecycle tracks resources that need closing on shutdown.
package lifecycle

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// Manager collects named closers and releases them in reverse registration
// order, so dependents close before the connections they hold.
type Manager struct {
	mu      sync.Mutex
	names   []string
	closers []io.Closer
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{}
}

// Register queues a closer. The name identifies the resource in close errors.
func (m *Manager) Register(name string, closer io.Closer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names = append(m.names, name)
	m.closers = append(m.closers, closer)
}

// RegisterFunc queues a cleanup function.
func (m *Manager) RegisterFunc(name string, fn func() error) {
	m.Register(name, closerFunc(fn))
}

// Close closes every registered resource, newest first. Every closer runs
// even when earlier ones fail; failures are joined into the returned error.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", m.names[i], err))
		}
	}
	m.names = nil
	m.closers = nil
	return errors.Join(errs...)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
