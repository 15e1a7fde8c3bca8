package purchase

import (
	"context"
	"errors"
)

// ErrRecordNotFound is returned when a journaled record is missing.
var ErrRecordNotFound = errors.New("purchase: record not found")

// RecordStore journals every purchase record the tracker observes, so a
// restarted orchestrator can answer "what did we last see" without waiting
// for the next poll. Records are never deleted, only superseded.
type RecordStore interface {
	// Upsert stores the record keyed by its reference. Implementations must
	// preserve terminal statuses: an upsert that would regress a terminal
	// record to a non-terminal status is a no-op.
	Upsert(ctx context.Context, record Record) error

	// Get returns the journaled record for a reference.
	Get(ctx context.Context, ref string) (Record, error)

	Close() error
}

// MemoryRecordStore is the default single-process journal, a thin wrapper
// over the monotonic View.
type MemoryRecordStore struct {
	view *View
}

// NewMemoryRecordStore creates an empty in-memory journal.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{view: NewView()}
}

// Upsert merges the record through the monotonicity guard.
func (s *MemoryRecordStore) Upsert(_ context.Context, record Record) error {
	s.view.Apply(record)
	return nil
}

// Get returns the journaled record.
func (s *MemoryRecordStore) Get(_ context.Context, ref string) (Record, error) {
	record, ok := s.view.Get(ref)
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return record, nil
}

// Close releases the store.
func (s *MemoryRecordStore) Close() error {
	return nil
}
