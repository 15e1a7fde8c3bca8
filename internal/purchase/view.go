package purchase

import (
	"sync"
)

// View is the last-writer-wins map of observed purchase records, keyed by
// reference. It enforces status monotonicity: once a record is observed in
// a terminal state, a later non-terminal observation for the same reference
// is discarded rather than regressing the view.
type View struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewView creates an empty record view.
func NewView() *View {
	return &View{records: make(map[string]Record)}
}

// Apply merges an observed record into the view and returns the record the
// view now holds, plus whether the observation was accepted.
func (v *View) Apply(record Record) (Record, bool) {
	ref := record.Ref()
	if ref == "" {
		return record, false
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	existing, ok := v.records[ref]
	if ok {
		if existing.Status.Terminal() && !record.Status.Terminal() {
			return existing, false
		}
		// ItemID is immutable after creation; a later payload that drops it
		// must not erase what we already know, and one that names a
		// different item is discarded in favor of the original.
		if existing.ItemID != "" {
			record.ItemID = existing.ItemID
		}
		if record.PurchaseID == "" {
			record.PurchaseID = existing.PurchaseID
		}
	}

	v.records[ref] = record
	return record, true
}

// Get returns the current record for a reference.
func (v *View) Get(ref string) (Record, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	record, ok := v.records[ref]
	return record, ok
}
