package metrics

import (
	"context"
	"time"

	"github.com/GateStream/orchestrator/internal/purchase"
)

// MeasureStoreQuery wraps a record store operation with timing
// instrumentation. Usage:
//
//	defer metrics.MeasureStoreQuery(m, "upsert", "postgres")()
func MeasureStoreQuery(m *Metrics, operation, backend string) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.ObserveStoreQuery(operation, backend, time.Since(start))
	}
}

// RecordStoreQuery records a store query duration directly when timing is
// already captured.
func RecordStoreQuery(m *Metrics, operation, backend string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ObserveStoreQuery(operation, backend, duration)
}

// InstrumentRecordStore wraps a purchase record store so every query lands
// in the store query histogram under the given backend label. A nil
// collector returns the store unwrapped.
func InstrumentRecordStore(store purchase.RecordStore, backend string, m *Metrics) purchase.RecordStore {
	if m == nil {
		return store
	}
	return &instrumentedRecordStore{inner: store, backend: backend, m: m}
}

type instrumentedRecordStore struct {
	inner   purchase.RecordStore
	backend string
	m       *Metrics
}

func (s *instrumentedRecordStore) Upsert(ctx context.Context, record purchase.Record) error {
	defer MeasureStoreQuery(s.m, "upsert", s.backend)()
	return s.inner.Upsert(ctx, record)
}

func (s *instrumentedRecordStore) Get(ctx context.Context, ref string) (purchase.Record, error) {
	defer MeasureStoreQuery(s.m, "get", s.backend)()
	return s.inner.Get(ctx, ref)
}

func (s *instrumentedRecordStore) Close() error {
	return s.inner.Close()
}
