package purchase

import (
	"context"
	"sync"
	"time"

	"github.com/GateStream/orchestrator/internal/logger"
	"github.com/GateStream/orchestrator/internal/retry"
)

// StatusSource resolves the current lifecycle record for a purchase
// reference. ok=false means the server has not created a record yet, which
// is normal immediately after checkout; the tracker keeps polling.
type StatusSource interface {
	PurchaseStatus(ctx context.Context, ref string) (record Record, ok bool, err error)
}

// Predicate decides when tracking may stop. The default stops on a terminal
// status or as soon as the item id resolves: once the caller knows which
// item it owns, continued polling for that purpose is unnecessary even if
// minting continues in the background.
type Predicate func(Record) bool

// DefaultStop is the standard stop predicate.
func DefaultStop(record Record) bool {
	return record.Status.Terminal() || record.ItemID != ""
}

// TrackerConfig tunes polling behavior.
type TrackerConfig struct {
	// Interval between the resolution of one poll and the start of the next.
	// Polls are strictly sequential; a new poll is never issued while one is
	// in flight.
	Interval time.Duration
	// PollTimeout bounds a single status request, including its local
	// read retries.
	PollTimeout time.Duration
	// Retry is the per-poll read retry policy.
	Retry retry.Policy
}

// DefaultTrackerConfig returns the polling defaults.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		Interval:    4 * time.Second,
		PollTimeout: 10 * time.Second,
		Retry:       retry.Policy{MaxAttempts: 2, BaseDelay: 300 * time.Millisecond},
	}
}

// Tracker polls purchase lifecycle status until a terminal state is reached
// or a caller-supplied stop condition fires, exposing the evolving record
// to dependents.
type Tracker struct {
	source  StatusSource
	journal RecordStore
	view    *View
	cfg     TrackerConfig

	// Metrics hooks; nil-safe.
	onPoll   func(outcome string, duration time.Duration)
	onActive func(delta int)
}

// TrackerOption configures Tracker construction.
type TrackerOption func(*Tracker)

// WithJournal journals every accepted observation to the record store.
func WithJournal(journal RecordStore) TrackerOption {
	return func(t *Tracker) {
		t.journal = journal
	}
}

// WithPollHook observes every poll outcome and duration, for metrics.
func WithPollHook(fn func(outcome string, duration time.Duration)) TrackerOption {
	return func(t *Tracker) {
		t.onPoll = fn
	}
}

// WithActiveHook observes tracking tasks starting (+1) and finishing (-1),
// for the active-tracker gauge.
func WithActiveHook(fn func(delta int)) TrackerOption {
	return func(t *Tracker) {
		t.onActive = fn
	}
}

// NewTracker builds a tracker over a status source.
func NewTracker(source StatusSource, cfg TrackerConfig, opts ...TrackerOption) *Tracker {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultTrackerConfig().Interval
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultTrackerConfig().PollTimeout
	}
	t := &Tracker{
		source: source,
		view:   NewView(),
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// View exposes the last-writer-wins record view shared by all handles.
func (t *Tracker) View() *View {
	return t.view
}

// TrackOption configures one tracking run.
type TrackOption func(*trackOptions)

type trackOptions struct {
	predicate Predicate
	onUpdate  func(Record)
}

// WithPredicate overrides the stop condition.
func WithPredicate(predicate Predicate) TrackOption {
	return func(o *trackOptions) {
		o.predicate = predicate
	}
}

// WithOnUpdate registers a callback fired for every accepted observation.
// It runs on the polling goroutine, so it must not block.
func WithOnUpdate(fn func(Record)) TrackOption {
	return func(o *trackOptions) {
		o.onUpdate = fn
	}
}

// Handle is a running tracking task. Stop is idempotent and clears the
// pending poll timer so no callback fires after teardown.
type Handle struct {
	ref string

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	mu         sync.RWMutex
	record     Record
	haveRecord bool
	lastErr    error
}

// Stop tells the tracking task to stand down. Safe to call multiple times
// and after completion.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
}

// Done is closed once the task has fully stopped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Record returns the latest observed record, if any poll has produced one.
func (h *Handle) Record() (Record, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.record, h.haveRecord
}

// Err returns the last poll error, for diagnostics. A non-nil value does
// not mean tracking stopped; transient read errors are absorbed.
func (h *Handle) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastErr
}

// Track starts polling the reference until the stop condition fires, Stop
// is called, or the context ends. Tracking continues while the consuming
// view is hidden; state changes must not be missed.
func (t *Tracker) Track(ctx context.Context, ref string, opts ...TrackOption) *Handle {
	options := trackOptions{predicate: DefaultStop}
	for _, opt := range opts {
		opt(&options)
	}

	handle := &Handle{
		ref:  ref,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go t.run(ctx, handle, options)
	return handle
}

func (t *Tracker) run(ctx context.Context, handle *Handle, options trackOptions) {
	defer close(handle.done)
	if t.onActive != nil {
		t.onActive(1)
		defer t.onActive(-1)
	}

	log := logger.FromContext(ctx).With().Str("purchase_ref", handle.ref).Logger()

	// Fires immediately for the first poll, then every interval after the
	// previous poll resolves.
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-handle.stop:
			return
		case <-timer.C:
		}

		started := time.Now()
		record, ok, err := t.poll(ctx, handle.ref)
		if t.onPoll != nil {
			t.onPoll(pollOutcome(err, ok), time.Since(started))
		}
		switch {
		case err != nil:
			handle.setErr(err)
			log.Warn().Err(err).Msg("tracker.poll_failed")
		case !ok:
			// No record yet; the server creates one asynchronously.
			log.Debug().Msg("tracker.no_record_yet")
		default:
			merged, accepted := t.view.Apply(record)
			if accepted {
				if t.journal != nil {
					if jerr := t.journal.Upsert(ctx, merged); jerr != nil {
						log.Error().Err(jerr).Msg("tracker.journal_failed")
					}
				}
				handle.setRecord(merged)
				if options.onUpdate != nil {
					options.onUpdate(merged)
				}
			}
			if options.predicate(merged) {
				log.Info().
					Str("status", string(merged.Status)).
					Str("item_id", merged.ItemID).
					Msg("tracker.stopped")
				return
			}
		}

		timer.Reset(t.cfg.Interval)
	}
}

func pollOutcome(err error, ok bool) string {
	switch {
	case err != nil:
		return "error"
	case !ok:
		return "no_record"
	default:
		return "observed"
	}
}

// poll issues one status request with the per-poll timeout and read retry.
func (t *Tracker) poll(ctx context.Context, ref string) (Record, bool, error) {
	pollCtx, cancel := context.WithTimeout(ctx, t.cfg.PollTimeout)
	defer cancel()

	type result struct {
		record Record
		ok     bool
	}
	res, err := retry.Do(pollCtx, t.cfg.Retry, func() (result, error) {
		record, ok, err := t.source.PurchaseStatus(pollCtx, ref)
		return result{record: record, ok: ok}, err
	})
	return res.record, res.ok, err
}

func (h *Handle) setRecord(record Record) {
	h.mu.Lock()
	h.record = record
	h.haveRecord = true
	h.lastErr = nil
	h.mu.Unlock()
}

func (h *Handle) setErr(err error) {
	h.mu.Lock()
	h.lastErr = err
	h.mu.Unlock()
}
