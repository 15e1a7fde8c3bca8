// Package retry provides bounded retry with exponential backoff for
// idempotent read operations: status polls, quote fetches, token fetches.
// It must never wrap a payment, mint, or claim submission - a duplicate
// write can double-charge or double-spend.
package retry

import (
	"context"
	"time"

	"github.com/GateStream/orchestrator/internal/gateerr"
	"github.com/GateStream/orchestrator/internal/logger"
)

// Policy defines retry behavior for a read operation.
type Policy struct {
	// MaxAttempts is the number of retries after the first attempt, so the
	// operation runs at most MaxAttempts+1 times.
	MaxAttempts int
	// BaseDelay is the delay before the first retry; the delay before retry
	// n is BaseDelay * 2^(n-1).
	BaseDelay time.Duration
}

// DefaultPolicy matches the platform read endpoints' tolerance.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond}
}

// Do runs the operation under the policy, re-raising the last error once
// attempts are exhausted. Non-retryable errors (per gateerr classification)
// and context cancellation short-circuit immediately.
func Do[T any](ctx context.Context, policy Policy, operation func() (T, error)) (T, error) {
	var result T
	var err error

	for attempt := 0; attempt <= policy.MaxAttempts; attempt++ {
		result, err = operation()
		if err == nil {
			return result, nil
		}

		if ctx.Err() != nil {
			return result, err
		}

		if !gateerr.Retryable(err) {
			return result, err
		}

		if attempt == policy.MaxAttempts {
			break
		}

		delay := policy.BaseDelay * time.Duration(1<<uint(attempt))
		log := logger.FromContext(ctx)
		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_attempts", policy.MaxAttempts+1).
			Dur("retry_delay", delay).
			Msg("retry.backoff")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		case <-timer.C:
		}
	}

	return result, err
}
