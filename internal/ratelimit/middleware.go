// Package ratelimit throttles the facade per client IP. Token brokering
// and status polling are cheap, but the money-moving endpoints fan out to
// the platform and must not be hammered by a stuck client loop.
package ratelimit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/GateStream/orchestrator/internal/metrics"
)

// Config holds rate limiting configuration.
type Config struct {
	Enabled           bool
	RequestsPerMinute int
	Window            time.Duration

	// Metrics collector (optional)
	Metrics *metrics.Metrics
}

// DefaultConfig returns limits generous enough for a playback-heavy
// frontend while still stopping obvious spam.
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		RequestsPerMinute: 120,
		Window:            time.Minute,
	}
}

type limitResponse struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
}

func limitHandler(windowSeconds int, collector *metrics.Metrics) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if collector != nil {
			collector.ObserveRateLimit(r.URL.Path)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", fmt.Sprintf("%d", windowSeconds))
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(limitResponse{
			Error:             "rate_limited",
			Message:           "Rate limit exceeded. Please try again later.",
			RetryAfterSeconds: windowSeconds,
		})
	}
}

// IPLimiter creates the per-IP limiter middleware.
func IPLimiter(cfg Config) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}

	return httprate.Limit(
		cfg.RequestsPerMinute,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(limitHandler(int(window.Seconds()), cfg.Metrics)),
	)
}
