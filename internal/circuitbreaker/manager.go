// Package circuitbreaker isolates the orchestrator's upstream collaborators
// behind per-service breakers so a flapping platform API cannot drag the
// Stripe status source down with it.
package circuitbreaker

import (
	"github.com/sony/gobreaker"

	"github.com/GateStream/orchestrator/internal/config"
)

// ServiceType identifies an external collaborator for breaker isolation.
type ServiceType string

const (
	// ServicePlatform is the backend owning purchases, quotes, and access facts.
	ServicePlatform ServiceType = "platform_api"
	// ServiceStripe is the optional checkout-session status source.
	ServiceStripe ServiceType = "stripe_api"
)

// Manager holds one circuit breaker per external service.
type Manager struct {
	breakers map[ServiceType]*gobreaker.CircuitBreaker
	enabled  bool
}

// NewManager creates breakers from application config. When disabled, all
// executions pass through untouched.
func NewManager(cfg config.CircuitBreakerConfig) *Manager {
	m := &Manager{
		breakers: make(map[ServiceType]*gobreaker.CircuitBreaker),
		enabled:  cfg.Enabled,
	}
	if !cfg.Enabled {
		return m
	}

	m.breakers[ServicePlatform] = gobreaker.NewCircuitBreaker(settings(string(ServicePlatform), cfg.Platform))
	m.breakers[ServiceStripe] = gobreaker.NewCircuitBreaker(settings(string(ServiceStripe), cfg.Stripe))
	return m
}

// Execute wraps a call with the service's breaker, passing through when the
// breaker is disabled or not configured for the service.
func (m *Manager) Execute(service ServiceType, fn func() (interface{}, error)) (interface{}, error) {
	if !m.enabled {
		return fn()
	}
	breaker, ok := m.breakers[service]
	if !ok {
		return fn()
	}
	return breaker.Execute(fn)
}

// State reports the breaker state for health endpoints.
func (m *Manager) State(service ServiceType) string {
	if !m.enabled {
		return "disabled"
	}
	breaker, ok := m.breakers[service]
	if !ok {
		return "not_configured"
	}
	return breaker.State().String()
}

func settings(name string, cfg config.BreakerConfig) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval.Duration,
		Timeout:     cfg.Timeout.Duration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if cfg.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= cfg.ConsecutiveFailures {
				return true
			}
			if cfg.FailureRatio > 0 && cfg.MinRequests > 0 && counts.Requests >= cfg.MinRequests {
				failureRate := float64(counts.TotalFailures) / float64(counts.Requests)
				return failureRate >= cfg.FailureRatio
			}
			return false
		},
	}
}
