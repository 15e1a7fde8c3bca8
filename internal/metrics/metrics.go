package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the orchestrator.
type Metrics struct {
	// Access token broker metrics
	TokenFetchesTotal  *prometheus.CounterVec
	TokenCacheHits     prometheus.Counter
	TokenRetriesTotal  *prometheus.CounterVec
	TokenFetchDuration *prometheus.HistogramVec

	// Purchase tracker metrics
	PollsTotal     *prometheus.CounterVec
	PollDuration   prometheus.Histogram
	TrackersActive prometheus.Gauge

	// Purchase outcome metrics
	PurchasesTotal      *prometheus.CounterVec
	PurchaseAmountTotal *prometheus.CounterVec

	// Quote and submission metrics
	QuoteFetchesTotal    *prometheus.CounterVec
	QuoteRejectionsTotal *prometheus.CounterVec
	SubmissionsTotal     *prometheus.CounterVec

	// Cache coordination metrics
	CacheInvalidationsTotal *prometheus.CounterVec

	// Pending mint reconciliation metrics
	MintBatchesTotal prometheus.Counter
	MintResultsTotal *prometheus.CounterVec

	// Upstream call metrics
	UpstreamDuration *prometheus.HistogramVec
	UpstreamErrors   *prometheus.CounterVec

	// Facade HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	RateLimitHitsTotal  *prometheus.CounterVec

	// Record store metrics
	StoreQueryDuration *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Access token broker metrics
		TokenFetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_token_fetches_total",
				Help: "Total number of access token fetch attempts",
			},
			[]string{"source", "outcome"},
		),
		TokenCacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gate_token_cache_hits_total",
				Help: "Total number of access token requests served from cache",
			},
		),
		TokenRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_token_retries_total",
				Help: "Total number of access token retries by denial reason",
			},
			[]string{"reason"},
		),
		TokenFetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gate_token_fetch_duration_seconds",
				Help:    "Time taken to obtain an access token (supports p50, p95, p99 percentiles)",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"outcome"},
		),

		// Purchase tracker metrics
		PollsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_status_polls_total",
				Help: "Total number of purchase status polls",
			},
			[]string{"outcome"},
		),
		PollDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gate_status_poll_duration_seconds",
				Help:    "Duration of a single status poll",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		),
		TrackersActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gate_trackers_active",
				Help: "Number of purchase trackers currently polling",
			},
		),

		// Purchase outcome metrics
		PurchasesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_purchases_total",
				Help: "Total number of purchases reaching a terminal status",
			},
			[]string{"rail", "status"},
		),
		PurchaseAmountTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_purchase_amount_total",
				Help: "Total settled purchase amount in smallest currency units",
			},
			[]string{"rail", "currency"},
		),

		// Quote and submission metrics
		QuoteFetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_quote_fetches_total",
				Help: "Total number of quote fetch attempts",
			},
			[]string{"outcome"},
		),
		QuoteRejectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_quote_rejections_total",
				Help: "Total number of quotes rejected before submission",
			},
			[]string{"reason"},
		),
		SubmissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_submissions_total",
				Help: "Total number of purchase submissions",
			},
			[]string{"path", "outcome"},
		),

		// Cache coordination metrics
		CacheInvalidationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_cache_invalidations_total",
				Help: "Total number of dependent cache invalidations",
			},
			[]string{"reason"},
		),

		// Pending mint reconciliation metrics
		MintBatchesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gate_mint_batches_total",
				Help: "Total number of pending-mint batch runs",
			},
		),
		MintResultsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_mint_results_total",
				Help: "Total number of per-item mint outcomes",
			},
			[]string{"outcome"},
		),

		// Upstream call metrics
		UpstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gate_upstream_duration_seconds",
				Help:    "Duration of upstream API calls (supports p50, p95, p99 percentiles)",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"service", "operation"},
		),
		UpstreamErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_upstream_errors_total",
				Help: "Total number of upstream API errors by kind",
			},
			[]string{"service", "kind"},
		),

		// Facade HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_http_requests_total",
				Help: "Total number of facade HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gate_http_request_duration_seconds",
				Help:    "Facade HTTP request duration (supports p50, p95, p99 percentiles)",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route"},
		),
		RateLimitHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_rate_limit_hits_total",
				Help: "Total number of rate limit hits",
			},
			[]string{"route"},
		),

		// Record store metrics
		StoreQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gate_store_query_duration_seconds",
				Help:    "Purchase record store query duration",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 1},
			},
			[]string{"operation", "backend"},
		),
	}
}

// ObserveTokenFetch records one token fetch attempt and its outcome.
func (m *Metrics) ObserveTokenFetch(source, outcome string, duration time.Duration) {
	m.TokenFetchesTotal.WithLabelValues(source, outcome).Inc()
	m.TokenFetchDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveTokenCacheHit records a token request served without a network call.
func (m *Metrics) ObserveTokenCacheHit() {
	m.TokenCacheHits.Inc()
}

// ObserveTokenRetry records a retry triggered by NoAccess or Unauthorized.
func (m *Metrics) ObserveTokenRetry(reason string) {
	m.TokenRetriesTotal.WithLabelValues(reason).Inc()
}

// ObserveTrackerChange moves the active-tracker gauge as tracking tasks
// start (+1) and finish (-1).
func (m *Metrics) ObserveTrackerChange(delta int) {
	m.TrackersActive.Add(float64(delta))
}

// ObservePoll records one status poll.
func (m *Metrics) ObservePoll(outcome string, duration time.Duration) {
	m.PollsTotal.WithLabelValues(outcome).Inc()
	m.PollDuration.Observe(duration.Seconds())
}

// ObservePurchaseSettled records a purchase reaching a terminal status.
func (m *Metrics) ObservePurchaseSettled(rail, status, currency string, amount int64) {
	m.PurchasesTotal.WithLabelValues(rail, status).Inc()
	if status == "completed" && amount > 0 {
		m.PurchaseAmountTotal.WithLabelValues(rail, currency).Add(float64(amount))
	}
}

// ObserveQuoteFetch records a quote fetch attempt.
func (m *Metrics) ObserveQuoteFetch(err error) {
	if err != nil {
		m.QuoteFetchesTotal.WithLabelValues("error").Inc()
		return
	}
	m.QuoteFetchesTotal.WithLabelValues("success").Inc()
}

// ObserveQuoteRejection records a quote rejected before any submission.
func (m *Metrics) ObserveQuoteRejection(reason string) {
	m.QuoteRejectionsTotal.WithLabelValues(reason).Inc()
}

// ObserveSubmission records a purchase submission on either path.
func (m *Metrics) ObserveSubmission(path string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.SubmissionsTotal.WithLabelValues(path, outcome).Inc()
}

// ObserveInvalidation records one dependent-cache invalidation pass.
func (m *Metrics) ObserveInvalidation(reason string) {
	m.CacheInvalidationsTotal.WithLabelValues(reason).Inc()
}

// ObserveMintBatch records a pending-mint batch and its per-item outcomes.
func (m *Metrics) ObserveMintBatch(outcomes []string) {
	m.MintBatchesTotal.Inc()
	for _, outcome := range outcomes {
		m.MintResultsTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveUpstream records an upstream API call.
func (m *Metrics) ObserveUpstream(service, operation string, duration time.Duration, errKind string) {
	m.UpstreamDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
	if errKind != "" {
		m.UpstreamErrors.WithLabelValues(service, errKind).Inc()
	}
}

// ObserveHTTPRequest records a facade request.
func (m *Metrics) ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimit records a rate limit hit.
func (m *Metrics) ObserveRateLimit(route string) {
	m.RateLimitHitsTotal.WithLabelValues(route).Inc()
}

// ObserveStoreQuery records a record store query.
func (m *Metrics) ObserveStoreQuery(operation, backend string, duration time.Duration) {
	m.StoreQueryDuration.WithLabelValues(operation, backend).Observe(duration.Seconds())
}
