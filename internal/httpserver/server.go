// Package httpserver exposes the orchestrated purchase and access answers
// to frontends over a chi router.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/GateStream/orchestrator/internal/access"
	"github.com/GateStream/orchestrator/internal/caches"
	"github.com/GateStream/orchestrator/internal/circuitbreaker"
	"github.com/GateStream/orchestrator/internal/config"
	"github.com/GateStream/orchestrator/internal/idempotency"
	"github.com/GateStream/orchestrator/internal/logger"
	"github.com/GateStream/orchestrator/internal/metrics"
	"github.com/GateStream/orchestrator/internal/platform"
	"github.com/GateStream/orchestrator/internal/purchase"
	"github.com/GateStream/orchestrator/internal/quote"
	"github.com/GateStream/orchestrator/internal/ratelimit"
)

var serverStartTime = time.Now()

// TokenBroker is the slice of the access broker the facade needs.
type TokenBroker interface {
	GetToken(ctx context.Context, itemID string) (access.Token, error)
	ClearCache(itemIDs ...string)
}

// QuoteFetcher requests a signed purchase quote.
type QuoteFetcher interface {
	RequestQuote(ctx context.Context, req quote.Request) (quote.Quote, error)
}

// RelayedExecutor submits a relayed crypto purchase.
type RelayedExecutor interface {
	ExecuteRelayed(ctx context.Context, req quote.Request, withQuote bool) (purchase.Record, error)
}

// Claimer submits a claim to the platform.
type Claimer interface {
	SubmitClaim(ctx context.Context, req platform.ClaimRequest) (platform.ClaimResult, error)
}

// Reconciler drives pending-mint resolution.
type Reconciler interface {
	Pending(ctx context.Context) ([]purchase.Pending, error)
	MintPending(ctx context.Context, walletAddress string) ([]purchase.MintResult, error)
}

// AccessLister reports the caller's current access facts.
type AccessLister interface {
	AccessList(ctx context.Context) ([]platform.AccessFact, error)
}

// Deps carries everything the facade handlers call into.
type Deps struct {
	Broker           TokenBroker
	Quotes           QuoteFetcher
	Executor         RelayedExecutor
	Claimer          Claimer
	Reconciler       Reconciler
	Access           AccessLister
	Tracker          *purchase.Tracker
	Records          purchase.RecordStore
	Coordinator      *caches.Coordinator
	Cache            caches.Store
	Breakers         *circuitbreaker.Manager
	IdempotencyStore idempotency.Store
	Metrics          *metrics.Metrics
	Version          string
}

// Server wires handlers, middleware, and dependencies.
type Server struct {
	handlers
	httpServer *http.Server
}

type handlers struct {
	cfg    *config.Config
	deps   Deps
	tracks *trackRegistry
	logger zerolog.Logger
}

// New builds the HTTP server with configured router.
func New(cfg *config.Config, deps Deps, appLogger zerolog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		handlers: handlers{
			cfg:    cfg,
			deps:   deps,
			tracks: newTrackRegistry(),
			logger: appLogger,
		},
		httpServer: &http.Server{
			Addr:         cfg.Server.Address,
			ReadTimeout:  cfg.Server.ReadTimeout.Duration,
			WriteTimeout: cfg.Server.WriteTimeout.Duration,
			IdleTimeout:  cfg.Server.IdleTimeout.Duration,
			Handler:      router,
		},
	}

	s.configureRouter(router)
	return s
}

// ConfigureRouter attaches orchestrator routes to an existing router, for
// embedding into a larger application.
func ConfigureRouter(router chi.Router, cfg *config.Config, deps Deps, appLogger zerolog.Logger) {
	if router == nil {
		return
	}
	h := handlers{
		cfg:    cfg,
		deps:   deps,
		tracks: newTrackRegistry(),
		logger: appLogger,
	}
	h.configureRouter(router)
}

func (h *handlers) configureRouter(router chi.Router) {
	cfg := h.cfg

	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		router.Use(cors.New(cors.Options{
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: false,
			MaxAge:           300,
		}).Handler)
	}

	router.Use(securityHeadersMiddleware)
	router.Use(logger.Middleware(h.logger))
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(requestMetrics(h.deps.Metrics))

	router.Use(ratelimit.IPLimiter(ratelimit.Config{
		Enabled:           cfg.RateLimit.Enabled,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Window:            cfg.RateLimit.WindowLength.Duration,
		Metrics:           h.deps.Metrics,
	}))

	// Lightweight endpoints with a short timeout.
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))
		r.Get("/healthz", h.health)
		r.With(metricsAuth(cfg.Server.MetricsAPIKey)).Handle("/metrics", promhttp.Handler())
	})

	idempotencyMW := idempotency.Middleware(h.deps.IdempotencyStore, 24*time.Hour)

	// Orchestration endpoints. Token fetches retry internally and status
	// polls hang off trackers, so the handler budget stays modest.
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/v1/access", h.listAccess)
		r.Get("/v1/access/{itemId}", h.getAccess)

		r.Post("/v1/purchases/{itemId}/quote", h.requestQuote)
		r.With(idempotencyMW).Post("/v1/purchases/{itemId}/crypto", h.submitCryptoPurchase)
		r.With(idempotencyMW).Post("/v1/claims", h.submitClaim)

		r.Get("/v1/purchases/pending", h.listPending)
		r.With(idempotencyMW).Post("/v1/purchases/mint-pending", h.mintPending)

		r.Get("/v1/purchases/{id}", h.getPurchase)
		r.Post("/v1/purchases/{id}/track", h.startTracking)
		r.Delete("/v1/purchases/{id}/track", h.stopTracking)
	})
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server and any active trackers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.tracks.stopAll()
	return s.httpServer.Shutdown(ctx)
}
