// Package gate embeds the purchase and access orchestrator into a host
// process. It wires the platform client, token broker, purchase tracker,
// quote executor, and reconciler from a single Config and exposes the HTTP
// facade as a chi router or plain http.Handler.
package gate

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/GateStream/orchestrator/internal/access"
	"github.com/GateStream/orchestrator/internal/caches"
	"github.com/GateStream/orchestrator/internal/chain"
	"github.com/GateStream/orchestrator/internal/circuitbreaker"
	"github.com/GateStream/orchestrator/internal/config"
	"github.com/GateStream/orchestrator/internal/gateerr"
	"github.com/GateStream/orchestrator/internal/httpserver"
	"github.com/GateStream/orchestrator/internal/idempotency"
	"github.com/GateStream/orchestrator/internal/lifecycle"
	"github.com/GateStream/orchestrator/internal/logger"
	"github.com/GateStream/orchestrator/internal/metrics"
	"github.com/GateStream/orchestrator/internal/platform"
	"github.com/GateStream/orchestrator/internal/purchase"
	"github.com/GateStream/orchestrator/internal/quote"
	"github.com/GateStream/orchestrator/internal/reconcile"
	"github.com/GateStream/orchestrator/internal/stripesource"
)

// Version is reported by the health endpoint and stamped on log lines.
const Version = "0.1.0"

// Config aliases the internal configuration type so embedders do not import
// internal packages.
type Config = config.Config

// LoadConfig reads configuration from the given path, applying defaults and
// GATE_ environment overrides.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// App is a fully wired orchestrator instance.
type App struct {
	cfg    *config.Config
	log    zerolog.Logger
	router chi.Router

	Platform   *platform.Client
	Broker     *access.Broker
	Tracker    *purchase.Tracker
	Executor   *quote.Executor
	Reconciler *reconcile.Reconciler
	Registry   *chain.Registry

	records   purchase.RecordStore
	lifecycle *lifecycle.Manager
}

// Option customizes App construction.
type Option func(*options)

type options struct {
	router     chi.Router
	registerer prometheus.Registerer
	source     purchase.StatusSource
}

// WithRouter mounts the orchestrator routes on an existing chi router
// instead of a fresh one.
func WithRouter(router chi.Router) Option {
	return func(o *options) { o.router = router }
}

// WithRegisterer overrides the Prometheus registerer, for hosts that run
// their own registry or embed more than one App.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

// WithStatusSource overrides the purchase status source selected by
// configuration. Used by tests and by hosts with bespoke payment backends.
func WithStatusSource(source purchase.StatusSource) Option {
	return func(o *options) { o.source = source }
}

// NewApp wires an orchestrator from configuration. The returned App owns
// its backend connections; call Close when done.
func NewApp(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("gate: nil config")
	}
	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}

	log := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Service:     "gatestream",
		Version:     Version,
		Environment: cfg.Logging.Environment,
	})

	manager := lifecycle.NewManager()
	m := metrics.New(o.registerer)
	breakers := circuitbreaker.NewManager(cfg.CircuitBreaker)
	client := platform.NewClient(cfg.Platform, breakers, log,
		platform.WithCallHook(func(operation string, duration time.Duration, err error) {
			errKind := ""
			if err != nil {
				errKind = string(gateerr.Classify(err))
			}
			m.ObserveUpstream("platform", operation, duration, errKind)
		}))

	cacheStore, err := buildCacheStore(cfg, manager)
	if err != nil {
		manager.Close()
		return nil, err
	}
	coordinator := caches.NewCoordinator(cacheStore, caches.WithInvalidationHook(m.ObserveInvalidation))

	records, err := buildRecordStore(cfg, manager)
	if err != nil {
		manager.Close()
		return nil, err
	}
	records = metrics.InstrumentRecordStore(records, recordsBackend(cfg), m)

	source := o.source
	if source == nil {
		source, err = buildStatusSource(cfg, client)
		if err != nil {
			manager.Close()
			return nil, err
		}
	}

	tracker := purchase.NewTracker(source, purchase.TrackerConfig{
		Interval:    cfg.Tracker.PollInterval.Duration,
		PollTimeout: cfg.Tracker.PollTimeout.Duration,
	},
		purchase.WithJournal(records),
		purchase.WithPollHook(m.ObservePoll),
		purchase.WithActiveHook(m.ObserveTrackerChange),
	)

	broker := access.NewBroker(client, access.BrokerConfig{
		BufferWindow: cfg.Access.BufferWindow.Duration,
		DefaultTTL:   cfg.Access.DefaultTokenTTL.Duration,
		MaxRetries:   cfg.Access.MaxRetries,
		RetryDelay:   cfg.Access.RetryDelay.Duration,
		AutoAuth:     cfg.Access.AutoAuth,
	},
		access.WithCacheHitHook(func(string) { m.ObserveTokenCacheHit() }),
		access.WithFetchHook(func(_ string, err error) {
			if err != nil {
				m.ObserveTokenRetry("fetch_failed")
			}
		}),
	)

	registry := chain.NewRegistry(chainInfos(cfg.Chains))
	metadata := chain.NewMetadataCache(client, cfg.Quote.MetadataTTL.Duration)
	executor := quote.NewExecutor(client, metadata, registry, quote.ExecutorConfig{}, log,
		quote.WithRelayer(client),
		quote.WithQuoteFetchHook(m.ObserveQuoteFetch),
		quote.WithRejectionHook(m.ObserveQuoteRejection),
		quote.WithSubmitHook(m.ObserveSubmission),
	)

	reconciler := reconcile.New(client, client, coordinator, log)

	app := &App{
		cfg:        cfg,
		log:        log,
		Platform:   client,
		Broker:     broker,
		Tracker:    tracker,
		Executor:   executor,
		Reconciler: reconciler,
		Registry:   registry,
		records:    records,
		lifecycle:  manager,
	}

	router := o.router
	if router == nil {
		router = chi.NewRouter()
	}
	httpserver.ConfigureRouter(router, cfg, app.serverDeps(cacheStore, coordinator, breakers, m), log)
	app.router = router

	return app, nil
}

func (a *App) serverDeps(cache caches.Store, coordinator *caches.Coordinator, breakers *circuitbreaker.Manager, m *metrics.Metrics) httpserver.Deps {
	return httpserver.Deps{
		Broker:           a.Broker,
		Quotes:           a.Platform,
		Executor:         a.Executor,
		Claimer:          a.Platform,
		Reconciler:       a.Reconciler,
		Access:           a.Platform,
		Tracker:          a.Tracker,
		Records:          a.records,
		Coordinator:      coordinator,
		Cache:            cache,
		Breakers:         breakers,
		IdempotencyStore: idempotency.NewMemoryStore(),
		Metrics:          m,
		Version:          Version,
	}
}

// Router returns the chi router carrying the orchestrator routes.
func (a *App) Router() chi.Router {
	return a.router
}

// Handler returns the orchestrator as a plain http.Handler.
func (a *App) Handler() http.Handler {
	return a.router
}

// Logger returns the App's root logger.
func (a *App) Logger() zerolog.Logger {
	return a.log
}

// Close releases backend connections in reverse registration order.
func (a *App) Close() error {
	return a.lifecycle.Close()
}

func buildCacheStore(cfg *config.Config, manager *lifecycle.Manager) (caches.Store, error) {
	switch cfg.Cache.Backend {
	case "", "memory":
		return caches.NewMemoryStore(), nil
	case "redis":
		store, err := caches.NewRedisStore(context.Background(), cfg.Cache.RedisAddr, cfg.Cache.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("gate: redis cache: %w", err)
		}
		manager.Register("redis_cache", store)
		return store, nil
	default:
		return nil, fmt.Errorf("gate: unknown cache backend %q", cfg.Cache.Backend)
	}
}

func buildRecordStore(cfg *config.Config, manager *lifecycle.Manager) (purchase.RecordStore, error) {
	switch cfg.Records.Backend {
	case "", "memory":
		return purchase.NewMemoryRecordStore(), nil
	case "postgres":
		store, err := purchase.NewPostgresRecordStore(cfg.Records.PostgresURL, cfg.Records.TableName)
		if err != nil {
			return nil, fmt.Errorf("gate: postgres records: %w", err)
		}
		manager.Register("postgres_records", store)
		return store, nil
	case "mongodb":
		store, err := purchase.NewMongoRecordStore(cfg.Records.MongoDBURL, cfg.Records.MongoDBDatabase, cfg.Records.TableName)
		if err != nil {
			return nil, fmt.Errorf("gate: mongodb records: %w", err)
		}
		manager.Register("mongodb_records", store)
		return store, nil
	default:
		return nil, fmt.Errorf("gate: unknown records backend %q", cfg.Records.Backend)
	}
}

func buildStatusSource(cfg *config.Config, client *platform.Client) (purchase.StatusSource, error) {
	switch cfg.Tracker.StatusSource {
	case "", "platform":
		return client, nil
	case "stripe":
		if cfg.Stripe.SecretKey == "" {
			return nil, fmt.Errorf("gate: stripe status source requires stripe.secret_key")
		}
		return stripesource.New(cfg.Stripe), nil
	default:
		return nil, fmt.Errorf("gate: unknown status source %q", cfg.Tracker.StatusSource)
	}
}

func recordsBackend(cfg *config.Config) string {
	if cfg.Records.Backend == "" {
		return "memory"
	}
	return cfg.Records.Backend
}

func chainInfos(chains []config.ChainConfig) []chain.Info {
	infos := make([]chain.Info, 0, len(chains))
	for _, c := range chains {
		infos = append(infos, chain.Info{
			ChainID:     c.ChainID,
			Name:        c.Name,
			ExplorerURL: c.ExplorerURL,
		})
	}
	return infos
}
