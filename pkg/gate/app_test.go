package gate

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/GateStream/orchestrator/internal/config"
)

func testConfig(platformURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Address: ":0",
		},
		Platform: config.PlatformConfig{
			BaseURL: platformURL,
			Timeout: config.Duration{Duration: time.Second},
		},
		Tracker: config.TrackerConfig{
			PollInterval: config.Duration{Duration: 10 * time.Millisecond},
			PollTimeout:  config.Duration{Duration: time.Second},
			StatusSource: "platform",
		},
		Cache:   config.CacheConfig{Backend: "memory"},
		Records: config.RecordsConfig{Backend: "memory"},
	}
}

func TestNewAppServesHealth(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	defer upstream.Close()

	app, err := NewApp(testConfig(upstream.URL), WithRegisterer(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	defer app.Close()

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestNewAppMountsOnProvidedRouter(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	defer upstream.Close()

	router := chi.NewRouter()
	router.Get("/host", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	app, err := NewApp(testConfig(upstream.URL),
		WithRouter(router),
		WithRegisterer(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	defer app.Close()

	for path, want := range map[string]int{
		"/host":    http.StatusNoContent,
		"/healthz": http.StatusOK,
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != want {
			t.Errorf("GET %s = %d, want %d", path, rec.Code, want)
		}
	}
}

func TestNewAppRejectsUnknownBackends(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"cache", func(c *config.Config) { c.Cache.Backend = "memcached" }},
		{"records", func(c *config.Config) { c.Records.Backend = "sqlite" }},
		{"status source", func(c *config.Config) { c.Tracker.StatusSource = "paypal" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig("http://localhost:0")
			tc.mutate(cfg)
			if _, err := NewApp(cfg, WithRegisterer(prometheus.NewRegistry())); err == nil {
				t.Fatal("expected wiring error")
			}
		})
	}
}

func TestNewAppNilConfig(t *testing.T) {
	if _, err := NewApp(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}
