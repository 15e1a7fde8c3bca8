package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support string based YAML decoding.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration values expressed as Go-style strings or numbers interpreted as seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		raw := strings.TrimSpace(value.Value)
		if raw == "" {
			d.Duration = 0
			return nil
		}
		parsed, err := time.ParseDuration(raw)
		if err == nil {
			d.Duration = parsed
			return nil
		}
		secs, convErr := time.ParseDuration(fmt.Sprintf("%ss", raw))
		if convErr == nil {
			d.Duration = secs
			return nil
		}
		return fmt.Errorf("invalid duration value %q: %w", raw, err)
	default:
		return fmt.Errorf("unsupported duration node kind: %v", value.Kind)
	}
}

// MarshalYAML renders the duration as a string to keep config edits human-friendly.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds application level configuration aggregated from file and environment variables.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Logging        LoggingConfig        `yaml:"logging"`
	Platform       PlatformConfig       `yaml:"platform"`
	Access         AccessConfig         `yaml:"access"`
	Tracker        TrackerConfig        `yaml:"tracker"`
	Quote          QuoteConfig          `yaml:"quote"`
	Chains         []ChainConfig        `yaml:"chains"`
	Stripe         StripeConfig         `yaml:"stripe"`
	Cache          CacheConfig          `yaml:"cache"`
	Records        RecordsConfig        `yaml:"records"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ServerConfig holds HTTP facade configuration.
type ServerConfig struct {
	Address            string   `yaml:"address"`
	ReadTimeout        Duration `yaml:"read_timeout"`
	WriteTimeout       Duration `yaml:"write_timeout"`
	IdleTimeout        Duration `yaml:"idle_timeout"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	MetricsAPIKey      string   `yaml:"metrics_api_key"` // optional key guarding /metrics
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level       string `yaml:"level"`  // debug, info, warn, error
	Format      string `yaml:"format"` // json, console
	Environment string `yaml:"environment"`
}

// PlatformConfig points at the backend that owns purchases, access facts,
// quotes, and the relayer.
type PlatformConfig struct {
	BaseURL string   `yaml:"base_url"`
	APIKey  string   `yaml:"api_key"`
	Timeout Duration `yaml:"timeout"`
}

// AccessConfig tunes the access token broker.
type AccessConfig struct {
	BufferWindow    Duration `yaml:"buffer_window"`     // token considered stale this close to expiry
	DefaultTokenTTL Duration `yaml:"default_token_ttl"` // assumed TTL when upstream omits expiry
	MaxRetries      int      `yaml:"max_retries"`       // NoAccess retries while entitlement lags payment
	RetryDelay      Duration `yaml:"retry_delay"`
	AutoAuth        bool     `yaml:"auto_auth"` // attempt re-authentication on Unauthorized
}

// TrackerConfig tunes purchase status polling.
type TrackerConfig struct {
	PollInterval Duration `yaml:"poll_interval"`
	PollTimeout  Duration `yaml:"poll_timeout"`  // per-poll request budget
	StatusSource string   `yaml:"status_source"` // "platform" or "stripe"
}

// QuoteConfig tunes the quote-execute pipeline.
type QuoteConfig struct {
	ValidSeconds   int      `yaml:"valid_seconds"`    // requested quote validity window
	MetadataTTL    Duration `yaml:"metadata_ttl"`     // contract metadata staleness window
	RelayerPath    bool     `yaml:"relayer_path"`     // submit via relayer instead of wallet
	SkipRelayQuote bool     `yaml:"skip_relay_quote"` // let the relayer quote internally
}

// ChainConfig describes one supported execution chain.
type ChainConfig struct {
	ChainID     int64  `yaml:"chain_id"`
	Name        string `yaml:"name"`
	ExplorerURL string `yaml:"explorer_url"` // tx URL template root, e.g. https://basescan.org
}

// StripeConfig enables the Stripe-backed purchase status source.
type StripeConfig struct {
	SecretKey string `yaml:"secret_key"`
}

// CacheConfig selects the dependent-list cache backend.
type CacheConfig struct {
	Backend   string   `yaml:"backend"` // "memory" or "redis"
	RedisAddr string   `yaml:"redis_addr"`
	RedisDB   int      `yaml:"redis_db"`
	TTL       Duration `yaml:"ttl"`
}

// RecordsConfig selects where observed purchase records are journaled.
type RecordsConfig struct {
	Backend         string `yaml:"backend"` // "memory", "postgres", or "mongodb"
	PostgresURL     string `yaml:"postgres_url"`
	MongoDBURL      string `yaml:"mongodb_url"`
	MongoDBDatabase string `yaml:"mongodb_database"`
	TableName       string `yaml:"table_name"` // postgres table / mongo collection
}

// RateLimitConfig throttles the facade.
type RateLimitConfig struct {
	Enabled           bool     `yaml:"enabled"`
	RequestsPerMinute int      `yaml:"requests_per_minute"`
	WindowLength      Duration `yaml:"window_length"`
}

// CircuitBreakerConfig guards the upstream collaborators.
type CircuitBreakerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Platform BreakerConfig `yaml:"platform"`
	Stripe   BreakerConfig `yaml:"stripe"`
}

// BreakerConfig configures a single circuit breaker.
type BreakerConfig struct {
	MaxRequests         uint32   `yaml:"max_requests"`
	Interval            Duration `yaml:"interval"`
	Timeout             Duration `yaml:"timeout"`
	ConsecutiveFailures uint32   `yaml:"consecutive_failures"`
	FailureRatio        float64  `yaml:"failure_ratio"`
	MinRequests         uint32   `yaml:"min_requests"`
}
