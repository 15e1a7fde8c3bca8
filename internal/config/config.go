package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if err := cfg.parseFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.finalize(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      ":8080",
			ReadTimeout:  Duration{Duration: 15 * time.Second},
			WriteTimeout: Duration{Duration: 15 * time.Second},
			IdleTimeout:  Duration{Duration: 60 * time.Second},
		},
		Platform: PlatformConfig{
			Timeout: Duration{Duration: 10 * time.Second},
		},
		Access: AccessConfig{
			BufferWindow:    Duration{Duration: 5 * time.Minute},
			DefaultTokenTTL: Duration{Duration: time.Hour},
			MaxRetries:      3,
			RetryDelay:      Duration{Duration: 3 * time.Second},
			AutoAuth:        true,
		},
		Tracker: TrackerConfig{
			PollInterval: Duration{Duration: 4 * time.Second},
			PollTimeout:  Duration{Duration: 10 * time.Second},
			StatusSource: "platform",
		},
		Quote: QuoteConfig{
			ValidSeconds: 300,
			MetadataTTL:  Duration{Duration: 5 * time.Minute},
		},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     Duration{Duration: 10 * time.Minute},
		},
		Records: RecordsConfig{
			Backend:   "memory",
			TableName: "purchase_records",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 120,
			WindowLength:      Duration{Duration: time.Minute},
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:  true,
			Platform: defaultBreaker(),
			Stripe:   defaultBreaker(),
		},
	}
}

func defaultBreaker() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         1,
		Interval:            Duration{Duration: 60 * time.Second},
		Timeout:             Duration{Duration: 30 * time.Second},
		ConsecutiveFailures: 5,
		FailureRatio:        0.5,
		MinRequests:         10,
	}
}

// parseFile loads YAML config from disk into the receiver.
func (c *Config) parseFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	return nil
}

// finalize applies defaults and validates the configuration.
func (c *Config) finalize() error {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Environment == "" {
		c.Logging.Environment = "production"
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Access.MaxRetries < 0 {
		return fmt.Errorf("access.max_retries must not be negative")
	}
	if c.Tracker.PollInterval.Duration <= 0 {
		return fmt.Errorf("tracker.poll_interval must be positive")
	}

	switch c.Tracker.StatusSource {
	case "", "platform":
		c.Tracker.StatusSource = "platform"
	case "stripe":
		if c.Stripe.SecretKey == "" {
			return fmt.Errorf("tracker.status_source=stripe requires stripe.secret_key")
		}
	default:
		return fmt.Errorf("unknown tracker.status_source %q", c.Tracker.StatusSource)
	}

	switch c.Cache.Backend {
	case "", "memory":
		c.Cache.Backend = "memory"
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.backend=redis requires cache.redis_addr")
		}
	default:
		return fmt.Errorf("unknown cache.backend %q", c.Cache.Backend)
	}

	switch c.Records.Backend {
	case "", "memory":
		c.Records.Backend = "memory"
	case "postgres":
		if c.Records.PostgresURL == "" {
			return fmt.Errorf("records.backend=postgres requires records.postgres_url")
		}
	case "mongodb":
		if c.Records.MongoDBURL == "" {
			return fmt.Errorf("records.backend=mongodb requires records.mongodb_url")
		}
		if c.Records.MongoDBDatabase == "" {
			c.Records.MongoDBDatabase = "gatestream"
		}
	default:
		return fmt.Errorf("unknown records.backend %q", c.Records.Backend)
	}
	if c.Records.TableName == "" {
		c.Records.TableName = "purchase_records"
	}

	seen := make(map[int64]bool, len(c.Chains))
	for _, chain := range c.Chains {
		if chain.ChainID <= 0 {
			return fmt.Errorf("chain %q has invalid chain_id %d", chain.Name, chain.ChainID)
		}
		if seen[chain.ChainID] {
			return fmt.Errorf("duplicate chain_id %d", chain.ChainID)
		}
		seen[chain.ChainID] = true
	}

	if c.Platform.BaseURL == "" {
		return fmt.Errorf("platform.base_url is required")
	}

	return nil
}
