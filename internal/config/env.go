package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables take precedence over YAML configuration.
// All env vars use the GATE_ prefix for namespace isolation.
func (c *Config) applyEnvOverrides() {
	setIfEnv(&c.Server.Address, "GATE_SERVER_ADDRESS")
	setIfEnv(&c.Server.MetricsAPIKey, "GATE_METRICS_API_KEY")

	setIfEnv(&c.Logging.Level, "GATE_LOG_LEVEL")
	setIfEnv(&c.Logging.Format, "GATE_LOG_FORMAT")
	setIfEnv(&c.Logging.Environment, "GATE_ENVIRONMENT")

	setIfEnv(&c.Platform.BaseURL, "GATE_PLATFORM_BASE_URL")
	setIfEnv(&c.Platform.APIKey, "GATE_PLATFORM_API_KEY")
	setDurationIfEnv(&c.Platform.Timeout, "GATE_PLATFORM_TIMEOUT")

	setDurationIfEnv(&c.Access.BufferWindow, "GATE_ACCESS_BUFFER_WINDOW")
	setDurationIfEnv(&c.Access.DefaultTokenTTL, "GATE_ACCESS_DEFAULT_TOKEN_TTL")
	setIntIfEnv(&c.Access.MaxRetries, "GATE_ACCESS_MAX_RETRIES")
	setDurationIfEnv(&c.Access.RetryDelay, "GATE_ACCESS_RETRY_DELAY")
	setBoolIfEnv(&c.Access.AutoAuth, "GATE_ACCESS_AUTO_AUTH")

	setDurationIfEnv(&c.Tracker.PollInterval, "GATE_TRACKER_POLL_INTERVAL")
	setDurationIfEnv(&c.Tracker.PollTimeout, "GATE_TRACKER_POLL_TIMEOUT")
	setIfEnv(&c.Tracker.StatusSource, "GATE_TRACKER_STATUS_SOURCE")

	setIntIfEnv(&c.Quote.ValidSeconds, "GATE_QUOTE_VALID_SECONDS")
	setDurationIfEnv(&c.Quote.MetadataTTL, "GATE_QUOTE_METADATA_TTL")
	setBoolIfEnv(&c.Quote.RelayerPath, "GATE_QUOTE_RELAYER_PATH")
	setBoolIfEnv(&c.Quote.SkipRelayQuote, "GATE_QUOTE_SKIP_RELAY_QUOTE")

	setIfEnv(&c.Stripe.SecretKey, "GATE_STRIPE_SECRET_KEY")

	setIfEnv(&c.Cache.Backend, "GATE_CACHE_BACKEND")
	setIfEnv(&c.Cache.RedisAddr, "GATE_CACHE_REDIS_ADDR")
	setIntIfEnv(&c.Cache.RedisDB, "GATE_CACHE_REDIS_DB")
	setDurationIfEnv(&c.Cache.TTL, "GATE_CACHE_TTL")

	setIfEnv(&c.Records.Backend, "GATE_RECORDS_BACKEND")
	setIfEnv(&c.Records.PostgresURL, "GATE_RECORDS_POSTGRES_URL")
	setIfEnv(&c.Records.MongoDBURL, "GATE_RECORDS_MONGODB_URL")
	setIfEnv(&c.Records.MongoDBDatabase, "GATE_RECORDS_MONGODB_DATABASE")
	setIfEnv(&c.Records.TableName, "GATE_RECORDS_TABLE_NAME")

	setBoolIfEnv(&c.RateLimit.Enabled, "GATE_RATE_LIMIT_ENABLED")
	setIntIfEnv(&c.RateLimit.RequestsPerMinute, "GATE_RATE_LIMIT_RPM")

	setBoolIfEnv(&c.CircuitBreaker.Enabled, "GATE_CIRCUIT_BREAKER_ENABLED")
}

// setIfEnv sets a string target to the environment variable value if it exists.
func setIfEnv(target *string, key string) {
	if val := os.Getenv(key); val != "" {
		*target = val
	}
}

// setBoolIfEnv sets a boolean target from an environment variable.
// Accepts "1", "true", "TRUE", "True" as true values.
func setBoolIfEnv(target *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v == "1" || strings.EqualFold(v, "true")
	}
}

// setDurationIfEnv sets a Duration target from an environment variable,
// parsing values like "5m", "120s", "1h30m".
func setDurationIfEnv(target *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			*target = Duration{Duration: dur}
		}
	}
}

// setIntIfEnv sets an int target from an environment variable.
func setIntIfEnv(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}
