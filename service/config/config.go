package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported networks.
const (
	NetworkPublic  = "public"
	NetworkTestnet = "testnet"
)

// MinPollInterval is the shortest interval an account watch may poll at.
const MinPollInterval = 10 * time.Second

var defaultHorizonURLs = map[string]string{
	NetworkPublic:  "https://horizon.stellar.org",
	NetworkTestnet: "https://horizon-testnet.stellar.org",
}

// Config holds all application configuration loaded from environment variables.
// All fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr         string
	MetricsAddr        string
	LogLevel           string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	TrustedProxies     []netip.Prefix

	// Stellar configuration
	Network           string
	HorizonURL        string
	HorizonTimeout    time.Duration
	HorizonMaxRetries int

	// Explanation cache
	CacheTTL  time.Duration
	CacheSize int

	// Database configuration; empty disables operator labels and watches
	DatabaseURL         string
	LabelReloadInterval time.Duration

	// NATS configuration; empty disables the explanation stream
	NATSURL string

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string

	// Watch configuration
	DefaultPollInterval time.Duration
	WebhookTimeout      time.Duration
}

// Load reads configuration from environment variables and validates it.
// Every problem is reported at once rather than one at a time.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.MetricsAddr = getEnvOrDefault("METRICS_ADDR", ":9091")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.CORSAllowedOrigins = splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"))

	rps, err := parseFloat("RATE_LIMIT_RPS", 20)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.RateLimitRPS = rps

	burst, err := parseInt("RATE_LIMIT_BURST", 40)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.RateLimitBurst = burst

	// only these peers may set X-Forwarded-For; empty trusts no one
	if cfg.TrustedProxies, err = parsePrefixes("TRUSTED_PROXIES"); err != nil {
		errs = append(errs, err)
	}

	// Stellar configuration
	cfg.Network = strings.ToLower(getEnvOrDefault("STELLAR_NETWORK", NetworkTestnet))
	cfg.HorizonURL = getEnvOrDefault("HORIZON_URL", defaultHorizonURLs[cfg.Network])

	if cfg.HorizonTimeout, err = parseDuration("HORIZON_TIMEOUT", "10s"); err != nil {
		errs = append(errs, err)
	}
	if cfg.HorizonMaxRetries, err = parseInt("HORIZON_MAX_RETRIES", 2); err != nil {
		errs = append(errs, err)
	}

	// Explanation cache
	if cfg.CacheTTL, err = parseDuration("CACHE_TTL", "5m"); err != nil {
		errs = append(errs, err)
	}
	if cfg.CacheSize, err = parseInt("CACHE_SIZE", 1024); err != nil {
		errs = append(errs, err)
	}

	// Database configuration
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.LabelReloadInterval, err = parseDuration("LABEL_RELOAD_INTERVAL", "1m"); err != nil {
		errs = append(errs, err)
	}

	// NATS configuration
	cfg.NATSURL = os.Getenv("NATS_URL")

	// Temporal configuration
	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "stellar-explain")

	// Watch configuration
	if cfg.DefaultPollInterval, err = parseDuration("WATCH_DEFAULT_POLL_INTERVAL", "1m"); err != nil {
		errs = append(errs, err)
	}
	if cfg.WebhookTimeout, err = parseDuration("WEBHOOK_TIMEOUT", "10s"); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.Network != NetworkPublic && c.Network != NetworkTestnet {
		errs = append(errs, fmt.Errorf("STELLAR_NETWORK must be %q or %q, got %q", NetworkPublic, NetworkTestnet, c.Network))
	}

	if c.HorizonURL == "" {
		errs = append(errs, fmt.Errorf("HORIZON_URL is required"))
	} else if !strings.HasPrefix(c.HorizonURL, "http://") && !strings.HasPrefix(c.HorizonURL, "https://") {
		errs = append(errs, fmt.Errorf("HORIZON_URL must be an http(s) URL, got %q", c.HorizonURL))
	}

	if c.HorizonTimeout <= 0 {
		errs = append(errs, fmt.Errorf("HORIZON_TIMEOUT must be positive"))
	}

	if c.HorizonMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("HORIZON_MAX_RETRIES cannot be negative"))
	}

	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_TTL must be positive"))
	}

	if c.CacheSize < 1 {
		errs = append(errs, fmt.Errorf("CACHE_SIZE must be at least 1"))
	}

	if c.RateLimitRPS <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS must be positive"))
	}

	if c.RateLimitBurst < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_BURST must be at least 1"))
	}

	if c.DefaultPollInterval < MinPollInterval {
		errs = append(errs, fmt.Errorf("WATCH_DEFAULT_POLL_INTERVAL must be at least %v", MinPollInterval))
	}

	if c.WebhookTimeout <= 0 {
		errs = append(errs, fmt.Errorf("WEBHOOK_TIMEOUT must be positive"))
	}

	if c.LabelReloadInterval <= 0 {
		errs = append(errs, fmt.Errorf("LABEL_RELOAD_INTERVAL must be positive"))
	}

	if c.TemporalHost == "" {
		errs = append(errs, fmt.Errorf("TEMPORAL_HOST is required"))
	}

	if c.TemporalNamespace == "" {
		errs = append(errs, fmt.Errorf("TEMPORAL_NAMESPACE is required"))
	}

	if c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TEMPORAL_TASK_QUEUE is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// WatchesEnabled reports whether the watch endpoints and workflow can run.
func (c *Config) WatchesEnabled() bool {
	return c.DatabaseURL != ""
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

func parseFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q: %w", key, value, err)
	}
	return result, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parsePrefixes reads a comma-separated list of CIDRs or bare IPs. A bare IP
// becomes a single-address prefix.
func parsePrefixes(key string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, part := range splitList(os.Getenv(key)) {
		if strings.Contains(part, "/") {
			prefix, err := netip.ParsePrefix(part)
			if err != nil {
				return nil, fmt.Errorf("%s: invalid CIDR %q: %w", key, part, err)
			}
			out = append(out, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(part)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid IP %q: %w", key, part, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}
