package config

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SERVER_ADDR", "METRICS_ADDR", "LOG_LEVEL", "CORS_ALLOWED_ORIGINS",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "STELLAR_NETWORK", "HORIZON_URL",
		"HORIZON_TIMEOUT", "HORIZON_MAX_RETRIES", "CACHE_TTL", "CACHE_SIZE",
		"DATABASE_URL", "LABEL_RELOAD_INTERVAL", "NATS_URL", "TEMPORAL_HOST",
		"TEMPORAL_NAMESPACE", "TEMPORAL_TASK_QUEUE", "WATCH_DEFAULT_POLL_INTERVAL",
		"WEBHOOK_TIMEOUT", "TRUSTED_PROXIES",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, ":9091", cfg.MetricsAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, NetworkTestnet, cfg.Network)
	assert.Equal(t, "https://horizon-testnet.stellar.org", cfg.HorizonURL)
	assert.Equal(t, 10*time.Second, cfg.HorizonTimeout)
	assert.Equal(t, 2, cfg.HorizonMaxRetries)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 1024, cfg.CacheSize)
	assert.Equal(t, 20.0, cfg.RateLimitRPS)
	assert.Equal(t, 40, cfg.RateLimitBurst)
	assert.Equal(t, "stellar-explain", cfg.TemporalTaskQueue)
	assert.Equal(t, time.Minute, cfg.DefaultPollInterval)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.TrustedProxies)
	assert.False(t, cfg.WatchesEnabled())
}

func TestLoad_PublicNetworkDefaultsHorizon(t *testing.T) {
	clearEnv(t)
	t.Setenv("STELLAR_NETWORK", "PUBLIC")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, NetworkPublic, cfg.Network)
	assert.Equal(t, "https://horizon.stellar.org", cfg.HorizonURL)
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("HORIZON_URL", "http://localhost:8000")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("NATS_URL", "nats://nats.example.com:4222")
	t.Setenv("WATCH_DEFAULT_POLL_INTERVAL", "30s")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "http://localhost:8000", cfg.HorizonURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "nats://nats.example.com:4222", cfg.NATSURL)
	assert.Equal(t, 30*time.Second, cfg.DefaultPollInterval)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.True(t, cfg.WatchesEnabled())
}

func TestLoad_TrustedProxies(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.7 ,fd00::1/64")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.168.1.7/32"),
		netip.MustParsePrefix("fd00::/64"),
	}, cfg.TrustedProxies)

	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,proxy.internal")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRUSTED_PROXIES")
}

func TestLoad_CollectsAllErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("HORIZON_TIMEOUT", "soon")
	t.Setenv("CACHE_SIZE", "many")

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "HORIZON_TIMEOUT")
	assert.Contains(t, err.Error(), "CACHE_SIZE")
}

func TestLoad_UnknownNetwork(t *testing.T) {
	clearEnv(t)
	t.Setenv("STELLAR_NETWORK", "futurenet")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STELLAR_NETWORK")
	assert.Contains(t, err.Error(), "HORIZON_URL is required")
}

func validConfig() *Config {
	return &Config{
		Network:             NetworkTestnet,
		HorizonURL:          "https://horizon-testnet.stellar.org",
		HorizonTimeout:      10 * time.Second,
		HorizonMaxRetries:   2,
		CacheTTL:            time.Minute,
		CacheSize:           10,
		RateLimitRPS:        1,
		RateLimitBurst:      1,
		DefaultPollInterval: time.Minute,
		WebhookTimeout:      time.Second,
		LabelReloadInterval: time.Minute,
		TemporalHost:        "localhost:7233",
		TemporalNamespace:   "default",
		TemporalTaskQueue:   "q",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"poll interval too short", func(c *Config) { c.DefaultPollInterval = 5 * time.Second }, "at least 10s"},
		{"non http horizon", func(c *Config) { c.HorizonURL = "ftp://horizon" }, "http(s) URL"},
		{"negative retries", func(c *Config) { c.HorizonMaxRetries = -1 }, "cannot be negative"},
		{"empty task queue", func(c *Config) { c.TemporalTaskQueue = "" }, "TEMPORAL_TASK_QUEUE is required"},
		{"zero burst", func(c *Config) { c.RateLimitBurst = 0 }, "RATE_LIMIT_BURST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMustLoad_Panics(t *testing.T) {
	clearEnv(t)
	t.Setenv("STELLAR_NETWORK", "nope")

	assert.Panics(t, func() {
		MustLoad()
	})
}

func TestMustLoad_Success(t *testing.T) {
	clearEnv(t)

	assert.NotPanics(t, func() {
		assert.NotNil(t, MustLoad())
	})
}
