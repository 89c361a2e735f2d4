package config

import (
	"fmt"
	"net/url"
	"slices"
	"time"

	pkgconfig "github.com/utafrali/farmmarket/pkg/config"
	"github.com/utafrali/farmmarket/pkg/database"
	"github.com/utafrali/farmmarket/pkg/middleware"
	"github.com/utafrali/farmmarket/pkg/tracing"
)

// Storage modes for the cart store and review thread cache.
const (
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

// Order message handoff modes.
const (
	HandoffLog     = "log"
	HandoffWebhook = "webhook"
)

// Config holds all configuration for the marketplace API.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Version     string `env:"SERVICE_VERSION" envDefault:"dev"`

	// HTTP server
	HTTPPort        int           `env:"FARMMARKET_HTTP_PORT" envDefault:"8080"`
	RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	PprofCIDRs      []string      `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32,::1/128" envSeparator:","`
	CatalogMaxAge   int           `env:"CATALOG_CACHE_MAX_AGE" envDefault:"60"`
	WriteRateLimit  float64       `env:"WRITE_RATE_LIMIT_RPS" envDefault:"2"`
	WriteRateBurst  int           `env:"WRITE_RATE_LIMIT_BURST" envDefault:"10"`

	// PostgreSQL
	PostgresHost       string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort       int           `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser       string        `env:"POSTGRES_USER" envDefault:"farmmarket"`
	PostgresPass       string        `env:"POSTGRES_PASSWORD" envDefault:"farmmarket"`
	PostgresDB         string        `env:"POSTGRES_DB" envDefault:"farmmarket"`
	PostgresSSL        string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	PostgresMaxConns   int32         `env:"POSTGRES_MAX_CONNS" envDefault:"20"`
	SlowQueryThreshold time.Duration `env:"SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// Cart and review cache storage
	StorageMode    string        `env:"STORAGE_MODE" envDefault:"redis"`
	RedisURL       string        `env:"REDIS_URL"`
	RedisHost      string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort      int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass      string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	CartTTL        time.Duration `env:"CART_TTL" envDefault:"720h"`
	ThreadCacheTTL time.Duration `env:"THREAD_CACHE_TTL" envDefault:"10m"`

	// Kafka. Events are disabled when no brokers are configured.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// Order messaging
	Currency        string        `env:"CURRENCY" envDefault:"USD"`
	ChatBaseURL     string        `env:"CHAT_BASE_URL" envDefault:"https://wa.me"`
	ChatPhone       string        `env:"CHAT_PHONE"`
	HandoffMode     string        `env:"ORDER_HANDOFF" envDefault:"log"`
	WebhookURL      string        `env:"ORDER_WEBHOOK_URL"`
	HandoffTimeout  time.Duration `env:"ORDER_HANDOFF_TIMEOUT" envDefault:"10s"`
	WebhookRetries  int           `env:"ORDER_WEBHOOK_RETRIES" envDefault:"2"`
	BreakerFailures uint32        `env:"ORDER_WEBHOOK_BREAKER_FAILURES" envDefault:"5"`

	// Tracing
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load farmmarket config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if !slices.Contains([]string{StorageRedis, StorageMemory}, c.StorageMode) {
		return fmt.Errorf("STORAGE_MODE must be %q or %q, got %q", StorageRedis, StorageMemory, c.StorageMode)
	}
	if c.CartTTL < 0 || c.ThreadCacheTTL < 0 {
		return fmt.Errorf("CART_TTL and THREAD_CACHE_TTL must not be negative")
	}
	switch c.HandoffMode {
	case HandoffLog:
	case HandoffWebhook:
		u, err := url.Parse(c.WebhookURL)
		if c.WebhookURL == "" || err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("ORDER_WEBHOOK_URL must be an absolute URL when ORDER_HANDOFF=%s", HandoffWebhook)
		}
	default:
		return fmt.Errorf("ORDER_HANDOFF must be %q or %q, got %q", HandoffLog, HandoffWebhook, c.HandoffMode)
	}
	if c.WriteRateLimit < 0 || c.WriteRateBurst < 0 {
		return fmt.Errorf("WRITE_RATE_LIMIT_RPS and WRITE_RATE_LIMIT_BURST must not be negative")
	}
	if c.HandoffTimeout <= 0 {
		return fmt.Errorf("ORDER_HANDOFF_TIMEOUT must be positive")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %v", c.OTELSampleRate)
	}
	if c.Currency == "" {
		return fmt.Errorf("CURRENCY is required")
	}
	return nil
}

// Postgres returns the connection pool settings.
func (c *Config) Postgres() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPass
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSL
	if c.PostgresMaxConns > 0 {
		pg.MaxConns = c.PostgresMaxConns
	}
	return pg
}

// Redis returns the client settings. REDIS_URL wins over host and port.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		URL:      c.RedisURL,
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPass,
		DB:       c.RedisDB,
	}
}

// Tracing returns the tracer settings for serviceName.
func (c *Config) Tracing(serviceName string) tracing.Config {
	tc := tracing.DefaultConfig(serviceName)
	tc.ServiceVersion = c.Version
	tc.Environment = c.Environment
	tc.OTLPEndpoint = c.OTELEndpoint
	tc.SampleRate = c.OTELSampleRate
	tc.Enabled = c.OTELEnabled
	return tc
}

// CORS returns the CORS settings.
func (c *Config) CORS() middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = c.CORSOrigins
	return cors
}

// EventsEnabled reports whether a Kafka producer should be started.
func (c *Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
