package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/utafrali/ReviewPulse/pkg/config"
	"github.com/utafrali/ReviewPulse/pkg/httpclient"
)

// Config holds all configuration for the review service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort              int `env:"REVIEW_HTTP_PORT" envDefault:"8014"`
	RequestTimeoutSeconds int `env:"REVIEW_REQUEST_TIMEOUT_SECONDS" envDefault:"30"`

	// PostgreSQL (store directory)
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"reviewpulse"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"reviewpulse_secret"`
	PostgresDB   string `env:"REVIEW_DB_NAME" envDefault:"review_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis (token store)
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	TokenTTLHours int    `env:"TOKEN_TTL_HOURS" envDefault:"720"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// External business directory and its OAuth endpoint
	DirectoryAPIURL   string `env:"DIRECTORY_API_URL" envDefault:"https://mybusiness.googleapis.com/v4"`
	OAuthTokenURL     string `env:"OAUTH_TOKEN_URL" envDefault:"https://oauth2.googleapis.com/token"`
	OAuthClientID     string `env:"OAUTH_CLIENT_ID"`
	OAuthClientSecret string `env:"OAUTH_CLIENT_SECRET"`

	// Review pipeline
	FetchConcurrency           int     `env:"FETCH_CONCURRENCY" envDefault:"5"`
	StoreFetchTimeoutSeconds   int     `env:"STORE_FETCH_TIMEOUT_SECONDS" envDefault:"25"`
	UpstreamTimeoutSeconds     int     `env:"UPSTREAM_TIMEOUT_SECONDS" envDefault:"15"`
	UpstreamMaxRetries         int     `env:"UPSTREAM_MAX_RETRIES" envDefault:"0"`
	UpstreamRPS                float64 `env:"UPSTREAM_RPS" envDefault:"10"`
	UpstreamBurst              int     `env:"UPSTREAM_BURST" envDefault:"5"`
	TokenRefreshTimeoutSeconds int     `env:"TOKEN_REFRESH_TIMEOUT_SECONDS" envDefault:"15"`
	TokenExpirySkewSeconds     int     `env:"TOKEN_EXPIRY_SKEW_SECONDS" envDefault:"60"`
	RefreshRetryBackoffMs      int     `env:"REFRESH_RETRY_BACKOFF_MS" envDefault:"0"`

	// Circuit breaker around the directory API
	CBFailureRatio   float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests    uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`
	CBTimeoutSeconds int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`

	// Identity. Empty trusts the gateway X-User-ID header.
	JWTSecret string `env:"JWT_SECRET"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation). Empty disables them.
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load review config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return errors.New("POSTGRES_HOST is required")
	}
	if c.RedisHost == "" {
		return errors.New("REDIS_HOST is required")
	}
	if len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if err := requireURL("DIRECTORY_API_URL", c.DirectoryAPIURL); err != nil {
		return err
	}
	if err := requireURL("OAUTH_TOKEN_URL", c.OAuthTokenURL); err != nil {
		return err
	}
	if c.FetchConcurrency < 1 || c.FetchConcurrency > 50 {
		return fmt.Errorf("FETCH_CONCURRENCY must be between 1 and 50, got %d", c.FetchConcurrency)
	}
	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("REVIEW_REQUEST_TIMEOUT_SECONDS must be > 0, got %d", c.RequestTimeoutSeconds)
	}
	if c.UpstreamTimeoutSeconds <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT_SECONDS must be > 0, got %d", c.UpstreamTimeoutSeconds)
	}
	if c.UpstreamMaxRetries < 0 {
		return fmt.Errorf("UPSTREAM_MAX_RETRIES must be >= 0, got %d", c.UpstreamMaxRetries)
	}
	// A hung store must hit its own deadline, and one directory call must fit
	// in it, before the request deadline fails every store at once.
	if c.StoreFetchTimeoutSeconds <= 0 || c.StoreFetchTimeoutSeconds >= c.RequestTimeoutSeconds {
		return fmt.Errorf("STORE_FETCH_TIMEOUT_SECONDS must be > 0 and below REVIEW_REQUEST_TIMEOUT_SECONDS (%d), got %d",
			c.RequestTimeoutSeconds, c.StoreFetchTimeoutSeconds)
	}
	if worst := c.DirectoryHTTPConfig().MaxElapsed(); worst >= c.StoreFetchTimeout() {
		return fmt.Errorf("UPSTREAM_TIMEOUT_SECONDS x (UPSTREAM_MAX_RETRIES+1) plus backoff is %s, must be below STORE_FETCH_TIMEOUT_SECONDS (%s)",
			worst, c.StoreFetchTimeout())
	}
	if c.UpstreamRPS < 0 {
		return fmt.Errorf("UPSTREAM_RPS must be >= 0, got %f", c.UpstreamRPS)
	}
	if c.TokenRefreshTimeoutSeconds <= 0 {
		return fmt.Errorf("TOKEN_REFRESH_TIMEOUT_SECONDS must be > 0, got %d", c.TokenRefreshTimeoutSeconds)
	}
	if c.TokenTTLHours <= 0 {
		return fmt.Errorf("TOKEN_TTL_HOURS must be > 0, got %d", c.TokenTTLHours)
	}
	if c.RefreshRetryBackoffMs < 0 {
		return fmt.Errorf("REFRESH_RETRY_BACKOFF_MS must be >= 0, got %d", c.RefreshRetryBackoffMs)
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1.0 {
		return fmt.Errorf("CB_FAILURE_RATIO must be in (0, 1], got %f", c.CBFailureRatio)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

func requireURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
	}
	return nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}

// RequestTimeout bounds a whole inbound request, store fan-out included.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// StoreFetchTimeout bounds the directory calls made for a single store.
func (c *Config) StoreFetchTimeout() time.Duration {
	return time.Duration(c.StoreFetchTimeoutSeconds) * time.Second
}

// DirectoryHTTPConfig is the transport configuration of the directory client.
func (c *Config) DirectoryHTTPConfig() httpclient.Config {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = c.UpstreamTimeout()
	cfg.MaxRetries = c.UpstreamMaxRetries
	cfg.RateLimit = c.UpstreamRPS
	cfg.Burst = c.UpstreamBurst
	return cfg
}

// UpstreamTimeout is the per-call deadline for directory requests.
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutSeconds) * time.Second
}

// TokenRefreshTimeout bounds a single refresh grant.
func (c *Config) TokenRefreshTimeout() time.Duration {
	return time.Duration(c.TokenRefreshTimeoutSeconds) * time.Second
}

// TokenExpirySkew is the margin before expiry at which tokens are refreshed.
func (c *Config) TokenExpirySkew() time.Duration {
	return time.Duration(c.TokenExpirySkewSeconds) * time.Second
}

// TokenTTL is how long an unused token pair stays in Redis.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// RefreshRetryBackoff is waited between a refresh and the repeated upstream call.
func (c *Config) RefreshRetryBackoff() time.Duration {
	return time.Duration(c.RefreshRetryBackoffMs) * time.Millisecond
}
