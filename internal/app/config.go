package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/averku/orderdesk/internal/domain/money"
	"github.com/averku/orderdesk/internal/domain/order"
)

// Config holds the complete application configuration, loadable from
// environment variables (ORDERDESK_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (ORDERDESK_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (ORDERDESK_API_KEY_PEPPER)" flag:"api-key-pepper"`
	BodyLimit    int64  `default:"1048576" usage:"Maximum request body size in bytes" flag:"body-limit"`
	Limits       LimitsConfig
	Analytics    AnalyticsConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// LimitsConfig bounds monetary amounts and item quantities.
type LimitsConfig struct {
	MaxAmount   string `default:"9999999999.99" usage:"Maximum monetary amount" flag:"max-amount"`
	MaxQuantity int    `default:"10000" usage:"Maximum quantity per order line" flag:"max-quantity"`
}

// Money converts the configured bounds into domain limits.
func (c LimitsConfig) Money() (money.Limits, error) {
	maxAmount, err := decimal.NewFromString(c.MaxAmount)
	if err != nil {
		return money.Limits{}, errors.Wrap(err, "parse max amount")
	}
	return money.Limits{
		MaxAmount:   maxAmount,
		MaxQuantity: c.MaxQuantity,
	}, nil
}

// AnalyticsConfig tunes the analytics aggregator.
type AnalyticsConfig struct {
	PageSize         int      `default:"500" usage:"Repository page size for analytics scans" flag:"analytics-page-size"`
	ExcludedStatuses []string `default:"cancelled" usage:"Statuses excluded from revenue aggregates" flag:"analytics-excluded-statuses"`
}

// Excluded converts the configured status names, rejecting unknown ones.
func (c AnalyticsConfig) Excluded() ([]order.Status, error) {
	statuses := make([]order.Status, len(c.ExcludedStatuses))
	for i, raw := range c.ExcludedStatuses {
		s, err := order.ParseStatus(raw)
		if err != nil {
			return nil, errors.Wrap(err, "parse excluded status")
		}
		statuses[i] = s
	}
	return statuses, nil
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "ORDERDESK",
		Files:     []string{"config.yaml", "/etc/orderdesk/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set ORDERDESK_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's ORDERDESK_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
