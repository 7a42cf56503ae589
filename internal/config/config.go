package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/utafrali/cart-service/pkg/config"
)

// Config holds all configuration for the cart service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"CART_HTTP_PORT" envDefault:"8003"`

	// Redis
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Cart TTL in hours (default: 7 days)
	CartTTL int `env:"CART_TTL_HOURS" envDefault:"168"`

	// Catalog service, the price source of truth.
	CatalogURL     string `env:"CATALOG_URL" envDefault:"http://localhost:8001"`
	PriceTimeoutMS int    `env:"PRICE_TIMEOUT_MS" envDefault:"2000"`

	// Bounded retry budget for optimistic saves.
	SaveAttempts int `env:"CART_SAVE_ATTEMPTS" envDefault:"3"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Tracing
	TracingEnabled  bool    `env:"TRACING_ENABLED" envDefault:"false"`
	TracingEndpoint string  `env:"TRACING_ENDPOINT" envDefault:"localhost:4318"`
	TracingSample   float64 `env:"TRACING_SAMPLE_RATIO" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load cart config: %w", err)
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
	if c.CartTTL < 1 {
		return fmt.Errorf("cart TTL must be at least 1 hour, got %d", c.CartTTL)
	}
	if c.PriceTimeoutMS < 1 {
		return fmt.Errorf("price timeout must be positive, got %dms", c.PriceTimeoutMS)
	}
	if c.SaveAttempts < 1 {
		return fmt.Errorf("save attempts must be at least 1, got %d", c.SaveAttempts)
	}
	return nil
}

// TTL returns the cart expiry as a duration.
func (c *Config) TTL() time.Duration {
	return time.Duration(c.CartTTL) * time.Hour
}

// PriceTimeout returns the price lookup deadline as a duration.
func (c *Config) PriceTimeout() time.Duration {
	return time.Duration(c.PriceTimeoutMS) * time.Millisecond
}
