package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all runtime configuration, populated from the environment.
type Config struct {
	Port          string `env:"PORT" envDefault:"8081"`
	MongoURI      string `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"shopify_collector"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`

	AppURL    string `env:"APP_URL" envDefault:"http://localhost:8081"`
	APIKey    string `env:"SHOPIFY_API_KEY,required"`
	APISecret string `env:"SHOPIFY_API_SECRET,required"`
	Scopes    string `env:"SHOPIFY_SCOPES" envDefault:"read_checkouts,read_orders,read_customers,read_fulfillments,write_script_tags"`

	TrackerBaseURL  string        `env:"TRACKER_BASE_URL" envDefault:"shopify-tracker.example.com"`
	PlatformTimeout time.Duration `env:"PLATFORM_TIMEOUT" envDefault:"8s"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
