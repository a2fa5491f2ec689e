package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	DriverCouchbase = "couchbase"
	DriverMongo     = "mongo"
	DriverMemory    = "memory"
)

type Config struct {
	Env      string `mapstructure:"APP_ENV"`
	Port     string `mapstructure:"PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	ElasticsearchURL   string `mapstructure:"ELASTICSEARCH_URL"`
	ElasticsearchIndex string `mapstructure:"ELASTICSEARCH_INDEX"`

	StoreDriver       string `mapstructure:"STORE_DRIVER"`
	CouchbaseURL      string `mapstructure:"COUCHBASE_URL"`
	CouchbaseUsername string `mapstructure:"COUCHBASE_USERNAME"`
	CouchbasePassword string `mapstructure:"COUCHBASE_PASSWORD"`
	CouchbaseBucket   string `mapstructure:"COUCHBASE_BUCKET"`
	CouchbaseScope    string `mapstructure:"COUCHBASE_SCOPE"`
	MongoURI          string `mapstructure:"MONGODB_URI"`
	MongoDatabase     string `mapstructure:"MONGODB_DATABASE"`

	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	RateLimitEnabled bool          `mapstructure:"RATE_LIMIT_ENABLED"`
	RateLimitMax     int           `mapstructure:"RATE_LIMIT_MAX"`
	RateLimitWindow  time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`
	RedisAddr        string        `mapstructure:"REDIS_ADDR"`
	RedisPassword    string        `mapstructure:"REDIS_PASSWORD"`

	EnableSystemMetrics   bool          `mapstructure:"ENABLE_SYSTEM_METRICS"`
	SystemMetricsInterval time.Duration `mapstructure:"SYSTEM_METRICS_INTERVAL"`

	TimeZone string `mapstructure:"TZ_NAME"`
}

var keys = []string{
	"APP_ENV", "PORT", "LOG_LEVEL",
	"ELASTICSEARCH_URL", "ELASTICSEARCH_INDEX",
	"STORE_DRIVER",
	"COUCHBASE_URL", "COUCHBASE_USERNAME", "COUCHBASE_PASSWORD", "COUCHBASE_BUCKET", "COUCHBASE_SCOPE",
	"MONGODB_URI", "MONGODB_DATABASE",
	"ALLOWED_ORIGINS",
	"RATE_LIMIT_ENABLED", "RATE_LIMIT_MAX", "RATE_LIMIT_WINDOW", "REDIS_ADDR", "REDIS_PASSWORD",
	"ENABLE_SYSTEM_METRICS", "SYSTEM_METRICS_INTERVAL",
	"TZ_NAME",
}

// LoadDotEnv loads .env from the working directory, falling back to the parent
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			log.Debug().Msg("No .env file found, using process environment")
		}
	}
}

// Load reads configuration from the environment and validates it
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ELASTICSEARCH_INDEX", "logs")
	v.SetDefault("STORE_DRIVER", DriverCouchbase)
	v.SetDefault("COUCHBASE_BUCKET", "appointmentbot")
	v.SetDefault("COUCHBASE_SCOPE", "_default")
	v.SetDefault("MONGODB_URI", "mongodb://localhost:27017/healthcare")
	v.SetDefault("MONGODB_DATABASE", "healthcare")
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_MAX", 100)
	v.SetDefault("RATE_LIMIT_WINDOW", "15m")
	v.SetDefault("ENABLE_SYSTEM_METRICS", false)
	v.SetDefault("SYSTEM_METRICS_INTERVAL", "15s")

	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks driver-specific settings and numeric bounds
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverCouchbase:
		if c.CouchbaseURL == "" {
			return fmt.Errorf("COUCHBASE_URL is required when STORE_DRIVER is %q", DriverCouchbase)
		}
		if c.CouchbaseBucket == "" {
			return fmt.Errorf("COUCHBASE_BUCKET must not be empty")
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI is required when STORE_DRIVER is %q", DriverMongo)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q, %q or %q, got %q", DriverCouchbase, DriverMongo, DriverMemory, c.StoreDriver)
	}

	if c.RateLimitEnabled {
		if c.RateLimitMax <= 0 {
			return fmt.Errorf("RATE_LIMIT_MAX must be positive, got %d", c.RateLimitMax)
		}
		if c.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", c.RateLimitWindow)
		}
	}
	if c.EnableSystemMetrics && c.SystemMetricsInterval <= 0 {
		return fmt.Errorf("SYSTEM_METRICS_INTERVAL must be positive, got %s", c.SystemMetricsInterval)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Origins returns the CORS allow-list. A single "*" allows any origin.
func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Location resolves TZ_NAME, defaulting to the server's local zone
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("TZ_NAME %q: %w", c.TimeZone, err)
	}
	return loc, nil
}
