package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"investment-server/internal/store"
)

type Config struct {
	Port int `env:"PORT" envDefault:"8080"`

	StoreDriver   string        `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseURL   string        `env:"DATABASE_URL"`
	RedisURL      string        `env:"REDIS_URL"`
	RedisTTL      time.Duration `env:"REDIS_TTL" envDefault:"24h"`
	MongoURL      string        `env:"MONGO_URL"`
	MongoDatabase string        `env:"MONGO_DATABASE" envDefault:"investment"`
	StoreTimeout  time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`

	// Reaper
	ReapInterval      time.Duration `env:"REAP_INTERVAL" envDefault:"5m"`
	InactivityTimeout time.Duration `env:"INACTIVITY_TIMEOUT" envDefault:"30m"`

	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"20"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1s"`

	OperatorToken  string   `env:"OPERATOR_TOKEN"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case store.DriverMemory:
	case store.DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	case store.DriverRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis store")
		}
	case store.DriverMongo:
		if c.MongoURL == "" {
			return errors.New("MONGO_URL is required for the mongo store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.ReapInterval <= 0 || c.InactivityTimeout <= 0 {
		return errors.New("REAP_INTERVAL and INACTIVITY_TIMEOUT must be positive")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

func (c Config) StoreOptions() store.Options {
	return store.Options{
		Driver:        c.StoreDriver,
		DatabaseURL:   c.DatabaseURL,
		RedisURL:      c.RedisURL,
		RedisTTL:      c.RedisTTL,
		MongoURL:      c.MongoURL,
		MongoDatabase: c.MongoDatabase,
	}
}
