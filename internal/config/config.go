// Package config loads the service configuration from the environment.
// It is read once at startup and converted to an immutable astaauth.Config;
// nothing else in the service reads the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/projectatlas/astaauth"
)

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config mirrors the service environment.
type Config struct {
	SecretKey                string `env:"SECRET_KEY,required,notEmpty,unset"`
	Algorithm                string `env:"ALGORITHM" envDefault:"HS256"`
	AccessTokenExpireMinutes int    `env:"ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"30"`

	StoreBackend   string `env:"STORE_BACKEND" envDefault:"postgres"`
	DatabaseURL    string `env:"DATABASE_URL"`
	RedisAddr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPrefix    string `env:"REDIS_PREFIX" envDefault:"asta"`
	MigrationsAuto bool   `env:"MIGRATIONS_AUTO" envDefault:"false"`

	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	HashWorkers    int  `env:"HASH_WORKERS" envDefault:"0"`
	ProductionMode bool `env:"PRODUCTION_MODE" envDefault:"false"`
	AuditLog       bool `env:"AUDIT_LOG" envDefault:"true"`

	OTLPEndpoint string        `env:"OTLP_ENDPOINT"`
	OTLPInsecure bool          `env:"OTLP_INSECURE" envDefault:"false"`
	OTLPInterval time.Duration `env:"OTLP_INTERVAL" envDefault:"15s"`
	Environment  string        `env:"ENVIRONMENT" envDefault:"development"`
}

// Load reads envFile (if it exists) into the process environment without
// overriding variables already set, then parses the environment.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	case BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.AccessTokenExpireMinutes <= 0 {
		return errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be > 0")
	}
	return nil
}

// Engine converts the service configuration into the engine configuration.
func (c Config) Engine() astaauth.Config {
	cfg := astaauth.DefaultConfig()
	cfg.JWT.SecretKey = []byte(c.SecretKey)
	cfg.JWT.Algorithm = c.Algorithm
	cfg.JWT.AccessTTL = time.Duration(c.AccessTokenExpireMinutes) * time.Minute
	cfg.Hashing.Workers = c.HashWorkers
	cfg.Security.ProductionMode = c.ProductionMode
	cfg.Audit.Enabled = c.AuditLog
	return cfg
}
