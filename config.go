package astaauth

import (
	"fmt"
	"time"

	"github.com/projectatlas/astaauth/jwt"
	"github.com/projectatlas/astaauth/password"
)

// Config is the engine's immutable startup configuration. Build clones it;
// later mutation of the caller's copy has no effect.
type Config struct {
	JWT      JWTConfig
	Password PasswordConfig
	Hashing  HashingConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
	Security SecurityConfig
}

// JWTConfig pins the signing secret and algorithm shared by issue and validate.
type JWTConfig struct {
	SecretKey []byte
	Algorithm string // "HS256" (default), "HS384", "HS512"
	AccessTTL time.Duration
}

// PasswordConfig is the argon2id work factor; Memory is in KiB.
type PasswordConfig = password.Config

// HashingConfig bounds concurrent password derivations. Zero Workers means
// GOMAXPROCS.
type HashingConfig struct {
	Workers int
}

// AuditConfig sizes the audit queue. DropIfFull trades completeness for
// never blocking a request on a slow sink.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig switches the in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// SecurityConfig switches on the stricter production checks in Validate.
type SecurityConfig struct {
	ProductionMode bool
}

// DefaultConfig returns every setting except the secret key, which has no
// safe default and must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			Algorithm: string(jwt.HS256),
			AccessTTL: jwt.DefaultTTL,
		},
		Password: password.DefaultConfig(),
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.SecretKey = cloneBytes(cfg.JWT.SecretKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

const (
	minProductionSecretBytes = 32
	minProductionMemoryKB    = 64 * 1024
	maxHashWorkers           = 1024
)

// Validate reports the first setting the engine cannot start with. Every
// returned error wraps ErrConfiguration.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.SecretKey) == 0 {
		return configErr("JWT SecretKey must not be empty")
	}
	switch jwt.Algorithm(c.JWT.Algorithm) {
	case jwt.HS256, jwt.HS384, jwt.HS512:
	default:
		return configErr("unsupported JWT algorithm %q", c.JWT.Algorithm)
	}
	if c.JWT.AccessTTL <= 0 {
		return configErr("JWT AccessTTL must be > 0")
	}

	if err := c.Password.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	// Hashing
	if c.Hashing.Workers < 0 || c.Hashing.Workers > maxHashWorkers {
		return configErr("Hashing Workers must be between 0 and %d", maxHashWorkers)
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize < 0 {
		return configErr("Audit BufferSize must be >= 0")
	}

	if c.Security.ProductionMode {
		if len(c.JWT.SecretKey) < minProductionSecretBytes {
			return configErr("JWT SecretKey must be at least 256 bits in production mode")
		}
		if c.Password.Memory < minProductionMemoryKB {
			return configErr("Password Memory must be >= 65536 KB in production mode")
		}
	}

	return nil
}

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
