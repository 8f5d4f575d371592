package astaauth

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	internalaudit "github.com/projectatlas/astaauth/internal/audit"
	"github.com/projectatlas/astaauth/internal/flows"
	"github.com/projectatlas/astaauth/jwt"
	"github.com/projectatlas/astaauth/password"
)

// dummyPassword is hashed once at Build. Logins for unknown emails verify
// against that hash so both failure paths cost one argon2 derivation.
const dummyPassword = "astaauth-timing-equalizer"

// Builder assembles an Engine. A Builder is single-use.
type Builder struct {
	config Config

	store     CredentialStore
	writer    CredentialWriter
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration with a copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithCredentialStore sets the required credential lookup. If store also
// implements CredentialWriter and no writer is set, Build uses it for
// registration.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithCredentialWriter sets the writer Register uses. Without it Build falls
// back to the credential store when that store can also write.
func (b *Builder) WithCredentialWriter(writer CredentialWriter) *Builder {
	b.writer = writer
	return b
}

// WithAuditSink sets where audit events go. A nil sink discards them.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock replaces time.Now for token issue, validation and audit stamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled switches the in-process counters on or off.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms switches the hash and validate latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component. A missing or
// empty secret key fails here with ErrConfiguration, before anything serves.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, configErr("credential store required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config: cloneConfig(cfg),
		store:  b.store,
		now:    now,
	}

	engine.writer = b.writer
	if engine.writer == nil {
		if w, ok := b.store.(CredentialWriter); ok {
			engine.writer = w
		}
	}
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	ph, err := password.NewArgon2(cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	engine.passwordHash = ph
	engine.hashPool = password.NewPool(ph, cfg.Hashing.Workers)

	dummy, err := ph.Hash(dummyPassword)
	if err != nil {
		return nil, err
	}
	engine.dummyHash = dummy

	jm, err := jwt.NewManager(jwt.Config{
		Secret:     cloneBytes(cfg.JWT.SecretKey),
		Algorithm:  jwt.Algorithm(cfg.JWT.Algorithm),
		DefaultTTL: cfg.JWT.AccessTTL,
	}, jwt.WithClock(now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	engine.jwtManager = jm

	engine.validate = newInputValidator()
	engine.flows = flows.New(engine.flowDeps())
	engine.gate = newEngineGate(engine)

	b.built = true

	return engine, nil
}

// newInputValidator reports field errors under their JSON names.
func newInputValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}
