package astaauth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	internalaudit "github.com/projectatlas/astaauth/internal/audit"
	"github.com/projectatlas/astaauth/internal/flows"
	"github.com/projectatlas/astaauth/jwt"
	"github.com/projectatlas/astaauth/password"
)

// Engine is the authentication core: it verifies passwords, issues and
// validates bearer tokens, and resolves token subjects to live identities.
//
// An Engine is immutable after Build and safe for concurrent use.
type Engine struct {
	config       Config
	store        CredentialStore
	writer       CredentialWriter
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	passwordHash *password.Argon2
	hashPool     *password.Pool
	dummyHash    string
	jwtManager   *jwt.Manager
	validate     *validator.Validate
	flows        flows.Service[*Credential]
	gate         *Gate
	now          func() time.Time
}

// Close flushes pending audit events and stops the dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Shutdown is Close bounded by ctx.
func (e *Engine) Shutdown(ctx context.Context) error {
	if e == nil {
		return nil
	}
	return e.audit.Shutdown(ctx)
}

// AuditDropped returns how many audit events were dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine counters. A nil engine returns empty maps.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:      map[MetricID]uint64{},
			Histograms:    map[MetricID][]uint64{},
			HistogramSums: map[MetricID]time.Duration{},
		}
	}
	return e.metrics.Snapshot()
}

// Store returns the credential store the engine reads from.
func (e *Engine) Store() CredentialStore {
	if e == nil {
		return nil
	}
	return e.store
}

// SetActive enables or disables an account. A disabled account fails login
// and its outstanding tokens stop passing the gate on their next use.
func (e *Engine) SetActive(ctx context.Context, id int64, active bool) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	activator, ok := e.writer.(CredentialActivator)
	if !ok {
		activator, ok = e.store.(CredentialActivator)
	}
	if !ok {
		return ErrActivationUnsupported
	}

	err := activator.SetActive(ctx, id, active)
	switch {
	case errors.Is(err, ErrCredentialNotFound):
		return err
	case err != nil:
		e.metricInc(MetricStoreUnavailable)
		return fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	}

	e.emitAudit(ctx, eventAccountStatus, true, strconv.FormatInt(id, 10), nil, func() map[string]string {
		return map[string]string{"active": strconv.FormatBool(active)}
	})
	return nil
}

// Login checks email and password and issues an access token with the
// configured ttl. Unknown email, wrong password and inactive account return
// the same ErrInvalidCredentials.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	if err := e.validateInput(req); err != nil {
		e.metricInc(MetricLoginInvalidInput)
		return nil, err
	}

	res, err := e.flows.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	return &TokenResponse{AccessToken: res.AccessToken, TokenType: TokenTypeBearer}, nil
}

// Register hashes the password and stores a new credential through the
// configured CredentialWriter.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*Identity, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	if err := e.validateInput(req); err != nil {
		return nil, err
	}

	cred, err := e.flows.Register(ctx, flows.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		FullName:    req.FullName,
		CompanyName: req.CompanyName,
	})
	if err != nil {
		return nil, err
	}

	return cred.Identity(), nil
}

// HashPassword derives an encoded hash on the bounded hashing pool.
func (e *Engine) HashPassword(ctx context.Context, plaintext string) (string, error) {
	if e == nil || e.hashPool == nil {
		return "", ErrEngineNotReady
	}
	start := e.now()
	defer e.observe(MetricHashLatency, start)

	return e.hashPool.Hash(ctx, plaintext)
}

// VerifyPassword checks plaintext against encoded on the bounded hashing
// pool. A malformed encoding is a mismatch; the error is non-nil only when
// ctx ends before a hashing slot frees up.
func (e *Engine) VerifyPassword(ctx context.Context, plaintext, encoded string) (bool, error) {
	if e == nil || e.hashPool == nil {
		return false, ErrEngineNotReady
	}
	start := e.now()
	defer e.observe(MetricHashLatency, start)

	return e.hashPool.Verify(ctx, plaintext, encoded)
}

// IssueToken issues a token for subjectID with the configured ttl.
func (e *Engine) IssueToken(subjectID int64) (string, error) {
	if e == nil || e.jwtManager == nil {
		return "", ErrEngineNotReady
	}
	return e.jwtManager.IssueDefault(subjectID)
}

// IssueTokenTTL issues a token for subjectID valid for ttl.
func (e *Engine) IssueTokenTTL(subjectID int64, ttl time.Duration) (string, error) {
	if e == nil || e.jwtManager == nil {
		return "", ErrEngineNotReady
	}
	return e.jwtManager.Issue(subjectID, ttl)
}

// ValidateToken implements TokenValidator over the engine's pinned manager.
func (e *Engine) ValidateToken(token string) (int64, error) {
	if e == nil || e.jwtManager == nil {
		return 0, ErrEngineNotReady
	}

	claims, err := e.jwtManager.Validate(token)
	if err != nil {
		return 0, tokenError(err)
	}

	id, err := claims.SubjectID()
	if err != nil {
		return 0, &AuthenticationError{Kind: AuthMalformed, Err: err}
	}
	return id, nil
}

// ResolveIdentity implements IdentityResolver over the credential store. It
// reads the store on every call.
func (e *Engine) ResolveIdentity(ctx context.Context, subjectID int64) (*Identity, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}

	cred, err := e.flows.Resolve(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return cred.Identity(), nil
}

// Gate returns the engine's gate for transport adapters.
func (e *Engine) Gate() *Gate {
	if e == nil {
		return nil
	}
	return e.gate
}

// Check runs the gate against an Authorization header value.
func (e *Engine) Check(ctx context.Context, authorizationHeader string) GateResult {
	return e.Gate().Check(ctx, authorizationHeader)
}

// Authenticate runs the gate and returns the identity or the rejection error.
func (e *Engine) Authenticate(ctx context.Context, authorizationHeader string) (*Identity, error) {
	return e.Gate().Authenticate(ctx, authorizationHeader)
}

// ListIdentities pages through stored accounts when the store supports it.
func (e *Engine) ListIdentities(ctx context.Context, limit, offset int) ([]Identity, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	lister, ok := e.store.(CredentialLister)
	if !ok {
		return nil, errors.New("credential store does not support listing")
	}

	creds, err := lister.List(ctx, limit, offset)
	if err != nil {
		e.metricInc(MetricStoreUnavailable)
		return nil, errors.Join(ErrServiceUnavailable, err)
	}

	out := make([]Identity, 0, len(creds))
	for i := range creds {
		out = append(out, *creds[i].Identity())
	}
	return out, nil
}

func tokenError(err error) error {
	var verr *jwt.ValidationError
	if !errors.As(err, &verr) {
		return &AuthenticationError{Kind: AuthMalformed, Err: err}
	}

	switch verr.Kind {
	case jwt.KindBadSignature:
		return &AuthenticationError{Kind: AuthBadSignature, Err: err}
	case jwt.KindExpired:
		return &AuthenticationError{Kind: AuthExpired, Err: err}
	default:
		return &AuthenticationError{Kind: AuthMalformed, Err: err}
	}
}

func (e *Engine) validateInput(in any) error {
	err := e.validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Field()] = fe.Tag()
	}
	return &ValidationError{Fields: fields}
}

func (e *Engine) flowDeps() flows.Deps[*Credential] {
	metricInc := func(id int) { e.metricInc(MetricID(id)) }

	return flows.Deps[*Credential]{
		Login: flows.LoginDeps[*Credential]{
			FindByEmail:    e.store.FindByEmail,
			NotFound:       ErrCredentialNotFound,
			PasswordHash:   func(c *Credential) string { return c.PasswordHash },
			IsActive:       func(c *Credential) bool { return c.Active },
			SubjectID:      func(c *Credential) int64 { return c.ID },
			VerifyPassword: e.VerifyPassword,
			DummyHash:      e.dummyHash,
			IssueToken:     e.IssueToken,
			MetricInc:      metricInc,
			EmitAudit:      e.emitAudit,
			Metrics: flows.LoginMetrics{
				LoginSuccess:     int(MetricLoginSuccess),
				LoginFailure:     int(MetricLoginFailure),
				TokenIssued:      int(MetricTokenIssued),
				StoreUnavailable: int(MetricStoreUnavailable),
			},
			Events: flows.LoginEvents{
				LoginSuccess: eventLoginSuccess,
				LoginFailure: eventLoginFailure,
			},
			Errors: flows.LoginErrors{
				EngineNotReady:     ErrEngineNotReady,
				InvalidCredentials: ErrInvalidCredentials,
				Unavailable:        ErrServiceUnavailable,
			},
		},
		Resolve: flows.ResolveDeps[*Credential]{
			FindByID: e.store.FindByID,
			IsActive: func(c *Credential) bool { return c != nil && c.Active },
			NotFound: ErrCredentialNotFound,
			Errors: flows.ResolveErrors{
				EngineNotReady:   ErrEngineNotReady,
				IdentityNotFound: ErrIdentityNotFound,
				IdentityInactive: ErrIdentityInactive,
				Unavailable:      ErrServiceUnavailable,
			},
		},
		Register: flows.RegisterDeps[*Credential]{
			Create:       e.createCredential(),
			HashPassword: e.HashPassword,
			SubjectID:    func(c *Credential) int64 { return c.ID },
			Duplicate:    ErrEmailTaken,
			MetricInc:    metricInc,
			EmitAudit:    e.emitAudit,
			Metrics: flows.RegisterMetrics{
				RegistrationSuccess:   int(MetricRegistrationSuccess),
				RegistrationDuplicate: int(MetricRegistrationDuplicate),
				StoreUnavailable:      int(MetricStoreUnavailable),
			},
			Events: flows.RegisterEvents{
				RegistrationSuccess:   eventRegistrationSuccess,
				RegistrationDuplicate: eventRegistrationDuplicate,
			},
			Errors: flows.RegisterErrors{
				EngineNotReady:       ErrEngineNotReady,
				RegistrationDisabled: ErrRegistrationDisabled,
				EmailTaken:           ErrEmailTaken,
				Unavailable:          ErrServiceUnavailable,
			},
		},
	}
}

func (e *Engine) createCredential() func(context.Context, flows.RegisterRecord) (*Credential, error) {
	if e.writer == nil {
		return nil
	}
	return func(ctx context.Context, rec flows.RegisterRecord) (*Credential, error) {
		return e.writer.Create(ctx, NewCredential{
			Email:        rec.Email,
			PasswordHash: rec.PasswordHash,
			FullName:     rec.FullName,
			CompanyName:  rec.CompanyName,
		})
	}
}

// Config returns a copy of the configuration the engine was built with.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// Lint reports advisory findings for the active configuration.
func (e *Engine) Lint() LintResult {
	cfg := e.Config()
	return cfg.Lint()
}
