package astaauth

import (
	"context"
	"errors"
	"time"

	"github.com/projectatlas/astaauth/internal/flows"
)

// TokenValidator checks a bearer token and returns the subject id it was
// issued for. Rejections are *AuthenticationError values.
type TokenValidator interface {
	ValidateToken(token string) (int64, error)
}

// IdentityResolver turns a subject id into a live identity. It returns
// ErrIdentityNotFound or ErrIdentityInactive for rejected subjects and an
// error wrapping ErrServiceUnavailable for store outages.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, subjectID int64) (*Identity, error)
}

// GateOutcome is the tag of a GateResult.
type GateOutcome int

const (
	GateAllowed GateOutcome = iota
	GateUnauthenticated
	GateUnavailable
	// GateFailed means an error outside the authentication taxonomy.
	GateFailed
)

// String names the outcome for logs and audit metadata.
func (o GateOutcome) String() string {
	switch o {
	case GateAllowed:
		return "allowed"
	case GateUnauthenticated:
		return "unauthenticated"
	case GateUnavailable:
		return "unavailable"
	default:
		return "failed"
	}
}

// GateResult is either an allowed Identity or a rejection. Kind is set only
// for GateUnauthenticated and is meant for logs, never for responses.
type GateResult struct {
	Outcome  GateOutcome
	Identity *Identity
	Kind     AuthErrorKind
	Err      error
}

// Allowed reports whether the guarded operation may run.
func (r GateResult) Allowed() bool {
	return r.Outcome == GateAllowed && r.Identity != nil
}

// Gate admits requests carrying a valid bearer token for an active identity.
// It holds no state of its own and never writes to the credential store.
type Gate struct {
	deps flows.GateDeps[*Identity]
}

// NewGate builds a gate from a validator and a resolver.
func NewGate(validator TokenValidator, resolver IdentityResolver) *Gate {
	return &Gate{deps: flows.GateDeps[*Identity]{
		ValidateToken: validator.ValidateToken,
		Resolve:       resolver.ResolveIdentity,
		Classify:      classifyFailure,
	}}
}

func newEngineGate(e *Engine) *Gate {
	g := NewGate(e, e)
	g.deps.Now = e.now
	g.deps.ObserveValidate = func(d time.Duration) {
		if e.metrics != nil {
			e.metrics.Observe(MetricValidateLatency, d)
		}
	}
	g.deps.MetricInc = func(id int) { e.metricInc(MetricID(id)) }
	g.deps.EmitAudit = e.emitAudit
	g.deps.Metrics = flows.GateMetrics{
		Allowed:          int(MetricGateAllowed),
		Denied:           int(MetricGateDenied),
		Malformed:        int(MetricTokenMalformed),
		BadSignature:     int(MetricTokenBadSignature),
		Expired:          int(MetricTokenExpired),
		IdentityNotFound: int(MetricIdentityNotFound),
		IdentityInactive: int(MetricIdentityInactive),
		StoreUnavailable: int(MetricStoreUnavailable),
	}
	g.deps.Events = flows.GateEvents{
		Denied:      eventGateDenied,
		Unavailable: eventGateUnavailable,
	}
	return g
}

// Check runs the gate against an Authorization header value.
func (g *Gate) Check(ctx context.Context, authorizationHeader string) GateResult {
	if g == nil || g.deps.ValidateToken == nil || g.deps.Resolve == nil {
		return GateResult{Outcome: GateFailed, Err: ErrEngineNotReady}
	}

	res := flows.RunGate(ctx, authorizationHeader, g.deps)
	switch res.Failure {
	case flows.FailureNone:
		if res.Identity == nil {
			return GateResult{Outcome: GateFailed, Err: ErrEngineNotReady}
		}
		return GateResult{Outcome: GateAllowed, Identity: res.Identity}
	case flows.FailureUnavailable:
		return GateResult{Outcome: GateUnavailable, Err: res.Err}
	case flows.FailureUnexpected:
		return GateResult{Outcome: GateFailed, Err: res.Err}
	default:
		return GateResult{Outcome: GateUnauthenticated, Kind: authKindFor(res.Failure), Err: res.Err}
	}
}

// Authenticate is Check in error form: an *AuthenticationError for every
// unauthenticated outcome, an error wrapping ErrServiceUnavailable for store
// outages.
func (g *Gate) Authenticate(ctx context.Context, authorizationHeader string) (*Identity, error) {
	res := g.Check(ctx, authorizationHeader)
	switch res.Outcome {
	case GateAllowed:
		return res.Identity, nil
	case GateUnauthenticated:
		var authErr *AuthenticationError
		if errors.As(res.Err, &authErr) {
			return nil, authErr
		}
		return nil, &AuthenticationError{Kind: res.Kind, Err: res.Err}
	default:
		return nil, res.Err
	}
}

func classifyFailure(err error) flows.FailureKind {
	if kind, ok := AuthKindOf(err); ok {
		switch kind {
		case AuthMissingCredentials:
			return flows.FailureMissingCredentials
		case AuthMalformed:
			return flows.FailureMalformed
		case AuthBadSignature:
			return flows.FailureBadSignature
		case AuthExpired:
			return flows.FailureExpired
		case AuthIdentityNotFound:
			return flows.FailureIdentityNotFound
		case AuthIdentityInactive:
			return flows.FailureIdentityInactive
		case AuthInvalidCredentials:
			return flows.FailureInvalidCredentials
		}
	}
	if errors.Is(err, ErrServiceUnavailable) {
		return flows.FailureUnavailable
	}
	return flows.FailureUnexpected
}

func authKindFor(kind flows.FailureKind) AuthErrorKind {
	switch kind {
	case flows.FailureMissingCredentials:
		return AuthMissingCredentials
	case flows.FailureMalformed:
		return AuthMalformed
	case flows.FailureBadSignature:
		return AuthBadSignature
	case flows.FailureExpired:
		return AuthExpired
	case flows.FailureIdentityNotFound:
		return AuthIdentityNotFound
	case flows.FailureIdentityInactive:
		return AuthIdentityInactive
	default:
		return AuthInvalidCredentials
	}
}
