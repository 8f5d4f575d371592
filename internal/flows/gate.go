package flows

import (
	"context"
	"errors"
	"strconv"
	"time"
)

var errMissingBearer = errors.New("missing bearer token")

// GateMetrics carries metric IDs needed by the gate flow.
type GateMetrics struct {
	Allowed          int
	Denied           int
	Malformed        int
	BadSignature     int
	Expired          int
	IdentityNotFound int
	IdentityInactive int
	StoreUnavailable int
}

// GateEvents carries audit event names used by the gate flow.
type GateEvents struct {
	Denied      string
	Unavailable string
}

// GateResult is either an admitted record or a classified failure.
type GateResult[T any] struct {
	Failure  FailureKind
	Err      error
	Identity T
}

// Allowed reports whether the request may proceed.
func (r GateResult[T]) Allowed() bool {
	return r.Failure == FailureNone
}

// GateDeps captures bearer-token admission dependencies.
type GateDeps[T any] struct {
	ValidateToken func(string) (int64, error)
	Resolve       func(context.Context, int64) (T, error)
	Classify      func(error) FailureKind

	Now             func() time.Time
	ObserveValidate func(time.Duration)
	MetricInc       func(int)
	EmitAudit       func(context.Context, string, bool, string, error, func() map[string]string)

	Metrics GateMetrics
	Events  GateEvents
}

// RunGate validates the bearer token in header, resolves its subject and
// returns a tagged result. It never mutates the credential store.
func RunGate[T any](ctx context.Context, header string, deps GateDeps[T]) GateResult[T] {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ObserveValidate == nil {
		deps.ObserveValidate = func(time.Duration) {}
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.Classify == nil {
		deps.Classify = func(error) FailureKind { return FailureUnexpected }
	}

	token, ok := BearerToken(header)
	if !ok {
		return deny[T](ctx, deps, FailureMissingCredentials, "", errMissingBearer)
	}

	start := deps.Now()
	subjectID, err := deps.ValidateToken(token)
	deps.ObserveValidate(deps.Now().Sub(start))
	if err != nil {
		return deny[T](ctx, deps, deps.Classify(err), "", err)
	}

	subject := strconv.FormatInt(subjectID, 10)
	identity, err := deps.Resolve(ctx, subjectID)
	if err != nil {
		return deny[T](ctx, deps, deps.Classify(err), subject, err)
	}

	deps.MetricInc(deps.Metrics.Allowed)
	return GateResult[T]{Identity: identity}
}

func deny[T any](ctx context.Context, deps GateDeps[T], kind FailureKind, subject string, err error) GateResult[T] {
	if kind == FailureUnexpected {
		return GateResult[T]{Failure: kind, Err: err}
	}
	if kind == FailureUnavailable {
		deps.MetricInc(deps.Metrics.StoreUnavailable)
		deps.EmitAudit(ctx, deps.Events.Unavailable, false, subject, err, nil)
		return GateResult[T]{Failure: kind, Err: err}
	}

	deps.MetricInc(deps.Metrics.Denied)
	switch kind {
	case FailureMalformed:
		deps.MetricInc(deps.Metrics.Malformed)
	case FailureBadSignature:
		deps.MetricInc(deps.Metrics.BadSignature)
	case FailureExpired:
		deps.MetricInc(deps.Metrics.Expired)
	case FailureIdentityNotFound:
		deps.MetricInc(deps.Metrics.IdentityNotFound)
	case FailureIdentityInactive:
		deps.MetricInc(deps.Metrics.IdentityInactive)
	}
	deps.EmitAudit(ctx, deps.Events.Denied, false, subject, err, func() map[string]string {
		return map[string]string{"reason": kind.String()}
	})

	return GateResult[T]{Failure: kind, Err: err}
}
