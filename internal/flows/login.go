package flows

import (
	"context"
	"errors"
	"fmt"
)

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	AccessToken string
	SubjectID   int64
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	TokenIssued      int
	StoreUnavailable int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess string
	LoginFailure string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	Unavailable        error
}

// LoginDeps captures login dependencies.
type LoginDeps[T any] struct {
	FindByEmail  func(context.Context, string) (T, error)
	NotFound     error
	PasswordHash func(T) string
	IsActive     func(T) bool
	SubjectID    func(T) int64

	VerifyPassword func(context.Context, string, string) (bool, error)
	// DummyHash is verified against when the email is unknown so that both
	// failure paths pay the same hashing cost.
	DummyHash  string
	IssueToken func(int64) (string, error)

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, error, func() map[string]string)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin verifies email/password and issues an access token. Unknown email,
// wrong password and inactive account all return Errors.InvalidCredentials.
func RunLogin[T any](ctx context.Context, email, password string, deps LoginDeps[T]) (*LoginResult, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.FindByEmail == nil ||
		deps.PasswordHash == nil ||
		deps.IsActive == nil ||
		deps.SubjectID == nil ||
		deps.VerifyPassword == nil ||
		deps.IssueToken == nil {
		return nil, deps.Errors.EngineNotReady
	}

	fail := func(subject, reason string) (*LoginResult, error) {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, subject, deps.Errors.InvalidCredentials, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return nil, deps.Errors.InvalidCredentials
	}

	record, err := deps.FindByEmail(ctx, email)
	if err != nil {
		if deps.NotFound != nil && errors.Is(err, deps.NotFound) {
			if _, verr := deps.VerifyPassword(ctx, password, deps.DummyHash); verr != nil {
				return nil, verr
			}
			return fail("", "unknown_identifier")
		}
		deps.MetricInc(deps.Metrics.StoreUnavailable)
		return nil, fmt.Errorf("%w: %w", deps.Errors.Unavailable, err)
	}

	subjectID := deps.SubjectID(record)
	subject := fmt.Sprintf("%d", subjectID)

	ok, err := deps.VerifyPassword(ctx, password, deps.PasswordHash(record))
	if err != nil {
		return nil, err
	}
	if !ok {
		return fail(subject, "password_mismatch")
	}
	if !deps.IsActive(record) {
		return fail(subject, "inactive")
	}

	token, err := deps.IssueToken(subjectID)
	if err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.TokenIssued)
	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, subject, nil, nil)

	return &LoginResult{AccessToken: token, SubjectID: subjectID}, nil
}
