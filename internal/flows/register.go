package flows

import (
	"context"
	"errors"
	"fmt"
)

// RegisterInput is the flow-local registration request.
type RegisterInput struct {
	Email       string
	Password    string
	FullName    string
	CompanyName string
}

// RegisterRecord is what the flow hands to the credential writer.
type RegisterRecord struct {
	Email        string
	PasswordHash string
	FullName     string
	CompanyName  string
}

// RegisterMetrics carries metric IDs needed by the registration flow.
type RegisterMetrics struct {
	RegistrationSuccess   int
	RegistrationDuplicate int
	StoreUnavailable      int
}

// RegisterEvents carries audit event names used by the registration flow.
type RegisterEvents struct {
	RegistrationSuccess   string
	RegistrationDuplicate string
}

// RegisterErrors carries host-level sentinel errors used by the registration flow.
type RegisterErrors struct {
	EngineNotReady       error
	RegistrationDisabled error
	EmailTaken           error
	Unavailable          error
}

// RegisterDeps captures registration dependencies.
type RegisterDeps[T any] struct {
	Create       func(context.Context, RegisterRecord) (T, error)
	HashPassword func(context.Context, string) (string, error)
	SubjectID    func(T) int64
	// Duplicate is the store's unique-violation sentinel.
	Duplicate error

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, error, func() map[string]string)

	Metrics RegisterMetrics
	Events  RegisterEvents
	Errors  RegisterErrors
}

// RunRegister hashes the password and stores a new credential. The plaintext
// never reaches the writer.
func RunRegister[T any](ctx context.Context, in RegisterInput, deps RegisterDeps[T]) (T, error) {
	var zero T
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.Create == nil {
		return zero, deps.Errors.RegistrationDisabled
	}
	if deps.HashPassword == nil || deps.SubjectID == nil {
		return zero, deps.Errors.EngineNotReady
	}

	hash, err := deps.HashPassword(ctx, in.Password)
	if err != nil {
		return zero, err
	}

	record, err := deps.Create(ctx, RegisterRecord{
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     in.FullName,
		CompanyName:  in.CompanyName,
	})
	if err != nil {
		if deps.Duplicate != nil && errors.Is(err, deps.Duplicate) {
			deps.MetricInc(deps.Metrics.RegistrationDuplicate)
			deps.EmitAudit(ctx, deps.Events.RegistrationDuplicate, false, "", deps.Errors.EmailTaken, nil)
			return zero, deps.Errors.EmailTaken
		}
		deps.MetricInc(deps.Metrics.StoreUnavailable)
		return zero, fmt.Errorf("%w: %w", deps.Errors.Unavailable, err)
	}

	deps.MetricInc(deps.Metrics.RegistrationSuccess)
	deps.EmitAudit(ctx, deps.Events.RegistrationSuccess, true, fmt.Sprintf("%d", deps.SubjectID(record)), nil, nil)

	return record, nil
}
