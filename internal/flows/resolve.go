package flows

import (
	"context"
	"errors"
	"fmt"
)

// ResolveErrors carries host-level errors returned by the resolve flow.
type ResolveErrors struct {
	EngineNotReady   error
	IdentityNotFound error
	IdentityInactive error
	Unavailable      error
}

// ResolveDeps captures identity lookup dependencies.
type ResolveDeps[T any] struct {
	FindByID func(context.Context, int64) (T, error)
	IsActive func(T) bool
	// NotFound is the store's not-found sentinel.
	NotFound error

	Errors ResolveErrors
}

// RunResolve loads the credential for subjectID on every call and rejects
// missing or inactive records. Any other store error is an outage.
func RunResolve[T any](ctx context.Context, subjectID int64, deps ResolveDeps[T]) (T, error) {
	var zero T
	if deps.FindByID == nil || deps.IsActive == nil {
		return zero, deps.Errors.EngineNotReady
	}

	record, err := deps.FindByID(ctx, subjectID)
	if err != nil {
		if deps.NotFound != nil && errors.Is(err, deps.NotFound) {
			return zero, deps.Errors.IdentityNotFound
		}
		return zero, fmt.Errorf("%w: %w", deps.Errors.Unavailable, err)
	}
	if !deps.IsActive(record) {
		return zero, deps.Errors.IdentityInactive
	}

	return record, nil
}
