package flows

import "context"

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow implementation. The gate
// flow is owned by the root Gate type, which is built from interfaces.
type Deps[T any] struct {
	Login    LoginDeps[T]
	Resolve  ResolveDeps[T]
	Register RegisterDeps[T]
}

// Service is the centralized flow runner built once by the root engine.
type Service[T any] struct {
	deps Deps[T]
}

// New returns a flow service with immutable dependency wiring.
func New[T any](deps Deps[T]) Service[T] {
	return Service[T]{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service[T]) Initialized() bool {
	return s.deps.Login.FindByEmail != nil && s.deps.Resolve.FindByID != nil
}

// Login runs the login flow with the wired deps.
func (s Service[T]) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	return RunLogin(ctx, email, password, s.deps.Login)
}

// Resolve runs the subject resolution flow.
func (s Service[T]) Resolve(ctx context.Context, subjectID int64) (T, error) {
	return RunResolve(ctx, subjectID, s.deps.Resolve)
}

// Register runs the registration flow.
func (s Service[T]) Register(ctx context.Context, in RegisterInput) (T, error) {
	return RunRegister(ctx, in, s.deps.Register)
}
