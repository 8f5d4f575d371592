package astaauth

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrConfiguration is returned by Build and Config.Validate when the engine
	// cannot start. It is fatal and never retried.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrUnauthenticated matches every *AuthenticationError via errors.Is.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrValidation reports structurally invalid login or registration input.
	ErrValidation = errors.New("invalid input")
	// ErrServiceUnavailable wraps I/O failures from the credential store.
	ErrServiceUnavailable = errors.New("credential store unavailable")
	// ErrEngineNotReady is returned when an Engine method runs on a zero Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrRegistrationDisabled is returned by Register when no CredentialWriter is configured.
	ErrRegistrationDisabled = errors.New("registration disabled")
	// ErrEmailTaken is returned by Register when the email already has a credential.
	// CredentialWriter implementations return it on a unique violation.
	ErrEmailTaken = errors.New("email already registered")
	// ErrCredentialNotFound is the not-found result CredentialStore implementations return.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrActivationUnsupported is returned by SetActive when the store is not a CredentialActivator.
	ErrActivationUnsupported = errors.New("credential store cannot change account status")
)

// AuthErrorKind names which authentication check failed. Kinds are for
// logs, audit and metrics only; transports must render every kind the same way.
type AuthErrorKind int

const (
	AuthMissingCredentials AuthErrorKind = iota + 1
	AuthMalformed
	AuthBadSignature
	AuthExpired
	AuthIdentityNotFound
	AuthIdentityInactive
	AuthInvalidCredentials
)

// String names the kind for logs.
func (k AuthErrorKind) String() string {
	switch k {
	case AuthMissingCredentials:
		return "missing_credentials"
	case AuthMalformed:
		return "malformed"
	case AuthBadSignature:
		return "bad_signature"
	case AuthExpired:
		return "expired"
	case AuthIdentityNotFound:
		return "identity_not_found"
	case AuthIdentityInactive:
		return "identity_inactive"
	case AuthInvalidCredentials:
		return "invalid_credentials"
	default:
		return "unknown"
	}
}

// AuthenticationError is a failed identity proof. errors.Is(err,
// ErrUnauthenticated) holds for every kind, and errors.Is against another
// *AuthenticationError compares kinds.
type AuthenticationError struct {
	Kind AuthErrorKind
	Err  error
}

// Error renders the kind and, when set, the wrapped cause.
func (e *AuthenticationError) Error() string {
	if e.Err == nil {
		return "unauthenticated: " + e.Kind.String()
	}
	return "unauthenticated: " + e.Kind.String() + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Is matches ErrUnauthenticated and any *AuthenticationError of the same kind.
func (e *AuthenticationError) Is(target error) bool {
	if target == ErrUnauthenticated {
		return true
	}
	var other *AuthenticationError
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

var (
	ErrIdentityNotFound   = &AuthenticationError{Kind: AuthIdentityNotFound}
	ErrIdentityInactive   = &AuthenticationError{Kind: AuthIdentityInactive}
	ErrInvalidCredentials = &AuthenticationError{Kind: AuthInvalidCredentials}
	ErrMissingCredentials = &AuthenticationError{Kind: AuthMissingCredentials}
)

// AuthKindOf returns the kind carried by err, if any.
func AuthKindOf(err error) (AuthErrorKind, bool) {
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return authErr.Kind, true
	}
	return 0, false
}

// ValidationError lists the input fields that failed validation, keyed by
// their JSON name.
type ValidationError struct {
	Fields map[string]string
}

// Error lists the failing fields in sorted order.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
