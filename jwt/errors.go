package jwt

// Kind classifies why a token failed validation.
type Kind int

const (
	KindMalformed Kind = iota + 1
	KindBadSignature
	KindExpired
)

// String names the kind for logs.
func (k Kind) String() string {
	switch k {
	case KindMalformed:
		return "malformed"
	case KindBadSignature:
		return "bad_signature"
	case KindExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// ValidationError is returned by Manager.Validate for every rejected token.
type ValidationError struct {
	Kind Kind
	Err  error
}

// Error renders the kind and, when set, the wrapped cause.
func (e *ValidationError) Error() string {
	if e.Err == nil {
		return "jwt: token " + e.Kind.String()
	}
	return "jwt: token " + e.Kind.String() + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
