package flows

import "strings"

// FailureKind classifies a rejected request for root-level mapping.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureMissingCredentials
	FailureMalformed
	FailureBadSignature
	FailureExpired
	FailureIdentityNotFound
	FailureIdentityInactive
	FailureInvalidCredentials
	FailureUnavailable
	FailureUnexpected
)

// String names the failure kind for logs.
func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureMissingCredentials:
		return "missing_credentials"
	case FailureMalformed:
		return "malformed"
	case FailureBadSignature:
		return "bad_signature"
	case FailureExpired:
		return "expired"
	case FailureIdentityNotFound:
		return "identity_not_found"
	case FailureIdentityInactive:
		return "identity_inactive"
	case FailureInvalidCredentials:
		return "invalid_credentials"
	case FailureUnavailable:
		return "unavailable"
	default:
		return "unexpected"
	}
}

const bearerPrefix = "Bearer "

// BearerToken extracts the token from an Authorization header value. The
// scheme match is case-insensitive; an empty token is reported as absent.
func BearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}

	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", false
	}

	return token, true
}
