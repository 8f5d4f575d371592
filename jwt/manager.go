package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Algorithm names the HMAC signing algorithm pinned at startup.
type Algorithm string

const (
	HS256 Algorithm = "HS256"
	HS384 Algorithm = "HS384"
	HS512 Algorithm = "HS512"
)

// DefaultTTL matches the earlier service's ACCESS_TOKEN_EXPIRE_MINUTES default.
const DefaultTTL = 30 * time.Minute

var (
	// ErrConfiguration reports a signing configuration the manager refuses to
	// start with (absent secret, unknown algorithm).
	ErrConfiguration = errors.New("jwt: invalid signing configuration")
	// ErrInvalidTTL is returned by Issue for a non-positive ttl.
	ErrInvalidTTL = errors.New("jwt: ttl must be positive")
)

// Config is the immutable signing configuration shared by issue and validate.
type Config struct {
	Secret     []byte
	Algorithm  Algorithm
	DefaultTTL time.Duration
}

// Claims is the token payload: subject, issued-at, expiry and a random id.
type Claims struct {
	jwt.RegisteredClaims
}

// SubjectID parses the subject back into a credential id.
func (c *Claims) SubjectID() (int64, error) {
	return parseSubject(c.Subject)
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now for both issue and validate.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager issues and validates HMAC-signed access tokens. It holds no mutable
// state after NewManager and is safe for concurrent use.
type Manager struct {
	secret     []byte
	method     *jwt.SigningMethodHMAC
	defaultTTL time.Duration
	now        func() time.Time
}

// NewManager validates cfg and returns a manager pinned to its algorithm. An
// empty Algorithm means HS256 and a zero DefaultTTL means DefaultTTL.
func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("%w: secret key is empty", ErrConfiguration)
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = HS256
	}
	method, err := methodFor(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	if cfg.DefaultTTL == 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.DefaultTTL < 0 {
		return nil, fmt.Errorf("%w: default ttl must be positive", ErrConfiguration)
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	m := &Manager{
		secret:     secret,
		method:     method,
		defaultTTL: cfg.DefaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Algorithm returns the pinned algorithm name.
func (m *Manager) Algorithm() Algorithm {
	return Algorithm(m.method.Alg())
}

// DefaultTTL returns the lifetime IssueDefault uses.
func (m *Manager) DefaultTTL() time.Duration {
	return m.defaultTTL
}

// IssueDefault issues a token for subjectID with the configured default ttl.
func (m *Manager) IssueDefault(subjectID int64) (string, error) {
	return m.Issue(subjectID, m.defaultTTL)
}

// Issue signs {sub, iat, exp, jti} for subjectID. Claim times have one-second
// precision; exp is rounded up so the token lives at least ttl, and a
// sub-second ttl still yields exp after iat.
func (m *Manager) Issue(subjectID int64, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", ErrInvalidTTL
	}
	if subjectID <= 0 {
		return "", fmt.Errorf("jwt: invalid subject id %d", subjectID)
	}

	now := m.now()
	issuedAt := jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(ceilSecond(now.Add(ttl)))
	if !expiresAt.After(issuedAt.Time) {
		expiresAt = jwt.NewNumericDate(issuedAt.Add(time.Second))
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(subjectID, 10),
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(m.method, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, nil
}

// Validate verifies the signature under the pinned algorithm, then requires
// exp strictly in the future with no leeway. Every failure is a
// *ValidationError carrying its Kind.
func (m *Manager) Validate(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if !token.Valid {
		return nil, &ValidationError{Kind: KindMalformed, Err: jwt.ErrTokenInvalidClaims}
	}
	if _, err := parseSubject(claims.Subject); err != nil {
		return nil, &ValidationError{Kind: KindMalformed, Err: err}
	}

	return claims, nil
}

func classify(err error) *ValidationError {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return &ValidationError{Kind: KindMalformed, Err: err}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return &ValidationError{Kind: KindBadSignature, Err: err}
	case errors.Is(err, jwt.ErrTokenExpired):
		return &ValidationError{Kind: KindExpired, Err: err}
	default:
		return &ValidationError{Kind: KindMalformed, Err: err}
	}
}

func parseSubject(sub string) (int64, error) {
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("jwt: invalid subject %q", sub)
	}
	return id, nil
}

func methodFor(alg Algorithm) (*jwt.SigningMethodHMAC, error) {
	switch alg {
	case HS256:
		return jwt.SigningMethodHS256, nil
	case HS384:
		return jwt.SigningMethodHS384, nil
	case HS512:
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrConfiguration, alg)
	}
}

// ceilSecond rounds t up to the next whole second unless it already is one.
func ceilSecond(t time.Time) time.Time {
	whole := t.Truncate(time.Second)
	if whole.Before(t) {
		whole = whole.Add(time.Second)
	}
	return whole
}
