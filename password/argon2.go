package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Work-factor limits. A stored hash outside them is treated as corrupt, so a
// tampered row cannot make verification allocate or run without bound.
const (
	minMemoryKB uint32 = 8 * 1024
	maxMemoryKB uint32 = 1024 * 1024
	maxTime     uint32 = 64
	minSaltLen         = 16
	minKeyLen          = 16

	phcPrefix = "$argon2id$"
)

var (
	ErrMalformedHash  = errors.New("password: malformed argon2id hash")
	ErrUnsupportedPHC = errors.New("password: unsupported hash algorithm or version")
)

// Config holds the argon2id work factor. Memory is in KiB.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig is the work factor used when none is configured.
func DefaultConfig() Config {
	return Config{Memory: 64 * 1024, Time: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32}
}

// Validate reports the first parameter that is below the accepted minimum.
func (c Config) Validate() error {
	switch {
	case c.Memory < minMemoryKB || c.Memory > maxMemoryKB:
		return fmt.Errorf("password: memory %d KiB outside [%d, %d]", c.Memory, minMemoryKB, maxMemoryKB)
	case c.Time == 0 || c.Time > maxTime:
		return fmt.Errorf("password: time %d outside [1, %d]", c.Time, maxTime)
	case c.Parallelism == 0:
		return errors.New("password: parallelism must be at least 1")
	case c.SaltLength < minSaltLen:
		return fmt.Errorf("password: salt length must be at least %d bytes", minSaltLen)
	case c.KeyLength < minKeyLen:
		return fmt.Errorf("password: key length must be at least %d bytes", minKeyLen)
	}
	return nil
}

// Argon2 hashes with argon2id and verifies argon2id or legacy bcrypt
// hashes. It holds no mutable state and is safe for concurrent use.
type Argon2 struct {
	cfg Config
}

// NewArgon2 returns a hasher bound to cfg, or the Validate error.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Argon2{cfg: cfg}, nil
}

// Config returns the parameters written into new hashes.
func (a *Argon2) Config() Config { return a.cfg }

// Hash derives a PHC-encoded hash under a fresh random salt. The password
// bytes are used as given, without normalization.
func (a *Argon2) Hash(password string) (string, error) {
	h := phcHash{
		memory:      a.cfg.Memory,
		time:        a.cfg.Time,
		parallelism: a.cfg.Parallelism,
		salt:        make([]byte, a.cfg.SaltLength),
	}
	if _, err := rand.Read(h.salt); err != nil {
		return "", fmt.Errorf("password: generate salt: %w", err)
	}
	h.key = h.derive(password, a.cfg.KeyLength)
	return h.String(), nil
}

// Verify reports whether password produces encoded. Any decoding problem is
// a plain mismatch.
func (a *Argon2) Verify(password, encoded string) bool {
	if isBcrypt(encoded) {
		return verifyBcrypt(password, encoded)
	}

	h, err := decodePHC(encoded)
	if err != nil {
		return false
	}
	got := h.derive(password, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(got, h.key) == 1
}

// NeedsUpgrade reports whether encoded should be rehashed with the current
// parameters: it is bcrypt, one of its costs is lower, or its key length
// differs.
func (a *Argon2) NeedsUpgrade(encoded string) (bool, error) {
	if isBcrypt(encoded) {
		return true, nil
	}

	h, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}
	stale := h.memory < a.cfg.Memory ||
		h.time < a.cfg.Time ||
		h.parallelism < a.cfg.Parallelism ||
		uint32(len(h.key)) != a.cfg.KeyLength
	return stale, nil
}

// phcHash is a decoded $argon2id$v=19$m=..,t=..,p=..$salt$key string.
type phcHash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (h phcHash) derive(password string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), h.salt, h.time, h.memory, h.parallelism, keyLen)
}

func (h phcHash) params() string {
	return fmt.Sprintf("m=%d,t=%d,p=%d", h.memory, h.time, h.parallelism)
}

func (h phcHash) String() string {
	var b strings.Builder
	b.WriteString(phcPrefix)
	fmt.Fprintf(&b, "v=%d$", argon2.Version)
	b.WriteString(h.params())
	b.WriteByte('$')
	b.WriteString(base64.RawStdEncoding.EncodeToString(h.salt))
	b.WriteByte('$')
	b.WriteString(base64.RawStdEncoding.EncodeToString(h.key))
	return b.String()
}

func decodePHC(encoded string) (phcHash, error) {
	var h phcHash

	rest, ok := strings.CutPrefix(encoded, phcPrefix)
	if !ok {
		return h, ErrUnsupportedPHC
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 4 {
		return h, ErrMalformedHash
	}
	if fields[0] != fmt.Sprintf("v=%d", argon2.Version) {
		return h, ErrUnsupportedPHC
	}

	// Scanning then re-rendering rejects reordered, missing or padded
	// parameters.
	if _, err := fmt.Sscanf(fields[1], "m=%d,t=%d,p=%d", &h.memory, &h.time, &h.parallelism); err != nil {
		return h, fmt.Errorf("%w: parameters: %v", ErrMalformedHash, err)
	}
	if h.params() != fields[1] {
		return h, fmt.Errorf("%w: parameters %q", ErrMalformedHash, fields[1])
	}
	if h.memory < minMemoryKB || h.memory > maxMemoryKB || h.time == 0 || h.time > maxTime || h.parallelism == 0 {
		return h, fmt.Errorf("%w: parameters out of range", ErrMalformedHash)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(fields[2]); err != nil || len(h.salt) < minSaltLen {
		return h, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(fields[3]); err != nil || len(h.key) < minKeyLen {
		return h, fmt.Errorf("%w: key", ErrMalformedHash)
	}
	return h, nil
}
