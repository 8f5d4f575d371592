package astaauth

import (
	"context"
	"time"

	internalaudit "github.com/projectatlas/astaauth/internal/audit"
)

// Credential is one stored account as the credential store returns it. The
// engine reads credentials and never updates them.
type Credential struct {
	ID           int64
	Email        string
	PasswordHash string
	FullName     string
	CompanyName  string
	Active       bool
	// Superuser is carried through to Identity but never enforced here.
	Superuser bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity returns the credential without its password hash.
func (c *Credential) Identity() *Identity {
	if c == nil {
		return nil
	}
	return &Identity{
		ID:          c.ID,
		Email:       c.Email,
		FullName:    c.FullName,
		CompanyName: c.CompanyName,
		Active:      c.Active,
		Superuser:   c.Superuser,
		CreatedAt:   c.CreatedAt,
	}
}

// Identity is what guarded operations receive after a successful gate check.
type Identity struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	FullName    string    `json:"full_name,omitempty"`
	CompanyName string    `json:"company_name,omitempty"`
	Active      bool      `json:"is_active"`
	Superuser   bool      `json:"is_superuser"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewCredential is the row a CredentialWriter inserts. PasswordHash is
// already encoded; the plaintext never reaches a writer.
type NewCredential struct {
	Email        string
	PasswordHash string
	FullName     string
	CompanyName  string
}

// CredentialStore looks up credentials. Both methods return
// ErrCredentialNotFound when there is no record; any other error is treated
// as an outage.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*Credential, error)
	FindByID(ctx context.Context, id int64) (*Credential, error)
}

// CredentialWriter inserts new credentials. Create returns ErrEmailTaken on a
// duplicate email. It is optional; without one, Register is disabled.
type CredentialWriter interface {
	Create(ctx context.Context, c NewCredential) (*Credential, error)
}

// CredentialLister is an optional store capability used by the HTTP service
// to list accounts.
type CredentialLister interface {
	List(ctx context.Context, limit, offset int) ([]Credential, error)
}

// CredentialActivator is an optional store capability that flips an
// account's is_active flag. SetActive returns ErrCredentialNotFound for an
// unknown id.
type CredentialActivator interface {
	SetActive(ctx context.Context, id int64, active bool) error
}

// LoginRequest carries the login form. The form field for the email is
// "username" to stay compatible with OAuth2 password-grant clients.
type LoginRequest struct {
	Email    string `json:"email" form:"username" validate:"required,email,max=255"`
	Password string `json:"password" form:"password" validate:"required,max=1024"`
}

// RegisterRequest carries a new account.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email,max=255"`
	Password    string `json:"password" validate:"required,max=1024"`
	FullName    string `json:"full_name" validate:"max=255"`
	CompanyName string `json:"company_name" validate:"max=255"`
}

// TokenResponse is the successful login payload.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// TokenTypeBearer is the only token type the engine issues.
const TokenTypeBearer = "bearer"

// AuditEvent is the canonical audit event shape.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the engine's dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink discards audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers audit events in a channel; useful in tests.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON audit event per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// LoggerSink writes audit events through a zerolog logger.
type LoggerSink = internalaudit.LoggerSink

var (
	NewChannelSink    = internalaudit.NewChannelSink
	NewJSONWriterSink = internalaudit.NewJSONWriterSink
	NewLoggerSink     = internalaudit.NewLoggerSink
)
