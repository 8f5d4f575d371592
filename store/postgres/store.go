package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/projectatlas/astaauth"
)

const uniqueViolation = "23505"

const credentialColumns = `id, email, hashed_password, COALESCE(full_name, ''), COALESCE(company_name, ''),
	is_active, is_superuser, created_at, updated_at`

// Store implements the astaauth credential interfaces on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ astaauth.CredentialStore     = (*Store)(nil)
	_ astaauth.CredentialWriter    = (*Store)(nil)
	_ astaauth.CredentialLister    = (*Store)(nil)
	_ astaauth.CredentialActivator = (*Store)(nil)
)

// New wraps an existing pool. The caller keeps ownership of pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Open connects a pool to dsn and pings it.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Ping checks the pool can reach the database.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// FindByEmail looks a credential up by its exact email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*astaauth.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM users WHERE email = $1`
	return scanCredential(s.pool.QueryRow(ctx, query, email))
}

// FindByID looks a credential up by primary key.
func (s *Store) FindByID(ctx context.Context, id int64) (*astaauth.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM users WHERE id = $1`
	return scanCredential(s.pool.QueryRow(ctx, query, id))
}

// Create inserts a credential. is_active and is_superuser take their column
// defaults.
func (s *Store) Create(ctx context.Context, c astaauth.NewCredential) (*astaauth.Credential, error) {
	query := `INSERT INTO users (email, hashed_password, full_name, company_name)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
		RETURNING ` + credentialColumns

	cred, err := scanCredential(s.pool.QueryRow(ctx, query, c.Email, c.PasswordHash, c.FullName, c.CompanyName))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, astaauth.ErrEmailTaken
		}
		return nil, err
	}
	return cred, nil
}

// SetActive flips is_active and bumps updated_at.
func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("postgres: set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return astaauth.ErrCredentialNotFound
	}
	return nil
}

// List returns credentials ordered by id. A non-positive limit means no limit.
func (s *Store) List(ctx context.Context, limit, offset int) ([]astaauth.Credential, error) {
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + credentialColumns + ` FROM users ORDER BY id OFFSET $1`
	args := []any{offset}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list users: %w", err)
	}
	defer rows.Close()

	var out []astaauth.Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list users: %w", err)
	}
	return out, nil
}

func scanCredential(row pgx.Row) (*astaauth.Credential, error) {
	var c astaauth.Credential
	err := row.Scan(
		&c.ID,
		&c.Email,
		&c.PasswordHash,
		&c.FullName,
		&c.CompanyName,
		&c.Active,
		&c.Superuser,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, astaauth.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("postgres: scan user: %w", err)
	}
	return &c, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
