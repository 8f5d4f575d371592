package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/projectatlas/astaauth"
)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "asta"

const createScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
local id = redis.call("INCR", KEYS[2])
local user = ARGV[1] .. id
redis.call("HSET", user,
  "id", id,
  "email", ARGV[2],
  "hashed_password", ARGV[3],
  "full_name", ARGV[4],
  "company_name", ARGV[5],
  "is_active", "1",
  "is_superuser", "0",
  "created_at", ARGV[6],
  "updated_at", ARGV[6])
redis.call("SET", KEYS[1], id)
redis.call("ZADD", KEYS[3], id, id)
return id
`

var createLua = redis.NewScript(createScript)

// Store implements the astaauth credential interfaces on Redis.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

var (
	_ astaauth.CredentialStore     = (*Store)(nil)
	_ astaauth.CredentialWriter    = (*Store)(nil)
	_ astaauth.CredentialLister    = (*Store)(nil)
	_ astaauth.CredentialActivator = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithPrefix replaces DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithClock sets the clock used for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a store over rdb. The caller keeps ownership of rdb.
func New(rdb redis.UniversalClient, opts ...Option) *Store {
	s := &Store{rdb: rdb, prefix: DefaultPrefix, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Every key carries the prefix as a hash tag so the create script touches a
// single cluster slot.
func (s *Store) tag() string {
	return "{" + s.prefix + "}"
}

func (s *Store) userKeyPrefix() string {
	return s.tag() + ":user:"
}

func (s *Store) userKey(id int64) string {
	return s.userKeyPrefix() + strconv.FormatInt(id, 10)
}

func (s *Store) emailKey(email string) string {
	return s.tag() + ":email:" + email
}

func (s *Store) seqKey() string {
	return s.tag() + ":users:seq"
}

func (s *Store) indexKey() string {
	return s.tag() + ":users"
}

// FindByEmail resolves the email index, then loads the user hash.
func (s *Store) FindByEmail(ctx context.Context, email string) (*astaauth.Credential, error) {
	raw, err := s.rdb.Get(ctx, s.emailKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, astaauth.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("redisstore: get email: %w", err)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redisstore: corrupt email index %q: %w", raw, err)
	}
	return s.FindByID(ctx, id)
}

// FindByID loads the user hash for id.
func (s *Store) FindByID(ctx context.Context, id int64) (*astaauth.Credential, error) {
	fields, err := s.rdb.HGetAll(ctx, s.userKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: get user: %w", err)
	}
	if len(fields) == 0 {
		return nil, astaauth.ErrCredentialNotFound
	}
	return decodeCredential(fields)
}

// Create inserts a new active, non-superuser credential.
func (s *Store) Create(ctx context.Context, c astaauth.NewCredential) (*astaauth.Credential, error) {
	now := s.now().UTC()
	id, err := createLua.Run(ctx, s.rdb,
		[]string{s.emailKey(c.Email), s.seqKey(), s.indexKey()},
		s.userKeyPrefix(),
		c.Email,
		c.PasswordHash,
		c.FullName,
		c.CompanyName,
		now.Format(time.RFC3339Nano),
	).Int64()
	if err != nil {
		return nil, fmt.Errorf("redisstore: create user: %w", err)
	}
	if id == 0 {
		return nil, astaauth.ErrEmailTaken
	}

	return &astaauth.Credential{
		ID:           id,
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		FullName:     c.FullName,
		CompanyName:  c.CompanyName,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// SetActive flips is_active for an operator action. It returns
// astaauth.ErrCredentialNotFound for unknown ids.
func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	key := s.userKey(id)
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redisstore: check user: %w", err)
	}
	if n == 0 {
		return astaauth.ErrCredentialNotFound
	}

	flag := "0"
	if active {
		flag = "1"
	}
	if err := s.rdb.HSet(ctx, key, "is_active", flag, "updated_at", s.now().UTC().Format(time.RFC3339Nano)).Err(); err != nil {
		return fmt.Errorf("redisstore: update user: %w", err)
	}
	return nil
}

// List returns credentials ordered by id. A non-positive limit means no limit.
func (s *Store) List(ctx context.Context, limit, offset int) ([]astaauth.Credential, error) {
	if offset < 0 {
		offset = 0
	}
	stop := int64(-1)
	if limit > 0 {
		stop = int64(offset + limit - 1)
	}

	ids, err := s.rdb.ZRange(ctx, s.indexKey(), int64(offset), stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: list users: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, len(ids))
	for _, raw := range ids {
		cmds = append(cmds, pipe.HGetAll(ctx, s.userKeyPrefix()+raw))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redisstore: list users: %w", err)
	}

	out := make([]astaauth.Credential, 0, len(cmds))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		c, err := decodeCredential(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

func decodeCredential(fields map[string]string) (*astaauth.Credential, error) {
	id, err := strconv.ParseInt(fields["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redisstore: corrupt user id %q: %w", fields["id"], err)
	}

	c := &astaauth.Credential{
		ID:           id,
		Email:        fields["email"],
		PasswordHash: fields["hashed_password"],
		FullName:     fields["full_name"],
		CompanyName:  fields["company_name"],
		Active:       fields["is_active"] == "1",
		Superuser:    fields["is_superuser"] == "1",
	}
	if c.CreatedAt, err = parseTime(fields["created_at"]); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(fields["updated_at"]); err != nil {
		return nil, err
	}
	return c, nil
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("redisstore: corrupt timestamp %q: %w", raw, err)
	}
	return t, nil
}
