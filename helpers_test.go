package astaauth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

var errStoreDown = errors.New("connection refused")

// fakeStore is an in-memory CredentialStore, CredentialWriter and
// CredentialLister with switchable outages.
type fakeStore struct {
	mu      sync.Mutex
	byID    map[int64]*Credential
	nextID  int64
	down    bool
	lookups int
	writes  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: make(map[int64]*Credential), nextID: 1}
}

func (s *fakeStore) setDown(down bool) {
	s.mu.Lock()
	s.down = down
	s.mu.Unlock()
}

func (s *fakeStore) setActive(id int64, active bool) {
	s.mu.Lock()
	if c, ok := s.byID[id]; ok {
		c.Active = active
	}
	s.mu.Unlock()
}

func (s *fakeStore) SetActive(_ context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return errStoreDown
	}
	c, ok := s.byID[id]
	if !ok {
		return ErrCredentialNotFound
	}
	c.Active = active
	return nil
}

func (s *fakeStore) remove(id int64) {
	s.mu.Lock()
	delete(s.byID, id)
	s.mu.Unlock()
}

func (s *fakeStore) put(c Credential) *Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.nextID
	}
	if c.ID >= s.nextID {
		s.nextID = c.ID + 1
	}
	stored := c
	s.byID[c.ID] = &stored
	return &stored
}

func (s *fakeStore) FindByEmail(_ context.Context, email string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.down {
		return nil, errStoreDown
	}
	for _, c := range s.byID {
		if strings.EqualFold(c.Email, email) {
			out := *c
			return &out, nil
		}
	}
	return nil, ErrCredentialNotFound
}

func (s *fakeStore) FindByID(_ context.Context, id int64) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.down {
		return nil, errStoreDown
	}
	c, ok := s.byID[id]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	out := *c
	return &out, nil
}

func (s *fakeStore) Create(_ context.Context, nc NewCredential) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, errStoreDown
	}
	for _, c := range s.byID {
		if strings.EqualFold(c.Email, nc.Email) {
			return nil, ErrEmailTaken
		}
	}
	s.writes++
	c := &Credential{
		ID:           s.nextID,
		Email:        nc.Email,
		PasswordHash: nc.PasswordHash,
		FullName:     nc.FullName,
		CompanyName:  nc.CompanyName,
		Active:       true,
		CreatedAt:    time.Unix(1_700_000_000, 0).UTC(),
	}
	s.nextID++
	s.byID[c.ID] = c
	out := *c
	return &out, nil
}

func (s *fakeStore) List(_ context.Context, limit, offset int) ([]Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, errStoreDown
	}
	out := make([]Credential, 0, len(s.byID))
	for id := int64(1); id < s.nextID; id++ {
		if c, ok := s.byID[id]; ok {
			out = append(out, *c)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// readOnlyStore hides the writer and lister capabilities of a fakeStore.
type readOnlyStore struct {
	s *fakeStore
}

func (r readOnlyStore) FindByEmail(ctx context.Context, email string) (*Credential, error) {
	return r.s.FindByEmail(ctx, email)
}

func (r readOnlyStore) FindByID(ctx context.Context, id int64) (*Credential, error) {
	return r.s.FindByID(ctx, id)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfigFast() Config {
	cfg := DefaultConfig()
	cfg.JWT.SecretKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Hashing.Workers = 4
	cfg.Audit.Enabled = false
	return cfg
}

type testEngine struct {
	*Engine
	store *fakeStore
	clock *testClock
	alice *Credential
}

const alicePassword = "correct horse battery staple"

// newTestEngine builds an engine over a fake store seeded with one active
// account, alice@example.com.
func newTestEngine(tb testing.TB, mutate func(*Config, *Builder)) *testEngine {
	tb.Helper()

	store := newFakeStore()
	clock := newTestClock()
	cfg := testConfigFast()

	b := New()
	if mutate != nil {
		mutate(&cfg, b)
	}
	engine, err := b.WithConfig(cfg).
		WithCredentialStore(store).
		WithClock(clock.Now).
		Build()
	if err != nil {
		tb.Fatalf("build: %v", err)
	}
	tb.Cleanup(engine.Close)

	hash, err := engine.HashPassword(context.Background(), alicePassword)
	if err != nil {
		tb.Fatalf("hash: %v", err)
	}
	alice := store.put(Credential{
		Email:        "alice@example.com",
		PasswordHash: hash,
		FullName:     "Alice Example",
		Active:       true,
	})

	return &testEngine{Engine: engine, store: store, clock: clock, alice: alice}
}

func bearer(token string) string {
	return "Bearer " + token
}
