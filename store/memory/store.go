// Package memory is a process-local credential store for development and
// tests. Contents are lost on exit.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/projectatlas/astaauth"
)

// Store keeps credentials in maps guarded by a RWMutex.
type Store struct {
	mu      sync.RWMutex
	byID    map[int64]astaauth.Credential
	byEmail map[string]int64
	nextID  int64
	now     func() time.Time
}

var (
	_ astaauth.CredentialStore     = (*Store)(nil)
	_ astaauth.CredentialWriter    = (*Store)(nil)
	_ astaauth.CredentialLister    = (*Store)(nil)
	_ astaauth.CredentialActivator = (*Store)(nil)
)

// New returns an empty store whose ids start at 1.
func New() *Store {
	return &Store{
		byID:    make(map[int64]astaauth.Credential),
		byEmail: make(map[string]int64),
		nextID:  1,
		now:     time.Now,
	}
}

// FindByEmail returns a copy of the credential registered under email.
func (s *Store) FindByEmail(_ context.Context, email string) (*astaauth.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, astaauth.ErrCredentialNotFound
	}
	c := s.byID[id]
	return &c, nil
}

// FindByID returns a copy of the credential with id.
func (s *Store) FindByID(_ context.Context, id int64) (*astaauth.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[id]
	if !ok {
		return nil, astaauth.ErrCredentialNotFound
	}
	return &c, nil
}

// Create stores an active, non-superuser credential under the next id.
func (s *Store) Create(_ context.Context, nc astaauth.NewCredential) (*astaauth.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[nc.Email]; taken {
		return nil, astaauth.ErrEmailTaken
	}

	now := s.now().UTC()
	c := astaauth.Credential{
		ID:           s.nextID,
		Email:        nc.Email,
		PasswordHash: nc.PasswordHash,
		FullName:     nc.FullName,
		CompanyName:  nc.CompanyName,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.nextID++
	s.byID[c.ID] = c
	s.byEmail[c.Email] = c.ID
	return &c, nil
}

// SetActive flips is_active for an operator action.
func (s *Store) SetActive(_ context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return astaauth.ErrCredentialNotFound
	}
	c.Active = active
	c.UpdatedAt = s.now().UTC()
	s.byID[id] = c
	return nil
}

// List returns credentials ordered by id. A non-positive limit means no limit.
func (s *Store) List(_ context.Context, limit, offset int) ([]astaauth.Credential, error) {
	s.mu.RLock()
	out := make([]astaauth.Credential, 0, len(s.byID))
	for _, c := range s.byID {
		out = append(out, c)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	if offset < 0 {
		offset = 0
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
