package astaauth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGateAdmitsActiveIdentity(t *testing.T) {
	te := newTestEngine(t, nil)
	token, err := te.IssueToken(te.alice.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	for _, header := range []string{bearer(token), "bearer " + token, "  BEARER   " + token + " "} {
		res := te.Check(context.Background(), header)
		if !res.Allowed() {
			t.Fatalf("header %q: expected allowed, got %s (%v)", header, res.Outcome, res.Err)
		}
		if res.Identity.ID != te.alice.ID || res.Identity.Email != "alice@example.com" {
			t.Fatalf("unexpected identity: %+v", res.Identity)
		}
	}
}

func TestGateRejections(t *testing.T) {
	te := newTestEngine(t, nil)
	token, err := te.IssueToken(te.alice.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	ghost, err := te.IssueToken(9999)
	if err != nil {
		t.Fatalf("issue ghost: %v", err)
	}

	tests := []struct {
		name   string
		header string
		kind   AuthErrorKind
	}{
		{name: "no header", header: "", kind: AuthMissingCredentials},
		{name: "basic scheme", header: "Basic YWxpY2U6cHc=", kind: AuthMissingCredentials},
		{name: "empty bearer", header: "Bearer   ", kind: AuthMissingCredentials},
		{name: "garbage token", header: "Bearer abc.def", kind: AuthMalformed},
		{name: "tampered token", header: bearer(tamperSignature(token)), kind: AuthBadSignature},
		{name: "unknown subject", header: bearer(ghost), kind: AuthIdentityNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := te.Check(context.Background(), tt.header)
			if res.Outcome != GateUnauthenticated {
				t.Fatalf("expected unauthenticated, got %s (%v)", res.Outcome, res.Err)
			}
			if res.Kind != tt.kind {
				t.Fatalf("expected kind %s, got %s", tt.kind, res.Kind)
			}

			_, err := te.Authenticate(context.Background(), tt.header)
			if !errors.Is(err, ErrUnauthenticated) {
				t.Fatalf("expected ErrUnauthenticated, got %v", err)
			}
			if kind, _ := AuthKindOf(err); kind != tt.kind {
				t.Fatalf("Authenticate kind %s, want %s", kind, tt.kind)
			}
		})
	}
}

// tamperSignature flips the first signature character. The last character
// carries padding bits and may decode to the same bytes.
func tamperSignature(token string) string {
	i := strings.LastIndexByte(token, '.') + 1
	b := []byte(token)
	if b[i] == 'A' {
		b[i] = 'Q'
	} else {
		b[i] = 'A'
	}
	return string(b)
}

func TestGateReadsAccountStateEveryCall(t *testing.T) {
	te := newTestEngine(t, nil)
	token, err := te.IssueToken(te.alice.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if res := te.Check(context.Background(), bearer(token)); !res.Allowed() {
		t.Fatalf("expected allowed, got %v", res.Err)
	}

	te.store.setActive(te.alice.ID, false)
	res := te.Check(context.Background(), bearer(token))
	if res.Kind != AuthIdentityInactive {
		t.Fatalf("expected inactive after deactivation, got %s/%s", res.Outcome, res.Kind)
	}

	te.store.setActive(te.alice.ID, true)
	if res := te.Check(context.Background(), bearer(token)); !res.Allowed() {
		t.Fatalf("expected allowed after reactivation, got %v", res.Err)
	}

	te.store.remove(te.alice.ID)
	if res := te.Check(context.Background(), bearer(token)); res.Kind != AuthIdentityNotFound {
		t.Fatalf("expected not found after removal, got %s", res.Kind)
	}
	if te.store.writes != 0 {
		t.Fatal("gate must not write to the store")
	}
}

func TestGateExpiry(t *testing.T) {
	te := newTestEngine(t, nil)
	token, err := te.IssueTokenTTL(te.alice.ID, time.Second)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	te.clock.Advance(999 * time.Millisecond)
	if res := te.Check(context.Background(), bearer(token)); !res.Allowed() {
		t.Fatalf("expected allowed before exp, got %v", res.Err)
	}

	te.clock.Advance(2 * time.Second)
	res := te.Check(context.Background(), bearer(token))
	if res.Kind != AuthExpired {
		t.Fatalf("expected expired, got %s/%s", res.Outcome, res.Kind)
	}
	if got := te.MetricsSnapshot().Counters[MetricTokenExpired]; got != 1 {
		t.Fatalf("expected expired counter 1, got %d", got)
	}
}

func TestGateStoreOutage(t *testing.T) {
	te := newTestEngine(t, nil)
	token, err := te.IssueToken(te.alice.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	te.store.setDown(true)

	res := te.Check(context.Background(), bearer(token))
	if res.Outcome != GateUnavailable {
		t.Fatalf("expected unavailable, got %s", res.Outcome)
	}

	_, err = te.Authenticate(context.Background(), bearer(token))
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
	if errors.Is(err, ErrUnauthenticated) {
		t.Fatal("outage must not be reported as unauthenticated")
	}

	// Check and Authenticate each count the outage once.
	snap := te.MetricsSnapshot()
	if snap.Counters[MetricStoreUnavailable] != 2 || snap.Counters[MetricGateDenied] != 0 {
		t.Fatalf("unexpected counters: %+v", snap.Counters)
	}
}

func TestGateConcurrentChecks(t *testing.T) {
	te := newTestEngine(t, nil)
	token, err := te.IssueToken(te.alice.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if res := te.Check(context.Background(), bearer(token)); !res.Allowed() {
					errs <- res.Err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent check failed: %v", err)
	}

	if got := te.MetricsSnapshot().Counters[MetricGateAllowed]; got != workers*50 {
		t.Fatalf("expected %d allowed, got %d", workers*50, got)
	}
}

type stubValidator struct {
	id  int64
	err error
}

func (s stubValidator) ValidateToken(string) (int64, error) { return s.id, s.err }

type stubResolver struct {
	identity *Identity
	err      error
}

func (s stubResolver) ResolveIdentity(context.Context, int64) (*Identity, error) {
	return s.identity, s.err
}

func TestNewGateWithCustomParts(t *testing.T) {
	alice := &Identity{ID: 7, Email: "alice@example.com", Active: true}

	g := NewGate(stubValidator{id: 7}, stubResolver{identity: alice})
	identity, err := g.Authenticate(context.Background(), "Bearer anything")
	if err != nil || identity != alice {
		t.Fatalf("expected alice, got %v, %v", identity, err)
	}

	g = NewGate(stubValidator{err: errors.New("boom")}, stubResolver{identity: alice})
	if res := g.Check(context.Background(), "Bearer anything"); res.Outcome != GateFailed {
		t.Fatalf("expected GateFailed for unclassified error, got %s", res.Outcome)
	}

	g = NewGate(stubValidator{id: 7}, stubResolver{err: ErrIdentityInactive})
	if res := g.Check(context.Background(), "Bearer anything"); res.Kind != AuthIdentityInactive {
		t.Fatalf("expected inactive, got %s", res.Kind)
	}

	var nilGate *Gate
	if res := nilGate.Check(context.Background(), "Bearer x"); res.Outcome != GateFailed {
		t.Fatalf("expected GateFailed on nil gate, got %s", res.Outcome)
	}
}
