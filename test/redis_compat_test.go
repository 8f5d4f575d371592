//go:build integration

package test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/projectatlas/astaauth"
	"github.com/projectatlas/astaauth/store/redisstore"
)

func TestRedisLoginGateAndDeactivate(t *testing.T) {
	eachRedis(t, func(t *testing.T, store *redisstore.Store) {
		ctx := context.Background()
		engine := newEngine(t, store)

		alice, err := engine.Register(ctx, astaauth.RegisterRequest{Email: "alice@example.com", Password: "pw-alice-123"})
		if err != nil {
			t.Fatalf("register: %v", err)
		}
		tok, err := engine.Login(ctx, astaauth.LoginRequest{Email: "alice@example.com", Password: "pw-alice-123"})
		if err != nil {
			t.Fatalf("login: %v", err)
		}
		header := "Bearer " + tok.AccessToken

		if res := engine.Check(ctx, header); !res.Allowed() || res.Identity.ID != alice.ID {
			t.Fatalf("check = %+v, want allowed as %d", res, alice.ID)
		}

		if err := store.SetActive(ctx, alice.ID, false); err != nil {
			t.Fatalf("deactivate: %v", err)
		}
		res := engine.Check(ctx, header)
		if res.Outcome != astaauth.GateUnauthenticated || res.Kind != astaauth.AuthIdentityInactive {
			t.Fatalf("check after deactivate = %+v", res)
		}
	})
}

func TestRedisRegisterRaceSingleWinner(t *testing.T) {
	eachRedis(t, func(t *testing.T, store *redisstore.Store) {
		engine := newEngine(t, store)

		const racers = 16
		var created, taken atomic.Int32
		var wg sync.WaitGroup
		for range racers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := engine.Register(context.Background(), astaauth.RegisterRequest{Email: "dup@example.com", Password: "pw-dup-123"})
				switch {
				case err == nil:
					created.Add(1)
				case errors.Is(err, astaauth.ErrEmailTaken):
					taken.Add(1)
				default:
					t.Errorf("register: %v", err)
				}
			}()
		}
		wg.Wait()

		if created.Load() != 1 || taken.Load() != racers-1 {
			t.Fatalf("created=%d taken=%d, want 1 and %d", created.Load(), taken.Load(), racers-1)
		}
	})
}
