//go:build integration

package test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/projectatlas/astaauth"
	"github.com/projectatlas/astaauth/store/redisstore"
)

const testSecret = "integration-secret-0123456789abcdef"

// eachRedis runs fn against miniredis, and also against a live server when
// REDIS_ADDR is set and a live cluster when REDIS_CLUSTER_ADDRS is set. Each
// run gets a store under its own key prefix.
func eachRedis(t *testing.T, fn func(t *testing.T, store *redisstore.Store)) {
	backends := map[string]func(t *testing.T) redis.UniversalClient{
		"miniredis": func(t *testing.T) redis.UniversalClient {
			srv := miniredis.RunT(t)
			return redis.NewClient(&redis.Options{Addr: srv.Addr()})
		},
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		backends["standalone"] = func(*testing.T) redis.UniversalClient {
			return redis.NewClient(&redis.Options{Addr: addr})
		}
	}
	if addrs := os.Getenv("REDIS_CLUSTER_ADDRS"); addrs != "" {
		backends["cluster"] = func(*testing.T) redis.UniversalClient {
			return redis.NewClusterClient(&redis.ClusterOptions{Addrs: strings.Split(addrs, ",")})
		}
	}

	for name, connect := range backends {
		t.Run(name, func(t *testing.T) {
			rdb := connect(t)
			t.Cleanup(func() { _ = rdb.Close() })

			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				t.Skipf("%s unreachable: %v", name, err)
			}

			prefix := fmt.Sprintf("it%d", time.Now().UnixNano())
			fn(t, redisstore.New(rdb, redisstore.WithPrefix(prefix)))
		})
	}
}

// newEngine builds an engine with the cheapest accepted argon2 cost.
func newEngine(t *testing.T, store astaauth.CredentialStore) *astaauth.Engine {
	t.Helper()

	cfg := astaauth.DefaultConfig()
	cfg.JWT.SecretKey = []byte(testSecret)
	cfg.Password.Memory, cfg.Password.Time, cfg.Password.Parallelism = 8*1024, 1, 1
	cfg.Audit.Enabled = false

	engine, err := astaauth.New().WithConfig(cfg).WithCredentialStore(store).Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}
