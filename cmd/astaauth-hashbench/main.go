// Command astaauth-hashbench drives concurrent logins and gate checks against
// an engine over the redis store and reports throughput and latency
// percentiles per phase.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/projectatlas/astaauth"
	"github.com/projectatlas/astaauth/store/redisstore"
)

const seedPassword = "bench-password-0001"

type options struct {
	users, workers, logins, checks, hashWorkers int
	memoryKB                                    uint
	redisAddr                                   string
}

func main() {
	var o options
	flag.IntVar(&o.users, "users", 64, "accounts to seed")
	flag.IntVar(&o.workers, "concurrency", 64, "concurrent callers")
	flag.IntVar(&o.logins, "logins", 500, "login operations")
	flag.IntVar(&o.checks, "checks", 200000, "gate check operations")
	flag.IntVar(&o.hashWorkers, "hash-workers", 0, "hashing slots; 0 means GOMAXPROCS")
	flag.UintVar(&o.memoryKB, "memory", 64*1024, "argon2 memory in KiB")
	flag.StringVar(&o.redisAddr, "redis-addr", os.Getenv("REDIS_ADDR"), "redis address; miniredis when empty")
	flag.Parse()

	if err := run(context.Background(), o); err != nil {
		fmt.Fprintln(os.Stderr, "hashbench:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options) error {
	if o.users < 1 || o.workers < 1 || o.logins < 1 || o.checks < 1 {
		return fmt.Errorf("users, concurrency, logins and checks must all be positive")
	}

	if o.redisAddr == "" {
		srv, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer srv.Close()
		o.redisAddr = srv.Addr()
		fmt.Println("redis: miniredis", o.redisAddr)
	} else {
		fmt.Println("redis:", o.redisAddr)
	}

	rdb := redis.NewClient(&redis.Options{Addr: o.redisAddr})
	defer rdb.Close()

	cfg := astaauth.DefaultConfig()
	cfg.JWT.SecretKey = []byte("hashbench-secret-key-0123456789abcdef")
	cfg.Password.Memory = uint32(o.memoryKB)
	cfg.Hashing.Workers = o.hashWorkers
	cfg.Audit.Enabled = false

	store := redisstore.New(rdb, redisstore.WithPrefix(fmt.Sprintf("bench%d", time.Now().UnixNano())))
	engine, err := astaauth.New().WithConfig(cfg).WithCredentialStore(store).Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	emails, headers, err := seed(ctx, engine, o.users)
	if err != nil {
		return err
	}

	phases := []struct {
		name string
		ops  int
		op   func(i int) error
	}{
		{"login", o.logins, func(i int) error {
			_, err := engine.Login(ctx, astaauth.LoginRequest{Email: emails[i%len(emails)], Password: seedPassword})
			return err
		}},
		{"gate", o.checks, func(i int) error {
			return engine.Check(ctx, headers[i%len(headers)]).Err
		}},
	}
	for _, p := range phases {
		fmt.Println(measure(p.ops, o.workers, p.op).format(p.name))
	}

	snap := engine.MetricsSnapshot()
	if n := snap.Counters[astaauth.MetricLoginSuccess]; n > 0 {
		fmt.Printf("mean hash time: %s over %d logins\n",
			(snap.HistogramSums[astaauth.MetricHashLatency] / time.Duration(n)).Round(time.Microsecond), n)
	}
	return nil
}

// seed registers n accounts in parallel and logs each in once.
func seed(ctx context.Context, engine *astaauth.Engine, n int) (emails, headers []string, err error) {
	started := time.Now()
	emails = make([]string, n)
	headers = make([]string, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range n {
		emails[i] = fmt.Sprintf("user%d@bench.local", i)
		g.Go(func() error {
			if _, err := engine.Register(gctx, astaauth.RegisterRequest{Email: emails[i], Password: seedPassword}); err != nil {
				return fmt.Errorf("register %s: %w", emails[i], err)
			}
			tok, err := engine.Login(gctx, astaauth.LoginRequest{Email: emails[i], Password: seedPassword})
			if err != nil {
				return fmt.Errorf("login %s: %w", emails[i], err)
			}
			headers[i] = "Bearer " + tok.AccessToken
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	fmt.Printf("seeded %d accounts in %s\n", n, time.Since(started).Round(time.Millisecond))
	return emails, headers, nil
}

type result struct {
	elapsed  time.Duration
	samples  []time.Duration
	failures int64
}

// measure runs op ops times across workers goroutines, each pulling the next
// index from a shared cursor.
func measure(ops, workers int, op func(i int) error) result {
	var (
		next     atomic.Int64
		failures atomic.Int64
		mu       sync.Mutex
		all      = make([]time.Duration, 0, ops)
		wg       sync.WaitGroup
	)

	started := time.Now()
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var mine []time.Duration
			for i := int(next.Add(1) - 1); i < ops; i = int(next.Add(1) - 1) {
				t0 := time.Now()
				if op(i) != nil {
					failures.Add(1)
				}
				mine = append(mine, time.Since(t0))
			}
			mu.Lock()
			all = append(all, mine...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	slices.Sort(all)
	return result{elapsed: time.Since(started), samples: all, failures: failures.Load()}
}

func (r result) quantile(q float64) time.Duration {
	if len(r.samples) == 0 {
		return 0
	}
	return r.samples[int(q*float64(len(r.samples)-1))]
}

func (r result) format(name string) string {
	rate := 0.0
	if r.elapsed > 0 {
		rate = float64(len(r.samples)) / r.elapsed.Seconds()
	}
	return fmt.Sprintf("%-5s ops=%d failed=%d elapsed=%s rate=%.0f/s p50=%s p95=%s p99=%s",
		name, len(r.samples), r.failures, r.elapsed.Round(time.Millisecond), rate,
		r.quantile(0.50).Round(time.Microsecond),
		r.quantile(0.95).Round(time.Microsecond),
		r.quantile(0.99).Round(time.Microsecond))
}
