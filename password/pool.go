package password

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Hasher is the narrow contract the Pool schedules. *Argon2 satisfies it.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password string, encodedHash string) bool
}

// Pool bounds how many hash derivations run at once. Argon2 is memory and CPU
// heavy, so an unbounded burst of logins would otherwise starve the process.
//
// A Pool is safe for concurrent use. Waiting for a slot honors ctx.
type Pool struct {
	hasher  Hasher
	sem     *semaphore.Weighted
	workers int
}

// NewPool returns a pool running at most workers derivations concurrently.
// A non-positive workers value means GOMAXPROCS.
func NewPool(h Hasher, workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return &Pool{
		hasher:  h,
		sem:     semaphore.NewWeighted(int64(workers)),
		workers: workers,
	}
}

// Workers returns the concurrency bound.
func (p *Pool) Workers() int {
	return p.workers
}

// Hash derives an encoded hash once a worker slot is free.
func (p *Pool) Hash(ctx context.Context, password string) (string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("password: acquire hash slot: %w", err)
	}
	defer p.sem.Release(1)

	return p.hasher.Hash(password)
}

// Verify checks password against encodedHash once a worker slot is free. The
// error is non-nil only when ctx ended before a slot became available.
func (p *Pool) Verify(ctx context.Context, password string, encodedHash string) (bool, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("password: acquire verify slot: %w", err)
	}
	defer p.sem.Release(1)

	return p.hasher.Verify(password, encodedHash), nil
}
