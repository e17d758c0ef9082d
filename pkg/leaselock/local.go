package leaselock

import (
	"context"
	"sync"
	"time"
)

type localLease struct {
	token   string
	expires time.Time
}

// LocalBackend keeps leases in process memory. It serializes workers that
// share one embedded store.
type LocalBackend struct {
	mu     sync.Mutex
	leases map[string]localLease
	now    func() time.Time
}

func NewLocal() *LocalBackend {
	return &LocalBackend{leases: make(map[string]localLease), now: time.Now}
}

func (b *LocalBackend) TryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if cur, ok := b.leases[key]; ok && cur.token != token && !cur.expires.Before(now) {
		return false, nil
	}
	b.leases[key] = localLease{token: token, expires: now.Add(ttl)}
	return true, nil
}

func (b *LocalBackend) Renew(ctx context.Context, key, token string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	cur, ok := b.leases[key]
	if !ok || cur.token != token {
		return ErrLost
	}
	b.leases[key] = localLease{token: token, expires: b.now().Add(ttl)}
	return nil
}

func (b *LocalBackend) Release(_ context.Context, key, token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cur, ok := b.leases[key]; ok && cur.token == token {
		delete(b.leases, key)
	}
	return nil
}
