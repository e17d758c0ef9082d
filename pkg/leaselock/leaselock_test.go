package leaselock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/OFFIS-RIT/kgstore/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAcquireBusy(t *testing.T) {
	c := New(NewLocal())
	ctx := context.Background()

	first, err := c.Acquire(ctx, "kg:ingest", Options{TTL: time.Minute})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if _, err := c.Acquire(ctx, "kg:ingest", Options{TTL: time.Minute}); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Acquire() error = %v, want ErrBusy", err)
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if first.Context.Err() == nil {
		t.Fatal("lease context not cancelled after release")
	}

	second, err := c.Acquire(ctx, "kg:ingest", Options{TTL: time.Minute})
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	_ = second.Release(ctx)
}

func TestAcquireEmptyKey(t *testing.T) {
	if _, err := New(NewLocal()).Acquire(context.Background(), "", Options{}); err == nil {
		t.Fatal("Acquire(\"\") succeeded, want error")
	}
}

func TestExpiredLeaseIsTakenOver(t *testing.T) {
	b := NewLocal()
	now := time.Unix(1000, 0)
	b.now = func() time.Time { return now }
	ctx := context.Background()

	if ok, _ := b.TryAcquire(ctx, "k", "a", time.Second); !ok {
		t.Fatal("TryAcquire(a) failed")
	}
	if ok, _ := b.TryAcquire(ctx, "k", "b", time.Second); ok {
		t.Fatal("TryAcquire(b) succeeded on a live lease")
	}
	if ok, _ := b.TryAcquire(ctx, "k", "a", time.Second); !ok {
		t.Fatal("TryAcquire(a) failed to re-enter its own lease")
	}

	now = now.Add(2 * time.Second)
	if ok, _ := b.TryAcquire(ctx, "k", "b", time.Second); !ok {
		t.Fatal("TryAcquire(b) failed on an expired lease")
	}
	if err := b.Renew(ctx, "k", "a", time.Second); !errors.Is(err, ErrLost) {
		t.Fatalf("Renew(a) error = %v, want ErrLost", err)
	}

	_ = b.Release(ctx, "k", "a")
	if ok, _ := b.TryAcquire(ctx, "k", "c", time.Second); ok {
		t.Fatal("Release by a stale token freed the lease")
	}
}

func TestLostLeaseCancelsContext(t *testing.T) {
	b := NewLocal()
	c := New(b)
	ctx := context.Background()

	lease, err := c.Acquire(ctx, "k", Options{TTL: 100 * time.Millisecond, RenewEvery: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer lease.Release(ctx)

	b.mu.Lock()
	delete(b.leases, "k")
	b.mu.Unlock()

	select {
	case <-lease.Context.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("lease context not cancelled after losing the lease")
	}
	if cause := context.Cause(lease.Context); !errors.Is(cause, ErrLost) {
		t.Fatalf("cause = %v, want ErrLost", cause)
	}
}

func TestWithLeaseSerializes(t *testing.T) {
	c := New(NewLocal())
	opts := Options{TTL: time.Minute, Wait: true, WaitInterval: time.Millisecond}

	var active, peak atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := c.WithLease(context.Background(), "kg:ingest", opts, func(ctx context.Context) error {
				n := active.Add(1)
				if n > peak.Load() {
					peak.Store(n)
				}
				time.Sleep(2 * time.Millisecond)
				active.Add(-1)
				return nil
			})
			if err != nil {
				t.Errorf("WithLease() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if peak.Load() != 1 {
		t.Fatalf("peak concurrency = %d, want 1", peak.Load())
	}
}

func TestAcquireWaitHonoursContext(t *testing.T) {
	c := New(NewLocal())
	held, err := c.Acquire(context.Background(), "k", Options{TTL: time.Minute})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer held.Release(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Acquire(ctx, "k", Options{Wait: true, WaitInterval: 5 * time.Millisecond}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Acquire() error = %v, want DeadlineExceeded", err)
	}
}

func TestLeaseEventsAreCounted(t *testing.T) {
	const key = "kg:metrics-test"
	c := New(NewLocal())
	ctx := context.Background()

	count := func(event string) float64 {
		return testutil.ToFloat64(metrics.LeaseEventsTotal.WithLabelValues(key, event))
	}
	acquired, busy, released := count("acquired"), count("busy"), count("released")

	lease, err := c.Acquire(ctx, key, Options{TTL: time.Minute})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if _, err := c.Acquire(ctx, key, Options{TTL: time.Minute}); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Acquire() error = %v, want ErrBusy", err)
	}
	_ = lease.Release(ctx)
	_ = lease.Release(ctx)

	if got := count("acquired") - acquired; got != 1 {
		t.Errorf("acquired events = %v, want 1", got)
	}
	if got := count("busy") - busy; got != 1 {
		t.Errorf("busy events = %v, want 1", got)
	}
	if got := count("released") - released; got != 1 {
		t.Errorf("released events = %v, want 1", got)
	}
}
