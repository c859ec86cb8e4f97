package leaselock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct {
	key     string
	expires time.Time
	err     error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.key
	if len(dest) > 1 {
		*(dest[1].(*time.Time)) = r.expires
	}
	return nil
}

type heldLock struct {
	token   string
	expires time.Time
}

// fakeLocks mimics the app_locks statements in memory.
type fakeLocks struct {
	mu    sync.Mutex
	locks map[string]heldLock
}

func newFakeLocks() *fakeLocks {
	return &fakeLocks{locks: make(map[string]heldLock)}
}

func (f *fakeLocks) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()

	if sql == holderSQL {
		cur, held := f.locks[args[0].(string)]
		if !held || time.Now().After(cur.expires) {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{key: cur.token, expires: cur.expires}
	}

	key, token := args[0].(string), args[1].(string)
	ttl := time.Duration(args[2].(int64)) * time.Millisecond
	cur, held := f.locks[key]

	switch sql {
	case tryAcquireSQL:
		if held && cur.token != token && time.Now().Before(cur.expires) {
			return fakeRow{err: pgx.ErrNoRows}
		}
	case renewSQL:
		if !held || cur.token != token {
			return fakeRow{err: pgx.ErrNoRows}
		}
	}
	f.locks[key] = heldLock{token: token, expires: time.Now().Add(ttl)}
	return fakeRow{key: key}
}

func (f *fakeLocks) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key, token := args[0].(string), args[1].(string)
	if cur, ok := f.locks[key]; ok && cur.token == token {
		delete(f.locks, key)
		return pgconn.NewCommandTag("DELETE 1"), nil
	}
	return pgconn.NewCommandTag("DELETE 0"), nil
}

func TestKeys(t *testing.T) {
	t.Parallel()

	if got := TriageKey(7); got != "triage:project:7" {
		t.Fatalf("got %q", got)
	}
	if got := SummaryKey(7); got != "summary:project:7" {
		t.Fatalf("got %q", got)
	}
}

func TestAcquire_BusyUntilReleased(t *testing.T) {
	t.Parallel()

	c := New(newFakeLocks())
	ctx := context.Background()

	first, err := c.Acquire(ctx, TriageKey(1), Options{TTL: time.Minute})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if _, err := c.Acquire(ctx, TriageKey(1), Options{TTL: time.Minute}); !errors.Is(err, ErrBusy) {
		t.Fatalf("got %v, want ErrBusy", err)
	}

	other, err := c.Acquire(ctx, TriageKey(2), Options{TTL: time.Minute})
	if err != nil {
		t.Fatalf("other project should not be blocked: %v", err)
	}
	defer other.Release(ctx)

	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if first.Context.Err() == nil {
		t.Fatalf("lease context should be cancelled after release")
	}

	again, err := c.Acquire(ctx, TriageKey(1), Options{TTL: time.Minute})
	if err != nil {
		t.Fatalf("expected lock to be free again, got %v", err)
	}
	again.Release(ctx)
}

func TestAcquire_WaitsForHolder(t *testing.T) {
	t.Parallel()

	c := New(newFakeLocks())
	ctx := context.Background()

	held, err := c.Acquire(ctx, SummaryKey(3), Options{TTL: time.Minute})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	go func() {
		time.Sleep(50 * time.Millisecond)
		held.Release(context.Background())
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	got, err := c.Acquire(waitCtx, SummaryKey(3), Options{
		TTL:          time.Minute,
		Wait:         true,
		WaitInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("expected to acquire after release, got %v", err)
	}
	got.Release(ctx)
}

func TestWithLease_RunsAndReleases(t *testing.T) {
	t.Parallel()

	locks := newFakeLocks()
	c := New(locks)
	ran := false

	err := c.WithLease(context.Background(), TriageKey(9), Options{TTL: time.Minute}, func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !ran {
		t.Fatalf("fn not called")
	}
	if len(locks.locks) != 0 {
		t.Fatalf("lock not released: %v", locks.locks)
	}
}

func TestAcquire_EmptyKey(t *testing.T) {
	t.Parallel()

	if _, err := New(newFakeLocks()).Acquire(context.Background(), "", Options{}); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestHolder(t *testing.T) {
	t.Parallel()

	c := New(newFakeLocks())
	ctx := context.Background()

	if _, ok, err := c.Holder(ctx, SummaryKey(4)); err != nil || ok {
		t.Fatalf("got ok=%v err=%v, want free lock", ok, err)
	}

	lease, err := c.Acquire(ctx, SummaryKey(4), Options{TTL: time.Minute})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	defer lease.Release(ctx)

	h, ok, err := c.Holder(ctx, SummaryKey(4))
	if err != nil || !ok {
		t.Fatalf("got ok=%v err=%v, want held lock", ok, err)
	}
	if h.Token != lease.Token {
		t.Fatalf("got token %q, want %q", h.Token, lease.Token)
	}
	if !strings.HasPrefix(h.Token, SummaryKey(4)+"/") {
		t.Fatalf("token %q should default to the key prefix", h.Token)
	}
}

func TestAcquire_MaxWait(t *testing.T) {
	t.Parallel()

	c := New(newFakeLocks())
	ctx := context.Background()

	held, err := c.Acquire(ctx, TriageKey(5), Options{TTL: time.Minute})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	defer held.Release(ctx)

	start := time.Now()
	_, err = c.Acquire(ctx, TriageKey(5), Options{
		TTL:          time.Minute,
		Wait:         true,
		WaitInterval: 10 * time.Millisecond,
		MaxWait:      50 * time.Millisecond,
	})
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("got %v, want ErrBusy", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("waited %v, MaxWait not honoured", time.Since(start))
	}
}

func TestWithLease_ReportsLostLease(t *testing.T) {
	t.Parallel()

	locks := newFakeLocks()
	c := New(locks)

	err := c.WithLease(context.Background(), TriageKey(6), Options{TTL: 2 * time.Second}, func(ctx context.Context) error {
		locks.mu.Lock()
		locks.locks[TriageKey(6)] = heldLock{token: "someone-else", expires: time.Now().Add(time.Minute)}
		locks.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return errors.New("lease context was not cancelled")
		}
	})
	if !errors.Is(err, ErrLost) {
		t.Fatalf("got %v, want ErrLost", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want the callback error kept", err)
	}
}
