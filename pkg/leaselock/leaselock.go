// Package leaselock provides expiring, renewable locks stored in the
// app_locks table. Workers use them so only one process summarises or
// triages a given project at a time.
package leaselock

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	ErrBusy = errors.New("lease lock busy")
	ErrLost = errors.New("lease lock lost")
)

const (
	defaultTTL          = 5 * time.Minute
	defaultWaitInterval = 250 * time.Millisecond
	renewTimeout        = 15 * time.Second
	renewAttempts       = 3
)

// TriageKey serialises triage runs of one project.
func TriageKey(projectID int64) string {
	return fmt.Sprintf("triage:project:%d", projectID)
}

// SummaryKey serialises summary generation of one project.
func SummaryKey(projectID int64) string {
	return fmt.Sprintf("summary:project:%d", projectID)
}

type DBConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Client struct {
	db DBConn
}

// Options tune a single acquisition. The zero value acquires once with a
// five minute TTL renewed at half-life.
type Options struct {
	TTL        time.Duration
	RenewEvery time.Duration

	// Wait polls until the lock frees up. MaxWait bounds the polling,
	// after which Acquire gives up with ErrBusy.
	Wait         bool
	WaitInterval time.Duration
	WaitJitter   time.Duration
	MaxWait      time.Duration

	// TokenPrefix is prepended to the random holder token so app_locks
	// rows show who holds them. Defaults to the key.
	TokenPrefix string
}

func (o Options) normalized(key string) Options {
	if o.TTL < time.Millisecond {
		o.TTL = defaultTTL
	}
	if o.RenewEvery <= 0 || o.RenewEvery >= o.TTL {
		o.RenewEvery = max(o.TTL/2, time.Second)
	}
	if o.WaitInterval <= 0 {
		o.WaitInterval = defaultWaitInterval
	}
	o.WaitJitter = max(o.WaitJitter, 0)
	if o.TokenPrefix == "" {
		o.TokenPrefix = key + "/"
	}
	return o
}

// Holder describes the current owner of a lock.
type Holder struct {
	Token     string
	ExpiresAt time.Time
}

type Lease struct {
	Key   string
	Token string

	// Context is cancelled on Release or when renewal fails. In the
	// latter case context.Cause returns ErrLost or the renewal error.
	Context context.Context

	client *Client
	cancel context.CancelCauseFunc
	ttlMs  int64

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New accepts a *pgxpool.Pool or any connection with the same methods.
func New(db DBConn) *Client {
	return &Client{db: db}
}

// WithLease runs fn while holding key. If the lease is lost while fn runs
// and fn fails, the loss is reported instead of fn's context error.
func (c *Client) WithLease(ctx context.Context, key string, opts Options, fn func(ctx context.Context) error) error {
	lease, err := c.Acquire(ctx, key, opts)
	if err != nil {
		return err
	}
	defer func() {
		_ = lease.Release(context.WithoutCancel(ctx))
	}()

	err = fn(lease.Context)
	if err != nil {
		if cause := context.Cause(lease.Context); cause != nil && !errors.Is(cause, context.Canceled) && ctx.Err() == nil {
			return fmt.Errorf("%w: %w", cause, err)
		}
	}
	return err
}

func (c *Client) Acquire(ctx context.Context, key string, opts Options) (*Lease, error) {
	if key == "" {
		return nil, errors.New("lease lock key is empty")
	}
	opts = opts.normalized(key)
	ttlMs := opts.TTL.Milliseconds()

	tok, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	token := opts.TokenPrefix + tok

	var deadline time.Time
	if opts.Wait && opts.MaxWait > 0 {
		deadline = time.Now().Add(opts.MaxWait)
	}

	for {
		ok, err := c.tryAcquire(ctx, key, token, ttlMs)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if !opts.Wait || (!deadline.IsZero() && time.Now().After(deadline)) {
			return nil, ErrBusy
		}
		if err := sleepWithJitter(ctx, opts.WaitInterval, opts.WaitJitter); err != nil {
			return nil, err
		}
	}

	leaseCtx, cancel := context.WithCancelCause(ctx)
	l := &Lease{
		Key:     key,
		Token:   token,
		Context: leaseCtx,
		client:  c,
		cancel:  cancel,
		ttlMs:   ttlMs,
		stopCh:  make(chan struct{}),
	}

	go l.renewLoop(opts.RenewEvery)

	return l, nil
}

func (c *Client) tryAcquire(ctx context.Context, key, token string, ttlMs int64) (bool, error) {
	var returnedKey string
	err := c.db.QueryRow(ctx, tryAcquireSQL, key, token, ttlMs).Scan(&returnedKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return returnedKey != "", nil
}

// Holder reports who holds key. ok is false when the lock is free or has
// expired.
func (c *Client) Holder(ctx context.Context, key string) (h Holder, ok bool, err error) {
	err = c.db.QueryRow(ctx, holderSQL, key).Scan(&h.Token, &h.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Holder{}, false, nil
	}
	if err != nil {
		return Holder{}, false, err
	}
	return h, true, nil
}

func (l *Lease) Release(ctx context.Context) error {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		l.cancel(context.Canceled)
	})

	_, err := l.client.db.Exec(ctx, releaseSQL, l.Key, l.Token)
	return err
}

func (l *Lease) renewLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-l.Context.Done():
			return
		case <-t.C:
			if err := l.renew(); err != nil {
				l.cancel(err)
				return
			}
		}
	}
}

// renew extends the lease, retrying transient errors. A missing row means
// another holder took over after expiry.
func (l *Lease) renew() error {
	var err error
	for attempt := range renewAttempts {
		if attempt > 0 {
			if werr := sleepWithJitter(l.Context, 200*time.Millisecond, 0); werr != nil {
				return werr
			}
		}

		renewCtx, cancel := context.WithTimeout(l.Context, renewTimeout)
		var returnedKey string
		err = l.client.db.QueryRow(renewCtx, renewSQL, l.Key, l.Token, l.ttlMs).Scan(&returnedKey)
		cancel()

		if err == nil {
			return nil
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrLost
		}
	}
	return err
}

func sleepWithJitter(ctx context.Context, base, jitter time.Duration) error {
	d := base
	if jitter > 0 {
		d += time.Duration(rand.Int64N(int64(jitter) + 1))
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const tryAcquireSQL = `
INSERT INTO app_locks (lock_key, locked_by, expires_at)
VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
ON CONFLICT (lock_key) DO UPDATE
SET locked_by  = EXCLUDED.locked_by,
    expires_at = EXCLUDED.expires_at
WHERE app_locks.expires_at < now()
   OR app_locks.locked_by = EXCLUDED.locked_by
RETURNING lock_key;
`

const renewSQL = `
UPDATE app_locks
SET expires_at = now() + ($3::bigint * interval '1 millisecond')
WHERE lock_key = $1 AND locked_by = $2
RETURNING lock_key;
`

const holderSQL = `
SELECT locked_by, expires_at
FROM app_locks
WHERE lock_key = $1 AND expires_at >= now();
`

const releaseSQL = `
DELETE FROM app_locks
WHERE lock_key = $1 AND locked_by = $2;
`
