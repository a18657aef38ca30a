package distlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/snowplow-loadgen/internal/pkg/logger"
)

// ErrLockHeld is returned by WithLock when another process owns the lock.
var ErrLockHeld = errors.New("distlock: lock is held by another process")

// ErrLockLost is returned by WithLock when an expiring lock could not be
// extended because another owner took it while fn was running.
var ErrLockLost = errors.New("distlock: lock was lost while running")

// DistLock is the interface for distributed locking.
// Implementations must be safe for use from a single goroutine;
// concurrent use across goroutines requires separate lock instances.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// Extender is implemented by locks that expire and must be kept alive
// while the guarded work runs.
type Extender interface {
	Extend(ctx context.Context, ttl time.Duration) error
	TTL() time.Duration
}

// NewLock picks a backend for key: Redis when a client is configured, a
// PostgreSQL advisory lock when only a database is available, and no locking
// otherwise.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	switch {
	case redisClient != nil:
		return NewRedisLock(redisClient, key, ttl)
	case db != nil:
		return NewPGAdvisoryLock(db, key)
	default:
		return Nop{}
	}
}

// WithLock runs fn while holding l. Expiring locks are extended every third
// of their TTL until fn returns. If an extension finds the lock owned by
// someone else, fn's context is cancelled and WithLock returns ErrLockLost.
func WithLock(ctx context.Context, l DistLock, fn func(ctx context.Context) error) error {
	ok, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockHeld
	}
	defer func() {
		// Release even when ctx was cancelled mid-run.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := l.Release(rctx); err != nil {
			logger.Warn("Failed to release load lock", "error", err)
		}
	}()

	ext, ok := l.(Extender)
	if !ok || ext.TTL() <= 0 {
		return fn(ctx)
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := make(chan struct{})
	done := make(chan struct{})
	go keepAlive(runCtx, ext, cancel, stop, done)

	err = fn(runCtx)
	close(stop)
	<-done
	if errors.Is(context.Cause(runCtx), ErrLockLost) {
		if err != nil {
			return fmt.Errorf("%w: %w", ErrLockLost, err)
		}
		return ErrLockLost
	}
	return err
}

func keepAlive(ctx context.Context, ext Extender, lost context.CancelCauseFunc, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(ext.TTL() / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := ext.Extend(ctx, ext.TTL())
			if errors.Is(err, ErrLockHeld) {
				logger.Error("Load lock lost, cancelling run", "error", err)
				lost(ErrLockLost)
				return
			}
			if err != nil {
				logger.Warn("Failed to extend load lock", "error", err)
			}
		}
	}
}

// Nop is a lock that always succeeds. It is used when no lock backend is
// configured.
type Nop struct{}

func (Nop) Acquire(context.Context) (bool, error) { return true, nil }
func (Nop) Release(context.Context) error         { return nil }

// =============================================================================
// PostgreSQL Advisory Lock
// =============================================================================
// pg_try_advisory_lock is session-scoped, so the lock and unlock must run on
// the same connection. PGAdvisoryLock pins one *sql.Conn for its lifetime.

// PGAdvisoryLock implements DistLock using PostgreSQL advisory locks.
type PGAdvisoryLock struct {
	db     *sql.DB
	conn   *sql.Conn
	lockID int64
}

// NewPGAdvisoryLock creates a PG advisory lock with a deterministic lock ID
// derived from the given key string.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire tries to acquire the advisory lock without blocking.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get lock connection: %w", err)
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, fmt.Errorf("failed to acquire advisory lock: %w", err)
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release releases the advisory lock and returns its connection to the pool.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	defer func() {
		l.conn.Close()
		l.conn = nil
	}()
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}
