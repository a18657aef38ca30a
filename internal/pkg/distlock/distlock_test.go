package distlock

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedisLock_Exclusive(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)

	a := NewRedisLock(client, "load:events", time.Minute)
	b := NewRedisLock(client, "load:events", time.Minute)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("lock:load:events"))

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// b does not own the lock, so its release is a no-op.
	require.NoError(t, b.Release(ctx))
	assert.True(t, mr.Exists("lock:load:events"))

	require.NoError(t, a.Release(ctx))
	assert.False(t, mr.Exists("lock:load:events"))
}

func TestRedisLock_Extend(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)

	l := NewRedisLock(client, "load:events", 10*time.Second)
	ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(8 * time.Second)
	require.NoError(t, l.Extend(ctx, 10*time.Second))
	mr.FastForward(8 * time.Second)
	assert.True(t, mr.Exists(l.Key()), "extension pushed expiry forward")

	mr.FastForward(3 * time.Second)
	assert.False(t, mr.Exists(l.Key()))
	assert.ErrorIs(t, l.Extend(ctx, time.Second), ErrLockHeld)
}

func TestWithLock(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)

	l := NewRedisLock(client, "load:events", time.Minute)
	ran := false
	err := WithLock(ctx, l, func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists(l.Key()))
		other := NewRedisLock(client, "load:events", time.Minute)
		return WithLock(ctx, other, func(context.Context) error {
			t.Fatal("second holder must not run")
			return nil
		})
	})
	assert.True(t, ran)
	assert.ErrorIs(t, err, ErrLockHeld)
	assert.False(t, mr.Exists(l.Key()), "released after fn returns")
}

func TestWithLock_CancelsWhenLockTaken(t *testing.T) {
	mr, client := setupRedis(t)

	l := NewRedisLock(client, "load:events", 150*time.Millisecond)
	err := WithLock(context.Background(), l, func(ctx context.Context) error {
		// Another process grabs the key after ours expired.
		require.NoError(t, mr.Set(l.Key(), "someone-else"))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			t.Error("run was not cancelled after the lock changed owner")
			return nil
		}
	})
	assert.ErrorIs(t, err, ErrLockLost)
	assert.ErrorIs(t, err, context.Canceled)

	val, err := mr.Get(l.Key())
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val, "release must not delete the new owner's key")
}

func TestWithLock_PropagatesError(t *testing.T) {
	boom := errors.New("copy failed")
	err := WithLock(context.Background(), Nop{}, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestNewLock_Backend(t *testing.T) {
	_, client := setupRedis(t)
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	assert.IsType(t, &RedisLock{}, NewLock(client, db, "k", time.Minute))
	assert.IsType(t, &PGAdvisoryLock{}, NewLock(nil, db, "k", time.Minute))
	assert.IsType(t, Nop{}, NewLock(nil, nil, "k", time.Minute))
}

func TestPGAdvisoryLock(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	l := NewPGAdvisoryLock(db, "load:events")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT pg_try_advisory_lock($1)")).
		WithArgs(l.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_unlock($1)")).
		WithArgs(l.lockID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, WithLock(ctx, l, func(context.Context) error { return nil }))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGAdvisoryLock_Held(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	l := NewPGAdvisoryLock(db, "load:events")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT pg_try_advisory_lock($1)")).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	err = WithLock(context.Background(), l, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrLockHeld)
	assert.NoError(t, mock.ExpectationsWereMet())
}
