package redis

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewClientFromRedis(rdb, logger), mr
}

func TestLocker_AcquireAndRelease(t *testing.T) {
	client, mr := newTestClient(t)
	locker := NewLocker(client, 0)
	ctx := context.Background()

	lock, err := locker.Acquire(ctx, "clover:lock:lead:t1:l1", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("clover:lock:lead:t1:l1"))
	assert.Equal(t, time.Minute, mr.TTL("clover:lock:lead:t1:l1"))

	require.NoError(t, lock.Release(ctx))
	assert.False(t, mr.Exists("clover:lock:lead:t1:l1"))
}

func TestLocker_BusyKeyTimesOut(t *testing.T) {
	client, _ := newTestClient(t)
	locker := NewLocker(client, 30*time.Millisecond)
	ctx := context.Background()

	held, err := locker.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	defer held.Release(ctx)

	_, err = locker.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrLockNotAcquired)
}

func TestLocker_WaiterGetsLockAfterRelease(t *testing.T) {
	client, _ := newTestClient(t)
	locker := NewLocker(client, 2*time.Second)
	ctx := context.Background()

	held, err := locker.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = held.Release(ctx)
	}()

	next, err := locker.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.NoError(t, next.Release(ctx))
}

func TestLocker_ContextCancelStopsWaiting(t *testing.T) {
	client, _ := newTestClient(t)
	locker := NewLocker(client, time.Minute)

	held, err := locker.Acquire(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	defer held.Release(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = locker.Acquire(ctx, "k", time.Minute)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLockNotAcquired)
}

func TestLock_ReleaseAfterExpiry(t *testing.T) {
	client, mr := newTestClient(t)
	locker := NewLocker(client, 0)
	ctx := context.Background()

	lock, err := locker.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	// someone else now holds the key
	other, err := locker.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	assert.ErrorIs(t, lock.Release(ctx), ErrLockNotHeld)
	assert.True(t, mr.Exists("k"))
	assert.NoError(t, other.Release(ctx))
}
