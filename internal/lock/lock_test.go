package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, client.Ping(context.Background()).Err())

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestRedisLocker_ExclusiveUntilReleased(t *testing.T) {
	client, _ := setupTestRedis(t)
	l := NewRedisLocker(client, "adspace:")
	ctx := context.Background()

	lease, err := l.Acquire(ctx, BookingKey("b1"), time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, BookingKey("b1"), time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)

	other, err := l.Acquire(ctx, BookingKey("b2"), time.Minute)
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Release(ctx))

	again, err := l.Acquire(ctx, BookingKey("b1"), time.Minute)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestRedisLocker_PrefixSeparator(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	for _, prefix := range []string{"adspace-booking", "adspace-booking:"} {
		lease, err := NewRedisLocker(client, prefix).Acquire(ctx, BookingKey("b1"), time.Minute)
		require.NoError(t, err)
		assert.True(t, mr.Exists("adspace-booking:booking:b1"), prefix)
		require.NoError(t, lease.Release(ctx))
	}
}

func TestRedisLocker_ReleaseOnlyOwnLock(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := NewRedisLocker(client, "adspace:")
	ctx := context.Background()

	stale, err := l.Acquire(ctx, TaskKey("sweep"), time.Second)
	require.NoError(t, err)

	// lease expires and someone else takes the key
	mr.FastForward(2 * time.Second)
	current, err := l.Acquire(ctx, TaskKey("sweep"), time.Minute)
	require.NoError(t, err)

	require.NoError(t, stale.Release(ctx))
	assert.True(t, mr.Exists("adspace:task:sweep"), "stale owner must not delete the new lock")

	require.NoError(t, current.Release(ctx))
	assert.False(t, mr.Exists("adspace:task:sweep"))
}

func TestRedisLocker_ConcurrentAcquireSingleWinner(t *testing.T) {
	client, _ := setupTestRedis(t)
	l := NewRedisLocker(client, "adspace:")

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Acquire(context.Background(), BookingKey("hot"), time.Minute); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}

func TestMemoryLocker_ExpiresAfterTTL(t *testing.T) {
	l := NewMemoryLocker()
	now := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	l.nowFn = func() time.Time { return now }
	ctx := context.Background()

	stale, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)

	now = now.Add(2 * time.Minute)
	current, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	require.NoError(t, stale.Release(ctx))
	_, err = l.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired, "stale release must not free the new holder")

	require.NoError(t, current.Release(ctx))
	_, err = l.Acquire(ctx, "k", time.Minute)
	assert.NoError(t, err)
}
