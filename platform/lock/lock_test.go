package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseMutualExclusion(t *testing.T, locker Locker) {
	t.Helper()

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), "contact-1")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(2 * time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen, "lock holders overlapped")
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	exerciseMutualExclusion(t, km)
	assert.Equal(t, 0, km.Len(), "entries should be released after use")
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := NewKeyedMutex()
	unlockA, err := km.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	unlockB, err := km.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestKeyedMutexHonoursContext(t *testing.T) {
	km := NewKeyedMutex()
	unlock, err := km.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = km.Lock(ctx, "a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotAcquired))

	unlock()
	unlock() // second call is a no-op
	assert.Equal(t, 0, km.Len())
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLockerSerializesSameKey(t *testing.T) {
	_, client := newTestRedis(t)
	locker := NewRedisLocker(client, "story:lock:", WithPollInterval(time.Millisecond))
	exerciseMutualExclusion(t, locker)
}

func TestRedisLockerReleaseOnlyOwnLease(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := NewRedisLocker(client, "story:lock:", WithLeaseTTL(time.Second))

	unlock, err := locker.Lock(context.Background(), "c1")
	require.NoError(t, err)
	require.True(t, mr.Exists("story:lock:c1"))

	// Simulate the lease expiring and another holder taking it over.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("story:lock:c1", "someone-else"))

	unlock()
	got, err := mr.Get("story:lock:c1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLockerTimesOut(t *testing.T) {
	_, client := newTestRedis(t)
	locker := NewRedisLocker(client, "story:lock:", WithPollInterval(time.Millisecond))

	unlock, err := locker.Lock(context.Background(), "c1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "c1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotAcquired)
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	_, err := NewRedisClient("://nope")
	require.Error(t, err)
}

func TestRedisLockerRenewsHeldLease(t *testing.T) {
	mr, client := newTestRedis(t)
	ttl := 90 * time.Millisecond
	locker := NewRedisLocker(client, "story:lock:", WithLeaseTTL(ttl))

	unlock, err := locker.Lock(context.Background(), "c1")
	require.NoError(t, err)

	// Without renewal only 10ms of the lease would be left.
	mr.FastForward(80 * time.Millisecond)

	require.Eventually(t, func() bool {
		return mr.TTL("story:lock:c1") > 50*time.Millisecond
	}, time.Second, 5*time.Millisecond, "held lease was not renewed")

	unlock()
	assert.False(t, mr.Exists("story:lock:c1"))
}

func TestRedisLockerStopsRenewingLostLease(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := NewRedisLocker(client, "story:lock:", WithLeaseTTL(30*time.Millisecond))

	unlock, err := locker.Lock(context.Background(), "c1")
	require.NoError(t, err)
	defer unlock()

	require.NoError(t, mr.Set("story:lock:c1", "someone-else"))
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, time.Duration(0), mr.TTL("story:lock:c1"))
	got, err := mr.Get("story:lock:c1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}
