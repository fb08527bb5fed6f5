package lock

import (
	"context"
	"testing"
	"time"

	"manifest-route-service/internal/domain"
	"manifest-route-service/internal/ports"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLocker(client), mr
}

func testExclusion(t *testing.T, l ports.RouteLocker) {
	ctx := context.Background()

	held, err := l.Acquire(ctx, "r1", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "r1", time.Minute)
	assert.ErrorIs(t, err, domain.ErrRunInProgress)

	other, err := l.Acquire(ctx, "r2", time.Minute)
	require.NoError(t, err, "leases are per route")
	require.NoError(t, other.Release(ctx))

	require.NoError(t, held.Release(ctx))

	again, err := l.Acquire(ctx, "r1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestRedisLocker_Exclusion(t *testing.T) {
	l, _ := newRedisLocker(t)
	testExclusion(t, l)
}

func TestMemoryLocker_Exclusion(t *testing.T) {
	testExclusion(t, NewMemoryLocker())
}

func TestRedisLocker_ExpiredLeaseNotStolenBack(t *testing.T) {
	ctx := context.Background()
	l, mr := newRedisLocker(t)

	stale, err := l.Acquire(ctx, "r1", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	fresh, err := l.Acquire(ctx, "r1", time.Minute)
	require.NoError(t, err)

	// Releasing the expired lease must not drop the new holder.
	require.NoError(t, stale.Release(ctx))
	_, err = l.Acquire(ctx, "r1", time.Minute)
	assert.ErrorIs(t, err, domain.ErrRunInProgress)

	require.NoError(t, fresh.Release(ctx))
}

func TestMemoryLocker_Expiry(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	stale, err := l.Acquire(ctx, "r1", time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	fresh, err := l.Acquire(ctx, "r1", time.Minute)
	require.NoError(t, err)

	require.NoError(t, stale.Release(ctx))
	_, err = l.Acquire(ctx, "r1", time.Minute)
	assert.ErrorIs(t, err, domain.ErrRunInProgress)
	require.NoError(t, fresh.Release(ctx))
}

func TestRedisLocker_Unavailable(t *testing.T) {
	l, mr := newRedisLocker(t)
	mr.Close()

	_, err := l.Acquire(context.Background(), "r1", time.Minute)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRunInProgress)
}

func TestRedisLocker_ExtendKeepsLeaseAlive(t *testing.T) {
	ctx := context.Background()
	l, mr := newRedisLocker(t)

	held, err := l.Acquire(ctx, "r1", time.Second)
	require.NoError(t, err)

	mr.FastForward(800 * time.Millisecond)
	require.NoError(t, held.Extend(ctx, time.Second))
	mr.FastForward(800 * time.Millisecond)

	_, err = l.Acquire(ctx, "r1", time.Minute)
	assert.ErrorIs(t, err, domain.ErrRunInProgress, "extended lease must still be held")

	require.NoError(t, held.Release(ctx))
}

func TestRedisLocker_ExtendAfterTakeoverFails(t *testing.T) {
	ctx := context.Background()
	l, mr := newRedisLocker(t)

	stale, err := l.Acquire(ctx, "r1", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	fresh, err := l.Acquire(ctx, "r1", time.Minute)
	require.NoError(t, err)

	assert.ErrorIs(t, stale.Extend(ctx, time.Minute), domain.ErrLeaseLost)
	assert.NoError(t, fresh.Extend(ctx, time.Minute))
}

func TestMemoryLocker_Extend(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	held, err := l.Acquire(ctx, "r1", time.Second)
	require.NoError(t, err)

	now = now.Add(800 * time.Millisecond)
	require.NoError(t, held.Extend(ctx, time.Second))
	now = now.Add(800 * time.Millisecond)

	_, err = l.Acquire(ctx, "r1", time.Minute)
	assert.ErrorIs(t, err, domain.ErrRunInProgress)

	now = now.Add(2 * time.Second)
	assert.ErrorIs(t, held.Extend(ctx, time.Second), domain.ErrLeaseLost, "expired lease cannot be revived")

	require.NoError(t, held.Release(ctx))
	_, err = l.Acquire(ctx, "r1", time.Minute)
	assert.NoError(t, err)
}
