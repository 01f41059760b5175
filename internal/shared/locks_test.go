package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client, time.Second), mr
}

func TestLockerMutualExclusion(t *testing.T) {
	locker, _ := newTestLocker(t)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, OrderLockKey("0001"))
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, OrderLockKey("0001"))
	require.ErrorIs(t, err, ErrLockBusy)

	release()

	release2, err := locker.Acquire(ctx, OrderLockKey("0001"))
	require.NoError(t, err)
	release2()
}

func TestLockerIndependentKeys(t *testing.T) {
	locker, _ := newTestLocker(t)
	ctx := context.Background()

	r1, err := locker.Acquire(ctx, OrderLockKey("0001"))
	require.NoError(t, err)
	defer r1()

	r2, err := locker.Acquire(ctx, OrderLockKey("0002"))
	require.NoError(t, err)
	defer r2()
}

func TestLockerExpiredLockCanBeRetaken(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, OrderLockKey("0002"))
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	release, err := locker.Acquire(ctx, OrderLockKey("0002"))
	require.NoError(t, err)

	// Releasing the expired handle must not free the new holder's lock.
	stale()
	_, err = locker.Acquire(ctx, OrderLockKey("0002"))
	require.ErrorIs(t, err, ErrLockBusy)
	release()
}
