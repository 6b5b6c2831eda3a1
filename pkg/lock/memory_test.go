package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker_AcquireAndRelease(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, ExecutionKey("exec-1"), time.Minute)
	require.NoError(t, err)

	// Contention on the same key is reported, other keys are independent.
	_, err = locker.Acquire(ctx, ExecutionKey("exec-1"), time.Minute)
	require.Error(t, err)
	assert.True(t, IsHeld(err))

	_, err = locker.Acquire(ctx, ExecutionKey("exec-2"), time.Minute)
	require.NoError(t, err)

	require.NoError(t, lease.Release(ctx))

	_, err = locker.Acquire(ctx, ExecutionKey("exec-1"), time.Minute)
	require.NoError(t, err)
}

func TestMemoryLocker_ExpiredLeaseIsReacquirable(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	_, err := locker.Acquire(ctx, "key", time.Millisecond)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	// A crashed holder frees the key after its TTL.
	_, err = locker.Acquire(ctx, "key", time.Minute)
	require.NoError(t, err)
}

func TestMemoryLocker_DoubleReleaseReportsExpired(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, "key", time.Minute)
	require.NoError(t, err)

	require.NoError(t, lease.Release(ctx))
	assert.ErrorIs(t, lease.Release(ctx), ErrLeaseExpired)
}

func TestMemoryLocker_StaleReleaseDoesNotFreeNewLease(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, "key", time.Millisecond)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	// The key is re-acquired after expiry; the original holder's release
	// must not free the new owner's lease.
	_, err = locker.Acquire(ctx, "key", time.Minute)
	require.NoError(t, err)

	assert.ErrorIs(t, stale.Release(ctx), ErrLeaseExpired)

	_, err = locker.Acquire(ctx, "key", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)
}

func TestLockKeys(t *testing.T) {
	assert.Equal(t, "execution:exec-1", ExecutionKey("exec-1"))
	assert.Equal(t, "lead:wf-1:lead-1", LeadKey("wf-1", "lead-1"))
}
