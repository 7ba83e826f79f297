package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradecore/platform/internal/coordination/coordinationtest"
)

func TestManager_AcquireThenRelease(t *testing.T) {
	store := coordinationtest.New()
	m := New(store)
	ctx := context.Background()

	owner, err := m.Acquire(ctx, "user:alice", time.Minute, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "user:alice", owner.Name)
	assert.NotEmpty(t, owner.ID)

	require.NoError(t, m.Release(ctx, owner))

	_, exists, err := store.Get(ctx, "lock:user:alice")
	require.NoError(t, err)
	assert.False(t, exists, "release must remove the key")
}

func TestManager_SecondAcquireBlocksUntilReleased(t *testing.T) {
	store := coordinationtest.New()
	m := New(store)
	ctx := context.Background()

	first, err := m.Acquire(ctx, "user:bob", time.Minute, time.Second)
	require.NoError(t, err)

	_, err = m.Acquire(ctx, "user:bob", time.Minute, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout, "a held lock must block a second acquirer until wait_max")

	require.NoError(t, m.Release(ctx, first))

	second, err := m.Acquire(ctx, "user:bob", time.Minute, time.Second)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestManager_ReleaseOfLostLockIsSilentNoop(t *testing.T) {
	store := coordinationtest.New()
	m := New(store)
	ctx := context.Background()

	owner, err := m.Acquire(ctx, "user:carol", time.Millisecond, time.Second)
	require.NoError(t, err)

	// Simulate expiry by deleting the key directly, as if TTL had elapsed.
	require.NoError(t, store.Delete(ctx, "lock:user:carol"))

	assert.NoError(t, m.Release(ctx, owner), "releasing an already-expired lock must be a silent no-op")
}

func TestManager_OnlyOwnerMayRelease(t *testing.T) {
	store := coordinationtest.New()
	m := New(store)
	ctx := context.Background()

	owner, err := m.Acquire(ctx, "user:dave", time.Minute, time.Second)
	require.NoError(t, err)

	impostor := owner
	impostor.ID = "not-the-real-owner"
	require.NoError(t, m.Release(ctx, impostor))

	_, exists, err := store.Get(ctx, "lock:user:dave")
	require.NoError(t, err)
	assert.True(t, exists, "a release with the wrong owner id must not remove the lock")
}

func TestManager_HeartbeatExtendsOnlyWhenOwned(t *testing.T) {
	store := coordinationtest.New()
	m := New(store)
	ctx := context.Background()

	owner, err := m.Acquire(ctx, "user:erin", time.Second, time.Second)
	require.NoError(t, err)

	ok, err := m.Heartbeat(ctx, owner, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Delete(ctx, "lock:user:erin"))

	ok, err = m.Heartbeat(ctx, owner, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "heartbeat on an expired lock must not recreate it")
}

func TestManager_AcquireRespectsContextCancellation(t *testing.T) {
	store := coordinationtest.New()
	m := New(store)
	ctx := context.Background()

	_, err := m.Acquire(ctx, "user:frank", time.Minute, time.Second)
	require.NoError(t, err)

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = m.Acquire(cancelCtx, "user:frank", time.Minute, time.Second)
	assert.Error(t, err)
}
