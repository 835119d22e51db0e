package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStatusStore(t *testing.T, store StatusStore) {
	ctx := context.Background()

	_, err := store.Status(ctx, "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	require.NoError(t, store.Create(ctx, "j1"))
	assert.Error(t, store.Create(ctx, "j1"))

	status, err := store.Status(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, status)

	require.NoError(t, store.SetStatus(ctx, "j1", StatusRunning))
	status, _ = store.Status(ctx, "j1")
	assert.Equal(t, StatusRunning, status)

	require.NoError(t, store.SetStatus(ctx, "j1", StatusCompleted))
	status, _ = store.Status(ctx, "j1")
	assert.Equal(t, StatusCompleted, status)

	// 终态吸收：任何后续推进都是无操作。
	require.NoError(t, store.SetStatus(ctx, "j1", StatusRunning))
	status, _ = store.Status(ctx, "j1")
	assert.Equal(t, StatusCompleted, status)

	// 终态后的取消请求同样无效。
	require.NoError(t, store.RequestCancel(ctx, "j1"))
	cancelled, err := store.CancelRequested(ctx, "j1")
	require.NoError(t, err)
	assert.False(t, cancelled)
}

func testCancelFlag(t *testing.T, store StatusStore) {
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, "j2"))

	cancelled, err := store.CancelRequested(ctx, "j2")
	require.NoError(t, err)
	assert.False(t, cancelled)

	require.NoError(t, store.RequestCancel(ctx, "j2"))
	cancelled, err = store.CancelRequested(ctx, "j2")
	require.NoError(t, err)
	assert.True(t, cancelled)
}

func TestMemoryStatusStore(t *testing.T) {
	testStatusStore(t, NewMemoryStatusStore())
	testCancelFlag(t, NewMemoryStatusStore())
}

func TestRedisStatusStore(t *testing.T) {
	testStatusStore(t, NewRedisStatusStore(newTestRedis(t), ""))
	testCancelFlag(t, NewRedisStatusStore(newTestRedis(t), ""))
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, StatusQueued.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}
