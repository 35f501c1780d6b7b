package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory(time.Hour, zap.NewNop())
	t.Cleanup(func() { m.Close() })
	return m
}

func TestMemorySetGet(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))

	got, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)
}

func TestMemoryGetMissing(t *testing.T) {
	m := newTestMemory(t)

	_, ok, err := m.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryExpiryRemovesKey(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 30*time.Millisecond))

	got, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	time.Sleep(60 * time.Millisecond)

	_, ok, err = m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	// The expired read removes the key from internal storage.
	assert.Equal(t, 0, m.Len())
}

func TestMemoryOverwrite(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("old"), time.Minute))
	require.NoError(t, m.Set(ctx, "k", []byte("new"), time.Minute))

	got, ok, _ := m.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("new"), got)
	assert.Equal(t, 1, m.Len())
}

func TestMemoryInvalidate(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, m.Invalidate(ctx, "k"))

	_, ok, _ := m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemorySweepEvictsExpiredWithoutReads(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "expired", []byte("v"), time.Millisecond))
	require.NoError(t, m.Set(ctx, "fresh", []byte("v"), time.Hour))
	require.Equal(t, 2, m.Len())

	m.sweep(time.Now().Add(time.Second))

	assert.Equal(t, 1, m.Len())
	_, ok, _ := m.Get(ctx, "fresh")
	assert.True(t, ok)
}

func TestMemorySweepLoopRuns(t *testing.T) {
	m := NewMemory(20*time.Millisecond, zap.NewNop())
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Millisecond))

	assert.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 10*time.Millisecond)
}
