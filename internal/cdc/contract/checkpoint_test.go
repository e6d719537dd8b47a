package contract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ILLUVRSE/streamkit/internal/store"
)

func TestCheckpointStoreRoundTrip(t *testing.T) {
	backing := store.NewMemoryStore[string, string]("test-checkpoints")
	cp := NewCheckpointStore(backing, "orders.cdc")
	ctx := context.Background()

	done, err := cp.InitialLoadDone(ctx)
	require.NoError(t, err)
	require.False(t, done)

	require.NoError(t, cp.MarkInitialLoadDone(ctx))
	done, err = cp.InitialLoadDone(ctx)
	require.NoError(t, err)
	require.True(t, done)

	_, ok, err := cp.LoadPosition(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cp.SavePosition(ctx, "0x1234"))
	pos, ok, err := cp.LoadPosition(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "0x1234", pos)

	require.NoError(t, cp.SaveLastHash(ctx, "abc123"))
	hash, ok, err := cp.LoadLastHash(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "abc123", hash)
}

func TestCheckpointStoreNamespacesBySourceID(t *testing.T) {
	backing := store.NewMemoryStore[string, string]("test-checkpoints-ns")
	a := NewCheckpointStore(backing, "a")
	b := NewCheckpointStore(backing, "b")
	ctx := context.Background()

	require.NoError(t, a.SavePosition(ctx, "pos-a"))
	require.NoError(t, b.SavePosition(ctx, "pos-b"))

	posA, _, err := a.LoadPosition(ctx)
	require.NoError(t, err)
	posB, _, err := b.LoadPosition(ctx)
	require.NoError(t, err)

	require.Equal(t, "pos-a", posA)
	require.Equal(t, "pos-b", posB)
}
