package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetPutRemove(t *testing.T) {
	s := NewMemoryStore[string, int]("test")
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Put(ctx, "a", 1))
	v, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, v)

	contains, err := s.ContainsKey(ctx, "a")
	require.NoError(t, err)
	require.True(t, contains)

	require.NoError(t, s.Remove(ctx, "a"))
	_, ok, err = s.Get(ctx, "a")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStoreGetAllAndGetKeysSnapshot(t *testing.T) {
	s := NewMemoryStore[string, int]("test")
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "a", 1))
	require.NoError(t, s.Put(ctx, "b", 2))

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"a": 1, "b": 2}, all)

	keys, err := s.GetKeys(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, keys)

	// mutating the returned map must not affect the store.
	all["c"] = 3
	all2, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.NotContains(t, all2, "c")
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	s := NewMemoryStore[int, int]("test-concurrent")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Put(ctx, i, i*i)
		}(i)
	}
	wg.Wait()

	keys, err := s.GetKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 50)
}
