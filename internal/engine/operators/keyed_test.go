package operators

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ILLUVRSE/streamkit/internal/store"
)

func TestGroupByKeyAccumulatesPerKeyAndForwards(t *testing.T) {
	s := store.NewMemoryStore[string, []int]("test-groupby")
	g := NewGroupByKey[int, string](func(x int) string {
		if x%2 == 0 {
			return "even"
		}
		return "odd"
	}, s)
	collector := NewCollectorSink[KV[string, []int]]()
	require.NoError(t, g.SetNext(collector))

	for _, v := range []int{1, 2, 3, 4} {
		require.NoError(t, g.Process(context.Background(), v))
	}

	got := collector.Values()
	require.Len(t, got, 4)
	require.Equal(t, []int{1}, got[0].Value)
	require.Equal(t, []int{1, 3}, got[2].Value)
	require.Equal(t, []int{2, 4}, got[3].Value)

	stored, ok, err := s.Get(context.Background(), "even")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []int{2, 4}, stored)
}

func TestGroupBySilentlyForwardsOriginalValue(t *testing.T) {
	s := store.NewMemoryStore[string, []int]("test-groupby-silent")
	g := NewGroupBySilently[int, string](func(x int) string { return "k" }, s)
	collector := NewCollectorSink[int]()
	require.NoError(t, g.SetNextRaw(collector))

	require.NoError(t, g.Process(context.Background(), 7))
	require.Equal(t, []int{7}, collector.Values())

	err := g.SetNext(nil)
	require.Error(t, err)
}

func TestAggregateByKeySumsPerKey(t *testing.T) {
	s := store.NewMemoryStore[string, int]("test-agg")
	a := NewAggregateByKey[int, int, string](
		func(x int) string { return "total" },
		func(acc int, x int) int { return acc + x },
		s,
	)
	collector := NewCollectorSink[KV[string, int]]()
	require.NoError(t, a.SetNext(collector))

	for _, v := range []int{1, 2, 3} {
		require.NoError(t, a.Process(context.Background(), v))
	}

	got := collector.Values()
	require.Equal(t, 1, got[0].Value)
	require.Equal(t, 3, got[1].Value)
	require.Equal(t, 6, got[2].Value)
}

func TestAggregateSilentlyLeavesValueUnchangedDownstream(t *testing.T) {
	s := store.NewMemoryStore[string, int]("test-agg-silent")
	a := NewAggregateSilently[int, int, string](
		func(x int) string { return "k" },
		func(acc int, x int) int { return acc + x },
		s,
	)
	collector := NewCollectorSink[int]()
	require.NoError(t, a.SetNextRaw(collector))

	require.NoError(t, a.Process(context.Background(), 5))
	require.NoError(t, a.Process(context.Background(), 5))

	require.Equal(t, []int{5, 5}, collector.Values())

	stored, ok, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 10, stored)
}
