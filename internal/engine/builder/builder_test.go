package builder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ILLUVRSE/streamkit/internal/engine/operators"
	"github.com/ILLUVRSE/streamkit/internal/store"
)

func TestFilterMapSinkPipeline(t *testing.T) {
	collector := operators.NewCollectorSink[int]()

	b := NewStream[int]("filter-map-sink")
	mapped := Map(b.Filter(func(x int) bool { return x%2 == 0 }), func(x int) int { return x * 10 })
	stream := mapped.SinkOperator(collector).Build()

	ctx := context.Background()
	require.NoError(t, stream.Start(ctx))
	defer stream.Stop()

	for i := 1; i <= 4; i++ {
		require.NoError(t, stream.Emit(ctx, i))
	}

	require.Equal(t, []int{20, 40}, collector.Values())
}

func TestAggregateByKeyPipeline(t *testing.T) {
	sums := store.NewMemoryStore[string, int]("sums")
	collector := operators.NewCollectorSink[operators.KV[string, int]]()

	type reading struct {
		Key    string
		Amount int
	}

	b := NewStream[reading]("aggregate-by-key")
	aggregated := Aggregate(b,
		func(r reading) string { return r.Key },
		func(acc int, r reading) int { return acc + r.Amount },
		sums,
	)
	stream := aggregated.SinkOperator(collector).Build()

	ctx := context.Background()
	require.NoError(t, stream.Start(ctx))
	defer stream.Stop()

	require.NoError(t, stream.Emit(ctx, reading{Key: "a", Amount: 1}))
	require.NoError(t, stream.Emit(ctx, reading{Key: "a", Amount: 2}))
	require.NoError(t, stream.Emit(ctx, reading{Key: "b", Amount: 5}))

	got := collector.Values()
	require.Len(t, got, 3)
	require.Equal(t, 1, got[0].Value)
	require.Equal(t, 3, got[1].Value)
	require.Equal(t, 5, got[2].Value)
}

func TestAddBranchFansOutToEveryBranch(t *testing.T) {
	collectorA := operators.NewCollectorSink[int]()
	collectorB := operators.NewCollectorSink[int]()

	b := NewStream[int]("fork-demo")
	b.AddBranch("a", func(sub *StreamBuilder[int]) {
		sub.SinkOperator(collectorA)
	}).AddBranch("b", func(sub *StreamBuilder[int]) {
		sub.SinkOperator(collectorB)
	})
	stream := b.Build()

	ctx := context.Background()
	require.NoError(t, stream.Start(ctx))
	defer stream.Stop()

	require.NoError(t, stream.Emit(ctx, 9))

	require.Equal(t, []int{9}, collectorA.Values())
	require.Equal(t, []int{9}, collectorB.Values())
	require.ElementsMatch(t, []string{"a", "b"}, stream.GetBranches())
}

func TestAttachAfterAddBranchIsIllegal(t *testing.T) {
	b := NewStream[int]("fork-illegal")
	b.AddBranch("a", func(sub *StreamBuilder[int]) {
		sub.SinkOperator(operators.NewCollectorSink[int]())
	})

	err := b.attach(operators.NewFilter[int](func(int) bool { return true }))
	require.Error(t, err)
}
