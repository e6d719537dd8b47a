package window

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ILLUVRSE/streamkit/internal/engine/operators"
)

func TestGlobalTumblingWindowProcessingTimeClosesOnBoundary(t *testing.T) {
	w := NewGlobalTumblingWindow[int, int](time.Minute, sumInts)

	var emitted []int
	require.NoError(t, w.SetNext(operators.NewSinkFunc[int](func(_ context.Context, v int) error {
		emitted = append(emitted, v)
		return nil
	})))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cur := base
	w.now = func() time.Time { return cur }

	require.NoError(t, w.Process(context.Background(), 1))
	require.NoError(t, w.Process(context.Background(), 2))

	cur = base.Add(2 * time.Minute)
	require.NoError(t, w.Process(context.Background(), 3))

	require.Equal(t, []int{3}, emitted) // sum(1,2) from the closed window
}

func TestGlobalTumblingWindowEventTimeUsesWatermark(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	eventTimes := map[int]time.Time{
		1: base,
		2: base.Add(30 * time.Second),
		3: base.Add(90 * time.Second), // past the 1-minute boundary: watermark advances, window closes
	}

	w := NewGlobalTumblingWindow[int, int](time.Minute, sumInts)
	w.WithEventTime(func(x int) time.Time { return eventTimes[x] }, 0)

	var emitted []int
	require.NoError(t, w.SetNext(operators.NewSinkFunc[int](func(_ context.Context, v int) error {
		emitted = append(emitted, v)
		return nil
	})))

	require.NoError(t, w.Process(context.Background(), 1))
	require.NoError(t, w.Process(context.Background(), 2))
	require.NoError(t, w.Process(context.Background(), 3))

	require.Equal(t, []int{3}, emitted) // sum(1,2)
}

func TestGlobalTumblingWindowNeverEmitsEmptyBatch(t *testing.T) {
	w := NewGlobalTumblingWindow[int, int](time.Minute, sumInts)

	var emitted []int
	require.NoError(t, w.SetNext(operators.NewSinkFunc[int](func(_ context.Context, v int) error {
		emitted = append(emitted, v)
		return nil
	})))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cur := base
	w.now = func() time.Time { return cur }

	require.NoError(t, w.Process(context.Background(), 1))

	cur = base.Add(5 * time.Minute) // several boundaries skipped, only one carries data
	require.NoError(t, w.Process(context.Background(), 2))

	require.Equal(t, []int{1}, emitted)
}
