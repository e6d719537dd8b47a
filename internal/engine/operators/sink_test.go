package operators

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSinkFuncInvokesWrappedFunction(t *testing.T) {
	var got []int
	s := NewSinkFunc[int](func(_ context.Context, v int) error {
		got = append(got, v)
		return nil
	})

	require.NoError(t, s.Process(context.Background(), 1))
	require.NoError(t, s.Process(context.Background(), 2))
	require.Equal(t, []int{1, 2}, got)
}

func TestSinkFuncPropagatesError(t *testing.T) {
	wantErr := errors.New("boom")
	s := NewSinkFunc[int](func(context.Context, int) error { return wantErr })
	require.ErrorIs(t, s.Process(context.Background(), 1), wantErr)
}

func TestSinkFuncRejectsSetNext(t *testing.T) {
	s := NewSinkFunc[int](func(context.Context, int) error { return nil })
	require.Error(t, s.SetNext(nil))
}

func TestCollectorSinkAccumulatesInOrderAndIsSafeToReadCopy(t *testing.T) {
	c := NewCollectorSink[string]()
	require.NoError(t, c.Process(context.Background(), "a"))
	require.NoError(t, c.Process(context.Background(), "b"))

	vals := c.Values()
	require.Equal(t, []string{"a", "b"}, vals)

	vals[0] = "mutated"
	require.Equal(t, []string{"a", "b"}, c.Values())
}

func TestCollectorSinkRejectsSetNext(t *testing.T) {
	c := NewCollectorSink[int]()
	require.Error(t, c.SetNext(nil))
}
