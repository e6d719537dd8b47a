package operators

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestForkDispatchesToEveryBranchInOrder(t *testing.T) {
	f := NewFork[int]()
	a := NewCollectorSink[int]()
	b := NewCollectorSink[int]()

	require.NoError(t, f.AddBranch("a", a))
	require.NoError(t, f.AddBranch("b", b))
	require.Equal(t, []string{"a", "b"}, f.Branches())

	require.NoError(t, f.Process(context.Background(), 42))

	require.Equal(t, []int{42}, a.Values())
	require.Equal(t, []int{42}, b.Values())
}

func TestForkRejectsDuplicateBranchNames(t *testing.T) {
	f := NewFork[int]()
	require.NoError(t, f.AddBranch("a", NewCollectorSink[int]()))
	err := f.AddBranch("a", NewCollectorSink[int]())
	require.Error(t, err)
}

func TestForkRejectsSetNext(t *testing.T) {
	f := NewFork[int]()
	err := f.SetNext(NewCollectorSink[int]())
	require.Error(t, err)
}
