package operators

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ILLUVRSE/streamkit/internal/engine"
)

type fakeSource struct {
	emit     []int
	startErr error
	stopErr  error
	stopped  bool
}

func (f *fakeSource) Start(ctx context.Context, emit func(int)) error {
	if f.startErr != nil {
		return f.startErr
	}
	for _, v := range f.emit {
		emit(v)
	}
	return nil
}

func (f *fakeSource) Stop() error {
	f.stopped = true
	return f.stopErr
}

func TestSourceAdapterForwardsEveryEmittedValue(t *testing.T) {
	src := &fakeSource{emit: []int{1, 2, 3}}
	adapter := NewSourceAdapter[int](src)
	sink := NewCollectorSink[int]()
	require.NoError(t, adapter.SetNext(sink))

	require.NoError(t, adapter.Start(context.Background()))
	require.Equal(t, []int{1, 2, 3}, sink.Values())
}

func TestSourceAdapterToleratesNilNext(t *testing.T) {
	src := &fakeSource{emit: []int{1, 2}}
	adapter := NewSourceAdapter[int](src)
	require.NoError(t, adapter.Start(context.Background()))
}

func TestSourceAdapterPropagatesStartError(t *testing.T) {
	wantErr := errors.New("boom")
	src := &fakeSource{startErr: wantErr}
	adapter := NewSourceAdapter[int](src)
	require.ErrorIs(t, adapter.Start(context.Background()), wantErr)
}

func TestSourceAdapterStopDelegatesToSource(t *testing.T) {
	src := &fakeSource{}
	adapter := NewSourceAdapter[int](src)
	require.NoError(t, adapter.Stop())
	require.True(t, src.stopped)
}

func TestSourceAdapterProcessIsIllegal(t *testing.T) {
	adapter := NewSourceAdapter[int](&fakeSource{})
	var cfgErr *engine.IllegalConfigurationError
	err := adapter.Process(context.Background(), 1)
	require.ErrorAs(t, err, &cfgErr)
}
