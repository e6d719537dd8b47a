// Package runtime implements the Stream lifecycle: start/stop/emit,
// branch enumeration, and joining the background workers (sources, window
// timers) a built pipeline owns.
package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/ILLUVRSE/streamkit/internal/engine"
)

// Status mirrors the builder surface's GetStatus() result.
type Status string

const (
	StatusRunning Status = "Running"
	StatusStopped Status = "Stopped"
)

// Stream is the runtime handle produced by StreamBuilder.Build(). It owns
// every operator instance in the chain until Stop.
type Stream[T any] struct {
	name      string
	hasSource bool

	startFn func(ctx context.Context) error
	stopFn  func() error

	emitHead engine.Operator[T] // only set when built without an explicit source

	backgroundStart []func(context.Context)
	backgroundStop  []func()

	branchNamesFn func() []string

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
}

// NewStream is called by the builder package once a pipeline is fully
// wired; it is not meant to be constructed directly by callers.
func NewStream[T any](
	name string,
	hasSource bool,
	startFn func(context.Context) error,
	stopFn func() error,
	emitHead engine.Operator[T],
	backgroundStart []func(context.Context),
	backgroundStop []func(),
	branchNamesFn func() []string,
) *Stream[T] {
	return &Stream[T]{
		name:            name,
		hasSource:       hasSource,
		startFn:         startFn,
		stopFn:          stopFn,
		emitHead:        emitHead,
		backgroundStart: backgroundStart,
		backgroundStop:  backgroundStop,
		branchNamesFn:   branchNamesFn,
		status:          StatusStopped,
	}
}

// Start activates sources and window timers. Idempotent: calling Start on
// an already-running stream is a no-op.
func (s *Stream[T]) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.status == StatusRunning {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.status = StatusRunning
	s.mu.Unlock()

	for _, bs := range s.backgroundStart {
		bs(runCtx)
	}
	if s.hasSource && s.startFn != nil {
		if err := s.startFn(runCtx); err != nil {
			s.mu.Lock()
			s.status = StatusStopped
			s.mu.Unlock()
			return fmt.Errorf("stream %s: start source: %w", s.name, err)
		}
	}
	return nil
}

// Stop signals shutdown, drains timers, and joins background workers with
// an unbounded wait. Idempotent.
func (s *Stream[T]) Stop() error {
	s.mu.Lock()
	if s.status != StatusRunning {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.status = StatusStopped
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var firstErr error
	if s.hasSource && s.stopFn != nil {
		if err := s.stopFn(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stream %s: stop source: %w", s.name, err)
		}
	}
	for _, stop := range s.backgroundStop {
		stop()
	}
	return firstErr
}

// GetStatus returns "Running" or "Stopped".
func (s *Stream[T]) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Emit pushes v into the head of the chain. Only valid when the stream was
// built without an explicit source.
func (s *Stream[T]) Emit(ctx context.Context, v T) error {
	if s.hasSource {
		return engine.NewIllegalConfigurationError("Emit called on a stream built with an explicit source")
	}
	if s.emitHead == nil {
		return nil
	}
	return s.emitHead.Process(ctx, v)
}

// GetBranches returns the fork's branch names in insertion order, or nil
// if the stream has no fork.
func (s *Stream[T]) GetBranches() []string {
	if s.branchNamesFn == nil {
		return nil
	}
	return s.branchNamesFn()
}

// Name returns the stream's configured name.
func (s *Stream[T]) Name() string { return s.name }
