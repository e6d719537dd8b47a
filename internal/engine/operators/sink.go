package operators

import (
	"context"
	"sync"

	"github.com/ILLUVRSE/streamkit/internal/engine"
)

// SinkFunc adapts a plain function into a terminal operator. SetNext on a
// sink always fails.
type SinkFunc[T any] struct {
	fn        func(context.Context, T) error
	telemetry engine.TelemetryProvider
}

// NewSinkFunc wraps fn as a sink operator.
func NewSinkFunc[T any](fn func(context.Context, T) error) *SinkFunc[T] {
	return &SinkFunc[T]{fn: fn}
}

func (s *SinkFunc[T]) SetNext(engine.Operator[T]) error {
	return engine.NewIllegalConfigurationError("SetNext called on a sink operator")
}

func (s *SinkFunc[T]) SetTelemetryProvider(p engine.TelemetryProvider) { s.telemetry = p }

func (s *SinkFunc[T]) Process(ctx context.Context, v T) error {
	return s.fn(ctx, v)
}

// CollectorSink accumulates every value it receives, in order, for tests
// and demos (the S1/S2 seed-test "sink collector").
type CollectorSink[T any] struct {
	mu        sync.Mutex
	values    []T
	telemetry engine.TelemetryProvider
}

// NewCollectorSink builds an empty CollectorSink.
func NewCollectorSink[T any]() *CollectorSink[T] {
	return &CollectorSink[T]{}
}

func (c *CollectorSink[T]) SetNext(engine.Operator[T]) error {
	return engine.NewIllegalConfigurationError("SetNext called on a sink operator")
}

func (c *CollectorSink[T]) SetTelemetryProvider(p engine.TelemetryProvider) { c.telemetry = p }

func (c *CollectorSink[T]) Process(_ context.Context, v T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = append(c.values, v)
	return nil
}

// Values returns a copy of everything collected so far, in arrival order.
func (c *CollectorSink[T]) Values() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.values...)
}
