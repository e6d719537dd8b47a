package operators

import (
	"context"

	"github.com/ILLUVRSE/streamkit/internal/engine"
)

// SourceAdapter wraps an engine.Source as the pipeline head: Start begins
// emission on the source's background worker, forwarding each value into
// next. Stop requests shutdown and joins the worker.
type SourceAdapter[T any] struct {
	source    engine.Source[T]
	next      engine.Operator[T]
	telemetry engine.TelemetryProvider
}

// NewSourceAdapter builds a SourceAdapter around src.
func NewSourceAdapter[T any](src engine.Source[T]) *SourceAdapter[T] {
	return &SourceAdapter[T]{source: src}
}

func (s *SourceAdapter[T]) SetNext(next engine.Operator[T]) error {
	s.next = next
	return nil
}

func (s *SourceAdapter[T]) SetTelemetryProvider(p engine.TelemetryProvider) { s.telemetry = p }

// Process is undefined for sources; SourceAdapter never calls it itself
// and callers should not either.
func (s *SourceAdapter[T]) Process(context.Context, T) error {
	return engine.NewIllegalConfigurationError("Process called directly on a source operator")
}

// Start begins emission; each value is forwarded synchronously from the
// source's worker to the next operator.
func (s *SourceAdapter[T]) Start(ctx context.Context) error {
	return s.source.Start(ctx, func(v T) {
		if s.next == nil {
			return
		}
		_ = s.next.Process(ctx, v)
	})
}

// Stop requests shutdown and waits for the source's worker to finish.
func (s *SourceAdapter[T]) Stop() error {
	return s.source.Stop()
}
