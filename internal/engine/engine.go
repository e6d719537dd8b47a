// Package engine defines the operator contract shared by every node in a
// streamkit pipeline: a single input type, at most one downstream operator,
// and a synchronous Process call as the only public mutator.
package engine

import (
	"context"
	"errors"
	"fmt"
)

// ErrIllegalConfiguration is returned for structural mistakes caught at
// build time: wiring a second source, calling SetNext on a sink or fork,
// referencing an unknown branch, or disabling schema creation on a store
// that needs it.
var ErrIllegalConfiguration = errors.New("illegal configuration")

// IllegalConfigurationError wraps ErrIllegalConfiguration with context.
type IllegalConfigurationError struct {
	Reason string
}

func (e *IllegalConfigurationError) Error() string {
	return fmt.Sprintf("illegal configuration: %s", e.Reason)
}

func (e *IllegalConfigurationError) Unwrap() error {
	return ErrIllegalConfiguration
}

// NewIllegalConfigurationError builds an IllegalConfigurationError.
func NewIllegalConfigurationError(reason string) error {
	return &IllegalConfigurationError{Reason: reason}
}

// Operator is the base contract every pipeline node implements. T is the
// type of value this operator accepts. Process is the only public mutator;
// failures in user callbacks (map/filter/agg/combine) propagate to the
// caller unchanged. SetNext is not part of this interface, because its
// argument is typed by the operator's output type rather than T: each
// concrete operator declares its own SetNext, and sinks and forks reject
// it with ErrIllegalConfiguration.
type Operator[T any] interface {
	// Process receives one value and does the operator's work, possibly
	// forwarding to the next operator.
	Process(ctx context.Context, v T) error
	// SetTelemetryProvider installs telemetry hooks; nil disables them.
	SetTelemetryProvider(p TelemetryProvider)
}

// TelemetryProvider is implemented by engine/telemetry.Provider; declared
// here to avoid an import cycle between engine and engine/telemetry.
type TelemetryProvider interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
	Tracer(name string) Tracer
}

// Counter is a monotonic counter hook.
type Counter interface {
	Inc()
	Add(delta float64)
}

// Histogram is a distribution hook.
type Histogram interface {
	Observe(v float64)
}

// Tracer is a span hook.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, func())
}

// StatefulOperator is implemented by operators backed by one or more state
// stores, so the stream runtime can enumerate them (e.g. for checkpointing
// or introspection).
type StatefulOperator interface {
	GetStateStores() []StateStoreHandle
}

// StateStoreHandle is the minimal surface the runtime needs from a state
// store without importing the store package (name only — enumeration is
// owned by the store package itself).
type StateStoreHandle interface {
	Name() string
}

// Sink terminates a chain; SetNext always fails.
type Sink[T any] interface {
	Process(ctx context.Context, v T) error
	SetTelemetryProvider(p TelemetryProvider)
}

// Source emits values into the head of a chain on a background worker it
// owns. Process on a source is undefined; sources are driven by Start/Stop.
type Source[T any] interface {
	// Start begins emission on a background worker. emit is invoked
	// synchronously from that worker; order is source-defined.
	Start(ctx context.Context, emit func(T)) error
	// Stop requests shutdown and waits for the worker to finish.
	Stop() error
}
