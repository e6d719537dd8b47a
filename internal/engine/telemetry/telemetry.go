// Package telemetry provides pluggable counter/histogram/tracer hooks for
// pipeline operators. No concrete provider (Prometheus, OpenTelemetry, …)
// ships here — only the interfaces and a no-op default, per the hooks-only
// scope of the streaming engine.
package telemetry

import (
	"context"
	"fmt"

	"github.com/ILLUVRSE/streamkit/internal/engine"
)

// Provider satisfies engine.TelemetryProvider. Naming convention for the
// metrics it's asked to produce: "<op>_processed_<T>", "<op>_processing_time_<T>",
// "<op>_<T>" for counter/histogram/tracer respectively.
type Provider interface {
	Counter(name string) engine.Counter
	Histogram(name string) engine.Histogram
	Tracer(name string) engine.Tracer
}

// MetricNames returns the three conventional hook names for an operator
// type (e.g. "map") processing values of type T (e.g. "Order").
func MetricNames(opType, valueType string) (counter, histogram, tracer string) {
	return fmt.Sprintf("%s_processed_%s", opType, valueType),
		fmt.Sprintf("%s_processing_time_%s", opType, valueType),
		fmt.Sprintf("%s_%s", opType, valueType)
}

// NoopProvider discards every metric; it's the default when no provider is
// configured, so operators never need a nil check at the call site.
type NoopProvider struct{}

func NewNoopProvider() *NoopProvider { return &NoopProvider{} }

func (NoopProvider) Counter(string) engine.Counter     { return noopCounter{} }
func (NoopProvider) Histogram(string) engine.Histogram { return noopHistogram{} }
func (NoopProvider) Tracer(string) engine.Tracer       { return noopTracer{} }

type noopCounter struct{}

func (noopCounter) Inc()        {}
func (noopCounter) Add(float64) {}

type noopHistogram struct{}

func (noopHistogram) Observe(float64) {}

type noopTracer struct{}

func (noopTracer) StartSpan(ctx context.Context, _ string) (context.Context, func()) {
	return ctx, func() {}
}
