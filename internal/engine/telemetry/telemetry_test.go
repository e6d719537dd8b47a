package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetricNamesFollowsConvention(t *testing.T) {
	counter, histogram, tracer := MetricNames("map", "Order")
	require.Equal(t, "map_processed_Order", counter)
	require.Equal(t, "map_processing_time_Order", histogram)
	require.Equal(t, "map_Order", tracer)
}

func TestNoopProviderNeverPanics(t *testing.T) {
	p := NewNoopProvider()

	c := p.Counter("x")
	c.Inc()
	c.Add(3.5)

	h := p.Histogram("y")
	h.Observe(1.2)

	tr := p.Tracer("z")
	ctx, end := tr.StartSpan(context.Background(), "span")
	require.NotNil(t, ctx)
	end()
}
