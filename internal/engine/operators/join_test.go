package operators

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ILLUVRSE/streamkit/internal/store"
)

type order struct {
	CustomerID string
	Amount     int
}

type customer struct {
	Name string
}

func TestJoinEmitsOnlyWhenRightSideIsPresent(t *testing.T) {
	customers := store.NewMemoryStore[string, customer]("test-join-customers")
	require.NoError(t, customers.Put(context.Background(), "c1", customer{Name: "Ada"}))

	j := NewJoin[order, customer, string, string](
		customers,
		func(o order) string { return o.CustomerID },
		func(o order, c customer) string { return c.Name },
	)
	collector := NewCollectorSink[string]()
	require.NoError(t, j.SetNext(collector))

	require.NoError(t, j.Process(context.Background(), order{CustomerID: "c1", Amount: 10}))
	require.NoError(t, j.Process(context.Background(), order{CustomerID: "unknown", Amount: 5}))

	require.Equal(t, []string{"Ada"}, collector.Values())
}
