package mediator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type createOrder struct{ Amount int }
type orderCreated struct{ ID string }

func (orderCreated) NotificationName() string { return "order.created" }

func TestSendRunsBehaviorsOutermostFirstThenHandler(t *testing.T) {
	m := New()
	var order []string

	Use(m, Behavior[createOrder, int](func(ctx context.Context, req createOrder, next Handler[createOrder, int]) (int, error) {
		order = append(order, "outer-before")
		v, err := next(ctx, req)
		order = append(order, "outer-after")
		return v, err
	}))
	Use(m, Behavior[createOrder, int](func(ctx context.Context, req createOrder, next Handler[createOrder, int]) (int, error) {
		order = append(order, "inner-before")
		v, err := next(ctx, req)
		order = append(order, "inner-after")
		return v, err
	}))

	handler := func(ctx context.Context, req createOrder) (int, error) {
		order = append(order, "handler")
		return req.Amount * 2, nil
	}

	result, err := Send[createOrder, int](context.Background(), m, createOrder{Amount: 5}, handler)
	require.NoError(t, err)
	require.Equal(t, 10, result)
	require.Equal(t, []string{"outer-before", "inner-before", "handler", "inner-after", "outer-after"}, order)
}

func TestSendOnlyMatchesBehaviorsOfTheSameTypes(t *testing.T) {
	m := New()
	called := false
	Use(m, Behavior[string, int](func(ctx context.Context, req string, next Handler[string, int]) (int, error) {
		called = true
		return next(ctx, req)
	}))

	_, err := Send[createOrder, int](context.Background(), m, createOrder{Amount: 1}, func(ctx context.Context, req createOrder) (int, error) {
		return req.Amount, nil
	})
	require.NoError(t, err)
	require.False(t, called)
}

func TestPublishDeliversToMatchingSubscribersInOrder(t *testing.T) {
	p := NewPublisher()
	var received []string

	Subscribe(p, "order.created", Subscriber[orderCreated](func(ctx context.Context, n orderCreated) error {
		received = append(received, "first:"+n.ID)
		return nil
	}))
	Subscribe(p, "order.created", Subscriber[orderCreated](func(ctx context.Context, n orderCreated) error {
		received = append(received, "second:"+n.ID)
		return nil
	}))

	require.NoError(t, p.Publish(context.Background(), orderCreated{ID: "o1"}))
	require.Equal(t, []string{"first:o1", "second:o1"}, received)
}

func TestPublishStopsAtFirstError(t *testing.T) {
	p := NewPublisher()
	wantErr := errors.New("boom")
	calls := 0

	Subscribe(p, "order.created", Subscriber[orderCreated](func(ctx context.Context, n orderCreated) error {
		calls++
		return wantErr
	}))
	Subscribe(p, "order.created", Subscriber[orderCreated](func(ctx context.Context, n orderCreated) error {
		calls++
		return nil
	}))

	err := p.Publish(context.Background(), orderCreated{ID: "o1"})
	require.ErrorIs(t, err, wantErr)
	require.Equal(t, 1, calls)
}
