// Package mediator is a peripheral commands/queries/notifications
// library: a thin in-process request dispatcher with a pipeline-behavior
// chain (logging, validation), kept minimal since the streaming engine
// itself never depends on it.
package mediator

import (
	"context"
	"fmt"
)

// Handler processes a single request type into a response.
type Handler[TReq, TResp any] func(ctx context.Context, req TReq) (TResp, error)

// Behavior wraps a Handler with cross-cutting concerns (logging,
// validation) and must call next to continue the chain.
type Behavior[TReq, TResp any] func(ctx context.Context, req TReq, next Handler[TReq, TResp]) (TResp, error)

// Mediator dispatches typed requests through a behavior chain to a
// terminal handler. Notifications go through a Publisher instead.
type Mediator struct {
	behaviors []any // []Behavior[TReq,TResp] per registration, type-erased
}

// New builds an empty Mediator.
func New() *Mediator {
	return &Mediator{}
}

// Use registers a behavior that wraps every Send call matching its
// (TReq, TResp) type parameters. Behaviors run in registration order,
// outermost first.
func Use[TReq, TResp any](m *Mediator, b Behavior[TReq, TResp]) {
	m.behaviors = append(m.behaviors, b)
}

// Send runs req through every registered Behavior[TReq,TResp] (in
// registration order, outermost first) and finally handler.
func Send[TReq, TResp any](ctx context.Context, m *Mediator, req TReq, handler Handler[TReq, TResp]) (TResp, error) {
	chain := handler
	var matched []Behavior[TReq, TResp]
	for _, b := range m.behaviors {
		if typed, ok := b.(Behavior[TReq, TResp]); ok {
			matched = append(matched, typed)
		}
	}
	for i := len(matched) - 1; i >= 0; i-- {
		next := chain
		behavior := matched[i]
		chain = func(ctx context.Context, req TReq) (TResp, error) {
			return behavior(ctx, req, next)
		}
	}
	return chain(ctx, req)
}

// Notification is implemented by types published through Publish.
type Notification interface {
	NotificationName() string
}

// Subscriber receives every notification of type TNotif published
// through a Publisher.
type Subscriber[TNotif Notification] func(ctx context.Context, n TNotif) error

// Publisher fans a notification out to its registered subscribers,
// stopping at the first error.
type Publisher struct {
	subscribers map[string][]func(ctx context.Context, n Notification) error
}

// NewPublisher builds an empty Publisher.
func NewPublisher() *Publisher {
	return &Publisher{subscribers: make(map[string][]func(ctx context.Context, n Notification) error)}
}

// Subscribe registers sub for every notification whose NotificationName
// matches name.
func Subscribe[TNotif Notification](p *Publisher, name string, sub Subscriber[TNotif]) {
	p.subscribers[name] = append(p.subscribers[name], func(ctx context.Context, n Notification) error {
		typed, ok := n.(TNotif)
		if !ok {
			return fmt.Errorf("mediator: notification %q: subscriber type mismatch", name)
		}
		return sub(ctx, typed)
	})
}

// Publish delivers n to every subscriber registered under n's
// NotificationName, in subscription order, stopping at the first error.
func (p *Publisher) Publish(ctx context.Context, n Notification) error {
	for _, sub := range p.subscribers[n.NotificationName()] {
		if err := sub(ctx, n); err != nil {
			return fmt.Errorf("mediator: publish %q: %w", n.NotificationName(), err)
		}
	}
	return nil
}
