package operators

import (
	"context"
	"fmt"
	"sync"

	"github.com/ILLUVRSE/streamkit/internal/engine"
	"github.com/ILLUVRSE/streamkit/internal/store"
)

// KV is the (key, value) pair GroupByKey and AggregateByKey forward
// downstream.
type KV[K comparable, V any] struct {
	Key   K
	Value V
}

// GroupByKey appends each input to the list for ks(v) under a per-store
// lock and forwards (K, current-list) downstream. Exactly one in-flight
// Process per operator-store pair; no cross-key ordering guarantee.
type GroupByKey[T any, K comparable] struct {
	ks       func(T) K
	store    store.Store[K, []T]
	silently bool

	mu        sync.Mutex
	next      engine.Operator[KV[K, []T]]
	nextRaw   engine.Operator[T]
	telemetry engine.TelemetryProvider
}

// NewGroupByKey builds a GroupByKey operator forwarding (K, list) pairs.
func NewGroupByKey[T any, K comparable](ks func(T) K, s store.Store[K, []T]) *GroupByKey[T, K] {
	return &GroupByKey[T, K]{ks: ks, store: s}
}

// NewGroupBySilently builds a GroupByKey variant forwarding the original T;
// the store is still mutated as a side effect.
func NewGroupBySilently[T any, K comparable](ks func(T) K, s store.Store[K, []T]) *GroupByKey[T, K] {
	return &GroupByKey[T, K]{ks: ks, store: s, silently: true}
}

func (g *GroupByKey[T, K]) SetNext(next engine.Operator[KV[K, []T]]) error {
	if g.silently {
		return engine.NewIllegalConfigurationError("SetNext(KV) called on a silent group-by operator")
	}
	g.next = next
	return nil
}

// SetNextRaw wires the downstream operator for a silent group-by, which
// forwards T rather than KV[K, []T].
func (g *GroupByKey[T, K]) SetNextRaw(next engine.Operator[T]) error {
	if !g.silently {
		return engine.NewIllegalConfigurationError("SetNextRaw called on a non-silent group-by operator")
	}
	g.nextRaw = next
	return nil
}

func (g *GroupByKey[T, K]) SetTelemetryProvider(p engine.TelemetryProvider) { g.telemetry = p }

func (g *GroupByKey[T, K]) GetStateStores() []engine.StateStoreHandle {
	return []engine.StateStoreHandle{g.store}
}

func (g *GroupByKey[T, K]) Process(ctx context.Context, v T) error {
	key := g.ks(v)

	g.mu.Lock()
	existing, _, err := g.store.Get(ctx, key)
	if err != nil {
		g.mu.Unlock()
		return fmt.Errorf("group by key %s: get: %w", g.store.Name(), err)
	}
	updated := append(append([]T(nil), existing...), v)
	if err := g.store.Put(ctx, key, updated); err != nil {
		g.mu.Unlock()
		return fmt.Errorf("group by key %s: put: %w", g.store.Name(), err)
	}
	g.mu.Unlock()

	if g.silently {
		if g.nextRaw == nil {
			return nil
		}
		return g.nextRaw.Process(ctx, v)
	}
	if g.next == nil {
		return nil
	}
	return g.next.Process(ctx, KV[K, []T]{Key: key, Value: updated})
}

// AggregateByKey sets A' = agg(store.get(ks(v)) OR zero(A), v) under a
// per-store lock, puts A', and forwards (K, A'). AggregateSilently
// forwards the original T instead. Zero value of A is the store's absent
// sentinel mapped to the language default (Go's zero value).
type AggregateByKey[T, A any, K comparable] struct {
	ks       func(T) K
	agg      func(A, T) A
	store    store.Store[K, A]
	silently bool

	mu        sync.Mutex
	next      engine.Operator[KV[K, A]]
	nextRaw   engine.Operator[T]
	telemetry engine.TelemetryProvider
}

// NewAggregateByKey builds an AggregateByKey operator forwarding (K, A) pairs.
func NewAggregateByKey[T, A any, K comparable](ks func(T) K, agg func(A, T) A, s store.Store[K, A]) *AggregateByKey[T, A, K] {
	return &AggregateByKey[T, A, K]{ks: ks, agg: agg, store: s}
}

// NewAggregateSilently builds an AggregateByKey variant forwarding T.
func NewAggregateSilently[T, A any, K comparable](ks func(T) K, agg func(A, T) A, s store.Store[K, A]) *AggregateByKey[T, A, K] {
	return &AggregateByKey[T, A, K]{ks: ks, agg: agg, store: s, silently: true}
}

func (a *AggregateByKey[T, A, K]) SetNext(next engine.Operator[KV[K, A]]) error {
	if a.silently {
		return engine.NewIllegalConfigurationError("SetNext(KV) called on a silent aggregate operator")
	}
	a.next = next
	return nil
}

// SetNextRaw wires the downstream operator for a silent aggregate.
func (a *AggregateByKey[T, A, K]) SetNextRaw(next engine.Operator[T]) error {
	if !a.silently {
		return engine.NewIllegalConfigurationError("SetNextRaw called on a non-silent aggregate operator")
	}
	a.nextRaw = next
	return nil
}

func (a *AggregateByKey[T, A, K]) SetTelemetryProvider(p engine.TelemetryProvider) { a.telemetry = p }

func (a *AggregateByKey[T, A, K]) GetStateStores() []engine.StateStoreHandle {
	return []engine.StateStoreHandle{a.store}
}

func (a *AggregateByKey[T, A, K]) Process(ctx context.Context, v T) error {
	key := a.ks(v)

	a.mu.Lock()
	current, _, err := a.store.Get(ctx, key) // zero value of A is the absent sentinel
	if err != nil {
		a.mu.Unlock()
		return fmt.Errorf("aggregate by key %s: get: %w", a.store.Name(), err)
	}
	updated := a.agg(current, v) // left unchanged on a panic: caller sees the panic, store untouched
	if err := a.store.Put(ctx, key, updated); err != nil {
		a.mu.Unlock()
		return fmt.Errorf("aggregate by key %s: put: %w", a.store.Name(), err)
	}
	a.mu.Unlock()

	if a.silently {
		if a.nextRaw == nil {
			return nil
		}
		return a.nextRaw.Process(ctx, v)
	}
	if a.next == nil {
		return nil
	}
	return a.next.Process(ctx, KV[K, A]{Key: key, Value: updated})
}
