package operators

import (
	"context"
	"fmt"
	"sync"

	"github.com/ILLUVRSE/streamkit/internal/engine"
	"github.com/ILLUVRSE/streamkit/internal/store"
)

// Join is a stream-table join: the left side is the live stream, the
// right side is a Store populated externally. On each L, if the store
// contains ks(L), joinFn(L, store.get(k)) is emitted; otherwise the input
// is dropped silently. Lookup is under a per-store lock; external writers
// mutating the store concurrently are acceptable (linearizable per-key).
type Join[L, R any, K comparable, O any] struct {
	ks      func(L) K
	store   store.Store[K, R]
	joinFn  func(L, R) O

	mu        sync.Mutex
	next      engine.Operator[O]
	telemetry engine.TelemetryProvider
}

// NewJoin builds a stream-table Join operator.
func NewJoin[L, R any, K comparable, O any](s store.Store[K, R], ks func(L) K, joinFn func(L, R) O) *Join[L, R, K, O] {
	return &Join[L, R, K, O]{ks: ks, store: s, joinFn: joinFn}
}

func (j *Join[L, R, K, O]) SetNext(next engine.Operator[O]) error {
	j.next = next
	return nil
}

func (j *Join[L, R, K, O]) SetTelemetryProvider(p engine.TelemetryProvider) { j.telemetry = p }

func (j *Join[L, R, K, O]) GetStateStores() []engine.StateStoreHandle {
	return []engine.StateStoreHandle{j.store}
}

func (j *Join[L, R, K, O]) Process(ctx context.Context, v L) error {
	k := j.ks(v)

	j.mu.Lock()
	right, ok, err := j.store.Get(ctx, k)
	j.mu.Unlock()
	if err != nil {
		return fmt.Errorf("join %s: get: %w", j.store.Name(), err)
	}
	if !ok {
		return nil
	}

	out := j.joinFn(v, right)
	if j.next == nil {
		return nil
	}
	return j.next.Process(ctx, out)
}
