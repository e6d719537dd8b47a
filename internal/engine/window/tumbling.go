package window

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ILLUVRSE/streamkit/internal/engine"
	"github.com/ILLUVRSE/streamkit/internal/store"
)

// TumblingWindow is a keyed tumbling window: per key, events accumulate in
// an Open(start, events) state until an event lands outside
// [start, start+D), at which point the window closes (combine is
// emitted, optionally persisted, state removed) and a fresh window opens.
// A background timer closes windows that go quiet past their boundary.
type TumblingWindow[T any, K comparable, O any] struct {
	ks           func(T) K
	duration     time.Duration
	combine      func([]T) O
	windowStore  store.Store[K, WindowState[T]]
	resultsStore store.Store[WindowKey[K], O] // optional; nil disables persistence

	now func() time.Time

	mu   sync.Mutex
	next engine.Operator[O]

	stopCh    chan struct{}
	wg        sync.WaitGroup
	telemetry engine.TelemetryProvider
}

// NewTumblingWindow builds a keyed tumbling window. resultsStore may be nil.
func NewTumblingWindow[T any, K comparable, O any](
	ks func(T) K,
	duration time.Duration,
	combine func([]T) O,
	windowStore store.Store[K, WindowState[T]],
	resultsStore store.Store[WindowKey[K], O],
) *TumblingWindow[T, K, O] {
	return &TumblingWindow[T, K, O]{
		ks:           ks,
		duration:     duration,
		combine:      combine,
		windowStore:  windowStore,
		resultsStore: resultsStore,
		now:          time.Now,
		stopCh:       make(chan struct{}),
	}
}

func (w *TumblingWindow[T, K, O]) SetNext(next engine.Operator[O]) error {
	w.next = next
	return nil
}

func (w *TumblingWindow[T, K, O]) SetTelemetryProvider(p engine.TelemetryProvider) { w.telemetry = p }

func (w *TumblingWindow[T, K, O]) GetStateStores() []engine.StateStoreHandle {
	handles := []engine.StateStoreHandle{w.windowStore}
	if w.resultsStore != nil {
		handles = append(handles, w.resultsStore)
	}
	return handles
}

// Start arms the background timer that sweeps for windows expired past
// their boundary. It must be called once the operator is wired into a
// running Stream.
func (w *TumblingWindow[T, K, O]) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.tick(ctx)
}

// Stop releases the background timer and joins the worker.
func (w *TumblingWindow[T, K, O]) Stop() {
	close(w.stopCh)
	w.wg.Wait()
}

func (w *TumblingWindow[T, K, O]) tick(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.duration)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *TumblingWindow[T, K, O]) sweep(ctx context.Context) {
	keys, err := w.windowStore.GetKeys(ctx)
	if err != nil {
		return
	}
	now := w.now()
	for _, key := range keys {
		select {
		case <-w.stopCh:
			return
		default:
		}
		w.closeExpired(ctx, key, now)
	}
}

// closeExpired closes key's window if it has gone past its boundary,
// without opening a replacement (no new input is available to seed one).
func (w *TumblingWindow[T, K, O]) closeExpired(ctx context.Context, key K, now time.Time) {
	w.mu.Lock()
	state, ok, err := w.windowStore.Get(ctx, key)
	if err != nil || !ok {
		w.mu.Unlock()
		return
	}
	if now.Before(state.WindowStartUTC.Add(w.duration)) {
		w.mu.Unlock()
		return
	}

	out, panicked := safeCombine(w.combine, state.Events)
	if panicked != nil {
		w.mu.Unlock()
		return // combine failure: state preserved, next tick retries
	}
	if err := w.windowStore.Remove(ctx, key); err != nil {
		w.mu.Unlock()
		return
	}
	if w.resultsStore != nil {
		_ = w.resultsStore.Put(ctx, WindowKey[K]{Key: key, WindowStartUTC: state.WindowStartUTC}, out)
	}
	w.mu.Unlock()

	if w.next != nil {
		_ = w.next.Process(ctx, out)
	}
}

// Process implements engine.Operator.
func (w *TumblingWindow[T, K, O]) Process(ctx context.Context, v T) error {
	key := w.ks(v)
	t := w.now()

	w.mu.Lock()
	state, ok, err := w.windowStore.Get(ctx, key)
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("tumbling window %s: get: %w", w.windowStore.Name(), err)
	}

	if ok && !t.Before(state.WindowStartUTC) && t.Before(state.WindowStartUTC.Add(w.duration)) {
		state.Events = append(state.Events, v)
		if err := w.windowStore.Put(ctx, key, state); err != nil {
			w.mu.Unlock()
			return fmt.Errorf("tumbling window %s: put: %w", w.windowStore.Name(), err)
		}
		w.mu.Unlock()
		return nil
	}

	if !ok {
		newState := WindowState[T]{WindowStartUTC: floorTo(t, w.duration), Events: []T{v}}
		if err := w.windowStore.Put(ctx, key, newState); err != nil {
			w.mu.Unlock()
			return fmt.Errorf("tumbling window %s: put: %w", w.windowStore.Name(), err)
		}
		w.mu.Unlock()
		return nil
	}

	// t is outside the open window: close it, then open a fresh one.
	out, panicked := safeCombine(w.combine, state.Events)
	if panicked != nil {
		w.mu.Unlock()
		panic(panicked) // combine failure propagates; old window state untouched
	}

	newState := WindowState[T]{WindowStartUTC: floorTo(t, w.duration), Events: []T{v}}
	if err := w.windowStore.Put(ctx, key, newState); err != nil {
		w.mu.Unlock()
		return fmt.Errorf("tumbling window %s: put: %w", w.windowStore.Name(), err)
	}
	if w.resultsStore != nil {
		if err := w.resultsStore.Put(ctx, WindowKey[K]{Key: key, WindowStartUTC: state.WindowStartUTC}, out); err != nil {
			w.mu.Unlock()
			return fmt.Errorf("tumbling window %s: results put: %w", w.resultsStore.Name(), err)
		}
	}
	w.mu.Unlock()

	if w.next == nil {
		return nil
	}
	return w.next.Process(ctx, out)
}
