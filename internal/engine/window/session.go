package window

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ILLUVRSE/streamkit/internal/engine"
	"github.com/ILLUVRSE/streamkit/internal/store"
)

// SessionWindow opens a session on the first event for a key, extends it
// on every subsequent event, and closes it via a background timer running
// at period G once now - last_event_time >= G.
type SessionWindow[T any, K comparable, O any] struct {
	ks            func(T) K
	inactivityGap time.Duration
	combine       func([]T) O
	sessionStore  store.Store[K, SessionState[T]]
	resultsStore  store.Store[WindowKey[K], O]

	now func() time.Time

	mu   sync.Mutex
	next engine.Operator[O]

	stopCh    chan struct{}
	wg        sync.WaitGroup
	telemetry engine.TelemetryProvider
}

// NewSessionWindow builds a session window with the given inactivity gap.
// resultsStore may be nil.
func NewSessionWindow[T any, K comparable, O any](
	ks func(T) K,
	inactivityGap time.Duration,
	combine func([]T) O,
	sessionStore store.Store[K, SessionState[T]],
	resultsStore store.Store[WindowKey[K], O],
) *SessionWindow[T, K, O] {
	return &SessionWindow[T, K, O]{
		ks:            ks,
		inactivityGap: inactivityGap,
		combine:       combine,
		sessionStore:  sessionStore,
		resultsStore:  resultsStore,
		now:           time.Now,
		stopCh:        make(chan struct{}),
	}
}

func (w *SessionWindow[T, K, O]) SetNext(next engine.Operator[O]) error {
	w.next = next
	return nil
}

func (w *SessionWindow[T, K, O]) SetTelemetryProvider(p engine.TelemetryProvider) { w.telemetry = p }

func (w *SessionWindow[T, K, O]) GetStateStores() []engine.StateStoreHandle {
	handles := []engine.StateStoreHandle{w.sessionStore}
	if w.resultsStore != nil {
		handles = append(handles, w.resultsStore)
	}
	return handles
}

func (w *SessionWindow[T, K, O]) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.tick(ctx)
}

func (w *SessionWindow[T, K, O]) Stop() {
	close(w.stopCh)
	w.wg.Wait()
}

func (w *SessionWindow[T, K, O]) tick(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.inactivityGap)
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

func (w *SessionWindow[T, K, O]) sweep(ctx context.Context) {
	keys, err := w.sessionStore.GetKeys(ctx)
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
		w.closeIfExpired(ctx, key, now)
	}
}

func (w *SessionWindow[T, K, O]) closeIfExpired(ctx context.Context, key K, now time.Time) {
	w.mu.Lock()
	state, ok, err := w.sessionStore.Get(ctx, key)
	if err != nil || !ok {
		w.mu.Unlock()
		return
	}
	if now.Sub(state.LastEventUTC) < w.inactivityGap {
		w.mu.Unlock()
		return
	}
	out, panicked := safeCombine(w.combine, state.Events)
	if panicked != nil {
		w.mu.Unlock()
		return
	}
	if err := w.sessionStore.Remove(ctx, key); err != nil {
		w.mu.Unlock()
		return
	}
	if w.resultsStore != nil {
		_ = w.resultsStore.Put(ctx, WindowKey[K]{Key: key, WindowStartUTC: state.SessionStartUTC}, out)
	}
	w.mu.Unlock()

	if w.next != nil {
		_ = w.next.Process(ctx, out)
	}
}

func (w *SessionWindow[T, K, O]) Process(ctx context.Context, v T) error {
	key := w.ks(v)
	t := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	state, ok, err := w.sessionStore.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("session window %s: get: %w", w.sessionStore.Name(), err)
	}
	if !ok {
		state = SessionState[T]{SessionStartUTC: t}
	}
	state.LastEventUTC = t
	state.Events = append(state.Events, v)
	if err := w.sessionStore.Put(ctx, key, state); err != nil {
		return fmt.Errorf("session window %s: put: %w", w.sessionStore.Name(), err)
	}
	return nil
}
