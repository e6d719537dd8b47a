package window

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ILLUVRSE/streamkit/internal/engine"
	"github.com/ILLUVRSE/streamkit/internal/store"
)

// SlidingWindow appends each event to every active window start
// `{ s : s <= t < s+D, s = floor(t,S) - k*S }` and closes a window exactly
// when t_now >= s+D. A background timer runs at period S. Each (K, start)
// pair is stored as its own WindowState entry.
type SlidingWindow[T any, K comparable, O any] struct {
	ks           func(T) K
	duration     time.Duration
	slide        time.Duration
	combine      func([]T) O
	windowStore  store.Store[WindowKey[K], WindowState[T]]
	resultsStore store.Store[WindowKey[K], O]

	now func() time.Time

	mu   sync.Mutex
	next engine.Operator[O]

	stopCh    chan struct{}
	wg        sync.WaitGroup
	telemetry engine.TelemetryProvider
}

// NewSlidingWindow builds a sliding window with the given duration and
// slide. resultsStore may be nil.
func NewSlidingWindow[T any, K comparable, O any](
	ks func(T) K,
	duration, slide time.Duration,
	combine func([]T) O,
	windowStore store.Store[WindowKey[K], WindowState[T]],
	resultsStore store.Store[WindowKey[K], O],
) *SlidingWindow[T, K, O] {
	return &SlidingWindow[T, K, O]{
		ks:           ks,
		duration:     duration,
		slide:        slide,
		combine:      combine,
		windowStore:  windowStore,
		resultsStore: resultsStore,
		now:          time.Now,
		stopCh:       make(chan struct{}),
	}
}

func (w *SlidingWindow[T, K, O]) SetNext(next engine.Operator[O]) error {
	w.next = next
	return nil
}

func (w *SlidingWindow[T, K, O]) SetTelemetryProvider(p engine.TelemetryProvider) { w.telemetry = p }

func (w *SlidingWindow[T, K, O]) GetStateStores() []engine.StateStoreHandle {
	handles := []engine.StateStoreHandle{w.windowStore}
	if w.resultsStore != nil {
		handles = append(handles, w.resultsStore)
	}
	return handles
}

func (w *SlidingWindow[T, K, O]) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.tick(ctx)
}

func (w *SlidingWindow[T, K, O]) Stop() {
	close(w.stopCh)
	w.wg.Wait()
}

func (w *SlidingWindow[T, K, O]) tick(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.slide)
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

func (w *SlidingWindow[T, K, O]) sweep(ctx context.Context) {
	keys, err := w.windowStore.GetKeys(ctx)
	if err != nil {
		return
	}
	now := w.now()
	for _, wk := range keys {
		select {
		case <-w.stopCh:
			return
		default:
		}
		w.closeIfExpired(ctx, wk, now)
	}
}

func (w *SlidingWindow[T, K, O]) closeIfExpired(ctx context.Context, wk WindowKey[K], now time.Time) {
	w.mu.Lock()
	state, ok, err := w.windowStore.Get(ctx, wk)
	if err != nil || !ok {
		w.mu.Unlock()
		return
	}
	if now.Before(wk.WindowStartUTC.Add(w.duration)) {
		w.mu.Unlock()
		return
	}
	out, panicked := safeCombine(w.combine, state.Events)
	if panicked != nil {
		w.mu.Unlock()
		return
	}
	if err := w.windowStore.Remove(ctx, wk); err != nil {
		w.mu.Unlock()
		return
	}
	if w.resultsStore != nil {
		_ = w.resultsStore.Put(ctx, wk, out)
	}
	w.mu.Unlock()

	if w.next != nil {
		_ = w.next.Process(ctx, out)
	}
}

// activeStarts returns every window start s such that s <= t < s+D and
// s = floor(t,S) - k*S for some k >= 0.
func (w *SlidingWindow[T, K, O]) activeStarts(t time.Time) []time.Time {
	aligned := floorTo(t, w.slide)
	count := int(w.duration / w.slide)
	if w.duration%w.slide != 0 {
		count++
	}
	starts := make([]time.Time, 0, count)
	for k := 0; k < count; k++ {
		s := aligned.Add(-time.Duration(k) * w.slide)
		if !s.After(t) && t.Before(s.Add(w.duration)) {
			starts = append(starts, s)
		}
	}
	return starts
}

func (w *SlidingWindow[T, K, O]) Process(ctx context.Context, v T) error {
	key := w.ks(v)
	t := w.now()
	starts := w.activeStarts(t)

	w.mu.Lock()
	for _, s := range starts {
		wk := WindowKey[K]{Key: key, WindowStartUTC: s}
		state, ok, err := w.windowStore.Get(ctx, wk)
		if err != nil {
			w.mu.Unlock()
			return fmt.Errorf("sliding window %s: get: %w", w.windowStore.Name(), err)
		}
		if !ok {
			state = WindowState[T]{WindowStartUTC: s}
		}
		state.Events = append(state.Events, v)
		if err := w.windowStore.Put(ctx, wk, state); err != nil {
			w.mu.Unlock()
			return fmt.Errorf("sliding window %s: put: %w", w.windowStore.Name(), err)
		}
	}
	w.mu.Unlock()
	return nil
}
