package window

import (
	"context"
	"sync"
	"time"

	"github.com/ILLUVRSE/streamkit/internal/engine"
	"github.com/ILLUVRSE/streamkit/internal/store"
)

// GlobalCheckpointKey is the fixed key under which a GlobalTumblingWindow
// persists its boundaries, so recovery resumes them across restarts.
const GlobalCheckpointKey = "global_tumbling_window_checkpoint"

// GlobalCheckpoint is the persisted {use_event_time, max_event_time,
// current_start, current_end} tuple a GlobalTumblingWindow saves so it can
// resume across restarts.
type GlobalCheckpoint struct {
	UseEventTime bool
	MaxEventTime time.Time
	CurrentStart time.Time
	CurrentEnd   time.Time
}

// GlobalTumblingWindow is the parameterless (single implicit key) tumbling
// window. It supports processing-time (wall clock vs boundaries) and
// event-time (extracted event time vs a watermark = max_event_time -
// allowed_lateness) modes. A background ticker closes expired windows
// even when no events arrive.
type GlobalTumblingWindow[T any, O any] struct {
	duration        time.Duration
	combine         func([]T) O
	useEventTime    bool
	eventTimeFn     func(T) time.Time
	allowedLateness time.Duration

	checkpointStore store.Store[string, GlobalCheckpoint] // optional
	auditStore      store.Store[GlobalWindowKey, O]        // optional

	now func() time.Time

	mu           sync.Mutex
	opened       bool
	currentStart time.Time
	currentEnd   time.Time
	maxEventTime time.Time
	events       []T

	next engine.Operator[O]

	stopCh    chan struct{}
	wg        sync.WaitGroup
	telemetry engine.TelemetryProvider
}

// NewGlobalTumblingWindow builds a processing-time global tumbling window.
// Call WithEventTime to switch to event-time mode.
func NewGlobalTumblingWindow[T any, O any](duration time.Duration, combine func([]T) O) *GlobalTumblingWindow[T, O] {
	return &GlobalTumblingWindow[T, O]{
		duration: duration,
		combine:  combine,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// WithEventTime switches the window to event-time mode: eventTimeFn
// extracts the record's timestamp and allowedLateness sets the watermark
// offset (watermark = max_event_time - allowedLateness).
func (w *GlobalTumblingWindow[T, O]) WithEventTime(eventTimeFn func(T) time.Time, allowedLateness time.Duration) *GlobalTumblingWindow[T, O] {
	w.useEventTime = true
	w.eventTimeFn = eventTimeFn
	w.allowedLateness = allowedLateness
	return w
}

// WithCheckpointStore enables boundary persistence under GlobalCheckpointKey.
func (w *GlobalTumblingWindow[T, O]) WithCheckpointStore(s store.Store[string, GlobalCheckpoint]) *GlobalTumblingWindow[T, O] {
	w.checkpointStore = s
	return w
}

// WithAuditStore enables persisting final windows keyed by (start,end)
// after emission.
func (w *GlobalTumblingWindow[T, O]) WithAuditStore(s store.Store[GlobalWindowKey, O]) *GlobalTumblingWindow[T, O] {
	w.auditStore = s
	return w
}

func (w *GlobalTumblingWindow[T, O]) SetNext(next engine.Operator[O]) error {
	w.next = next
	return nil
}

func (w *GlobalTumblingWindow[T, O]) SetTelemetryProvider(p engine.TelemetryProvider) { w.telemetry = p }

func (w *GlobalTumblingWindow[T, O]) GetStateStores() []engine.StateStoreHandle {
	var handles []engine.StateStoreHandle
	if w.checkpointStore != nil {
		handles = append(handles, w.checkpointStore)
	}
	if w.auditStore != nil {
		handles = append(handles, w.auditStore)
	}
	return handles
}

// Start restores boundaries from the checkpoint store (if configured) and
// arms the background ticker.
func (w *GlobalTumblingWindow[T, O]) Start(ctx context.Context) {
	if w.checkpointStore != nil {
		if cp, ok, err := w.checkpointStore.Get(ctx, GlobalCheckpointKey); err == nil && ok {
			w.mu.Lock()
			w.useEventTime = cp.UseEventTime
			w.maxEventTime = cp.MaxEventTime
			w.currentStart = cp.CurrentStart
			w.currentEnd = cp.CurrentEnd
			w.opened = !cp.CurrentStart.IsZero()
			w.mu.Unlock()
		}
	}
	w.wg.Add(1)
	go w.tick(ctx)
}

func (w *GlobalTumblingWindow[T, O]) Stop() {
	close(w.stopCh)
	w.wg.Wait()
}

func (w *GlobalTumblingWindow[T, O]) tick(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.duration)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.rollAndEmit(ctx)
		}
	}
}

func (w *GlobalTumblingWindow[T, O]) openLocked(start time.Time) {
	w.currentStart = floorTo(start, w.duration)
	w.currentEnd = w.currentStart.Add(w.duration)
	w.events = nil
	w.opened = true
}

// safeToCloseLocked reports whether the current window may be closed: in
// processing-time mode, wall clock has reached the boundary; in
// event-time mode, the watermark (max_event_time - allowed_lateness) has.
func (w *GlobalTumblingWindow[T, O]) safeToCloseLocked() bool {
	if !w.opened {
		return false
	}
	if w.useEventTime {
		watermark := w.maxEventTime.Add(-w.allowedLateness)
		return !watermark.Before(w.currentEnd)
	}
	return !w.now().Before(w.currentEnd)
}

// rollAndEmit closes every window that's safe to close (looping for
// forward clock/watermark jumps that skip several boundaries at once),
// emitting only the non-empty ones, per the "never emit empty batches"
// invariant.
func (w *GlobalTumblingWindow[T, O]) rollAndEmit(ctx context.Context) {
	var toEmit []closedWindow[T, O]

	w.mu.Lock()
	for w.safeToCloseLocked() {
		if len(w.events) > 0 {
			out, panicked := safeCombine(w.combine, w.events)
			if panicked != nil {
				break // combine failure: state preserved, next tick retries
			}
			toEmit = append(toEmit, closedWindow[T, O]{start: w.currentStart, end: w.currentEnd, out: out})
		}
		w.openLocked(w.currentEnd)
	}
	w.persistCheckpointLocked(ctx)
	w.mu.Unlock()

	for _, cw := range toEmit {
		if w.auditStore != nil {
			_ = w.auditStore.Put(ctx, GlobalWindowKey{WindowStartUTC: cw.start, WindowEndUTC: cw.end}, cw.out)
		}
		if w.next != nil {
			_ = w.next.Process(ctx, cw.out)
		}
	}
}

type closedWindow[T, O any] struct {
	start, end time.Time
	out        O
}

func (w *GlobalTumblingWindow[T, O]) persistCheckpointLocked(ctx context.Context) {
	if w.checkpointStore == nil {
		return
	}
	_ = w.checkpointStore.Put(ctx, GlobalCheckpointKey, GlobalCheckpoint{
		UseEventTime: w.useEventTime,
		MaxEventTime: w.maxEventTime,
		CurrentStart: w.currentStart,
		CurrentEnd:   w.currentEnd,
	})
}

func (w *GlobalTumblingWindow[T, O]) Process(ctx context.Context, v T) error {
	w.mu.Lock()

	var t time.Time
	if w.useEventTime {
		t = w.eventTimeFn(v)
		if t.After(w.maxEventTime) {
			w.maxEventTime = t
		}
	} else {
		t = w.now()
	}

	if !w.opened {
		w.openLocked(t)
	}

	var toEmit []closedWindow[T, O]
	for w.safeToCloseLocked() {
		if len(w.events) > 0 {
			out, panicked := safeCombine(w.combine, w.events)
			if panicked != nil {
				w.mu.Unlock()
				panic(panicked)
			}
			toEmit = append(toEmit, closedWindow[T, O]{start: w.currentStart, end: w.currentEnd, out: out})
		}
		w.openLocked(w.currentEnd)
	}

	w.events = append(w.events, v)
	w.persistCheckpointLocked(ctx)
	w.mu.Unlock()

	for _, cw := range toEmit {
		if w.auditStore != nil {
			_ = w.auditStore.Put(ctx, GlobalWindowKey{WindowStartUTC: cw.start, WindowEndUTC: cw.end}, cw.out)
		}
		if w.next != nil {
			if err := w.next.Process(ctx, cw.out); err != nil {
				return err
			}
		}
	}
	return nil
}
