// Package builder implements the fluent StreamBuilder surface:
// .Stream, .Filter, .Map, .FlatMap, .GroupBy, .Aggregate, the three
// window operators, .Join, .AddBranch, .Sink and .Build.
//
// Go methods cannot introduce type parameters beyond their receiver's, so
// steps that change the element type (Map, FlatMap, GroupBy, Aggregate,
// the window operators, Join) are package-level generic functions taking
// the builder as their first argument rather than builder methods. Steps
// that preserve the element type (Filter, Sink, AddBranch) remain
// methods, so a chain like b.Filter(...).Filter(...) still reads fluently.
package builder

import (
	"context"
	"time"

	"github.com/ILLUVRSE/streamkit/internal/engine"
	"github.com/ILLUVRSE/streamkit/internal/engine/operators"
	"github.com/ILLUVRSE/streamkit/internal/engine/runtime"
	"github.com/ILLUVRSE/streamkit/internal/engine/window"
	"github.com/ILLUVRSE/streamkit/internal/store"
)

// root holds the builder state that is independent of the current
// element type: the eventual stream name, source wiring, and the
// background workers (window timers, source adapter) accumulated as
// operators are attached.
type root struct {
	name      string
	hasSource bool
	startFn   func(context.Context) error
	stopFn    func() error

	backgroundStart []func(context.Context)
	backgroundStop  []func()

	branchNamesFn func() []string
}

// passthroughHead is the builder's insertion point when no explicit
// source is configured: runtime.Stream.Emit calls Process on it directly.
type passthroughHead[T any] struct {
	next engine.Operator[T]
}

func (p *passthroughHead[T]) SetNext(next engine.Operator[T]) error {
	p.next = next
	return nil
}

func (p *passthroughHead[T]) SetTelemetryProvider(engine.TelemetryProvider) {}

func (p *passthroughHead[T]) Process(ctx context.Context, v T) error {
	if p.next == nil {
		return nil
	}
	return p.next.Process(ctx, v)
}

// StreamBuilder is the fluent pipeline-construction handle, parameterised
// on the element type flowing through the current insertion point.
type StreamBuilder[T any] struct {
	root *root

	// attach wires op as the next stage after the current insertion
	// point and advances the insertion point to op.
	attach func(op engine.Operator[T]) error

	emitHead *passthroughHead[T] // non-nil only at the root of a source-less builder

	fork *operators.Fork[T] // non-nil once AddBranch has been called at least once
}

// NewStream starts a fluent pipeline with no explicit source; values are
// pushed in later via runtime.Stream.Emit.
func NewStream[T any](name string) *StreamBuilder[T] {
	head := &passthroughHead[T]{}
	return &StreamBuilder[T]{
		root:     &root{name: name},
		attach:   head.SetNext,
		emitHead: head,
	}
}

// Stream starts a fluent pipeline driven by src; the stream's Start method
// begins src's background emission.
func Stream[T any](name string, src engine.Source[T]) *StreamBuilder[T] {
	adapter := operators.NewSourceAdapter[T](src)
	r := &root{
		name:      name,
		hasSource: true,
		startFn:   adapter.Start,
		stopFn:    adapter.Stop,
	}
	return &StreamBuilder[T]{
		root:   r,
		attach: adapter.SetNext,
	}
}

// Filter keeps values for which pred returns true.
func (b *StreamBuilder[T]) Filter(pred func(T) bool) *StreamBuilder[T] {
	f := operators.NewFilter(pred)
	_ = b.attach(f)
	return &StreamBuilder[T]{root: b.root, attach: f.SetNext}
}

// Sink wires fn as the pipeline's terminal operator.
func (b *StreamBuilder[T]) Sink(fn func(context.Context, T) error) *StreamBuilder[T] {
	return b.SinkOperator(operators.NewSinkFunc(fn))
}

// SinkOperator wires a pre-built terminal operator (e.g. CollectorSink, a
// CDC KafkaSink) as the pipeline's end.
func (b *StreamBuilder[T]) SinkOperator(op engine.Operator[T]) *StreamBuilder[T] {
	_ = b.attach(op)
	return b
}

// AddBranch registers a named branch that receives every value reaching
// this point. configure builds the branch's own sub-pipeline, which must
// terminate in a sink (never another fork, never Build). Repeated calls
// add further branches off the same fork.
func (b *StreamBuilder[T]) AddBranch(name string, configure func(*StreamBuilder[T])) *StreamBuilder[T] {
	if b.fork == nil {
		b.fork = operators.NewFork[T]()
		_ = b.attach(b.fork)
		b.root.branchNamesFn = b.fork.Branches
		b.attach = func(engine.Operator[T]) error {
			return engine.NewIllegalConfigurationError("cannot attach further operators to a builder after AddBranch; start a new branch instead")
		}
	}
	branchHead := &passthroughHead[T]{}
	_ = b.fork.AddBranch(name, branchHead)
	sub := &StreamBuilder[T]{root: b.root, attach: branchHead.SetNext}
	configure(sub)
	return b
}

// Build finalizes the pipeline into a runtime.Stream.
func (b *StreamBuilder[T]) Build() *runtime.Stream[T] {
	return runtime.NewStream[T](
		b.root.name,
		b.root.hasSource,
		b.root.startFn,
		b.root.stopFn,
		b.emitHead,
		b.root.backgroundStart,
		b.root.backgroundStop,
		b.root.branchNamesFn,
	)
}

// Map transforms each T into a U.
func Map[T, U any](b *StreamBuilder[T], fn func(T) U) *StreamBuilder[U] {
	m := operators.NewMap(fn)
	_ = b.attach(m)
	return &StreamBuilder[U]{root: b.root, attach: m.SetNext}
}

// FlatMap transforms each T into zero or more U, forwarded in order.
func FlatMap[T, U any](b *StreamBuilder[T], fn func(T) []U) *StreamBuilder[U] {
	fm := operators.NewFlatMap(fn)
	_ = b.attach(fm)
	return &StreamBuilder[U]{root: b.root, attach: fm.SetNext}
}

// GroupBy appends each value to the per-key list in s and forwards the
// updated (key, list) pair.
func GroupBy[T any, K comparable](b *StreamBuilder[T], ks func(T) K, s store.Store[K, []T]) *StreamBuilder[operators.KV[K, []T]] {
	g := operators.NewGroupByKey(ks, s)
	_ = b.attach(g)
	return &StreamBuilder[operators.KV[K, []T]]{root: b.root, attach: g.SetNext}
}

// GroupBySilently mutates s the same way GroupBy does but forwards the
// original T instead of the accumulated list.
func GroupBySilently[T any, K comparable](b *StreamBuilder[T], ks func(T) K, s store.Store[K, []T]) *StreamBuilder[T] {
	g := operators.NewGroupBySilently(ks, s)
	_ = b.attach(g)
	return &StreamBuilder[T]{root: b.root, attach: g.SetNextRaw}
}

// Aggregate folds each value into the per-key accumulator in s and
// forwards the updated (key, accumulator) pair.
func Aggregate[T, A any, K comparable](b *StreamBuilder[T], ks func(T) K, agg func(A, T) A, s store.Store[K, A]) *StreamBuilder[operators.KV[K, A]] {
	a := operators.NewAggregateByKey(ks, agg, s)
	_ = b.attach(a)
	return &StreamBuilder[operators.KV[K, A]]{root: b.root, attach: a.SetNext}
}

// AggregateSilently mutates s the same way Aggregate does but forwards
// the original T instead of the accumulator.
func AggregateSilently[T, A any, K comparable](b *StreamBuilder[T], ks func(T) K, agg func(A, T) A, s store.Store[K, A]) *StreamBuilder[T] {
	a := operators.NewAggregateSilently(ks, agg, s)
	_ = b.attach(a)
	return &StreamBuilder[T]{root: b.root, attach: a.SetNextRaw}
}

// Join performs a stream-table join against s, dropping inputs whose key
// is absent from s.
func Join[L, R any, K comparable, O any](b *StreamBuilder[L], s store.Store[K, R], ks func(L) K, joinFn func(L, R) O) *StreamBuilder[O] {
	j := operators.NewJoin(s, ks, joinFn)
	_ = b.attach(j)
	return &StreamBuilder[O]{root: b.root, attach: j.SetNext}
}

type windowOpLifecycle interface {
	Start(context.Context)
	Stop()
}

func (r *root) registerLifecycle(w windowOpLifecycle) {
	r.backgroundStart = append(r.backgroundStart, w.Start)
	r.backgroundStop = append(r.backgroundStop, w.Stop)
}

// TumblingWindow folds events per key over fixed, non-overlapping
// intervals of d.
func TumblingWindow[T any, K comparable, O any](
	b *StreamBuilder[T],
	ks func(T) K,
	d time.Duration,
	combine func([]T) O,
	windowStore store.Store[K, window.WindowState[T]],
	resultsStore store.Store[window.WindowKey[K], O],
) *StreamBuilder[O] {
	w := window.NewTumblingWindow(ks, d, combine, windowStore, resultsStore)
	_ = b.attach(w)
	b.root.registerLifecycle(w)
	return &StreamBuilder[O]{root: b.root, attach: w.SetNext}
}

// SlidingWindow folds events per key over overlapping windows of
// duration d sliding by s.
func SlidingWindow[T any, K comparable, O any](
	b *StreamBuilder[T],
	ks func(T) K,
	d, s time.Duration,
	combine func([]T) O,
	windowStore store.Store[window.WindowKey[K], window.WindowState[T]],
	resultsStore store.Store[window.WindowKey[K], O],
) *StreamBuilder[O] {
	w := window.NewSlidingWindow(ks, d, s, combine, windowStore, resultsStore)
	_ = b.attach(w)
	b.root.registerLifecycle(w)
	return &StreamBuilder[O]{root: b.root, attach: w.SetNext}
}

// SessionWindow folds events per key into sessions separated by at least
// gap of inactivity.
func SessionWindow[T any, K comparable, O any](
	b *StreamBuilder[T],
	ks func(T) K,
	gap time.Duration,
	combine func([]T) O,
	sessionStore store.Store[K, window.SessionState[T]],
	resultsStore store.Store[window.WindowKey[K], O],
) *StreamBuilder[O] {
	w := window.NewSessionWindow(ks, gap, combine, sessionStore, resultsStore)
	_ = b.attach(w)
	b.root.registerLifecycle(w)
	return &StreamBuilder[O]{root: b.root, attach: w.SetNext}
}

// GlobalTumblingWindowOption configures the parameterless tumbling window
// built by GlobalTumblingWindow (event-time mode, checkpointing, audit
// persistence).
type GlobalTumblingWindowOption[T any, O any] func(*window.GlobalTumblingWindow[T, O])

// WithEventTime switches the global window to event-time mode.
func WithEventTime[T any, O any](eventTimeFn func(T) time.Time, allowedLateness time.Duration) GlobalTumblingWindowOption[T, O] {
	return func(w *window.GlobalTumblingWindow[T, O]) { w.WithEventTime(eventTimeFn, allowedLateness) }
}

// WithCheckpointStore persists the global window's boundaries so a
// restarted process resumes them.
func WithCheckpointStore[T any, O any](s store.Store[string, window.GlobalCheckpoint]) GlobalTumblingWindowOption[T, O] {
	return func(w *window.GlobalTumblingWindow[T, O]) { w.WithCheckpointStore(s) }
}

// WithAuditStore persists every closed window keyed by (start, end).
func WithAuditStore[T any, O any](s store.Store[window.GlobalWindowKey, O]) GlobalTumblingWindowOption[T, O] {
	return func(w *window.GlobalTumblingWindow[T, O]) { w.WithAuditStore(s) }
}

// GlobalTumblingWindow folds every event (no key) over fixed,
// non-overlapping intervals of d.
func GlobalTumblingWindow[T any, O any](
	b *StreamBuilder[T],
	d time.Duration,
	combine func([]T) O,
	opts ...GlobalTumblingWindowOption[T, O],
) *StreamBuilder[O] {
	w := window.NewGlobalTumblingWindow(d, combine)
	for _, opt := range opts {
		opt(w)
	}
	_ = b.attach(w)
	b.root.registerLifecycle(w)
	return &StreamBuilder[O]{root: b.root, attach: w.SetNext}
}
