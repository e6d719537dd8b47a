// Package operators implements the concrete pipeline nodes: filter, map,
// flat-map, group-by, aggregate, stream-table join, fork/branch, sink, and
// source adapters. Each is pure with respect to state except where the
// contract says otherwise (group/aggregate).
package operators

import (
	"context"

	"github.com/ILLUVRSE/streamkit/internal/engine"
)

// Filter forwards v iff pred(v) is true.
type Filter[T any] struct {
	pred      func(T) bool
	next      engine.Operator[T]
	telemetry engine.TelemetryProvider
}

// NewFilter builds a Filter operator.
func NewFilter[T any](pred func(T) bool) *Filter[T] {
	return &Filter[T]{pred: pred}
}

func (f *Filter[T]) SetNext(next engine.Operator[T]) error {
	f.next = next
	return nil
}

func (f *Filter[T]) SetTelemetryProvider(p engine.TelemetryProvider) { f.telemetry = p }

func (f *Filter[T]) Process(ctx context.Context, v T) error {
	if !f.pred(v) {
		return nil
	}
	if f.next == nil {
		return nil
	}
	return f.next.Process(ctx, v)
}

// Map forwards fn(v) exactly once per input.
type Map[T, U any] struct {
	fn        func(T) U
	next      engine.Operator[U]
	telemetry engine.TelemetryProvider
}

// NewMap builds a Map operator.
func NewMap[T, U any](fn func(T) U) *Map[T, U] {
	return &Map[T, U]{fn: fn}
}

func (m *Map[T, U]) SetNext(next engine.Operator[U]) error {
	m.next = next
	return nil
}

func (m *Map[T, U]) SetTelemetryProvider(p engine.TelemetryProvider) { m.telemetry = p }

func (m *Map[T, U]) Process(ctx context.Context, v T) error {
	out := m.fn(v)
	if m.next == nil {
		return nil
	}
	return m.next.Process(ctx, out)
}

// FlatMap forwards each element of fn(v) in order; an empty or nil
// sequence emits nothing.
type FlatMap[T, U any] struct {
	fn        func(T) []U
	next      engine.Operator[U]
	telemetry engine.TelemetryProvider
}

// NewFlatMap builds a FlatMap operator.
func NewFlatMap[T, U any](fn func(T) []U) *FlatMap[T, U] {
	return &FlatMap[T, U]{fn: fn}
}

func (fm *FlatMap[T, U]) SetNext(next engine.Operator[U]) error {
	fm.next = next
	return nil
}

func (fm *FlatMap[T, U]) SetTelemetryProvider(p engine.TelemetryProvider) { fm.telemetry = p }

func (fm *FlatMap[T, U]) Process(ctx context.Context, v T) error {
	seq := fm.fn(v)
	if fm.next == nil {
		return nil
	}
	for _, item := range seq {
		if err := fm.next.Process(ctx, item); err != nil {
			return err
		}
	}
	return nil
}
