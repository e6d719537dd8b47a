package operators

import (
	"context"

	"github.com/ILLUVRSE/streamkit/internal/engine"
)

// Fork holds a mapping {branch_name -> branch_head_operator} with unique
// names. Process dispatches v to each branch in insertion order. Forks do
// not back-pressure: a slow branch slows all branches. SetNext on a fork
// always fails — a branch is a sub-pipeline built by the same builder,
// terminating in a sink, never another fork.
type Fork[T any] struct {
	names     []string
	branches  map[string]engine.Operator[T]
	telemetry engine.TelemetryProvider
}

// NewFork builds an empty Fork.
func NewFork[T any]() *Fork[T] {
	return &Fork[T]{branches: make(map[string]engine.Operator[T])}
}

// AddBranch registers a named branch head. Re-registering an existing name
// is an illegal configuration.
func (f *Fork[T]) AddBranch(name string, head engine.Operator[T]) error {
	if _, exists := f.branches[name]; exists {
		return engine.NewIllegalConfigurationError("duplicate branch name: " + name)
	}
	f.names = append(f.names, name)
	f.branches[name] = head
	return nil
}

// Branches returns the registered branch names in insertion order.
func (f *Fork[T]) Branches() []string {
	return append([]string(nil), f.names...)
}

func (f *Fork[T]) SetNext(engine.Operator[T]) error {
	return engine.NewIllegalConfigurationError("SetNext called on a fork operator")
}

func (f *Fork[T]) SetTelemetryProvider(p engine.TelemetryProvider) { f.telemetry = p }

func (f *Fork[T]) Process(ctx context.Context, v T) error {
	for _, name := range f.names {
		if err := f.branches[name].Process(ctx, v); err != nil {
			return err
		}
	}
	return nil
}
