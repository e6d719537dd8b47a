// Package contract defines the CDC record shape, the Source lifecycle
// every capture implementation (relational, logical, docstream) follows,
// the generic worker loop (dedup, checkpointing, back-off), and the
// Kafka/S3 sinks a captured stream forwards into.
package contract

import "time"

// Operation is the change kind a capture record represents.
type Operation string

const (
	OperationInsert      Operation = "Insert"
	OperationUpdate      Operation = "Update"
	OperationDelete      Operation = "Delete"
	OperationInitialLoad Operation = "InitialLoad"
	OperationUnknown     Operation = "Unknown"
)

// Record is the source-agnostic change event every CDC implementation
// produces: an operation, the row/document data as a flat map, and the
// opaque position the source can resume from after this record.
type Record struct {
	SourceID  string
	Operation Operation
	Data      map[string]any
	Position  string // opaque, source-specific encoding (hex LSN, text LSN, resume token JSON)
	Ts        time.Time
}

// TypedRecord pairs a Record with a value decoded from its Data, for
// pipelines that want a concrete Go type rather than map[string]any.
type TypedRecord[T any] struct {
	Record
	Value T
}

// Decode builds a TypedRecord by running decode over r.Data.
func Decode[T any](r Record, decode func(map[string]any) (T, error)) (TypedRecord[T], error) {
	v, err := decode(r.Data)
	if err != nil {
		return TypedRecord[T]{}, err
	}
	return TypedRecord[T]{Record: r, Value: v}, nil
}
