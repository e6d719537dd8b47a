package store

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type lineItem struct {
	SKU string
	Qty int
}

type invoice struct {
	Total     float64
	IssuedAt  time.Time
	TraceID   uuid.UUID
	Lifetime  time.Duration
	note      string // unexported, must be skipped
	LineItems []lineItem
}

func TestDescribeTypeClassifiesScalarAndChildFields(t *testing.T) {
	d := describeType(reflect.TypeOf(invoice{}))

	names := map[string]sqlKind{}
	for _, f := range d.scalarFields {
		names[f.Name] = f.SQLKind
	}
	require.Equal(t, sqlKindDecimal, names["Total"])
	require.Equal(t, sqlKindDateTime, names["IssuedAt"])
	require.Equal(t, sqlKindUUID, names["TraceID"])
	require.Equal(t, sqlKindDuration, names["Lifetime"])
	require.NotContains(t, names, "note")

	require.Len(t, d.childFields, 1)
	require.Equal(t, "LineItems", d.childFields[0].Name)
	require.Equal(t, reflect.TypeOf(lineItem{}), d.childFields[0].ElemType)
	require.Len(t, d.childFields[0].ElemDesc, 2)
}

func TestDescribeTypeIsCachedPerType(t *testing.T) {
	first := describeType(reflect.TypeOf(invoice{}))
	second := describeType(reflect.TypeOf(invoice{}))
	require.Same(t, first, second)
}

func TestDescribeTypeHandlesSliceValuedTypes(t *testing.T) {
	d := describeType(reflect.TypeOf([]lineItem{}))
	require.True(t, d.isSliceValue)
	require.Equal(t, reflect.TypeOf(lineItem{}), d.elemType)
	require.Len(t, d.scalarFields, 2)
}

func TestClassifyScalarUnsupportedTypeIsSkipped(t *testing.T) {
	_, ok := classifyScalar(reflect.TypeOf(map[string]int{}))
	require.False(t, ok)
}

func TestDialectColumnTypeMapsEveryKind(t *testing.T) {
	for _, k := range []sqlKind{
		sqlKindInt, sqlKindLong, sqlKindBool, sqlKindFloat,
		sqlKindDecimal, sqlKindDateTime, sqlKindUUID, sqlKindDuration, sqlKindString,
	} {
		require.NotEmpty(t, PostgresDialect.columnType(k))
	}
}
