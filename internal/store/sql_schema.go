package store

import (
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
)

// typeDescriptor is built once per value type by walking its fields with
// reflect, per the "explicit schema descriptors" design note: a systems
// re-implementation would generate this list once (code-gen or caller
// registration) instead of reflecting on every call.
type typeDescriptor struct {
	// isSliceValue is true when V itself is a sequence-of-record (the value
	// type is a slice), in which case there are no scalar columns and the
	// whole value lives in the "Child" child table.
	isSliceValue bool
	elemType     reflect.Type // element type when isSliceValue

	scalarFields []fieldDescriptor
	childFields  []childFieldDescriptor
}

// fieldDescriptor describes one scalar struct field mapped to a main-table
// column.
type fieldDescriptor struct {
	Name    string // struct field name, used verbatim as column name
	Index   int
	SQLKind sqlKind
}

// childFieldDescriptor describes a sequence-of-record struct field mapped
// to a child table "<table>_<field>".
type childFieldDescriptor struct {
	Name      string
	Index     int
	ElemType  reflect.Type
	ElemDesc  []fieldDescriptor // scalar columns of the element struct
}

type sqlKind int

const (
	sqlKindInt sqlKind = iota
	sqlKindLong
	sqlKindBool
	sqlKindFloat
	sqlKindDecimal
	sqlKindDateTime
	sqlKindUUID
	sqlKindDuration
	sqlKindString
)

var descriptorCache sync.Map // reflect.Type -> *typeDescriptor

var (
	timeType     = reflect.TypeOf(time.Time{})
	uuidType     = reflect.TypeOf(uuid.UUID{})
	durationType = reflect.TypeOf(time.Duration(0))
)

// describeType returns the cached (or freshly built) descriptor for t,
// the Store's value type. For a slice type it sets isSliceValue and
// describes the slice's element struct.
func describeType(t reflect.Type) *typeDescriptor {
	if cached, ok := descriptorCache.Load(t); ok {
		return cached.(*typeDescriptor)
	}

	d := &typeDescriptor{}
	if t.Kind() == reflect.Slice {
		d.isSliceValue = true
		d.elemType = t.Elem()
		d.ElemDescPopulate()
	} else {
		d.scalarFields, d.childFields = walkStruct(t)
	}

	actual, _ := descriptorCache.LoadOrStore(t, d)
	return actual.(*typeDescriptor)
}

// ElemDescPopulate fills scalarFields for a slice-valued type's element.
func (d *typeDescriptor) ElemDescPopulate() {
	scalars, _ := walkStruct(d.elemType)
	d.scalarFields = scalars
}

// walkStruct classifies every exported field of t into either a scalar
// column or a child-table sequence field.
func walkStruct(t reflect.Type) ([]fieldDescriptor, []childFieldDescriptor) {
	var scalars []fieldDescriptor
	var children []childFieldDescriptor

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" { // unexported
			continue
		}
		ft := f.Type

		if ft.Kind() == reflect.Slice && ft.Elem().Kind() == reflect.Struct && ft.Elem() != timeType {
			elemScalars, _ := walkStruct(ft.Elem())
			children = append(children, childFieldDescriptor{
				Name:     f.Name,
				Index:    i,
				ElemType: ft.Elem(),
				ElemDesc: elemScalars,
			})
			continue
		}

		kind, ok := classifyScalar(ft)
		if !ok {
			continue // unsupported field type is skipped rather than failing the whole type
		}
		scalars = append(scalars, fieldDescriptor{Name: f.Name, Index: i, SQLKind: kind})
	}
	return scalars, children
}

func classifyScalar(t reflect.Type) (sqlKind, bool) {
	switch {
	case t == timeType:
		return sqlKindDateTime, true
	case t == uuidType:
		return sqlKindUUID, true
	case t == durationType:
		return sqlKindDuration, true
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return sqlKindInt, true
	case reflect.Int64, reflect.Uint64:
		return sqlKindLong, true
	case reflect.Bool:
		return sqlKindBool, true
	case reflect.Float32:
		return sqlKindFloat, true
	case reflect.Float64:
		return sqlKindDecimal, true
	case reflect.String:
		return sqlKindString, true
	default:
		return 0, false
	}
}

// columnType renders the SQL column type for a scalar kind under dialect d.
func (d Dialect) columnType(k sqlKind) string {
	switch k {
	case sqlKindInt:
		return d.IntType
	case sqlKindLong:
		return d.LongType
	case sqlKindBool:
		return d.BoolType
	case sqlKindFloat:
		return d.FloatType
	case sqlKindDecimal:
		return d.DecimalType
	case sqlKindDateTime:
		return d.DateTimeType
	case sqlKindUUID:
		return d.UUIDType
	case sqlKindDuration:
		return d.DurationType
	default:
		return d.StringType
	}
}
