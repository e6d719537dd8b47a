package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrSchemaMissing is returned when the backing table lacks a column the
// value type requires and AllowSchemaEvolution is disabled.
var ErrSchemaMissing = errors.New("schema missing")

// SQLObjectStore stores a user-typed object by reflecting its fields:
// scalar fields become columns on the main table (one row per key);
// sequence-of-record fields become child tables "<table>_<field>" with
// (key, item_index, …scalar columns…); when V itself is a sequence-of-record,
// the main table holds only the key and all items live in "<table>_Child".
//
// put(k,v) upserts the main row, then deletes and re-inserts children in
// order. get(k) joins main and child tables and rehydrates the object.
type SQLObjectStore[V any] struct {
	db      *sql.DB
	name    string
	table   string
	dialect Dialect

	// AllowSchemaEvolution controls whether ALTER TABLE ADD COLUMN runs
	// automatically when a column is missing. When false, a missing column
	// surfaces as ErrSchemaMissing instead.
	AllowSchemaEvolution bool

	desc *typeDescriptor
}

// NewSQLObjectStore constructs a SQL-backed object store for table under
// the given dialect. Schema evolution (ALTER-ADD of missing columns) is
// enabled by default.
func NewSQLObjectStore[V any](db *sql.DB, name, table string, dialect Dialect) *SQLObjectStore[V] {
	var zero V
	t := reflect.TypeOf(zero)
	return &SQLObjectStore[V]{
		db:                   db,
		name:                 name,
		table:                table,
		dialect:              dialect,
		AllowSchemaEvolution: true,
		desc:                 describeType(t),
	}
}

func (s *SQLObjectStore[V]) Name() string { return s.name }

// EnsureSchema creates the schema, main table, and child tables if absent;
// when the table exists but lacks a column, it ALTER-ADDs it unless
// AllowSchemaEvolution is false, in which case ErrSchemaMissing is
// returned.
func (s *SQLObjectStore[V]) EnsureSchema(ctx context.Context) error {
	if s.desc.isSliceValue {
		if err := s.ensureMainTable(ctx, nil); err != nil {
			return err
		}
		return s.ensureChildTable(ctx, "Child", describeType(s.desc.elemType).scalarFields)
	}

	if err := s.ensureMainTable(ctx, s.desc.scalarFields); err != nil {
		return err
	}
	for _, cf := range s.desc.childFields {
		if err := s.ensureChildTable(ctx, cf.Name, cf.ElemDesc); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLObjectStore[V]) ensureMainTable(ctx context.Context, scalars []fieldDescriptor) error {
	cols := make([]string, 0, len(scalars)+1)
	cols = append(cols, fmt.Sprintf("key %s PRIMARY KEY", s.dialect.StringType))
	for _, f := range scalars {
		cols = append(cols, fmt.Sprintf("%s %s", f.Name, s.dialect.columnType(f.SQLKind)))
	}
	q := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", s.table, strings.Join(cols, ", "))
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("sql object store %s: ensure main table: %w", s.name, err)
	}

	existing, err := s.existingColumns(ctx, s.table)
	if err != nil {
		return err
	}
	for _, f := range scalars {
		if existing[strings.ToLower(f.Name)] {
			continue
		}
		if !s.AllowSchemaEvolution {
			return fmt.Errorf("sql object store %s: column %s: %w", s.name, f.Name, ErrSchemaMissing)
		}
		alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", s.table, f.Name, s.dialect.columnType(f.SQLKind))
		if _, err := s.db.ExecContext(ctx, alter); err != nil {
			return fmt.Errorf("sql object store %s: alter add %s: %w", s.name, f.Name, err)
		}
	}
	return nil
}

func (s *SQLObjectStore[V]) ensureChildTable(ctx context.Context, field string, scalars []fieldDescriptor) error {
	table := s.childTableName(field)
	cols := []string{
		fmt.Sprintf("key %s NOT NULL", s.dialect.StringType),
		"item_index " + s.dialect.IntType + " NOT NULL",
	}
	for _, f := range scalars {
		cols = append(cols, fmt.Sprintf("%s %s", f.Name, s.dialect.columnType(f.SQLKind)))
	}
	cols = append(cols, "PRIMARY KEY (key, item_index)")
	q := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(cols, ", "))
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("sql object store %s: ensure child table %s: %w", s.name, table, err)
	}

	existing, err := s.existingColumns(ctx, table)
	if err != nil {
		return err
	}
	for _, f := range scalars {
		if existing[strings.ToLower(f.Name)] {
			continue
		}
		if !s.AllowSchemaEvolution {
			return fmt.Errorf("sql object store %s: child column %s.%s: %w", s.name, table, f.Name, ErrSchemaMissing)
		}
		alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, f.Name, s.dialect.columnType(f.SQLKind))
		if _, err := s.db.ExecContext(ctx, alter); err != nil {
			return fmt.Errorf("sql object store %s: alter add %s.%s: %w", s.name, table, f.Name, err)
		}
	}
	return nil
}

func (s *SQLObjectStore[V]) childTableName(field string) string {
	return fmt.Sprintf("%s_%s", s.table, field)
}

// existingColumns queries information_schema for the columns already
// present on table. Backends that don't expose information_schema under
// this name should supply their own Dialect-aware variant; Postgres and
// most SQL-Server-compatible engines understand it.
func (s *SQLObjectStore[V]) existingColumns(ctx context.Context, table string) (map[string]bool, error) {
	q := `SELECT column_name FROM information_schema.columns WHERE table_name = $1`
	if s.dialect.Name != PostgresDialect.Name {
		q = `SELECT column_name FROM information_schema.columns WHERE table_name = @p1`
	}
	rows, err := s.db.QueryContext(ctx, q, table)
	if err != nil {
		return nil, fmt.Errorf("sql object store %s: list columns of %s: %w", s.name, table, err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, fmt.Errorf("sql object store %s: scan column: %w", s.name, err)
		}
		out[strings.ToLower(col)] = true
	}
	return out, rows.Err()
}

// Put upserts the main row for key, then deletes and re-inserts all
// children in order, so repeated puts never accumulate duplicate children.
func (s *SQLObjectStore[V]) Put(ctx context.Context, key string, value V) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sql object store %s: begin put %q: %w", s.name, key, err)
	}
	defer tx.Rollback()

	rv := reflect.ValueOf(value)

	if s.desc.isSliceValue {
		if err := s.upsertKeyOnlyRow(ctx, tx, key); err != nil {
			return err
		}
		if err := s.replaceChildRows(ctx, tx, key, "Child", describeType(s.desc.elemType).scalarFields, rv); err != nil {
			return err
		}
	} else {
		if err := s.upsertMainRow(ctx, tx, key, rv); err != nil {
			return err
		}
		for _, cf := range s.desc.childFields {
			childSlice := rv.Field(cf.Index)
			if err := s.replaceChildRows(ctx, tx, key, cf.Name, cf.ElemDesc, childSlice); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sql object store %s: commit put %q: %w", s.name, key, err)
	}
	return nil
}

func (s *SQLObjectStore[V]) upsertKeyOnlyRow(ctx context.Context, tx *sql.Tx, key string) error {
	q := fmt.Sprintf(`
		INSERT INTO %s (key) VALUES (%s)
		ON CONFLICT (key) DO NOTHING
	`, s.table, s.dialect.Placeholder(1))
	if _, err := tx.ExecContext(ctx, q, key); err != nil {
		return fmt.Errorf("sql object store %s: upsert key %q: %w", s.name, key, err)
	}
	return nil
}

func (s *SQLObjectStore[V]) upsertMainRow(ctx context.Context, tx *sql.Tx, key string, rv reflect.Value) error {
	cols := []string{"key"}
	vals := []any{key}
	for _, f := range s.desc.scalarFields {
		cols = append(cols, f.Name)
		vals = append(vals, rv.Field(f.Index).Interface())
	}

	placeholders := make([]string, len(cols))
	updates := make([]string, 0, len(cols)-1)
	for i, c := range cols {
		placeholders[i] = s.dialect.Placeholder(i + 1)
		if c != "key" {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		}
	}

	q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (key) DO UPDATE SET %s`,
		s.table, strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(updates, ", "))
	if _, err := tx.ExecContext(ctx, q, vals...); err != nil {
		return fmt.Errorf("sql object store %s: upsert main row %q: %w", s.name, key, err)
	}
	return nil
}

func (s *SQLObjectStore[V]) replaceChildRows(ctx context.Context, tx *sql.Tx, key, field string, elemDesc []fieldDescriptor, items reflect.Value) error {
	table := s.childTableName(field)

	del := fmt.Sprintf("DELETE FROM %s WHERE key = %s", table, s.dialect.Placeholder(1))
	if _, err := tx.ExecContext(ctx, del, key); err != nil {
		return fmt.Errorf("sql object store %s: delete children %s: %w", s.name, table, err)
	}

	if items.Kind() != reflect.Slice {
		return nil
	}
	for i := 0; i < items.Len(); i++ {
		item := items.Index(i)
		cols := []string{"key", "item_index"}
		vals := []any{key, i}
		for _, f := range elemDesc {
			cols = append(cols, f.Name)
			vals = append(vals, item.Field(f.Index).Interface())
		}
		placeholders := make([]string, len(cols))
		for j := range cols {
			placeholders[j] = s.dialect.Placeholder(j + 1)
		}
		ins := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
		if _, err := tx.ExecContext(ctx, ins, vals...); err != nil {
			return fmt.Errorf("sql object store %s: insert child %s[%d]: %w", s.name, table, i, err)
		}
	}
	return nil
}

// Get joins the main row and all child tables for key and rehydrates V.
// It returns (zero, false, nil) when the key is absent.
func (s *SQLObjectStore[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V

	if s.desc.isSliceValue {
		var exists bool
		q := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE key = %s)", s.table, s.dialect.Placeholder(1))
		if err := s.db.QueryRowContext(ctx, q, key).Scan(&exists); err != nil {
			return zero, false, fmt.Errorf("sql object store %s: get %q: %w", s.name, key, err)
		}
		if !exists {
			return zero, false, nil
		}
		elemDesc := describeType(s.desc.elemType).scalarFields
		items, err := s.fetchChildRows(ctx, key, "Child", elemDesc, s.desc.elemType)
		if err != nil {
			return zero, false, err
		}
		return items.Interface().(V), true, nil
	}

	rv, ok, err := s.fetchMainRow(ctx, key)
	if err != nil || !ok {
		return zero, ok, err
	}
	for _, cf := range s.desc.childFields {
		items, err := s.fetchChildRows(ctx, key, cf.Name, cf.ElemDesc, cf.ElemType)
		if err != nil {
			return zero, false, err
		}
		rv.Field(cf.Index).Set(items)
	}
	return rv.Interface().(V), true, nil
}

func (s *SQLObjectStore[V]) fetchMainRow(ctx context.Context, key string) (reflect.Value, bool, error) {
	var zero V
	t := reflect.TypeOf(zero)
	out := reflect.New(t).Elem()

	cols := make([]string, 0, len(s.desc.scalarFields))
	for _, f := range s.desc.scalarFields {
		cols = append(cols, f.Name)
	}
	if len(cols) == 0 {
		var discard string
		q := fmt.Sprintf("SELECT key FROM %s WHERE key = %s", s.table, s.dialect.Placeholder(1))
		if err := s.db.QueryRowContext(ctx, q, key).Scan(&discard); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return out, false, nil
			}
			return out, false, fmt.Errorf("sql object store %s: fetch main row %q: %w", s.name, key, err)
		}
		return out, true, nil
	}

	q := fmt.Sprintf("SELECT %s FROM %s WHERE key = %s", strings.Join(cols, ", "), s.table, s.dialect.Placeholder(1))
	scanTargets := make([]any, 0, len(cols))
	for _, f := range s.desc.scalarFields {
		ptr := reflect.New(out.Field(f.Index).Type())
		scanTargets = append(scanTargets, ptr.Interface())
	}

	if err := s.db.QueryRowContext(ctx, q, key).Scan(scanTargets...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return out, false, nil
		}
		return out, false, fmt.Errorf("sql object store %s: fetch main row %q: %w", s.name, key, err)
	}
	for i, f := range s.desc.scalarFields {
		out.Field(f.Index).Set(reflect.ValueOf(scanTargets[i]).Elem())
	}
	return out, true, nil
}

func (s *SQLObjectStore[V]) fetchChildRows(ctx context.Context, key, field string, elemDesc []fieldDescriptor, elemType reflect.Type) (reflect.Value, error) {
	table := s.childTableName(field)
	cols := make([]string, 0, len(elemDesc))
	for _, f := range elemDesc {
		cols = append(cols, f.Name)
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE key = %s ORDER BY item_index ASC",
		strings.Join(cols, ", "), table, s.dialect.Placeholder(1))

	rows, err := s.db.QueryContext(ctx, q, key)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("sql object store %s: fetch children %s: %w", s.name, table, err)
	}
	defer rows.Close()

	result := reflect.MakeSlice(reflect.SliceOf(elemType), 0, 0)
	for rows.Next() {
		item := reflect.New(elemType).Elem()
		scanTargets := make([]any, len(elemDesc))
		for i, f := range elemDesc {
			ptr := reflect.New(item.Field(f.Index).Type())
			scanTargets[i] = ptr.Interface()
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return reflect.Value{}, fmt.Errorf("sql object store %s: scan child %s: %w", s.name, table, err)
		}
		for i, f := range elemDesc {
			item.Field(f.Index).Set(reflect.ValueOf(scanTargets[i]).Elem())
		}
		result = reflect.Append(result, item)
	}
	return result, rows.Err()
}

// Remove deletes the main row and all child rows for key.
func (s *SQLObjectStore[V]) Remove(ctx context.Context, key string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sql object store %s: begin remove %q: %w", s.name, key, err)
	}
	defer tx.Rollback()

	fields := s.desc.childFields
	if s.desc.isSliceValue {
		fields = []childFieldDescriptor{{Name: "Child"}}
	}
	for _, cf := range fields {
		del := fmt.Sprintf("DELETE FROM %s WHERE key = %s", s.childTableName(cf.Name), s.dialect.Placeholder(1))
		if _, err := tx.ExecContext(ctx, del, key); err != nil {
			return fmt.Errorf("sql object store %s: remove children %s: %w", s.name, cf.Name, err)
		}
	}
	del := fmt.Sprintf("DELETE FROM %s WHERE key = %s", s.table, s.dialect.Placeholder(1))
	if _, err := tx.ExecContext(ctx, del, key); err != nil {
		return fmt.Errorf("sql object store %s: remove main row %q: %w", s.name, key, err)
	}
	return tx.Commit()
}

func (s *SQLObjectStore[V]) ContainsKey(ctx context.Context, key string) (bool, error) {
	var exists bool
	q := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE key = %s)", s.table, s.dialect.Placeholder(1))
	if err := s.db.QueryRowContext(ctx, q, key).Scan(&exists); err != nil {
		return false, fmt.Errorf("sql object store %s: contains %q: %w", s.name, key, err)
	}
	return exists, nil
}

func (s *SQLObjectStore[V]) GetKeys(ctx context.Context) ([]string, error) {
	q := fmt.Sprintf("SELECT key FROM %s", s.table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sql object store %s: get keys: %w", s.name, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("sql object store %s: scan key: %w", s.name, err)
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

// GetAll enumerates every key and rehydrates its full object. Finite,
// unordered unless the backend documents otherwise.
func (s *SQLObjectStore[V]) GetAll(ctx context.Context) (map[string]V, error) {
	keys, err := s.GetKeys(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]V, len(keys))
	for _, k := range keys {
		v, ok, err := s.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			out[k] = v
		}
	}
	return out, nil
}
