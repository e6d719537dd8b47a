package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// JSONKVStore persists string-keyed values as JSON blobs in a single
// "(key TEXT PRIMARY KEY, value TEXT NULL)" table, driven through
// ExecContext/QueryRowContext against a plain *sql.DB.
type JSONKVStore[V any] struct {
	db    *sql.DB
	name  string
	table string
}

// NewJSONKVStore constructs a JSON-blob KV store backed by table. The
// caller is responsible for the connection (pooling is the caller's
// concern, not the store's).
func NewJSONKVStore[V any](db *sql.DB, name, table string) *JSONKVStore[V] {
	return &JSONKVStore[V]{db: db, name: name, table: table}
}

// EnsureSchema creates the backing table if it does not already exist.
func (s *JSONKVStore[V]) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (key TEXT PRIMARY KEY, value TEXT NULL)`, s.table)
	_, err := s.db.ExecContext(ctx, q)
	if err != nil {
		return fmt.Errorf("json kv store %s: ensure schema: %w", s.name, err)
	}
	return nil
}

func (s *JSONKVStore[V]) Name() string { return s.name }

func (s *JSONKVStore[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	var raw sql.NullString
	q := fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, s.table)
	err := s.db.QueryRowContext(ctx, q, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("json kv store %s: get %q: %w", s.name, key, err)
	}
	if !raw.Valid {
		return zero, true, nil
	}
	var v V
	if err := json.Unmarshal([]byte(raw.String), &v); err != nil {
		return zero, false, fmt.Errorf("json kv store %s: unmarshal %q: %w", s.name, key, err)
	}
	return v, true, nil
}

func (s *JSONKVStore[V]) Put(ctx context.Context, key string, value V) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("json kv store %s: marshal %q: %w", s.name, key, err)
	}
	q := fmt.Sprintf(`
		INSERT INTO %s (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, s.table)
	if _, err := s.db.ExecContext(ctx, q, key, string(raw)); err != nil {
		return fmt.Errorf("json kv store %s: put %q: %w", s.name, key, err)
	}
	return nil
}

func (s *JSONKVStore[V]) Remove(ctx context.Context, key string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, s.table)
	if _, err := s.db.ExecContext(ctx, q, key); err != nil {
		return fmt.Errorf("json kv store %s: remove %q: %w", s.name, key, err)
	}
	return nil
}

func (s *JSONKVStore[V]) ContainsKey(ctx context.Context, key string) (bool, error) {
	var exists bool
	q := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE key = $1)`, s.table)
	if err := s.db.QueryRowContext(ctx, q, key).Scan(&exists); err != nil {
		return false, fmt.Errorf("json kv store %s: contains %q: %w", s.name, key, err)
	}
	return exists, nil
}

func (s *JSONKVStore[V]) GetAll(ctx context.Context) (map[string]V, error) {
	q := fmt.Sprintf(`SELECT key, value FROM %s`, s.table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("json kv store %s: get all: %w", s.name, err)
	}
	defer rows.Close()

	out := make(map[string]V)
	for rows.Next() {
		var key string
		var raw sql.NullString
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("json kv store %s: scan row: %w", s.name, err)
		}
		if !raw.Valid {
			var zero V
			out[key] = zero
			continue
		}
		var v V
		if err := json.Unmarshal([]byte(raw.String), &v); err != nil {
			return nil, fmt.Errorf("json kv store %s: unmarshal %q: %w", s.name, key, err)
		}
		out[key] = v
	}
	return out, rows.Err()
}

func (s *JSONKVStore[V]) GetKeys(ctx context.Context) ([]string, error) {
	q := fmt.Sprintf(`SELECT key FROM %s`, s.table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("json kv store %s: get keys: %w", s.name, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("json kv store %s: scan key: %w", s.name, err)
		}
		out = append(out, key)
	}
	return out, rows.Err()
}
