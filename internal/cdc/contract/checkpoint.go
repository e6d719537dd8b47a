package contract

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ILLUVRSE/streamkit/internal/store"
)

// Checkpoint key suffixes, namespaced per source under
// "<source_id>.<checkpoint_key>" by CheckpointStore.
const (
	CheckpointKeyInitialLoadDone = "initial_load_done"
	CheckpointKeyPosition        = "position"
	CheckpointKeyLastHash        = "last_record_hash"
)

// CheckpointStore persists the three pieces of durable state a CDC source
// needs to resume exactly where it left off: whether the initial load
// completed, the last position read, and the hash of the last emitted
// record (for adjacent dedup across restarts).
type CheckpointStore struct {
	backing  store.Store[string, string]
	sourceID string
}

// NewCheckpointStore wraps any string-keyed, string-valued Store as a
// namespaced checkpoint store for sourceID.
func NewCheckpointStore(backing store.Store[string, string], sourceID string) *CheckpointStore {
	return &CheckpointStore{backing: backing, sourceID: sourceID}
}

func (c *CheckpointStore) namespacedKey(suffix string) string {
	return fmt.Sprintf("%s.%s", c.sourceID, suffix)
}

func (c *CheckpointStore) InitialLoadDone(ctx context.Context) (bool, error) {
	v, ok, err := c.backing.Get(ctx, c.namespacedKey(CheckpointKeyInitialLoadDone))
	if err != nil {
		return false, fmt.Errorf("checkpoint %s: get initial_load_done: %w", c.sourceID, err)
	}
	return ok && v == "true", nil
}

func (c *CheckpointStore) MarkInitialLoadDone(ctx context.Context) error {
	if err := c.backing.Put(ctx, c.namespacedKey(CheckpointKeyInitialLoadDone), "true"); err != nil {
		return fmt.Errorf("checkpoint %s: put initial_load_done: %w", c.sourceID, err)
	}
	return nil
}

func (c *CheckpointStore) LoadPosition(ctx context.Context) (string, bool, error) {
	v, ok, err := c.backing.Get(ctx, c.namespacedKey(CheckpointKeyPosition))
	if err != nil {
		return "", false, fmt.Errorf("checkpoint %s: get position: %w", c.sourceID, err)
	}
	return v, ok, nil
}

func (c *CheckpointStore) SavePosition(ctx context.Context, position string) error {
	if err := c.backing.Put(ctx, c.namespacedKey(CheckpointKeyPosition), position); err != nil {
		return fmt.Errorf("checkpoint %s: put position: %w", c.sourceID, err)
	}
	return nil
}

func (c *CheckpointStore) LoadLastHash(ctx context.Context) (string, bool, error) {
	v, ok, err := c.backing.Get(ctx, c.namespacedKey(CheckpointKeyLastHash))
	if err != nil {
		return "", false, fmt.Errorf("checkpoint %s: get last_record_hash: %w", c.sourceID, err)
	}
	return v, ok, nil
}

func (c *CheckpointStore) SaveLastHash(ctx context.Context, hash string) error {
	if err := c.backing.Put(ctx, c.namespacedKey(CheckpointKeyLastHash), hash); err != nil {
		return fmt.Errorf("checkpoint %s: put last_record_hash: %w", c.sourceID, err)
	}
	return nil
}

// SQLCheckpointBacking is a store.Store[string,string] over a single
// (key, value) table, written directly against *sql.DB; values are stored
// as plain strings, without the JSON quoting a generic value codec would
// add.
type SQLCheckpointBacking struct {
	db    *sql.DB
	name  string
	table string
}

// NewSQLCheckpointBacking builds the SQL-backed string store a
// CheckpointStore can namespace on top of
// (`key TEXT PRIMARY KEY, value TEXT NULL`). The concrete type is
// returned (rather than the store.Store interface) so callers can run
// EnsureSchema before handing it to NewCheckpointStore.
func NewSQLCheckpointBacking(db *sql.DB, name, table string) *SQLCheckpointBacking {
	return &SQLCheckpointBacking{db: db, name: name, table: table}
}

func (s *SQLCheckpointBacking) Name() string { return s.name }

func (s *SQLCheckpointBacking) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (key TEXT PRIMARY KEY, value TEXT NULL)`, s.table))
	if err != nil {
		return fmt.Errorf("checkpoint backing %s: ensure schema: %w", s.name, err)
	}
	return nil
}

func (s *SQLCheckpointBacking) Get(ctx context.Context, key string) (string, bool, error) {
	var value sql.NullString
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, s.table), key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("checkpoint backing %s: get: %w", s.name, err)
	}
	return value.String, true, nil
}

func (s *SQLCheckpointBacking) Put(ctx context.Context, key string, value string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, s.table), key, value)
	if err != nil {
		return fmt.Errorf("checkpoint backing %s: put: %w", s.name, err)
	}
	return nil
}

func (s *SQLCheckpointBacking) Remove(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, s.table), key)
	if err != nil {
		return fmt.Errorf("checkpoint backing %s: remove: %w", s.name, err)
	}
	return nil
}

func (s *SQLCheckpointBacking) ContainsKey(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

func (s *SQLCheckpointBacking) GetAll(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT key, value FROM %s`, s.table))
	if err != nil {
		return nil, fmt.Errorf("checkpoint backing %s: get all: %w", s.name, err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k string
		var v sql.NullString
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("checkpoint backing %s: scan: %w", s.name, err)
		}
		out[k] = v.String
	}
	return out, rows.Err()
}

func (s *SQLCheckpointBacking) GetKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT key FROM %s`, s.table))
	if err != nil {
		return nil, fmt.Errorf("checkpoint backing %s: get keys: %w", s.name, err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("checkpoint backing %s: scan: %w", s.name, err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
