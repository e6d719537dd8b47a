package store

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestJSONKVStoreGetReturnsFalseOnNoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewJSONKVStore[map[string]int](db, "kv", "state")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM state WHERE key = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	_, ok, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJSONKVStoreGetUnmarshalsStoredJSON(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewJSONKVStore[map[string]int](db, "kv", "state")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM state WHERE key = $1")).
		WithArgs("counts").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`{"a":1,"b":2}`))

	v, ok, err := s.Get(context.Background(), "counts")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, map[string]int{"a": 1, "b": 2}, v)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJSONKVStorePutMarshalsAndUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewJSONKVStore[[]string](db, "kv", "state")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO state")).
		WithArgs("tags", `["x","y"]`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Put(context.Background(), "tags", []string{"x", "y"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJSONKVStoreRemoveDeletesRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewJSONKVStore[int](db, "kv", "state")
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM state WHERE key = $1")).
		WithArgs("n").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Remove(context.Background(), "n"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJSONKVStoreContainsKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewJSONKVStore[int](db, "kv", "state")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM state WHERE key = $1)")).
		WithArgs("n").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := s.ContainsKey(context.Background(), "n")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJSONKVStoreGetAllAndGetKeys(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewJSONKVStore[int](db, "kv", "state")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT key, value FROM state")).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).
			AddRow("a", "1").
			AddRow("b", "2"))

	all, err := s.GetAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]int{"a": 1, "b": 2}, all)
	require.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT key FROM state")).
		WillReturnRows(sqlmock.NewRows([]string{"key"}).AddRow("a").AddRow("b"))

	keys, err := s.GetKeys(context.Background())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, keys)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJSONKVStoreEnsureSchemaIssuesCreateTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewJSONKVStore[int](db, "kv", "state")
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS state")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
