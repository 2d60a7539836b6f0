package sqlitemod

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinsley/jumpbridge"
)

func connect(t *testing.T, args ...any) jumpbridge.Object {
	t.Helper()
	v, ok := New().Attr("Connection")
	require.True(t, ok)
	obj, err := v.(jumpbridge.Class).New(context.Background(), jumpbridge.Args(args))
	require.NoError(t, err)
	t.Cleanup(func() { obj.(io.Closer).Close() })
	return obj
}

func method(t *testing.T, obj jumpbridge.Object, name string, args ...any) (any, error) {
	t.Helper()
	fn, ok := obj.Method(name)
	require.True(t, ok, "Connection has no method %q", name)
	return fn.Fn(context.Background(), jumpbridge.Args(args))
}

func TestVersion(t *testing.T) {
	v, ok := New().Attr("version")
	require.True(t, ok)
	res, err := v.(*jumpbridge.Function).Fn(context.Background(), nil)
	require.NoError(t, err)
	assert.Regexp(t, `^3\.\d+\.\d+`, res)
}

func TestExecuteQuery(t *testing.T) {
	conn := connect(t)

	_, err := method(t, conn, "execute", "CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT, price REAL)")
	require.NoError(t, err)

	res, err := method(t, conn, "execute", "INSERT INTO items (name, price) VALUES (?, ?)", []any{"apple", 1.5})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"rows_affected": 1, "last_insert_id": 1}, res)

	_, err = method(t, conn, "execute", "INSERT INTO items (name, price) VALUES (?, ?)", []any{"pear", nil})
	require.NoError(t, err)

	rows, err := method(t, conn, "query", "SELECT id, name, price FROM items ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"id": int64(1), "name": "apple", "price": 1.5},
		{"id": int64(2), "name": "pear", "price": nil},
	}, rows)

	rows, err = method(t, conn, "query", "SELECT name FROM items WHERE price > ?", []any{5})
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = method(t, conn, "query", "SELECT * FROM missing")
	assert.ErrorContains(t, err, "no such table")
}

func TestFileDatabasePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.db")

	first := connect(t, path)
	_, err := method(t, first, "execute", "CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)")
	require.NoError(t, err)
	_, err = method(t, first, "execute", "INSERT INTO kv VALUES ('lang', 'lua')")
	require.NoError(t, err)
	_, err = method(t, first, "close")
	require.NoError(t, err)

	_, err = method(t, first, "query", "SELECT 1")
	assert.EqualError(t, err, "connection is closed")

	second := connect(t, path)
	rows, err := method(t, second, "query", "SELECT v FROM kv WHERE k = ?", []any{"lang"})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"v": "lua"}}, rows)
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	assert.EqualError(t, err, "database path is required")
}

func TestStatementArgs(t *testing.T) {
	conn := connect(t)
	_, err := method(t, conn, "execute")
	assert.Error(t, err)
	_, err = method(t, conn, "execute", "SELECT 1", "not a list")
	assert.Error(t, err)
}
