// Package sqlitemod provides the "sqlite3" module, a thin binding over an
// embedded SQLite engine. Connections are instances and hold the database
// open until they are released or closed.
package sqlitemod

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/richinsley/jumpbridge"
)

func New() *jumpbridge.NativeModule {
	return jumpbridge.NewModule("sqlite3").
		Const("memory", ":memory:").
		Func("version", version).
		Class(connectionClass())
}

func version(ctx context.Context, _ jumpbridge.Args) (any, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	defer db.Close()
	var v string
	if err := db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Connection is an open database handle.
type Connection struct {
	Path string
	db   *sql.DB
}

// Open opens path, or a private in-memory database for ":memory:".
func Open(ctx context.Context, path string) (*Connection, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("database path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_busy_timeout=5000&_foreign_keys=ON"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Every pooled connection to :memory: would see its own empty database.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return &Connection{Path: path, db: db}, nil
}

// Exec runs a statement and reports its effect.
func (c *Connection) Exec(ctx context.Context, query string, params []any) (map[string]int64, error) {
	if c.db == nil {
		return nil, errors.New("connection is closed")
	}
	res, err := c.db.ExecContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	affected, _ := res.RowsAffected()
	lastID, _ := res.LastInsertId()
	return map[string]int64{"rows_affected": affected, "last_insert_id": lastID}, nil
}

// Query runs a statement and returns each row as a column-keyed map.
func (c *Connection) Query(ctx context.Context, query string, params []any) ([]map[string]any, error) {
	if c.db == nil {
		return nil, errors.New("connection is closed")
	}
	rows, err := c.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []map[string]any{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (c *Connection) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

func connectionClass() *jumpbridge.NativeClass {
	return jumpbridge.NewClass("Connection", func(ctx context.Context, args jumpbridge.Args) (any, error) {
		path, err := args.OptText(0, ":memory:")
		if err != nil {
			return nil, err
		}
		return Open(ctx, path)
	}).
		Method("execute", func(ctx context.Context, self any, args jumpbridge.Args) (any, error) {
			query, params, err := statement(args)
			if err != nil {
				return nil, err
			}
			return self.(*Connection).Exec(ctx, query, params)
		}).
		Method("query", func(ctx context.Context, self any, args jumpbridge.Args) (any, error) {
			query, params, err := statement(args)
			if err != nil {
				return nil, err
			}
			return self.(*Connection).Query(ctx, query, params)
		}).
		Method("close", func(_ context.Context, self any, _ jumpbridge.Args) (any, error) {
			return nil, self.(*Connection).Close()
		})
}

// statement reads (sql, params=[]) call arguments.
func statement(args jumpbridge.Args) (string, []any, error) {
	if err := args.Arity(1, 2); err != nil {
		return "", nil, err
	}
	query, err := args.Text(0)
	if err != nil {
		return "", nil, err
	}
	if args.Get(1) == nil {
		return query, nil, nil
	}
	params, err := args.List(1)
	if err != nil {
		return "", nil, err
	}
	return query, params, nil
}
