// Package db opens the SQL connections behind the metadata store.
package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/metaguard/internal/utils"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// The store is written by one tool run at a time and read back by the next, so
// WAL plus a busy timeout is enough. synchronous=NORMAL is safe under WAL.
const defaultPragma = `
PRAGMA journal_mode=WAL;
PRAGMA busy_timeout=5000;
PRAGMA synchronous=NORMAL;
PRAGMA temp_store=MEMORY;
`

type sqliteConfig struct {
	path         string
	pragmas      string
	maxOpenConns int
}

// SqliteOption configures NewSqliteDB.
type SqliteOption func(*sqliteConfig)

// WithPath sets the database file. Missing parent directories are created.
func WithPath(path string) SqliteOption {
	return func(c *sqliteConfig) {
		c.path = path
	}
}

// WithPragmas replaces the default pragmas.
func WithPragmas(pragmas string) SqliteOption {
	return func(c *sqliteConfig) {
		c.pragmas = pragmas
	}
}

// WithMaxOpenConns caps the connection pool.
func WithMaxOpenConns(n int) SqliteOption {
	return func(c *sqliteConfig) {
		c.maxOpenConns = n
	}
}

// NewSqliteDB opens a SQLite database, in memory unless WithPath is given.
func NewSqliteDB(ctx context.Context, opts ...SqliteOption) (*sqlx.DB, error) {
	cfg := &sqliteConfig{
		path:    MemoryPath,
		pragmas: defaultPragma,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	dsn := MemoryPath
	if cfg.path == MemoryPath {
		// every connection to :memory: opens a separate database
		cfg.maxOpenConns = 1
	} else {
		if err := utils.EnsureParent(cfg.path); err != nil {
			return nil, fmt.Errorf("ensure parent directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_txlock=immediate&mode=rwc", cfg.path)
	}

	slog.Debug("db", "driver", driverID, "path", cfg.path)
	db, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if cfg.maxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.maxOpenConns)
	}

	if _, err := db.ExecContext(ctx, cfg.pragmas); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	return db, nil
}
