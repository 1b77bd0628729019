// Package metastore implements the metadata store that caches a view of the
// remote namespace.
package metastore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/openmined/metaguard/internal/db"
	"github.com/openmined/metaguard/internal/meta"
	"github.com/openmined/metaguard/internal/utils"
)

const DefaultTable = "metaguard"

var (
	ErrUnsupportedScheme = errors.New("metadata store scheme not supported")
	ErrInvalidTable      = errors.New("invalid table name")
	ErrStoreLocked       = errors.New("metadata store is locked by another process")
)

var tableNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Store is the metadata store contract consumed by the reconciliation engine.
type Store interface {
	// Get returns the entry at path, tombstones included. It returns nil when
	// the store knows nothing about path.
	Get(ctx context.Context, path string) (*meta.PathEntry, error)

	// ListChildren returns the children of the directory at path, tombstones
	// included. It returns nil when path is not a known live directory.
	ListChildren(ctx context.Context, path string) ([]meta.PathEntry, error)

	// Put inserts or replaces an entry.
	Put(ctx context.Context, entry meta.PathEntry) error

	// Delete replaces the entry at path with a tombstone.
	Delete(ctx context.Context, path string) error

	// Prune removes file entries and tombstones last modified before cutoff
	// and returns how many were removed.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)

	// Destroy removes all data and the underlying table.
	Destroy(ctx context.Context) error

	// Diagnostics describes the store for operators.
	Diagnostics(ctx context.Context) (map[string]string, error)

	Close() error
}

type options struct {
	create    bool
	exclusive bool
	table     string
	dataDir   string
}

type Option func(*options)

// WithCreate creates the backing table when it does not exist yet.
func WithCreate() Option {
	return func(o *options) {
		o.create = true
	}
}

// WithExclusive holds a lock file for the lifetime of a SQLite store so that
// concurrent mutating runs against the same database fail fast.
func WithExclusive() Option {
	return func(o *options) {
		o.exclusive = true
	}
}

// WithTable overrides the table name. A `table` query parameter in the URI
// takes precedence.
func WithTable(name string) Option {
	return func(o *options) {
		o.table = name
	}
}

// WithDataDir sets where the default SQLite database lives.
func WithDataDir(dir string) Option {
	return func(o *options) {
		o.dataDir = dir
	}
}

// Open selects and opens a store by URI scheme:
//
//	local://                     in-memory store
//	sqlite:///abs/path.db        SQLite file
//	postgres://user@host/db      PostgreSQL table
//	mysql://user:pw@host/db      MySQL table
//
// An empty URI opens the default SQLite database under the data dir.
func Open(ctx context.Context, uri string, opts ...Option) (Store, error) {
	o := &options{table: DefaultTable}
	for _, opt := range opts {
		opt(o)
	}

	if uri == "" {
		return openSqlite(ctx, filepath.Join(o.dataDir, "metadata.db"), o)
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parse metadata store uri: %w", err)
	}

	query := u.Query()
	if table := query.Get("table"); table != "" {
		o.table = table
		query.Del("table")
		u.RawQuery = query.Encode()
	}
	if !tableNameRE.MatchString(o.table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, o.table)
	}

	switch strings.ToLower(u.Scheme) {
	case "local":
		return NewMemoryStore(), nil
	case "sqlite", "sqlite3":
		path := u.Host + u.Path
		if path == "" {
			return nil, fmt.Errorf("%w: sqlite uri without a path", meta.ErrInvalidArgument)
		}
		return openSqlite(ctx, path, o)
	case "postgres", "postgresql":
		conn, err := db.NewServerDB(ctx, "postgres", u.String())
		if err != nil {
			return nil, err
		}
		return newSQLStore(ctx, conn, postgresDialect, o)
	case "mysql":
		conn, err := db.NewServerDB(ctx, "mysql", mysqlDSN(u))
		if err != nil {
			return nil, err
		}
		return newSQLStore(ctx, conn, mysqlDialect, o)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, uri)
	}
}

func openSqlite(ctx context.Context, path string, o *options) (Store, error) {
	path, err := utils.ResolvePath(path)
	if err != nil {
		return nil, err
	}

	// opening a missing file would silently create an empty database
	if !o.create && !utils.FileExists(path) {
		return nil, fmt.Errorf("%w: %s", meta.ErrStoreNotFound, path)
	}

	var lock *fileLock
	if o.exclusive {
		lock, err = acquireLock(path + ".lock")
		if err != nil {
			return nil, err
		}
	}

	conn, err := db.NewSqliteDB(ctx, db.WithPath(path), db.WithMaxOpenConns(1))
	if err != nil {
		lock.release()
		return nil, err
	}

	store, err := newSQLStore(ctx, conn, sqliteDialect, o)
	if err != nil {
		lock.release()
		return nil, err
	}
	store.lock = lock
	store.location = path
	return store, nil
}

// mysqlDSN converts mysql://user:pw@host:port/db?params into the driver's DSN.
func mysqlDSN(u *url.URL) string {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	cfg.ParseTime = true
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	if len(u.Query()) > 0 {
		cfg.Params = make(map[string]string)
		for k := range u.Query() {
			cfg.Params[k] = u.Query().Get(k)
		}
	}
	return cfg.FormatDSN()
}
