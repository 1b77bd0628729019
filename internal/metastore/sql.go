package metastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/openmined/metaguard/internal/meta"
	"github.com/openmined/metaguard/internal/metrics"
)

// entryRow is the table representation of a meta.PathEntry
type entryRow struct {
	Path    string `db:"path"`
	Parent  string `db:"parent"`
	IsDir   bool   `db:"is_dir"`
	Size    int64  `db:"size"`
	ModTime int64  `db:"mod_time"`
	Deleted bool   `db:"deleted"`
}

func (r *entryRow) entry() meta.PathEntry {
	e := meta.PathEntry{
		Path:    r.Path,
		Kind:    meta.KindFile,
		Size:    r.Size,
		ModTime: r.ModTime,
		Deleted: r.Deleted,
	}
	if r.IsDir {
		e.Kind = meta.KindDirectory
	}
	return e
}

func rowFromEntry(e meta.PathEntry) entryRow {
	parent, _ := meta.Parent(e.Path)
	return entryRow{
		Path:    e.Path,
		Parent:  parent,
		IsDir:   e.IsDir(),
		Size:    e.Size,
		ModTime: e.ModTime,
		Deleted: e.Deleted,
	}
}

// SQLStore keeps entries in a single SQL table keyed by path. It is the
// table-backed store variant and runs on SQLite, PostgreSQL or MySQL.
type SQLStore struct {
	db       *sqlx.DB
	dialect  *dialect
	table    string
	location string
	lock     *fileLock

	queryGet      string
	queryChildren string
	queryUpsert   string
	queryPrune    string
}

// NewSQLStore wraps an open connection. driver selects the SQL dialect
// ("sqlite3", "postgres" or "mysql").
func NewSQLStore(ctx context.Context, conn *sqlx.DB, driver string, opts ...Option) (*SQLStore, error) {
	o := &options{table: DefaultTable}
	for _, opt := range opts {
		opt(o)
	}
	if !tableNameRE.MatchString(o.table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, o.table)
	}

	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("%w: driver %s", ErrUnsupportedScheme, driver)
	}
	return newSQLStore(ctx, conn, d, o)
}

func newSQLStore(ctx context.Context, conn *sqlx.DB, d *dialect, o *options) (*SQLStore, error) {
	s := &SQLStore{
		db:       conn,
		dialect:  d,
		table:    o.table,
		location: d.name,
	}
	s.prepareQueries()

	exists, err := s.tableExists(ctx)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if !exists {
		if !o.create {
			conn.Close()
			return nil, fmt.Errorf("%w: table %s", meta.ErrStoreNotFound, s.table)
		}
		for _, stmt := range d.schema(s.table) {
			if _, err := conn.ExecContext(ctx, stmt); err != nil {
				conn.Close()
				return nil, fmt.Errorf("failed to initialize table %s: %w", s.table, err)
			}
		}
	}

	return s, nil
}

func (s *SQLStore) prepareQueries() {
	cols := "path, parent, is_dir, size, mod_time, deleted"
	s.queryGet = s.db.Rebind(fmt.Sprintf("SELECT %s FROM %s WHERE path = ?", cols, s.table))
	s.queryChildren = s.db.Rebind(fmt.Sprintf("SELECT %s FROM %s WHERE parent = ? ORDER BY path", cols, s.table))
	s.queryUpsert = s.db.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?) %s", s.table, cols, s.dialect.upsertClause))
	s.queryPrune = s.db.Rebind(fmt.Sprintf("DELETE FROM %s WHERE (is_dir = ? OR deleted = ?) AND mod_time < ?", s.table))
}

func (s *SQLStore) tableExists(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(s.dialect.tableExistsQuery), s.table); err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", s.table, err)
	}
	return n > 0, nil
}

func (s *SQLStore) Get(ctx context.Context, path string) (entry *meta.PathEntry, err error) {
	defer func(start time.Time) { metrics.ObserveStoreOp("get", start, err) }(time.Now())

	var row entryRow
	err = s.db.GetContext(ctx, &row, s.queryGet, meta.Clean(path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", path, err)
	}

	e := row.entry()
	return &e, nil
}

func (s *SQLStore) ListChildren(ctx context.Context, path string) (entries []meta.PathEntry, err error) {
	defer func(start time.Time) { metrics.ObserveStoreOp("list_children", start, err) }(time.Now())

	path = meta.Clean(path)
	if !meta.IsRoot(path) {
		var dir entryRow
		err = s.db.GetContext(ctx, &dir, s.queryGet, path)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get %s: %w", path, err)
		}
		if !dir.IsDir || dir.Deleted {
			return nil, nil
		}
	}

	var rows []entryRow
	if err = s.db.SelectContext(ctx, &rows, s.queryChildren, path); err != nil {
		return nil, fmt.Errorf("failed to list children of %s: %w", path, err)
	}

	entries = make([]meta.PathEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, rows[i].entry())
	}
	return entries, nil
}

func (s *SQLStore) Put(ctx context.Context, entry meta.PathEntry) (err error) {
	defer func(start time.Time) { metrics.ObserveStoreOp("put", start, err) }(time.Now())

	entry.Path = meta.Clean(entry.Path)
	if meta.IsRoot(entry.Path) {
		return fmt.Errorf("%w: cannot put the namespace root", meta.ErrInvalidArgument)
	}

	r := rowFromEntry(entry)
	_, err = s.db.ExecContext(ctx, s.queryUpsert, r.Path, r.Parent, r.IsDir, r.Size, r.ModTime, r.Deleted)
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", entry.Path, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, path string) error {
	path = meta.Clean(path)
	existing, err := s.Get(ctx, path)
	if err != nil {
		return err
	}

	tombstone := meta.PathEntry{Path: path, Kind: meta.KindFile, Deleted: true, ModTime: nowMillis()}
	if existing != nil {
		tombstone.Kind = existing.Kind
	}
	return s.Put(ctx, tombstone)
}

func (s *SQLStore) Prune(ctx context.Context, cutoff time.Time) (n int64, err error) {
	defer func(start time.Time) { metrics.ObserveStoreOp("prune", start, err) }(time.Now())

	res, err := s.db.ExecContext(ctx, s.queryPrune, false, true, meta.ModTimeMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to prune %s: %w", s.table, err)
	}
	return res.RowsAffected()
}

func (s *SQLStore) Destroy(ctx context.Context) (err error) {
	defer func(start time.Time) { metrics.ObserveStoreOp("destroy", start, err) }(time.Now())

	if _, err = s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+s.table); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", s.table, err)
	}
	return nil
}

func (s *SQLStore) Diagnostics(ctx context.Context) (map[string]string, error) {
	var stats struct {
		Entries    int64         `db:"entries"`
		Files      sql.NullInt64 `db:"files"`
		Tombstones sql.NullInt64 `db:"tombstones"`
		Bytes      sql.NullInt64 `db:"bytes"`
	}
	query := s.db.Rebind(fmt.Sprintf(`SELECT
		COUNT(*) AS entries,
		SUM(CASE WHEN is_dir = ? AND deleted = ? THEN 1 ELSE 0 END) AS files,
		SUM(CASE WHEN deleted = ? THEN 1 ELSE 0 END) AS tombstones,
		SUM(CASE WHEN deleted = ? THEN size ELSE 0 END) AS bytes
		FROM %s`, s.table))
	if err := s.db.GetContext(ctx, &stats, query, false, false, true, false); err != nil {
		return nil, fmt.Errorf("failed to collect diagnostics: %w", err)
	}

	return map[string]string{
		"name":       s.dialect.name,
		"location":   s.location,
		"table":      s.table,
		"entries":    strconv.FormatInt(stats.Entries, 10),
		"files":      strconv.FormatInt(stats.Files.Int64, 10),
		"tombstones": strconv.FormatInt(stats.Tombstones.Int64, 10),
		"size":       humanize.Bytes(uint64(stats.Bytes.Int64)),
	}, nil
}

// Close releases the connection and any lock held by the store.
func (s *SQLStore) Close() error {
	err := s.db.Close()
	s.lock.release()
	return err
}

func (s *SQLStore) String() string {
	return fmt.Sprintf("%s table %s", s.dialect.name, s.table)
}

var _ Store = (*SQLStore)(nil)
