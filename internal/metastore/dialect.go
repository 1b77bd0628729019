package metastore

import "fmt"

// dialect captures the per-database differences of the entries table.
type dialect struct {
	name             string
	tableExistsQuery string
	upsertClause     string
	schema           func(table string) []string
}

var sqliteDialect = &dialect{
	name:             "sqlite",
	tableExistsQuery: `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`,
	upsertClause: `ON CONFLICT(path) DO UPDATE SET
		parent = excluded.parent,
		is_dir = excluded.is_dir,
		size = excluded.size,
		mod_time = excluded.mod_time,
		deleted = excluded.deleted`,
	schema: func(table string) []string {
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				path TEXT PRIMARY KEY,
				parent TEXT NOT NULL,
				is_dir BOOLEAN NOT NULL DEFAULT 0,
				size INTEGER NOT NULL DEFAULT 0,
				mod_time INTEGER NOT NULL DEFAULT 0,
				deleted BOOLEAN NOT NULL DEFAULT 0
			)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_parent ON %s(parent)`, table, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_mod_time ON %s(mod_time)`, table, table),
		}
	},
}

var postgresDialect = &dialect{
	name:             "postgres",
	tableExistsQuery: `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?`,
	upsertClause:     sqliteDialect.upsertClause,
	schema: func(table string) []string {
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				path TEXT PRIMARY KEY,
				parent TEXT NOT NULL,
				is_dir BOOLEAN NOT NULL DEFAULT FALSE,
				size BIGINT NOT NULL DEFAULT 0,
				mod_time BIGINT NOT NULL DEFAULT 0,
				deleted BOOLEAN NOT NULL DEFAULT FALSE
			)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_parent ON %s(parent)`, table, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_mod_time ON %s(mod_time)`, table, table),
		}
	},
}

// mysql cannot index TEXT without a prefix length, so paths are VARCHAR and
// the indexes are declared inline.
var mysqlDialect = &dialect{
	name:             "mysql",
	tableExistsQuery: `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?`,
	upsertClause: `ON DUPLICATE KEY UPDATE
		parent = VALUES(parent),
		is_dir = VALUES(is_dir),
		size = VALUES(size),
		mod_time = VALUES(mod_time),
		deleted = VALUES(deleted)`,
	schema: func(table string) []string {
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				path VARCHAR(768) NOT NULL PRIMARY KEY,
				parent VARCHAR(768) NOT NULL,
				is_dir BOOLEAN NOT NULL DEFAULT FALSE,
				size BIGINT NOT NULL DEFAULT 0,
				mod_time BIGINT NOT NULL DEFAULT 0,
				deleted BOOLEAN NOT NULL DEFAULT FALSE,
				INDEX idx_parent (parent),
				INDEX idx_mod_time (mod_time)
			) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin`, table),
		}
	},
}

var dialects = map[string]*dialect{
	"sqlite":   sqliteDialect,
	"sqlite3":  sqliteDialect,
	"postgres": postgresDialect,
	"mysql":    mysqlDialect,
}
