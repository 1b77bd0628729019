package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// server-backed databases are shared, keep the pool small and recycled
const (
	serverMaxOpenConns    = 25
	serverMaxIdleConns    = 5
	serverConnMaxLifetime = 5 * time.Minute
)

// NewServerDB connects to a database server through driver ("postgres" or
// "mysql") and verifies the connection.
func NewServerDB(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	slog.Debug("db", "driver", driver)
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	db.SetMaxOpenConns(serverMaxOpenConns)
	db.SetMaxIdleConns(serverMaxIdleConns)
	db.SetConnMaxLifetime(serverConnMaxLifetime)

	return db, nil
}
