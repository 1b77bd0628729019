//go:build cgo && sqlite3_cgo

package db

import _ "github.com/mattn/go-sqlite3"

// built with -tags sqlite3_cgo
const (
	driverID   = "mattn/go-sqlite3"
	driverName = "sqlite3"
)
