// Package database opens the bun handle shared by the row store and the
// credential vault.
package database

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Open connects to dsn with driver and checks the connection.
func Open(ctx context.Context, driver, dsn string) (*bun.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("database dsn is required", errors.CategoryValidation).
			WithTextCode("DB_DSN_REQUIRED")
	}

	var db *bun.DB
	switch driver {
	case DriverSQLite, "sqlite":
		sqldb, err := sql.Open(DriverSQLite, dsn)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryExternal, "open sqlite")
		}
		// sqlite serializes writers.
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	case DriverPostgres, "pg":
		sqldb, err := sql.Open(DriverPostgres, dsn)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryExternal, "open postgres")
		}
		sqldb.SetConnMaxIdleTime(5 * time.Minute)
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		return nil, errors.New("unsupported database driver: "+driver, errors.CategoryValidation).
			WithTextCode("DB_DRIVER_UNSUPPORTED").
			WithMetadata(map[string]any{"driver": driver})
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.CategoryExternal, "ping database")
	}
	return db, nil
}
