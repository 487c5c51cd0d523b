package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB, tunes the pool, applies sqlite pragmas and ensures the
// schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:courseloop.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/courseloop?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("db: unsupported driver: %s", driver)
	}

	dbh, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}
	tunePool(driver, dbh)

	if err := dbh.PingContext(ctx); err != nil {
		_ = dbh.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}

	if driver == DriverSQLite {
		if err := applySQLitePragmas(ctx, dbh); err != nil {
			_ = dbh.Close()
			return nil, err
		}
	}

	if err := ensureSchema(ctx, dbh, driver); err != nil {
		_ = dbh.Close()
		return nil, fmt.Errorf("db: schema: %w", err)
	}
	return dbh, nil
}

func tunePool(driver Driver, dbh *sql.DB) {
	switch driver {
	case DriverSQLite:
		// modernc sqlite serializes writes; a single connection avoids
		// SQLITE_BUSY churn under concurrent handlers.
		dbh.SetMaxOpenConns(1)
	default:
		dbh.SetMaxOpenConns(20)
		dbh.SetMaxIdleConns(10)
		dbh.SetConnMaxLifetime(30 * time.Minute)
	}
}

func applySQLitePragmas(ctx context.Context, dbh *sql.DB) error {
	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := dbh.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("db: pragma %q: %w", p, err)
		}
	}
	return nil
}

func ensureSchema(ctx context.Context, dbh *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	for _, stmt := range strings.Split(schema, ";\n\n") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := dbh.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
