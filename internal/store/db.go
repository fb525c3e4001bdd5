// In file: internal/store/db.go

// Package store is the relational surface the agent talks to. It offers the small,
// generic set of operations every domain table supports (point lookup, filtered
// select with ordering and limit, insert-returning-row, upsert by unique key and
// update) on top of database/sql, for both SQLite and Postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect names the SQL flavour the store speaks.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// TimestampLayout is fixed width so that lexical and chronological order agree.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned by point lookups that match no row.
var ErrNotFound = errors.New("store: row not found")

// DB wraps a *sql.DB together with the dialect it was opened with.
type DB struct {
	sql     *sql.DB
	dialect Dialect
	now     func() time.Time
}

// Open connects to the database and runs the schema migration.
func Open(ctx context.Context, dialect Dialect, dsn string) (*DB, error) {
	var driverName string
	switch dialect {
	case DialectSQLite:
		driverName = "sqlite3"
	case DialectPostgres:
		driverName = "postgres"
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: sqlite, postgres)", dialect)
	}

	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect == DialectSQLite {
		// SQLite serialises writers anyway; one connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", dialect, err)
	}

	db := &DB{sql: sqlDB, dialect: dialect, now: time.Now}
	if err := db.Migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	return db.sql.Close()
}

// Dialect reports the dialect the store was opened with.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// SQL exposes the raw handle for packages that need hand-written statements.
func (db *DB) SQL() *sql.DB {
	return db.sql
}

// Now returns the current time formatted with TimestampLayout.
func (db *DB) Now() string {
	return Timestamp(db.now())
}

// Timestamp formats t in UTC with TimestampLayout.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Rebind rewrites '?' placeholders into the dialect's native form.
func (db *DB) Rebind(query string) string {
	if db.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
