// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// Quiz sessions used to live in process memory and vanished on restart.
// SQLite is an embedded database: it lives inside your Go binary as a single file.
// No separate database server to install, configure, or manage. Perfect for:
// - Single-server deployments (which is most apps, honestly)
// - Development and testing (use ":memory:" for in-memory DB)
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo (calls C code from Go), which means you need a C compiler
// installed and cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code: it needs no C compiler and builds wherever Go does.
//
// DATABASE/SQL OVERVIEW:
// Go's standard library provides "database/sql", a generic interface for SQL databases.
// It works with any database through "drivers" (SQLite, Postgres, MySQL, etc.).
// Key types:
//   - sql.DB      : a connection pool (NOT a single connection!)
//   - sql.Tx      : a transaction
//   - sql.Row     : a single result row
//   - sql.Rows    : multiple result rows (must be closed!)
//
// The pattern is always:
//  1. sql.Open(driverName, dataSourceName) → creates a pool
//  2. db.QueryContext / db.ExecContext     → runs queries
//  3. rows.Scan(&field1, &field2)          → reads results into Go variables
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	// BLANK IMPORT:
	// The underscore import `_ "modernc.org/sqlite"` is a "side-effect only" import.
	// It doesn't give us any symbols to use directly. Instead, the sqlite package's
	// init() function registers itself with database/sql as a driver named "sqlite".
	// After this import, sql.Open("sqlite", ...) knows how to talk to SQLite.
	//
	// This is Go's plugin pattern: database drivers register themselves at init time.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides repository methods.
//
// WHY WRAP sql.DB IN A STRUCT?
// 1. We can attach methods to it (Create, GetByID, etc.)
// 2. We can add more fields later (logger, config, prepared statements)
// 3. It implements the SessionRepository interface from repository.go
// 4. We control the lifecycle (New creates it, Close destroys it)
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/debugger.db"    → file-based database (persistent)
//   - ":memory:"            → in-memory database (great for tests, lost on close)
//
// CONNECTION POOL:
// sql.Open() does NOT actually open a connection. It just creates a pool manager.
// The first real connection happens when you run your first query.
// We call db.Ping() to force an immediate connection and verify it works.
func New(dbPath string) (*DB, error) {
	// Open a connection pool to the SQLite database.
	// "sqlite" is the driver name registered by the blank import above.
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// ONE CONNECTION:
	// SQLite allows a single writer at a time; a second pooled connection
	// trying to write gets SQLITE_BUSY instead of waiting. Session writes are
	// tiny, so serializing them through one connection costs nothing.
	// It also matters for ":memory:", where every new connection would open
	// its own empty database.
	conn.SetMaxOpenConns(1)

	// Ping verifies the connection actually works.
	// Without this, a bad path or permissions issue would only surface
	// on the first query, which is much harder to debug.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// PRAGMA STATEMENTS:
	// SQLite has special "PRAGMA" commands that configure its behaviour.
	// These run once at connection time.

	// WAL (Write-Ahead Logging) mode:
	// Default SQLite locks the entire database during writes.
	// WAL mode allows concurrent reads WHILE a write is happening.
	// This is critical for a web server where multiple requests hit the DB.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite (for backwards compatibility).
	// Nothing references sessions yet, but any future table that does gets
	// referential integrity for free.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	// Run database migrations to create/update tables
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
//
// ALWAYS DEFER CLOSE:
// Wherever you call New(), immediately defer Close():
//
//	db, err := sqlite.New("data/debugger.db")
//	if err != nil { ... }
//	defer db.Close()
//
// This ensures the connection is cleaned up even if a panic occurs.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate runs all database migrations.
//
// CREATE TABLE IF NOT EXISTS is idempotent, so migrate runs on every start.
// Columns added after the first release go through addColumnIfNotExists.
func (db *DB) migrate() error {
	// List columns (queue, solved, unsolved) hold JSON arrays of question IDs.
	// They are only ever read and written whole, so a child table would buy
	// nothing but joins.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id                  TEXT PRIMARY KEY,
			language            TEXT NOT NULL,
			score               INTEGER NOT NULL DEFAULT 0,
			questions_attempted INTEGER NOT NULL DEFAULT 0,
			questions_solved    INTEGER NOT NULL DEFAULT 0,
			total               INTEGER NOT NULL DEFAULT 0,
			queue               TEXT NOT NULL DEFAULT '[]',
			solved              TEXT NOT NULL DEFAULT '[]',
			unsolved            TEXT NOT NULL DEFAULT '[]',
			started_at          DATETIME NOT NULL,
			ended_at            DATETIME
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);
	`)
	if err != nil {
		return fmt.Errorf("creating sessions table: %w", err)
	}

	if err := db.addColumnIfNotExists("sessions", "version",
		"INTEGER NOT NULL DEFAULT 0"); err != nil {
		return fmt.Errorf("adding version to sessions: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// Makes ALTER TABLE migrations idempotent, so safe to run multiple times.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil // column already exists
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// Ping checks that the database is reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}
