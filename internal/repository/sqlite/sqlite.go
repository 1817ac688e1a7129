// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// The summarizer is a single-process API whose data is two small tables:
// users and their summaries. An embedded database keeps deployment to one
// binary and one file, and ":memory:" gives every test its own throwaway DB.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite, so no C toolchain is needed and
// cross-compilation just works.
//
// SCHEMA OVERVIEW:
//
//	users      id, name, email (unique, case-insensitive), password_hash?, google_id? (unique)
//	summaries  id, user_id → users, text, summary, style, language,
//	           share_id? (sparse unique), favorite, timestamps
//
// Owner scoping is enforced in SQL: every mutating statement has
// "WHERE id = ? AND user_id = ?", so a summary owned by someone else behaves
// exactly like one that does not exist.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a sql.DB connection pool. DB.Users and DB.Summaries return the
// table-specific repositories, which share this pool.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/summarizer.db" → file-based database (persistent)
//   - ":memory:"           → in-memory database (tests)
//
// IN-MEMORY DATABASES AND THE POOL:
// Every new connection to ":memory:" gets its OWN empty database. We pin the
// pool to a single connection so all queries see the same tables.
func New(dbPath string) (*DB, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		// _pragma parameters are applied by the driver on every new connection,
		// unlike a one-off Exec which only reaches the first one.
		dsn = dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate runs all database migrations.
//
// CREATE ... IF NOT EXISTS plus addColumnIfNotExists keeps every step
// idempotent, so migrate can run on every start-up.
func (db *DB) migrate() error {
	// Phase 1: accounts.
	// COLLATE NOCASE on the unique index makes "Ann@X.io" and "ann@x.io" collide
	// even if a caller forgets to lowercase.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL,
			password_hash TEXT,
			google_id     TEXT,
			avatar        TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email COLLATE NOCASE);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_google_id ON users(google_id)
			WHERE google_id IS NOT NULL;
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// Phase 1: summaries, always owned.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS summaries (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id),
			text       TEXT NOT NULL,
			summary    TEXT NOT NULL,
			style      TEXT NOT NULL DEFAULT 'Short',
			language   TEXT NOT NULL DEFAULT 'English',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_summaries_user_created ON summaries(user_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating summaries table: %w", err)
	}

	// Phase 2: sharing and favorites.
	if err := db.addColumnIfNotExists("summaries", "share_id", "TEXT"); err != nil {
		return fmt.Errorf("adding share_id to summaries: %w", err)
	}
	if err := db.addColumnIfNotExists("summaries", "favorite",
		"INTEGER NOT NULL DEFAULT 0"); err != nil {
		return fmt.Errorf("adding favorite to summaries: %w", err)
	}

	// Sparse unique index: only rows that actually have a share id take part.
	_, err = db.conn.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_summaries_share_id ON summaries(share_id)
			WHERE share_id IS NOT NULL;
	`)
	if err != nil {
		return fmt.Errorf("creating summaries share_id index: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// It makes ALTER TABLE migrations idempotent.
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
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	if se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	// Primary result code only (extended codes disabled on this connection).
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT &&
		strings.Contains(se.Error(), "UNIQUE")
}

// nullString maps "" to SQL NULL so optional columns stay sparse.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
