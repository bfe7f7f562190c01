// Package sqlite implements the repository interfaces on SQLite.
//
// SQLite is embedded — the whole store is one file next to the binary,
// which matches the scale of a club website with a few hundred members.
// We use modernc.org/sqlite, a pure-Go translation of SQLite, so builds
// need no C toolchain and cross-compile cleanly.
package sqlite

import (
	"database/sql"
	"fmt"

	// Side-effect import: registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements every repository
// interface. The server owns its lifecycle: New opens it, Close releases
// the file lock on shutdown.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" in tests for a throwaway database.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Force an immediate connection so a bad path fails here, not on the
	// first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode allows concurrent reads while a write is in progress,
	// which matters once multiple request goroutines share the pool.
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

// Close closes the connection pool. Always deferred wherever New is called.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps this
// idempotent; schema changes get appended as further statements.
func (db *DB) migrate() error {
	stmts := []struct {
		name string
		sql  string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				uid          TEXT PRIMARY KEY,
				display_name TEXT NOT NULL,
				email        TEXT NOT NULL DEFAULT '',
				photo_url    TEXT NOT NULL DEFAULT '',
				last_login   DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
		`},
		{"presence", `
			CREATE TABLE IF NOT EXISTS presence (
				id        TEXT PRIMARY KEY,
				name      TEXT NOT NULL,
				user_id   TEXT NOT NULL,
				photo_url TEXT NOT NULL DEFAULT '',
				timestamp DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_presence_timestamp ON presence(timestamp);
		`},
		{"orders", `
			CREATE TABLE IF NOT EXISTS orders (
				id              TEXT PRIMARY KEY,
				name            TEXT NOT NULL,
				user_id         TEXT NOT NULL,
				user_photo_url  TEXT,
				drink           TEXT,
				food_category   TEXT,
				food_item       TEXT,
				food_order      TEXT,
				special_request TEXT,
				timestamp       DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id);
		`},
		{"photos", `
			CREATE TABLE IF NOT EXISTS photos (
				id             TEXT PRIMARY KEY,
				image_url      TEXT NOT NULL,
				caption        TEXT NOT NULL,
				uploaded_by    TEXT NOT NULL,
				user_id        TEXT NOT NULL,
				user_photo_url TEXT NOT NULL DEFAULT '',
				timestamp      DATETIME NOT NULL,
				bundle_id      TEXT
			);
			CREATE INDEX IF NOT EXISTS idx_photos_user_id ON photos(user_id);
			CREATE INDEX IF NOT EXISTS idx_photos_bundle_id ON photos(bundle_id);
			CREATE INDEX IF NOT EXISTS idx_photos_timestamp ON photos(timestamp);
		`},
		{"photo_likes", `
			CREATE TABLE IF NOT EXISTS photo_likes (
				photo_id TEXT NOT NULL REFERENCES photos(id) ON DELETE CASCADE,
				user_id  TEXT NOT NULL,
				PRIMARY KEY (photo_id, user_id)
			);
		`},
		{"photo_comments", `
			CREATE TABLE IF NOT EXISTS photo_comments (
				id             TEXT PRIMARY KEY,
				photo_id       TEXT NOT NULL REFERENCES photos(id) ON DELETE CASCADE,
				text           TEXT NOT NULL,
				user_id        TEXT NOT NULL,
				user_name      TEXT NOT NULL,
				user_photo_url TEXT NOT NULL DEFAULT '',
				timestamp      DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_photo_comments_photo ON photo_comments(photo_id);
		`},
		{"stage_signups", `
			CREATE TABLE IF NOT EXISTS stage_signups (
				id             TEXT PRIMARY KEY,
				stage_number   INTEGER NOT NULL,
				user_id        TEXT NOT NULL,
				user_name      TEXT NOT NULL,
				user_photo_url TEXT NOT NULL DEFAULT '',
				is_guest       INTEGER NOT NULL DEFAULT 0,
				guest_name     TEXT NOT NULL DEFAULT '',
				guest_email    TEXT NOT NULL DEFAULT '',
				is_verified    INTEGER NOT NULL DEFAULT 0,
				timestamp      DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_stage_signups_stage ON stage_signups(stage_number);
		`},
		{"stage_state", `
			CREATE TABLE IF NOT EXISTS stage_state (
				stage_number        INTEGER PRIMARY KEY,
				locked_in_runner_id TEXT,
				payment_received    INTEGER NOT NULL DEFAULT 0
			);
		`},
		{"todos", `
			CREATE TABLE IF NOT EXISTS todos (
				id               TEXT PRIMARY KEY,
				text             TEXT NOT NULL,
				created_by       TEXT NOT NULL,
				created_by_name  TEXT NOT NULL,
				assigned_to      TEXT NOT NULL DEFAULT '',
				assigned_to_name TEXT NOT NULL DEFAULT '',
				is_completed     INTEGER NOT NULL DEFAULT 0,
				timestamp        DATETIME NOT NULL
			);
		`},
		{"admins", `
			CREATE TABLE IF NOT EXISTS admins (
				uid TEXT PRIMARY KEY
			);
		`},
		{"feedback", `
			CREATE TABLE IF NOT EXISTS feedback (
				id         TEXT PRIMARY KEY,
				type       TEXT NOT NULL,
				text       TEXT NOT NULL,
				page       TEXT NOT NULL DEFAULT '',
				user_id    TEXT NOT NULL,
				user_name  TEXT NOT NULL,
				user_email TEXT NOT NULL DEFAULT '',
				timestamp  DATETIME NOT NULL
			);
		`},
		{"races", `
			CREATE TABLE IF NOT EXISTS races (
				idx       INTEGER PRIMARY KEY,
				month     TEXT NOT NULL DEFAULT '',
				country   TEXT NOT NULL DEFAULT '',
				name      TEXT NOT NULL DEFAULT '',
				info      TEXT NOT NULL DEFAULT '',
				date      TEXT NOT NULL DEFAULT '',
				distances TEXT NOT NULL DEFAULT '',
				type      TEXT NOT NULL DEFAULT '',
				runners   TEXT NOT NULL DEFAULT '[]'
			);
		`},
		{"race_meta", `
			CREATE TABLE IF NOT EXISTS race_meta (
				id           INTEGER PRIMARY KEY CHECK (id = 1),
				last_updated INTEGER NOT NULL
			);
		`},
		{"race_comments", `
			CREATE TABLE IF NOT EXISTS race_comments (
				id             TEXT PRIMARY KEY,
				race_idx       INTEGER NOT NULL,
				text           TEXT NOT NULL,
				user_id        TEXT NOT NULL,
				user_name      TEXT NOT NULL,
				user_photo_url TEXT NOT NULL DEFAULT '',
				timestamp      DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_race_comments_idx ON race_comments(race_idx);
		`},
		{"race_excited", `
			CREATE TABLE IF NOT EXISTS race_excited (
				race_idx INTEGER NOT NULL,
				user_id  TEXT NOT NULL,
				PRIMARY KEY (race_idx, user_id)
			);
		`},
	}

	for _, s := range stmts {
		if _, err := db.conn.Exec(s.sql); err != nil {
			return fmt.Errorf("creating %s: %w", s.name, err)
		}
	}

	return nil
}

// nullable converts "" to NULL so optional order fields are stored as
// absent, not as empty strings.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
