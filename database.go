package main

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// SessionRow is a gallery session as recorded for the operator.
type SessionRow struct {
	ID        string
	Name      string
	CreatedAt time.Time
	EndedAt   sql.NullTime
	Elapsed   float64 // seconds of headset time
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// one writer keeps SQLITE_BUSY out of the analytics flush
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		ended_at DATETIME,
		elapsed REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS analytics_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		session_id TEXT,
		data TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_type_time ON analytics_events(event_type, created_at);
	CREATE INDEX IF NOT EXISTS idx_events_session ON analytics_events(session_id);
	`
	if _, err := db.conn.Exec(schema); err != nil {
		Log.Errorw("db migration failed", "err", err)
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// GetSetting returns a stored setting, or "" when unset.
func (db *DB) GetSetting(key string) string {
	var v string
	err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&v)
	if err != nil {
		return ""
	}
	return v
}

// SetSetting stores a setting, replacing any previous value.
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

// CreateSession records a new session.
func (db *DB) CreateSession(id, name string, at time.Time) error {
	_, err := db.conn.Exec(
		"INSERT INTO sessions (id, name, created_at) VALUES (?, ?, ?)",
		id, name, at.UTC(),
	)
	return err
}

// AddSessionTime adds elapsed headset time to a session and stamps its end.
func (db *DB) AddSessionTime(id string, elapsed float64, at time.Time) error {
	res, err := db.conn.Exec(
		"UPDATE sessions SET elapsed = elapsed + ?, ended_at = ? WHERE id = ?",
		elapsed, at.UTC(), id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return nil
}

// GetSession returns a recorded session, or ErrSessionNotFound.
func (db *DB) GetSession(id string) (*SessionRow, error) {
	row := db.conn.QueryRow(
		"SELECT id, name, created_at, ended_at, elapsed FROM sessions WHERE id = ?", id,
	)
	s := &SessionRow{}
	err := row.Scan(&s.ID, &s.Name, &s.CreatedAt, &s.EndedAt, &s.Elapsed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return s, err
}
