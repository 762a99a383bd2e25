package settings

import (
	"database/sql"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS settings (
	ns    TEXT NOT NULL,
	key   TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (ns, key)
);`

// DB is the SQLite settings database shared by all namespaces.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the settings database at path with WAL journal
// mode and a 5-second busy timeout, and applies the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()

			return nil, fmt.Errorf("apply %q on %s: %w", pragma, path, err)
		}
	}

	if _, err := db.Exec(schemaDDL); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("apply schema on %s: %w", path, err)
	}

	return &DB{db: db}, nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Namespace returns a Store scoped to one subsystem namespace.
func (d *DB) Namespace(ns string) *Namespace {
	return &Namespace{db: d.db, ns: ns}
}

// Namespace is a Store view over one subsystem's rows.
type Namespace struct {
	db *sql.DB
	ns string
}

// GetString returns the stored value or fallback when the key is absent.
func (n *Namespace) GetString(key, fallback string) string {
	var value string

	err := n.db.QueryRow(
		`SELECT value FROM settings WHERE ns = ? AND key = ?`, n.ns, key,
	).Scan(&value)
	if err != nil {
		return fallback
	}

	return value
}

// SetString stores a string value, replacing any previous value.
func (n *Namespace) SetString(key, value string) error {
	_, err := n.db.Exec(
		`INSERT INTO settings (ns, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (ns, key) DO UPDATE SET value = excluded.value`,
		n.ns, key, value,
	)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", n.ns, key, err)
	}

	return nil
}

// GetInt returns the stored integer or fallback when the key is absent or
// not numeric.
func (n *Namespace) GetInt(key string, fallback int) int {
	raw := n.GetString(key, "")
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

// SetInt stores an integer value.
func (n *Namespace) SetInt(key string, value int) error {
	return n.SetString(key, strconv.Itoa(value))
}
