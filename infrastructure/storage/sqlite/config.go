// Package sqlite provides SQLite-backed implementations of the negotiation
// and event stores, suitable for single-node deployments and local tooling.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	// Registers the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"
)

// Storage errors.
var (
	// ErrConnectionFailed indicates the database could not be opened.
	ErrConnectionFailed = errors.New("sqlite connection failed")
)

// Config holds SQLite settings.
type Config struct {
	// Path is the database file path. Ignored when InMemory is set.
	Path string

	// InMemory uses an in-memory database, private to the connection.
	InMemory bool

	// AutoMigrate creates the tables on open.
	AutoMigrate bool
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Path:        "towow.db",
		AutoMigrate: true,
	}
}

// Option configures the connection.
type Option func(*Config)

// WithPath sets the database file path.
func WithPath(path string) Option {
	return func(c *Config) { c.Path = path }
}

// WithInMemory switches to an in-memory database.
func WithInMemory(inMemory bool) Option {
	return func(c *Config) { c.InMemory = inMemory }
}

// WithAutoMigrate enables or disables automatic schema creation.
func WithAutoMigrate(enabled bool) Option {
	return func(c *Config) { c.AutoMigrate = enabled }
}

// openDB opens the database and applies pragmas for concurrent readers.
func openDB(cfg Config) (*sql.DB, error) {
	dsn := cfg.Path
	if cfg.InMemory {
		dsn = ":memory:"
	}
	dsn += "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	// SQLite serializes writers; one open connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	return db, nil
}
