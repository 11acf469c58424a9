package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bicho/models"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// DB represents a bounded pool of connections to one SQLite file
type DB struct {
	*sql.DB
	path   string
	schema *Schema
}

type options struct {
	maxOpenConns int
	busyTimeout  time.Duration
}

// Option tunes the connection pool
type Option func(*options)

// WithMaxOpenConns bounds the number of pooled connections
func WithMaxOpenConns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxOpenConns = n
		}
	}
}

// WithBusyTimeout sets how long a connection waits on a locked database
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.busyTimeout = d
		}
	}
}

// NewConnection opens the database file, creating it and its parent directory
// on first use, and verifies the pool with a ping
func NewConnection(ctx context.Context, path string, opts ...Option) (*DB, error) {
	o := options{maxOpenConns: 4, busyTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.WithField("path", path).Info("Creating new database")
	}

	pool, err := sql.Open(driverName, DSN(path, o.busyTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	pool.SetMaxOpenConns(o.maxOpenConns)
	pool.SetMaxIdleConns(o.maxOpenConns)

	// Test connection
	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.WithFields(log.Fields{
		"path":         path,
		"maxOpenConns": o.maxOpenConns,
	}).Debug("Database pool ready")

	return &DB{DB: pool, path: path, schema: NewSchema()}, nil
}

// DSN builds the driver data source name; pragmas ride on the DSN so every
// pooled connection gets them, not just the first one. Transactions begin
// IMMEDIATE: a deferred transaction that reads before writing gets SQLITE_BUSY
// without waiting on busy_timeout when another writer commits first.
func DSN(path string, busyTimeout time.Duration) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)&_txlock=immediate",
		path, busyTimeout.Milliseconds())
}

// Path returns the database file location
func (db *DB) Path() string {
	return db.path
}

// Schema returns the per-house table manager bound to this pool
func (db *DB) Schema() *Schema {
	return db.schema
}

// Acquire blocks until a pooled connection is available. The caller owns the
// connection until it calls Close on it.
func (db *DB) Acquire(ctx context.Context) (*sql.Conn, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, &models.StorageError{Op: "acquire connection", Err: err}
	}
	return conn, nil
}

// Close closes the database connection pool
func (db *DB) Close() error {
	return db.DB.Close()
}
