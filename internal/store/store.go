// Package store provides the offline-first entity store: typed, durable,
// queryable local storage for every business collection, with reactive read
// access.
//
// The store is an embedded SQLite database (ncruces/go-sqlite3, WAL mode).
// Each collection is its own table keyed by id, holding the record as a JSON
// document. Every mutation commits the corresponding sync queue item in the
// same transaction and publishes a change event to collection subscribers.
//
// The database file is owned exclusively by the running process; no external
// writer is assumed.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/dukaanhq/dukaan-core/internal/outbox"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Collection names. Every mutable business collection listed here gets its
// own table and participates in sync queueing.
const (
	Products     = "products"
	Customers    = "customers"
	Sales        = "sales"
	Payments     = "payments"
	JobCards     = "job_cards"
	Favorites    = "favorites"
	Reminders    = "reminders"
	StoreProfile = "store_profile"
)

// collections lists every table created by InitSchema.
var collections = []string{
	Products, Customers, Sales, Payments, JobCards, Favorites, Reminders, StoreProfile,
}

var (
	// ErrDuplicateKey is returned by Add when the id already exists. The
	// caller must generate a fresh id and retry, or treat it as a logic bug.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNotFound is returned by Update when the target id is absent. Remove
	// never returns it: deletion is idempotent so retried sync operations do
	// not error on a second delete.
	ErrNotFound = errors.New("record not found")

	// ErrStorage wraps local database failures (disk full, corruption).
	// Unlike sync errors this class is user-visible: it threatens durability.
	ErrStorage = errors.New("storage failure")
)

// storageErr wraps a driver error under ErrStorage, keeping the cause.
func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// DB wraps the SQLite connection with the event bus and sync queue handle.
type DB struct {
	conn   *sql.DB
	path   string
	bus    *Bus
	queue  *outbox.Queue
	logger *log.Logger
}

// Open creates or opens the database at path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// The caller MUST call Close() when done.
func Open(path string, logger *log.Logger) (*DB, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{
		conn:   conn,
		path:   path,
		bus:    NewBus(),
		logger: logger,
	}
	db.queue = outbox.New(conn)

	// Enable WAL mode for concurrent reads
	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set busy timeout to 5 seconds
	if _, err := db.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Queue returns the sync queue sharing this database.
func (db *DB) Queue() *outbox.Queue {
	return db.queue
}

// Bus returns the change-event bus for collection subscriptions.
func (db *DB) Bus() *Bus {
	return db.bus
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates one table per collection plus the sync queue.
// Idempotent - safe to call multiple times.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	for _, name := range collections {
		// Table names come from the fixed registry above, never from input.
		schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_position ON %[1]s(position);
		`, name)

		if _, err := db.conn.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("failed to create table %s: %w", name, err)
		}
	}

	if err := db.queue.InitSchema(ctx); err != nil {
		return err
	}

	return nil
}

// Count returns the number of rows in a collection.
func (db *DB) Count(ctx context.Context, collection string) (int, error) {
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", collection)
	if err := db.conn.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, storageErr("count "+collection, err)
	}
	return count, nil
}

// insertRaw inserts a pre-serialized document without touching the sync
// queue. Used by seeding and legacy migration, which predate any remote
// backend and must not flood the outbox.
func (db *DB) insertRaw(ctx context.Context, collection, id string, data []byte, position int) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := fmt.Sprintf(
		"INSERT OR IGNORE INTO %s (id, data, position, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		collection)
	if _, err := db.conn.ExecContext(ctx, query, id, string(data), position, now, now); err != nil {
		return storageErr("insert into "+collection, err)
	}
	return nil
}
