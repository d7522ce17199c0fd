// Package outbox implements the durable sync queue: an append-only record of
// every local mutation that must eventually reach the remote backend,
// independent of connectivity.
//
// Items are appended with an auto-incrementing id and drained in FIFO order.
// Order matters: later operations on the same record (an update after an add,
// a delete after an update) must replay in original order or the remote copy
// is corrupted. An item leaves the queue only through PurgeSynced after a
// confirmed push, or through an explicit user-initiated Discard.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Op is the kind of mutation an item describes.
type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Item is one pending (or recently synced) mutation.
type Item struct {
	ID         int64           `json:"id"`
	Collection string          `json:"collection"`
	Op         Op              `json:"op"`
	RecordID   string          `json:"recordId"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	Synced     bool            `json:"synced"`
	Attempts   int             `json:"attempts"`
	LastError  string          `json:"lastError,omitempty"`
}

// Key identifies the record an item targets, for per-record ordering checks.
func (it Item) Key() string {
	return it.Collection + "/" + it.RecordID
}

// Queue provides the sync queue operations over a shared SQLite handle.
type Queue struct {
	db *sql.DB
}

// New creates a Queue on an open database connection. The connection is
// shared with the entity store so a mutation and its queue item can commit
// in one transaction.
func New(db *sql.DB) *Queue {
	return &Queue{db: db}
}

// InitSchema creates the sync_queue table if it doesn't exist. Idempotent.
func (q *Queue) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sync_queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		op TEXT NOT NULL,
		record_id TEXT NOT NULL,
		payload TEXT,
		created_at TEXT NOT NULL,
		synced INTEGER NOT NULL DEFAULT 0,
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_sync_queue_synced ON sync_queue(synced);
	CREATE INDEX IF NOT EXISTS idx_sync_queue_record ON sync_queue(collection, record_id);
	`

	if _, err := q.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize sync queue schema: %w", err)
	}
	return nil
}

const enqueueSQL = `
INSERT INTO sync_queue (collection, op, record_id, payload, created_at, synced)
VALUES (?, ?, ?, ?, ?, 0)`

// Enqueue appends a new pending item.
func (q *Queue) Enqueue(ctx context.Context, collection string, op Op, recordID string, payload []byte) (int64, error) {
	res, err := q.db.ExecContext(ctx, enqueueSQL,
		collection, string(op), recordID, string(payload), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue %s %s/%s: %w", op, collection, recordID, err)
	}
	return res.LastInsertId()
}

// EnqueueTx appends a new pending item inside an existing transaction.
// The entity store uses this so the local write and its queue item are
// durable together: a crash after commit leaves the item recoverable with
// synced = 0.
func (q *Queue) EnqueueTx(ctx context.Context, tx *sql.Tx, collection string, op Op, recordID string, payload []byte) (int64, error) {
	res, err := tx.ExecContext(ctx, enqueueSQL,
		collection, string(op), recordID, string(payload), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue %s %s/%s: %w", op, collection, recordID, err)
	}
	return res.LastInsertId()
}

// ListPending returns all unsynced items in enqueue (FIFO) order.
func (q *Queue) ListPending(ctx context.Context) ([]Item, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, collection, op, record_id, payload, created_at, synced, attempts, last_error
		FROM sync_queue WHERE synced = 0 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// List returns every item, synced or not, in enqueue order. Used by the
// diagnostics surface.
func (q *Queue) List(ctx context.Context) ([]Item, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, collection, op, record_id, payload, created_at, synced, attempts, last_error
		FROM sync_queue ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func scanItems(rows *sql.Rows) ([]Item, error) {
	var items []Item
	for rows.Next() {
		var (
			it        Item
			op        string
			payload   string
			createdAt string
			synced    int
		)
		if err := rows.Scan(&it.ID, &it.Collection, &op, &it.RecordID, &payload, &createdAt, &synced, &it.Attempts, &it.LastError); err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		it.Op = Op(op)
		if payload != "" {
			it.Payload = json.RawMessage(payload)
		}
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			it.CreatedAt = ts
		}
		it.Synced = synced != 0
		items = append(items, it)
	}
	return items, rows.Err()
}

// PendingCount returns the number of unsynced items.
func (q *Queue) PendingCount(ctx context.Context) (int, error) {
	var count int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue WHERE synced = 0`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending items: %w", err)
	}
	return count, nil
}

// MarkSynced flips synced to 1 for the given ids. Idempotent: marking an
// already-synced or missing id is not an error.
func (q *Queue) MarkSynced(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := fmt.Sprintf("UPDATE sync_queue SET synced = 1 WHERE id IN (%s)", placeholders)
	if _, err := q.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark items synced: %w", err)
	}
	return nil
}

// RecordFailure increments an item's attempt counter and stores the push
// error, so observers can flag chronically-failing items.
func (q *Queue) RecordFailure(ctx context.Context, id int64, pushErr error) error {
	msg := ""
	if pushErr != nil {
		msg = pushErr.Error()
	}
	if _, err := q.db.ExecContext(ctx,
		`UPDATE sync_queue SET attempts = attempts + 1, last_error = ? WHERE id = ?`, msg, id); err != nil {
		return fmt.Errorf("failed to record failure for item %d: %w", id, err)
	}
	return nil
}

// PurgeSynced deletes all items where synced = 1. It never deletes unsynced
// items and is safe to call at any time. Returns the number of rows removed.
func (q *Queue) PurgeSynced(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE synced = 1`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge synced items: %w", err)
	}
	return res.RowsAffected()
}

// Discard force-removes a single item regardless of synced state. This is
// the explicit user-initiated "give up on this" action, distinct from the
// normal sync success path.
func (q *Queue) Discard(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to discard item %d: %w", id, err)
	}
	return nil
}
