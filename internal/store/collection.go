package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dukaanhq/dukaan-core/internal/outbox"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Record is any entity that can live in a collection.
type Record interface {
	RecordID() string
}

// Collection is a typed view over one collection table. All operations are
// durable once they return: the row and its sync queue item commit in a
// single transaction, then subscribers are notified.
type Collection[T Record] struct {
	db         *DB
	name       string
	byPosition bool
}

// NewCollection binds a typed collection to its table. The name must come
// from the registry in this package.
func NewCollection[T Record](db *DB, name string) *Collection[T] {
	return &Collection[T]{db: db, name: name}
}

// NewOrderedCollection is NewCollection for collections listed by an
// explicit position field (favorites) instead of insertion order.
func NewOrderedCollection[T Record](db *DB, name string) *Collection[T] {
	return &Collection[T]{db: db, name: name, byPosition: true}
}

// Name returns the collection's table name.
func (c *Collection[T]) Name() string { return c.name }

// List returns every record, in insertion order unless the collection is
// position-ordered.
func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	order := "rowid"
	if c.byPosition {
		order = "position, rowid"
	}
	query := fmt.Sprintf("SELECT data FROM %s ORDER BY %s", c.name, order)

	rows, err := c.db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, storageErr("list "+c.name, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, storageErr("scan "+c.name, err)
		}
		var item T
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			return nil, fmt.Errorf("corrupt record in %s: %w", c.name, err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// Get returns one record by id, or ErrNotFound.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T

	var data string
	query := fmt.Sprintf("SELECT data FROM %s WHERE id = ?", c.name)
	err := c.db.conn.QueryRowContext(ctx, query, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, fmt.Errorf("%s/%s: %w", c.name, id, ErrNotFound)
	}
	if err != nil {
		return zero, storageErr("get "+c.name, err)
	}

	var item T
	if err := json.Unmarshal([]byte(data), &item); err != nil {
		return zero, fmt.Errorf("corrupt record %s/%s: %w", c.name, id, err)
	}
	return item, nil
}

// Add inserts a new record. Returns ErrDuplicateKey if the id already
// exists. The insert and its outbox item commit together.
func (c *Collection[T]) Add(ctx context.Context, item T) error {
	id := item.RecordID()
	if id == "" {
		return fmt.Errorf("%s: record id is empty", c.name)
	}

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", c.name, err)
	}

	tx, err := c.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin add "+c.name, err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = ?", c.name)
	if err := tx.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return storageErr("check id in "+c.name, err)
	}
	if exists > 0 {
		return fmt.Errorf("%s/%s: %w", c.name, id, ErrDuplicateKey)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	insert := fmt.Sprintf(
		"INSERT INTO %s (id, data, position, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		c.name)
	if _, err := tx.ExecContext(ctx, insert, id, string(data), c.position(data), now, now); err != nil {
		return storageErr("insert into "+c.name, err)
	}

	if _, err := c.db.queue.EnqueueTx(ctx, tx, c.name, outbox.OpAdd, id, data); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit add "+c.name, err)
	}

	c.db.bus.Publish(Event{Collection: c.name, Op: outbox.OpAdd, RecordID: id})
	return nil
}

// Update merges the given fields into the stored record (shallow merge: the
// caller supplies exactly the fields changing) and returns the merged
// record. Returns ErrNotFound if the id is absent.
//
// The outbox item carries the full merged document, so replaying the queue
// against a fresh remote mirror reproduces the final state regardless of
// which fields each update touched.
func (c *Collection[T]) Update(ctx context.Context, id string, partial map[string]any) (T, error) {
	var zero T

	tx, err := c.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return zero, storageErr("begin update "+c.name, err)
	}
	defer func() { _ = tx.Rollback() }()

	var data string
	query := fmt.Sprintf("SELECT data FROM %s WHERE id = ?", c.name)
	err = tx.QueryRowContext(ctx, query, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, fmt.Errorf("%s/%s: %w", c.name, id, ErrNotFound)
	}
	if err != nil {
		return zero, storageErr("get "+c.name, err)
	}

	doc := []byte(data)

	// Apply fields in a stable order so merged documents are deterministic.
	keys := make([]string, 0, len(partial))
	for k := range partial {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		doc, err = sjson.SetBytes(doc, k, partial[k])
		if err != nil {
			return zero, fmt.Errorf("failed to merge field %q into %s/%s: %w", k, c.name, id, err)
		}
	}

	var item T
	if err := json.Unmarshal(doc, &item); err != nil {
		return zero, fmt.Errorf("merged record %s/%s is invalid: %w", c.name, id, err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	update := fmt.Sprintf("UPDATE %s SET data = ?, position = ?, updated_at = ? WHERE id = ?", c.name)
	if _, err := tx.ExecContext(ctx, update, string(doc), c.position(doc), now, id); err != nil {
		return zero, storageErr("update "+c.name, err)
	}

	if _, err := c.db.queue.EnqueueTx(ctx, tx, c.name, outbox.OpUpdate, id, doc); err != nil {
		return zero, err
	}

	if err := tx.Commit(); err != nil {
		return zero, storageErr("commit update "+c.name, err)
	}

	c.db.bus.Publish(Event{Collection: c.name, Op: outbox.OpUpdate, RecordID: id})
	return item, nil
}

// Remove deletes a record. Removing an absent id is a silent no-op:
// deletion is idempotent, so a retried sync delete never errors.
func (c *Collection[T]) Remove(ctx context.Context, id string) error {
	tx, err := c.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin remove "+c.name, err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", c.name)
	res, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return storageErr("delete from "+c.name, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storageErr("delete from "+c.name, err)
	}
	if affected == 0 {
		// Nothing deleted: no outbox item, no event.
		return nil
	}

	if _, err := c.db.queue.EnqueueTx(ctx, tx, c.name, outbox.OpDelete, id, nil); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit remove "+c.name, err)
	}

	c.db.bus.Publish(Event{Collection: c.name, Op: outbox.OpDelete, RecordID: id})
	return nil
}

// Subscribe registers for change events on this collection.
func (c *Collection[T]) Subscribe() (<-chan Event, func()) {
	return c.db.bus.Subscribe(c.name)
}

// position extracts the ordering field from a document for position-ordered
// collections; other collections always store 0.
func (c *Collection[T]) position(doc []byte) int {
	if !c.byPosition {
		return 0
	}
	return int(gjson.GetBytes(doc, "position").Int())
}
