package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/loomdb/loom/internal/record"
)

// Tx is an open write transaction. All mutations on a Tx become visible
// atomically at commit, at which point the commit pump delivers change
// sets to registered views.
//
// A Tx is only valid inside the Update callback that created it.
type Tx struct {
	s  *Store
	tx *sql.Tx
}

// Update runs fn inside a single write transaction and, on success,
// appends a commit-log entry and runs the notification pump synchronously.
//
// Update serializes all writers: commits are totally ordered and the pump
// observes them in exactly that order. If fn returns an error the
// transaction rolls back, no commit is logged, and no views are notified.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	if s.closed.Load() {
		return ErrClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	raw, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update: begin tx: %w", err)
	}
	defer raw.Rollback() // No-op if committed

	t := &Tx{s: s, tx: raw}
	s.activeTx.Store(t)
	defer s.activeTx.Store(nil)

	if err := fn(t); err != nil {
		return err
	}

	// Append the commit-log entry inside the same transaction so the
	// sequence number and the data changes are atomic.
	res, err := raw.ExecContext(ctx, `
		INSERT INTO commits (committed_at) VALUES (?)
	`, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("update: log commit: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("update: commit seq: %w", err)
	}

	if err := raw.Commit(); err != nil {
		return fmt.Errorf("update: commit: %w", err)
	}

	// Pump after COMMIT so views re-query committed state. writeMu is
	// still held, which keeps delivery order identical to commit order.
	s.notifier.pump(ctx, seq)

	return nil
}

// ActiveTx returns the write transaction currently open via Update, or
// nil. Positional list mutations from the public surface route through
// this so that a move outside a write transaction fails instead of
// silently opening one.
func (s *Store) ActiveTx() *Tx {
	return s.activeTx.Load()
}

// Put inserts or overwrites an object. Overwrites that do not change the
// canonical props are no-ops: the version is not bumped and no
// modification is reported downstream.
func (t *Tx) Put(ctx context.Context, class, id string, props record.Object) error {
	if t.s.catalog != nil {
		if err := t.s.catalog.Validate(class, props); err != nil {
			return fmt.Errorf("put %s/%s: %w", class, id, err)
		}
	}

	data, err := record.MarshalCanonical(props)
	if err != nil {
		return fmt.Errorf("put %s/%s: marshal props: %w", class, id, err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO objects (class, id, version, props)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(class, id) DO UPDATE SET
			version = objects.version + 1,
			props   = excluded.props
		WHERE objects.props <> excluded.props
	`, class, id, string(data))
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", class, id, err)
	}
	return nil
}

// Delete removes an object and every link row that referenced it, either
// as owner or as target. Lists that lose entries are renumbered so
// ordinals stay contiguous. Deleting a missing object is a no-op.
func (t *Tx) Delete(ctx context.Context, class, id string) error {
	_, err := t.tx.ExecContext(ctx, `
		DELETE FROM objects WHERE class = ? AND id = ?
	`, class, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", class, id, err)
	}

	// Collect lists that will lose entries before deleting the rows.
	lists, err := t.listsReferencing(ctx, class, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", class, id, err)
	}

	_, err = t.tx.ExecContext(ctx, `
		DELETE FROM links
		WHERE (owner_class = ? AND owner_id = ?)
		   OR (target_class = ? AND target_id = ?)
	`, class, id, class, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: links: %w", class, id, err)
	}

	for _, l := range lists {
		if err := t.renumber(ctx, l.ownerClass, l.ownerID, l.field); err != nil {
			return fmt.Errorf("delete %s/%s: renumber: %w", class, id, err)
		}
	}
	return nil
}

// LinkAppend adds a target to the end of an owner's ordered list.
// Duplicate targets are allowed; each append is an independent entry.
func (t *Tx) LinkAppend(ctx context.Context, ownerClass, ownerID, field, targetClass, targetID string) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO links (owner_class, owner_id, field, position, target_class, target_id)
		VALUES (?, ?, ?,
			(SELECT COUNT(*) FROM links
			 WHERE owner_class = ? AND owner_id = ? AND field = ?),
			?, ?)
	`, ownerClass, ownerID, field, ownerClass, ownerID, field, targetClass, targetID)
	if err != nil {
		return fmt.Errorf("link append %s/%s.%s: %w", ownerClass, ownerID, field, err)
	}
	return nil
}

// LinkRemove removes the entry at the given position and shifts every
// later entry down by one.
func (t *Tx) LinkRemove(ctx context.Context, ownerClass, ownerID, field string, position int) error {
	res, err := t.tx.ExecContext(ctx, `
		DELETE FROM links
		WHERE owner_class = ? AND owner_id = ? AND field = ? AND position = ?
	`, ownerClass, ownerID, field, position)
	if err != nil {
		return fmt.Errorf("link remove %s/%s.%s[%d]: %w", ownerClass, ownerID, field, position, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("link remove %s/%s.%s[%d]: %w", ownerClass, ownerID, field, position, err)
	}
	if n == 0 {
		return fmt.Errorf("link remove %s/%s.%s[%d]: %w", ownerClass, ownerID, field, position, ErrNotFound)
	}

	_, err = t.tx.ExecContext(ctx, `
		UPDATE links SET position = position - 1
		WHERE owner_class = ? AND owner_id = ? AND field = ? AND position > ?
	`, ownerClass, ownerID, field, position)
	if err != nil {
		return fmt.Errorf("link remove %s/%s.%s[%d]: shift: %w", ownerClass, ownerID, field, position, err)
	}
	return nil
}

// LinkMove relocates the entry at position from to position to, shifting
// every entry strictly between the two by one so ordinals stay contiguous.
// The whole renumbering is atomic within the enclosing transaction.
func (t *Tx) LinkMove(ctx context.Context, ownerClass, ownerID, field string, from, to int) error {
	if from == to {
		return nil
	}

	// Park the moving entry outside the ordinal range, shift the span
	// between the two positions, then land the entry at its destination.
	res, err := t.tx.ExecContext(ctx, `
		UPDATE links SET position = -1
		WHERE owner_class = ? AND owner_id = ? AND field = ? AND position = ?
	`, ownerClass, ownerID, field, from)
	if err != nil {
		return fmt.Errorf("link move %s/%s.%s: %w", ownerClass, ownerID, field, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("link move %s/%s.%s: %w", ownerClass, ownerID, field, err)
	}
	if n == 0 {
		return fmt.Errorf("link move %s/%s.%s[%d]: %w", ownerClass, ownerID, field, from, ErrNotFound)
	}

	if from < to {
		_, err = t.tx.ExecContext(ctx, `
			UPDATE links SET position = position - 1
			WHERE owner_class = ? AND owner_id = ? AND field = ?
			  AND position > ? AND position <= ?
		`, ownerClass, ownerID, field, from, to)
	} else {
		_, err = t.tx.ExecContext(ctx, `
			UPDATE links SET position = position + 1
			WHERE owner_class = ? AND owner_id = ? AND field = ?
			  AND position >= ? AND position < ?
		`, ownerClass, ownerID, field, to, from)
	}
	if err != nil {
		return fmt.Errorf("link move %s/%s.%s: shift: %w", ownerClass, ownerID, field, err)
	}

	_, err = t.tx.ExecContext(ctx, `
		UPDATE links SET position = ?
		WHERE owner_class = ? AND owner_id = ? AND field = ? AND position = -1
	`, to, ownerClass, ownerID, field)
	if err != nil {
		return fmt.Errorf("link move %s/%s.%s: place: %w", ownerClass, ownerID, field, err)
	}
	return nil
}

// LinkMove is the store-level entry point for positional moves. It
// requires an already-open write transaction and fails with
// ErrNoWriteTransaction otherwise - it never opens one implicitly.
func (s *Store) LinkMove(ctx context.Context, ownerClass, ownerID, field string, from, to int) error {
	t := s.ActiveTx()
	if t == nil {
		return ErrNoWriteTransaction
	}
	return t.LinkMove(ctx, ownerClass, ownerID, field, from, to)
}

// LinkCount returns the entry count of an owner's ordered list as seen
// by this transaction, uncommitted mutations included. The pool is
// capped at one connection, so reads issued while a write transaction is
// open must go through the transaction itself.
func (t *Tx) LinkCount(ctx context.Context, ownerClass, ownerID, field string) (int, error) {
	var count int
	err := t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM links
		WHERE owner_class = ? AND owner_id = ? AND field = ?
	`, ownerClass, ownerID, field).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("link count %s/%s.%s: %w", ownerClass, ownerID, field, err)
	}
	return count, nil
}

// LinkTargets returns the ordered target ids of an owner's list as seen
// by this transaction.
func (t *Tx) LinkTargets(ctx context.Context, ownerClass, ownerID, field string) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT target_id FROM links
		WHERE owner_class = ? AND owner_id = ? AND field = ?
		ORDER BY position ASC
	`, ownerClass, ownerID, field)
	if err != nil {
		return nil, fmt.Errorf("link targets %s/%s.%s: %w", ownerClass, ownerID, field, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("link targets %s/%s.%s: %w", ownerClass, ownerID, field, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("link targets %s/%s.%s: %w", ownerClass, ownerID, field, err)
	}
	return ids, nil
}

type listKey struct {
	ownerClass, ownerID, field string
}

// listsReferencing returns the distinct lists containing the given object
// as a target.
func (t *Tx) listsReferencing(ctx context.Context, class, id string) ([]listKey, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT DISTINCT owner_class, owner_id, field FROM links
		WHERE target_class = ? AND target_id = ?
	`, class, id)
	if err != nil {
		return nil, fmt.Errorf("lists referencing: %w", err)
	}
	defer rows.Close()

	var lists []listKey
	for rows.Next() {
		var l listKey
		if err := rows.Scan(&l.ownerClass, &l.ownerID, &l.field); err != nil {
			return nil, fmt.Errorf("lists referencing: %w", err)
		}
		lists = append(lists, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lists referencing: %w", err)
	}
	return lists, nil
}

// renumber rewrites a list's positions to contiguous 0..N-1, preserving
// the current relative order.
func (t *Tx) renumber(ctx context.Context, ownerClass, ownerID, field string) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE links SET position = (
			SELECT COUNT(*) FROM links l2
			WHERE l2.owner_class = links.owner_class
			  AND l2.owner_id    = links.owner_id
			  AND l2.field       = links.field
			  AND l2.position    < links.position
		)
		WHERE owner_class = ? AND owner_id = ? AND field = ?
	`, ownerClass, ownerID, field)
	if err != nil {
		return fmt.Errorf("renumber %s/%s.%s: %w", ownerClass, ownerID, field, err)
	}
	return nil
}
