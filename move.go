package loom

import (
	"context"

	"github.com/loomdb/loom/internal/store"
)

// Move relocates the element at index from to index to.
//
// On a persisted *List this is an atomic positional reorder against the
// relationship-list primitive: intervening ordinals shift by one so
// positions stay contiguous, and the caller must already be inside a
// write transaction (the store fails otherwise, it never opens one).
// Bounds are evaluated through that transaction, so entries appended
// earlier in the same transaction count.
// On an in-memory *Slice it falls back to remove-then-insert splice
// semantics: for to > from the element lands at to interpreted against
// the shrunk sequence.
//
// Move synthesizes no notification. For a store-backed list the commit
// pump is the sole source of subsequent change sets.
func Move(ctx context.Context, list any, from, to int) error {
	switch l := list.(type) {
	case *List:
		tx := l.view.db.store.ActiveTx()
		if tx == nil {
			return store.ErrNoWriteTransaction
		}
		n, err := tx.LinkCount(ctx, l.ownerClass, l.ownerID, l.field)
		if err != nil {
			return err
		}
		if err := checkRange(from, to, n); err != nil {
			return err
		}
		return tx.LinkMove(ctx, l.ownerClass, l.ownerID, l.field, from, to)

	case *Slice:
		if err := checkRange(from, to, l.Len()); err != nil {
			return err
		}
		l.splice(from, to)
		return nil

	default:
		return notManaged("list", list, "ordered collection (store-backed list or in-memory slice)")
	}
}

// MoveElement locates element's current index in list, then delegates to
// Move. For a *List the element is the target object id and the lookup
// runs inside the caller's open write transaction; for a *Slice it is
// matched by equality. A missing element fails with
// IndexOutOfRangeError and no mutation occurs.
func MoveElement(ctx context.Context, list any, element any, to int) error {
	switch l := list.(type) {
	case *List:
		id, ok := element.(string)
		if !ok {
			return notManaged("element", element, "target object id (string)")
		}
		tx := l.view.db.store.ActiveTx()
		if tx == nil {
			return store.ErrNoWriteTransaction
		}
		ids, err := tx.LinkTargets(ctx, l.ownerClass, l.ownerID, l.field)
		if err != nil {
			return err
		}
		for i, candidate := range ids {
			if candidate == id {
				return Move(ctx, l, i, to)
			}
		}
		return &IndexOutOfRangeError{Index: -1, Count: len(ids)}

	case *Slice:
		for i, candidate := range l.elems {
			if candidate == element {
				return Move(ctx, l, i, to)
			}
		}
		return &IndexOutOfRangeError{Index: -1, Count: l.Len()}

	default:
		return notManaged("list", list, "ordered collection (store-backed list or in-memory slice)")
	}
}

// checkRange validates both move indices against [0, count-1].
// Violations are reported before any mutation happens.
func checkRange(from, to, count int) error {
	if from < 0 || from >= count {
		return &IndexOutOfRangeError{Index: from, Count: count}
	}
	if to < 0 || to >= count {
		return &IndexOutOfRangeError{Index: to, Count: count}
	}
	return nil
}
