package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/loomdb/loom/internal/record"
)

func TestPut_InsertsWithVersionOne(t *testing.T) {
	s := newTestStore(t)
	putObject(t, s, "Dog", "dog-1", map[string]any{"Name": "Rex", "Age": 4})

	obj, version, err := s.GetObject(context.Background(), "Dog", "dog-1")
	if err != nil {
		t.Fatalf("GetObject() failed: %v", err)
	}
	if version != 1 {
		t.Errorf("version = %d, want 1", version)
	}
	if obj["Name"] != record.String("Rex") {
		t.Errorf("Name = %v, want Rex", obj["Name"])
	}
	if obj["Age"] != record.Int(4) {
		t.Errorf("Age = %v, want 4", obj["Age"])
	}
}

func TestPut_OverwriteBumpsVersion(t *testing.T) {
	s := newTestStore(t)
	putObject(t, s, "Dog", "dog-1", map[string]any{"Age": 4})
	putObject(t, s, "Dog", "dog-1", map[string]any{"Age": 5})

	_, version, err := s.GetObject(context.Background(), "Dog", "dog-1")
	if err != nil {
		t.Fatalf("GetObject() failed: %v", err)
	}
	if version != 2 {
		t.Errorf("version after change = %d, want 2", version)
	}
}

func TestPut_IdenticalPropsIsNoOp(t *testing.T) {
	s := newTestStore(t)
	putObject(t, s, "Dog", "dog-1", map[string]any{"Name": "Rex", "Age": 4})
	// Same props, different map ordering; canonical form is identical.
	putObject(t, s, "Dog", "dog-1", map[string]any{"Age": 4, "Name": "Rex"})

	_, version, err := s.GetObject(context.Background(), "Dog", "dog-1")
	if err != nil {
		t.Fatalf("GetObject() failed: %v", err)
	}
	if version != 1 {
		t.Errorf("version after identical overwrite = %d, want 1", version)
	}
}

func TestUpdate_RollbackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := fmt.Errorf("boom")

	err := s.Update(ctx, func(tx *Tx) error {
		obj, _ := record.ObjectFromNative(map[string]any{"Name": "Rex"})
		if err := tx.Put(ctx, "Dog", "dog-1", obj); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update() = %v, want boom", err)
	}

	if _, _, err := s.GetObject(ctx, "Dog", "dog-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetObject() after rollback = %v, want ErrNotFound", err)
	}
	seq, err := s.LastCommit(ctx)
	if err != nil {
		t.Fatalf("LastCommit() failed: %v", err)
	}
	if seq != 0 {
		t.Errorf("LastCommit() after rollback = %d, want 0", seq)
	}
}

func TestDelete_RemovesObjectAndLinks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"owner", "a", "b", "c"} {
		putObject(t, s, "Dog", id, map[string]any{"Name": id})
	}
	appendLinks(t, s, "Dog", "owner", "Puppies", "Dog", "a", "b", "c")

	err := s.Update(ctx, func(tx *Tx) error {
		return tx.Delete(ctx, "Dog", "b")
	})
	if err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	if _, _, err := s.GetObject(ctx, "Dog", "b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetObject(b) = %v, want ErrNotFound", err)
	}

	// The surviving entries keep their order with contiguous positions.
	got := listIDs(t, s, "Dog", "owner", "Puppies", "Dog")
	if !equalStrings(got, []string{"a", "c"}) {
		t.Errorf("list after delete = %v, want [a c]", got)
	}
	var bad int
	err = s.db.QueryRow(`
		SELECT COUNT(*) FROM links
		WHERE owner_class = 'Dog' AND owner_id = 'owner' AND field = 'Puppies'
		  AND position NOT IN (0, 1)
	`).Scan(&bad)
	if err != nil {
		t.Fatalf("position query failed: %v", err)
	}
	if bad != 0 {
		t.Errorf("%d link rows with non-contiguous positions", bad)
	}
}

func TestDelete_OwnerCascadesOwnList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	putObject(t, s, "Dog", "owner", map[string]any{"Name": "Rex"})
	putObject(t, s, "Dog", "a", map[string]any{"Name": "a"})
	appendLinks(t, s, "Dog", "owner", "Puppies", "Dog", "a")

	err := s.Update(ctx, func(tx *Tx) error {
		return tx.Delete(ctx, "Dog", "owner")
	})
	if err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	count, err := s.LinkCount(ctx, "Dog", "owner", "Puppies")
	if err != nil {
		t.Fatalf("LinkCount() failed: %v", err)
	}
	if count != 0 {
		t.Errorf("LinkCount() after owner delete = %d, want 0", count)
	}
}

func TestDelete_MissingObjectIsNoOp(t *testing.T) {
	s := newTestStore(t)
	err := s.Update(context.Background(), func(tx *Tx) error {
		return tx.Delete(context.Background(), "Dog", "ghost")
	})
	if err != nil {
		t.Errorf("Delete() of missing object = %v, want nil", err)
	}
}

func TestLinkAppend_PositionsAreSequential(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"owner", "a", "b", "c"} {
		putObject(t, s, "Dog", id, map[string]any{"Name": id})
	}
	appendLinks(t, s, "Dog", "owner", "Puppies", "Dog", "a", "b", "c")

	count, err := s.LinkCount(ctx, "Dog", "owner", "Puppies")
	if err != nil {
		t.Fatalf("LinkCount() failed: %v", err)
	}
	if count != 3 {
		t.Errorf("LinkCount() = %d, want 3", count)
	}
	got := listIDs(t, s, "Dog", "owner", "Puppies", "Dog")
	if !equalStrings(got, []string{"a", "b", "c"}) {
		t.Errorf("list = %v, want [a b c]", got)
	}
}

func TestLinkAppend_AllowsDuplicates(t *testing.T) {
	s := newTestStore(t)

	putObject(t, s, "Dog", "owner", map[string]any{"Name": "Rex"})
	putObject(t, s, "Dog", "a", map[string]any{"Name": "a"})
	appendLinks(t, s, "Dog", "owner", "Puppies", "Dog", "a", "a")

	got := listIDs(t, s, "Dog", "owner", "Puppies", "Dog")
	if !equalStrings(got, []string{"a", "a"}) {
		t.Errorf("list = %v, want [a a]", got)
	}
}

func TestLinkRemove_ShiftsLaterEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"owner", "a", "b", "c"} {
		putObject(t, s, "Dog", id, map[string]any{"Name": id})
	}
	appendLinks(t, s, "Dog", "owner", "Puppies", "Dog", "a", "b", "c")

	err := s.Update(ctx, func(tx *Tx) error {
		return tx.LinkRemove(ctx, "Dog", "owner", "Puppies", 0)
	})
	if err != nil {
		t.Fatalf("LinkRemove() failed: %v", err)
	}

	got := listIDs(t, s, "Dog", "owner", "Puppies", "Dog")
	if !equalStrings(got, []string{"b", "c"}) {
		t.Errorf("list after remove = %v, want [b c]", got)
	}
}

func TestLinkRemove_MissingPosition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	putObject(t, s, "Dog", "owner", map[string]any{"Name": "Rex"})

	err := s.Update(ctx, func(tx *Tx) error {
		return tx.LinkRemove(ctx, "Dog", "owner", "Puppies", 5)
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("LinkRemove(5) = %v, want ErrNotFound", err)
	}
}

func TestLinkMove_Forward(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"owner", "a", "b", "c", "d"} {
		putObject(t, s, "Dog", id, map[string]any{"Name": id})
	}
	appendLinks(t, s, "Dog", "owner", "Puppies", "Dog", "a", "b", "c", "d")

	err := s.Update(ctx, func(tx *Tx) error {
		return tx.LinkMove(ctx, "Dog", "owner", "Puppies", 0, 2)
	})
	if err != nil {
		t.Fatalf("LinkMove() failed: %v", err)
	}

	got := listIDs(t, s, "Dog", "owner", "Puppies", "Dog")
	if !equalStrings(got, []string{"b", "c", "a", "d"}) {
		t.Errorf("list after move 0->2 = %v, want [b c a d]", got)
	}
}

func TestLinkMove_Backward(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"owner", "a", "b", "c", "d"} {
		putObject(t, s, "Dog", id, map[string]any{"Name": id})
	}
	appendLinks(t, s, "Dog", "owner", "Puppies", "Dog", "a", "b", "c", "d")

	err := s.Update(ctx, func(tx *Tx) error {
		return tx.LinkMove(ctx, "Dog", "owner", "Puppies", 3, 1)
	})
	if err != nil {
		t.Fatalf("LinkMove() failed: %v", err)
	}

	got := listIDs(t, s, "Dog", "owner", "Puppies", "Dog")
	if !equalStrings(got, []string{"a", "d", "b", "c"}) {
		t.Errorf("list after move 3->1 = %v, want [a d b c]", got)
	}
}

func TestLinkMove_SamePositionIsNoOp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	putObject(t, s, "Dog", "owner", map[string]any{"Name": "Rex"})
	putObject(t, s, "Dog", "a", map[string]any{"Name": "a"})
	appendLinks(t, s, "Dog", "owner", "Puppies", "Dog", "a")

	err := s.Update(ctx, func(tx *Tx) error {
		return tx.LinkMove(ctx, "Dog", "owner", "Puppies", 0, 0)
	})
	if err != nil {
		t.Errorf("LinkMove(0, 0) = %v, want nil", err)
	}
}

func TestLinkMove_MissingPosition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	putObject(t, s, "Dog", "owner", map[string]any{"Name": "Rex"})

	err := s.Update(ctx, func(tx *Tx) error {
		return tx.LinkMove(ctx, "Dog", "owner", "Puppies", 3, 0)
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("LinkMove(3, 0) = %v, want ErrNotFound", err)
	}
}

func TestStoreLinkMove_RequiresWriteTransaction(t *testing.T) {
	s := newTestStore(t)

	err := s.LinkMove(context.Background(), "Dog", "owner", "Puppies", 0, 1)
	if !errors.Is(err, ErrNoWriteTransaction) {
		t.Errorf("LinkMove() outside Update = %v, want ErrNoWriteTransaction", err)
	}
}

func TestStoreLinkMove_InsideUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"owner", "a", "b"} {
		putObject(t, s, "Dog", id, map[string]any{"Name": id})
	}
	appendLinks(t, s, "Dog", "owner", "Puppies", "Dog", "a", "b")

	err := s.Update(ctx, func(tx *Tx) error {
		return s.LinkMove(ctx, "Dog", "owner", "Puppies", 0, 1)
	})
	if err != nil {
		t.Fatalf("LinkMove() inside Update failed: %v", err)
	}

	got := listIDs(t, s, "Dog", "owner", "Puppies", "Dog")
	if !equalStrings(got, []string{"b", "a"}) {
		t.Errorf("list after move = %v, want [b a]", got)
	}
}

func TestTxLinkReads_ObserveUncommittedState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"owner", "a", "b"} {
		putObject(t, s, "Dog", id, map[string]any{"Name": id})
	}

	err := s.Update(ctx, func(tx *Tx) error {
		for _, id := range []string{"a", "b"} {
			if err := tx.LinkAppend(ctx, "Dog", "owner", "Puppies", "Dog", id); err != nil {
				return err
			}
		}

		n, err := tx.LinkCount(ctx, "Dog", "owner", "Puppies")
		if err != nil {
			return err
		}
		if n != 2 {
			t.Errorf("LinkCount() inside tx = %d, want 2", n)
		}

		ids, err := tx.LinkTargets(ctx, "Dog", "owner", "Puppies")
		if err != nil {
			return err
		}
		if !equalStrings(ids, []string{"a", "b"}) {
			t.Errorf("LinkTargets() inside tx = %v, want [a b]", ids)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
}
