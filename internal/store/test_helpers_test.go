package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/loomdb/loom/internal/record"
)

// newTestStore opens a store on a fresh temp database and closes it when
// the test finishes.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// putObject writes one object in its own transaction.
func putObject(t *testing.T, s *Store, class, id string, props map[string]any) {
	t.Helper()
	obj, err := record.ObjectFromNative(props)
	if err != nil {
		t.Fatalf("ObjectFromNative() failed: %v", err)
	}
	err = s.Update(context.Background(), func(tx *Tx) error {
		return tx.Put(context.Background(), class, id, obj)
	})
	if err != nil {
		t.Fatalf("Put(%s/%s) failed: %v", class, id, err)
	}
}

// appendLinks appends targets to a list in one transaction.
func appendLinks(t *testing.T, s *Store, ownerClass, ownerID, field, targetClass string, targetIDs ...string) {
	t.Helper()
	err := s.Update(context.Background(), func(tx *Tx) error {
		for _, id := range targetIDs {
			if err := tx.LinkAppend(context.Background(), ownerClass, ownerID, field, targetClass, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("LinkAppend(%s/%s.%s) failed: %v", ownerClass, ownerID, field, err)
	}
}

// listIDs returns the ordered target ids of a list.
func listIDs(t *testing.T, s *Store, ownerClass, ownerID, field, targetClass string) []string {
	t.Helper()
	refs, err := s.QueryRefs(context.Background(), QuerySpec{
		Class: targetClass,
		Link:  &LinkSource{OwnerClass: ownerClass, OwnerID: ownerID, Field: field},
	})
	if err != nil {
		t.Fatalf("QueryRefs() failed: %v", err)
	}
	ids := make([]string, len(refs))
	for i, ref := range refs {
		ids[i] = ref.ID
	}
	return ids
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
