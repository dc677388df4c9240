package loom

import (
	"context"

	"github.com/loomdb/loom/internal/record"
)

// List is a live view over a persisted ordered relationship: the entries
// of one owner's list field, in ordinal order. Ordinal positions are
// contiguous 0..N-1; structural mutations (append, remove, move) happen
// inside write transactions and are observed only as committed states.
type List struct {
	view        *view
	ownerClass  string
	ownerID     string
	field       string
	targetClass string
}

func (l *List) liveView() *view { return l.view }

// Len returns the number of entries in the list.
func (l *List) Len(ctx context.Context) (int, error) {
	refs, err := l.view.refsNow(ctx)
	if err != nil {
		return 0, err
	}
	return len(refs), nil
}

// IDs returns the ordered target object ids.
func (l *List) IDs(ctx context.Context) ([]string, error) {
	refs, err := l.view.refsNow(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(refs))
	for i, ref := range refs {
		ids[i] = ref.ID
	}
	return ids, nil
}

// Get returns the properties of the target object at position i.
func (l *List) Get(ctx context.Context, i int) (map[string]any, error) {
	refs, err := l.view.refsNow(ctx)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(refs) {
		return nil, &IndexOutOfRangeError{Index: i, Count: len(refs)}
	}
	obj, _, err := l.view.db.store.GetObject(ctx, l.targetClass, refs[i].ID)
	if err != nil {
		return nil, err
	}
	return record.Native(obj).(map[string]any), nil
}

// Subscribe registers fn for future commits affecting this list. The
// delivery policy is identical to Results.Subscribe: no synthetic
// initial change set, first delivery on the first affecting commit.
func (l *List) Subscribe(fn NotifyFunc) (*SubscriptionToken, error) {
	return l.view.subscribe(fn)
}
