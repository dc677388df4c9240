package loom

import (
	"context"

	"github.com/loomdb/loom/internal/record"
)

// Results is a live, store-backed query result set. It reflects the
// latest committed state it has observed: reads see a sequence that
// existed at some committed point, never a partially-applied one.
//
// Results are non-destructive to derive from: Filter returns a new
// independent live query and leaves the receiver untouched.
type Results struct {
	view *view
}

func (r *Results) liveView() *view { return r.view }

// Len returns the number of matching objects.
func (r *Results) Len(ctx context.Context) (int, error) {
	refs, err := r.view.refsNow(ctx)
	if err != nil {
		return 0, err
	}
	return len(refs), nil
}

// IDs returns the ordered object ids of the result set.
func (r *Results) IDs(ctx context.Context) ([]string, error) {
	refs, err := r.view.refsNow(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(refs))
	for i, ref := range refs {
		ids[i] = ref.ID
	}
	return ids, nil
}

// Get returns the properties of the object at index i.
func (r *Results) Get(ctx context.Context, i int) (map[string]any, error) {
	refs, err := r.view.refsNow(ctx)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(refs) {
		return nil, &IndexOutOfRangeError{Index: i, Count: len(refs)}
	}
	obj, _, err := r.view.db.store.GetObject(ctx, r.view.spec.Class, refs[i].ID)
	if err != nil {
		return nil, err
	}
	return record.Native(obj).(map[string]any), nil
}

// Subscribe registers fn to be invoked with (results, changeSet) on
// every future commit that affects this result set. There is no
// synthetic initial delivery: the first invocation happens on the first
// affecting commit after registration. Multiple tokens may coexist; each
// receives every notification independently, in registration order.
func (r *Results) Subscribe(fn NotifyFunc) (*SubscriptionToken, error) {
	return r.view.subscribe(fn)
}

// Filter returns a new live result set restricted by the predicate
// expression, composed as the logical AND of the receiver's constraints
// and the expression. See the package documentation for the expression
// language. The receiver is unaffected.
func (r *Results) Filter(expr string) (*Results, error) {
	return filterResults(r, expr)
}
