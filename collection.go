package loom

import (
	"context"
	"errors"
	"sync"

	"github.com/loomdb/loom/internal/store"
)

// LiveCollection is the capability a store-backed collection exposes:
// stable live ordering plus subscription management. *Results and *List
// implement it; plain in-memory sequences deliberately do not.
//
// A LiveCollection and its tokens are affine to the execution context
// they were created on; the collection performs no internal locking
// against concurrent same-collection use from multiple goroutines beyond
// what notification dispatch requires.
type LiveCollection interface {
	// Len returns the number of elements at the latest observed commit.
	Len(ctx context.Context) (int, error)
	// Get returns the properties of the element at index i.
	Get(ctx context.Context, i int) (map[string]any, error)
	// IDs returns the ordered object ids of the current state.
	IDs(ctx context.Context) ([]string, error)
	// Subscribe registers a callback for future commits affecting this
	// collection's result set. See the package documentation for the
	// delivery policy.
	Subscribe(fn NotifyFunc) (*SubscriptionToken, error)

	liveView() *view
}

// view is the shared live-collection core behind Results and List: the
// query spec, the last observed ref sequence, and the subscriber set.
type view struct {
	db    *DB
	spec  store.QuerySpec
	owner LiveCollection // the public collection passed to callbacks

	mu         sync.Mutex
	subs       []*SubscriptionToken
	regID      uint64 // notifier registration; 0 while unregistered
	refs       []store.RowRef
	terminated bool
}

// refsNow returns the element refs of the current state: the maintained
// snapshot while registered with the commit pump, a fresh query
// otherwise. Either way the sequence is a committed state of the store.
func (v *view) refsNow(ctx context.Context) ([]store.RowRef, error) {
	v.mu.Lock()
	if v.regID != 0 {
		refs := v.refs
		v.mu.Unlock()
		return refs, nil
	}
	v.mu.Unlock()
	return v.db.store.QueryRefs(ctx, v.spec)
}

// subscribe registers fn for future commits. The first delivery happens
// on the first commit after registration - no synthetic initial change
// set is produced.
func (v *view) subscribe(fn NotifyFunc) (*SubscriptionToken, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.terminated {
		return nil, ErrNotificationsTerminated
	}

	if v.regID == 0 {
		// First subscriber: baseline the observed state, then hook into
		// the commit pump.
		refs, err := v.db.store.QueryRefs(context.Background(), v.spec)
		if errors.Is(err, store.ErrClosed) {
			v.terminated = true
			return nil, ErrNotificationsTerminated
		}
		if err != nil {
			return nil, err
		}
		v.refs = refs
		v.regID = v.db.store.Notifier().Register(v)
		if v.regID == 0 {
			v.terminated = true
			return nil, ErrNotificationsTerminated
		}
	}

	t := &SubscriptionToken{view: v, fn: fn}
	v.subs = append(v.subs, t)
	return t, nil
}

// remove deregisters a disposed token. When the last token goes, the
// view detaches from the commit pump and drops its snapshot.
func (v *view) remove(t *SubscriptionToken) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i, s := range v.subs {
		if s == t {
			v.subs = append(v.subs[:i], v.subs[i+1:]...)
			break
		}
	}
	if len(v.subs) == 0 && v.regID != 0 {
		v.db.store.Notifier().Unregister(v.regID)
		v.regID = 0
		v.refs = nil
	}
}

// Refresh implements store.View. Called by the commit pump once per
// commit, in commit order, on the committing goroutine.
func (v *view) Refresh(ctx context.Context, seq int64) {
	newRefs, err := v.db.store.QueryRefs(ctx, v.spec)
	if err != nil {
		v.Terminate(err)
		return
	}

	v.mu.Lock()
	change := store.Diff(v.refs, newRefs)
	v.refs = newRefs
	subs := make([]*SubscriptionToken, len(v.subs))
	copy(subs, v.subs)
	v.mu.Unlock()

	if change.IsEmpty() {
		// Commit did not affect this result set: no delivery.
		return
	}

	cs := ChangeSet{
		Insertions:    change.Insertions,
		Deletions:     change.Deletions,
		Modifications: change.Modifications,
	}
	v.dispatch(subs, cs)
}

// Terminate implements store.View. Delivers one terminal change set to
// every live subscriber, then disposes them all. Store closure surfaces
// as ErrNotificationsTerminated; a refresh failure keeps its cause.
func (v *view) Terminate(err error) {
	v.mu.Lock()
	if v.terminated {
		v.mu.Unlock()
		return
	}
	v.terminated = true
	regID := v.regID
	v.regID = 0
	subs := v.subs
	v.subs = nil
	v.mu.Unlock()

	// Drop the pump registration so the view is not refreshed on later
	// commits. No-op when the pump itself is closing.
	v.db.store.Notifier().Unregister(regID)

	if err == nil || errors.Is(err, store.ErrClosed) {
		err = ErrNotificationsTerminated
	}
	v.dispatch(subs, ChangeSet{Err: err})
	for _, t := range subs {
		t.disposed.Store(true)
	}
}

// dispatch invokes callbacks in registration order. Disposed state is
// checked immediately before each individual invocation so a token
// disposed concurrently with delivery - including from an earlier
// callback of the same commit - never observes the notification.
func (v *view) dispatch(subs []*SubscriptionToken, cs ChangeSet) {
	for _, t := range subs {
		if t.disposed.Load() {
			continue
		}
		t.fn(v.owner, cs)
	}
}
