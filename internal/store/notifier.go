package store

import (
	"context"
	"sync"
)

// View is a live result set registered with the commit pump. Refresh is
// invoked once per commit, in commit order; Terminate is invoked exactly
// once when the store closes and no further calls follow.
//
// Both callbacks run on the committing (or closing) goroutine. A Refresh
// implementation must not call Store.Update - the writer lock is still
// held during the pump.
type View interface {
	Refresh(ctx context.Context, seq int64)
	Terminate(err error)
}

// Notifier is the commit-notification pump. Views register to be called
// back after every commit; registration order is delivery order.
type Notifier struct {
	mu     sync.Mutex
	views  []registration
	nextID uint64
	closed bool
	err    error
}

type registration struct {
	id   uint64
	view View
}

func newNotifier() *Notifier {
	return &Notifier{nextID: 1}
}

// Register adds a view to the pump and returns its registration id.
// If the pump has already terminated, the view's Terminate is invoked
// immediately and the returned id is 0.
func (n *Notifier) Register(v View) uint64 {
	n.mu.Lock()
	if n.closed {
		err := n.err
		n.mu.Unlock()
		v.Terminate(err)
		return 0
	}
	id := n.nextID
	n.nextID++
	n.views = append(n.views, registration{id: id, view: v})
	n.mu.Unlock()
	return id
}

// Unregister removes a view. Safe to call with an id that was never
// registered or was already removed.
func (n *Notifier) Unregister(id uint64) {
	if id == 0 {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, r := range n.views {
		if r.id == id {
			n.views = append(n.views[:i], n.views[i+1:]...)
			return
		}
	}
}

// pump delivers one commit to every registered view in registration
// order. The view list is snapshotted under the lock and iterated
// outside it, so a callback may unregister itself (or register new
// views, which only see later commits).
func (n *Notifier) pump(ctx context.Context, seq int64) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	snapshot := make([]registration, len(n.views))
	copy(snapshot, n.views)
	n.mu.Unlock()

	for _, r := range snapshot {
		if !n.registered(r.id) {
			// Unregistered mid-pump by an earlier callback.
			continue
		}
		r.view.Refresh(ctx, seq)
	}
}

// close terminates the pump: every registered view receives Terminate
// once, then the registry empties. Idempotent.
func (n *Notifier) close(err error) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	n.err = err
	snapshot := n.views
	n.views = nil
	n.mu.Unlock()

	for _, r := range snapshot {
		r.view.Terminate(err)
	}
}

func (n *Notifier) registered(id uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, r := range n.views {
		if r.id == id {
			return true
		}
	}
	return false
}
