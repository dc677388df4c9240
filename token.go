package loom

import "sync/atomic"

// SubscriptionToken is a disposable handle for one registered observer.
// It does not keep its collection registered: disposing the last token
// on a collection detaches the collection from commit notification.
type SubscriptionToken struct {
	view     *view
	fn       NotifyFunc
	disposed atomic.Bool
}

// Dispose deregisters the token's callback. After Dispose returns the
// callback is never invoked again, including for a notification already
// in flight. Idempotent, and safe to call from inside a notification
// callback.
func (t *SubscriptionToken) Dispose() {
	if !t.disposed.CompareAndSwap(false, true) {
		return
	}
	t.view.remove(t)
}

// Disposed reports whether the token has been disposed.
func (t *SubscriptionToken) Disposed() bool {
	return t.disposed.Load()
}
