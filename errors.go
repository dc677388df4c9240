package loom

import (
	"errors"
	"fmt"
)

// ErrNotificationsTerminated is the payload of the terminal change set
// delivered to every live subscriber when the backing store becomes
// permanently unavailable. It is never returned synchronously from
// Subscribe-time registration of an open store.
var ErrNotificationsTerminated = errors.New("notifications terminated: store closed")

// NotManagedError reports that an operation requiring a store-backed
// collection or query received a disconnected one. It names the offending
// parameter and the capability the operation requires.
//
// This is a programming error at the call site, not a transient
// condition: there are no retries.
type NotManagedError struct {
	Param      string // parameter name at the failing call
	Type       string // dynamic type of the value passed
	Capability string // what the operation required
}

func (e *NotManagedError) Error() string {
	return fmt.Sprintf("%s (%s) is not managed by a store: requires %s", e.Param, e.Type, e.Capability)
}

// IndexOutOfRangeError reports a move index outside the valid range of
// the target list. Index -1 means an element-based move did not find the
// element. No mutation occurs when this error is returned.
type IndexOutOfRangeError struct {
	Index int
	Count int
}

func (e *IndexOutOfRangeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("element not found in list of %d elements", e.Count)
	}
	if e.Count == 0 {
		return fmt.Sprintf("index %d is out of range: list is empty", e.Index)
	}
	return fmt.Sprintf("index %d is out of range [0, %d]", e.Index, e.Count-1)
}

func notManaged(param string, value any, capability string) *NotManagedError {
	return &NotManagedError{
		Param:      param,
		Type:       fmt.Sprintf("%T", value),
		Capability: capability,
	}
}
