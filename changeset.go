package loom

// ChangeSet describes the structural delta between two consecutively
// observed states of a live collection.
//
// Deletions index into the prior state; Insertions and Modifications
// index into the new state. All three are ascending. A change set with a
// non-nil Err carries no index data and is terminal: synchronization has
// permanently failed for that collection and no further notifications
// follow.
type ChangeSet struct {
	Insertions    []int
	Deletions     []int
	Modifications []int
	Err           error
}

// Terminal reports whether this change set ends the subscription.
func (c ChangeSet) Terminal() bool {
	return c.Err != nil
}

// NotifyFunc is a subscriber callback. It receives the collection it was
// registered on - already synchronized to the new state - and the change
// set for one commit. Terminal failures arrive through the same channel
// as ordinary deltas, so one signature handles both.
type NotifyFunc func(c LiveCollection, change ChangeSet)
