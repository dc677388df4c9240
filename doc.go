// Package loom provides live query views over an embedded SQLite
// database. Objects are JSON documents grouped by class; ordered
// relationships link an owner object to a positional list of targets.
// All mutation happens inside a single-writer transaction (DB.Update),
// and every successful commit is pushed through registered live views
// before Update returns.
//
// A LiveCollection (a *Results from DB.Objects or Filter, or a *List
// from DB.List) stays synchronized with committed state. Subscribe
// registers a callback that receives a ChangeSet per affecting commit:
// index-based insertions, deletions, and modifications computed against
// the collection's previous state. There is no synthetic initial
// delivery; the first callback fires on the first commit after
// registration that changes the collection. Callbacks run on the
// committing goroutine while the write lock is held and must not call
// Update.
//
// Filter narrows a store-backed query with a predicate expression
// (comparison operators, CONTAINS/BEGINSWITH/ENDSWITH, AND/OR/NOT,
// trailing SORT/DISTINCT/LIMIT clauses). Filters compose by
// conjunction and each filtered result is independently live.
//
// Move reorders elements positionally, either atomically on a
// persisted list inside a write transaction or by splice on an
// in-memory Slice. Capability adapters (AsLiveCollection, AsLiveQuery)
// reject values that are not store-backed with NotManagedError rather
// than degrading to a dead snapshot.
package loom
