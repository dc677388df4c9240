// Package store implements the SQLite storage engine behind live
// collections: durable objects, ordered relationship links, a commit log,
// and the commit-notification pump that drives change delivery.
//
// The store is single-writer: all mutations go through Update, which
// serializes write transactions, stamps each successful commit with a
// monotonically increasing sequence number, and then runs the notification
// pump synchronously so registered views observe commits in commit order.
package store
