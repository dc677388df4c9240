package loom

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/loomdb/loom/internal/record"
	"github.com/loomdb/loom/internal/schema"
	"github.com/loomdb/loom/internal/store"
)

// DB is an open loom database. All mutations go through Update; live
// collections obtained from Objects and List stay synchronized with the
// committed state and deliver change sets to their subscribers.
type DB struct {
	store   *store.Store
	catalog *schema.Catalog
}

// Option configures a DB at open time.
type Option func(*openConfig) error

type openConfig struct {
	catalog *schema.Catalog
}

// WithSchema loads a CUE class schema and validates every Put against it.
func WithSchema(path string) Option {
	return func(cfg *openConfig) error {
		cat, err := schema.LoadFile(path)
		if err != nil {
			return err
		}
		cfg.catalog = cat
		return nil
	}
}

// WithCatalog attaches an already-compiled class catalog.
func WithCatalog(cat *schema.Catalog) Option {
	return func(cfg *openConfig) error {
		cfg.catalog = cat
		return nil
	}
}

// Open creates or opens a database at the given path.
func Open(path string, opts ...Option) (*DB, error) {
	var cfg openConfig
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	var storeOpts []store.Option
	if cfg.catalog != nil {
		storeOpts = append(storeOpts, store.WithCatalog(cfg.catalog))
	}
	s, err := store.Open(path, storeOpts...)
	if err != nil {
		return nil, err
	}
	return &DB{store: s, catalog: cfg.catalog}, nil
}

// Close closes the database. Every live subscriber receives one terminal
// change set carrying ErrNotificationsTerminated before notification
// stops. Idempotent.
func (db *DB) Close() error {
	return db.store.Close()
}

// Tx is an open write transaction, valid only inside the Update callback
// that created it.
type Tx struct {
	ctx   context.Context
	inner *store.Tx
}

// Update runs fn inside a single write transaction. On success the
// commit is appended to the commit log and every affected live
// collection is notified - synchronously, on this goroutine, before
// Update returns. fn must not call Update recursively.
func (db *DB) Update(ctx context.Context, fn func(tx *Tx) error) error {
	return db.store.Update(ctx, func(inner *store.Tx) error {
		return fn(&Tx{ctx: ctx, inner: inner})
	})
}

// Put inserts or overwrites an object. Overwrites that leave the
// properties unchanged are no-ops and produce no modification.
func (t *Tx) Put(class, id string, props map[string]any) error {
	obj, err := record.ObjectFromNative(props)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", class, id, err)
	}
	return t.inner.Put(t.ctx, class, id, obj)
}

// Insert adds an object under a generated id and returns it.
func (t *Tx) Insert(class string, props map[string]any) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", class, err)
	}
	if err := t.Put(class, id.String(), props); err != nil {
		return "", err
	}
	return id.String(), nil
}

// Delete removes an object and every relationship entry referencing it.
func (t *Tx) Delete(class, id string) error {
	return t.inner.Delete(t.ctx, class, id)
}

// Append adds a target object to the end of an ordered relationship
// list.
func (t *Tx) Append(list *List, targetID string) error {
	return t.inner.LinkAppend(t.ctx, list.ownerClass, list.ownerID, list.field, list.targetClass, targetID)
}

// Remove deletes the relationship entry at the given position and closes
// the gap.
func (t *Tx) Remove(list *List, position int) error {
	return t.inner.LinkRemove(t.ctx, list.ownerClass, list.ownerID, list.field, position)
}

// Objects returns the live result set of every object of a class,
// ordered by id.
func (db *DB) Objects(class string) *Results {
	r := &Results{}
	r.view = &view{
		db:    db,
		spec:  store.QuerySpec{Class: class},
		owner: r,
	}
	return r
}

// List returns the live view of an owner's ordered relationship list.
// targetClass names the class the list's entries belong to; when the DB
// carries a schema it must match the declared list target.
func (db *DB) List(ownerClass, ownerID, field, targetClass string) *List {
	l := &List{
		ownerClass:  ownerClass,
		ownerID:     ownerID,
		field:       field,
		targetClass: targetClass,
	}
	l.view = &view{
		db: db,
		spec: store.QuerySpec{
			Class: targetClass,
			Link: &store.LinkSource{
				OwnerClass: ownerClass,
				OwnerID:    ownerID,
				Field:      field,
			},
		},
		owner: l,
	}
	return l
}
