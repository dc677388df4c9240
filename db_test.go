package loom

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cuelang.org/go/cue/cuecontext"

	"github.com/loomdb/loom/internal/schema"
	"github.com/loomdb/loom/internal/store"
)

func newTestDB(t *testing.T, opts ...Option) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testCatalog(t *testing.T) *schema.Catalog {
	t.Helper()
	cat, err := schema.Compile(cuecontext.New().CompileString(`
		class: Dog: {
			properties: {
				Name: "string"
				Age:  "int"
			}
			lists: {
				Puppies: "Dog"
			}
		}
	`))
	require.NoError(t, err)
	return cat
}

// putDog writes one Dog object in its own commit.
func putDog(t *testing.T, db *DB, id string, props map[string]any) {
	t.Helper()
	err := db.Update(context.Background(), func(tx *Tx) error {
		return tx.Put("Dog", id, props)
	})
	require.NoError(t, err)
}

func TestOpenAndClose(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close(), "close is idempotent")
}

func TestPutAndGet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	putDog(t, db, "rex", map[string]any{"Name": "Rex", "Age": 4})

	dogs := db.Objects("Dog")
	n, err := dogs.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	props, err := dogs.Get(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "Rex", props["Name"])
	assert.Equal(t, int64(4), props["Age"])
}

func TestGetOutOfRange(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	putDog(t, db, "rex", map[string]any{"Name": "Rex"})

	_, err := db.Objects("Dog").Get(ctx, 5)
	var rangeErr *IndexOutOfRangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, 5, rangeErr.Index)
	assert.Equal(t, 1, rangeErr.Count)
}

func TestInsertGeneratesID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	var id string
	err := db.Update(ctx, func(tx *Tx) error {
		var err error
		id, err = tx.Insert("Dog", map[string]any{"Name": "Rex"})
		return err
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	ids, err := db.Objects("Dog").IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)
}

func TestDeleteRemovesFromResults(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	putDog(t, db, "rex", map[string]any{"Name": "Rex"})
	putDog(t, db, "fido", map[string]any{"Name": "Fido"})

	err := db.Update(ctx, func(tx *Tx) error {
		return tx.Delete("Dog", "rex")
	})
	require.NoError(t, err)

	ids, err := db.Objects("Dog").IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"fido"}, ids)
}

func TestSchemaValidationOnPut(t *testing.T) {
	db := newTestDB(t, WithCatalog(testCatalog(t)))
	ctx := context.Background()

	err := db.Update(ctx, func(tx *Tx) error {
		return tx.Put("Dog", "rex", map[string]any{"Name": "Rex", "Age": 4})
	})
	require.NoError(t, err)

	err = db.Update(ctx, func(tx *Tx) error {
		return tx.Put("Dog", "rex", map[string]any{"Color": "brown"})
	})
	assert.Error(t, err, "undeclared property rejected")

	err = db.Update(ctx, func(tx *Tx) error {
		return tx.Put("Cat", "tom", map[string]any{"Name": "Tom"})
	})
	assert.Error(t, err, "undeclared class rejected")

	// The failed transactions rolled back: rex is still version 1 state.
	props, err := db.Objects("Dog").Get(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "Rex", props["Name"])
}

func TestListAppendRemove(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for _, id := range []string{"owner", "a", "b"} {
		putDog(t, db, id, map[string]any{"Name": id})
	}

	list := db.List("Dog", "owner", "Puppies", "Dog")
	err := db.Update(ctx, func(tx *Tx) error {
		if err := tx.Append(list, "a"); err != nil {
			return err
		}
		return tx.Append(list, "b")
	})
	require.NoError(t, err)

	ids, err := list.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	props, err := list.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "b", props["Name"])

	err = db.Update(ctx, func(tx *Tx) error {
		return tx.Remove(list, 0)
	})
	require.NoError(t, err)

	ids, err = list.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)
}

func TestUpdateAfterCloseFails(t *testing.T) {
	db := newTestDB(t)
	db.Close()

	err := db.Update(context.Background(), func(tx *Tx) error { return nil })
	assert.ErrorIs(t, err, store.ErrClosed)
}
