package loom

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsLiveCollection(t *testing.T) {
	db := newTestDB(t)

	dogs := db.Objects("Dog")
	c, err := AsLiveCollection(dogs)
	require.NoError(t, err)
	assert.Same(t, dogs, c, "store-backed results pass through unchanged")

	list := db.List("Dog", "owner", "Puppies", "Dog")
	c, err = AsLiveCollection(list)
	require.NoError(t, err)
	assert.Same(t, list, c)
}

func TestAsLiveCollectionRejectsUnmanagedValues(t *testing.T) {
	for _, source := range []any{
		NewSlice("a", "b"),
		[]string{"a", "b"},
		"dogs",
		nil,
	} {
		_, err := AsLiveCollection(source)
		var nmErr *NotManagedError
		require.ErrorAs(t, err, &nmErr, "source %T", source)
		assert.Equal(t, "source", nmErr.Param)
	}
}

func TestSubscribeSugar(t *testing.T) {
	db := newTestDB(t)

	var calls int
	token, err := Subscribe(db.Objects("Dog"), func(LiveCollection, ChangeSet) {
		calls++
	})
	require.NoError(t, err)
	defer token.Dispose()

	putDog(t, db, "a", map[string]any{"Name": "a"})
	assert.Equal(t, 1, calls)

	_, err = Subscribe(NewSlice("x"), func(LiveCollection, ChangeSet) {})
	var nmErr *NotManagedError
	assert.ErrorAs(t, err, &nmErr)
}

func TestAsLiveQuery(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for _, id := range []string{"owner", "a", "b"} {
		putDog(t, db, id, map[string]any{"Name": id})
	}
	list := db.List("Dog", "owner", "Puppies", "Dog")
	err := db.Update(ctx, func(tx *Tx) error {
		if err := tx.Append(list, "b"); err != nil {
			return err
		}
		return tx.Append(list, "a")
	})
	require.NoError(t, err)

	q, err := AsLiveQuery(list)
	require.NoError(t, err)

	// Position order carries over.
	ids, err := q.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids)

	// The derived query subscribes independently of the list.
	_, gotList := collect(t, list)
	_, gotQuery := collect(t, q)
	err = db.Update(ctx, func(tx *Tx) error {
		return tx.Remove(list, 0)
	})
	require.NoError(t, err)
	assert.Len(t, *gotList, 1)
	assert.Len(t, *gotQuery, 1)

	_, err = AsLiveQuery(NewSlice("a"))
	var nmErr *NotManagedError
	assert.ErrorAs(t, err, &nmErr)
}

func TestSliceBasics(t *testing.T) {
	s := NewSlice("a", "b")
	s.Append("c")

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, "b", s.Get(1))

	elems := s.Elements()
	elems[0] = "mutated"
	assert.Equal(t, "a", s.Get(0), "Elements returns a copy")
}
