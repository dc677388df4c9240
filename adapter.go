package loom

// AsLiveCollection upgrades a collection-like value to the live
// collection capability. This is a capability check, not a conversion:
// it succeeds exactly when source is already backed by the store
// (*Results or *List, returned as-is) and never constructs a live view
// from a disconnected in-memory sequence - there would be no commit
// stream for it to observe.
func AsLiveCollection(source any) (LiveCollection, error) {
	switch c := source.(type) {
	case *Results:
		return c, nil
	case *List:
		return c, nil
	default:
		return nil, notManaged("source", source, "live collection capability (store-backed results or list)")
	}
}

// Subscribe upgrades source to a live collection and registers fn.
// Sugar for AsLiveCollection followed by Subscribe.
func Subscribe(source any, fn NotifyFunc) (*SubscriptionToken, error) {
	c, err := AsLiveCollection(source)
	if err != nil {
		return nil, err
	}
	return c.Subscribe(fn)
}

// AsLiveQuery converts a persisted ordered relationship list into a
// store-backed query over its entries (position-ordered), enabling
// further filtering and independent subscription. Fails with
// NotManagedError if list is not store-backed.
func AsLiveQuery(list any) (*Results, error) {
	l, ok := list.(*List)
	if !ok {
		return nil, notManaged("list", list, "store-backed ordered relationship list")
	}

	r := &Results{}
	r.view = &view{
		db:    l.view.db,
		spec:  l.view.spec,
		owner: r,
	}
	return r, nil
}
