package loom

import (
	"github.com/loomdb/loom/internal/predicate"
	"github.com/loomdb/loom/internal/store"
)

// Filter returns a new live, store-backed query restricted by the
// predicate expression: the logical AND of query's own constraints and
// the expression, with SORT/DISTINCT/LIMIT clauses from the expression
// applied on top. The result is itself subscribable and re-filterable -
// filters chain without limit, each producing an independently live
// result set. The original query is unaffected.
//
// query must be store-backed: a *Results, or a *List (filtered through
// its query view). Anything else fails with NotManagedError.
//
// Prefer expressing ordering through SORT(...) in the expression rather
// than re-sorting the materialized elements afterwards: a plain Go sort
// of a snapshot is not live and silently drops the synchronization
// guarantee.
func Filter(query any, expr string) (*Results, error) {
	switch q := query.(type) {
	case *Results:
		return filterResults(q, expr)
	case *List:
		lq, err := AsLiveQuery(q)
		if err != nil {
			return nil, err
		}
		return filterResults(lq, expr)
	default:
		return nil, notManaged("query", query, "store-backed query result set")
	}
}

// filterResults compiles expr and composes it with the receiver's spec.
func filterResults(r *Results, expr string) (*Results, error) {
	compiled, err := predicate.Compile(expr)
	if err != nil {
		return nil, err
	}

	base := r.view.spec
	spec := store.QuerySpec{
		Class: base.Class,
		Link:  base.Link,
	}

	// Conjunction of outer constraints and the new predicate.
	switch {
	case base.Where == "":
		spec.Where = compiled.Where
		spec.Args = compiled.Args
	default:
		spec.Where = "(" + base.Where + ") AND (" + compiled.Where + ")"
		spec.Args = append(append([]any{}, base.Args...), compiled.Args...)
	}

	// SORT replaces inherited ordering; otherwise the outer order holds.
	if len(compiled.Sort) > 0 {
		for _, key := range compiled.Sort {
			spec.OrderBy = append(spec.OrderBy, store.Ordering{Field: key.Field, Desc: key.Desc})
		}
	} else {
		spec.OrderBy = base.OrderBy
	}

	spec.Distinct = append(append([]string{}, base.Distinct...), compiled.Distinct...)

	spec.Limit = base.Limit
	if compiled.Limit > 0 && (spec.Limit == 0 || compiled.Limit < spec.Limit) {
		spec.Limit = compiled.Limit
	}

	out := &Results{}
	out.view = &view{
		db:    r.view.db,
		spec:  spec,
		owner: out,
	}
	return out, nil
}
