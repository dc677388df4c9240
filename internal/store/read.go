package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/loomdb/loom/internal/record"
)

// RowRef identifies one element of an observed result sequence: the
// object id plus its version at observation time. Ref sequences are what
// the change pipeline diffs between commits.
type RowRef struct {
	ID      string
	Version int64
}

// Ordering is one sort key of a query. Field names address object
// properties; the reserved name "id" addresses the object id.
type Ordering struct {
	Field string
	Desc  bool
}

// LinkSource restricts a query to the targets of one ordered
// relationship list. When set, the default order is list position.
type LinkSource struct {
	OwnerClass string
	OwnerID    string
	Field      string
}

// QuerySpec describes a live query against the store. Where is a SQL
// fragment over the object alias "o" as produced by the predicate
// compiler; values are always carried in Args, never interpolated.
type QuerySpec struct {
	Class    string
	Link     *LinkSource
	Where    string
	Args     []any
	OrderBy  []Ordering
	Distinct []string
	Limit    int
}

// QueryRefs evaluates a query and returns the ordered id/version
// sequence of its result set at the current committed state.
//
// Every query carries a deterministic ORDER BY: the caller's sort keys
// (or list position for link queries) followed by an id tiebreaker, so
// two evaluations against the same commit return identical sequences.
func (s *Store) QueryRefs(ctx context.Context, q QuerySpec) ([]RowRef, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	sqlText, args := buildRefSQL(q)
	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query refs: %w", err)
	}
	defer rows.Close()

	nExtra := len(q.Distinct)
	seen := make(map[string]bool)

	var refs []RowRef
	for rows.Next() {
		var ref RowRef
		extras := make([]any, nExtra)
		dest := []any{&ref.ID, &ref.Version}
		for i := range extras {
			var v sql.NullString
			extras[i] = &v
			dest = append(dest, &v)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("query refs: scan: %w", err)
		}

		// Distinct keeps the first occurrence per key in result order.
		if nExtra > 0 {
			var key strings.Builder
			for _, e := range extras {
				v := e.(*sql.NullString)
				key.WriteString(v.String)
				key.WriteByte(0)
			}
			if seen[key.String()] {
				continue
			}
			seen[key.String()] = true
		}

		refs = append(refs, ref)
		if q.Limit > 0 && len(refs) == q.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query refs: iterate: %w", err)
	}

	// Return empty slice instead of nil
	if refs == nil {
		refs = []RowRef{}
	}
	return refs, nil
}

// GetObject retrieves one object's properties and version.
// Returns ErrNotFound if the object does not exist.
func (s *Store) GetObject(ctx context.Context, class, id string) (record.Object, int64, error) {
	if s.closed.Load() {
		return nil, 0, ErrClosed
	}

	var props string
	var version int64
	err := s.db.QueryRowContext(ctx, `
		SELECT props, version FROM objects WHERE class = ? AND id = ?
	`, class, id).Scan(&props, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("get %s/%s: %w", class, id, ErrNotFound)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("get %s/%s: %w", class, id, err)
	}

	obj, err := record.UnmarshalObject([]byte(props))
	if err != nil {
		return nil, 0, fmt.Errorf("get %s/%s: %w", class, id, err)
	}
	return obj, version, nil
}

// LinkCount returns the number of entries in an owner's ordered list.
func (s *Store) LinkCount(ctx context.Context, ownerClass, ownerID, field string) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM links
		WHERE owner_class = ? AND owner_id = ? AND field = ?
	`, ownerClass, ownerID, field).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("link count: %w", err)
	}
	return count, nil
}

// buildRefSQL assembles the ref query for a QuerySpec. All caller values
// travel as parameters; the only interpolated fragments are the Where
// clause (already parameterized by the predicate compiler) and fixed
// keywords.
func buildRefSQL(q QuerySpec) (string, []any) {
	var b strings.Builder
	var args []any

	b.WriteString("SELECT o.id, o.version")
	for range q.Distinct {
		b.WriteString(", json_extract(o.props, ?)")
	}
	for _, f := range q.Distinct {
		args = append(args, jsonPath(f))
	}

	if q.Link != nil {
		b.WriteString(" FROM links l JOIN objects o ON o.class = ? AND o.id = l.target_id")
		args = append(args, q.Class)
		b.WriteString(" WHERE l.owner_class = ? AND l.owner_id = ? AND l.field = ?")
		args = append(args, q.Link.OwnerClass, q.Link.OwnerID, q.Link.Field)
	} else {
		b.WriteString(" FROM objects o WHERE o.class = ?")
		args = append(args, q.Class)
	}

	if q.Where != "" {
		b.WriteString(" AND (")
		b.WriteString(q.Where)
		b.WriteString(")")
		args = append(args, q.Args...)
	}

	b.WriteString(" ORDER BY ")
	for _, ord := range q.OrderBy {
		if ord.Field == "id" {
			b.WriteString("o.id COLLATE BINARY")
		} else {
			b.WriteString("json_extract(o.props, ?)")
			args = append(args, jsonPath(ord.Field))
		}
		if ord.Desc {
			b.WriteString(" DESC")
		} else {
			b.WriteString(" ASC")
		}
		b.WriteString(", ")
	}
	if q.Link != nil && len(q.OrderBy) == 0 {
		b.WriteString("l.position ASC, ")
	}
	// Deterministic tiebreaker. The collation must precede the sort
	// direction in SQLite's ordering-term grammar.
	b.WriteString("o.id COLLATE BINARY ASC")

	return b.String(), args
}

// jsonPath converts a property name to a json_extract path argument.
func jsonPath(field string) string {
	return `$."` + strings.ReplaceAll(field, `"`, `\"`) + `"`
}
