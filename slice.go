package loom

// Slice is a plain in-memory ordered sequence. It is deliberately NOT a
// live collection: there is no commit stream behind it to observe, so
// AsLiveCollection and Filter reject it with NotManagedError. Move
// supports it through remove-then-insert splice semantics.
type Slice struct {
	elems []any
}

// NewSlice creates an in-memory sequence with the given elements.
func NewSlice(elems ...any) *Slice {
	return &Slice{elems: elems}
}

// Len returns the number of elements.
func (s *Slice) Len() int {
	return len(s.elems)
}

// Get returns the element at index i.
func (s *Slice) Get(i int) any {
	return s.elems[i]
}

// Append adds elements to the end of the sequence.
func (s *Slice) Append(elems ...any) {
	s.elems = append(s.elems, elems...)
}

// Elements returns a copy of the underlying sequence.
func (s *Slice) Elements() []any {
	out := make([]any, len(s.elems))
	copy(out, s.elems)
	return out
}

// splice removes the element at from and reinserts it at to, where to is
// interpreted against the already-shrunk sequence. This is the only
// coherent relocation for a non-persisted sequence and intentionally
// differs index-wise from a swap.
func (s *Slice) splice(from, to int) {
	e := s.elems[from]
	s.elems = append(s.elems[:from], s.elems[from+1:]...)
	s.elems = append(s.elems[:to], append([]any{e}, s.elems[to:]...)...)
}
