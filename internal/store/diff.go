package store

import "sort"

// Change is the structural delta between two observed ref sequences.
// Deletions index into the prior sequence; Insertions and Modifications
// index into the new one. All three are ascending.
type Change struct {
	Insertions    []int
	Deletions     []int
	Modifications []int
}

// IsEmpty reports whether the change carries no index data.
func (c Change) IsEmpty() bool {
	return len(c.Insertions) == 0 && len(c.Deletions) == 0 && len(c.Modifications) == 0
}

// Diff computes the minimal change between two observed states of a
// result sequence.
//
// Elements are aligned by id; duplicate ids pair up by occurrence order.
// Surviving elements whose relative order is preserved stay in place; the
// rest are reported as a deletion at the old index plus an insertion at
// the new index. The set kept in place is chosen by longest increasing
// subsequence over the survivors' new-order ranks, so a single relocation
// in an N-element list reports one deletion and one insertion, not N.
// A survivor that kept its place but changed version is a modification.
func Diff(old, new []RowRef) Change {
	// Pair occurrences: key (id, k) for the k-th occurrence of id.
	type occ struct {
		id string
		n  int
	}
	newIndex := make(map[occ]int, len(new))
	counts := make(map[string]int, len(new))
	for i, ref := range new {
		k := counts[ref.ID]
		counts[ref.ID] = k + 1
		newIndex[occ{ref.ID, k}] = i
	}

	var change Change

	// Walk old in order, splitting into deletions and survivors.
	// survivorsOld/survivorsNew hold matched index pairs in old order.
	var survivorsOld, survivorsNew []int
	counts = make(map[string]int, len(old))
	matched := make([]bool, len(new))
	for i, ref := range old {
		k := counts[ref.ID]
		counts[ref.ID] = k + 1
		j, ok := newIndex[occ{ref.ID, k}]
		if !ok {
			change.Deletions = append(change.Deletions, i)
			continue
		}
		matched[j] = true
		survivorsOld = append(survivorsOld, i)
		survivorsNew = append(survivorsNew, j)
	}

	// Anything unmatched in new is an insertion.
	for j := range new {
		if !matched[j] {
			change.Insertions = append(change.Insertions, j)
		}
	}

	// Survivors outside the longest increasing subsequence of new-order
	// ranks moved: report them as deletion + insertion. In-place
	// survivors with a changed version are modifications.
	kept := longestIncreasing(survivorsNew)
	for s, j := range survivorsNew {
		i := survivorsOld[s]
		if !kept[s] {
			change.Deletions = append(change.Deletions, i)
			change.Insertions = append(change.Insertions, j)
			continue
		}
		if old[i].Version != new[j].Version {
			change.Modifications = append(change.Modifications, j)
		}
	}

	sort.Ints(change.Insertions)
	sort.Ints(change.Deletions)
	sort.Ints(change.Modifications)
	return change
}

// longestIncreasing returns a membership mask over seq marking one
// longest strictly increasing subsequence (patience sorting, O(n log n)).
func longestIncreasing(seq []int) []bool {
	kept := make([]bool, len(seq))
	if len(seq) == 0 {
		return kept
	}

	// tails[k] = index in seq of the smallest tail of an increasing
	// subsequence of length k+1; prev links reconstruct the chosen chain.
	tails := make([]int, 0, len(seq))
	prev := make([]int, len(seq))
	for i, v := range seq {
		lo := sort.Search(len(tails), func(k int) bool {
			return seq[tails[k]] >= v
		})
		if lo > 0 {
			prev[i] = tails[lo-1]
		} else {
			prev[i] = -1
		}
		if lo == len(tails) {
			tails = append(tails, i)
		} else {
			tails[lo] = i
		}
	}

	for i := tails[len(tails)-1]; i >= 0; i = prev[i] {
		kept[i] = true
	}
	return kept
}
