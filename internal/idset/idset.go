// Package idset provides a compact set of 64-bit ids, optimized for the low
// cardinalities a single reader's doneSet sees in practice.
//
// Representation is a sorted slice with binary-search insert/remove, the
// same sparse-index idiom the teacher's segment format uses for offset
// lookups (internal/format/index.go's Find) — appropriate here because
// doneSet membership checks and ascending iteration both want sorted order,
// and cardinalities stay in the low thousands between checkpoints.
package idset

import "sort"

// Set is a sorted set of uint64 ids. The zero value is an empty set.
// Not safe for concurrent use — callers own a Set under their own mutex
//.
type Set struct {
	ids []uint64
}

// New creates a Set from an arbitrary (possibly unsorted, possibly
// duplicate-containing) slice of ids.
func New(ids ...uint64) *Set {
	s := &Set{}
	for _, id := range ids {
		s.Insert(id)
	}
	return s
}

func (s *Set) search(id uint64) int {
	return sort.Search(len(s.ids), func(i int) bool { return s.ids[i] >= id })
}

// Insert adds id to the set. No-op if already present.
func (s *Set) Insert(id uint64) {
	i := s.search(id)
	if i < len(s.ids) && s.ids[i] == id {
		return
	}
	s.ids = append(s.ids, 0)
	copy(s.ids[i+1:], s.ids[i:])
	s.ids[i] = id
}

// Remove deletes id from the set. No-op if absent.
func (s *Set) Remove(id uint64) {
	i := s.search(id)
	if i >= len(s.ids) || s.ids[i] != id {
		return
	}
	s.ids = append(s.ids[:i], s.ids[i+1:]...)
}

// Has reports whether id is a member.
func (s *Set) Has(id uint64) bool {
	i := s.search(id)
	return i < len(s.ids) && s.ids[i] == id
}

// Min returns the smallest member and true, or (0, false) if empty.
func (s *Set) Min() (uint64, bool) {
	if len(s.ids) == 0 {
		return 0, false
	}
	return s.ids[0], true
}

// Len returns the number of members.
func (s *Set) Len() int {
	return len(s.ids)
}

// Ascending returns the members in ascending order. The returned slice is
// owned by the caller; it is a copy, safe to retain.
func (s *Set) Ascending() []uint64 {
	out := make([]uint64, len(s.ids))
	copy(out, s.ids)
	return out
}

// Difference removes every id of other from s, in place.
// Used to drop doneSet entries absorbed by a head advance
// and to filter doneSet entries that no longer exist on disk.
func (s *Set) Difference(other *Set) {
	if other == nil || other.Len() == 0 {
		return
	}
	kept := s.ids[:0]
	for _, id := range s.ids {
		if !other.Has(id) {
			kept = append(kept, id)
		}
	}
	s.ids = kept
}

// FilterFunc removes every id for which keep returns false, in place.
// Used by recovery to drop doneSet entries for ids that are
// not actually present on disk.
func (s *Set) FilterFunc(keep func(id uint64) bool) {
	kept := s.ids[:0]
	for _, id := range s.ids {
		if keep(id) {
			kept = append(kept, id)
		}
	}
	s.ids = kept
}

// Clone returns an independent copy of s.
func (s *Set) Clone() *Set {
	c := &Set{ids: make([]uint64, len(s.ids))}
	copy(c.ids, s.ids)
	return c
}
