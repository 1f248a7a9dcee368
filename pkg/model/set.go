// SPDX-License-Identifier: MPL-2.0

package model

import (
	"slices"

	"golang.org/x/exp/maps"
)

// Set is an unordered collection of distinct concepts.
//
// The zero value (nil) is an empty, read-only set: lookups work but Add panics.
// Use NewSet or make(Set[E]) to obtain a writable set.
type Set[E comparable] map[E]struct{}

// NewSet returns a set holding the given items.
func NewSet[E comparable](items ...E) Set[E] {
	s := make(Set[E], len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

// Add inserts items into the set.
func (s Set[E]) Add(items ...E) {
	for _, item := range items {
		s[item] = struct{}{}
	}
}

// AddAll inserts every element of other into the set.
func (s Set[E]) AddAll(other Set[E]) {
	for item := range other {
		s[item] = struct{}{}
	}
}

// Contains reports whether item is a member of the set.
func (s Set[E]) Contains(item E) bool {
	_, ok := s[item]
	return ok
}

// Len returns the number of elements.
func (s Set[E]) Len() int { return len(s) }

// IsEmpty reports whether the set has no elements.
func (s Set[E]) IsEmpty() bool { return len(s) == 0 }

// Clone returns a writable copy of the set. Cloning a nil set yields an empty
// non-nil set.
func (s Set[E]) Clone() Set[E] {
	out := make(Set[E], len(s))
	for item := range s {
		out[item] = struct{}{}
	}
	return out
}

// Union returns a new set with the elements of s and other.
func (s Set[E]) Union(other Set[E]) Set[E] {
	out := make(Set[E], len(s)+len(other))
	out.AddAll(s)
	out.AddAll(other)
	return out
}

// Difference returns a new set with the elements of s that are not in other.
func (s Set[E]) Difference(other Set[E]) Set[E] {
	out := make(Set[E], len(s))
	for item := range s {
		if !other.Contains(item) {
			out[item] = struct{}{}
		}
	}
	return out
}

// Intersection returns a new set with the elements present in both sets.
func (s Set[E]) Intersection(other Set[E]) Set[E] {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(Set[E])
	for item := range small {
		if large.Contains(item) {
			out[item] = struct{}{}
		}
	}
	return out
}

// IsSubsetOf reports whether every element of s is also in other.
func (s Set[E]) IsSubsetOf(other Set[E]) bool {
	if len(s) > len(other) {
		return false
	}
	for item := range s {
		if !other.Contains(item) {
			return false
		}
	}
	return true
}

// Equal reports whether both sets hold exactly the same elements.
func (s Set[E]) Equal(other Set[E]) bool {
	return len(s) == len(other) && s.IsSubsetOf(other)
}

// Items returns the elements in unspecified order.
func (s Set[E]) Items() []E {
	return maps.Keys(s)
}

// Sorted returns the elements ordered by cmp.
func (s Set[E]) Sorted(cmp func(a, b E) int) []E {
	items := s.Items()
	slices.SortFunc(items, cmp)
	return items
}
