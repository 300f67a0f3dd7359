/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package sets

type Set map[string]struct{}

// NewSet creates and returns a new empty Set
func NewSet() Set {
	return make(Set)
}

// NewSetByKeys creates a new Set and inserts the provided keys into it
func NewSetByKeys(keys ...string) Set {
	set := NewSet()
	set.Insert(keys...)
	return set
}

// Insert adds one or more keys to the set and returns the set
func (s Set) Insert(keys ...string) Set {
	for _, key := range keys {
		s[key] = struct{}{}
	}
	return s
}

// Delete removes one or more keys from the set and returns the set
func (s Set) Delete(keys ...string) Set {
	for _, key := range keys {
		delete(s, key)
	}
	return s
}

// Has checks if a key exists in the set, returns false if set is nil
func (s Set) Has(key string) bool {
	if s == nil {
		return false
	}
	_, ok := s[key]
	return ok
}

// Len returns the number of elements in the set
func (s Set) Len() int {
	return len(s)
}

// UnsortedList returns the elements of the set in unspecified order
func (s Set) UnsortedList() []string {
	result := make([]string, 0, len(s))
	for key := range s {
		result = append(result, key)
	}
	return result
}

// Union returns a set containing the elements of both s and other
func (s Set) Union(other Set) Set {
	result := make(Set, len(s)+len(other))
	for key := range s {
		result.Insert(key)
	}
	for key := range other {
		result.Insert(key)
	}
	return result
}

// Equal returns true when both sets contain exactly the same keys
func (s Set) Equal(other Set) bool {
	if s.Len() != other.Len() {
		return false
	}
	for key := range s {
		if !other.Has(key) {
			return false
		}
	}
	return true
}
