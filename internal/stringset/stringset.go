/*
Copyright pg-auto-ha Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package stringset implements a small set-of-strings type used to diff
// declarative desired state (replication slots, HBA peers) against what is
// currently observed on a data node.
package stringset

import "sort"

// Data is a set of strings.
type Data struct {
	items map[string]struct{}
}

// New returns an empty set.
func New() *Data {
	return &Data{items: make(map[string]struct{})}
}

// From builds a set out of a slice of strings.
func From(list []string) *Data {
	s := New()
	for _, item := range list {
		s.Put(item)
	}
	return s
}

// FromKeys builds a set out of the keys of a map.
func FromKeys[V any](m map[string]V) *Data {
	s := New()
	for key := range m {
		s.Put(key)
	}
	return s
}

// Put adds item to the set.
func (s *Data) Put(item string) {
	s.items[item] = struct{}{}
}

// Delete removes item from the set.
func (s *Data) Delete(item string) {
	delete(s.items, item)
}

// Has reports whether item belongs to the set.
func (s *Data) Has(item string) bool {
	_, ok := s.items[item]
	return ok
}

// Len returns the number of elements in the set.
func (s *Data) Len() int {
	return len(s.items)
}

// ToList returns the set content as a slice, in unspecified order.
func (s *Data) ToList() []string {
	list := make([]string, 0, len(s.items))
	for item := range s.items {
		list = append(list, item)
	}
	return list
}

// ToSortedList returns the set content as a slice, sorted lexically.
func (s *Data) ToSortedList() []string {
	list := s.ToList()
	sort.Strings(list)
	return list
}

// Eq reports whether two sets contain the same elements.
func (s *Data) Eq(other *Data) bool {
	if s.Len() != other.Len() {
		return false
	}
	for item := range s.items {
		if !other.Has(item) {
			return false
		}
	}
	return true
}

// Diff returns the elements present in s but not in other — the set of
// "add" operations needed to turn other into s, e.g. the replication slots
// that must be created for peers that do not yet have one.
func (s *Data) Diff(other *Data) []string {
	var out []string
	for item := range s.items {
		if !other.Has(item) {
			out = append(out, item)
		}
	}
	sort.Strings(out)
	return out
}
