// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lattice

import (
	"fmt"
	"sort"
	"strings"
)

// Set is an immutable set of comparable elements ordered by inclusion. The zero value is the empty set, which is
// the bottom element.
//
// Sets share their underlying map: every operation that adds elements returns a fresh set and leaves the receiver
// untouched.
type Set[T comparable] struct {
	elems map[T]struct{}
}

// NewSet returns the set containing the elements xs
func NewSet[T comparable](xs ...T) Set[T] {
	if len(xs) == 0 {
		return Set[T]{}
	}
	m := make(map[T]struct{}, len(xs))
	for _, x := range xs {
		m[x] = struct{}{}
	}
	return Set[T]{elems: m}
}

// Len returns the number of elements of the set
func (s Set[T]) Len() int {
	return len(s.elems)
}

// IsEmpty returns true when the set is bottom
func (s Set[T]) IsEmpty() bool {
	return len(s.elems) == 0
}

// Contains returns true when x is an element of s
func (s Set[T]) Contains(x T) bool {
	_, ok := s.elems[x]
	return ok
}

// Add returns s ∪ {x}
func (s Set[T]) Add(x T) Set[T] {
	if s.Contains(x) {
		return s
	}
	m := make(map[T]struct{}, len(s.elems)+1)
	for e := range s.elems {
		m[e] = struct{}{}
	}
	m[x] = struct{}{}
	return Set[T]{elems: m}
}

// Remove returns s \ {x}
func (s Set[T]) Remove(x T) Set[T] {
	if !s.Contains(x) {
		return s
	}
	m := make(map[T]struct{}, len(s.elems))
	for e := range s.elems {
		if e != x {
			m[e] = struct{}{}
		}
	}
	return Set[T]{elems: m}
}

// Filter returns the subset of s whose elements satisfy keep
func (s Set[T]) Filter(keep func(T) bool) Set[T] {
	m := map[T]struct{}{}
	for e := range s.elems {
		if keep(e) {
			m[e] = struct{}{}
		}
	}
	if len(m) == len(s.elems) {
		return s
	}
	return Set[T]{elems: m}
}

// Elements returns the elements of the set in unspecified order
func (s Set[T]) Elements() []T {
	res := make([]T, 0, len(s.elems))
	for e := range s.elems {
		res = append(res, e)
	}
	return res
}

// Sorted returns the elements of the set ordered by their printed representation
func (s Set[T]) Sorted() []T {
	res := s.Elements()
	sort.Slice(res, func(i, j int) bool { return fmt.Sprint(res[i]) < fmt.Sprint(res[j]) })
	return res
}

// ForEach calls f on every element of the set
func (s Set[T]) ForEach(f func(T)) {
	for e := range s.elems {
		f(e)
	}
}

// Join returns the union of s and other
func (s Set[T]) Join(other Set[T]) Set[T] {
	if other.LessOrEqual(s) {
		return s
	}
	if s.LessOrEqual(other) {
		return other
	}
	m := make(map[T]struct{}, len(s.elems)+len(other.elems))
	for e := range s.elems {
		m[e] = struct{}{}
	}
	for e := range other.elems {
		m[e] = struct{}{}
	}
	return Set[T]{elems: m}
}

// Meet returns the intersection of s and other
func (s Set[T]) Meet(other Set[T]) Set[T] {
	return s.Filter(other.Contains)
}

// LessOrEqual returns true if s is included in other
func (s Set[T]) LessOrEqual(other Set[T]) bool {
	if len(s.elems) > len(other.elems) {
		return false
	}
	for e := range s.elems {
		if !other.Contains(e) {
			return false
		}
	}
	return true
}

// Equal returns true if both sets have the same elements
func (s Set[T]) Equal(other Set[T]) bool {
	return len(s.elems) == len(other.elems) && s.LessOrEqual(other)
}

func (s Set[T]) String() string {
	parts := make([]string, 0, len(s.elems))
	for _, e := range s.Sorted() {
		parts = append(parts, fmt.Sprint(e))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
