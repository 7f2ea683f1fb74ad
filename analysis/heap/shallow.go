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

package heap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/awslabs/ar-jvm-tools/analysis/lattice"
	"github.com/awslabs/ar-jvm-tools/analysis/memloc"
)

// Shallow is a single-level heap: it maps the identity of an object to one value and ignores field names. An object
// is identified by its non-null references when the principal supplies them, and otherwise by the identity of its
// value (see Identifier). Objects with no identity are not tracked.
//
// All updates are weak: a shallow key may stand for several objects, and all the fields of an object share a slot.
type Shallow[V lattice.Value[V]] struct {
	values map[any]V
}

// NewShallow returns an empty shallow heap
func NewShallow[V lattice.Value[V]]() *Shallow[V] {
	return &Shallow[V]{values: map[any]V{}}
}

func shallowKeys[V any](a Addr[V]) []any {
	var keys []any
	for _, r := range nonNull(a) {
		keys = append(keys, r)
	}
	if len(keys) > 0 {
		return keys
	}
	if id, ok := any(a.Value).(Identifier); ok {
		if k, ok := id.Identity(); ok {
			return []any{k}
		}
	}
	return nil
}

func (s *Shallow[V]) get(a Addr[V], def V) V {
	res := def
	for _, k := range shallowKeys(a) {
		if v, ok := s.values[k]; ok {
			res = res.Join(v)
		}
	}
	return res
}

func (s *Shallow[V]) set(a Addr[V], v V) {
	for _, k := range shallowKeys(a) {
		if old, ok := s.values[k]; ok {
			s.values[k] = old.Join(v)
		} else {
			s.values[k] = v
		}
	}
}

// Value returns the value stored under the key, if any
func (s *Shallow[V]) Value(key any) (V, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Len returns the number of keys of the heap
func (s *Shallow[V]) Len() int {
	return len(s.values)
}

// GetField implements Heap. The field name is ignored.
func (s *Shallow[V]) GetField(obj Addr[V], _ string, def V) V {
	return s.get(obj, def)
}

// SetField implements Heap. The field name is ignored.
func (s *Shallow[V]) SetField(obj Addr[V], _ string, v V) {
	s.set(obj, v)
}

// GetArrayElement implements Heap
func (s *Shallow[V]) GetArrayElement(arr Addr[V], def V) V {
	return s.get(arr, def)
}

// SetArrayElement implements Heap
func (s *Shallow[V]) SetArrayElement(arr Addr[V], v V) {
	s.set(arr, v)
}

// NewObject implements Heap. Shallow objects have no slot until something is stored in them.
func (s *Shallow[V]) NewObject(Addr[V]) {}

// NewArray implements Heap
func (s *Shallow[V]) NewArray(arr Addr[V], def V) {
	s.set(arr, def)
}

// ObjectValue implements Heap
func (s *Shallow[V]) ObjectValue(obj Addr[V], def V) V {
	return s.get(obj, def)
}

// SetObjectValue implements Heap
func (s *Shallow[V]) SetObjectValue(obj Addr[V], v V) {
	s.set(obj, v)
}

// Join implements Heap
func (s *Shallow[V]) Join(other Heap[V]) Heap[V] {
	o := lattice.Cast[*Shallow[V]]("shallow heap join", other)
	res := s.copy()
	for k, v := range o.values {
		if old, ok := res.values[k]; ok {
			res.values[k] = old.Join(v)
		} else {
			res.values[k] = v
		}
	}
	return res
}

// LessOrEqual implements Heap
func (s *Shallow[V]) LessOrEqual(other Heap[V]) bool {
	o := lattice.Cast[*Shallow[V]]("shallow heap order", other)
	for k, v := range s.values {
		ov, ok := o.values[k]
		if !ok || !v.LessOrEqual(ov) {
			return false
		}
	}
	return true
}

// Equal implements Heap
func (s *Shallow[V]) Equal(other Heap[V]) bool {
	o := lattice.Cast[*Shallow[V]]("shallow heap equality", other)
	if len(s.values) != len(o.values) {
		return false
	}
	for k, v := range s.values {
		ov, ok := o.values[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

func (s *Shallow[V]) copy() *Shallow[V] {
	res := &Shallow[V]{values: make(map[any]V, len(s.values))}
	for k, v := range s.values {
		res.values[k] = v
	}
	return res
}

// Copy implements Heap
func (s *Shallow[V]) Copy() Heap[V] {
	return s.copy()
}

// Reduce returns a copy of the heap: the shallow heap has no reference graph to sweep
func (s *Shallow[V]) Reduce(memloc.RefSet) Heap[V] {
	return s.copy()
}

// Expand joins the callee heap into the caller heap
func (s *Shallow[V]) Expand(callee Heap[V]) Heap[V] {
	return s.Join(callee)
}

// Keys returns the reference keys of the heap. Keys that are value identities are not references.
func (s *Shallow[V]) Keys() memloc.RefSet {
	var refs []memloc.Reference
	for k := range s.values {
		if r, ok := k.(memloc.Reference); ok {
			refs = append(refs, r)
		}
	}
	return memloc.Refs(refs...)
}

func (s *Shallow[V]) String() string {
	parts := make([]string, 0, len(s.values))
	for k, v := range s.values {
		parts = append(parts, fmt.Sprintf("%v -> %s", k, v))
	}
	sort.Strings(parts)
	return "[" + strings.Join(parts, "; ") + "]"
}
