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
	"github.com/awslabs/ar-jvm-tools/analysis/lattice"
	"github.com/awslabs/ar-jvm-tools/analysis/memloc"
)

// Follower is a tree heap whose topology is decided by a principal heap. It stores values at the references the
// principal computes, never fabricates, and returns the default for the slots it has never seen.
type Follower[V lattice.Value[V]] struct {
	store[V]
}

// NewFollower returns an empty follower heap
func NewFollower[V lattice.Value[V]]() *Follower[V] {
	return &Follower[V]{store: newStore[V]()}
}

func noPrevious[V any](memloc.Reference) (V, bool) {
	var zero V
	return zero, false
}

func (f *Follower[V]) read(obj Addr[V], field string, def V) V {
	res := def
	for _, r := range nonNull(obj) {
		if n, ok := f.nodes[r]; ok {
			if v, ok := n.fields[field]; ok {
				res = res.Join(v)
			}
		}
	}
	return res
}

// GetField implements Heap
func (f *Follower[V]) GetField(obj Addr[V], field string, def V) V {
	return f.read(obj, field, def)
}

// SetField overwrites the field when the principal resolved the object to a single non-null reference, and joins v
// into the field of every alias otherwise.
func (f *Follower[V]) SetField(obj Addr[V], field string, v V) {
	f.write(nonNull(obj), field, v, true, noPrevious[V])
}

// GetArrayElement implements Heap
func (f *Follower[V]) GetArrayElement(arr Addr[V], def V) V {
	return f.read(arr, ArrayField, def)
}

// SetArrayElement implements Heap
func (f *Follower[V]) SetArrayElement(arr Addr[V], v V) {
	f.write(nonNull(arr), ArrayField, v, false, noPrevious[V])
}

// NewObject implements Heap
func (f *Follower[V]) NewObject(obj Addr[V]) {
	for _, r := range nonNull(obj) {
		f.node(r, true)
	}
}

// NewArray implements Heap
func (f *Follower[V]) NewArray(arr Addr[V], def V) {
	for _, r := range nonNull(arr) {
		n := f.node(r, true)
		if old, ok := n.fields[ArrayField]; ok {
			n.fields[ArrayField] = old.Join(def)
		} else {
			n.fields[ArrayField] = def
		}
	}
}

// ObjectValue implements Heap
func (f *Follower[V]) ObjectValue(obj Addr[V], def V) V {
	return f.objectValue(nonNull(obj), def)
}

// SetObjectValue implements Heap
func (f *Follower[V]) SetObjectValue(obj Addr[V], v V) {
	f.write(nonNull(obj), ObjectField, v, false, noPrevious[V])
}

// Join implements Heap
func (f *Follower[V]) Join(other Heap[V]) Heap[V] {
	o := lattice.Cast[*Follower[V]]("follower heap join", other)
	return &Follower[V]{store: f.store.join(o.store, noAbsent[V])}
}

// LessOrEqual implements Heap
func (f *Follower[V]) LessOrEqual(other Heap[V]) bool {
	return f.store.lessOrEqual(lattice.Cast[*Follower[V]]("follower heap order", other).store, noAbsent[V])
}

// Equal implements Heap
func (f *Follower[V]) Equal(other Heap[V]) bool {
	return f.store.equal(lattice.Cast[*Follower[V]]("follower heap equality", other).store, noAbsent[V])
}

// Copy implements Heap
func (f *Follower[V]) Copy() Heap[V] {
	return &Follower[V]{store: f.store.copy()}
}

// Reduce drops the nodes whose reference is not in keep, the key set of the reduced principal heap
func (f *Follower[V]) Reduce(keep memloc.RefSet) Heap[V] {
	return &Follower[V]{store: f.filter(keep.Contains)}
}

// Expand implements Heap
func (f *Follower[V]) Expand(callee Heap[V]) Heap[V] {
	c := lattice.Cast[*Follower[V]]("follower heap expand", callee)
	return &Follower[V]{store: f.store.expand(c.store)}
}

// Keys implements Heap
func (f *Follower[V]) Keys() memloc.RefSet {
	return f.keys()
}

// Node returns the node of the reference, or nil
func (f *Follower[V]) Node(r memloc.Reference) *Node[V] {
	return f.nodes[r]
}

func (f *Follower[V]) String() string {
	return f.store.String()
}
