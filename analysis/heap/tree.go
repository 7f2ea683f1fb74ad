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

// Fabricate returns the value of a slot the principal heap has never seen: the field of the objects of owner. The
// value only depends on the slot.
type Fabricate[V any] func(owner memloc.Reference, field string) V

// Tree is the principal tree heap. It is self-sufficient: on the first access to a slot it has never seen, it
// fabricates a value for that slot and records it, so that subsequent reads of the slot agree.
//
// A slot the heap has no value for stands for its fabricated value: joins, order and equality compare an absent
// slot as if it had been read.
type Tree[V lattice.Value[V]] struct {
	store[V]
	fabricate Fabricate[V]
	refs      func(V) memloc.RefSet
}

// NewTree returns an empty principal heap. fabricate creates the values of unseen slots, refs returns the
// references a value points to and is used by Reduce to compute reachability.
func NewTree[V lattice.Value[V]](fabricate Fabricate[V], refs func(V) memloc.RefSet) *Tree[V] {
	return &Tree[V]{store: newStore[V](), fabricate: fabricate, refs: refs}
}

func (t *Tree[V]) with(s store[V]) *Tree[V] {
	return &Tree[V]{store: s, fabricate: t.fabricate, refs: t.refs}
}

func (t *Tree[V]) read(obj Addr[V], field string, def V) V {
	var res V
	found := false
	for _, r := range nonNull(obj) {
		n := t.node(r, false)
		var v V
		ok := false
		if n != nil {
			v, ok = n.fields[field]
		}
		if !ok {
			if t.fabricate == nil {
				v = def
			} else {
				v = t.fabricate(r, field)
				t.node(r, true).fields[field] = v
			}
		}
		if found {
			res = res.Join(v)
		} else {
			res, found = v, true
		}
	}
	if !found {
		return def
	}
	return res
}

// absent returns the value of a slot the heap has never seen
func (t *Tree[V]) absent(r memloc.Reference, field string) (V, bool) {
	if t.fabricate == nil {
		var zero V
		return zero, false
	}
	return t.fabricate(r, field), true
}

func (t *Tree[V]) previous(field string) func(memloc.Reference) (V, bool) {
	return func(r memloc.Reference) (V, bool) {
		if field == ObjectField {
			var zero V
			return zero, false
		}
		return t.absent(r, field)
	}
}

// GetField returns the join of the field over all the non-null references of the object. Unseen fields are
// fabricated.
func (t *Tree[V]) GetField(obj Addr[V], field string, def V) V {
	return t.read(obj, field, def)
}

// SetField overwrites the field when the object has a single non-null reference, and joins v into the field of every
// alias otherwise.
func (t *Tree[V]) SetField(obj Addr[V], field string, v V) {
	t.write(nonNull(obj), field, v, true, t.previous(field))
}

// GetArrayElement implements Heap
func (t *Tree[V]) GetArrayElement(arr Addr[V], def V) V {
	return t.read(arr, ArrayField, def)
}

// SetArrayElement implements Heap
func (t *Tree[V]) SetArrayElement(arr Addr[V], v V) {
	t.write(nonNull(arr), ArrayField, v, false, t.previous(ArrayField))
}

// NewObject implements Heap
func (t *Tree[V]) NewObject(obj Addr[V]) {
	for _, r := range nonNull(obj) {
		t.node(r, true)
	}
}

// NewArray implements Heap
func (t *Tree[V]) NewArray(arr Addr[V], def V) {
	for _, r := range nonNull(arr) {
		n := t.node(r, true)
		if old, ok := n.fields[ArrayField]; ok {
			n.fields[ArrayField] = old.Join(def)
		} else {
			n.fields[ArrayField] = def
		}
	}
}

// ObjectValue implements Heap
func (t *Tree[V]) ObjectValue(obj Addr[V], def V) V {
	return t.objectValue(nonNull(obj), def)
}

// SetObjectValue implements Heap
func (t *Tree[V]) SetObjectValue(obj Addr[V], v V) {
	t.write(nonNull(obj), ObjectField, v, false, t.previous(ObjectField))
}

// Join implements Heap
func (t *Tree[V]) Join(other Heap[V]) Heap[V] {
	o := lattice.Cast[*Tree[V]]("tree heap join", other)
	return t.with(t.store.join(o.store, t.absent))
}

// LessOrEqual implements Heap
func (t *Tree[V]) LessOrEqual(other Heap[V]) bool {
	return t.store.lessOrEqual(lattice.Cast[*Tree[V]]("tree heap order", other).store, t.absent)
}

// Equal implements Heap
func (t *Tree[V]) Equal(other Heap[V]) bool {
	return t.store.equal(lattice.Cast[*Tree[V]]("tree heap equality", other).store, t.absent)
}

// Copy implements Heap
func (t *Tree[V]) Copy() Heap[V] {
	return t.with(t.store.copy())
}

// Reduce keeps the nodes reachable from the roots through field and array values. Reachability only follows
// references downward, from owners to the values of their fields.
func (t *Tree[V]) Reduce(roots memloc.RefSet) Heap[V] {
	reached := map[memloc.Reference]bool{}
	var worklist []memloc.Reference
	roots.ForEach(func(r memloc.Reference) {
		if !r.IsNull() && !reached[r] {
			reached[r] = true
			worklist = append(worklist, r)
		}
	})
	for len(worklist) > 0 {
		r := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		n, ok := t.nodes[r]
		if !ok || t.refs == nil {
			continue
		}
		for _, v := range n.fields {
			t.refs(v).ForEach(func(next memloc.Reference) {
				if !next.IsNull() && !reached[next] {
					reached[next] = true
					worklist = append(worklist, next)
				}
			})
		}
	}
	return t.with(t.filter(func(r memloc.Reference) bool { return reached[r] }))
}

// Expand implements Heap
func (t *Tree[V]) Expand(callee Heap[V]) Heap[V] {
	c := lattice.Cast[*Tree[V]]("tree heap expand", callee)
	return t.with(t.store.expand(c.store))
}

// Keys implements Heap
func (t *Tree[V]) Keys() memloc.RefSet {
	return t.keys()
}

// Node returns the node of the reference, or nil
func (t *Tree[V]) Node(r memloc.Reference) *Node[V] {
	return t.nodes[r]
}

func (t *Tree[V]) String() string {
	return t.store.String()
}
