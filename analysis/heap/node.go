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

// Node maps the fields of the objects of a reference to their values. A node is owned by the heap that holds it.
type Node[V lattice.Value[V]] struct {
	fields map[string]V
}

func newNode[V lattice.Value[V]]() *Node[V] {
	return &Node[V]{fields: map[string]V{}}
}

// Field returns the value of the field, if the node has one
func (n *Node[V]) Field(name string) (V, bool) {
	v, ok := n.fields[name]
	return v, ok
}

// Fields returns the names of the fields of the node, sorted
func (n *Node[V]) Fields() []string {
	res := make([]string, 0, len(n.fields))
	for f := range n.fields {
		res = append(res, f)
	}
	sort.Strings(res)
	return res
}

func (n *Node[V]) copy() *Node[V] {
	m := make(map[string]V, len(n.fields))
	for f, v := range n.fields {
		m[f] = v
	}
	return &Node[V]{fields: m}
}

// slot returns the value of the field of the node of r, or the value absent gives the slot when the node does not
// have it. known is false when neither has a value.
func slot[V lattice.Value[V]](n *Node[V], r memloc.Reference, field string, absent absentFunc[V]) (V, bool) {
	if n != nil {
		if v, ok := n.fields[field]; ok {
			return v, true
		}
	}
	return absent(r, field)
}

// fieldNames returns the names of the fields of both nodes
func fieldNames[V lattice.Value[V]](a, b *Node[V]) map[string]bool {
	names := map[string]bool{}
	for _, n := range []*Node[V]{a, b} {
		if n != nil {
			for f := range n.fields {
				names[f] = true
			}
		}
	}
	return names
}

func joinNodes[V lattice.Value[V]](r memloc.Reference, a, b *Node[V], absent absentFunc[V]) *Node[V] {
	res := newNode[V]()
	for f := range fieldNames(a, b) {
		va, ka := slot(a, r, f, absent)
		vb, kb := slot(b, r, f, absent)
		switch {
		case ka && kb:
			res.fields[f] = va.Join(vb)
		case ka:
			res.fields[f] = va
		default:
			res.fields[f] = vb
		}
	}
	return res
}

// lessOrEqualNodes compares the nodes slot by slot. A slot without any value is below every other.
func lessOrEqualNodes[V lattice.Value[V]](r memloc.Reference, a, b *Node[V], absent absentFunc[V]) bool {
	for f := range fieldNames(a, b) {
		va, ka := slot(a, r, f, absent)
		vb, kb := slot(b, r, f, absent)
		if ka && (!kb || !va.LessOrEqual(vb)) {
			return false
		}
	}
	return true
}

func equalNodes[V lattice.Value[V]](r memloc.Reference, a, b *Node[V], absent absentFunc[V]) bool {
	for f := range fieldNames(a, b) {
		va, ka := slot(a, r, f, absent)
		vb, kb := slot(b, r, f, absent)
		if ka != kb || (ka && !va.Equal(vb)) {
			return false
		}
	}
	return true
}

func (n *Node[V]) String() string {
	parts := make([]string, 0, len(n.fields))
	for _, f := range n.Fields() {
		parts = append(parts, fmt.Sprintf("%s: %s", f, n.fields[f]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// absentFunc returns the value of a slot a store has no value for, if it has one
type absentFunc[V any] func(r memloc.Reference, field string) (V, bool)

func noAbsent[V any](memloc.Reference, string) (V, bool) {
	var zero V
	return zero, false
}

// store is the reference-indexed storage shared by the principal and follower trees
type store[V lattice.Value[V]] struct {
	nodes map[memloc.Reference]*Node[V]
}

func newStore[V lattice.Value[V]]() store[V] {
	return store[V]{nodes: map[memloc.Reference]*Node[V]{}}
}

// node returns the node of r, creating it when create is true
func (s store[V]) node(r memloc.Reference, create bool) *Node[V] {
	n, ok := s.nodes[r]
	if !ok && create {
		n = newNode[V]()
		s.nodes[r] = n
	}
	return n
}

// write stores v in the field of the nodes of refs: a strong update when there is exactly one reference, a weak
// update of every alias otherwise. old returns the value a weak update joins with for a node missing the field.
func (s store[V]) write(refs []memloc.Reference, field string, v V, strong bool, old func(memloc.Reference) (V, bool)) {
	for _, r := range refs {
		n := s.node(r, true)
		if strong && len(refs) == 1 {
			n.fields[field] = v
			continue
		}
		if prev, ok := n.fields[field]; ok {
			n.fields[field] = prev.Join(v)
		} else if prev, ok := old(r); ok {
			n.fields[field] = prev.Join(v)
		} else {
			n.fields[field] = v
		}
	}
}

// objectValue joins all the fields of the nodes of refs
func (s store[V]) objectValue(refs []memloc.Reference, def V) V {
	res := def
	for _, r := range refs {
		if n, ok := s.nodes[r]; ok {
			for _, v := range n.fields {
				res = res.Join(v)
			}
		}
	}
	return res
}

func (s store[V]) copy() store[V] {
	res := store[V]{nodes: make(map[memloc.Reference]*Node[V], len(s.nodes))}
	for r, n := range s.nodes {
		res.nodes[r] = n.copy()
	}
	return res
}

// refs returns the references of the nodes of both stores
func (s store[V]) refs(other store[V]) map[memloc.Reference]bool {
	res := make(map[memloc.Reference]bool, len(s.nodes)+len(other.nodes))
	for r := range s.nodes {
		res[r] = true
	}
	for r := range other.nodes {
		res[r] = true
	}
	return res
}

// join joins the stores slot by slot. A slot present on one side only is joined with the value absent gives it.
func (s store[V]) join(other store[V], absent absentFunc[V]) store[V] {
	res := store[V]{nodes: make(map[memloc.Reference]*Node[V], len(s.nodes))}
	for r := range s.refs(other) {
		res.nodes[r] = joinNodes(r, s.nodes[r], other.nodes[r], absent)
	}
	return res
}

func (s store[V]) lessOrEqual(other store[V], absent absentFunc[V]) bool {
	for r := range s.refs(other) {
		if !lessOrEqualNodes(r, s.nodes[r], other.nodes[r], absent) {
			return false
		}
	}
	return true
}

func (s store[V]) equal(other store[V], absent absentFunc[V]) bool {
	for r := range s.refs(other) {
		if !equalNodes(r, s.nodes[r], other.nodes[r], absent) {
			return false
		}
	}
	return true
}

// filter returns the store restricted to the references of keep
func (s store[V]) filter(keep func(memloc.Reference) bool) store[V] {
	res := store[V]{nodes: map[memloc.Reference]*Node[V]{}}
	for r, n := range s.nodes {
		if keep(r) {
			res.nodes[r] = n.copy()
		}
	}
	return res
}

// expand returns the caller store updated with the nodes of the callee store. Callee nodes replace caller nodes:
// they describe the objects at the callee's exit. Caller nodes the callee did not see are re-attached unchanged.
func (s store[V]) expand(callee store[V]) store[V] {
	res := s.copy()
	for r, n := range callee.nodes {
		res.nodes[r] = n.copy()
	}
	return res
}

func (s store[V]) keys() memloc.RefSet {
	refs := make([]memloc.Reference, 0, len(s.nodes))
	for r := range s.nodes {
		refs = append(refs, r)
	}
	return memloc.Refs(refs...)
}

func (s store[V]) String() string {
	refs := s.keys().Sorted()
	parts := make([]string, 0, len(refs))
	for _, r := range refs {
		parts = append(parts, fmt.Sprintf("%s -> %s", r, s.nodes[r]))
	}
	return "[" + strings.Join(parts, "; ") + "]"
}
