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

package jvm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
	"github.com/awslabs/ar-jvm-tools/analysis/cpa"
	"github.com/awslabs/ar-jvm-tools/analysis/heap"
	"github.com/awslabs/ar-jvm-tools/analysis/lattice"
)

// State is the abstract state of a JVM thread at a node: a frame, a heap and the static fields, all holding
// values of the same domain.
//
// A static field the state has never read or written holds its default value (see SetStaticDefault): joins, order
// and equality compare an absent static field as if it had been read.
type State[V lattice.Value[V]] struct {
	node          *cfa.Node
	Frame         *Frame[V]
	Heap          heap.Heap[V]
	statics       map[cfa.FieldRef]V
	staticDefault func(cfa.FieldRef) V
}

// NewState returns a state at the node with an empty frame, the heap h and no statics
func NewState[V lattice.Value[V]](node *cfa.Node, h heap.Heap[V]) *State[V] {
	return &State[V]{node: node, Frame: NewFrame[V](), Heap: h, statics: map[cfa.FieldRef]V{}}
}

// Node implements cpa.LocationDependent
func (s *State[V]) Node() *cfa.Node {
	return s.node
}

// SetNode implements cpa.LocationDependent
func (s *State[V]) SetNode(n *cfa.Node) {
	s.node = n
}

// Static returns the value of the static field, if the state has one
func (s *State[V]) Static(f cfa.FieldRef) (V, bool) {
	v, ok := s.statics[f]
	return v, ok
}

// SetStatic sets the value of the static field
func (s *State[V]) SetStatic(f cfa.FieldRef, v V) {
	s.statics[f] = v
}

// SetStaticDefault sets the function returning the value of the static fields the state has never seen
func (s *State[V]) SetStaticDefault(def func(cfa.FieldRef) V) {
	s.staticDefault = def
}

// static returns the value of the static field, or its default when the state has not seen it. known is false when
// there is neither.
func (s *State[V]) static(f cfa.FieldRef, def func(cfa.FieldRef) V) (v V, known bool) {
	if v, ok := s.statics[f]; ok {
		return v, true
	}
	if def == nil {
		return v, false
	}
	return def(f), true
}

// defaults returns the static default of the states
func (s *State[V]) defaults(o *State[V]) func(cfa.FieldRef) V {
	if s.staticDefault != nil {
		return s.staticDefault
	}
	return o.staticDefault
}

// staticNames returns the static fields of both states
func (s *State[V]) staticNames(o *State[V]) map[cfa.FieldRef]bool {
	res := make(map[cfa.FieldRef]bool, len(s.statics)+len(o.statics))
	for f := range s.statics {
		res[f] = true
	}
	for f := range o.statics {
		res[f] = true
	}
	return res
}

// Statics returns the static fields of the state, sorted
func (s *State[V]) Statics() []cfa.FieldRef {
	res := make([]cfa.FieldRef, 0, len(s.statics))
	for f := range s.statics {
		res = append(res, f)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].String() < res[j].String() })
	return res
}

// Replace re-points every frame entry and static field matching old to v
func (s *State[V]) Replace(old func(V) bool, v V) int {
	n := s.Frame.Replace(old, v)
	for f, x := range s.statics {
		if old(x) {
			s.statics[f] = v
			n++
		}
	}
	return n
}

func (s *State[V]) copyAt(node *cfa.Node) *State[V] {
	res := &State[V]{
		node:          node,
		Frame:         s.Frame.Copy(),
		Heap:          s.Heap.Copy(),
		statics:       make(map[cfa.FieldRef]V, len(s.statics)),
		staticDefault: s.staticDefault,
	}
	for f, v := range s.statics {
		res.statics[f] = v
	}
	return res
}

// Copy implements cpa.AbstractState
func (s *State[V]) Copy() cpa.AbstractState {
	return s.copyAt(s.node)
}

// Join implements cpa.AbstractState. The result is at the node of the receiver.
func (s *State[V]) Join(other cpa.AbstractState) cpa.AbstractState {
	o := lattice.Cast[*State[V]]("jvm state join", other)
	def := s.defaults(o)
	res := &State[V]{
		node:          s.node,
		Frame:         s.Frame.Join(o.Frame),
		Heap:          s.Heap.Join(o.Heap),
		statics:       make(map[cfa.FieldRef]V, len(s.statics)),
		staticDefault: def,
	}
	for f := range s.staticNames(o) {
		v, known := s.static(f, def)
		ov, oknown := o.static(f, def)
		switch {
		case known && oknown:
			res.statics[f] = v.Join(ov)
		case known:
			res.statics[f] = v
		default:
			res.statics[f] = ov
		}
	}
	return res
}

// LessOrEqual implements cpa.AbstractState
func (s *State[V]) LessOrEqual(other cpa.AbstractState) bool {
	o := lattice.Cast[*State[V]]("jvm state order", other)
	if !s.Frame.LessOrEqual(o.Frame) {
		return false
	}
	def := s.defaults(o)
	for f := range s.staticNames(o) {
		v, known := s.static(f, def)
		ov, oknown := o.static(f, def)
		if known && (!oknown || !v.LessOrEqual(ov)) {
			return false
		}
	}
	return s.Heap.LessOrEqual(o.Heap)
}

// Equal implements cpa.AbstractState
func (s *State[V]) Equal(other cpa.AbstractState) bool {
	o := lattice.Cast[*State[V]]("jvm state equality", other)
	if !s.Frame.Equal(o.Frame) {
		return false
	}
	def := s.defaults(o)
	for f := range s.staticNames(o) {
		v, known := s.static(f, def)
		ov, oknown := o.static(f, def)
		if known != oknown || (known && !v.Equal(ov)) {
			return false
		}
	}
	return s.Heap.Equal(o.Heap)
}

func (s *State[V]) String() string {
	statics := make([]string, 0, len(s.statics))
	for _, f := range s.Statics() {
		statics = append(statics, fmt.Sprintf("%s: %s", f, s.statics[f]))
	}
	node := "<nil>"
	if s.node != nil {
		node = s.node.String()
	}
	return fmt.Sprintf("%s: %s statics {%s} heap %s", node, s.Frame, strings.Join(statics, ", "), s.Heap)
}
