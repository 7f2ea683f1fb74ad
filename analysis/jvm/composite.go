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
	"errors"
	"fmt"
	"strings"

	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
	"github.com/awslabs/ar-jvm-tools/analysis/cpa"
	"github.com/awslabs/ar-jvm-tools/analysis/lattice"
	"github.com/awslabs/ar-jvm-tools/analysis/memloc"
)

// ErrNoPrincipal is returned when a composite state does not start with a reference state
var ErrNoPrincipal = errors.New("the first element of a composite state must be a reference state")

// Composite is the product of a reference state (the principal, always first) and the states of follower domains
// at the same node
type Composite struct {
	states []cpa.AbstractState
}

// NewComposite returns the composite of the states. The first state must be a *State[memloc.RefSet].
func NewComposite(states ...cpa.AbstractState) (*Composite, error) {
	if len(states) == 0 {
		return nil, ErrNoPrincipal
	}
	if _, ok := states[0].(*State[memloc.RefSet]); !ok {
		return nil, fmt.Errorf("%w, got %T", ErrNoPrincipal, states[0])
	}
	return &Composite{states: states}, nil
}

// Principal returns the reference state of the composite
func (c *Composite) Principal() *State[memloc.RefSet] {
	return c.states[0].(*State[memloc.RefSet])
}

// Element returns the i-th state of the composite; the principal is element 0
func (c *Composite) Element(i int) cpa.AbstractState {
	return c.states[i]
}

// Len returns the number of states of the composite
func (c *Composite) Len() int {
	return len(c.states)
}

// Node implements cpa.LocationDependent
func (c *Composite) Node() *cfa.Node {
	return c.Principal().Node()
}

// SetNode implements cpa.LocationDependent
func (c *Composite) SetNode(n *cfa.Node) {
	for _, s := range c.states {
		if ld, ok := s.(cpa.LocationDependent); ok {
			ld.SetNode(n)
		}
	}
}

func (c *Composite) same(op string, other cpa.AbstractState) *Composite {
	o := lattice.Cast[*Composite](op, other)
	if len(o.states) != len(c.states) {
		panic(lattice.IncompatibleStateKindError{
			Operation: op,
			Want:      fmt.Sprintf("composite of %d states", len(c.states)),
			Got:       fmt.Sprintf("composite of %d states", len(o.states)),
		})
	}
	return o
}

// Join implements cpa.AbstractState
func (c *Composite) Join(other cpa.AbstractState) cpa.AbstractState {
	o := c.same("composite join", other)
	res := make([]cpa.AbstractState, len(c.states))
	for i, s := range c.states {
		res[i] = s.Join(o.states[i])
	}
	return &Composite{states: res}
}

// LessOrEqual implements cpa.AbstractState
func (c *Composite) LessOrEqual(other cpa.AbstractState) bool {
	o := c.same("composite order", other)
	for i, s := range c.states {
		if !s.LessOrEqual(o.states[i]) {
			return false
		}
	}
	return true
}

// Equal implements cpa.AbstractState
func (c *Composite) Equal(other cpa.AbstractState) bool {
	o := c.same("composite equality", other)
	for i, s := range c.states {
		if !s.Equal(o.states[i]) {
			return false
		}
	}
	return true
}

// Copy implements cpa.AbstractState
func (c *Composite) Copy() cpa.AbstractState {
	res := make([]cpa.AbstractState, len(c.states))
	for i, s := range c.states {
		res[i] = s.Copy()
	}
	return &Composite{states: res}
}

func (c *Composite) String() string {
	parts := make([]string, len(c.states))
	for i, s := range c.states {
		parts[i] = s.String()
	}
	return "<" + strings.Join(parts, " | ") + ">"
}

// CompositeTransfer executes the steppers of the elements of composite states. The principal steps first; the
// followers then step with the view of the principal before and after the instruction.
type CompositeTransfer struct {
	Steppers []Stepper
}

// EdgeSuccessors implements cpa.EdgeTransferRelation
func (t CompositeTransfer) EdgeSuccessors(state cpa.AbstractState, edge *cfa.Edge) []cpa.AbstractState {
	if edge.IsCall() {
		return nil
	}
	if next := t.Apply(state, Step{Edge: edge}); next != nil {
		return []cpa.AbstractState{next}
	}
	return nil
}

// Apply implements Stepper. The principal of the step, if any, is ignored: composites are their own principal.
func (t CompositeTransfer) Apply(state cpa.AbstractState, step Step) cpa.AbstractState {
	c := lattice.Cast[*Composite]("composite transfer", state)
	if len(t.Steppers) != len(c.states) {
		panic(fmt.Errorf("composite transfer has %d steppers for %d states", len(t.Steppers), len(c.states)))
	}
	pre := c.Principal()
	postState := t.Steppers[0].Apply(pre, Step{Edge: step.Edge})
	if postState == nil {
		return nil
	}
	post := lattice.Cast[*State[memloc.RefSet]]("composite transfer", postState)
	view := Step{Edge: step.Edge, Principal: NewPrincipal(pre, post)}
	res := []cpa.AbstractState{post}
	for i := 1; i < len(c.states); i++ {
		next := t.Steppers[i].Apply(c.states[i], view)
		if next == nil {
			return nil
		}
		res = append(res, next)
	}
	return &Composite{states: res}
}

// CompositeReduce reduces the elements of composite states. The heaps of the followers are reduced against the key
// set of the reduced principal heap.
type CompositeReduce struct {
	Reducers []Reducer
}

// Reduce returns the composite entry state of the callee
func (r CompositeReduce) Reduce(state cpa.AbstractState, call *cfa.Call, entry *cfa.Node) cpa.AbstractState {
	c := lattice.Cast[*Composite]("composite reduce", state)
	p := c.Principal()
	reduced := r.Reducers[0].ReduceTo(p, call, entry, ArgumentRoots(p, call))
	keep := lattice.Cast[*State[memloc.RefSet]]("composite reduce", reduced).Heap.Keys()
	res := []cpa.AbstractState{reduced}
	for i := 1; i < len(c.states); i++ {
		res = append(res, r.Reducers[i].ReduceTo(c.states[i], call, entry, keep))
	}
	return &Composite{states: res}
}

// CompositeExpand expands the elements of composite states
type CompositeExpand struct {
	Expanders []Expander
}

// Expand implements Expander
func (e CompositeExpand) Expand(caller cpa.AbstractState, exit cpa.AbstractState, call *cfa.Call,
	ret *cfa.Node) cpa.AbstractState {
	c := lattice.Cast[*Composite]("composite expand", caller)
	x := c.same("composite expand", exit)
	res := make([]cpa.AbstractState, len(c.states))
	for i := range c.states {
		res[i] = e.Expanders[i].Expand(c.states[i], x.states[i], call, ret)
	}
	return &Composite{states: res}
}
