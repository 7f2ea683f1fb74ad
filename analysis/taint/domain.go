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

package taint

import (
	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
	"github.com/awslabs/ar-jvm-tools/analysis/cpa"
	"github.com/awslabs/ar-jvm-tools/analysis/heap"
	"github.com/awslabs/ar-jvm-tools/analysis/jvm"
	"github.com/awslabs/ar-jvm-tools/analysis/lattice"
	"github.com/awslabs/ar-jvm-tools/analysis/memloc"
)

// State is the follower state of the taint analysis
type State = jvm.State[Set]

// Domain implements jvm.Domain for taint sets. It follows the reference analysis: the objects of its heap are the
// references computed by the principal.
//
// Besides the values of their fields, objects carry a content taint (the heap's object value) that calls which are
// not analyzed propagate: the taints of all the arguments flow into the content of the receiver and into the result.
type Domain struct {
	Rules *Rules
}

// Bottom returns the empty set
func (d *Domain) Bottom() Set {
	return Set{}
}

// Constant returns the empty set
func (d *Domain) Constant(jvm.Step) Set {
	return Set{}
}

// Operation returns the union of the taints of the operands
func (d *Domain) Operation(_ jvm.Step, operands []Set) Set {
	return lattice.JoinAll(Set{}, operands...)
}

// NewObject returns the empty set
func (d *Domain) NewObject(jvm.Step) Set {
	return Set{}
}

// NewArray returns the taint of the length for the array, and untainted cells
func (d *Domain) NewArray(_ jvm.Step, _ Set) (Set, Set) {
	return Set{}, Set{}
}

// FieldDefault returns the taint of the object: the fields of tainted objects are tainted
func (d *Domain) FieldDefault(_ jvm.Step, obj heap.Addr[Set], _ cfa.FieldRef) Set {
	return obj.Value
}

// ArrayDefault returns the taint of the array
func (d *Domain) ArrayDefault(_ jvm.Step, arr heap.Addr[Set]) Set {
	return arr.Value
}

// StaticDefault returns the empty set
func (d *Domain) StaticDefault(cfa.FieldRef) Set {
	return Set{}
}

// Invoke approximates a call that is not analyzed: the result and the content of the receiver get the taints of
// the arguments and of their contents. Sanitizers return untainted results and sources add their label.
func (d *Domain) Invoke(step jvm.Step, state *State, args []heap.Addr[Set]) Set {
	call := step.Call()
	res := Set{}
	for _, a := range args {
		res = res.Join(a.Value).Join(state.Heap.ObjectValue(a, Set{}))
	}
	if !call.Static && len(args) > 0 && !res.IsEmpty() {
		state.Heap.SetObjectValue(args[0], res)
	}
	if d.Rules.Sanitizes(call.Target) {
		res = Set{}
	}
	return d.applySources(call, state, args, res)
}

// applySources applies the effects of the sources the call is a call to, and returns the taint of its result
func (d *Domain) applySources(call *cfa.Call, state *State, args []heap.Addr[Set], result Set) Set {
	for _, src := range d.Rules.SourcesOf(call) {
		label := Labels(src.Label)
		if src.TaintsReturn {
			result = result.Join(label)
		}
		for i, a := range args {
			if (i == 0 && !call.Static && src.TaintsThis) || ((i > 0 || call.Static) && src.TaintsArgs) {
				state.Heap.SetObjectValue(a, label)
			}
		}
		if src.TaintsGlobals {
			for _, f := range state.Statics() {
				v, _ := state.Static(f)
				state.SetStatic(f, v.Join(label))
			}
		}
	}
	return result
}

// Refs returns the empty set: taint states always follow a principal
func (d *Domain) Refs(Set) memloc.RefSet {
	return memloc.RefSet{}
}

// Follower returns the taint state of a composite state of the taint analysis
func Follower(c *jvm.Composite) *State {
	return lattice.Cast[*State]("taint state", c.Element(1))
}

// arguments returns the operands of the call in the caller state at the call site, with the references computed by
// the principal
func arguments(c *jvm.Composite, call *cfa.Call) []heap.Addr[Set] {
	p, f := c.Principal(), Follower(c)
	n := min(call.ArgCount(), f.Frame.Height(), p.Frame.Height())
	args := make([]heap.Addr[Set], n)
	for i := range args {
		depth := n - 1 - i
		args[i] = heap.Addr[Set]{Value: f.Frame.Peek(depth), Refs: p.Frame.Peek(depth), At: call.Site}
	}
	return args
}

// expandOperator expands the composite states and then applies the effects of the sources and sanitizers among the
// analyzed callees
type expandOperator struct {
	jvm.CompositeExpand
	domain *Domain
}

func (e expandOperator) Expand(caller cpa.AbstractState, exit cpa.AbstractState, call *cfa.Call,
	ret *cfa.Node) cpa.AbstractState {
	res := lattice.Cast[*jvm.Composite]("taint expand", e.CompositeExpand.Expand(caller, exit, call, ret))
	args := arguments(lattice.Cast[*jvm.Composite]("taint expand", caller), call)
	s := Follower(res)
	if call.Target.ReturnKind() == cfa.Void || s.Frame.Height() == 0 {
		e.domain.applySources(call, s, args, Set{})
		return res
	}
	v := s.Frame.Pop()
	if e.domain.Rules.Sanitizes(call.Target) {
		v = Set{}
	}
	s.Frame.Push(e.domain.applySources(call, s, args, v))
	return res
}

// ValueAt returns the taint of the memory location in the follower state. The taint of heap locations includes the
// content taint of their owner.
func ValueAt(s *State, loc memloc.Location) Set {
	switch loc.Kind {
	case memloc.Stack:
		if loc.Index < s.Frame.Height() {
			return s.Frame.Peek(loc.Index)
		}
	case memloc.Local:
		v, _ := s.Frame.Local(loc.Index)
		return v
	case memloc.Static:
		v, _ := s.Static(loc.Static)
		return v
	case memloc.Field:
		obj := heap.Addr[Set]{Refs: memloc.Refs(loc.Ref)}
		return s.Heap.GetField(obj, loc.Field, s.Heap.ObjectValue(obj, Set{}))
	case memloc.Array:
		arr := heap.Addr[Set]{Refs: memloc.Refs(loc.Ref)}
		return s.Heap.GetArrayElement(arr, s.Heap.ObjectValue(arr, Set{}))
	}
	return Set{}
}
