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
	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
	"github.com/awslabs/ar-jvm-tools/analysis/cpa"
	"github.com/awslabs/ar-jvm-tools/analysis/lattice"
	"github.com/awslabs/ar-jvm-tools/analysis/memloc"
)

// A Reducer computes the entry state of a callee from the state of the caller at the call site, keeping only the
// heap nodes whose reference is in keep when it reduces heaps.
type Reducer interface {
	ReduceTo(state cpa.AbstractState, call *cfa.Call, entry *cfa.Node, keep memloc.RefSet) cpa.AbstractState
}

// An Expander computes the state of the caller after a call from its state at the call site and a state of the
// callee at its return exit
type Expander interface {
	Expand(caller cpa.AbstractState, exit cpa.AbstractState, call *cfa.Call, ret *cfa.Node) cpa.AbstractState
}

// ReduceOperator is the default reduce operator of JVM states: the arguments of the call become the locals of the
// callee, the stack is empty, the statics are copied and the heap is optionally reduced.
type ReduceOperator[V lattice.Value[V]] struct {
	Domain     Domain[V]
	ReduceHeap bool
}

// Reduce returns the callee entry state. The heap is reduced to what is reachable from the references of the
// arguments and the statics.
func (r ReduceOperator[V]) Reduce(state cpa.AbstractState, call *cfa.Call, entry *cfa.Node) cpa.AbstractState {
	s := lattice.Cast[*State[V]]("jvm reduce", state)
	var sets []memloc.RefSet
	for d := 0; d < call.ArgCount() && d < s.Frame.Height(); d++ {
		sets = append(sets, r.Domain.Refs(s.Frame.Peek(d)))
	}
	for _, f := range s.Statics() {
		v, _ := s.Static(f)
		sets = append(sets, r.Domain.Refs(v))
	}
	return r.ReduceTo(s, call, entry, memloc.Roots(sets...))
}

// ReduceTo implements Reducer
func (r ReduceOperator[V]) ReduceTo(state cpa.AbstractState, call *cfa.Call, entry *cfa.Node,
	keep memloc.RefSet) cpa.AbstractState {
	s := lattice.Cast[*State[V]]("jvm reduce", state)
	res := s.copyAt(entry)
	res.Frame = NewFrame[V]()
	n := call.ArgCount()
	for i, slot := range call.Target.ArgumentSlots(call.Static) {
		depth := n - 1 - i
		if depth < s.Frame.Height() {
			res.Frame.SetLocal(slot, s.Frame.Peek(depth))
		}
	}
	if r.ReduceHeap {
		res.Heap = s.Heap.Reduce(keep)
	}
	return res
}

// ExpandOperator is the default expand operator of JVM states: the arguments are popped, the value returned by the
// callee is pushed, the heap of the callee is expanded into the heap of the caller and the statics of the callee
// replace the statics of the caller.
type ExpandOperator[V lattice.Value[V]] struct {
	Domain Domain[V]
}

// Expand implements Expander
func (e ExpandOperator[V]) Expand(caller cpa.AbstractState, exit cpa.AbstractState, call *cfa.Call,
	ret *cfa.Node) cpa.AbstractState {
	c := lattice.Cast[*State[V]]("jvm expand", caller)
	x := lattice.Cast[*State[V]]("jvm expand", exit)
	res := c.copyAt(ret)
	res.Frame.PopN(min(call.ArgCount(), res.Frame.Height()))
	if call.Target.ReturnKind() != cfa.Void {
		v, ok := ReturnValue(x)
		if !ok {
			v = e.Domain.Bottom()
		}
		res.Frame.Push(v)
	}
	res.Heap = c.Heap.Expand(x.Heap)
	for f, v := range x.statics {
		res.statics[f] = v
	}
	return res
}
