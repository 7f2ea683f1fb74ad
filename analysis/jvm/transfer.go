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
	"github.com/awslabs/ar-jvm-tools/analysis/heap"
	"github.com/awslabs/ar-jvm-tools/analysis/lattice"
	"github.com/awslabs/ar-jvm-tools/analysis/memloc"
)

// A Stepper executes the instruction of a step on a state of its domain. It returns nil when the instruction has no
// successor.
type Stepper interface {
	Apply(state cpa.AbstractState, step Step) cpa.AbstractState
}

// TransferRelation executes JVM instruction edges over the states of a domain. Call edges have no successor: the
// block abstraction layer handles them, and the invoke instruction edge applies the default approximation of the
// domain.
type TransferRelation[V lattice.Value[V]] struct {
	Domain Domain[V]
}

// NewTransferRelation returns the transfer relation of the domain
func NewTransferRelation[V lattice.Value[V]](d Domain[V]) *TransferRelation[V] {
	return &TransferRelation[V]{Domain: d}
}

// EdgeSuccessors implements cpa.EdgeTransferRelation for states that are their own principal
func (t *TransferRelation[V]) EdgeSuccessors(state cpa.AbstractState, edge *cfa.Edge) []cpa.AbstractState {
	if edge.IsCall() {
		return nil
	}
	if next := t.Apply(state, Step{Edge: edge}); next != nil {
		return []cpa.AbstractState{next}
	}
	return nil
}

// Apply implements Stepper
func (t *TransferRelation[V]) Apply(state cpa.AbstractState, step Step) cpa.AbstractState {
	s := lattice.Cast[*State[V]]("jvm transfer", state)
	if next := t.Step(s, step); next != nil {
		return next
	}
	return nil
}

// operand returns the address of the operand at depth from the top of the stack of the state before the step
func (t *TransferRelation[V]) operand(s *State[V], step Step, depth int) heap.Addr[V] {
	v := s.Frame.Peek(depth)
	a := heap.Addr[V]{Value: v, At: step.At()}
	if step.Principal != nil {
		a.Refs = step.Principal.StackRefs(depth)
	} else {
		a.Refs = t.Domain.Refs(v)
	}
	return a
}

func (t *TransferRelation[V]) result(step Step, v V) heap.Addr[V] {
	a := heap.Addr[V]{Value: v, At: step.At()}
	if step.Principal != nil {
		a.Refs = step.Principal.ResultRefs()
	} else {
		a.Refs = t.Domain.Refs(v)
	}
	return a
}

// Step returns the state after the instruction of the step. The argument is not modified.
//
//gocyclo:ignore
func (t *TransferRelation[V]) Step(s *State[V], step Step) *State[V] {
	instr := step.Instruction()
	pops, _ := instr.StackEffect()
	ops := make([]heap.Addr[V], pops)
	for i := range ops {
		ops[i] = t.operand(s, step, pops-1-i)
	}
	values := make([]V, pops)
	for i, op := range ops {
		values[i] = op.Value
	}

	next := s.copyAt(step.Edge.Dst)
	next.staticDefault = t.Domain.StaticDefault
	next.Frame.PopN(pops)
	push := next.Frame.Push

	switch instr.Op {
	case cfa.Nop, cfa.Pop, cfa.If, cfa.IfCmp, cfa.Goto, cfa.Switch, cfa.MonitorEnter, cfa.MonitorExit:
	case cfa.AConstNull, cfa.IConst, cfa.LConst, cfa.FConst, cfa.DConst, cfa.Ldc:
		push(t.Domain.Constant(step))
	case cfa.Load:
		v, ok := s.Frame.Local(instr.Index)
		if !ok {
			v = t.Domain.Bottom()
		}
		push(v)
	case cfa.Store:
		next.Frame.SetLocal(instr.Index, values[0])
		if instr.Kind.Size() == 2 {
			next.Frame.ClearLocal(instr.Index + 1)
		}
	case cfa.IInc:
		v, ok := s.Frame.Local(instr.Index)
		if !ok {
			v = t.Domain.Bottom()
		}
		next.Frame.SetLocal(instr.Index, t.Domain.Operation(step, []V{v}))
	case cfa.ArrayLoad:
		push(next.Heap.GetArrayElement(ops[0], t.Domain.ArrayDefault(step, ops[0])))
	case cfa.ArrayStore:
		next.Heap.SetArrayElement(ops[0], values[2])
	case cfa.Dup:
		push(values[0])
		push(values[0])
	case cfa.DupX1:
		push(values[1])
		push(values[0])
		push(values[1])
	case cfa.Swap:
		push(values[1])
		push(values[0])
	case cfa.Add, cfa.Sub, cfa.Mul, cfa.Div, cfa.Rem, cfa.Shl, cfa.Shr, cfa.UShr, cfa.And, cfa.Or, cfa.Xor,
		cfa.Neg, cfa.Convert, cfa.Compare, cfa.ArrayLength, cfa.InstanceOf:
		push(t.Domain.Operation(step, values))
	case cfa.CheckCast:
		push(values[0])
	case cfa.Return, cfa.AThrow:
		next.Frame = NewFrame[V]()
		if len(values) > 0 {
			next.Frame.Push(values[0])
		}
	case cfa.GetStatic:
		v, ok := next.Static(instr.Field)
		if !ok {
			v = t.Domain.StaticDefault(instr.Field)
			next.SetStatic(instr.Field, v)
		}
		push(v)
	case cfa.PutStatic:
		next.SetStatic(instr.Field, values[0])
	case cfa.GetField:
		push(next.Heap.GetField(ops[0], FieldKey(instr.Field), t.Domain.FieldDefault(step, ops[0], instr.Field)))
	case cfa.PutField:
		next.Heap.SetField(ops[0], FieldKey(instr.Field), values[1])
	case cfa.InvokeVirtual, cfa.InvokeSpecial, cfa.InvokeStatic, cfa.InvokeInterface:
		res := t.Domain.Invoke(step, next, ops)
		if instr.Method.ReturnKind() != cfa.Void {
			next.Frame.Push(res)
		}
	case cfa.New:
		v := t.Domain.NewObject(step)
		next.Heap.NewObject(t.result(step, v))
		push(v)
	case cfa.NewArray:
		arr, cell := t.Domain.NewArray(step, values[0])
		next.Heap.NewArray(t.result(step, arr), cell)
		push(arr)
	}
	return next
}

// EntryState returns the state at the entry of the method, with the arguments in their local slots. arg returns the
// value of the argument in the slot, given its type.
func EntryState[V lattice.Value[V]](m *cfa.Method, h heap.Heap[V],
	arg func(slot int, t cfa.TypeDescriptor) V) *State[V] {
	s := NewState[V](m.Entry, h)
	types := m.Signature.Parsed().Params
	if !m.Static {
		types = append([]cfa.TypeDescriptor{cfa.ObjectType(m.Signature.Class)}, types...)
	}
	for i, slot := range m.Signature.ArgumentSlots(m.Static) {
		s.Frame.SetLocal(slot, arg(slot, types[i]))
	}
	return s
}

// ReturnValue returns the value returned by the method in a state at its return exit
func ReturnValue[V lattice.Value[V]](s *State[V]) (V, bool) {
	if s.Frame.Height() == 0 {
		var zero V
		return zero, false
	}
	return s.Frame.Peek(0), true
}

// ArgumentRoots returns the references of the arguments of the call and of the static fields, in a state where
// the arguments are on top of the stack. They are the roots of the heap a callee can access.
func ArgumentRoots(s *State[memloc.RefSet], call *cfa.Call) memloc.RefSet {
	var sets []memloc.RefSet
	for d := 0; d < call.ArgCount() && d < s.Frame.Height(); d++ {
		sets = append(sets, s.Frame.Peek(d))
	}
	for _, f := range s.Statics() {
		v, _ := s.Static(f)
		sets = append(sets, v)
	}
	return memloc.Roots(sets...)
}
