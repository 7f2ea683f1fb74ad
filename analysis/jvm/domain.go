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

// Package jvm implements the abstract states of JVM threads and a transfer relation executing JVM instructions
// over any value domain.
//
// A value domain plugs into the transfer relation through the Domain hooks. Several domains are combined with a
// Composite state, whose first element is always the reference state: the reference domain computes the identity of
// the objects accessed by each instruction, and the other domains (the followers) receive it as a Principal view
// when they execute the same instruction.
package jvm

import (
	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
	"github.com/awslabs/ar-jvm-tools/analysis/heap"
	"github.com/awslabs/ar-jvm-tools/analysis/lattice"
	"github.com/awslabs/ar-jvm-tools/analysis/memloc"
)

// Step is the context of the execution of one instruction edge
type Step struct {
	Edge *cfa.Edge

	// Principal is the view of the reference state for followers, nil when the stepped state is its own principal
	Principal *Principal
}

// Instruction returns the instruction executed by the step
func (s Step) Instruction() cfa.Instruction {
	return s.Edge.Instruction
}

// At returns the location of the instruction executed by the step
func (s Step) At() cfa.Location {
	return s.Edge.Src.Location
}

// Call returns the call descriptor of the invoke instruction of the step, resolved to the method named by the
// instruction
func (s Step) Call() *cfa.Call {
	instr := s.Instruction()
	return &cfa.Call{Site: s.At(), Target: instr.Method, Static: instr.IsStaticInvoke(), Instruction: instr}
}

// Domain is implemented by the value domains executed by the TransferRelation. Operands are given in push order:
// the deepest operand first, and for invocations the receiver first.
type Domain[V lattice.Value[V]] interface {
	// Bottom returns the value carrying no information
	Bottom() V

	// Constant returns the value pushed by aconst_null, the numeric constants and ldc
	Constant(step Step) V

	// Operation returns the result of arithmetic, bitwise, negation, conversion and comparison instructions, and of
	// iinc, arraylength and instanceof
	Operation(step Step, operands []V) V

	// NewObject returns the value of the object created by a new instruction
	NewObject(step Step) V

	// NewArray returns the value of the array created by a newarray instruction, and the initial value of its cells
	NewArray(step Step, length V) (array V, cell V)

	// FieldDefault returns the value of a field the heap knows nothing about
	FieldDefault(step Step, obj heap.Addr[V], field cfa.FieldRef) V

	// ArrayDefault returns the value of array cells the heap knows nothing about
	ArrayDefault(step Step, arr heap.Addr[V]) V

	// StaticDefault returns the value of a static field on its first read. The state records it. The value must only
	// depend on the field: it is also the value of the static fields a state has not seen yet.
	StaticDefault(field cfa.FieldRef) V

	// Invoke approximates a call that is not analyzed in depth. The state is the successor state with the operands
	// already popped; the domain may update it. The result is pushed unless the method returns void.
	Invoke(step Step, state *State[V], args []heap.Addr[V]) V

	// Refs returns the references a value denotes. It is only used when the domain is its own principal.
	Refs(v V) memloc.RefSet
}

// Principal is the read-only view of the reference state that followers receive while executing the same step:
// the state before the instruction and the state after it.
type Principal struct {
	pre  *State[memloc.RefSet]
	post *State[memloc.RefSet]
}

// NewPrincipal returns the view of a reference state before and after a step
func NewPrincipal(pre, post *State[memloc.RefSet]) *Principal {
	return &Principal{pre: pre, post: post}
}

// StackRefs returns the references of the operand at depth from the top of the stack before the instruction
func (p *Principal) StackRefs(depth int) memloc.RefSet {
	if depth < 0 || depth >= p.pre.Frame.Height() {
		return memloc.RefSet{}
	}
	return p.pre.Frame.Peek(depth)
}

// StaticRefs returns the references of the static field after the instruction, which includes the references the
// principal fabricated on a first read
func (p *Principal) StaticRefs(field cfa.FieldRef) memloc.RefSet {
	if p.post != nil {
		if v, ok := p.post.Static(field); ok {
			return v
		}
	}
	v, _ := p.pre.Static(field)
	return v
}

// ResultRefs returns the references of the top of the stack after the instruction
func (p *Principal) ResultRefs() memloc.RefSet {
	if p.post == nil || p.post.Frame.Height() == 0 {
		return memloc.RefSet{}
	}
	return p.post.Frame.Peek(0)
}

// FieldKey returns the key of the field in the heaps. It carries the descriptor of the field so that heaps can
// tell reference fields from primitive ones.
func FieldKey(f cfa.FieldRef) string {
	return f.Name + ":" + f.Descriptor
}

// FieldKeyKind returns the kind of the values stored under the heap key. Keys without a descriptor, array cells and
// whole-object values, are reported as references.
func FieldKeyKind(key string) cfa.ValueKind {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == ':' {
			return cfa.TypeDescriptor(key[i+1:]).Kind()
		}
	}
	return cfa.Reference
}
