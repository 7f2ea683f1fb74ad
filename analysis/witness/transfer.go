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

package witness

import (
	"github.com/awslabs/ar-jvm-tools/analysis/bam"
	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
	"github.com/awslabs/ar-jvm-tools/analysis/cpa"
	"github.com/awslabs/ar-jvm-tools/analysis/jvm"
	"github.com/awslabs/ar-jvm-tools/analysis/lattice"
	"github.com/awslabs/ar-jvm-tools/analysis/memloc"
	"github.com/awslabs/ar-jvm-tools/analysis/taint"
)

// TransferRelation is the backward transfer relation over the blocks of a taint analysis. The predecessors of a
// state are the memory locations its value comes from, before the instructions entering its node, in the callees
// that returned it, or in the callers that passed it as an argument.
type TransferRelation struct {
	Program cfa.Provider
	Cache   *bam.Cache
	Rules   *taint.Rules

	// Threshold are the labels the analysis follows: locations whose forward taint has none of them are not
	// explored
	Threshold taint.Set
}

// location is a memory location at a node of a block
type location struct {
	node   *cfa.Node
	memory memloc.Location
	block  *bam.BlockAbstraction
}

// Successors implements cpa.TransferRelation. Origins have no successors.
func (t *TransferRelation) Successors(state cpa.AbstractState) []cpa.AbstractState {
	s := lattice.Cast[*State]("witness transfer", state)
	if s.IsOrigin() {
		return nil
	}
	b, ok := t.Cache.Block(s.Block)
	if !ok {
		return nil
	}
	var locs []location
	for _, e := range s.node.Entering {
		if e.Kind == cfa.InstructionEdge {
			locs = append(locs, t.invert(b, e, s.Memory)...)
		}
	}
	if s.node.IsEntry() {
		locs = append(locs, t.callers(b, s.Memory)...)
	}
	var res []cpa.AbstractState
	for _, l := range locs {
		if p := t.newState(l, lattice.NewSet(s.Key)); p != nil {
			res = append(res, p)
		}
	}
	return res
}

// newState returns the state of the location, or nil if its taint is below the threshold
func (t *TransferRelation) newState(l location, next lattice.Set[Key]) *State {
	sources := taintAt(l.block, l.node, l.memory)
	if !lattice.StrictlyAbove(sources.Meet(t.Threshold), taint.Set{}) {
		return nil
	}
	s := &State{
		Key:     Key{At: l.node.Location, Memory: l.memory, Block: l.block.ID},
		node:    l.node,
		Sources: sources,
		Next:    next,
	}
	s.Origin, s.Source = t.origin(l.node, l.memory)
	return s
}

// origin returns the labels of the sources whose calls produce the value of the location when entering the node
func (t *TransferRelation) origin(n *cfa.Node, mem memloc.Location) (taint.Set, *cfa.Call) {
	labels := taint.Set{}
	var first *cfa.Call
	isResult := mem.Kind == memloc.Stack && mem.Index == 0
	if !isResult && mem.Kind != memloc.Static {
		return labels, nil
	}
	for _, e := range n.Entering {
		if e.Kind != cfa.InstructionEdge || !e.Instruction.IsInvoke() {
			continue
		}
		returns := e.Instruction.Method.ReturnKind() != cfa.Void
		for _, call := range calls(e.Src, e.Instruction) {
			for _, src := range t.Rules.SourcesOf(call) {
				if (isResult && returns && src.TaintsReturn) || (mem.Kind == memloc.Static && src.TaintsGlobals) {
					labels = labels.Add(src.Label)
					if first == nil {
						first = call
					}
				}
			}
		}
	}
	return labels, first
}

// invert returns the locations the value of mem comes from before the instruction of the edge
//
//gocyclo:ignore
func (t *TransferRelation) invert(b *bam.BlockAbstraction, e *cfa.Edge, mem memloc.Location) []location {
	p, instr := e.Src, e.Instruction
	if instr.IsInvoke() {
		return t.invertCall(b, p, instr, mem)
	}
	at := func(mems ...memloc.Location) []location {
		res := make([]location, len(mems))
		for i, m := range mems {
			res[i] = location{node: p, memory: m, block: b}
		}
		return res
	}
	pops, pushes := instr.StackEffect()
	exits := instr.Op == cfa.Return || instr.Op == cfa.AThrow
	switch mem.Kind {
	case memloc.Stack:
		if mem.Index < pushes {
			return at(t.produced(b, p, instr, mem.Index)...)
		}
		if exits {
			return nil
		}
		return at(memloc.StackLocation(mem.Index - pushes + pops))
	case memloc.Local:
		switch {
		case exits:
			return nil
		case instr.Op == cfa.Store && instr.Index == mem.Index:
			return at(memloc.StackLocation(0))
		case instr.Op == cfa.Store && instr.Kind.Size() == 2 && instr.Index+1 == mem.Index:
			return nil
		}
	case memloc.Static:
		if instr.Op == cfa.PutStatic && instr.Field == mem.Static {
			return at(memloc.StackLocation(0))
		}
	case memloc.Field:
		if instr.Op == cfa.PutField && jvm.FieldKey(instr.Field) == mem.Field {
			refs := refsAt(b, p, 1)
			if r, ok := memloc.Singleton(refs); ok && r == mem.Ref {
				return at(memloc.StackLocation(0))
			}
			if refs.Contains(mem.Ref) {
				return at(memloc.StackLocation(0), mem)
			}
		}
	case memloc.Array:
		if instr.Op == cfa.ArrayStore && refsAt(b, p, 2).Contains(mem.Ref) {
			return at(memloc.StackLocation(0), mem)
		}
	}
	return at(mem)
}

// produced returns the locations the value pushed by the instruction at depth comes from
func (t *TransferRelation) produced(b *bam.BlockAbstraction, p *cfa.Node, instr cfa.Instruction,
	depth int) []memloc.Location {
	switch instr.Op {
	case cfa.Load:
		return []memloc.Location{memloc.LocalLocation(instr.Index)}
	case cfa.Dup, cfa.CheckCast, cfa.Return:
		return []memloc.Location{memloc.StackLocation(0)}
	case cfa.DupX1:
		if depth == 1 {
			return []memloc.Location{memloc.StackLocation(1)}
		}
		return []memloc.Location{memloc.StackLocation(0)}
	case cfa.Swap:
		return []memloc.Location{memloc.StackLocation(1 - depth)}
	case cfa.GetStatic:
		return []memloc.Location{memloc.StaticLocation(instr.Field)}
	case cfa.GetField:
		res := []memloc.Location{memloc.StackLocation(0)}
		for _, r := range refsAt(b, p, 0).Sorted() {
			if !r.IsNull() {
				res = append(res, memloc.FieldLocation(r, jvm.FieldKey(instr.Field)))
			}
		}
		return res
	case cfa.ArrayLoad:
		res := []memloc.Location{memloc.StackLocation(1)}
		for _, r := range refsAt(b, p, 1).Sorted() {
			if !r.IsNull() {
				res = append(res, memloc.ArrayLocation(r))
			}
		}
		return res
	case cfa.Neg, cfa.Convert, cfa.Compare, cfa.ArrayLength, cfa.InstanceOf:
		return operands(instr)
	}
	if instr.Op.IsArithmetic() {
		return operands(instr)
	}
	return nil
}

// invertCall returns the locations the value of mem comes from before the invoke instruction at p. Values returned
// by analyzed callees come from the exits of their blocks; the others come from all the operands of the call.
func (t *TransferRelation) invertCall(b *bam.BlockAbstraction, p *cfa.Node, instr cfa.Instruction,
	mem memloc.Location) []location {
	pops, pushes := instr.StackEffect()
	here := func(mems ...memloc.Location) []location {
		res := make([]location, len(mems))
		for i, m := range mems {
			res[i] = location{node: p, memory: m, block: b}
		}
		return res
	}
	if mem.Kind == memloc.Stack && mem.Index >= pushes {
		return here(memloc.StackLocation(mem.Index - pushes + pops))
	}
	if mem.Kind == memloc.Local {
		return here(mem)
	}
	usages := t.Cache.CallsFrom(b.ID, p.Location)
	if len(usages) == 0 {
		if mem.Kind == memloc.Stack {
			return here(operands(instr)...)
		}
		return here(mem)
	}
	var res []location
	if mem.Kind != memloc.Stack {
		res = here(mem)
	}
	for _, u := range usages {
		callee, ok := t.Cache.Block(u.Callee)
		if !ok {
			continue
		}
		m, ok := t.Program.Method(u.Call.Target)
		if !ok {
			continue
		}
		res = append(res, location{node: m.ReturnExit, memory: mem, block: callee})
	}
	return res
}

// callers returns the locations at the call sites the value of mem at the entry of the block comes from
func (t *TransferRelation) callers(b *bam.BlockAbstraction, mem memloc.Location) []location {
	var res []location
	for _, u := range t.Cache.CallsTo(b.ID) {
		caller, ok := t.Cache.Block(u.Caller)
		if !ok {
			continue
		}
		site, ok := t.Program.Node(u.Site)
		if !ok {
			continue
		}
		switch mem.Kind {
		case memloc.Stack:
		case memloc.Local:
			n := u.Call.ArgCount()
			for i, slot := range u.Call.Target.ArgumentSlots(u.Call.Static) {
				if slot == mem.Index {
					res = append(res, location{node: site, memory: memloc.StackLocation(n - 1 - i), block: caller})
				}
			}
		default:
			res = append(res, location{node: site, memory: mem, block: caller})
		}
	}
	return res
}

// operands returns the stack locations of the operands of the instruction
func operands(instr cfa.Instruction) []memloc.Location {
	pops, _ := instr.StackEffect()
	res := make([]memloc.Location, pops)
	for i := range res {
		res[i] = memloc.StackLocation(i)
	}
	return res
}

// calls returns the calls of the invoke instruction at the node
func calls(n *cfa.Node, instr cfa.Instruction) []*cfa.Call {
	var res []*cfa.Call
	for _, e := range n.CallEdges() {
		res = append(res, e.Call)
	}
	if len(res) == 0 {
		res = append(res, &cfa.Call{Site: n.Location, Target: instr.Method, Static: instr.IsStaticInvoke(),
			Instruction: instr})
	}
	return res
}

// taintAt returns the taint of the location in the forward states of the block at the node
func taintAt(b *bam.BlockAbstraction, n *cfa.Node, mem memloc.Location) taint.Set {
	res := taint.Set{}
	for _, s := range b.StatesAt(n) {
		if c, ok := s.(*jvm.Composite); ok {
			res = res.Join(taint.SourcesAt(c, mem))
		}
	}
	return res
}

// refsAt returns the references at depth in the operand stacks of the forward states of the block at the node
func refsAt(b *bam.BlockAbstraction, n *cfa.Node, depth int) memloc.RefSet {
	res := memloc.RefSet{}
	for _, s := range b.StatesAt(n) {
		if c, ok := s.(*jvm.Composite); ok && depth < c.Principal().Frame.Height() {
			res = res.Join(c.Principal().Frame.Peek(depth))
		}
	}
	return res
}
