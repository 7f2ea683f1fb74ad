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

package cfa

import "fmt"

const (
	// ReturnExitOffset is the offset of the node every normal return of a method leads to
	ReturnExitOffset = -1
	// ExceptionExitOffset is the offset of the node every uncaught exception of a method leads to
	ExceptionExitOffset = -2
)

// Location is a program location: a method and a bytecode offset in that method. Locations are comparable and are
// the keys used to index nodes and reached states.
type Location struct {
	Method Signature
	Offset int
}

func (l Location) String() string {
	switch l.Offset {
	case ReturnExitOffset:
		return l.Method.String() + "@exit"
	case ExceptionExitOffset:
		return l.Method.String() + "@exception"
	}
	return fmt.Sprintf("%s@%d", l.Method, l.Offset)
}

// IsReturnExit returns true if the location is the normal exit of its method
func (l Location) IsReturnExit() bool {
	return l.Offset == ReturnExitOffset
}

// IsEntry returns true if the location is the first instruction of its method
func (l Location) IsEntry() bool {
	return l.Offset == 0
}

// A Node of the control-flow automaton. Nodes are owned by the CFA provider; the analyses never modify them.
type Node struct {
	Location

	// Leaving are the edges leaving the node: instruction edges and call edges to callee entries
	Leaving []*Edge

	// Entering are the edges entering the node; for method entries, this includes the call edges from callers
	Entering []*Edge
}

// EdgeKind distinguishes intra-procedural instruction edges from call edges
type EdgeKind int

const (
	// InstructionEdge is an edge labelled by the instruction executed at its source
	InstructionEdge EdgeKind = iota
	// CallEdge links an invoke instruction to the entry of a resolved callee
	CallEdge
)

// An Edge of the control-flow automaton
type Edge struct {
	Kind EdgeKind
	Src  *Node
	Dst  *Node

	// Instruction is the instruction executed along the edge. For call edges, it is the invoke instruction.
	Instruction Instruction

	// Call is the call descriptor of call edges, nil for instruction edges
	Call *Call
}

func (e *Edge) String() string {
	if e.Kind == CallEdge {
		return fmt.Sprintf("%s -call-> %s", e.Src.Location, e.Dst.Location)
	}
	return fmt.Sprintf("%s -[%s]-> %s", e.Src.Location, e.Instruction, e.Dst.Location)
}

// IsCall returns true for call edges
func (e *Edge) IsCall() bool {
	return e.Kind == CallEdge
}

// Call describes a resolved call site
type Call struct {
	// Site is the location of the invoke instruction
	Site Location

	// Target is the resolved callee
	Target Signature

	// Static is true for invokestatic calls: no receiver is passed
	Static bool

	// Instruction is the invoke instruction at the call site
	Instruction Instruction
}

// ArgCount returns the number of operand stack entries consumed by the call, receiver included
func (c *Call) ArgCount() int {
	return c.Target.ArgCount(c.Static)
}

func (c *Call) String() string {
	return fmt.Sprintf("call %s at %s", c.Target, c.Site)
}

// InstructionEdges returns the instruction edges leaving the node
func (n *Node) InstructionEdges() []*Edge {
	var res []*Edge
	for _, e := range n.Leaving {
		if e.Kind == InstructionEdge {
			res = append(res, e)
		}
	}
	return res
}

// CallEdges returns the call edges leaving the node
func (n *Node) CallEdges() []*Edge {
	var res []*Edge
	for _, e := range n.Leaving {
		if e.Kind == CallEdge {
			res = append(res, e)
		}
	}
	return res
}

// Instruction returns the instruction executed at the node, if any
func (n *Node) Instruction() (Instruction, bool) {
	for _, e := range n.Leaving {
		if e.Kind == InstructionEdge {
			return e.Instruction, true
		}
	}
	return Instruction{}, false
}

// FallThrough returns the node reached after the invoke instruction at n returns, or nil if n is not an invoke
func (n *Node) FallThrough() *Node {
	for _, e := range n.Leaving {
		if e.Kind == InstructionEdge && e.Instruction.IsInvoke() {
			return e.Dst
		}
	}
	return nil
}

// Callers returns the call edges entering n
func (n *Node) Callers() []*Edge {
	var res []*Edge
	for _, e := range n.Entering {
		if e.Kind == CallEdge {
			res = append(res, e)
		}
	}
	return res
}

func (n *Node) String() string {
	return n.Location.String()
}
