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

import (
	"fmt"
	"sort"
	"strings"
)

// Method is the control-flow automaton of one method body
type Method struct {
	Signature Signature

	// Static is true for static methods: local 0 holds the first argument instead of the receiver
	Static bool

	// Entry is the node of the first instruction
	Entry *Node

	// ReturnExit is the node reached by every return instruction. States at that node hold the returned value, if
	// any, as the only element of their operand stack.
	ReturnExit *Node

	// ExceptionExit is the node reached by athrow instructions
	ExceptionExit *Node

	nodes []*Node
}

// Nodes returns the nodes of the method in offset order, followed by the exit nodes
func (m *Method) Nodes() []*Node {
	return m.nodes
}

// Node returns the node at the offset, or nil
func (m *Method) Node(offset int) *Node {
	switch offset {
	case ReturnExitOffset:
		return m.ReturnExit
	case ExceptionExitOffset:
		return m.ExceptionExit
	}
	if offset < 0 || offset >= len(m.nodes)-2 {
		return nil
	}
	return m.nodes[offset]
}

// Provider gives read-only access to the control-flow automata of a program
type Provider interface {
	// Method returns the CFA of the method with the signature, if it is known
	Method(sig Signature) (*Method, bool)

	// Entry returns the entry node of the method
	Entry(sig Signature) (*Node, bool)

	// Node returns the node at the location
	Node(loc Location) (*Node, bool)

	// Methods returns the signatures of all the known methods, sorted
	Methods() []Signature
}

// A CallResolver returns the possible targets of the invoke instruction at a call site
type CallResolver interface {
	Resolve(site Location, instr Instruction) []Signature
}

// DirectResolver resolves every invoke to the method named by the instruction
type DirectResolver struct{}

// Resolve returns the method referenced by the instruction
func (DirectResolver) Resolve(_ Location, instr Instruction) []Signature {
	if !instr.IsInvoke() {
		return nil
	}
	return []Signature{instr.Method}
}

// MapResolver resolves call sites listed in the map to their targets, and every other call site directly
type MapResolver map[Location][]Signature

// Resolve returns the targets registered for the site, or the method referenced by the instruction
func (r MapResolver) Resolve(site Location, instr Instruction) []Signature {
	if targets, ok := r[site]; ok {
		return targets
	}
	return DirectResolver{}.Resolve(site, instr)
}

// Graph is an in-memory Provider
type Graph struct {
	methods map[Signature]*Method
}

// NewGraph returns an empty graph
func NewGraph() *Graph {
	return &Graph{methods: map[Signature]*Method{}}
}

// Add adds the method to the graph. It is an error to add two methods with the same signature.
func (g *Graph) Add(m *Method) error {
	if _, ok := g.methods[m.Signature]; ok {
		return fmt.Errorf("duplicate method %s", m.Signature)
	}
	g.methods[m.Signature] = m
	return nil
}

// Link creates the call edges of every invoke instruction of the graph, using the resolver to find the targets.
// Targets without a CFA in the graph get no call edge: the analyses approximate those calls. Link can be called
// again with another resolver; previous call edges are removed. It returns the number of call edges created.
func (g *Graph) Link(resolver CallResolver) int {
	for _, m := range g.methods {
		for _, n := range m.nodes {
			n.Leaving = filterEdges(n.Leaving, InstructionEdge)
			n.Entering = filterEdges(n.Entering, InstructionEdge)
		}
	}
	count := 0
	for _, sig := range g.Methods() {
		m := g.methods[sig]
		for _, n := range m.nodes {
			instr, ok := n.Instruction()
			if !ok || !instr.IsInvoke() {
				continue
			}
			for _, target := range resolver.Resolve(n.Location, instr) {
				callee, found := g.methods[target]
				if !found {
					continue
				}
				e := &Edge{
					Kind:        CallEdge,
					Src:         n,
					Dst:         callee.Entry,
					Instruction: instr,
					Call: &Call{
						Site:        n.Location,
						Target:      target,
						Static:      instr.IsStaticInvoke(),
						Instruction: instr,
					},
				}
				n.Leaving = append(n.Leaving, e)
				callee.Entry.Entering = append(callee.Entry.Entering, e)
				count++
			}
		}
	}
	return count
}

func filterEdges(edges []*Edge, kind EdgeKind) []*Edge {
	var res []*Edge
	for _, e := range edges {
		if e.Kind == kind {
			res = append(res, e)
		}
	}
	return res
}

// Method implements Provider
func (g *Graph) Method(sig Signature) (*Method, bool) {
	m, ok := g.methods[sig]
	return m, ok
}

// Entry implements Provider
func (g *Graph) Entry(sig Signature) (*Node, bool) {
	m, ok := g.methods[sig]
	if !ok {
		return nil, false
	}
	return m.Entry, true
}

// Node implements Provider
func (g *Graph) Node(loc Location) (*Node, bool) {
	m, ok := g.methods[loc.Method]
	if !ok {
		return nil, false
	}
	n := m.Node(loc.Offset)
	return n, n != nil
}

// Methods implements Provider
func (g *Graph) Methods() []Signature {
	res := make([]Signature, 0, len(g.methods))
	for sig := range g.methods {
		res = append(res, sig)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].String() < res[j].String() })
	return res
}

// A MethodBuilder builds the CFA of a method from a sequence of instructions and labels
type MethodBuilder struct {
	sig    Signature
	static bool
	instrs []Instruction
	labels map[string]int
	err    error
}

// NewMethodBuilder returns a builder for the method
func NewMethodBuilder(sig Signature, static bool) *MethodBuilder {
	return &MethodBuilder{sig: sig, static: static, labels: map[string]int{}}
}

// Label binds the name to the offset of the next instruction added
func (b *MethodBuilder) Label(name string) *MethodBuilder {
	if _, ok := b.labels[name]; ok && b.err == nil {
		b.err = fmt.Errorf("%s: duplicate label %s", b.sig, name)
	}
	b.labels[name] = len(b.instrs)
	return b
}

// Add appends instructions
func (b *MethodBuilder) Add(instrs ...Instruction) *MethodBuilder {
	b.instrs = append(b.instrs, instrs...)
	return b
}

// AddText parses and appends lines of assembly. A line of the form "name:" is a label, empty lines and lines
// starting with # are skipped.
func (b *MethodBuilder) AddText(lines ...string) *MethodBuilder {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasSuffix(line, ":") && !strings.ContainsAny(line, " \t") {
			b.Label(strings.TrimSuffix(line, ":"))
			continue
		}
		instr, err := ParseInstruction(line)
		if err != nil {
			if b.err == nil {
				b.err = fmt.Errorf("%s at offset %d: %w", b.sig, len(b.instrs), err)
			}
			continue
		}
		b.instrs = append(b.instrs, instr)
	}
	return b
}

// Build creates the nodes and instruction edges of the method
func (b *MethodBuilder) Build() (*Method, error) {
	if b.err != nil {
		return nil, b.err
	}
	n := len(b.instrs)
	if n == 0 {
		return nil, fmt.Errorf("%s: method has no instructions", b.sig)
	}
	m := &Method{Signature: b.sig, Static: b.static}
	for i := 0; i < n; i++ {
		m.nodes = append(m.nodes, &Node{Location: Location{Method: b.sig, Offset: i}})
	}
	m.ReturnExit = &Node{Location: Location{Method: b.sig, Offset: ReturnExitOffset}}
	m.ExceptionExit = &Node{Location: Location{Method: b.sig, Offset: ExceptionExitOffset}}
	m.nodes = append(m.nodes, m.ReturnExit, m.ExceptionExit)
	m.Entry = m.nodes[0]

	target := func(label string) (*Node, error) {
		off, ok := b.labels[label]
		if !ok {
			return nil, fmt.Errorf("%s: undefined label %s", b.sig, label)
		}
		if off >= n {
			return nil, fmt.Errorf("%s: label %s is past the last instruction", b.sig, label)
		}
		return m.nodes[off], nil
	}

	for i, instr := range b.instrs {
		src := m.nodes[i]
		var dsts []*Node
		switch instr.Op {
		case Return:
			dsts = append(dsts, m.ReturnExit)
		case AThrow:
			dsts = append(dsts, m.ExceptionExit)
		case Goto, If, IfCmp, Switch:
			for _, label := range instr.Targets {
				t, err := target(label)
				if err != nil {
					return nil, err
				}
				dsts = append(dsts, t)
			}
		}
		if instr.FallsThrough() {
			if i+1 >= n {
				return nil, fmt.Errorf("%s: control falls off the end of the method", b.sig)
			}
			dsts = append(dsts, m.nodes[i+1])
		}
		seen := map[*Node]bool{}
		for _, dst := range dsts {
			if seen[dst] {
				continue
			}
			seen[dst] = true
			e := &Edge{Kind: InstructionEdge, Src: src, Dst: dst, Instruction: instr}
			src.Leaving = append(src.Leaving, e)
			dst.Entering = append(dst.Entering, e)
		}
	}
	return m, nil
}
