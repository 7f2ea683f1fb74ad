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

package graphutil

import (
	"sort"

	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
	"gonum.org/v1/gonum/graph"
)

// CGraph is an abstraction over the call graph of a program or the control-flow automaton of a method to work with
// existing graph libraries. It implements the methods to satisfy yourbasic's graph.Iterator and Gonum's
// graph.Directed
type CGraph struct {
	// The order of the graph
	order int

	// IDMap maps from node IDs to CNodes
	IDMap map[int64]CNode

	// Keys are all the node IDs, sorted
	Keys []int64

	// Edges is an adjacency matrix: Edges[x][y] means there is a directed edge between IDMap[x] and IDMap[y]
	Edges map[int64]map[int64]bool
}

func newCGraph(n int) CGraph {
	return CGraph{
		order: n,
		IDMap: make(map[int64]CNode, n),
		Keys:  make([]int64, 0, n),
		Edges: make(map[int64]map[int64]bool, n),
	}
}

func (c *CGraph) addNode(id int64, label string) {
	c.IDMap[id] = CNode{id: id, Label: label}
	c.Keys = append(c.Keys, id)
	c.Edges[id] = map[int64]bool{}
}

// NewCallGraph returns the call graph of the program: node ids are the indexes of the methods in
// p.Methods(), and there is an edge from a caller to every callee it has a call edge to
func NewCallGraph(p cfa.Provider) (CGraph, []cfa.Signature) {
	sigs := p.Methods()
	ids := make(map[cfa.Signature]int64, len(sigs))
	c := newCGraph(len(sigs))
	for i, sig := range sigs {
		ids[sig] = int64(i)
		c.addNode(int64(i), sig.String())
	}
	for i, sig := range sigs {
		m, _ := p.Method(sig)
		for _, n := range m.Nodes() {
			for _, e := range n.CallEdges() {
				if callee, ok := ids[e.Call.Target]; ok {
					c.Edges[int64(i)][callee] = true
				}
			}
		}
	}
	return c, sigs
}

// NewMethodGraph returns the instruction graph of the method: node ids are the indexes of the nodes in m.Nodes()
func NewMethodGraph(m *cfa.Method) (CGraph, map[*cfa.Node]int64) {
	nodes := m.Nodes()
	ids := make(map[*cfa.Node]int64, len(nodes))
	c := newCGraph(len(nodes))
	for i, n := range nodes {
		ids[n] = int64(i)
		c.addNode(int64(i), n.String())
	}
	for i, n := range nodes {
		for _, e := range n.InstructionEdges() {
			if dst, ok := ids[e.Dst]; ok {
				c.Edges[int64(i)][dst] = true
			}
		}
	}
	return c, ids
}

// Subgraph returns a new graph that is the original graph with only the nodes in include. Only the edges that have
// both the origin and destination nodes in the include nodes are kept in the resulting graph.
// The subgraph's order and IDMap are the same as in origin, meaning that node indices will stay consistent
// across subgraphs.
func Subgraph(original CGraph, include []int64) CGraph {
	in := make(map[int64]bool, len(include))
	keys := make([]int64, len(include))
	for j, i := range include {
		keys[j] = i
		in[i] = true
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	edges := make(map[int64]map[int64]bool, len(include))
	for _, i := range include {
		edges[i] = map[int64]bool{}
		for e := range original.Edges[i] {
			if in[e] {
				edges[i][e] = true
			}
		}
	}

	return CGraph{
		order: original.Order(),
		IDMap: original.IDMap,
		Edges: edges,
		Keys:  keys,
	}
}

// Order implements the order of the graph.Iterator interface for the CGraph
func (c CGraph) Order() int {
	return c.order
}

// Visit implements the graph.Iterator interface for the CGraph
func (c CGraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	succs, ok := c.Edges[int64(v)]
	if !ok {
		return false
	}
	for _, w := range sortedIDs(succs) {
		if do(int(w), 1) {
			return true
		}
	}
	return false
}

func sortedIDs(m map[int64]bool) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// *************** Graph interface implementation **********************

// Node implements the Graph interface. It returns nil when the node is not in the graph.
func (c CGraph) Node(id int64) graph.Node {
	if _, ok := c.Edges[id]; !ok {
		return nil
	}
	return c.IDMap[id]
}

// Nodes returns the set of nodes in the graph
func (c CGraph) Nodes() graph.Nodes {
	return newNodeSet(c.IDMap, c.Keys)
}

// From returns the set of nodes reachable in one step from the id
func (c CGraph) From(id int64) graph.Nodes {
	return newNodeSet(c.IDMap, sortedIDs(c.Edges[id]))
}

// To returns the set of nodes that reach the id in one step
func (c CGraph) To(id int64) graph.Nodes {
	var keys []int64
	for _, k := range c.Keys {
		if c.Edges[k][id] {
			keys = append(keys, k)
		}
	}
	return newNodeSet(c.IDMap, keys)
}

// HasEdgeBetween returns a boolean indicating whether an edge exists between the two node identifiers
func (c CGraph) HasEdgeBetween(xid, yid int64) bool {
	return c.Edges[xid][yid] || c.Edges[yid][xid]
}

// HasEdgeFromTo returns true if there is a directed edge from uid to vid
func (c CGraph) HasEdgeFromTo(uid, vid int64) bool {
	return c.Edges[uid][vid]
}

// Edge returns the edge between the two identifiers (nil if none exists)
func (c CGraph) Edge(uid, vid int64) graph.Edge {
	if c.Edges[uid][vid] {
		return CEdge{from: c.IDMap[uid], to: c.IDMap[vid]}
	}
	return nil
}

// *************** Nodes implementation **********************

// CNode is a node of a CGraph: a method of a call graph or a node of a method's CFA
type CNode struct {
	id    int64
	Label string
}

// ID returns the id of the node
func (n CNode) ID() int64 {
	return n.id
}

func (n CNode) String() string {
	return n.Label
}

// NodeSet implements the graph.Nodes interface, an iterator over a set of nodes
type NodeSet struct {
	// nodes is the set of nodes in the iterator
	nodes map[int64]CNode

	// ids is the set of node ids in the iterator
	ids []int64

	// cur is the current index of the iterator. The current node is nodes[ids[cur]]
	// invariant: -1 <= cur < len(ids); -1 before the first call to Next
	cur int
}

func newNodeSet(nodes map[int64]CNode, ids []int64) *NodeSet {
	return &NodeSet{nodes: nodes, ids: ids, cur: -1}
}

// Next moves the current node to the next, and returns true if such a node exists. Otherwise, returns false
// and the current node has not changed.
func (ns *NodeSet) Next() bool {
	if ns.cur < len(ns.ids)-1 {
		ns.cur++
		return true
	}
	return false
}

// Len returns the number of nodes remaining in the iterator
func (ns *NodeSet) Len() int {
	return len(ns.ids) - ns.cur - 1
}

// Reset resets the iterator before its first node
func (ns *NodeSet) Reset() {
	ns.cur = -1
}

// Node return the current node in the set
func (ns *NodeSet) Node() graph.Node {
	if ns.cur < 0 || ns.cur >= len(ns.ids) {
		return nil
	}
	return ns.nodes[ns.ids[ns.cur]]
}

// *************** Edge implementation **********************

// CEdge implements the graph.Edge interface
type CEdge struct {
	from CNode
	to   CNode
}

// From returns the origin of the edge
func (e CEdge) From() graph.Node {
	return e.from
}

// To returns the destination of the edge
func (e CEdge) To() graph.Node {
	return e.to
}

// ReversedEdge returns a new value representing the reversed edge
func (e CEdge) ReversedEdge() graph.Edge {
	return CEdge{from: e.to, to: e.from}
}
