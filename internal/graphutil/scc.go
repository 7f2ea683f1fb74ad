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
	"github.com/yourbasic/graph"
	"golang.org/x/tools/container/intsets"
	"gonum.org/v1/gonum/graph/topo"
)

// StrongComponents returns the strongly connected components of the nodes of the graph. Each component is sorted
// by node id.
func StrongComponents(cg CGraph) [][]int64 {
	var sccs [][]int64
	for _, component := range graph.StrongComponents(cg) {
		var ids []int64
		for _, v := range component {
			if _, ok := cg.Edges[int64(v)]; ok {
				ids = append(ids, int64(v))
			}
		}
		if len(ids) == 0 {
			continue
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		sccs = append(sccs, ids)
	}
	return sccs
}

// Cyclic returns the strongly connected components that contain a cycle: the components of two nodes or more, and
// the single nodes with an edge to themselves. The components are sorted by their first node id.
func Cyclic(cg CGraph) [][]int64 {
	var res [][]int64
	for _, c := range StrongComponents(cg) {
		if len(c) > 1 || cg.Edges[c[0]][c[0]] {
			res = append(res, c)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i][0] < res[j][0] })
	return res
}

// RecursiveMethods returns the groups of mutually recursive methods of the program
func RecursiveMethods(p cfa.Provider) [][]cfa.Signature {
	cg, sigs := NewCallGraph(p)
	var res [][]cfa.Signature
	for _, c := range Cyclic(cg) {
		group := make([]cfa.Signature, len(c))
		for i, id := range c {
			group[i] = sigs[id]
		}
		res = append(res, group)
	}
	return res
}

// TopologicalRanks ranks the nodes of the graph in a topological order of its strongly connected components:
// a node is ranked before every node it reaches, except the nodes of its own component, which are ranked by id.
func TopologicalRanks(cg CGraph) map[int64]int {
	sccs := topo.TarjanSCC(cg)
	ranks := make(map[int64]int, len(cg.Keys))
	rank := 0
	// TarjanSCC returns the components in reverse topological order
	for i := len(sccs) - 1; i >= 0; i-- {
		ids := make([]int64, len(sccs[i]))
		for j, n := range sccs[i] {
			ids[j] = n.ID()
		}
		sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
		for _, id := range ids {
			ranks[id] = rank
			rank++
		}
	}
	return ranks
}

// MethodRanks returns the topological ranks of the nodes of the method
func MethodRanks(m *cfa.Method) map[*cfa.Node]int {
	cg, ids := NewMethodGraph(m)
	ranks := TopologicalRanks(cg)
	res := make(map[*cfa.Node]int, len(ids))
	for n, id := range ids {
		res[n] = ranks[id]
	}
	return res
}

// Reachable returns the set of the ids of the nodes reachable from the roots, roots included
func Reachable(cg CGraph, roots ...int64) *intsets.Sparse {
	visited := &intsets.Sparse{}
	stack := make([]int64, 0, len(roots))
	for _, r := range roots {
		if visited.Insert(int(r)) {
			stack = append(stack, r)
		}
	}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for w := range cg.Edges[v] {
			if visited.Insert(int(w)) {
				stack = append(stack, w)
			}
		}
	}
	return visited
}

// ReachableMethods returns the methods reachable from the entry in the call graph of the program, entry included
func ReachableMethods(p cfa.Provider, entry cfa.Signature) []cfa.Signature {
	cg, sigs := NewCallGraph(p)
	var roots []int64
	for i, sig := range sigs {
		if sig == entry {
			roots = append(roots, int64(i))
		}
	}
	var res []cfa.Signature
	for _, id := range Reachable(cg, roots...).AppendTo(nil) {
		res = append(res, sigs[id])
	}
	return res
}
