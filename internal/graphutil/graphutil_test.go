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
	"reflect"
	"testing"

	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
)

const program = `
methods:
  - signature: A.a()V
    static: true
    code: |
      invokestatic A.b()V
      return
  - signature: A.b()V
    static: true
    code: |
      invokestatic A.a()V
      return
  - signature: A.c()V
    static: true
    code: |
      invokestatic A.c()V
      return
  - signature: Main.main()V
    static: true
    code: |
      invokestatic A.a()V
      return
  - signature: L.loop(I)V
    static: true
    code: |
      L0:
      iload_0
      ifle L1
      goto L0
      L1:
      return
`

func loadProgram(t *testing.T) *cfa.Graph {
	g, err := cfa.Parse([]byte(program))
	if err != nil {
		t.Fatalf("could not parse program: %v", err)
	}
	return g
}

func TestCallGraphComponents(t *testing.T) {
	g := loadProgram(t)
	cg, sigs := NewCallGraph(g)
	if len(sigs) != 5 || cg.Order() != 5 {
		t.Fatalf("expected 5 methods, got %d", len(sigs))
	}
	// methods are sorted: A.a, A.b, A.c, L.loop, Main.main
	expected := [][]int64{{0, 1}, {2}}
	if cyclic := Cyclic(cg); !reflect.DeepEqual(cyclic, expected) {
		t.Errorf("expected cyclic components %v, got %v", expected, cyclic)
	}
	total := 0
	for _, c := range StrongComponents(cg) {
		total += len(c)
	}
	if total != 5 {
		t.Errorf("components should partition the 5 nodes, got %d nodes", total)
	}

	groups := RecursiveMethods(g)
	if len(groups) != 2 || len(groups[0]) != 2 || groups[1][0].String() != "A.c()V" {
		t.Errorf("unexpected recursive methods %v", groups)
	}
}

func TestSubgraph(t *testing.T) {
	cg, _ := NewCallGraph(loadProgram(t))
	sub := Subgraph(cg, []int64{4, 0})
	if !reflect.DeepEqual(sub.Keys, []int64{0, 4}) {
		t.Errorf("expected sorted keys, got %v", sub.Keys)
	}
	if !sub.HasEdgeFromTo(4, 0) || sub.HasEdgeFromTo(0, 1) {
		t.Errorf("subgraph should keep only the edges between included nodes")
	}
	if len(Cyclic(sub)) != 0 {
		t.Errorf("subgraph has no cycle")
	}
	if sub.Node(1) != nil {
		t.Errorf("excluded node should not be in the subgraph")
	}
}

func TestNodeSetIteration(t *testing.T) {
	cg, _ := NewCallGraph(loadProgram(t))
	nodes := cg.Nodes()
	if nodes.Len() != 5 {
		t.Fatalf("expected 5 nodes, got %d", nodes.Len())
	}
	var ids []int64
	for nodes.Next() {
		ids = append(ids, nodes.Node().ID())
	}
	if !reflect.DeepEqual(ids, []int64{0, 1, 2, 3, 4}) {
		t.Errorf("unexpected iteration %v", ids)
	}
	if nodes.Len() != 0 {
		t.Errorf("exhausted iterator should be empty")
	}
	from := cg.From(0)
	if !from.Next() || from.Node().ID() != 1 || from.Next() {
		t.Errorf("A.a should only call A.b")
	}
	to := cg.To(0)
	if to.Len() != 2 {
		t.Errorf("A.a is called by A.b and Main.main, got %d callers", to.Len())
	}
}

func TestMethodRanks(t *testing.T) {
	g := loadProgram(t)
	m, _ := g.Method(cfa.MustParseSignature("L.loop(I)V"))
	ranks := MethodRanks(m)
	if len(ranks) != len(m.Nodes()) {
		t.Fatalf("every node should be ranked")
	}
	seen := map[int]bool{}
	for _, r := range ranks {
		if seen[r] {
			t.Errorf("rank %d given twice", r)
		}
		seen[r] = true
	}
	// the loop 0 -> 1 -> 2 -> 0 is ranked by offset, before the return and the exit
	order := []*cfa.Node{m.Node(0), m.Node(1), m.Node(2), m.Node(3), m.ReturnExit}
	for i := 1; i < len(order); i++ {
		if ranks[order[i-1]] >= ranks[order[i]] {
			t.Errorf("%s should be ranked before %s", order[i-1], order[i])
		}
	}
}

func TestReachable(t *testing.T) {
	g := loadProgram(t)
	reached := ReachableMethods(g, cfa.MustParseSignature("Main.main()V"))
	var names []string
	for _, sig := range reached {
		names = append(names, sig.String())
	}
	expected := []string{"A.a()V", "A.b()V", "Main.main()V"}
	if !reflect.DeepEqual(names, expected) {
		t.Errorf("expected %v, got %v", expected, names)
	}
	cg, _ := NewCallGraph(g)
	if s := Reachable(cg, 2); s.Len() != 1 || !s.Has(2) {
		t.Errorf("A.c only reaches itself, got %s", s.String())
	}
}
