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

package cpa

import "container/heap"

// Waitlist holds the states waiting to be expanded by the algorithm. The order in which states are popped changes
// the cost of the analysis, not its result.
type Waitlist interface {
	Add(AbstractState)
	Pop() AbstractState
	IsEmpty() bool
	Len() int
}

// WaitlistFactory creates an empty waitlist for each run of the algorithm
type WaitlistFactory func() Waitlist

type depthFirst struct {
	stack []AbstractState
}

// NewDepthFirst returns a waitlist popping the last state added first
func NewDepthFirst() Waitlist {
	return &depthFirst{}
}

func (w *depthFirst) Add(s AbstractState) {
	w.stack = append(w.stack, s)
}

func (w *depthFirst) Pop() AbstractState {
	s := w.stack[len(w.stack)-1]
	w.stack[len(w.stack)-1] = nil
	w.stack = w.stack[:len(w.stack)-1]
	return s
}

func (w *depthFirst) IsEmpty() bool {
	return len(w.stack) == 0
}

func (w *depthFirst) Len() int {
	return len(w.stack)
}

type breadthFirst struct {
	queue []AbstractState
	head  int
}

// NewBreadthFirst returns a waitlist popping the first state added first
func NewBreadthFirst() Waitlist {
	return &breadthFirst{}
}

func (w *breadthFirst) Add(s AbstractState) {
	w.queue = append(w.queue, s)
}

func (w *breadthFirst) Pop() AbstractState {
	s := w.queue[w.head]
	w.queue[w.head] = nil
	w.head++
	if w.head > len(w.queue)/2 && w.head > 32 {
		w.queue = append([]AbstractState(nil), w.queue[w.head:]...)
		w.head = 0
	}
	return s
}

func (w *breadthFirst) IsEmpty() bool {
	return w.head >= len(w.queue)
}

func (w *breadthFirst) Len() int {
	return len(w.queue) - w.head
}

type rankedState struct {
	state AbstractState
	rank  int
	seq   int
}

type rankedHeap []rankedState

func (h rankedHeap) Len() int { return len(h) }
func (h rankedHeap) Less(i, j int) bool {
	if h[i].rank != h[j].rank {
		return h[i].rank < h[j].rank
	}
	return h[i].seq < h[j].seq
}
func (h rankedHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *rankedHeap) Push(x any)   { *h = append(*h, x.(rankedState)) }
func (h *rankedHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

type topological struct {
	rank func(AbstractState) int
	heap rankedHeap
	seq  int
}

// NewTopological returns a waitlist popping the state of lowest rank first, and states of the same rank in the
// order they were added. With ranks computed from a topological order of the CFA, a node is expanded after all its
// predecessors outside of loops.
func NewTopological(rank func(AbstractState) int) Waitlist {
	return &topological{rank: rank}
}

func (w *topological) Add(s AbstractState) {
	heap.Push(&w.heap, rankedState{state: s, rank: w.rank(s), seq: w.seq})
	w.seq++
}

func (w *topological) Pop() AbstractState {
	return heap.Pop(&w.heap).(rankedState).state
}

func (w *topological) IsEmpty() bool {
	return len(w.heap) == 0
}

func (w *topological) Len() int {
	return len(w.heap)
}
