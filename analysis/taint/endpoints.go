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

package taint

import (
	"fmt"

	"github.com/awslabs/ar-jvm-tools/analysis/bam"
	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
	"github.com/awslabs/ar-jvm-tools/analysis/heap"
	"github.com/awslabs/ar-jvm-tools/analysis/jvm"
	"github.com/awslabs/ar-jvm-tools/analysis/memloc"
)

// An Endpoint is a sensitive operand of a call to a sink that is tainted in a reached state
type Endpoint struct {
	Sink *Sink

	// Call is the call to the sink
	Call *cfa.Call

	// Location is the sensitive memory location in the state at the call site
	Location memloc.Location

	Node  *cfa.Node
	Block *bam.BlockAbstraction
	State *jvm.Composite

	// Sources are the labels of the taint at the location the sink is concerned with
	Sources Set
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s at %s: %s tainted by %s", e.Call.Target, e.Node, e.Location, e.Sources)
}

// callsAt returns the calls of the invoke instruction at the node: one per resolved target, or the call to the
// method of the instruction when no target is resolved
func callsAt(n *cfa.Node, instr cfa.Instruction) []*cfa.Call {
	var calls []*cfa.Call
	for _, e := range n.CallEdges() {
		calls = append(calls, e.Call)
	}
	if len(calls) == 0 {
		calls = append(calls, &cfa.Call{Site: n.Location, Target: instr.Method, Static: instr.IsStaticInvoke(),
			Instruction: instr})
	}
	return calls
}

// SourcesAt returns the taint of the location in the composite state. The taint of operand stack locations
// includes the content taint of the objects they point to.
func SourcesAt(c *jvm.Composite, loc memloc.Location) Set {
	f := Follower(c)
	v := ValueAt(f, loc)
	if loc.Kind == memloc.Stack && loc.Index < c.Principal().Frame.Height() {
		v = v.Join(f.Heap.ObjectValue(heap.Addr[Set]{Refs: c.Principal().Frame.Peek(loc.Index)}, Set{}))
	}
	return v
}

// findEndpoints scans all the blocks of the cache for the calls to sinks with tainted sensitive operands
func findEndpoints(cache *bam.Cache, rules *Rules) []Endpoint {
	var res []Endpoint
	for _, b := range cache.Entries() {
		for _, s := range b.Reached.All() {
			c, ok := s.(*jvm.Composite)
			if !ok {
				continue
			}
			n := c.Node()
			instr, ok := n.Instruction()
			if !ok || !instr.IsInvoke() {
				continue
			}
			for _, call := range callsAt(n, instr) {
				for _, sink := range rules.SinksOf(call.Target) {
					locs := sink.StackLocations(call)
					if sink.Globals {
						for _, f := range Follower(c).Statics() {
							locs = append(locs, memloc.StaticLocation(f))
						}
					}
					for _, loc := range locs {
						if v := sink.Filter(SourcesAt(c, loc)); !v.IsEmpty() {
							res = append(res, Endpoint{Sink: sink, Call: call, Location: loc, Node: n, Block: b,
								State: c, Sources: v})
						}
					}
				}
			}
		}
	}
	return res
}
