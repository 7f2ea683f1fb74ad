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

package bam

import (
	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
	"github.com/awslabs/ar-jvm-tools/analysis/cpa"
)

// transfer is the transfer relation of the fixpoint computation of a block
type transfer struct {
	a *Analyzer
}

// Successors implements cpa.TransferRelation. Invoke instructions with resolved callees are analyzed with the
// blocks of the callees; every other edge goes through the wrapped transfer relation.
func (t transfer) Successors(state cpa.AbstractState) []cpa.AbstractState {
	a := t.a
	n := cpa.NodeOf(state)
	instr, ok := n.Instruction()
	if !ok || !instr.IsInvoke() {
		return t.local(state, n)
	}
	calls := n.CallEdges()
	if len(calls) == 0 {
		a.metrics.UnknownTargets++
		a.Logger.Tracef("no callee for %s at %s", instr, n)
		return t.local(state, n)
	}
	if !a.callAllowed() {
		a.metrics.DepthTruncations++
		a.Logger.Tracef("call stack depth reached at %s", n)
		return t.local(state, n)
	}

	ret := n.FallThrough()
	caller := a.stack[len(a.stack)-1].id
	approximate := false
	var res []cpa.AbstractState
	for _, e := range calls {
		entry := a.CPA.Reduce.Reduce(state, e.Call, e.Dst)
		block, ok := a.analyze(e.Call.Target, entry)
		if !ok {
			approximate = true
			continue
		}
		a.Cache.RecordCall(CallUsage{Caller: caller, Site: n.Location, Call: e.Call, Callee: block.ID})
		for _, exit := range block.Exits {
			res = append(res, a.CPA.Expand.Expand(state, exit, e.Call, ret))
		}
	}
	if approximate {
		res = append(res, t.local(state, n)...)
	}
	return res
}

// local returns the successors of the state along the instruction edges of the node
func (t transfer) local(state cpa.AbstractState, n *cfa.Node) []cpa.AbstractState {
	var res []cpa.AbstractState
	for _, e := range n.InstructionEdges() {
		res = append(res, t.a.CPA.Transfer.EdgeSuccessors(state, e)...)
	}
	return res
}
