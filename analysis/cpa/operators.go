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

import (
	"context"
	"time"

	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
	"github.com/awslabs/ar-jvm-tools/analysis/lattice"
)

// TransferRelation computes the abstract successors of a state
type TransferRelation interface {
	Successors(state AbstractState) []AbstractState
}

// EdgeTransferRelation computes the abstract successors of a state along one edge of the CFA
type EdgeTransferRelation interface {
	EdgeSuccessors(state AbstractState, edge *cfa.Edge) []AbstractState
}

// ForwardEdges is the transfer relation applying an edge transfer relation to every edge leaving the node of a
// location dependent state
type ForwardEdges struct {
	Edges EdgeTransferRelation
}

// Successors implements TransferRelation
func (f ForwardEdges) Successors(state AbstractState) []AbstractState {
	n := lattice.Cast[LocationDependent]("successors", state).Node()
	var res []AbstractState
	for _, e := range n.Leaving {
		res = append(res, f.Edges.EdgeSuccessors(state, e)...)
	}
	return res
}

// MergeOperator merges a new state into a state of the reached set. When the result differs from reached, it
// replaces reached in the reached set.
type MergeOperator interface {
	Merge(state AbstractState, reached AbstractState) AbstractState
}

// MergeSep never merges
type MergeSep struct{}

// Merge returns reached
func (MergeSep) Merge(_ AbstractState, reached AbstractState) AbstractState {
	return reached
}

// MergeJoin joins the new state into the reached state
type MergeJoin struct{}

// Merge returns the join of both states
func (MergeJoin) Merge(state AbstractState, reached AbstractState) AbstractState {
	return state.Join(reached)
}

// StopOperator decides whether a new state is covered by the states of its partition in the reached set
type StopOperator interface {
	Stop(state AbstractState, reached []AbstractState) bool
}

// StopSep stops when some reached state is above the new state
type StopSep struct{}

// Stop implements StopOperator
func (StopSep) Stop(state AbstractState, reached []AbstractState) bool {
	for _, r := range reached {
		if state.LessOrEqual(r) {
			return true
		}
	}
	return false
}

// StopJoin stops when the join of the reached states is above the new state
type StopJoin struct{}

// Stop implements StopOperator
func (StopJoin) Stop(state AbstractState, reached []AbstractState) bool {
	if len(reached) == 0 {
		return false
	}
	j := reached[0]
	for _, r := range reached[1:] {
		j = j.Join(r)
	}
	return state.LessOrEqual(j)
}

// StopNever never stops. Only use with transfer relations that terminate by themselves.
type StopNever struct{}

// Stop returns false
func (StopNever) Stop(AbstractState, []AbstractState) bool {
	return false
}

// StopAlways always stops: only the initial states are explored
type StopAlways struct{}

// Stop returns true
func (StopAlways) Stop(AbstractState, []AbstractState) bool {
	return true
}

// AbortOperator is checked once per iteration of the algorithm. When it returns true, the algorithm stops and its
// result is partial.
type AbortOperator interface {
	Abort(iteration int) bool
}

// NeverAbort lets the algorithm run to the fixpoint
type NeverAbort struct{}

// Abort returns false
func (NeverAbort) Abort(int) bool {
	return false
}

// CountAbort aborts after a number of iterations
type CountAbort int

// Abort returns true once iteration reaches the limit
func (c CountAbort) Abort(iteration int) bool {
	return iteration >= int(c)
}

// DeadlineAbort aborts after a point in time
type DeadlineAbort time.Time

// Abort returns true once the deadline has passed
func (d DeadlineAbort) Abort(int) bool {
	return time.Now().After(time.Time(d))
}

// ContextAbort aborts when the context is done
type ContextAbort struct {
	Ctx context.Context
}

// Abort returns true once the context is cancelled or its deadline has passed
func (c ContextAbort) Abort(int) bool {
	return c.Ctx.Err() != nil
}

// AnyAbort aborts when any of its operators aborts
type AnyAbort []AbortOperator

// Abort implements AbortOperator
func (a AnyAbort) Abort(iteration int) bool {
	for _, op := range a {
		if op.Abort(iteration) {
			return true
		}
	}
	return false
}
