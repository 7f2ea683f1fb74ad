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

// Package bam implements block abstraction memoization: the interprocedural analysis of a program by analyzing each
// method separately for each reduced entry state it is called with, and caching the results.
//
// The analysis of a call reduces the state of the caller to the entry state of the callee, looks up the cache for a
// block abstraction of the callee with an equal entry state, analyzes the callee on a miss, and expands every exit
// state of the block onto the node following the call in the caller.
package bam

import (
	"fmt"

	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
	"github.com/awslabs/ar-jvm-tools/analysis/cpa"
)

// ReduceOperator computes the entry state of a callee from the state of the caller at a call site
type ReduceOperator interface {
	Reduce(state cpa.AbstractState, call *cfa.Call, entry *cfa.Node) cpa.AbstractState
}

// ExpandOperator computes the state of the caller after a call from its state at the call site and an exit state of
// the callee
type ExpandOperator interface {
	Expand(caller cpa.AbstractState, exit cpa.AbstractState, call *cfa.Call, ret *cfa.Node) cpa.AbstractState
}

// CPA is the configurable program analysis wrapped by the block abstraction memoization. The transfer relation is
// applied to the instruction edges; on invoke instructions that cannot be analyzed interprocedurally, its result is
// the approximation of the call.
type CPA struct {
	Transfer cpa.EdgeTransferRelation
	Merge    cpa.MergeOperator
	Stop     cpa.StopOperator
	Reduce   ReduceOperator
	Expand   ExpandOperator
}

// Metrics counts the events of an analyzer. Every counter except Hits and Misses counts a call approximated by the
// wrapped transfer relation.
type Metrics struct {
	// Hits is the number of calls answered by the cache
	Hits int

	// Misses is the number of blocks analyzed
	Misses int

	// UnknownTargets is the number of invoke instructions analyzed without any resolved callee CFA
	UnknownTargets int

	// DepthTruncations is the number of invoke instructions not analyzed because of the call stack depth bound
	DepthTruncations int

	// RecursionCutoffs is the number of calls to a block whose analysis was in progress
	RecursionCutoffs int
}

func (m Metrics) String() string {
	return fmt.Sprintf("%d hits, %d misses, %d unknown targets, %d depth truncations, %d recursion cutoffs",
		m.Hits, m.Misses, m.UnknownTargets, m.DepthTruncations, m.RecursionCutoffs)
}
