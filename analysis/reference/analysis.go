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

package reference

import (
	"context"
	"fmt"

	"github.com/awslabs/ar-jvm-tools/analysis/bam"
	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
	"github.com/awslabs/ar-jvm-tools/analysis/config"
	"github.com/awslabs/ar-jvm-tools/analysis/cpa"
	"github.com/awslabs/ar-jvm-tools/analysis/heap"
	"github.com/awslabs/ar-jvm-tools/analysis/jvm"
	"github.com/awslabs/ar-jvm-tools/analysis/memloc"
)

// State is the state of the reference analysis
type State = jvm.State[memloc.RefSet]

// NewHeap returns an empty principal tree heap
func NewHeap() heap.Heap[memloc.RefSet] {
	return heap.NewTree[memloc.RefSet](Fabricate, Domain{}.Refs)
}

// EntryState returns the state at the entry of the method where every argument of reference type points to an
// object created at the entry, first seen in the local slot of the argument
func EntryState(m *cfa.Method) *State {
	s := jvm.EntryState[memloc.RefSet](m, NewHeap(), func(slot int, t cfa.TypeDescriptor) memloc.RefSet {
		if t.Kind() != cfa.Reference {
			return memloc.RefSet{}
		}
		return fresh(m.Entry.Location, memloc.LocalSite(slot))
	})
	s.SetStaticDefault(Domain{}.StaticDefault)
	return s
}

// NewCPA returns the reference analysis to run with block abstraction memoization
func NewCPA(cfg *config.Config) bam.CPA {
	d := Domain{}
	return bam.CPA{
		Transfer: jvm.NewTransferRelation[memloc.RefSet](d),
		Merge:    cpa.MergeJoin{},
		Stop:     cpa.StopSep{},
		Reduce:   jvm.ReduceOperator[memloc.RefSet]{Domain: d, ReduceHeap: cfg.ReduceHeap},
		Expand:   jvm.ExpandOperator[memloc.RefSet]{Domain: d},
	}
}

// AnalysisResult is the result of the reference analysis of an entry method
type AnalysisResult struct {
	// Cache contains the blocks of every method analyzed
	Cache *bam.Cache

	// Entry is the block of the entry method
	Entry *bam.BlockAbstraction

	// Status is the status of the run; results are partial when it is not complete
	Status cpa.Status

	Metrics bam.Metrics
}

// Analyze runs the reference analysis of the entry method
func Analyze(cfg *config.Config, program cfa.Provider, entry cfa.Signature) (AnalysisResult, error) {
	return AnalyzeContext(context.Background(), cfg, program, entry, config.NewLogGroup(cfg))
}

// AnalyzeContext runs the reference analysis of the entry method, logging to the logger. The analysis aborts when
// ctx is done.
func AnalyzeContext(ctx context.Context, cfg *config.Config, program cfa.Provider, entry cfa.Signature,
	logger *config.LogGroup) (AnalysisResult, error) {
	m, ok := program.Method(entry)
	if !ok {
		return AnalysisResult{}, fmt.Errorf("reference analysis: no method %s", entry)
	}
	a := bam.NewAnalyzer(cfg, program, NewCPA(cfg), logger)
	block, status, err := a.Run(ctx, entry, EntryState(m))
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("reference analysis: %w", err)
	}
	return AnalysisResult{Cache: a.Cache, Entry: block, Status: status, Metrics: a.Metrics()}, nil
}

// ExitValue returns the references returned by the entry method: the join of the values returned in its exit states
func (r AnalysisResult) ExitValue() memloc.RefSet {
	res := memloc.RefSet{}
	for _, s := range r.Entry.Exits {
		if v, ok := jvm.ReturnValue(s.(*State)); ok {
			res = res.Join(v)
		}
	}
	return res
}
