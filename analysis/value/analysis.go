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

package value

import (
	"context"
	"fmt"

	"github.com/awslabs/ar-jvm-tools/analysis/bam"
	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
	"github.com/awslabs/ar-jvm-tools/analysis/config"
	"github.com/awslabs/ar-jvm-tools/analysis/cpa"
	"github.com/awslabs/ar-jvm-tools/analysis/heap"
	"github.com/awslabs/ar-jvm-tools/analysis/jvm"
	"github.com/awslabs/ar-jvm-tools/analysis/lattice"
)

// State is the state of the value analysis
type State = jvm.State[Value]

// EntryState returns the state at the entry of the method where every argument is the unknown value of its type
func EntryState(m *cfa.Method) *State {
	s := jvm.EntryState[Value](m, heap.NewShallow[Value](), func(_ int, t cfa.TypeDescriptor) Value {
		return UnknownOf(t)
	})
	s.SetStaticDefault(staticDefault)
	return s
}

// expandOperator expands the exit states of callees. The objects passed to the callee lose their content, unless
// the callee returns them, since the callee may have mutated them.
type expandOperator struct {
	jvm.ExpandOperator[Value]
}

func (e expandOperator) Expand(caller cpa.AbstractState, exit cpa.AbstractState, call *cfa.Call,
	ret *cfa.Node) cpa.AbstractState {
	c := lattice.Cast[*State]("value expand", caller)
	var args []Value
	for d := 0; d < call.ArgCount() && d < c.Frame.Height(); d++ {
		args = append(args, c.Frame.Peek(d))
	}
	res := lattice.Cast[*State]("value expand", e.ExpandOperator.Expand(caller, exit, call, ret))
	returned, _ := jvm.ReturnValue(lattice.Cast[*State]("value expand", exit))
	for _, a := range args {
		if a.kind != Object {
			continue
		}
		switch {
		case returned.SameObject(a):
			res.Replace(a.SameObject, returned)
		case a.modeled:
			res.Replace(a.SameObject, a.WithoutContent())
		}
	}
	return res
}

// NewCPA returns the value analysis over the domain, to run with block abstraction memoization
func NewCPA(cfg *config.Config, d *Domain) bam.CPA {
	return bam.CPA{
		Transfer: jvm.NewTransferRelation[Value](d),
		Merge:    cpa.MergeJoin{},
		Stop:     cpa.StopSep{},
		Reduce:   jvm.ReduceOperator[Value]{Domain: d, ReduceHeap: cfg.ReduceHeap},
		Expand:   expandOperator{jvm.ExpandOperator[Value]{Domain: d}},
	}
}

// AnalysisResult is the result of the value analysis of an entry method
type AnalysisResult struct {
	// Cache contains the blocks of every method analyzed
	Cache *bam.Cache

	// Entry is the block of the entry method
	Entry *bam.BlockAbstraction

	// Status is the status of the run; results are partial when it is not complete
	Status cpa.Status

	Metrics bam.Metrics

	// Factory holds the object identities of the run and the counters of the models
	Factory *Factory
}

// Analyze runs the value analysis of the entry method
func Analyze(cfg *config.Config, program cfa.Provider, entry cfa.Signature) (AnalysisResult, error) {
	return AnalyzeContext(context.Background(), cfg, program, entry, config.NewLogGroup(cfg))
}

// AnalyzeContext runs the value analysis of the entry method, logging to the logger. The analysis aborts when ctx
// is done.
func AnalyzeContext(ctx context.Context, cfg *config.Config, program cfa.Provider, entry cfa.Signature,
	logger *config.LogGroup) (AnalysisResult, error) {
	m, ok := program.Method(entry)
	if !ok {
		return AnalysisResult{}, fmt.Errorf("value analysis: no method %s", entry)
	}
	f := NewFactory()
	a := bam.NewAnalyzer(cfg, program, NewCPA(cfg, NewDomain(f)), logger)
	block, status, err := a.Run(ctx, entry, EntryState(m))
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("value analysis: %w", err)
	}
	logger.Debugf("value analysis of %s: %d model evaluations, %d model errors", entry, f.Evaluations, f.ModelErrors)
	return AnalysisResult{Cache: a.Cache, Entry: block, Status: status, Metrics: a.Metrics(), Factory: f}, nil
}

// ExitValue returns the value returned by the entry method: the join of the values returned in its exit states
func (r AnalysisResult) ExitValue() Value {
	var res Value
	for _, s := range r.Entry.Exits {
		if v, ok := jvm.ReturnValue(s.(*State)); ok {
			res = res.Join(v)
		}
	}
	return res
}
