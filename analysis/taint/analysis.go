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
	"context"
	"fmt"
	"time"

	"github.com/awslabs/ar-jvm-tools/analysis/bam"
	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
	"github.com/awslabs/ar-jvm-tools/analysis/config"
	"github.com/awslabs/ar-jvm-tools/analysis/cpa"
	"github.com/awslabs/ar-jvm-tools/analysis/heap"
	"github.com/awslabs/ar-jvm-tools/analysis/jvm"
	"github.com/awslabs/ar-jvm-tools/analysis/memloc"
	"github.com/awslabs/ar-jvm-tools/analysis/reference"
	"golang.org/x/sync/errgroup"
)

// NewHeap returns an empty taint heap of the model: a follower tree heap for "tree", a shallow heap for "shallow"
func NewHeap(model string) heap.Heap[Set] {
	if model == config.HeapModelShallow {
		return heap.NewShallow[Set]()
	}
	return heap.NewFollower[Set]()
}

// EntryState returns the composite state at the entry of the method: the reference entry state and untainted
// arguments
func EntryState(cfg *config.Config, m *cfa.Method) *jvm.Composite {
	taints := jvm.EntryState[Set](m, NewHeap(cfg.HeapModel), func(int, cfa.TypeDescriptor) Set { return Set{} })
	taints.SetStaticDefault((&Domain{}).StaticDefault)
	c, err := jvm.NewComposite(reference.EntryState(m), taints)
	if err != nil {
		panic(err)
	}
	return c
}

// NewCPA returns the taint analysis of the rules: the composite of the reference analysis and the taint follower
func NewCPA(cfg *config.Config, rules *Rules) bam.CPA {
	refs := reference.Domain{}
	d := &Domain{Rules: rules}
	return bam.CPA{
		Transfer: jvm.CompositeTransfer{Steppers: []jvm.Stepper{
			jvm.NewTransferRelation[memloc.RefSet](refs),
			jvm.NewTransferRelation[Set](d),
		}},
		Merge: cpa.MergeJoin{},
		Stop:  cpa.StopSep{},
		Reduce: jvm.CompositeReduce{Reducers: []jvm.Reducer{
			jvm.ReduceOperator[memloc.RefSet]{Domain: refs, ReduceHeap: cfg.ReduceHeap},
			jvm.ReduceOperator[Set]{Domain: d, ReduceHeap: cfg.ReduceHeap},
		}},
		Expand: expandOperator{
			CompositeExpand: jvm.CompositeExpand{Expanders: []jvm.Expander{
				jvm.ExpandOperator[memloc.RefSet]{Domain: refs},
				jvm.ExpandOperator[Set]{Domain: d},
			}},
			domain: d,
		},
	}
}

// A Run is the taint analysis of one entry method. The blocks of the analysis stay in its cache across repeated
// calls to Analyze.
type Run struct {
	Config  *config.Config
	Program cfa.Provider
	Entry   cfa.Signature
	Rules   *Rules
	Logger  *config.LogGroup

	// Block is the block of the entry method computed by the last call to Analyze
	Block *bam.BlockAbstraction

	// Status is the status of the last call to Analyze
	Status cpa.Status

	analyzer  *bam.Analyzer
	endpoints []Endpoint
	scanned   bool
}

// NewRun returns the taint analysis of the entry method for all the taint problems of the config
func NewRun(cfg *config.Config, program cfa.Provider, entry cfa.Signature, logger *config.LogGroup) *Run {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if logger == nil {
		logger = config.NewLogGroup(cfg)
	}
	rules := NewRules(cfg.TaintTrackingProblems...)
	return &Run{
		Config:   cfg,
		Program:  program,
		Entry:    entry,
		Rules:    rules,
		Logger:   logger,
		analyzer: bam.NewAnalyzer(cfg, program, NewCPA(cfg, rules), logger),
	}
}

// Cache returns the cache of the blocks of the run
func (r *Run) Cache() *bam.Cache {
	return r.analyzer.Cache
}

// Metrics returns the counters of the block abstraction memoization of the run
func (r *Run) Metrics() bam.Metrics {
	return r.analyzer.Metrics()
}

// Analyze runs the analysis of the entry method. The endpoints are computed again on their next access.
func (r *Run) Analyze(ctx context.Context) error {
	m, ok := r.Program.Method(r.Entry)
	if !ok {
		return fmt.Errorf("taint analysis: no method %s", r.Entry)
	}
	start := time.Now()
	r.Logger.Infof("Starting taint analysis of %s ...", r.Entry)
	block, status, err := r.analyzer.Run(ctx, r.Entry, EntryState(r.Config, m))
	if err != nil {
		return fmt.Errorf("taint analysis: %w", err)
	}
	r.Block, r.Status = block, status
	r.endpoints, r.scanned = nil, false
	r.Logger.Infof("Taint analysis of %s done (%.2f s): %s, %s", r.Entry, time.Since(start).Seconds(), status,
		r.Metrics())
	return nil
}

// Endpoints returns the endpoints of the run. They are computed by scanning the whole cache on the first call and
// memoized.
func (r *Run) Endpoints() []Endpoint {
	if !r.scanned {
		r.endpoints = findEndpoints(r.Cache(), r.Rules)
		r.scanned = true
		r.Logger.Debugf("%d endpoints in %d blocks", len(r.endpoints), r.Cache().Len())
	}
	return r.endpoints
}

// AnalyzeAll runs independent taint analyses of the entry methods in parallel. Each analysis has its own cache.
// The runs are returned in the order of the entries.
func AnalyzeAll(ctx context.Context, cfg *config.Config, program cfa.Provider, entries []cfa.Signature,
	logger *config.LogGroup) ([]*Run, error) {
	runs := make([]*Run, len(entries))
	g, ctx := errgroup.WithContext(ctx)
	for i, entry := range entries {
		i, entry := i, entry
		runs[i] = NewRun(cfg, program, entry, logger)
		g.Go(func() error {
			return runs[i].Analyze(ctx)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return runs, nil
}
