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
	"context"
	"fmt"
	"time"

	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
	"github.com/awslabs/ar-jvm-tools/analysis/config"
	"github.com/awslabs/ar-jvm-tools/analysis/cpa"
	"github.com/awslabs/ar-jvm-tools/internal/graphutil"
	"github.com/google/uuid"
)

// An Analyzer runs the block abstraction memoization of a CPA over a program. The blocks it computes are stored in
// its Cache, which can be shared by successive runs on the same program. An Analyzer is not safe for concurrent use.
type Analyzer struct {
	Config  *config.Config
	Program cfa.Provider
	CPA     CPA
	Logger  *config.LogGroup
	Cache   *Cache

	metrics Metrics
	status  cpa.Status
	run     uuid.UUID
	budget  *budget

	// stack holds the blocks being analyzed, the entry block first
	stack []frame

	ranks map[cfa.Signature]map[*cfa.Node]int
}

type frame struct {
	sig   cfa.Signature
	entry cpa.AbstractState
	id    int
}

// NewAnalyzer returns an analyzer with an empty cache. A nil logger discards all messages.
func NewAnalyzer(cfg *config.Config, program cfa.Provider, c CPA, logger *config.LogGroup) *Analyzer {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if logger == nil {
		logger = config.DiscardLogGroup()
	}
	return &Analyzer{
		Config:  cfg,
		Program: program,
		CPA:     c,
		Logger:  logger,
		Cache:   NewCache(),
		ranks:   map[cfa.Signature]map[*cfa.Node]int{},
	}
}

// Metrics returns the counters accumulated by all the runs of the analyzer
func (a *Analyzer) Metrics() Metrics {
	return a.metrics
}

// Run analyzes the entry method from the initial state and returns its block abstraction with the status of the
// run. The status accumulates the fixpoint computations of every block analyzed during the run; it is complete only
// if none of them was aborted. The evaluation bound, the timeout and the cancellation of ctx apply to the whole run.
func (a *Analyzer) Run(ctx context.Context, entry cfa.Signature, initial cpa.AbstractState) (*BlockAbstraction,
	cpa.Status, error) {
	node, ok := a.Program.Entry(entry)
	if !ok {
		return nil, cpa.Status{}, fmt.Errorf("entry method %s has no control-flow automaton", entry)
	}
	init := initial.Copy()
	if ld, ok := init.(cpa.LocationDependent); ok {
		ld.SetNode(node)
	}

	a.run = uuid.New()
	a.budget = newBudget(ctx, a.Config)
	a.status = cpa.Status{Complete: true}
	a.stack = nil
	a.logRecursion(entry)

	start := time.Now()
	a.Logger.Debugf("run %s: analyzing %s", a.run, entry)
	block, ok := a.analyze(entry, init)
	if !ok {
		// the stack is empty when the entry is analyzed: this cannot happen
		return nil, a.status, fmt.Errorf("could not analyze %s", entry)
	}
	a.Logger.Debugf("run %s: %s in %s (%s)", a.run, a.status, time.Since(start), a.metrics)
	if !a.status.Complete {
		a.Logger.Warnf("analysis of %s aborted, results are partial", entry)
	}
	return block, a.status, nil
}

func (a *Analyzer) logRecursion(entry cfa.Signature) {
	if a.Logger.Level() < config.DebugLevel {
		return
	}
	reachable := map[cfa.Signature]bool{}
	for _, sig := range graphutil.ReachableMethods(a.Program, entry) {
		reachable[sig] = true
	}
	for _, group := range graphutil.RecursiveMethods(a.Program) {
		if reachable[group[0]] {
			a.Logger.Debugf("recursive methods reachable from %s: %v", entry, group)
		}
	}
}

// analyze returns the block of the method for the entry state, from the cache or by running the algorithm. It
// returns false when the analysis of the same block is in progress. A block is complete only if the budget of the
// run was not exhausted before its computation finished, which covers the blocks whose callees were aborted.
func (a *Analyzer) analyze(sig cfa.Signature, entry cpa.AbstractState) (*BlockAbstraction, bool) {
	// incomplete blocks of previous runs are analyzed again
	if b, ok := a.Cache.Lookup(sig, entry); ok && (b.Complete || b.Run == a.run) {
		a.metrics.Hits++
		return b, true
	}
	for _, f := range a.stack {
		if f.sig == sig && f.entry.Equal(entry) {
			a.metrics.RecursionCutoffs++
			a.Logger.Tracef("recursive call to %s cut off", sig)
			return nil, false
		}
	}
	a.metrics.Misses++
	m, _ := a.Program.Method(sig)

	id := a.Cache.Reserve()
	a.stack = append(a.stack, frame{sig: sig, entry: entry, id: id})
	defer func() { a.stack = a.stack[:len(a.stack)-1] }()

	alg := &cpa.Algorithm{
		Transfer: transfer{a},
		Merge:    a.CPA.Merge,
		Stop:     a.CPA.Stop,
		Abort:    a.budget,
		Logger:   a.Logger,
	}
	reached, status := alg.RunFrom(a.waitlist(m), entry)
	a.status = a.status.Add(status)

	block := &BlockAbstraction{
		ID:        id,
		Signature: sig,
		Entry:     entry,
		Reached:   reached,
		Complete:  status.Complete && !a.budget.exhausted,
		Run:       a.run,
	}
	block.Exits = block.StatesAt(m.ReturnExit)
	a.Cache.Put(block)
	a.Logger.Tracef("%s", block)
	return block, true
}

func (a *Analyzer) waitlist(m *cfa.Method) cpa.Waitlist {
	switch a.Config.Waitlist {
	case config.WaitlistBFS:
		return cpa.NewBreadthFirst()
	case config.WaitlistTopological:
		ranks, ok := a.ranks[m.Signature]
		if !ok {
			ranks = graphutil.MethodRanks(m)
			a.ranks[m.Signature] = ranks
		}
		return cpa.NewTopological(func(s cpa.AbstractState) int { return ranks[cpa.NodeOf(s)] })
	default:
		return cpa.NewDepthFirst()
	}
}

// callAllowed returns true if the call stack bound allows analyzing one more callee
func (a *Analyzer) callAllowed() bool {
	maxDepth := a.Config.MaxCallStackDepth
	return maxDepth < 0 || len(a.stack) <= maxDepth
}

// budget is the abort operator shared by all the fixpoint computations of a run: the evaluations are counted across
// computations, and once a limit is hit every computation of the run aborts
type budget struct {
	limits      cpa.AnyAbort
	evaluations int
	exhausted   bool
}

func newBudget(ctx context.Context, cfg *config.Config) *budget {
	b := &budget{}
	if cfg.MaxEvaluations > 0 {
		b.limits = append(b.limits, cpa.CountAbort(cfg.MaxEvaluations))
	}
	if d := cfg.TimeoutDuration(); d > 0 {
		b.limits = append(b.limits, cpa.DeadlineAbort(time.Now().Add(d)))
	}
	if ctx != nil {
		b.limits = append(b.limits, cpa.ContextAbort{Ctx: ctx})
	}
	return b
}

// Abort implements cpa.AbortOperator
func (b *budget) Abort(int) bool {
	if !b.exhausted && b.limits.Abort(b.evaluations) {
		b.exhausted = true
	}
	b.evaluations++
	return b.exhausted
}
