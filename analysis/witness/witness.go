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

// Package witness reconstructs the witness traces of the endpoints of a taint analysis. A backward analysis walks the
// blocks cached by the forward analysis, from the sensitive location of an endpoint to the calls to the sources that
// produced its taint. The blocks are never modified: the traces stay valid when the taint analysis runs again.
package witness

import (
	"context"
	"fmt"
	"strings"

	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
	"github.com/awslabs/ar-jvm-tools/analysis/cpa"
	"github.com/awslabs/ar-jvm-tools/analysis/lattice"
	"github.com/awslabs/ar-jvm-tools/analysis/taint"
	"github.com/awslabs/ar-jvm-tools/internal/formatutil"
	"golang.org/x/tools/container/intsets"
)

// Trace is a path of memory locations from the result of a call to a source to the sensitive location of an
// endpoint.
//
// The first step of the trace is the origin of the taint, the last one is the endpoint.
type Trace struct {
	Endpoint taint.Endpoint

	// Source is the call to the source the taint comes from
	Source *cfa.Call

	// Labels are the labels of the sources at the origin
	Labels taint.Set

	Steps []Key
}

func (t Trace) String() string {
	if len(t.Steps) == 0 {
		return "<empty trace>"
	}
	b := &strings.Builder{}
	fmt.Fprintf(b, "%s from %s %s:\n", formatutil.Bold("Trace"), t.Source.Target, t.Labels)
	for i, step := range t.Steps {
		fmt.Fprintf(b, "\t%s %s", step.At, step.Memory)
		if i < len(t.Steps)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Key returns a unique key of the trace
func (t Trace) Key() string {
	keys := make([]string, 0, len(t.Steps)+1)
	keys = append(keys, t.Source.Site.String())
	for _, step := range t.Steps {
		keys = append(keys, step.String())
	}
	return strings.Join(keys, "_")
}

// Lines returns the steps of the trace as strings, origin first
func (t Trace) Lines() []string {
	res := []string{fmt.Sprintf("%s returns %s", t.Source, t.Labels)}
	for _, step := range t.Steps {
		res = append(res, fmt.Sprintf("%s %s", step.At, step.Memory))
	}
	return res
}

// Options of the reconstruction
type Options struct {
	// Threshold are the labels the traces follow. An empty threshold follows the labels of each endpoint.
	Threshold taint.Set

	// MaxTraces bounds the number of traces of each endpoint. If MaxTraces <= 0, the max-alarms option of the
	// config of the run applies.
	MaxTraces int

	// MaxEvaluations bounds the number of states of the backward analysis of each endpoint. If MaxEvaluations <= 0,
	// it is not bounded.
	MaxEvaluations int
}

// Reconstruct returns the traces of the endpoints of the run. The run must have been analyzed.
func Reconstruct(ctx context.Context, run *taint.Run, endpoints []taint.Endpoint, opts Options) ([]Trace, error) {
	if run.Block == nil {
		return nil, fmt.Errorf("witness: %s has not been analyzed", run.Entry)
	}
	limit := opts.MaxTraces
	if limit <= 0 {
		limit = run.Config.MaxAlarms
	}
	var abort cpa.AnyAbort
	abort = append(abort, cpa.ContextAbort{Ctx: ctx})
	if opts.MaxEvaluations > 0 {
		abort = append(abort, cpa.CountAbort(opts.MaxEvaluations))
	}

	var traces []Trace
	for _, e := range endpoints {
		threshold := opts.Threshold
		if threshold.IsEmpty() {
			threshold = e.Sources
		}
		t := &TransferRelation{Program: run.Program, Cache: run.Cache(), Rules: run.Rules, Threshold: threshold}
		init := t.newState(location{node: e.Node, memory: e.Location, block: e.Block}, lattice.Set[Key]{})
		if init == nil {
			run.Logger.Debugf("no taint above the threshold at %s", e)
			continue
		}
		alg := &cpa.Algorithm{
			Transfer: t,
			Merge:    cpa.MergeJoin{},
			Stop:     cpa.StopSep{},
			Abort:    abort,
			Logger:   run.Logger,
		}
		reached, status := alg.RunFrom(cpa.NewBreadthFirst(), init)
		if err := ctx.Err(); err != nil {
			return traces, fmt.Errorf("witness: %w", err)
		}
		if !status.Complete {
			run.Logger.Warnf("reconstruction of the traces of %s aborted, traces are partial", e)
		}
		found := extract(reached, init.Key, e, limit)
		run.Logger.Debugf("%d traces for %s (%s)", len(found), e, status)
		traces = append(traces, found...)
	}
	return traces, nil
}

// extract returns the traces from the origins of the reached set to the endpoint. Each origin has at most one
// trace: its shortest path to the endpoint.
func extract(reached cpa.ReachedView, target Key, e taint.Endpoint, limit int) []Trace {
	states := map[Key]*State{}
	ids := map[Key]int{}
	var keys []Key
	for _, s := range reached.All() {
		ws := s.(*State)
		if old, ok := states[ws.Key]; ok {
			states[ws.Key] = old.Join(ws).(*State)
			continue
		}
		states[ws.Key] = ws
		ids[ws.Key] = len(keys)
		keys = append(keys, ws.Key)
	}

	var traces []Trace
	seen := map[string]bool{}
	for _, k := range keys {
		origin := states[k]
		if !origin.IsOrigin() {
			continue
		}
		path := shortestPath(states, ids, k, target)
		if path == nil {
			continue
		}
		t := Trace{Endpoint: e, Source: origin.Source, Labels: origin.Origin, Steps: path}
		if seen[t.Key()] {
			continue
		}
		seen[t.Key()] = true
		traces = append(traces, t)
		if limit > 0 && len(traces) >= limit {
			break
		}
	}
	return traces
}

// shortestPath returns the keys of a shortest path from the origin to the target following the forward pointers of
// the states, or nil if there is none
func shortestPath(states map[Key]*State, ids map[Key]int, origin Key, target Key) []Key {
	visited := &intsets.Sparse{}
	visited.Insert(ids[origin])
	parent := map[Key]Key{}
	queue := []Key{origin}
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		if k == target {
			var path []Key
			for ; k != origin; k = parent[k] {
				path = append(path, k)
			}
			path = append(path, origin)
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return path
		}
		s, ok := states[k]
		if !ok {
			continue
		}
		for _, next := range s.Next.Sorted() {
			id, ok := ids[next]
			if !ok || !visited.Insert(id) {
				continue
			}
			parent[next] = k
			queue = append(queue, next)
		}
	}
	return nil
}
