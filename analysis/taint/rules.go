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
	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
	"github.com/awslabs/ar-jvm-tools/analysis/config"
	"github.com/awslabs/ar-jvm-tools/analysis/lattice"
	"github.com/awslabs/ar-jvm-tools/analysis/memloc"
	"github.com/awslabs/ar-jvm-tools/internal/funcutil"
)

// Label is the label of a taint source
type Label string

// Set is a set of source labels, the value of the taint domain
type Set = lattice.Set[Label]

// Labels returns the set of the labels
func Labels(labels ...Label) Set {
	return lattice.NewSet(labels...)
}

// A Source is a method whose calls introduce taint
type Source struct {
	config.CodeIdentifier

	Label Label

	TaintsReturn  bool
	TaintsThis    bool
	TaintsArgs    bool
	TaintsGlobals bool

	// Condition restricts the calls that are sources. A nil condition accepts every call.
	Condition func(call *cfa.Call) bool
}

// Matches returns true if the call is a call to the source
func (s Source) Matches(call *cfa.Call) bool {
	t := call.Target
	return s.MatchMethod(t.Class, t.Name, t.Descriptor) && (s.Condition == nil || s.Condition(call))
}

// A Sink is a method whose sensitive operands must not be tainted
type Sink struct {
	config.CodeIdentifier

	// Instance is true when the receiver is sensitive
	Instance bool

	// Args are the indices of the sensitive arguments, the receiver excluded
	Args []int

	// Globals is true when the static fields are sensitive at calls to the sink
	Globals bool

	// Valid returns true for the labels of the sources the sink is concerned with. A nil predicate accepts all
	// labels.
	Valid func(Label) bool
}

// Matches returns true if the method is the sink
func (s Sink) Matches(sig cfa.Signature) bool {
	return s.MatchMethod(sig.Class, sig.Name, sig.Descriptor)
}

// Filter returns the labels of the set the sink is concerned with
func (s Sink) Filter(labels Set) Set {
	if s.Valid == nil {
		return labels
	}
	return labels.Filter(s.Valid)
}

// StackLocations returns the sensitive operands of a call to the sink, as locations of the operand stack of the state
// at the call site
func (s Sink) StackLocations(call *cfa.Call) []memloc.Location {
	n := call.ArgCount()
	first := 0
	if !call.Static {
		first = 1
	}
	depth := func(i int) memloc.Location { return memloc.StackLocation(n - 1 - i) }
	var res []memloc.Location
	if s.Instance && !call.Static {
		res = append(res, depth(0))
	}
	if len(s.Args) == 0 && !s.Instance && !s.Globals {
		for i := first; i < n; i++ {
			res = append(res, depth(i))
		}
		return res
	}
	for _, a := range s.Args {
		if i := first + a; a >= 0 && i < n {
			res = append(res, depth(i))
		}
	}
	return res
}

// Rules are the sources, sinks and sanitizers of a taint problem
type Rules struct {
	Sources    []Source
	Sinks      []Sink
	Sanitizers []config.CodeIdentifier
}

// NewRules returns the rules of the taint specifications. The label of a source is the label of its identifier,
// or the identifier itself when it has none. A source with a context only matches the calls made from the methods
// matching the context.
func NewRules(specs ...config.TaintSpec) *Rules {
	r := &Rules{}
	for _, spec := range specs {
		for _, src := range spec.Sources {
			label := Label(src.Label)
			if label == "" {
				label = Label(src.CodeIdentifier.String())
			}
			s := Source{
				CodeIdentifier: src.CodeIdentifier,
				Label:          label,
				TaintsReturn:   src.TaintsTarget(config.TaintReturn),
				TaintsThis:     src.TaintsTarget(config.TaintThis),
				TaintsArgs:     src.TaintsTarget(config.TaintArgs),
				TaintsGlobals:  src.TaintsTarget(config.TaintGlobals),
			}
			if src.Context != "" {
				src := src
				s.Condition = func(call *cfa.Call) bool {
					return src.MatchContext(call.Site.Method.Class, call.Site.Method.Name)
				}
			}
			r.Sources = append(r.Sources, s)
		}
		for _, sink := range spec.Sinks {
			s := Sink{CodeIdentifier: sink.CodeIdentifier, Instance: sink.Instance, Args: sink.Args,
				Globals: sink.Globals}
			if len(sink.Labels) > 0 {
				valid := funcutil.Set(funcutil.Map(sink.Labels, func(l string) Label { return Label(l) }))
				s.Valid = func(l Label) bool { return valid[l] }
			}
			r.Sinks = append(r.Sinks, s)
		}
		r.Sanitizers = append(r.Sanitizers, spec.Sanitizers...)
	}
	return r
}

// SourcesOf returns the sources the call is a call to
func (r *Rules) SourcesOf(call *cfa.Call) []Source {
	return funcutil.Filter(r.Sources, func(s Source) bool { return s.Matches(call) })
}

// SinksOf returns the sinks the method is
func (r *Rules) SinksOf(sig cfa.Signature) []*Sink {
	var res []*Sink
	for i := range r.Sinks {
		if r.Sinks[i].Matches(sig) {
			res = append(res, &r.Sinks[i])
		}
	}
	return res
}

// Sanitizes returns true if the results of calls to the method are never tainted
func (r *Rules) Sanitizes(sig cfa.Signature) bool {
	return config.ExistsCid(r.Sanitizers, func(cid config.CodeIdentifier) bool {
		return cid.MatchMethod(sig.Class, sig.Name, sig.Descriptor)
	})
}
