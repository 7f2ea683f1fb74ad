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

package witness

import (
	"fmt"

	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
	"github.com/awslabs/ar-jvm-tools/analysis/cpa"
	"github.com/awslabs/ar-jvm-tools/analysis/lattice"
	"github.com/awslabs/ar-jvm-tools/analysis/memloc"
	"github.com/awslabs/ar-jvm-tools/analysis/taint"
)

// A Key identifies a memory location at a node of a block. Keys are comparable.
type Key struct {
	At     cfa.Location
	Memory memloc.Location
	Block  int
}

func (k Key) String() string {
	return fmt.Sprintf("%s %s (block #%d)", k.At, k.Memory, k.Block)
}

// State is a state of the backward analysis: the value at a memory location in the states of a block at a node
// flows to the endpoint the analysis starts from.
type State struct {
	Key

	node *cfa.Node

	// Sources is the taint of the location in the forward states
	Sources taint.Set

	// Origin holds the labels of the source calls producing the value at the location. States with an origin are
	// where traces start.
	Origin taint.Set

	// Source is a call to a source producing the value, if Origin is not empty
	Source *cfa.Call

	// Next are the keys of the states the value flows to, in the direction of the endpoint
	Next lattice.Set[Key]
}

// Node implements cpa.LocationDependent
func (s *State) Node() *cfa.Node {
	return s.node
}

// SetNode implements cpa.LocationDependent
func (s *State) SetNode(n *cfa.Node) {
	s.node = n
	s.At = n.Location
}

// PartitionKey implements cpa.Partitioned: states are merged per memory location and block
func (s *State) PartitionKey() any {
	return s.Key
}

// IsOrigin returns true if the value at the location is produced by a source call
func (s *State) IsOrigin() bool {
	return !s.Origin.IsEmpty()
}

func (s *State) same(op string, other cpa.AbstractState) *State {
	o := lattice.Cast[*State](op, other)
	if o.Key != s.Key {
		panic(fmt.Sprintf("witness %s: states of %s and %s", op, s.Key, o.Key))
	}
	return o
}

// Join merges the sets of the states
func (s *State) Join(other cpa.AbstractState) cpa.AbstractState {
	o := s.same("join", other)
	res := &State{
		Key:     s.Key,
		node:    s.node,
		Sources: s.Sources.Join(o.Sources),
		Origin:  s.Origin.Join(o.Origin),
		Source:  s.Source,
		Next:    s.Next.Join(o.Next),
	}
	if res.Source == nil {
		res.Source = o.Source
	}
	return res
}

// LessOrEqual implements cpa.AbstractState
func (s *State) LessOrEqual(other cpa.AbstractState) bool {
	o := s.same("compare", other)
	return s.Sources.LessOrEqual(o.Sources) && s.Origin.LessOrEqual(o.Origin) && s.Next.LessOrEqual(o.Next)
}

// Equal implements cpa.AbstractState
func (s *State) Equal(other cpa.AbstractState) bool {
	o, ok := other.(*State)
	return ok && o.Key == s.Key && s.Sources.Equal(o.Sources) && s.Origin.Equal(o.Origin) && s.Next.Equal(o.Next)
}

// Copy implements cpa.AbstractState
func (s *State) Copy() cpa.AbstractState {
	c := *s
	return &c
}

func (s *State) String() string {
	if s.IsOrigin() {
		return fmt.Sprintf("%s %s <- %s", s.Key, s.Sources, s.Source.Target)
	}
	return fmt.Sprintf("%s %s", s.Key, s.Sources)
}
