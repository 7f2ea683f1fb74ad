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

// Package cpa implements the configurable program analysis algorithm: a worklist fixpoint computation
// parameterized by a transfer relation and by merge, stop and abort operators.
//
// States handled by the algorithm must be pointers (or other comparable values): the reached set tracks them by
// identity.
package cpa

import (
	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
)

// AbstractState is an element of a join semilattice. Operations on states of different concrete types panic with
// a lattice.IncompatibleStateKindError.
type AbstractState interface {
	// Join returns the least upper bound of the receiver and the argument. The receiver and the argument are not
	// modified.
	Join(AbstractState) AbstractState

	// LessOrEqual returns true if the receiver is below the argument
	LessOrEqual(AbstractState) bool

	// Equal returns true if both states are equal in the lattice
	Equal(AbstractState) bool

	// Copy returns a copy of the state. Modifying the copy never affects the receiver.
	Copy() AbstractState

	String() string
}

// LocationDependent states are attached to a node of the CFA
type LocationDependent interface {
	Node() *cfa.Node
	SetNode(*cfa.Node)
}

// Partitioned states provide the key under which the reached set indexes them. States of different partitions are
// never merged or compared by the stop operator.
type Partitioned interface {
	PartitionKey() any
}

// PartitionKey returns the partition key of the state: its own key if it is Partitioned, its location if it is
// location dependent, and nil otherwise.
func PartitionKey(s AbstractState) any {
	switch x := s.(type) {
	case Partitioned:
		return x.PartitionKey()
	case LocationDependent:
		if n := x.Node(); n != nil {
			return n.Location
		}
	}
	return nil
}

// NodeOf returns the node of the state, or nil if the state is not location dependent
func NodeOf(s AbstractState) *cfa.Node {
	if ld, ok := s.(LocationDependent); ok {
		return ld.Node()
	}
	return nil
}
