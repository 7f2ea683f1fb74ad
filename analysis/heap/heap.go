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

// Package heap implements the heap models of the JVM abstract states.
//
// The shallow model maps the identity of an object to a single value and ignores fields. The tree models map
// references to nodes holding one value per field. The principal tree owns the reference graph: it fabricates
// references for the slots it has never seen. A follower tree stores the values of another domain at the
// references computed by the principal. Followers never hold a pointer to the principal: every operation receives
// the references of the objects it accesses, and Reduce receives the key set of the reduced principal.
package heap

import (
	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
	"github.com/awslabs/ar-jvm-tools/analysis/lattice"
	"github.com/awslabs/ar-jvm-tools/analysis/memloc"
)

const (
	// ArrayField is the synthetic field holding the cells of arrays
	ArrayField = "[]"

	// ObjectField is the synthetic field holding the value attached to a whole object
	ObjectField = "*"
)

// Addr designates the objects accessed by a heap operation
type Addr[V any] struct {
	// Value is the value of the object operand in the domain of the heap
	Value V

	// Refs are the references of the object operand, computed by the principal
	Refs memloc.RefSet

	// At is the location of the instruction accessing the heap
	At cfa.Location
}

// Identifier is implemented by values that carry the identity of the object they denote
type Identifier interface {
	Identity() (any, bool)
}

// Heap is the contract shared by the heap models. Heaps are mutable: the transfer relation operates on copies.
type Heap[V lattice.Value[V]] interface {
	// GetField returns the value of the field of the objects, or def if the heap knows nothing about it
	GetField(obj Addr[V], field string, def V) V

	// SetField stores v in the field of the objects
	SetField(obj Addr[V], field string, v V)

	// GetArrayElement returns the value of the cells of the arrays, or def if the heap knows nothing about them
	GetArrayElement(arr Addr[V], def V) V

	// SetArrayElement stores v in the cells of the arrays. Array cells are always weakly updated.
	SetArrayElement(arr Addr[V], v V)

	// NewObject records the creation of an object
	NewObject(obj Addr[V])

	// NewArray records the creation of an array whose cells hold def
	NewArray(arr Addr[V], def V)

	// ObjectValue returns the join of the values stored in the objects, or def
	ObjectValue(obj Addr[V], def V) V

	// SetObjectValue attaches v to the objects as a whole
	SetObjectValue(obj Addr[V], v V)

	Join(Heap[V]) Heap[V]
	LessOrEqual(Heap[V]) bool
	Equal(Heap[V]) bool
	Copy() Heap[V]

	// Reduce returns the heap restricted to what a callee can access, given the set keep: the root references for
	// a principal, the key set of the reduced principal for a follower. Reduce is idempotent.
	Reduce(keep memloc.RefSet) Heap[V]

	// Expand returns the heap after a call, given the heap of the callee at its exit
	Expand(callee Heap[V]) Heap[V]

	// Keys returns the references the heap holds nodes for
	Keys() memloc.RefSet

	String() string
}

// nonNull returns the references of the address without the null marker
func nonNull[V any](a Addr[V]) []memloc.Reference {
	var res []memloc.Reference
	for _, r := range a.Refs.Elements() {
		if !r.IsNull() {
			res = append(res, r)
		}
	}
	return res
}
