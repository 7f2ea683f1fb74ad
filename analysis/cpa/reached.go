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

package cpa

// ReachedView is a read-only view of a reached set
type ReachedView interface {
	// All returns the states of the reached set, partition by partition in the order the partitions were created
	All() []AbstractState

	// Partition returns the states with the partition key
	Partition(key any) []AbstractState

	// Keys returns the partition keys in creation order
	Keys() []any

	Len() int
}

// ReachedSet is the set of states reached by the algorithm, indexed by partition key
type ReachedSet struct {
	partitions map[any][]AbstractState
	keys       []any
	size       int
}

// NewReachedSet returns an empty reached set
func NewReachedSet() *ReachedSet {
	return &ReachedSet{partitions: map[any][]AbstractState{}}
}

// Add adds the state to its partition
func (r *ReachedSet) Add(s AbstractState) {
	key := PartitionKey(s)
	p, ok := r.partitions[key]
	if !ok {
		r.keys = append(r.keys, key)
	}
	r.partitions[key] = append(p, s)
	r.size++
}

// Replace replaces old by s in the partition of old. s must have the same partition key as old.
// Returns false if old is not in the reached set.
func (r *ReachedSet) Replace(old AbstractState, s AbstractState) bool {
	key := PartitionKey(old)
	p := r.partitions[key]
	for i, x := range p {
		if x == old {
			p[i] = s
			return true
		}
	}
	return false
}

// Contains returns true if the state itself (not an equal state) is in the reached set
func (r *ReachedSet) Contains(s AbstractState) bool {
	for _, x := range r.partitions[PartitionKey(s)] {
		if x == s {
			return true
		}
	}
	return false
}

// Candidates returns the states of the partition of s
func (r *ReachedSet) Candidates(s AbstractState) []AbstractState {
	return r.partitions[PartitionKey(s)]
}

// Partition implements ReachedView
func (r *ReachedSet) Partition(key any) []AbstractState {
	return r.partitions[key]
}

// Keys implements ReachedView
func (r *ReachedSet) Keys() []any {
	return r.keys
}

// All implements ReachedView
func (r *ReachedSet) All() []AbstractState {
	res := make([]AbstractState, 0, r.size)
	for _, k := range r.keys {
		res = append(res, r.partitions[k]...)
	}
	return res
}

// Len implements ReachedView
func (r *ReachedSet) Len() int {
	return r.size
}
