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

// Package lattice defines the join-semilattice contract shared by all the abstract domains of the CPA engine, and a
// generic set lattice used by the reference and taint domains.
//
// An element of a lattice must satisfy, for all x, y and z:
//
//   - x.Join(y).LessOrEqual(z) iff x.LessOrEqual(z) && y.LessOrEqual(z)
//   - x.Join(x) equals x
//   - x.Join(y) equals y.Join(x)
//
// Values are treated as immutable: Join never modifies its receiver or its argument.
package lattice

import "fmt"

// Value is the constraint satisfied by the element types of the abstract domains.
type Value[V any] interface {
	// Join returns the least upper bound of the receiver and the argument
	Join(V) V

	// LessOrEqual returns true if the receiver is below the argument in the lattice order
	LessOrEqual(V) bool

	// Equal returns true when both elements are equal
	Equal(V) bool

	String() string
}

// IncompatibleStateKindError is raised (as a panic) when an operator receives a state or value of a different
// variant than the one it operates on. This is always a programming error: mixing domains is never coerced.
type IncompatibleStateKindError struct {
	// Operation is the name of the operation that failed
	Operation string
	// Want is the expected variant
	Want string
	// Got is the variant received
	Got string
}

func (e IncompatibleStateKindError) Error() string {
	return fmt.Sprintf("incompatible state kind in %s: expected %s, got %s", e.Operation, e.Want, e.Got)
}

// Cast converts x to T or panics with an IncompatibleStateKindError naming the operation op.
func Cast[T any](op string, x any) T {
	t, ok := x.(T)
	if !ok {
		var zero T
		panic(IncompatibleStateKindError{
			Operation: op,
			Want:      fmt.Sprintf("%T", zero),
			Got:       fmt.Sprintf("%T", x),
		})
	}
	return t
}

// JoinAll joins all the values in xs, starting from bottom.
func JoinAll[V Value[V]](bottom V, xs ...V) V {
	res := bottom
	for _, x := range xs {
		res = res.Join(x)
	}
	return res
}

// StrictlyAbove returns true when v is not below the threshold, i.e. v carries some information that the threshold
// does not.
func StrictlyAbove[V Value[V]](v V, threshold V) bool {
	return !v.LessOrEqual(threshold)
}
