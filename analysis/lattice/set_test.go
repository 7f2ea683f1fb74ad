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

package lattice

import (
	"errors"
	"testing"
)

func sets() []Set[string] {
	return []Set[string]{
		NewSet[string](),
		NewSet("a"),
		NewSet("b"),
		NewSet("a", "b"),
		NewSet("a", "b", "c"),
		NewSet("c"),
	}
}

func TestSetJoinLeastUpperBound(t *testing.T) {
	all := sets()
	for _, x := range all {
		for _, y := range all {
			for _, z := range all {
				lhs := x.Join(y).LessOrEqual(z)
				rhs := x.LessOrEqual(z) && y.LessOrEqual(z)
				if lhs != rhs {
					t.Errorf("join law violated for %s, %s, %s", x, y, z)
				}
			}
		}
	}
}

func TestSetJoinIdempotentAndCommutative(t *testing.T) {
	all := sets()
	for _, x := range all {
		if !x.Join(x).Equal(x) {
			t.Errorf("%s join %s should be %s", x, x, x)
		}
		for _, y := range all {
			if !x.Join(y).Equal(y.Join(x)) {
				t.Errorf("join of %s and %s is not commutative", x, y)
			}
		}
	}
}

func TestSetImmutable(t *testing.T) {
	a := NewSet("a")
	b := a.Add("b")
	if a.Contains("b") {
		t.Errorf("Add should not modify the receiver")
	}
	if !b.Contains("a") || !b.Contains("b") {
		t.Errorf("expected {a, b}, got %s", b)
	}
	c := b.Remove("a")
	if !b.Contains("a") || c.Contains("a") {
		t.Errorf("Remove should return a new set without the element")
	}
}

func TestSetString(t *testing.T) {
	s := NewSet("c", "a", "b")
	if s.String() != "{a, b, c}" {
		t.Errorf("expected sorted string, got %q", s.String())
	}
	if (Set[int]{}).String() != "{}" {
		t.Errorf("empty set should print as {}")
	}
}

func TestCastPanicsOnMismatch(t *testing.T) {
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok {
			t.Fatalf("expected a panic with an error, got %v", r)
		}
		var kindErr IncompatibleStateKindError
		if !errors.As(err, &kindErr) {
			t.Fatalf("expected IncompatibleStateKindError, got %T", err)
		}
		if kindErr.Operation != "test" {
			t.Errorf("unexpected operation %q", kindErr.Operation)
		}
	}()
	var x any = NewSet(1)
	_ = Cast[Set[string]]("test", x)
}

func TestStrictlyAbove(t *testing.T) {
	if StrictlyAbove(NewSet("a"), NewSet("a", "b")) {
		t.Errorf("{a} is below {a, b}")
	}
	if !StrictlyAbove(NewSet("c"), NewSet("a", "b")) {
		t.Errorf("{c} is not below {a, b}")
	}
	if !JoinAll(NewSet[string](), NewSet("a"), NewSet("b")).Equal(NewSet("a", "b")) {
		t.Errorf("JoinAll should compute the union")
	}
}
