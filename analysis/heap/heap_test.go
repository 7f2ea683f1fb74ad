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

package heap

import (
	"testing"

	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
	"github.com/awslabs/ar-jvm-tools/analysis/lattice"
	"github.com/awslabs/ar-jvm-tools/analysis/memloc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMethod = cfa.MustParseSignature("A.f()V")

func at(offset int) cfa.Location {
	return cfa.Location{Method: testMethod, Offset: offset}
}

func ref(offset int, site string) memloc.Reference {
	return memloc.Reference{Creation: at(offset), Site: site}
}

func fabricateRefs(owner memloc.Reference, field string) memloc.RefSet {
	switch field {
	case ArrayField:
		return memloc.Refs(memloc.ArrayReference(owner))
	case ObjectField:
		return memloc.RefSet{}
	}
	return memloc.Refs(memloc.FieldReference(owner, field))
}

func identity(v memloc.RefSet) memloc.RefSet { return v }

func newRefTree() *Tree[memloc.RefSet] {
	return NewTree[memloc.RefSet](fabricateRefs, identity)
}

func addr(loc cfa.Location, refs ...memloc.Reference) Addr[memloc.RefSet] {
	s := memloc.Refs(refs...)
	return Addr[memloc.RefSet]{Value: s, Refs: s, At: loc}
}

func TestTreeFabricatesOnFirstRead(t *testing.T) {
	h := newRefTree()
	a := ref(0, "local[0]")
	first := h.GetField(addr(at(4), a), "next", memloc.RefSet{})
	require.Equal(t, 1, first.Len())
	assert.Equal(t, memloc.FieldReference(a, "next"), first.Elements()[0])

	// a second read at another location sees the recorded value
	second := h.GetField(addr(at(9), a), "next", memloc.RefSet{})
	assert.True(t, first.Equal(second))

	n := h.Node(a)
	require.NotNil(t, n)
	v, ok := n.Field("next")
	require.True(t, ok)
	assert.True(t, v.Equal(first))
}

func TestTreeNullReadsReturnDefault(t *testing.T) {
	h := newRefTree()
	def := memloc.Refs(ref(1, "default"))
	got := h.GetField(addr(at(2), memloc.NullReference), "f", def)
	assert.True(t, got.Equal(def))
	assert.Equal(t, 0, h.Keys().Len())
}

func TestTreeStrongAndWeakUpdates(t *testing.T) {
	a, b := ref(0, "a"), ref(1, "b")
	x, y := ref(2, "x"), ref(3, "y")

	h := newRefTree()
	h.SetField(addr(at(5), a), "f", memloc.Refs(x))
	h.SetField(addr(at(6), a), "f", memloc.Refs(y))
	got := h.GetField(addr(at(7), a), "f", memloc.RefSet{})
	assert.True(t, got.Equal(memloc.Refs(y)), "singleton writes are strong, got %s", got)

	h.SetField(addr(at(8), a, b), "f", memloc.Refs(x))
	assert.True(t, h.GetField(addr(at(9), a), "f", memloc.RefSet{}).Equal(memloc.Refs(x, y)))

	// b had no value: the weak update joins with the fabricated value of the slot
	gotB := h.GetField(addr(at(9), b), "f", memloc.RefSet{})
	assert.True(t, gotB.Contains(x))
	assert.Equal(t, 2, gotB.Len())

	// the null marker does not make a write ambiguous
	h.SetField(addr(at(10), a, memloc.NullReference), "g", memloc.Refs(x))
	h.SetField(addr(at(11), a, memloc.NullReference), "g", memloc.Refs(y))
	assert.True(t, h.GetField(addr(at(12), a), "g", memloc.RefSet{}).Equal(memloc.Refs(y)))
}

func TestTreeArrayCellsAreWeak(t *testing.T) {
	arr := ref(0, "array")
	x, y := ref(2, "x"), ref(3, "y")
	h := newRefTree()
	h.NewArray(addr(at(0), arr), memloc.Refs(memloc.NullReference))
	h.SetArrayElement(addr(at(1), arr), memloc.Refs(x))
	h.SetArrayElement(addr(at(2), arr), memloc.Refs(y))
	got := h.GetArrayElement(addr(at(3), arr), memloc.RefSet{})
	assert.True(t, got.Equal(memloc.Refs(memloc.NullReference, x, y)), "got %s", got)
}

func TestTreeReduceIsDownwardReachability(t *testing.T) {
	a, b, c, d := ref(0, "a"), ref(1, "b"), ref(2, "c"), ref(3, "d")
	h := newRefTree()
	h.SetField(addr(at(4), a), "f", memloc.Refs(b))
	h.SetField(addr(at(5), b), "g", memloc.Refs(c))
	// d points to a, but is not reachable from a
	h.SetField(addr(at(6), d), "h", memloc.Refs(a))

	reduced := h.Reduce(memloc.Refs(a, memloc.NullReference))
	assert.True(t, reduced.Keys().Equal(memloc.Refs(a, b)), "got %s", reduced.Keys())
	assert.True(t, reduced.Reduce(memloc.Refs(a)).Equal(reduced), "reduce is idempotent")
	assert.Equal(t, 3, h.Keys().Len(), "reduce does not modify the receiver")
}

func TestTreeExpandReattachesCallerNodes(t *testing.T) {
	a, d := ref(0, "a"), ref(3, "d")
	x, y := ref(5, "x"), ref(6, "y")
	caller := newRefTree()
	caller.SetField(addr(at(1), a), "f", memloc.Refs(x))
	caller.SetField(addr(at(2), d), "f", memloc.Refs(x))

	callee := lattice.Cast[*Tree[memloc.RefSet]]("test", caller.Reduce(memloc.Refs(a)))
	callee.SetField(addr(at(3), a), "f", memloc.Refs(y))

	expanded := caller.Expand(callee)
	assert.True(t, expanded.GetField(addr(at(4), a), "f", memloc.RefSet{}).Equal(memloc.Refs(y)))
	assert.True(t, expanded.GetField(addr(at(4), d), "f", memloc.RefSet{}).Equal(memloc.Refs(x)))
}

func TestTreeLatticeOperations(t *testing.T) {
	a, x, y := ref(0, "a"), ref(1, "x"), ref(2, "y")
	h1 := newRefTree()
	h1.SetField(addr(at(1), a), "f", memloc.Refs(x))
	h2 := newRefTree()
	h2.SetField(addr(at(1), a), "f", memloc.Refs(y))

	j := h1.Join(h2)
	assert.True(t, h1.LessOrEqual(j))
	assert.True(t, h2.LessOrEqual(j))
	assert.False(t, j.LessOrEqual(h1))
	assert.True(t, j.Equal(h2.Join(h1)))
	assert.True(t, j.Join(j).Equal(j))

	c := h1.Copy()
	h1.SetField(addr(at(2), a), "f", memloc.Refs(y))
	assert.False(t, c.Equal(h1), "copies are independent")
}

func TestTreeJoinWithUnseenSlot(t *testing.T) {
	a, b := ref(0, "a"), ref(1, "b")
	fabricated := memloc.Refs(memloc.FieldReference(a, "f"))

	written := newRefTree()
	written.NewObject(addr(at(1), a))
	written.SetField(addr(at(2), a), "f", memloc.Refs(b))
	untouched := newRefTree()

	for _, j := range []Heap[memloc.RefSet]{written.Join(untouched), untouched.Join(written)} {
		got := j.GetField(addr(at(3), a), "f", memloc.RefSet{})
		assert.True(t, got.Equal(fabricated.Join(memloc.Refs(b))), "the unwritten branch reads the fabricated "+
			"reference, got %s", got)
		assert.True(t, written.LessOrEqual(j))
		assert.True(t, untouched.LessOrEqual(j))
	}
	assert.False(t, written.LessOrEqual(untouched), "the unseen slot holds the fabricated reference only")
	assert.False(t, untouched.LessOrEqual(written))

	// reading an unseen slot does not change the meaning of the heap
	read := newRefTree()
	read.GetField(addr(at(4), a), "f", memloc.RefSet{})
	assert.True(t, read.Equal(untouched))
	assert.True(t, untouched.Equal(read))
	assert.True(t, read.LessOrEqual(untouched) && untouched.LessOrEqual(read))
}

func TestFollowerJoinWithUnseenSlot(t *testing.T) {
	a := ref(0, "a")
	written := NewFollower[labels]()
	written.SetField(labelAddr(at(1), a), "f", lattice.NewSet("src"))
	untouched := NewFollower[labels]()

	j := untouched.Join(written)
	def := lattice.NewSet("def")
	assert.True(t, j.GetField(labelAddr(at(2), a), "f", def).Equal(lattice.NewSet("def", "src")),
		"follower reads always include the default")
	assert.True(t, untouched.LessOrEqual(j))
	assert.False(t, j.LessOrEqual(untouched))
}

func TestHeapsDoNotMix(t *testing.T) {
	assert.Panics(t, func() {
		newRefTree().Join(NewFollower[memloc.RefSet]())
	})
	assert.Panics(t, func() {
		NewShallow[memloc.RefSet]().Equal(newRefTree())
	})
}

type labels = lattice.Set[string]

func labelAddr(loc cfa.Location, refs ...memloc.Reference) Addr[labels] {
	return Addr[labels]{Refs: memloc.Refs(refs...), At: loc}
}

func TestFollowerNeverFabricates(t *testing.T) {
	a := ref(0, "a")
	f := NewFollower[labels]()
	def := lattice.NewSet("def")
	assert.True(t, f.GetField(labelAddr(at(1), a), "f", def).Equal(def))
	assert.Equal(t, 0, f.Keys().Len())

	f.SetField(labelAddr(at(2), a), "f", lattice.NewSet("src"))
	assert.True(t, f.GetField(labelAddr(at(3), a), "f", labels{}).Equal(lattice.NewSet("src")))
	f.SetField(labelAddr(at(4), a), "f", lattice.NewSet("other"))
	assert.True(t, f.GetField(labelAddr(at(5), a), "f", labels{}).Equal(lattice.NewSet("other")))
}

func TestFollowerReduceKeepsPrincipalKeys(t *testing.T) {
	a, b, c := ref(0, "a"), ref(1, "b"), ref(2, "c")
	principal := newRefTree()
	principal.SetField(addr(at(1), a), "f", memloc.Refs(b))
	principal.SetField(addr(at(1), c), "f", memloc.Refs(b))

	follower := NewFollower[labels]()
	for _, r := range []memloc.Reference{a, b, c} {
		follower.SetField(labelAddr(at(2), r), "f", lattice.NewSet(r.Site))
	}
	keep := principal.Reduce(memloc.Refs(a)).Keys()
	reduced := follower.Reduce(keep)
	assert.True(t, reduced.Keys().Equal(memloc.Refs(a)), "got %s", reduced.Keys())
	assert.True(t, reduced.Reduce(keep).Equal(reduced))
}

func TestFollowerObjectValue(t *testing.T) {
	a := ref(0, "a")
	f := NewFollower[labels]()
	f.SetField(labelAddr(at(1), a), "x", lattice.NewSet("l1"))
	f.SetObjectValue(labelAddr(at(2), a), lattice.NewSet("l2"))
	got := f.ObjectValue(labelAddr(at(3), a), labels{})
	assert.True(t, got.Equal(lattice.NewSet("l1", "l2")), "got %s", got)
}

// tagged is a set of labels attached to an object identity
type tagged struct {
	id     string
	labels labels
}

func (t tagged) Join(o tagged) tagged {
	id := t.id
	if id != o.id {
		id = ""
	}
	return tagged{id: id, labels: t.labels.Join(o.labels)}
}

func (t tagged) LessOrEqual(o tagged) bool { return t.labels.LessOrEqual(o.labels) }
func (t tagged) Equal(o tagged) bool       { return t.id == o.id && t.labels.Equal(o.labels) }
func (t tagged) String() string            { return t.id + t.labels.String() }
func (t tagged) Identity() (any, bool)     { return t.id, t.id != "" }

func TestShallowUpdatesAreWeak(t *testing.T) {
	h := NewShallow[tagged]()
	obj := Addr[tagged]{Value: tagged{id: "o1"}}
	h.SetField(obj, "f", tagged{id: "o1", labels: lattice.NewSet("a")})
	h.SetField(obj, "g", tagged{id: "o1", labels: lattice.NewSet("b")})
	got := h.GetField(obj, "h", tagged{})
	assert.True(t, got.labels.Equal(lattice.NewSet("a", "b")), "got %s", got)
	assert.Equal(t, 1, h.Len())

	// no identity, no slot
	h.SetField(Addr[tagged]{}, "f", tagged{labels: lattice.NewSet("c")})
	assert.Equal(t, 1, h.Len())
}

func TestShallowPrefersReferences(t *testing.T) {
	a := ref(0, "a")
	h := NewShallow[tagged]()
	h.SetField(Addr[tagged]{Value: tagged{id: "o1"}, Refs: memloc.Refs(a)}, "f", tagged{labels: lattice.NewSet("a")})
	_, ok := h.Value("o1")
	assert.False(t, ok)
	v, ok := h.Value(a)
	require.True(t, ok)
	assert.True(t, v.labels.Contains("a"))
	assert.True(t, h.Keys().Equal(memloc.Refs(a)))
}

func TestShallowReduceExpand(t *testing.T) {
	caller := NewShallow[tagged]()
	o1 := Addr[tagged]{Value: tagged{id: "o1"}}
	o2 := Addr[tagged]{Value: tagged{id: "o2"}}
	caller.SetField(o1, "", tagged{id: "o1", labels: lattice.NewSet("a")})
	callee := caller.Reduce(memloc.RefSet{})
	assert.True(t, callee.Equal(caller))
	callee.SetField(o2, "", tagged{id: "o2", labels: lattice.NewSet("b")})
	assert.Equal(t, 1, caller.Len(), "reduce returns a copy")

	expanded := lattice.Cast[*Shallow[tagged]]("test", caller.Expand(callee))
	assert.Equal(t, 2, expanded.Len())
	assert.True(t, caller.LessOrEqual(expanded))
}
