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

package jvm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/awslabs/ar-jvm-tools/analysis/lattice"
)

// Frame holds the local variables and the operand stack of a method activation. Locals are indexed by JVM slot;
// unset locals are bottom. The stack grows to the right: the top is the last element.
type Frame[V lattice.Value[V]] struct {
	locals map[int]V
	stack  []V
}

// NewFrame returns a frame with no locals and an empty stack
func NewFrame[V lattice.Value[V]]() *Frame[V] {
	return &Frame[V]{locals: map[int]V{}}
}

// Height returns the number of entries of the operand stack
func (f *Frame[V]) Height() int {
	return len(f.stack)
}

// Push pushes v on the operand stack
func (f *Frame[V]) Push(v V) {
	f.stack = append(f.stack, v)
}

// Pop removes the top of the operand stack and returns it. It panics on an empty stack: verified bytecode never
// pops more than it pushed.
func (f *Frame[V]) Pop() V {
	if len(f.stack) == 0 {
		panic(fmt.Errorf("pop on an empty operand stack"))
	}
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v
}

// PopN removes the top n entries of the operand stack
func (f *Frame[V]) PopN(n int) {
	if n > len(f.stack) {
		panic(fmt.Errorf("pop of %d entries on an operand stack of height %d", n, len(f.stack)))
	}
	f.stack = f.stack[:len(f.stack)-n]
}

// Peek returns the entry at depth from the top of the stack (0 is the top)
func (f *Frame[V]) Peek(depth int) V {
	if depth < 0 || depth >= len(f.stack) {
		panic(fmt.Errorf("peek at depth %d on an operand stack of height %d", depth, len(f.stack)))
	}
	return f.stack[len(f.stack)-1-depth]
}

// Stack returns a copy of the operand stack, bottom first
func (f *Frame[V]) Stack() []V {
	res := make([]V, len(f.stack))
	copy(res, f.stack)
	return res
}

// Local returns the value of the local variable, if it is set
func (f *Frame[V]) Local(index int) (V, bool) {
	v, ok := f.locals[index]
	return v, ok
}

// SetLocal sets the value of the local variable
func (f *Frame[V]) SetLocal(index int, v V) {
	f.locals[index] = v
}

// ClearLocal unsets the local variable
func (f *Frame[V]) ClearLocal(index int) {
	delete(f.locals, index)
}

// Locals returns the indexes of the set locals, sorted
func (f *Frame[V]) Locals() []int {
	res := make([]int, 0, len(f.locals))
	for i := range f.locals {
		res = append(res, i)
	}
	sort.Ints(res)
	return res
}

// Replace replaces every local and stack entry matching old by v. It returns the number of entries replaced.
func (f *Frame[V]) Replace(old func(V) bool, v V) int {
	n := 0
	for i, x := range f.locals {
		if old(x) {
			f.locals[i] = v
			n++
		}
	}
	for i, x := range f.stack {
		if old(x) {
			f.stack[i] = v
			n++
		}
	}
	return n
}

// Copy returns an independent copy of the frame
func (f *Frame[V]) Copy() *Frame[V] {
	res := &Frame[V]{locals: make(map[int]V, len(f.locals)), stack: f.Stack()}
	for i, v := range f.locals {
		res.locals[i] = v
	}
	return res
}

// Join returns the join of two frames at the same location. Frames at the same location always have the same stack
// height in verified bytecode; Join panics otherwise.
func (f *Frame[V]) Join(other *Frame[V]) *Frame[V] {
	if len(f.stack) != len(other.stack) {
		panic(lattice.IncompatibleStateKindError{
			Operation: "frame join",
			Want:      fmt.Sprintf("stack of height %d", len(f.stack)),
			Got:       fmt.Sprintf("stack of height %d", len(other.stack)),
		})
	}
	res := f.Copy()
	for i, v := range other.stack {
		res.stack[i] = res.stack[i].Join(v)
	}
	for i, v := range other.locals {
		if mine, ok := res.locals[i]; ok {
			res.locals[i] = mine.Join(v)
		} else {
			res.locals[i] = v
		}
	}
	return res
}

// LessOrEqual returns true if every entry of f is below the corresponding entry of other
func (f *Frame[V]) LessOrEqual(other *Frame[V]) bool {
	if len(f.stack) != len(other.stack) {
		return false
	}
	for i, v := range f.stack {
		if !v.LessOrEqual(other.stack[i]) {
			return false
		}
	}
	for i, v := range f.locals {
		ov, ok := other.locals[i]
		if !ok || !v.LessOrEqual(ov) {
			return false
		}
	}
	return true
}

// Equal returns true if both frames hold equal values
func (f *Frame[V]) Equal(other *Frame[V]) bool {
	if len(f.stack) != len(other.stack) || len(f.locals) != len(other.locals) {
		return false
	}
	for i, v := range f.stack {
		if !v.Equal(other.stack[i]) {
			return false
		}
	}
	for i, v := range f.locals {
		ov, ok := other.locals[i]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

func (f *Frame[V]) String() string {
	locals := make([]string, 0, len(f.locals))
	for _, i := range f.Locals() {
		locals = append(locals, fmt.Sprintf("%d: %s", i, f.locals[i]))
	}
	stack := make([]string, 0, len(f.stack))
	for _, v := range f.stack {
		stack = append(stack, v.String())
	}
	return fmt.Sprintf("locals {%s} stack [%s]", strings.Join(locals, ", "), strings.Join(stack, ", "))
}
