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

// Package reference implements the reference analysis: the abstract value of a JVM value is the set of references
// of the objects it may point to.
//
// A reference is identified by the location where the object was created and the memory location where the
// reference was first seen. Objects created by new and newarray get the stack top as memory location. Objects the
// analysis cannot see being created (the results of calls that are not analyzed and the arguments of the entry
// method) get a reference that is created where they are first read. The unknown objects of static fields and of
// unknown fields of known objects get a reference that only depends on the field, and on the owner for fields.
package reference

import (
	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
	"github.com/awslabs/ar-jvm-tools/analysis/heap"
	"github.com/awslabs/ar-jvm-tools/analysis/jvm"
	"github.com/awslabs/ar-jvm-tools/analysis/memloc"
)

// Domain implements jvm.Domain for reference sets
type Domain struct{}

// Bottom returns the empty set
func (Domain) Bottom() memloc.RefSet {
	return memloc.RefSet{}
}

// Constant returns the null reference for aconst_null, a fresh reference for string and class constants and the empty
// set for numeric constants
func (Domain) Constant(step jvm.Step) memloc.RefSet {
	instr := step.Instruction()
	switch {
	case instr.Op == cfa.AConstNull:
		return memloc.Refs(memloc.NullReference)
	case instr.Op == cfa.Ldc && instr.Kind == cfa.Reference:
		return fresh(step.At(), memloc.StackSite(0))
	}
	return memloc.RefSet{}
}

// Operation returns the empty set: arithmetic never produces references
func (Domain) Operation(jvm.Step, []memloc.RefSet) memloc.RefSet {
	return memloc.RefSet{}
}

// NewObject returns a fresh reference
func (Domain) NewObject(step jvm.Step) memloc.RefSet {
	return fresh(step.At(), memloc.StackSite(0))
}

// NewArray returns a fresh reference for the array. The cells of arrays of objects are null.
func (Domain) NewArray(step jvm.Step, _ memloc.RefSet) (memloc.RefSet, memloc.RefSet) {
	arr := fresh(step.At(), memloc.StackSite(0))
	if isPrimitive(step.Instruction().Class) {
		return arr, memloc.RefSet{}
	}
	return arr, memloc.Refs(memloc.NullReference)
}

// FieldDefault returns the empty set. The tree heap fabricates the references of the fields of known objects; the
// default is only read for null objects.
func (Domain) FieldDefault(jvm.Step, heap.Addr[memloc.RefSet], cfa.FieldRef) memloc.RefSet {
	return memloc.RefSet{}
}

// ArrayDefault returns the empty set
func (Domain) ArrayDefault(jvm.Step, heap.Addr[memloc.RefSet]) memloc.RefSet {
	return memloc.RefSet{}
}

// StaticDefault returns the reference of the unknown object of a static field of reference type
func (Domain) StaticDefault(field cfa.FieldRef) memloc.RefSet {
	if field.Kind() != cfa.Reference {
		return memloc.RefSet{}
	}
	return memloc.Refs(memloc.StaticReference(field))
}

// Invoke returns a fresh reference for the result of calls returning objects or arrays. The reference is located on
// the stack top, where the result is pushed.
func (Domain) Invoke(step jvm.Step, _ *jvm.State[memloc.RefSet], _ []heap.Addr[memloc.RefSet]) memloc.RefSet {
	if step.Instruction().Method.ReturnKind() != cfa.Reference {
		return memloc.RefSet{}
	}
	return fresh(step.At(), memloc.StackSite(0))
}

// Refs returns its argument: reference sets are their own references
func (Domain) Refs(v memloc.RefSet) memloc.RefSet {
	return v
}

// Fabricate returns the reference of a field of the owner the heap has never seen. It only depends on the owner and
// the field. Fields of primitive type have no reference.
func Fabricate(owner memloc.Reference, field string) memloc.RefSet {
	switch field {
	case heap.ArrayField:
		return memloc.Refs(memloc.ArrayReference(owner))
	case heap.ObjectField:
		return memloc.RefSet{}
	}
	if jvm.FieldKeyKind(field) != cfa.Reference {
		return memloc.RefSet{}
	}
	return memloc.Refs(memloc.FieldReference(owner, field))
}

func fresh(at cfa.Location, site string) memloc.RefSet {
	return memloc.Refs(memloc.Reference{Creation: at, Site: site})
}

// isPrimitive returns true for the element types of newarray
func isPrimitive(class string) bool {
	switch class {
	case "I", "J", "F", "D", "Z", "B", "C", "S":
		return true
	}
	return false
}
