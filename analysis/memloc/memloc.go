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

// Package memloc defines abstract references, which are the identity of heap objects in the analyses, and memory
// locations, which name the places where values are stored in a JVM state.
package memloc

import (
	"fmt"

	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
	"github.com/awslabs/ar-jvm-tools/analysis/lattice"
)

// A Reference abstracts the objects created at the same program location and first stored at the same memory
// location. Two references are equal iff both components are equal; there is no allocation counter.
type Reference struct {
	// Creation is the location of the instruction that created the object, or the location where an unknown
	// object was first read
	Creation cfa.Location

	// Site is the string form of the memory location where the reference was first encountered
	Site string
}

// NullReference is the reference of the null constant
var NullReference = Reference{Site: "null"}

// IsNull returns true for the null marker
func (r Reference) IsNull() bool {
	return r == NullReference
}

func (r Reference) String() string {
	if r.IsNull() {
		return "null"
	}
	return fmt.Sprintf("%s#%s", r.Creation, r.Site)
}

// StackSite returns the site of a value at depth from the top of the operand stack
func StackSite(depth int) string {
	return fmt.Sprintf("stack[%d]", depth)
}

// LocalSite returns the site of a value in a local variable
func LocalSite(index int) string {
	return fmt.Sprintf("local[%d]", index)
}

// StaticSite returns the site of a value in a static field
func StaticSite(field cfa.FieldRef) string {
	return "static " + field.String()
}

// FieldSite returns the site of a value stored in the field of an object. Only the creation location of the owner
// is used, so the sites created while walking a recursive structure in a loop are finitely many.
func FieldSite(owner Reference, field string) string {
	return fmt.Sprintf("field(%s).%s", owner.Creation, field)
}

// ArraySite returns the site of a value stored in an array
func ArraySite(owner Reference) string {
	return fmt.Sprintf("array(%s)", owner.Creation)
}

// FieldReference returns the reference of the unknown object stored in the field of the objects of owner. It only
// depends on the owner and the field, so every read of the slot and every join agree on it.
func FieldReference(owner Reference, field string) Reference {
	return Reference{Creation: owner.Creation, Site: FieldSite(owner, field)}
}

// ArrayReference returns the reference of the unknown objects stored in the cells of the arrays of owner
func ArrayReference(owner Reference) Reference {
	return Reference{Creation: owner.Creation, Site: ArraySite(owner)}
}

// StaticReference returns the reference of the unknown object stored in the static field. It is created by the
// class initializer of the class declaring the field.
func StaticReference(field cfa.FieldRef) Reference {
	init := cfa.Signature{Class: field.Class, Name: "<clinit>", Descriptor: "()V"}
	return Reference{Creation: cfa.Location{Method: init}, Site: StaticSite(field)}
}

// RefSet is the lattice of sets of references
type RefSet = lattice.Set[Reference]

// Refs returns the set of references
func Refs(refs ...Reference) RefSet {
	return lattice.NewSet(refs...)
}

// Roots returns the union of the reference sets, without the null marker
func Roots(sets ...RefSet) RefSet {
	var res RefSet
	for _, s := range sets {
		res = res.Join(s)
	}
	return res.Remove(NullReference)
}

// Singleton returns the only non-null reference of the set, if the set has exactly one element and that element
// is not null
func Singleton(s RefSet) (Reference, bool) {
	if s.Len() != 1 {
		return Reference{}, false
	}
	r := s.Elements()[0]
	return r, !r.IsNull()
}

// Kind is the kind of a memory location
type Kind int

const (
	// Stack locations are operand stack entries, indexed by depth from the top
	Stack Kind = iota
	// Local locations are local variables
	Local
	// Static locations are static fields
	Static
	// Field locations are instance fields of the objects of a reference
	Field
	// Array locations are the cells of the arrays of a reference
	Array
)

func (k Kind) String() string {
	switch k {
	case Stack:
		return "stack"
	case Local:
		return "local"
	case Static:
		return "static"
	case Field:
		return "field"
	case Array:
		return "array"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Location is a memory location of a JVM state. Locations are comparable.
type Location struct {
	Kind Kind

	// Index is the depth from the top of the stack for stack locations and the slot for locals
	Index int

	// Static is the field of static locations
	Static cfa.FieldRef

	// Field is the field name of field locations
	Field string

	// Ref is the owner of field and array locations
	Ref Reference
}

// StackLocation returns the location at depth from the top of the operand stack
func StackLocation(depth int) Location {
	return Location{Kind: Stack, Index: depth}
}

// LocalLocation returns the location of a local variable
func LocalLocation(index int) Location {
	return Location{Kind: Local, Index: index}
}

// StaticLocation returns the location of a static field
func StaticLocation(field cfa.FieldRef) Location {
	return Location{Kind: Static, Static: field}
}

// FieldLocation returns the location of the field of the objects of ref
func FieldLocation(ref Reference, field string) Location {
	return Location{Kind: Field, Ref: ref, Field: field}
}

// ArrayLocation returns the location of the cells of the arrays of ref
func ArrayLocation(ref Reference) Location {
	return Location{Kind: Array, Ref: ref}
}

func (l Location) String() string {
	switch l.Kind {
	case Stack:
		return StackSite(l.Index)
	case Local:
		return LocalSite(l.Index)
	case Static:
		return StaticSite(l.Static)
	case Field:
		return fmt.Sprintf("%s.%s", l.Ref, l.Field)
	case Array:
		return fmt.Sprintf("%s[]", l.Ref)
	}
	return l.Kind.String()
}

// IsHeap returns true for field and array locations
func (l Location) IsHeap() bool {
	return l.Kind == Field || l.Kind == Array
}
