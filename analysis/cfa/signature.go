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

package cfa

import (
	"fmt"
	"strings"
)

// ValueKind is the computational kind of a JVM value
type ValueKind int

const (
	// Void is the kind of the result of methods returning nothing
	Void ValueKind = iota
	// Int covers int, short, byte, char and boolean
	Int
	Long
	Float
	Double
	// Reference covers objects and arrays
	Reference
)

func (k ValueKind) String() string {
	switch k {
	case Void:
		return "void"
	case Int:
		return "int"
	case Long:
		return "long"
	case Float:
		return "float"
	case Double:
		return "double"
	case Reference:
		return "reference"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Size returns the number of local variable slots a value of kind k occupies
func (k ValueKind) Size() int {
	switch k {
	case Void:
		return 0
	case Long, Double:
		return 2
	default:
		return 1
	}
}

// TypeDescriptor is a JVM field descriptor, e.g. "I", "Ljava/lang/String;" or "[I"
type TypeDescriptor string

// Kind returns the computational kind of values of that type
func (t TypeDescriptor) Kind() ValueKind {
	if len(t) == 0 {
		return Void
	}
	switch t[0] {
	case 'V':
		return Void
	case 'Z', 'B', 'C', 'S', 'I':
		return Int
	case 'J':
		return Long
	case 'F':
		return Float
	case 'D':
		return Double
	default:
		return Reference
	}
}

// IsArray returns true if the type is an array type
func (t TypeDescriptor) IsArray() bool {
	return strings.HasPrefix(string(t), "[")
}

// ClassName returns the internal class name of an object type (e.g. java/lang/String), the descriptor itself for
// array types, and the empty string for primitive types
func (t TypeDescriptor) ClassName() string {
	s := string(t)
	if strings.HasPrefix(s, "L") && strings.HasSuffix(s, ";") {
		return s[1 : len(s)-1]
	}
	if t.IsArray() {
		return s
	}
	return ""
}

// ObjectType returns the descriptor of the class name (e.g. java/lang/String -> Ljava/lang/String;). Array
// descriptors are returned unchanged.
func ObjectType(className string) TypeDescriptor {
	if strings.HasPrefix(className, "[") {
		return TypeDescriptor(className)
	}
	return TypeDescriptor("L" + className + ";")
}

// MethodDescriptor is a parsed method descriptor
type MethodDescriptor struct {
	Params []TypeDescriptor
	Return TypeDescriptor
}

// ParseDescriptor parses a method descriptor such as "(ILjava/lang/String;)V"
func ParseDescriptor(d string) (MethodDescriptor, error) {
	if !strings.HasPrefix(d, "(") {
		return MethodDescriptor{}, fmt.Errorf("method descriptor %q does not start with (", d)
	}
	end := strings.IndexByte(d, ')')
	if end < 0 {
		return MethodDescriptor{}, fmt.Errorf("method descriptor %q has no closing )", d)
	}
	var params []TypeDescriptor
	rest := d[1:end]
	for len(rest) > 0 {
		t, n, err := parseFieldType(rest)
		if err != nil {
			return MethodDescriptor{}, fmt.Errorf("in descriptor %q: %w", d, err)
		}
		params = append(params, t)
		rest = rest[n:]
	}
	ret := d[end+1:]
	if ret != "V" {
		t, n, err := parseFieldType(ret)
		if err != nil || n != len(ret) {
			return MethodDescriptor{}, fmt.Errorf("invalid return type in descriptor %q", d)
		}
		return MethodDescriptor{Params: params, Return: t}, nil
	}
	return MethodDescriptor{Params: params, Return: "V"}, nil
}

func parseFieldType(s string) (TypeDescriptor, int, error) {
	if len(s) == 0 {
		return "", 0, fmt.Errorf("empty type")
	}
	switch s[0] {
	case 'Z', 'B', 'C', 'S', 'I', 'J', 'F', 'D':
		return TypeDescriptor(s[:1]), 1, nil
	case 'L':
		end := strings.IndexByte(s, ';')
		if end < 0 {
			return "", 0, fmt.Errorf("unterminated class type %q", s)
		}
		return TypeDescriptor(s[:end+1]), end + 1, nil
	case '[':
		_, n, err := parseFieldType(s[1:])
		if err != nil {
			return "", 0, err
		}
		return TypeDescriptor(s[:n+1]), n + 1, nil
	default:
		return "", 0, fmt.Errorf("unexpected type character %q", s[0])
	}
}

// Signature is the fully qualified signature of a method. Its string form is Class.name(descriptor), for example
// java/lang/StringBuilder.append(Ljava/lang/String;)Ljava/lang/StringBuilder;
type Signature struct {
	Class      string
	Name       string
	Descriptor string
}

// ParseSignature parses a string of the form Class.name(descriptor)
func ParseSignature(s string) (Signature, error) {
	paren := strings.IndexByte(s, '(')
	if paren < 0 {
		return Signature{}, fmt.Errorf("signature %q has no descriptor", s)
	}
	prefix := s[:paren]
	dot := strings.LastIndexByte(prefix, '.')
	if dot <= 0 || dot == len(prefix)-1 {
		return Signature{}, fmt.Errorf("signature %q has no class or method name", s)
	}
	sig := Signature{Class: prefix[:dot], Name: prefix[dot+1:], Descriptor: s[paren:]}
	if _, err := ParseDescriptor(sig.Descriptor); err != nil {
		return Signature{}, err
	}
	return sig, nil
}

// MustParseSignature parses s and panics if it is not a valid signature. Use for constants only.
func MustParseSignature(s string) Signature {
	sig, err := ParseSignature(s)
	if err != nil {
		panic(err)
	}
	return sig
}

func (s Signature) String() string {
	return s.Class + "." + s.Name + s.Descriptor
}

// Parsed returns the parsed descriptor of the signature. Signatures built by ParseSignature always have a valid
// descriptor; for other signatures, an invalid descriptor yields a method without parameters returning void.
func (s Signature) Parsed() MethodDescriptor {
	d, err := ParseDescriptor(s.Descriptor)
	if err != nil {
		return MethodDescriptor{Return: "V"}
	}
	return d
}

// ArgCount returns the number of operand stack entries consumed by a call to the method, including the receiver
// when isStatic is false
func (s Signature) ArgCount(isStatic bool) int {
	n := len(s.Parsed().Params)
	if !isStatic {
		n++
	}
	return n
}

// ReturnKind returns the kind of the value returned by the method
func (s Signature) ReturnKind() ValueKind {
	return s.Parsed().Return.Kind()
}

// ArgumentSlots returns, for each operand consumed by a call (receiver first), the index of the local variable of
// the callee that receives it.
func (s Signature) ArgumentSlots(isStatic bool) []int {
	var slots []int
	slot := 0
	if !isStatic {
		slots = append(slots, 0)
		slot = 1
	}
	for _, p := range s.Parsed().Params {
		slots = append(slots, slot)
		slot += p.Kind().Size()
	}
	return slots
}

// FieldRef identifies a field by its declaring class, name and descriptor. Its string form is Class.name:descriptor
type FieldRef struct {
	Class      string
	Name       string
	Descriptor string
}

// ParseFieldRef parses a string of the form Class.name:descriptor
func ParseFieldRef(s string) (FieldRef, error) {
	colon := strings.IndexByte(s, ':')
	if colon < 0 {
		return FieldRef{}, fmt.Errorf("field reference %q has no descriptor", s)
	}
	prefix := s[:colon]
	dot := strings.LastIndexByte(prefix, '.')
	if dot <= 0 || dot == len(prefix)-1 {
		return FieldRef{}, fmt.Errorf("field reference %q has no class or field name", s)
	}
	desc := s[colon+1:]
	if _, n, err := parseFieldType(desc); err != nil || n != len(desc) {
		return FieldRef{}, fmt.Errorf("invalid field descriptor in %q", s)
	}
	return FieldRef{Class: prefix[:dot], Name: prefix[dot+1:], Descriptor: desc}, nil
}

func (f FieldRef) String() string {
	return f.Class + "." + f.Name + ":" + f.Descriptor
}

// Kind returns the kind of the values stored in the field
func (f FieldRef) Kind() ValueKind {
	return TypeDescriptor(f.Descriptor).Kind()
}
