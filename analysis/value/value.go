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

// Package value implements the value analysis: the abstract value of a JVM value is either a concrete constant, an
// object with an identity (and the content of the objects of the modeled library classes), or unknown.
//
// Calls to a whitelisted set of methods of java/lang/String, java/lang/StringBuilder, java/lang/StringBuffer and
// java/lang/Integer are executed over concrete arguments by the models of the Models table.
package value

import (
	"fmt"
	"math"
	"strconv"

	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
)

// Kind is the variant of a Value
type Kind int

const (
	// Bottom is the value carrying no information
	Bottom Kind = iota
	// Unknown is any value of a type
	Unknown
	// Int is a concrete int (also boolean, byte, char and short)
	Int
	// Long is a concrete long
	Long
	// Float is a concrete float
	Float
	// Double is a concrete double
	Double
	// String is a concrete string
	String
	// Null is the null reference
	Null
	// Object is an object with an identity
	Object
)

func (k Kind) String() string {
	switch k {
	case Bottom:
		return "bottom"
	case Unknown:
		return "unknown"
	case Int:
		return "int"
	case Long:
		return "long"
	case Float:
		return "float"
	case Double:
		return "double"
	case String:
		return "string"
	case Null:
		return "null"
	case Object:
		return "object"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

const (
	stringType = cfa.TypeDescriptor("Ljava/lang/String;")
	objectType = cfa.TypeDescriptor("Ljava/lang/Object;")
)

// Value is an element of the value lattice. The zero Value is Bottom. Values are comparable.
type Value struct {
	kind Kind

	// typ is the type of the value; the empty type is the type of all values
	typ cfa.TypeDescriptor

	num int64
	fp  float64

	// str is the string of String values and the content of Object values
	str string

	// id is the identity of Object values
	id int

	// modeled is true when str is the content of the object
	modeled bool
}

// Of returns the concrete int value
func Of(i int32) Value {
	return Value{kind: Int, typ: "I", num: int64(i)}
}

// OfLong returns the concrete long value
func OfLong(l int64) Value {
	return Value{kind: Long, typ: "J", num: l}
}

// OfFloat returns the concrete float value
func OfFloat(f float32) Value {
	return Value{kind: Float, typ: "F", fp: float64(f)}
}

// OfDouble returns the concrete double value
func OfDouble(d float64) Value {
	return Value{kind: Double, typ: "D", fp: d}
}

// OfString returns the concrete string value
func OfString(s string) Value {
	return Value{kind: String, typ: stringType, str: s}
}

// OfBool returns the int value of a boolean
func OfBool(b bool) Value {
	if b {
		return Of(1)
	}
	return Of(0)
}

// NullValue returns the null reference
func NullValue() Value {
	return Value{kind: Null}
}

// UnknownOf returns the value standing for any value of the type. The empty type stands for any value at all.
func UnknownOf(t cfa.TypeDescriptor) Value {
	return Value{kind: Unknown, typ: normalize(t)}
}

// Top returns the value standing for any value
func Top() Value {
	return Value{kind: Unknown}
}

// NewObject returns the object value of the type with the identity. The object has no modeled content.
func NewObject(t cfa.TypeDescriptor, id int) Value {
	return Value{kind: Object, typ: t, id: id}
}

// WithContent returns the object with its modeled content set
func (v Value) WithContent(s string) Value {
	v.str = s
	v.modeled = true
	return v
}

// WithoutContent returns the object without modeled content
func (v Value) WithoutContent() Value {
	v.str = ""
	v.modeled = false
	return v
}

// Kind returns the variant of the value
func (v Value) Kind() Kind {
	return v.kind
}

// Type returns the type of the value, empty for Bottom, Null and the top value
func (v Value) Type() cfa.TypeDescriptor {
	return v.typ
}

// IsConcrete returns true for constants, null and objects
func (v Value) IsConcrete() bool {
	return v.kind != Bottom && v.kind != Unknown
}

// AsInt returns the int of Int values
func (v Value) AsInt() (int32, bool) {
	return int32(v.num), v.kind == Int
}

// AsLong returns the long of Long values
func (v Value) AsLong() (int64, bool) {
	return v.num, v.kind == Long
}

// AsFloat returns the number of Float and Double values
func (v Value) AsFloat() (float64, bool) {
	return v.fp, v.kind == Float || v.kind == Double
}

// AsString returns the string of String values
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == String
}

// Content returns the modeled content of Object values
func (v Value) Content() (string, bool) {
	return v.str, v.kind == Object && v.modeled
}

// Identity implements heap.Identifier: objects are identified by their identity, other values have none
func (v Value) Identity() (any, bool) {
	if v.kind != Object {
		return nil, false
	}
	return v.id, true
}

// SameObject returns true if both values are objects with the same identity
func (v Value) SameObject(other Value) bool {
	return v.kind == Object && other.kind == Object && v.id == other.id
}

// normalize maps the types of the int computational kind to int
func normalize(t cfa.TypeDescriptor) cfa.TypeDescriptor {
	switch t {
	case "Z", "B", "C", "S":
		return "I"
	}
	return t
}

func isRefType(t cfa.TypeDescriptor) bool {
	return t != "" && t.Kind() == cfa.Reference
}

// isRef returns true if the value is a reference: null or a value of a reference type
func (v Value) isRef() bool {
	return v.kind == Null || (v.kind != Bottom && isRefType(v.typ))
}

// commonType returns the type of the join of two different values
func commonType(a, b Value) cfa.TypeDescriptor {
	switch {
	case a.kind == Null && isRefType(b.typ):
		return b.typ
	case b.kind == Null && isRefType(a.typ):
		return a.typ
	case a.kind == Null && b.kind == Null:
		return objectType
	case a.typ == b.typ:
		return a.typ
	case a.isRef() && b.isRef():
		return objectType
	}
	return ""
}

// Join returns the value itself if both values are equal, and the unknown value of their common type otherwise
func (v Value) Join(other Value) Value {
	switch {
	case v.kind == Bottom:
		return other
	case other.kind == Bottom:
		return v
	case v.Equal(other):
		return v
	case v.LessOrEqual(other):
		return other
	case other.LessOrEqual(v):
		return v
	}
	return UnknownOf(commonType(v, other))
}

// LessOrEqual implements lattice.Value
func (v Value) LessOrEqual(other Value) bool {
	switch {
	case v.kind == Bottom || v.Equal(other):
		return true
	case other.kind != Unknown:
		return false
	case other.typ == "":
		return true
	case other.typ == v.typ && v.kind != Null:
		return true
	case v.isRef() && other.typ == objectType:
		return true
	case v.kind == Null && isRefType(other.typ):
		return true
	}
	return false
}

// Equal implements lattice.Value. Floating point constants are equal when their bits are.
func (v Value) Equal(other Value) bool {
	if v.kind == Float || v.kind == Double {
		return other.kind == v.kind && math.Float64bits(v.fp) == math.Float64bits(other.fp)
	}
	return v == other
}

func (v Value) String() string {
	switch v.kind {
	case Bottom:
		return "⊥"
	case Unknown:
		if v.typ == "" {
			return "⊤"
		}
		return "⊤" + string(v.typ)
	case Int:
		return strconv.FormatInt(v.num, 10)
	case Long:
		return strconv.FormatInt(v.num, 10) + "L"
	case Float:
		return strconv.FormatFloat(v.fp, 'g', -1, 32) + "f"
	case Double:
		return strconv.FormatFloat(v.fp, 'g', -1, 64)
	case String:
		return strconv.Quote(v.str)
	case Null:
		return "null"
	case Object:
		if v.modeled {
			return fmt.Sprintf("%s#%d(%q)", v.typ.ClassName(), v.id, v.str)
		}
		return fmt.Sprintf("%s#%d", v.typ.ClassName(), v.id)
	}
	return v.kind.String()
}
