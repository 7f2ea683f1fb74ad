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
	"strconv"
	"strings"
)

// Opcode identifies the operation of an instruction. Typed JVM opcodes (iload, aload, iadd, ladd, ...) are folded
// into one opcode with an operand Kind.
type Opcode int

const (
	Nop Opcode = iota
	AConstNull
	IConst
	LConst
	FConst
	DConst
	Ldc
	Load
	Store
	IInc
	ArrayLoad
	ArrayStore
	ArrayLength
	Pop
	Dup
	DupX1
	Swap
	Add
	Sub
	Mul
	Div
	Rem
	Shl
	Shr
	UShr
	And
	Or
	Xor
	Neg
	Convert
	Compare
	If
	IfCmp
	Goto
	Switch
	Return
	AThrow
	GetStatic
	PutStatic
	GetField
	PutField
	InvokeVirtual
	InvokeSpecial
	InvokeStatic
	InvokeInterface
	New
	NewArray
	CheckCast
	InstanceOf
	MonitorEnter
	MonitorExit
)

var opcodeNames = map[Opcode]string{
	Nop: "nop", AConstNull: "aconst_null", IConst: "iconst", LConst: "lconst", FConst: "fconst",
	DConst: "dconst", Ldc: "ldc", Load: "load", Store: "store", IInc: "iinc", ArrayLoad: "arrayload",
	ArrayStore: "arraystore", ArrayLength: "arraylength", Pop: "pop", Dup: "dup", DupX1: "dup_x1", Swap: "swap",
	Add: "add", Sub: "sub", Mul: "mul", Div: "div", Rem: "rem", Shl: "shl", Shr: "shr", UShr: "ushr", And: "and",
	Or: "or", Xor: "xor", Neg: "neg", Convert: "convert", Compare: "cmp", If: "if", IfCmp: "if_cmp",
	Goto: "goto", Switch: "switch", Return: "return", AThrow: "athrow", GetStatic: "getstatic",
	PutStatic: "putstatic", GetField: "getfield", PutField: "putfield", InvokeVirtual: "invokevirtual",
	InvokeSpecial: "invokespecial", InvokeStatic: "invokestatic", InvokeInterface: "invokeinterface",
	New: "new", NewArray: "newarray", CheckCast: "checkcast", InstanceOf: "instanceof",
	MonitorEnter: "monitorenter", MonitorExit: "monitorexit",
}

func (o Opcode) String() string {
	if s, ok := opcodeNames[o]; ok {
		return s
	}
	return fmt.Sprintf("opcode(%d)", int(o))
}

// IsInvoke returns true for the four invocation opcodes
func (o Opcode) IsInvoke() bool {
	return o == InvokeVirtual || o == InvokeSpecial || o == InvokeStatic || o == InvokeInterface
}

// IsArithmetic returns true for the binary arithmetic and bitwise opcodes
func (o Opcode) IsArithmetic() bool {
	return o >= Add && o <= Xor
}

// Instruction is a single JVM instruction with its decoded operands. Only the operands relevant to the opcode are
// set.
type Instruction struct {
	Op Opcode

	// Kind is the operand kind of typed instructions (loads, stores, arithmetic, returns, array accesses)
	Kind ValueKind

	// To is the target kind of conversions
	To ValueKind

	// Index is the local variable index of loads, stores and iinc
	Index int

	// Int is the immediate integer operand (iconst, lconst, iinc increment, integer ldc)
	Int int64

	// Float is the immediate floating point operand (fconst, dconst, floating ldc)
	Float float64

	// Str is the string operand of a string ldc
	Str string

	// Field is the field accessed by field instructions
	Field FieldRef

	// Method is the method invoked by invoke instructions
	Method Signature

	// Class is the class operand of new, checkcast, instanceof and the element type of newarray
	Class string

	// Targets are the branch target labels; for switches, the last target is the default
	Targets []string
}

// IsInvoke returns true if the instruction is a method invocation
func (i Instruction) IsInvoke() bool {
	return i.Op.IsInvoke()
}

// IsStaticInvoke returns true if the instruction is an invokestatic
func (i Instruction) IsStaticInvoke() bool {
	return i.Op == InvokeStatic
}

// ArgCount returns the number of operands consumed by an invoke instruction, receiver included
func (i Instruction) ArgCount() int {
	return i.Method.ArgCount(i.Op == InvokeStatic)
}

// StackEffect returns the number of operand stack entries popped and pushed by the instruction. Every value,
// including long and double values, takes one stack entry.
//
//gocyclo:ignore
func (i Instruction) StackEffect() (pops int, pushes int) {
	switch i.Op {
	case Nop, IInc, Goto:
		return 0, 0
	case AConstNull, IConst, LConst, FConst, DConst, Ldc, Load, GetStatic, New:
		return 0, 1
	case Store, Pop, If, Switch, PutStatic, MonitorEnter, MonitorExit, AThrow:
		return 1, 0
	case ArrayLoad:
		return 2, 1
	case ArrayStore:
		return 3, 0
	case ArrayLength, Neg, Convert, GetField, NewArray, CheckCast, InstanceOf:
		return 1, 1
	case Dup:
		return 1, 2
	case DupX1:
		return 2, 3
	case Swap:
		return 2, 2
	case Add, Sub, Mul, Div, Rem, Shl, Shr, UShr, And, Or, Xor, Compare:
		return 2, 1
	case IfCmp, PutField:
		return 2, 0
	case Return:
		if i.Kind == Void {
			return 0, 0
		}
		return 1, 1
	case InvokeVirtual, InvokeSpecial, InvokeStatic, InvokeInterface:
		pushes = 1
		if i.Method.ReturnKind() == Void {
			pushes = 0
		}
		return i.ArgCount(), pushes
	}
	return 0, 0
}

// ResultKind returns the kind of the value pushed by the instruction, or Void if it pushes nothing
//
//gocyclo:ignore
func (i Instruction) ResultKind() ValueKind {
	switch i.Op {
	case AConstNull, New, NewArray, CheckCast:
		return Reference
	case IConst, ArrayLength, Compare, InstanceOf:
		return Int
	case LConst:
		return Long
	case FConst:
		return Float
	case DConst:
		return Double
	case Ldc, Load, ArrayLoad, Return, Neg, Add, Sub, Mul, Div, Rem, Shl, Shr, UShr, And, Or, Xor:
		return i.Kind
	case Convert:
		return i.To
	case GetStatic, GetField:
		return i.Field.Kind()
	case InvokeVirtual, InvokeSpecial, InvokeStatic, InvokeInterface:
		return i.Method.ReturnKind()
	}
	return Void
}

// FallsThrough returns true if execution may continue with the next instruction
func (i Instruction) FallsThrough() bool {
	switch i.Op {
	case Goto, Switch, Return, AThrow:
		return false
	}
	return true
}

func (i Instruction) String() string {
	switch i.Op {
	case IConst, LConst:
		return fmt.Sprintf("%s %d", i.Op, i.Int)
	case FConst, DConst:
		return fmt.Sprintf("%s %g", i.Op, i.Float)
	case Ldc:
		if i.Kind == Reference {
			return fmt.Sprintf("ldc %s", strconv.Quote(i.Str))
		}
		if i.Kind == Float || i.Kind == Double {
			return fmt.Sprintf("ldc %g", i.Float)
		}
		return fmt.Sprintf("ldc %d", i.Int)
	case Load, Store:
		return fmt.Sprintf("%s%s %d", kindPrefix(i.Kind), i.Op, i.Index)
	case IInc:
		return fmt.Sprintf("iinc %d %d", i.Index, i.Int)
	case ArrayLoad:
		return kindPrefix(i.Kind) + "aload"
	case ArrayStore:
		return kindPrefix(i.Kind) + "astore"
	case Add, Sub, Mul, Div, Rem, Shl, Shr, UShr, And, Or, Xor, Neg, Compare:
		return kindPrefix(i.Kind) + i.Op.String()
	case Return:
		if i.Kind == Void {
			return "return"
		}
		return kindPrefix(i.Kind) + "return"
	case Convert:
		return kindPrefix(i.Kind) + "2" + kindPrefix(i.To)
	case If, IfCmp, Goto, Switch:
		return fmt.Sprintf("%s %s", i.Op, strings.Join(i.Targets, " "))
	case GetStatic, PutStatic, GetField, PutField:
		return fmt.Sprintf("%s %s", i.Op, i.Field)
	case InvokeVirtual, InvokeSpecial, InvokeStatic, InvokeInterface:
		return fmt.Sprintf("%s %s", i.Op, i.Method)
	case New, NewArray, CheckCast, InstanceOf:
		return fmt.Sprintf("%s %s", i.Op, i.Class)
	}
	return i.Op.String()
}

func kindPrefix(k ValueKind) string {
	switch k {
	case Int:
		return "i"
	case Long:
		return "l"
	case Float:
		return "f"
	case Double:
		return "d"
	case Reference:
		return "a"
	}
	return ""
}
