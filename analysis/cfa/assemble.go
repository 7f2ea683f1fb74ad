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

type mnemonic struct {
	op   Opcode
	kind ValueKind
	to   ValueKind
	// implicit is the implicit operand of short forms (iconst_1, aload_0, ...), or -2 when absent
	implicit int64
}

var mnemonics = buildMnemonics()

//gocyclo:ignore
func buildMnemonics() map[string]mnemonic {
	m := map[string]mnemonic{}
	add := func(name string, op Opcode, kind ValueKind) {
		m[name] = mnemonic{op: op, kind: kind, implicit: -2}
	}
	prefixes := map[string]ValueKind{"i": Int, "l": Long, "f": Float, "d": Double, "a": Reference}

	add("nop", Nop, Void)
	add("aconst_null", AConstNull, Reference)
	add("iconst", IConst, Int)
	add("bipush", IConst, Int)
	add("sipush", IConst, Int)
	add("lconst", LConst, Long)
	add("fconst", FConst, Float)
	add("dconst", DConst, Double)
	for i := int64(-1); i <= 5; i++ {
		name := fmt.Sprintf("iconst_%d", i)
		if i < 0 {
			name = "iconst_m1"
		}
		m[name] = mnemonic{op: IConst, kind: Int, implicit: i}
	}
	for i := int64(0); i <= 2; i++ {
		m[fmt.Sprintf("fconst_%d", i)] = mnemonic{op: FConst, kind: Float, implicit: i}
		if i <= 1 {
			m[fmt.Sprintf("lconst_%d", i)] = mnemonic{op: LConst, kind: Long, implicit: i}
			m[fmt.Sprintf("dconst_%d", i)] = mnemonic{op: DConst, kind: Double, implicit: i}
		}
	}
	add("ldc", Ldc, Void)
	add("ldc_w", Ldc, Void)
	add("ldc2_w", Ldc, Void)
	for p, k := range prefixes {
		add(p+"load", Load, k)
		add(p+"store", Store, k)
		add(p+"return", Return, k)
		for i := int64(0); i <= 3; i++ {
			m[fmt.Sprintf("%sload_%d", p, i)] = mnemonic{op: Load, kind: k, implicit: i}
			m[fmt.Sprintf("%sstore_%d", p, i)] = mnemonic{op: Store, kind: k, implicit: i}
		}
		add(p+"aload", ArrayLoad, k)
		add(p+"astore", ArrayStore, k)
		if k != Reference {
			add(p+"add", Add, k)
			add(p+"sub", Sub, k)
			add(p+"mul", Mul, k)
			add(p+"div", Div, k)
			add(p+"rem", Rem, k)
			add(p+"neg", Neg, k)
			for q, to := range prefixes {
				if to != Reference && to != k {
					m[p+"2"+q] = mnemonic{op: Convert, kind: k, to: to, implicit: -2}
				}
			}
		}
	}
	for _, small := range []string{"b", "c", "s"} {
		add(small+"aload", ArrayLoad, Int)
		add(small+"astore", ArrayStore, Int)
		m["i2"+small] = mnemonic{op: Convert, kind: Int, to: Int, implicit: -2}
	}
	for _, p := range []string{"i", "l"} {
		k := prefixes[p]
		add(p+"shl", Shl, k)
		add(p+"shr", Shr, k)
		add(p+"ushr", UShr, k)
		add(p+"and", And, k)
		add(p+"or", Or, k)
		add(p+"xor", Xor, k)
	}
	add("iinc", IInc, Int)
	add("arraylength", ArrayLength, Int)
	add("pop", Pop, Void)
	add("dup", Dup, Void)
	add("dup_x1", DupX1, Void)
	add("swap", Swap, Void)
	add("lcmp", Compare, Long)
	add("fcmpl", Compare, Float)
	add("fcmpg", Compare, Float)
	add("dcmpl", Compare, Double)
	add("dcmpg", Compare, Double)
	for _, c := range []string{"eq", "ne", "lt", "ge", "gt", "le"} {
		add("if"+c, If, Int)
		add("if_icmp"+c, IfCmp, Int)
	}
	add("ifnull", If, Reference)
	add("ifnonnull", If, Reference)
	add("if_acmpeq", IfCmp, Reference)
	add("if_acmpne", IfCmp, Reference)
	add("goto", Goto, Void)
	add("goto_w", Goto, Void)
	add("tableswitch", Switch, Int)
	add("lookupswitch", Switch, Int)
	add("return", Return, Void)
	add("athrow", AThrow, Reference)
	add("getstatic", GetStatic, Void)
	add("putstatic", PutStatic, Void)
	add("getfield", GetField, Void)
	add("putfield", PutField, Void)
	add("invokevirtual", InvokeVirtual, Void)
	add("invokespecial", InvokeSpecial, Void)
	add("invokestatic", InvokeStatic, Void)
	add("invokeinterface", InvokeInterface, Void)
	add("new", New, Reference)
	add("newarray", NewArray, Reference)
	add("anewarray", NewArray, Reference)
	add("checkcast", CheckCast, Reference)
	add("instanceof", InstanceOf, Int)
	add("monitorenter", MonitorEnter, Reference)
	add("monitorexit", MonitorExit, Reference)
	return m
}

// ParseInstruction parses a line of assembly such as "aload 0", "invokestatic Main.source()Ljava/lang/String;" or
// "ifeq L1".
//
//gocyclo:ignore
func ParseInstruction(line string) (Instruction, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Instruction{}, fmt.Errorf("empty instruction")
	}
	mn, ok := mnemonics[strings.ToLower(fields[0])]
	if !ok {
		return Instruction{}, fmt.Errorf("unknown mnemonic %q", fields[0])
	}
	args := fields[1:]
	instr := Instruction{Op: mn.op, Kind: mn.kind, To: mn.to}
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%q expects %d operand(s)", fields[0], n)
		}
		return nil
	}

	switch mn.op {
	case IConst, LConst:
		if mn.implicit != -2 {
			instr.Int = mn.implicit
			break
		}
		if err := need(1); err != nil {
			return instr, err
		}
		n, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return instr, fmt.Errorf("invalid integer operand in %q: %w", line, err)
		}
		instr.Int = n
	case FConst, DConst:
		if mn.implicit != -2 {
			instr.Float = float64(mn.implicit)
			break
		}
		if err := need(1); err != nil {
			return instr, err
		}
		f, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return instr, fmt.Errorf("invalid float operand in %q: %w", line, err)
		}
		instr.Float = f
	case Ldc:
		rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
		if rest == "" {
			return instr, fmt.Errorf("ldc expects an operand")
		}
		if strings.HasPrefix(rest, "\"") {
			s, err := strconv.Unquote(rest)
			if err != nil {
				return instr, fmt.Errorf("invalid string constant in %q: %w", line, err)
			}
			instr.Kind = Reference
			instr.Str = s
		} else if n, err := strconv.ParseInt(rest, 10, 64); err == nil {
			instr.Kind = Int
			instr.Int = n
		} else if f, err := strconv.ParseFloat(rest, 64); err == nil {
			instr.Kind = Double
			instr.Float = f
		} else {
			return instr, fmt.Errorf("invalid ldc operand %q", rest)
		}
	case Load, Store:
		if mn.implicit != -2 {
			instr.Index = int(mn.implicit)
			break
		}
		if err := need(1); err != nil {
			return instr, err
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return instr, fmt.Errorf("invalid local index in %q: %w", line, err)
		}
		instr.Index = n
	case IInc:
		if err := need(2); err != nil {
			return instr, err
		}
		idx, err1 := strconv.Atoi(args[0])
		inc, err2 := strconv.ParseInt(args[1], 10, 64)
		if err1 != nil || err2 != nil {
			return instr, fmt.Errorf("invalid iinc operands in %q", line)
		}
		instr.Index = idx
		instr.Int = inc
	case If, IfCmp, Goto:
		if err := need(1); err != nil {
			return instr, err
		}
		instr.Targets = []string{args[0]}
	case Switch:
		if err := need(1); err != nil {
			return instr, err
		}
		for _, a := range args {
			instr.Targets = append(instr.Targets, strings.TrimPrefix(a, "default="))
		}
	case GetStatic, PutStatic, GetField, PutField:
		if err := need(1); err != nil {
			return instr, err
		}
		f, err := ParseFieldRef(args[0])
		if err != nil {
			return instr, err
		}
		instr.Field = f
	case InvokeVirtual, InvokeSpecial, InvokeStatic, InvokeInterface:
		if err := need(1); err != nil {
			return instr, err
		}
		sig, err := ParseSignature(args[0])
		if err != nil {
			return instr, err
		}
		instr.Method = sig
	case New, CheckCast, InstanceOf:
		if err := need(1); err != nil {
			return instr, err
		}
		instr.Class = args[0]
	case NewArray:
		if err := need(1); err != nil {
			return instr, err
		}
		instr.Class = arrayElementClass(args[0])
	}
	return instr, nil
}

// arrayElementClass normalizes the operand of newarray (a primitive type name) and anewarray (a class name)
func arrayElementClass(s string) string {
	switch s {
	case "int":
		return "I"
	case "long":
		return "J"
	case "float":
		return "F"
	case "double":
		return "D"
	case "boolean":
		return "Z"
	case "byte":
		return "B"
	case "char":
		return "C"
	case "short":
		return "S"
	}
	return s
}
