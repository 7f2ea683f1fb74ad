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
	"embed"
	"testing"
)

//go:embed testdata
var testfsys embed.FS

func TestParseDescriptor(t *testing.T) {
	tests := []struct {
		desc   string
		params []TypeDescriptor
		ret    TypeDescriptor
	}{
		{"()V", nil, "V"},
		{"(I)LA;", []TypeDescriptor{"I"}, "LA;"},
		{"(JLjava/lang/String;[[D)I", []TypeDescriptor{"J", "Ljava/lang/String;", "[[D"}, "I"},
	}
	for _, test := range tests {
		d, err := ParseDescriptor(test.desc)
		if err != nil {
			t.Errorf("unexpected error parsing %q: %v", test.desc, err)
			continue
		}
		if len(d.Params) != len(test.params) {
			t.Errorf("%q: expected %d params, got %d", test.desc, len(test.params), len(d.Params))
			continue
		}
		for i := range d.Params {
			if d.Params[i] != test.params[i] {
				t.Errorf("%q: param %d is %s, expected %s", test.desc, i, d.Params[i], test.params[i])
			}
		}
		if d.Return != test.ret {
			t.Errorf("%q: return is %s, expected %s", test.desc, d.Return, test.ret)
		}
	}
	for _, bad := range []string{"", "I)V", "(I", "(Q)V", "(LA)V"} {
		if _, err := ParseDescriptor(bad); err == nil {
			t.Errorf("expected an error for %q", bad)
		}
	}
}

func TestArgumentSlots(t *testing.T) {
	sig := MustParseSignature("A.m(JILjava/lang/Object;D)V")
	slots := sig.ArgumentSlots(false)
	expected := []int{0, 1, 3, 4, 5}
	if len(slots) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, slots)
	}
	for i := range slots {
		if slots[i] != expected[i] {
			t.Errorf("expected %v, got %v", expected, slots)
		}
	}
	if sig.ArgCount(true) != 4 || sig.ArgCount(false) != 5 {
		t.Errorf("wrong argument counts")
	}
}

func TestParseInstruction(t *testing.T) {
	tests := []struct {
		line   string
		op     Opcode
		kind   ValueKind
		pops   int
		pushes int
	}{
		{"aload_0", Load, Reference, 0, 1},
		{"istore 3", Store, Int, 1, 0},
		{"iconst_m1", IConst, Int, 0, 1},
		{"ldc \"a b\"", Ldc, Reference, 0, 1},
		{"ladd", Add, Long, 2, 1},
		{"aaload", ArrayLoad, Reference, 2, 1},
		{"castore", ArrayStore, Int, 3, 0},
		{"dup_x1", DupX1, Void, 2, 3},
		{"areturn", Return, Reference, 1, 1},
		{"return", Return, Void, 0, 0},
		{"getfield A.f:LA;", GetField, Void, 1, 1},
		{"putstatic A.s:I", PutStatic, Void, 1, 0},
		{"invokevirtual A.m(II)V", InvokeVirtual, Void, 3, 0},
		{"invokestatic A.m(I)I", InvokeStatic, Void, 1, 1},
		{"newarray int", NewArray, Reference, 1, 1},
	}
	for _, test := range tests {
		instr, err := ParseInstruction(test.line)
		if err != nil {
			t.Errorf("unexpected error parsing %q: %v", test.line, err)
			continue
		}
		if instr.Op != test.op || instr.Kind != test.kind {
			t.Errorf("%q parsed as %s/%s", test.line, instr.Op, instr.Kind)
		}
		pops, pushes := instr.StackEffect()
		if pops != test.pops || pushes != test.pushes {
			t.Errorf("%q: stack effect is (%d, %d), expected (%d, %d)", test.line, pops, pushes, test.pops,
				test.pushes)
		}
	}
	ldc, _ := ParseInstruction("ldc \"a b\"")
	if ldc.Str != "a b" {
		t.Errorf("expected string constant \"a b\", got %q", ldc.Str)
	}
	for _, bad := range []string{"", "frobnicate", "iload", "getfield A.f", "ldc"} {
		if _, err := ParseInstruction(bad); err == nil {
			t.Errorf("expected an error for %q", bad)
		}
	}
}

func TestBuildBranches(t *testing.T) {
	sig := MustParseSignature("A.f(I)LA;")
	m, err := NewMethodBuilder(sig, true).AddText(
		"iload_0",
		"ifle L1",
		"new A",
		"areturn",
		"L1:",
		"aconst_null",
		"areturn",
	).Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	branch := m.Node(1)
	if len(branch.Leaving) != 2 {
		t.Fatalf("expected 2 edges leaving the branch, got %d", len(branch.Leaving))
	}
	if branch.Leaving[0].Dst.Offset != 4 || branch.Leaving[1].Dst.Offset != 2 {
		t.Errorf("unexpected branch targets %s and %s", branch.Leaving[0].Dst, branch.Leaving[1].Dst)
	}
	if len(m.ReturnExit.Entering) != 2 {
		t.Errorf("expected 2 returns, got %d", len(m.ReturnExit.Entering))
	}
	if m.Node(ReturnExitOffset) != m.ReturnExit || m.Node(7) != nil {
		t.Errorf("Node should find exits and reject out of range offsets")
	}
}

func TestBuildErrors(t *testing.T) {
	sig := MustParseSignature("A.f()V")
	if _, err := NewMethodBuilder(sig, true).AddText("goto L9", "return").Build(); err == nil {
		t.Errorf("expected an undefined label error")
	}
	if _, err := NewMethodBuilder(sig, true).AddText("nop").Build(); err == nil {
		t.Errorf("expected a fall-through error")
	}
	if _, err := NewMethodBuilder(sig, true).Build(); err == nil {
		t.Errorf("expected an empty method error")
	}
}

func TestParseProgram(t *testing.T) {
	data, err := testfsys.ReadFile("testdata/program.yaml")
	if err != nil {
		t.Fatalf("could not read test program: %v", err)
	}
	g, err := Parse(data)
	if err != nil {
		t.Fatalf("could not parse test program: %v", err)
	}
	if len(g.Methods()) != 4 {
		t.Fatalf("expected 4 methods, got %d", len(g.Methods()))
	}
	mainSig := MustParseSignature("Main.main()V")
	n, ok := g.Node(Location{Method: mainSig, Offset: 0})
	if !ok {
		t.Fatalf("missing node Main.main()V@0")
	}
	calls := n.CallEdges()
	if len(calls) != 1 {
		t.Fatalf("expected one call edge, got %d", len(calls))
	}
	if calls[0].Call.Target.Name != "source" || !calls[0].Call.Static {
		t.Errorf("unexpected call %s", calls[0].Call)
	}
	if n.FallThrough() == nil || n.FallThrough().Offset != 1 {
		t.Errorf("invoke should fall through to offset 1")
	}
	src, _ := g.Entry(calls[0].Call.Target)
	if len(src.Callers()) != 1 {
		t.Errorf("the entry of source should have one caller")
	}
	// A.<init> has no CFA: no call edge
	f := MustParseSignature("A.f(I)LA;")
	ctor, _ := g.Node(Location{Method: f, Offset: 4})
	if len(ctor.CallEdges()) != 0 {
		t.Errorf("calls to unknown methods should not be linked")
	}
}

func TestParseLocation(t *testing.T) {
	loc, err := ParseLocation("Main.main()V@12")
	if err != nil || loc.Offset != 12 || loc.Method.Name != "main" {
		t.Errorf("unexpected location %v (err %v)", loc, err)
	}
	loc, err = ParseLocation("Main.main()V@exit")
	if err != nil || !loc.IsReturnExit() {
		t.Errorf("expected return exit, got %v", loc)
	}
	if loc.String() != "Main.main()V@exit" {
		t.Errorf("unexpected string %q", loc.String())
	}
}
