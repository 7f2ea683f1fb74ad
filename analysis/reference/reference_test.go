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

package reference

import (
	"testing"

	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
	"github.com/awslabs/ar-jvm-tools/analysis/config"
	"github.com/awslabs/ar-jvm-tools/analysis/memloc"
)

const program = `
methods:
  - signature: A.f(I)LA;
    static: true
    code: |
      iload_0
      ifle L1
      new A
      dup
      invokespecial A.<init>()V
      areturn
      L1:
      aconst_null
      areturn
  - signature: T.main()LB;
    static: true
    code: |
      new A
      dup
      new B
      putfield A.f:LB;
      invokestatic T.get(LA;)LB;
      areturn
  - signature: T.get(LA;)LB;
    static: true
    code: |
      aload_0
      getfield A.f:LB;
      areturn
  - signature: T.read(LA;)LB;
    static: true
    code: |
      aload_0
      getfield A.f:LB;
      astore_1
      aload_0
      getfield A.f:LB;
      areturn
  - signature: T.make()LA;
    static: true
    code: |
      invokestatic X.make()LA;
      areturn
  - signature: T.cond(ILA;)LB;
    static: true
    code: |
      iload_0
      ifle L1
      aload_1
      new B
      putfield A.f:LB;
      L1:
      aload_1
      getfield A.f:LB;
      areturn
  - signature: T.st(I)LB;
    static: true
    code: |
      iload_0
      ifle L1
      new B
      putstatic T.s:LB;
      L1:
      getstatic T.s:LB;
      areturn
  - signature: T.loop(I)LA;
    static: true
    code: |
      aconst_null
      astore_1
      L0:
      iload_0
      ifle L1
      new A
      astore_1
      iinc 0 -1
      goto L0
      L1:
      aload_1
      areturn
`

func loadProgram(t *testing.T) *cfa.Graph {
	g, err := cfa.Parse([]byte(program))
	if err != nil {
		t.Fatalf("could not parse program: %v", err)
	}
	return g
}

func analyze(t *testing.T, cfg *config.Config, sig string) AnalysisResult {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	cfg.LogLevel = int(config.ErrLevel)
	res, err := Analyze(cfg, loadProgram(t), cfa.MustParseSignature(sig))
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	if !res.Status.Complete {
		t.Fatalf("analysis did not complete: %s", res.Status)
	}
	return res
}

func at(sig string, offset int) cfa.Location {
	return cfa.Location{Method: cfa.MustParseSignature(sig), Offset: offset}
}

func TestNewOrNull(t *testing.T) {
	res := analyze(t, nil, "A.f(I)LA;")
	expected := memloc.Refs(
		memloc.Reference{Creation: at("A.f(I)LA;", 2), Site: memloc.StackSite(0)},
		memloc.NullReference,
	)
	if v := res.ExitValue(); !v.Equal(expected) {
		t.Errorf("expected %s, got %s", expected, v)
	}
	if res.Metrics.UnknownTargets != 1 {
		t.Errorf("the constructor has no CFA, expected 1 unknown target, got %d", res.Metrics.UnknownTargets)
	}
}

func TestHeapThroughCall(t *testing.T) {
	res := analyze(t, nil, "T.main()LB;")
	b := memloc.Reference{Creation: at("T.main()LB;", 2), Site: memloc.StackSite(0)}
	if v := res.ExitValue(); !v.Equal(memloc.Refs(b)) {
		t.Errorf("get should return the B created by main, got %s", v)
	}
	if res.Metrics.Misses != 2 {
		t.Errorf("expected main and get to be analyzed, got %d misses", res.Metrics.Misses)
	}
	// the entry of get only holds the objects reachable from its argument
	for _, blk := range res.Cache.Entries() {
		if blk.Signature.Name != "get" {
			continue
		}
		keys := blk.Entry.(*State).Heap.Keys()
		if keys.Len() != 2 {
			t.Errorf("expected the reduced heap of get to hold A and B, got %s", keys)
		}
	}
}

func TestDepthZeroApproximatesCalls(t *testing.T) {
	cfg := config.NewDefault()
	cfg.MaxCallStackDepth = 0
	res := analyze(t, cfg, "T.main()LB;")
	expected := memloc.Refs(memloc.Reference{Creation: at("T.main()LB;", 4), Site: memloc.StackSite(0)})
	if v := res.ExitValue(); !v.Equal(expected) {
		t.Errorf("expected the default result %s, got %s", expected, v)
	}
	if res.Metrics.DepthTruncations != 1 || res.Cache.Len() != 1 {
		t.Errorf("get should not be entered: %s", res.Metrics)
	}
}

func TestFabricatedFieldsAreStable(t *testing.T) {
	sig := "T.read(LA;)LB;"
	res := analyze(t, nil, sig)
	arg := memloc.Reference{Creation: at(sig, 0), Site: memloc.LocalSite(0)}
	field := memloc.FieldReference(arg, "f:LB;")
	if v := res.ExitValue(); !v.Equal(memloc.Refs(field)) {
		t.Errorf("both reads should see the reference fabricated by the first, expected %s, got %s", field, v)
	}
}

func TestWriteOnOneBranch(t *testing.T) {
	cond := "T.cond(ILA;)LB;"
	arg := memloc.Reference{Creation: at(cond, 0), Site: memloc.LocalSite(1)}
	st := "T.st(I)LB;"
	tests := []struct {
		sig      string
		expected memloc.RefSet
	}{
		{cond, memloc.Refs(
			memloc.Reference{Creation: at(cond, 3), Site: memloc.StackSite(0)},
			memloc.FieldReference(arg, "f:LB;"),
		)},
		{st, memloc.Refs(
			memloc.Reference{Creation: at(st, 2), Site: memloc.StackSite(0)},
			memloc.StaticReference(cfa.FieldRef{Class: "T", Name: "s", Descriptor: "LB;"}),
		)},
	}
	for _, test := range tests {
		t.Run(test.sig, func(t *testing.T) {
			res := analyze(t, nil, test.sig)
			if v := res.ExitValue(); !v.Equal(test.expected) {
				t.Errorf("the branch without the write keeps the unknown object, expected %s, got %s",
					test.expected, v)
			}
		})
	}
}

func TestUnknownCallResult(t *testing.T) {
	sig := "T.make()LA;"
	res := analyze(t, nil, sig)
	expected := memloc.Refs(memloc.Reference{Creation: at(sig, 0), Site: memloc.StackSite(0)})
	if v := res.ExitValue(); !v.Equal(expected) {
		t.Errorf("expected %s, got %s", expected, v)
	}
}

func TestLoopTerminates(t *testing.T) {
	sig := "T.loop(I)LA;"
	res := analyze(t, nil, sig)
	expected := memloc.Refs(
		memloc.Reference{Creation: at(sig, 4), Site: memloc.StackSite(0)},
		memloc.NullReference,
	)
	if v := res.ExitValue(); !v.Equal(expected) {
		t.Errorf("expected %s, got %s", expected, v)
	}
}

func TestReferenceIdentity(t *testing.T) {
	a := memloc.Reference{Creation: at("A.f(I)LA;", 2), Site: memloc.StackSite(0)}
	b := memloc.Reference{Creation: at("A.f(I)LA;", 2), Site: memloc.StackSite(0)}
	c := memloc.Reference{Creation: at("A.f(I)LA;", 2), Site: memloc.LocalSite(0)}
	if a != b {
		t.Errorf("references with the same creation and site must be equal")
	}
	if a == c {
		t.Errorf("references first seen at different sites must differ")
	}
}

func TestFabricate(t *testing.T) {
	owner := memloc.Reference{Creation: at("T.read(LA;)LB;", 0), Site: memloc.LocalSite(0)}
	if refs := Fabricate(owner, "x:I"); !refs.IsEmpty() {
		t.Errorf("int fields have no reference, got %s", refs)
	}
	if refs := Fabricate(owner, "[]"); !refs.Equal(memloc.Refs(memloc.ArrayReference(owner))) {
		t.Errorf("unexpected array cell reference %s", refs)
	}
	first, second := Fabricate(owner, "f:LB;"), Fabricate(owner, "f:LB;")
	if !first.Equal(second) || first.Elements()[0].Site != memloc.FieldSite(owner, "f:LB;") {
		t.Errorf("fabricated references only depend on the slot, got %s and %s", first, second)
	}
}

func TestStaticDefault(t *testing.T) {
	f := cfa.FieldRef{Class: "T", Name: "s", Descriptor: "LB;"}
	if refs := (Domain{}).StaticDefault(f); !refs.Equal(memloc.Refs(memloc.StaticReference(f))) {
		t.Errorf("unexpected static reference %s", refs)
	}
	if refs := (Domain{}).StaticDefault(cfa.FieldRef{Class: "T", Name: "i", Descriptor: "I"}); !refs.IsEmpty() {
		t.Errorf("int statics have no reference, got %s", refs)
	}
}
