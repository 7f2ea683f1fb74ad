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

package taint

import (
	"context"
	_ "embed"
	"testing"

	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
	"github.com/awslabs/ar-jvm-tools/analysis/config"
	"github.com/awslabs/ar-jvm-tools/analysis/memloc"
)

//go:embed testdata/program.yaml
var programYaml []byte

//go:embed testdata/config.yaml
var configYaml []byte

func loadTest(t *testing.T) (*config.Config, *cfa.Graph) {
	cfg, err := config.LoadBytes("testdata/config.yaml", configYaml)
	if err != nil {
		t.Fatalf("could not load config: %v", err)
	}
	g, err := cfa.Parse(programYaml)
	if err != nil {
		t.Fatalf("could not parse program: %v", err)
	}
	return cfg, g
}

func analyze(t *testing.T, cfg *config.Config, g *cfa.Graph, entry string) *Run {
	r := NewRun(cfg, g, cfa.MustParseSignature(entry), config.DiscardLogGroup())
	if err := r.Analyze(context.Background()); err != nil {
		t.Fatalf("analysis of %s failed: %v", entry, err)
	}
	if !r.Status.Complete {
		t.Fatalf("analysis of %s did not complete: %s", entry, r.Status)
	}
	return r
}

func TestEndpoints(t *testing.T) {
	cfg, g := loadTest(t)
	tests := []struct {
		entry   string
		offsets []int
		labels  Set
	}{
		{"T.direct()V", []int{1}, Labels("src")},
		{"T.sanitized()V", nil, Set{}},
		{"T.viaField()V", []int{7}, Labels("src")},
		{"T.otherField()V", nil, Set{}},
		{"T.viaCall()V", []int{2}, Labels("src")},
		{"T.analyzedSource()V", []int{1}, Labels("mine")},
		{"T.builder()V", []int{10}, Labels("src")},
		{"T.filtered()V", []int{3}, Labels("mine")},
	}
	for _, test := range tests {
		t.Run(test.entry, func(t *testing.T) {
			eps := analyze(t, cfg, g, test.entry).Endpoints()
			if len(eps) != len(test.offsets) {
				t.Fatalf("expected %d endpoints, got %v", len(test.offsets), eps)
			}
			for i, e := range eps {
				if e.Node.Offset != test.offsets[i] {
					t.Errorf("expected an endpoint at offset %d, got %s", test.offsets[i], e.Node)
				}
				if e.Location != memloc.StackLocation(0) {
					t.Errorf("the argument of the sink is on top of the stack, got %s", e.Location)
				}
				if !e.Sources.Equal(test.labels) {
					t.Errorf("expected sources %s, got %s", test.labels, e.Sources)
				}
			}
		})
	}
}

func TestShallowHeapMergesFields(t *testing.T) {
	cfg, g := loadTest(t)
	cfg.HeapModel = config.HeapModelShallow
	if eps := analyze(t, cfg, g, "T.otherField()V").Endpoints(); len(eps) != 1 {
		t.Errorf("the fields of an object share their taint in the shallow heap, expected 1 endpoint, got %v", eps)
	}
	if eps := analyze(t, cfg, g, "T.viaField()V").Endpoints(); len(eps) != 1 {
		t.Errorf("expected 1 endpoint, got %v", eps)
	}
}

func TestEndpointsAreMemoized(t *testing.T) {
	cfg, g := loadTest(t)
	r := analyze(t, cfg, g, "T.viaCall()V")
	first := r.Endpoints()
	second := r.Endpoints()
	if len(first) != 1 || &first[0] != &second[0] {
		t.Errorf("the endpoints should be computed once")
	}
	if err := r.Analyze(context.Background()); err != nil {
		t.Fatalf("second analysis failed: %v", err)
	}
	if m := r.Metrics(); m.Hits == 0 {
		t.Errorf("the second analysis should reuse the cache, got %s", m)
	}
	if third := r.Endpoints(); len(third) != 1 || &third[0] == &first[0] {
		t.Errorf("the endpoints should be computed again after a new analysis")
	}
}

func TestAnalyzeAll(t *testing.T) {
	cfg, g := loadTest(t)
	entries := []cfa.Signature{
		cfa.MustParseSignature("T.direct()V"),
		cfa.MustParseSignature("T.sanitized()V"),
		cfa.MustParseSignature("T.viaCall()V"),
	}
	runs, err := AnalyzeAll(context.Background(), cfg, g, entries, config.DiscardLogGroup())
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	expected := []int{1, 0, 1}
	for i, r := range runs {
		if r.Entry != entries[i] {
			t.Errorf("runs should be in the order of the entries")
		}
		if n := len(r.Endpoints()); n != expected[i] {
			t.Errorf("%s: expected %d endpoints, got %d", r.Entry, expected[i], n)
		}
	}
	if runs[0].Cache() == runs[2].Cache() {
		t.Errorf("each run should have its own cache")
	}
}

func TestAnalyzeAllUnknownEntry(t *testing.T) {
	cfg, g := loadTest(t)
	_, err := AnalyzeAll(context.Background(), cfg, g, []cfa.Signature{cfa.MustParseSignature("T.none()V")},
		config.DiscardLogGroup())
	if err == nil {
		t.Errorf("expected an error for an unknown entry")
	}
}

func TestRules(t *testing.T) {
	cfg, _ := loadTest(t)
	rules := NewRules(cfg.TaintTrackingProblems...)
	if len(rules.Sources) != 2 || rules.Sources[0].Label != "src" || !rules.Sources[0].TaintsReturn {
		t.Errorf("unexpected sources %v", rules.Sources)
	}
	if !rules.Sanitizes(cfa.MustParseSignature("Main.sanitize(Ljava/lang/String;)Ljava/lang/String;")) {
		t.Errorf("Main.sanitize should be a sanitizer")
	}
	if sinks := rules.SinksOf(cfa.MustParseSignature("Main.sink(Ljava/lang/String;)V")); len(sinks) != 1 {
		t.Errorf("Main.sink should match exactly one sink, got %v", sinks)
	}
	mine := rules.SinksOf(cfa.MustParseSignature("Main.sinkMine(Ljava/lang/String;)V"))
	if len(mine) != 1 || mine[0].Filter(Labels("src", "mine")).Len() != 1 {
		t.Errorf("sinkMine should only accept the mine label")
	}

	call := &cfa.Call{Target: cfa.MustParseSignature("S.f(IJ)V")}
	if locs := (Sink{Args: []int{0}}).StackLocations(call); len(locs) != 1 || locs[0] != memloc.StackLocation(1) {
		t.Errorf("the first argument of f(IJ) is below the second, got %v", locs)
	}
	call = &cfa.Call{Target: cfa.MustParseSignature("S.g(I)V")}
	locs := (Sink{Instance: true}).StackLocations(call)
	if len(locs) != 1 || locs[0] != memloc.StackLocation(1) {
		t.Errorf("the receiver is below the argument, got %v", locs)
	}
	if locs := (Sink{}).StackLocations(call); len(locs) != 1 || locs[0] != memloc.StackLocation(0) {
		t.Errorf("by default, only the arguments are sensitive, got %v", locs)
	}
}

func TestSourceContext(t *testing.T) {
	_, g := loadTest(t)
	cfg, err := config.LoadBytes("context.yaml", []byte(`
taint-tracking-problems:
  - sources:
      - class: Main
        method: source
        label: src
        context: ^T\.viaCall$
    sinks:
      - class: Main
        method: ^sink$
`))
	if err != nil {
		t.Fatalf("could not load config: %v", err)
	}
	if eps := analyze(t, cfg, g, "T.direct()V").Endpoints(); len(eps) != 0 {
		t.Errorf("T.direct is not a context of the source, got %v", eps)
	}
	if eps := analyze(t, cfg, g, "T.viaCall()V").Endpoints(); len(eps) != 1 {
		t.Errorf("T.viaCall is a context of the source, expected 1 endpoint, got %v", eps)
	}
}

func TestSourceCondition(t *testing.T) {
	cfg, g := loadTest(t)
	r := NewRun(cfg, g, cfa.MustParseSignature("T.direct()V"), config.DiscardLogGroup())
	for i := range r.Rules.Sources {
		r.Rules.Sources[i].Condition = func(call *cfa.Call) bool { return call.Site.Offset > 0 }
	}
	if err := r.Analyze(context.Background()); err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	if eps := r.Endpoints(); len(eps) != 0 {
		t.Errorf("the source call at offset 0 does not satisfy the condition, got %v", eps)
	}
}
