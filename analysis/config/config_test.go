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

package config

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

//go:embed testdata
var testfsys embed.FS

func loadFromTestDir(filename string) (string, *Config, error) {
	filename = filepath.Join("testdata", filename)
	b, err := testfsys.ReadFile(filename)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read file %v: %v", filename, err)
	}
	config, err := LoadBytes(filename, b)
	if err != nil {
		return filename, nil, fmt.Errorf("failed to load file %v: %v", filename, err)
	}
	return filename, config, err
}

func TestCodeIdentifier_emptyMatchesAny(t *testing.T) {
	cid := CompileRegexes(CodeIdentifier{})
	if !cid.MatchMethod("a/B", "m", "()V") {
		t.Errorf("empty identifier should match any method")
	}
}

func TestCodeIdentifier_regexes(t *testing.T) {
	cid := CompileRegexes(CodeIdentifier{Class: "java/io/.*", Method: "(write)|(print)"})
	if !cid.MatchMethod("java/io/PrintStream", "println", "(Ljava/lang/String;)V") {
		t.Errorf("%s should match java/io/PrintStream.println", cid)
	}
	if cid.MatchMethod("java/lang/String", "write", "()V") {
		t.Errorf("%s should not match java/lang/String.write", cid)
	}
}

func TestCodeIdentifier_unanchored(t *testing.T) {
	prefix := CompileRegexes(CodeIdentifier{Class: "Main", Method: "sink"})
	if !prefix.MatchMethod("Main", "sinkMine", "(Ljava/lang/String;)V") {
		t.Errorf("%s should match Main.sinkMine: regexes are not anchored", prefix)
	}
	exact := CompileRegexes(CodeIdentifier{Class: "Main", Method: "^sink$"})
	if exact.MatchMethod("Main", "sinkMine", "(Ljava/lang/String;)V") {
		t.Errorf("%s should not match Main.sinkMine", exact)
	}
	if !exact.MatchMethod("Main", "sink", "(Ljava/lang/String;)V") {
		t.Errorf("%s should match Main.sink", exact)
	}
}

func TestCodeIdentifier_descriptorsAreExact(t *testing.T) {
	cid := CompileRegexes(CodeIdentifier{Method: "sink", Descriptor: "(Ljava/lang/String;)V"})
	if !cid.MatchMethod("Main", "sink", "(Ljava/lang/String;)V") {
		t.Errorf("%s should match its own descriptor", cid)
	}
	if cid.MatchMethod("Main", "sink", "(I)V") {
		t.Errorf("%s should not match another descriptor", cid)
	}
}

func TestCodeIdentifier_fields(t *testing.T) {
	cid := CompileRegexes(CodeIdentifier{Class: "Main", Field: "secret.*"})
	if !cid.MatchField("Main", "secretKey") {
		t.Errorf("%s should match Main.secretKey", cid)
	}
	if (CodeIdentifier{Method: "m", Field: "f"}).MatchField("Main", "f") {
		t.Errorf("method identifiers should not match fields")
	}
}

func TestNewDefault(t *testing.T) {
	c := NewDefault()
	if c.MaxCallStackDepth != DefaultMaxCallStackDepth {
		t.Errorf("Default for MaxCallStackDepth should be %d", DefaultMaxCallStackDepth)
	}
	if !c.ReduceHeap {
		t.Errorf("Default for ReduceHeap should be true")
	}
	if c.Waitlist != WaitlistDFS || c.HeapModel != HeapModelTree {
		t.Errorf("unexpected default waitlist %q or heap model %q", c.Waitlist, c.HeapModel)
	}
	if c.TimeoutDuration() != 0 {
		t.Errorf("Default should have no timeout")
	}
}

func TestLoadNonExistentFileReturnsError(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "does-not-exist.yaml"))
	if c != nil || err == nil {
		t.Errorf("Expected error and nil value when trying to load non existent file.")
	}
}

func TestLoadBadFormatFileReturnsError(t *testing.T) {
	_, config, err := loadFromTestDir("bad_format.yaml")
	if config != nil || err == nil {
		t.Errorf("Expected error and nil value when trying to load a badly formatted file.")
	}
}

func TestLoadBadOptionsReturnsAllErrors(t *testing.T) {
	_, config, err := loadFromTestDir("bad_waitlist.yaml")
	if config != nil || err == nil {
		t.Fatalf("Expected error when loading unknown waitlist and heap model")
	}
	if !strings.Contains(err.Error(), "random") || !strings.Contains(err.Error(), "flat") {
		t.Errorf("Expected both errors to be reported, got %v", err)
	}
	_, config, err = loadFromTestDir("bad_taints.yaml")
	if config != nil || err == nil {
		t.Errorf("Expected error when loading an unknown source taint target")
	}
	_, config, err = loadFromTestDir("bad_context.yaml")
	if config != nil || err == nil || !strings.Contains(err.Error(), "invalid context") {
		t.Errorf("Expected error when loading a source with an invalid context, got %v", err)
	}
}

func TestSourceContext(t *testing.T) {
	config, err := LoadBytes("context.yaml", []byte(`
taint-tracking-problems:
  - sources:
      - method: source
        context: ^T\.(direct|viaCall)$
      - method: other
`))
	if err != nil {
		t.Fatalf("Could not load config: %v", err)
	}
	sources := config.TaintTrackingProblems[0].Sources
	tests := []struct {
		source int
		class  string
		name   string
		want   bool
	}{
		{0, "T", "direct", true},
		{0, "T", "viaCall", true},
		{0, "T", "directly", false},
		{0, "U", "direct", false},
		{1, "U", "anything", true},
	}
	for _, test := range tests {
		if got := sources[test.source].MatchContext(test.class, test.name); got != test.want {
			t.Errorf("source %d in %s.%s: expected %v, got %v", test.source, test.class, test.name, test.want, got)
		}
	}
	if !(SourceSpec{Context: "T.direct"}).MatchContext("T", "direct") {
		t.Errorf("An uncompiled context matches the caller exactly")
	}
}

func TestLoadWithReports(t *testing.T) {
	_, config, err := loadFromTestDir("config_with_reports.yaml")
	if err != nil {
		t.Fatalf("Could not load config: %v", err)
	}
	defer os.Remove("example-report")
	if config.ReportsDir != "example-report" || !config.ReportPaths {
		t.Errorf("Expected reports-dir example-report and report-paths, got %q", config.ReportsDir)
	}
	if _, err := os.Stat("example-report"); err != nil {
		t.Errorf("Expected reports dir to be created: %v", err)
	}
}

//gocyclo:ignore
func TestLoadFullConfig(t *testing.T) {
	fileName, config, err := loadFromTestDir("config.yaml")
	if config == nil || err != nil {
		t.Fatalf("Could not load %s: %v", fileName, err)
	}
	if config.LogLevel != int(DebugLevel) {
		t.Error("config should have set debug")
	}
	if config.MaxCallStackDepth != 3 {
		t.Error("config should set max-call-stack-depth to 3")
	}
	if config.Waitlist != WaitlistTopological {
		t.Error("config should set the topological waitlist")
	}
	if config.MaxEvaluations != 10000 || config.MaxAlarms != 16 {
		t.Error("config should set max-evaluations and max-alarms")
	}
	if config.TimeoutDuration() != 30*time.Second {
		t.Errorf("config should set a timeout of 30s, got %v", config.TimeoutDuration())
	}
	if config.HeapModel != HeapModelShallow {
		t.Error("config should set the shallow heap model")
	}
	if !config.ReduceHeap {
		t.Error("reduce-heap should keep its default value")
	}
	if len(config.TaintTrackingProblems) != 1 {
		t.Fatalf("config should have one taint problem")
	}
	ts := config.TaintTrackingProblems[0]
	if len(ts.Sources) != 2 || len(ts.Sinks) != 2 || len(ts.Sanitizers) != 1 {
		t.Fatalf("config should have two sources, two sinks and one sanitizer")
	}
	if ts.Sources[0].Label != "secret" || !ts.Sources[0].TaintsTarget(TaintReturn) ||
		ts.Sources[0].TaintsTarget(TaintArgs) {
		t.Errorf("first source should taint its return value only")
	}
	if !ts.Sources[1].TaintsTarget(TaintArgs) || ts.Sources[1].TaintsTarget(TaintThis) {
		t.Errorf("second source should taint its return value and arguments")
	}
	if !config.IsSomeSource("Main", "source", "()Ljava/lang/String;") {
		t.Errorf("Main.source should be a source")
	}
	if !config.IsSomeSink("java/io/PrintStream", "write", "(I)V") {
		t.Errorf("java/io/PrintStream.write should be a sink")
	}
	if !ts.IsSanitizer("Main", "sanitize", "(Ljava/lang/String;)Ljava/lang/String;") {
		t.Errorf("Main.sanitize should be a sanitizer")
	}
	if !ts.Sinks[1].Instance || len(ts.Sinks[1].Labels) != 1 {
		t.Errorf("second sink should be an instance sink for label secret")
	}
}

func TestLoadToml(t *testing.T) {
	fileName, config, err := loadFromTestDir("config.toml")
	if config == nil || err != nil {
		t.Fatalf("Could not load %s: %v", fileName, err)
	}
	if config.LogLevel != int(TraceLevel) {
		t.Error("toml config should have set trace")
	}
	if config.MaxCallStackDepth != UnboundedCallStackDepth {
		t.Error("toml config should set an unbounded call stack depth")
	}
	if config.ReduceHeap {
		t.Error("toml config should disable heap reduction")
	}
	if !config.IsSomeSink("Main", "sink", "(Ljava/lang/String;)V") {
		t.Error("toml config should have Main.sink as a sink")
	}
	if config.IsSomeSink("Main", "sink", "(I)V") {
		t.Error("toml config sink should only match its descriptor")
	}
	if !config.IsSomeSource("Main", "source", "()Ljava/lang/String;") {
		t.Error("toml config should have Main.source as a source")
	}
}

func TestLogGroupLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLevelLogGroup(WarnLevel, &buf)
	l.Infof("not printed")
	l.Warnf("printed %d", 1)
	l.Errorf("printed %d", 2)
	out := buf.String()
	if strings.Contains(out, "not printed") {
		t.Errorf("info messages should not be printed at warn level")
	}
	if !strings.Contains(out, "[WARN] ") || !strings.Contains(out, "[ERROR] ") {
		t.Errorf("expected warn and error prefixes, got %q", out)
	}
	c := NewDefault()
	c.SilenceWarn = true
	if NewLogGroup(c).Level() != ErrLevel {
		t.Errorf("silence-warn should restrict logging to errors")
	}
}
