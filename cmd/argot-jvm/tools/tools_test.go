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

package tools

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/awslabs/ar-jvm-tools/analysis/config"
)

func validateHint(t *testing.T, errorMsg string, containedHint string) {
	hint := HintForErrorMessage(errorMsg)
	if !strings.Contains(hint, containedHint) {
		t.Fatalf("incorrect hint; check and update error message if necessary")
	}
}

func TestHintForFlagAfterProgram(t *testing.T) {
	errorMsg := "error: could not load program: expected one program file, got 3"
	validateHint(t, errorMsg, "all command line flags should be before the path")
}

func TestHintForFailedLoadProgram(t *testing.T) {
	errorMsg := "error: could not load program: could not unmarshal program: yaml: line 1"
	validateHint(t, errorMsg, "YAML description")
}

func TestHintForInvalidEntry(t *testing.T) {
	validateHint(t, "error: invalid entry \"main\": bad signature", "method signatures")
}

func TestCommonFlags(t *testing.T) {
	flags, err := NewCommonFlags("taint", []string{"-entry", "A.a()V", "-entry", "B.b()V", "-max-depth", "-1",
		"-verbose", "program.yaml"}, "usage")
	if err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	if len(flags.Entries) != 2 || flags.Entries[1] != "B.b()V" {
		t.Errorf("expected two entries, got %v", flags.Entries)
	}
	cfg, err := LoadConfig(flags)
	if err != nil {
		t.Fatalf("failed to load default config: %v", err)
	}
	if cfg.MaxCallStackDepth != -1 || cfg.LogLevel != int(config.DebugLevel) {
		t.Errorf("flags should override the config, got depth %d and level %d", cfg.MaxCallStackDepth,
			cfg.LogLevel)
	}
}

func TestLoadProgram(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "program.yaml")
	program := "methods:\n  - signature: A.a()V\n    static: true\n    code: |\n      return\n"
	if err := os.WriteFile(file, []byte(program), 0o600); err != nil {
		t.Fatalf("could not write program: %v", err)
	}
	flags, err := NewCommonFlags("taint", []string{"-entry", "A.a()V", file}, "usage")
	if err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	g, entries, err := LoadProgram(flags)
	if err != nil {
		t.Fatalf("could not load program: %v", err)
	}
	if len(entries) != 1 || len(g.Methods()) != 1 {
		t.Errorf("expected one entry in a program of one method")
	}
	flags.Entries = []string{"A.b()V"}
	if _, _, err := LoadProgram(flags); err == nil {
		t.Errorf("expected an error for an entry that is not in the program")
	}
}
