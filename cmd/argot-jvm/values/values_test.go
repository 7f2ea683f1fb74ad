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

package values

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/awslabs/ar-jvm-tools/cmd/argot-jvm/tools"
)

const program = `methods:
  - signature: Main.greeting()Ljava/lang/String;
    static: true
    code: |
      ldc "hello, "
      ldc "world"
      invokevirtual java/lang/String.concat(Ljava/lang/String;)Ljava/lang/String;
      areturn
`

func TestRun(t *testing.T) {
	file := filepath.Join(t.TempDir(), "program.yaml")
	if err := os.WriteFile(file, []byte(program), 0o600); err != nil {
		t.Fatalf("could not write program: %v", err)
	}
	flags, err := tools.NewCommonFlags("values", []string{"-entry", "Main.greeting()Ljava/lang/String;", file}, Usage)
	if err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	var out bytes.Buffer
	if err := Run(flags, &out); err != nil {
		t.Fatalf("values failed: %v", err)
	}
	if !strings.Contains(out.String(), `"hello, world"`) {
		t.Errorf("expected the concatenation in the output, got %s", out.String())
	}
	if !strings.Contains(out.String(), "1 model evaluations") {
		t.Errorf("expected one model evaluation, got %s", out.String())
	}
}
