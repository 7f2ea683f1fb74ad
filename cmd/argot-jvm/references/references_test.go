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

package references

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/awslabs/ar-jvm-tools/cmd/argot-jvm/tools"
)

const program = `methods:
  - signature: T.main()LA;
    static: true
    code: |
      new A
      invokestatic T.id(LA;)LA;
      areturn
  - signature: T.id(LA;)LA;
    static: true
    code: |
      aload_0
      areturn
`

func TestRun(t *testing.T) {
	file := filepath.Join(t.TempDir(), "program.yaml")
	if err := os.WriteFile(file, []byte(program), 0o600); err != nil {
		t.Fatalf("could not write program: %v", err)
	}
	flags, err := tools.NewCommonFlags("references", []string{"-entry", "T.main()LA;", file}, Usage)
	if err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	var out bytes.Buffer
	if err := Run(flags, &out); err != nil {
		t.Fatalf("references failed: %v", err)
	}
	for _, expected := range []string{
		"T.main()LA;@0#stack[0]",
		"T.id(LA;)LA;: 1 blocks, 0 superseded",
		"T.main()LA;: 1 blocks, 0 superseded",
	} {
		if !strings.Contains(out.String(), expected) {
			t.Errorf("expected %q in the output, got %s", expected, out.String())
		}
	}
}
