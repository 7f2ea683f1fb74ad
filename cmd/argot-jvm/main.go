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

package main

import (
	"fmt"
	"os"

	"github.com/awslabs/ar-jvm-tools/analysis"
	"github.com/awslabs/ar-jvm-tools/cmd/argot-jvm/references"
	"github.com/awslabs/ar-jvm-tools/cmd/argot-jvm/taint"
	"github.com/awslabs/ar-jvm-tools/cmd/argot-jvm/tools"
	"github.com/awslabs/ar-jvm-tools/cmd/argot-jvm/values"
)

const usage = `Argot-jvm: Automated Reasoning JVM Tools
Usage:
  argot-jvm [tool] [options] <program file>
Tools:
  - taint: performs a taint analysis of entry methods and reconstructs the traces from sources to sinks
  - references: prints the references returned by entry methods
  - values: prints the values returned by entry methods
  - version: prints the version of the tools
Examples:
  Run the taint analysis: argot-jvm taint -config config.yaml -entry 'Main.main([Ljava/lang/String;)V' program.yaml`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "error: expected subcommand\n%s\n", usage)
		os.Exit(2)
	}

	// hardcode help flag
	if snd := os.Args[1]; snd == "-help" || snd == "--help" {
		fmt.Println(usage)
		return
	}

	args := os.Args[2:]
	switch cmd := os.Args[1]; cmd {
	case "taint":
		flags, err := tools.NewCommonFlags("taint", args, taint.Usage)
		if err != nil {
			errExit(err)
		}
		if err := taint.Run(flags); err != nil {
			errExit(err)
		}
	case "references":
		flags, err := tools.NewCommonFlags("references", args, references.Usage)
		if err != nil {
			errExit(err)
		}
		if err := references.Run(flags, os.Stdout); err != nil {
			errExit(err)
		}
	case "values":
		flags, err := tools.NewCommonFlags("values", args, values.Usage)
		if err != nil {
			errExit(err)
		}
		if err := values.Run(flags, os.Stdout); err != nil {
			errExit(err)
		}
	case "version", "-version", "--version":
		fmt.Println(analysis.Version)
	default:
		fmt.Fprintf(os.Stderr, "error: unexpected command: %v\n", cmd)
		fmt.Fprintf(os.Stderr, "usage:\n%s\n", usage)
		os.Exit(2)
	}
}

func errExit(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	hint := tools.HintForErrorMessage(err.Error())
	if hint != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}
	os.Exit(2)
}
