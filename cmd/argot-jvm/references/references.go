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

// Package references implements the frontend to the reference analysis.
package references

import (
	"context"
	"fmt"
	"io"

	"github.com/awslabs/ar-jvm-tools/analysis/bam"
	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
	"github.com/awslabs/ar-jvm-tools/analysis/config"
	"github.com/awslabs/ar-jvm-tools/analysis/reference"
	"github.com/awslabs/ar-jvm-tools/cmd/argot-jvm/tools"
	"github.com/awslabs/ar-jvm-tools/internal/formatutil"
)

// Usage of the references subcommand
const Usage = ` Print the references returned by entry methods of a program.
Usage:
  argot-jvm references [options] <program file>
Examples:
  % argot-jvm references -entry 'Main.create()LA;' program.yaml
`

// Run runs the reference analysis of each entry and prints the references it returns to w
func Run(flags tools.CommonFlags, w io.Writer) error {
	cfg, err := tools.LoadConfig(flags)
	if err != nil {
		return err
	}
	logger := config.NewLogGroup(cfg)
	program, entries, err := tools.LoadProgram(flags)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		res, err := reference.AnalyzeContext(context.Background(), cfg, program, entry, logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %s\n", formatutil.Bold(entry), formatutil.Cyan(res.ExitValue()))
		fmt.Fprintf(w, "\t%s, %d blocks (%s)\n", res.Status, res.Cache.Len(), res.Metrics)
		printBlocks(w, program, res.Cache)
	}
	return nil
}

// printBlocks prints the number of blocks of each method in the cache, and how many of them were superseded by a
// later analysis of the method
func printBlocks(w io.Writer, program *cfa.Graph, cache *bam.Cache) {
	current := map[cfa.Signature]int{}
	for _, b := range cache.Entries() {
		current[b.Signature]++
	}
	for _, sig := range program.Methods() {
		if h := cache.History(sig); len(h) > 0 {
			fmt.Fprintf(w, "		%s: %d blocks, %d superseded\n", sig, current[sig], len(h)-current[sig])
		}
	}
}
