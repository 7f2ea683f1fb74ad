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

// Package values implements the frontend to the value analysis.
package values

import (
	"context"
	"fmt"
	"io"

	"github.com/awslabs/ar-jvm-tools/analysis/config"
	"github.com/awslabs/ar-jvm-tools/analysis/value"
	"github.com/awslabs/ar-jvm-tools/cmd/argot-jvm/tools"
	"github.com/awslabs/ar-jvm-tools/internal/formatutil"
)

// Usage of the values subcommand
const Usage = ` Print the values returned by entry methods of a program.
Usage:
  argot-jvm values [options] <program file>
Examples:
  % argot-jvm values -entry 'Main.greeting()Ljava/lang/String;' program.yaml
`

// Run runs the value analysis of each entry and prints the value it returns to w, with the counters of the models
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
		res, err := value.AnalyzeContext(context.Background(), cfg, program, entry, logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %s\n", formatutil.Bold(entry), formatutil.Cyan(res.ExitValue()))
		fmt.Fprintf(w, "\t%s, %d blocks (%s)\n", res.Status, res.Cache.Len(), res.Metrics)
		fmt.Fprintf(w, "\t%d model evaluations, %d model errors\n", res.Factory.Evaluations, res.Factory.ModelErrors)
	}
	return nil
}
