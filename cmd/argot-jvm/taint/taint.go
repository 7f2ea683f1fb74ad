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

// Package taint implements the frontend to the taint analysis.
package taint

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/awslabs/ar-jvm-tools/analysis"
	"github.com/awslabs/ar-jvm-tools/analysis/config"
	"github.com/awslabs/ar-jvm-tools/analysis/taint"
	"github.com/awslabs/ar-jvm-tools/analysis/witness"
	"github.com/awslabs/ar-jvm-tools/cmd/argot-jvm/tools"
	"github.com/awslabs/ar-jvm-tools/internal/formatutil"
)

// Usage of the taint subcommand
const Usage = ` Perform taint analysis on a program.
Usage:
  argot-jvm taint [options] <program file>
Examples:
  % argot-jvm taint -config config.yaml -entry 'Main.main([Ljava/lang/String;)V' program.yaml
`

// Run runs the taint analysis with flags.
func Run(flags tools.CommonFlags) error {
	cfg, err := tools.LoadConfig(flags)
	if err != nil {
		return err
	}
	logger := config.NewLogGroup(cfg)
	if len(cfg.TaintTrackingProblems) == 0 {
		return fmt.Errorf("no taint tracking problem in the config")
	}

	logger.Infof("%s", formatutil.Faint("Argot-jvm taint tool - "+analysis.Version))
	logger.Infof("%s", formatutil.Faint("Reading program"))
	program, entries, err := tools.LoadProgram(flags)
	if err != nil {
		return err
	}

	ctx := context.Background()
	start := time.Now()
	runs, err := taint.AnalyzeAll(ctx, cfg, program, entries, logger)
	if err != nil {
		return fmt.Errorf("taint analysis failed: %v", err)
	}
	logger.Infof("")
	logger.Infof(strings.Repeat("*", 80))
	logger.Infof("Analysis took %3.4f s", time.Since(start).Seconds())
	logger.Infof("")

	found := 0
	for _, run := range runs {
		n, err := report(ctx, cfg, logger, run)
		if err != nil {
			return err
		}
		found += n
	}
	if found == 0 {
		logger.Infof("RESULT:\n\t\t%s", formatutil.Green("No taint flows detected ✓")) // safe %s
	} else {
		logger.Errorf("RESULT:\n\t\t%s", formatutil.Red("Taint flows detected!")) // safe %s
	}
	return nil
}

// report reports the endpoints of the run with their traces and returns the number of endpoints
func report(ctx context.Context, cfg *config.Config, logger *config.LogGroup, run *taint.Run) (int, error) {
	if !run.Status.Complete {
		logger.Warnf("%s: %s, results are partial", run.Entry, formatutil.Yellow(run.Status))
	}
	endpoints := run.Endpoints()
	traces, err := witness.Reconstruct(ctx, run, endpoints, witness.Options{})
	if err != nil {
		return 0, fmt.Errorf("trace reconstruction failed: %v", err)
	}
	for _, e := range endpoints {
		var lines []string
		for _, t := range traces {
			if t.Endpoint.Node == e.Node && t.Endpoint.Location == e.Location && t.Endpoint.Block == e.Block {
				lines = t.Lines()
				break
			}
		}
		if err := taint.ReportEndpoint(cfg, logger, e, lines); err != nil {
			return 0, err
		}
	}
	for _, t := range traces {
		logger.Debugf("%s", t)
	}
	return len(endpoints), nil
}
