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
	"fmt"
	"os"
	"strings"

	"github.com/awslabs/ar-jvm-tools/analysis/config"
	"github.com/awslabs/ar-jvm-tools/internal/formatutil"
)

// ReportEndpoint reports an endpoint in the logger, with the trace from its source when there is one, and writes
// the report to a file of the reports directory if the configuration has the ReportPaths flag set
func ReportEndpoint(cfg *config.Config, logger *config.LogGroup, e Endpoint, trace []string) error {
	logger.Infof(" 💀 Sink reached at %s", formatutil.Red(e.Node))
	logger.Infof(" Add new path from %s to %s <== ", formatutil.Green(e.Sources), formatutil.Red(e.Call.Target))
	for i, step := range trace {
		logger.Debugf("TRACE %d: %s", i, step)
	}
	if !cfg.ReportPaths {
		return nil
	}
	tmp, err := os.CreateTemp(cfg.ReportsDir, "flow-*.out")
	if err != nil {
		return fmt.Errorf("could not write report: %w", err)
	}
	defer tmp.Close()
	logger.Infof("Report in %s", tmp.Name())

	var b strings.Builder
	fmt.Fprintf(&b, "Sources: %s\n", e.Sources)
	fmt.Fprintf(&b, "Sink: %s\n", e.Call.Target)
	fmt.Fprintf(&b, "At: %s\n", e.Node)
	fmt.Fprintf(&b, "Location: %s\n", e.Location)
	if len(trace) > 0 {
		b.WriteString("Trace:\n")
		for _, step := range trace {
			b.WriteString(step + "\n")
		}
	}
	if _, err := tmp.WriteString(b.String()); err != nil {
		return fmt.Errorf("could not write report: %w", err)
	}
	return nil
}
