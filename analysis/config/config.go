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
	"errors"
	"fmt"
	"os"
	"path"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/awslabs/ar-jvm-tools/internal/funcutil"
	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	return Load(configFile)
}

// Config contains the options of the analyses and the taint tracking problems.
// To add elements to a config file, add fields to this struct.
// If some field is not defined in the config file, it will keep its default value.
// private fields are not populated from a config file, but computed after initialization
type Config struct {
	Options `yaml:"options" toml:"options"`

	sourceFile string

	// timeout is the parsed value of Options.Timeout
	timeout time.Duration

	// TaintTrackingProblems lists the taint tracking specifications
	TaintTrackingProblems []TaintSpec `yaml:"taint-tracking-problems" toml:"taint-tracking-problems"`
}

// TaintSpec contains the code identifiers of a specific taint tracking problem
type TaintSpec struct {
	// Sources is the list of sources for the taint analysis
	Sources []SourceSpec `yaml:"sources" toml:"sources"`

	// Sinks is the list of sinks for the taint analysis
	Sinks []SinkSpec `yaml:"sinks" toml:"sinks"`

	// Sanitizers is the list of sanitizers for the taint analysis: the results of calls to sanitizers are never
	// tainted
	Sanitizers []CodeIdentifier `yaml:"sanitizers" toml:"sanitizers"`
}

// SourceSpec identifies a source method and what its calls taint
type SourceSpec struct {
	CodeIdentifier `yaml:",inline"`

	// Taints lists what calls to the source taint, among "return", "this", "args" and "globals".
	// The default is "return".
	Taints []string `yaml:"taints" toml:"taints"`

	// Context is a regex on the caller of the source, written Class.name. Only the calls made from matching
	// methods are sources. Empty means any caller.
	Context string `yaml:"context" toml:"context"`

	contextRegex *regexp.Regexp
}

// SinkSpec identifies a sink method and which of its operands are sensitive
type SinkSpec struct {
	CodeIdentifier `yaml:",inline"`

	// Args are the indices of the sensitive arguments, the receiver excluded. When Args is empty and neither
	// Instance nor Globals is set, all the arguments are sensitive.
	Args []int `yaml:"args" toml:"args"`

	// Instance is true when the receiver is sensitive
	Instance bool `yaml:"instance" toml:"instance"`

	// Globals is true when the static fields are sensitive
	Globals bool `yaml:"globals" toml:"globals"`

	// Labels restricts the sink to taints coming from the sources with those labels. Empty means any source.
	Labels []string `yaml:"labels" toml:"labels"`
}

// Options of the analyses
type Options struct {
	// ReportsDir is the directory where all the reports will be stored. If the config file does not specify a
	// ReportsDir but sets ReportPaths to true, then ReportsDir will be created next to the config file.
	ReportsDir string `yaml:"reports-dir" toml:"reports-dir"`

	// ReportPaths specifies whether the witness traces should be reported in separate files. For each trace, a new
	// file named trace-*.out will be generated in the reports directory.
	ReportPaths bool `yaml:"report-paths" toml:"report-paths"`

	// MaxCallStackDepth bounds the depth of the call stack of the interprocedural analyses.
	// 0 means that only the entry method is analyzed, a negative value means that the depth is unbounded.
	MaxCallStackDepth int `yaml:"max-call-stack-depth" toml:"max-call-stack-depth"`

	// Waitlist is the exploration order of the fixpoint algorithm: "dfs", "bfs" or "topological"
	Waitlist string `yaml:"waitlist" toml:"waitlist"`

	// MaxEvaluations bounds the number of states evaluated by each fixpoint computation. If MaxEvaluations <= 0, it
	// is ignored.
	MaxEvaluations int `yaml:"max-evaluations" toml:"max-evaluations"`

	// Timeout bounds the duration of each analysis run, e.g. "30s". Empty means no timeout.
	Timeout string `yaml:"timeout" toml:"timeout"`

	// ReduceHeap specifies whether the heap is reduced to the objects reachable from the arguments when entering a
	// method. Reduced heaps make more cache hits.
	ReduceHeap bool `yaml:"reduce-heap" toml:"reduce-heap"`

	// HeapModel is the heap model of the taint analysis: "tree" or "shallow"
	HeapModel string `yaml:"heap-model" toml:"heap-model"`

	// MaxAlarms sets a limit for the number of traces reported by an analysis. If MaxAlarms > 0, then at most
	// MaxAlarms will be reported. Otherwise, if MaxAlarms <= 0, it is ignored.
	MaxAlarms int `yaml:"max-alarms" toml:"max-alarms"`

	// Loglevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level" toml:"log-level"`

	// Suppress warnings
	SilenceWarn bool `yaml:"silence-warn" toml:"silence-warn"`
}

// NewDefault returns a default config.
func NewDefault() *Config {
	return &Config{
		sourceFile:            "",
		TaintTrackingProblems: nil,
		Options: Options{
			ReportsDir:        "",
			ReportPaths:       false,
			MaxCallStackDepth: DefaultMaxCallStackDepth,
			Waitlist:          WaitlistDFS,
			MaxEvaluations:    0,
			Timeout:           "",
			ReduceHeap:        true,
			HeapModel:         HeapModelTree,
			MaxAlarms:         0,
			LogLevel:          int(InfoLevel),
			SilenceWarn:       false,
		},
	}
}

// Load reads a configuration from a file. The file is read as yaml, or as toml if it is not valid yaml.
func Load(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	return LoadBytes(filename, b)
}

// LoadBytes reads a configuration from the contents b of the file filename
//
//gocyclo:ignore
func LoadBytes(filename string, b []byte) (*Config, error) {
	cfg := NewDefault()
	errYaml := yaml.Unmarshal(b, cfg)
	if errYaml != nil {
		cfg = NewDefault()
		errToml := toml.Unmarshal(b, cfg)
		if errToml != nil {
			return nil, fmt.Errorf("could not unmarshal config file, not as yaml: %w, not as toml: %v",
				errYaml, errToml)
		}
	}

	cfg.sourceFile = filename

	if cfg.ReportPaths {
		if err := setReportsDir(cfg, filename); err != nil {
			return nil, err
		}
	}

	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}

	var errs []error
	switch cfg.Waitlist {
	case "":
		cfg.Waitlist = WaitlistDFS
	case WaitlistDFS, WaitlistBFS, WaitlistTopological:
	default:
		errs = append(errs, fmt.Errorf("unknown waitlist %q", cfg.Waitlist))
	}

	switch cfg.HeapModel {
	case "":
		cfg.HeapModel = HeapModelTree
	case HeapModelTree, HeapModelShallow:
	default:
		errs = append(errs, fmt.Errorf("unknown heap model %q", cfg.HeapModel))
	}

	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid timeout: %w", err))
		}
		cfg.timeout = d
	}

	for i := range cfg.TaintTrackingProblems {
		tSpec := &cfg.TaintTrackingProblems[i]
		tSpec.Sanitizers = funcutil.Map(tSpec.Sanitizers, CompileRegexes)
		for j := range tSpec.Sources {
			tSpec.Sources[j].CodeIdentifier = CompileRegexes(tSpec.Sources[j].CodeIdentifier)
			if c := tSpec.Sources[j].Context; c != "" {
				re, err := regexp.Compile(c)
				if err != nil {
					errs = append(errs, fmt.Errorf("source %s: invalid context: %w", tSpec.Sources[j], err))
				}
				tSpec.Sources[j].contextRegex = re
			}
			for _, t := range tSpec.Sources[j].Taints {
				if !funcutil.Contains(sourceTaints, t) {
					errs = append(errs, fmt.Errorf("source %s: unknown taint target %q", tSpec.Sources[j], t))
				}
			}
		}
		for j := range tSpec.Sinks {
			tSpec.Sinks[j].CodeIdentifier = CompileRegexes(tSpec.Sinks[j].CodeIdentifier)
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func setReportsDir(c *Config, filename string) error {
	if c.ReportsDir == "" {
		tmpdir, err := os.MkdirTemp(path.Dir(filename), "*-report")
		if err != nil {
			return fmt.Errorf("could not create temp dir for reports")
		}
		c.ReportsDir = tmpdir
	} else {
		err := os.Mkdir(c.ReportsDir, 0750)
		if err != nil {
			if !os.IsExist(err) {
				return fmt.Errorf("could not create directory %s", c.ReportsDir)
			}
		}
	}
	return nil
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// TimeoutDuration returns the timeout of each analysis run, 0 when there is none
func (c Config) TimeoutDuration() time.Duration {
	return c.timeout
}

// Below are functions used to query the configuration on specific facts

// IsSomeSource returns true if the method matches any source in the config
func (c Config) IsSomeSource(class, method, descriptor string) bool {
	for _, ts := range c.TaintTrackingProblems {
		if ts.IsSource(class, method, descriptor) {
			return true
		}
	}
	return false
}

// IsSomeSink returns true if the method matches any sink in the config
func (c Config) IsSomeSink(class, method, descriptor string) bool {
	for _, ts := range c.TaintTrackingProblems {
		if ts.IsSink(class, method, descriptor) {
			return true
		}
	}
	return false
}

// IsSource returns true if the method matches a source specification of the taint problem
func (ts TaintSpec) IsSource(class, method, descriptor string) bool {
	return funcutil.Exists(ts.Sources, func(s SourceSpec) bool { return s.MatchMethod(class, method, descriptor) })
}

// IsSink returns true if the method matches a sink specification of the taint problem
func (ts TaintSpec) IsSink(class, method, descriptor string) bool {
	return funcutil.Exists(ts.Sinks, func(s SinkSpec) bool { return s.MatchMethod(class, method, descriptor) })
}

// IsSanitizer returns true if the method matches a sanitizer specification of the taint problem
func (ts TaintSpec) IsSanitizer(class, method, descriptor string) bool {
	return ExistsCid(ts.Sanitizers, func(cid CodeIdentifier) bool { return cid.MatchMethod(class, method, descriptor) })
}

// MatchContext returns true if calls made from the method class.name can be sources
func (s SourceSpec) MatchContext(class, name string) bool {
	switch {
	case s.Context == "":
		return true
	case s.contextRegex != nil:
		return s.contextRegex.MatchString(class + "." + name)
	}
	return s.Context == class+"."+name
}

// TaintsTarget returns true if calls to the source taint the target, one of the Taint* constants
func (s SourceSpec) TaintsTarget(target string) bool {
	if len(s.Taints) == 0 {
		return target == TaintReturn
	}
	return funcutil.Contains(s.Taints, target)
}
