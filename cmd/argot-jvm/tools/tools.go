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

// Package tools contains utility types and functions for the argot-jvm tool frontends.
package tools

import (
	"flag"
	"fmt"
	"os"
	"regexp"

	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
	"github.com/awslabs/ar-jvm-tools/analysis/config"
)

// Entries represents the entry method signatures given on the command line
type Entries []string

func (e *Entries) String() string {
	if e == nil {
		return "[]"
	}
	return fmt.Sprintf("%v", []string(*e))
}

// Set adds value to e.
// This method satisfies the flag.Value interface.
func (e *Entries) Set(value string) error {
	*e = append(*e, value)
	return nil
}

// UnparsedCommonFlags represents an unparsed CLI sub-command flags.
type UnparsedCommonFlags struct {
	FlagSet    *flag.FlagSet
	ConfigPath *string
	Verbose    *bool
	MaxDepth   *int
	Entries    *Entries
}

// NewUnparsedCommonFlags returns an unparsed flag set with a given name, with the flags -config, -entry, -verbose
// and -max-depth.
func NewUnparsedCommonFlags(name string) UnparsedCommonFlags {
	cmd := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := cmd.String("config", "", "config file path for analysis")
	verbose := cmd.Bool("verbose", false, "verbose printing on standard output")
	maxDepth := cmd.Int("max-depth", 0, "override the maximum call stack depth of the config (negative: unbounded)")
	entries := &Entries{}
	cmd.Var(entries, "entry", "signature of an entry method, e.g. Main.main([Ljava/lang/String;)V (repeatable)")
	return UnparsedCommonFlags{
		FlagSet:    cmd,
		ConfigPath: configPath,
		Verbose:    verbose,
		MaxDepth:   maxDepth,
		Entries:    entries,
	}
}

// CommonFlags represents a parsed CLI sub-command flags.
// E.g., for the command `argot-jvm taint ...`, "taint" is the sub-command.
type CommonFlags struct {
	FlagSet    *flag.FlagSet
	ConfigPath string
	Verbose    bool
	MaxDepth   int
	Entries    []string
}

// NewCommonFlags returns a parsed flag set with a given name.
// Returns an error if args are invalid.
// Prints cmdUsage along with flag docs as the --help message.
func NewCommonFlags(name string, args []string, cmdUsage string) (CommonFlags, error) {
	flags := NewUnparsedCommonFlags(name)
	SetUsage(flags.FlagSet, cmdUsage)
	if err := flags.FlagSet.Parse(args); err != nil {
		return CommonFlags{}, fmt.Errorf("failed to parse command %s with args %v: %v", name, args, err)
	}
	return CommonFlags{
		FlagSet:    flags.FlagSet,
		ConfigPath: *flags.ConfigPath,
		Verbose:    *flags.Verbose,
		MaxDepth:   *flags.MaxDepth,
		Entries:    *flags.Entries,
	}, nil
}

// SetUsage sets cmd's usage (for --help flag) to output the string cmdUsage
// followed by each flag's documentation.
func SetUsage(cmd *flag.FlagSet, cmdUsage string) {
	cmd.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s\n", cmdUsage)
		fmt.Fprintf(os.Stderr, "Options:\n")
		cmd.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(os.Stderr, "  %s: %s (default: %q)\n", f.Name, f.Usage, f.DefValue)
		})
	}
}

// LoadConfig loads the config file from configPath, or returns the default config if configPath is empty. The
// options of the flags override the options of the file.
func LoadConfig(flags CommonFlags) (*config.Config, error) {
	cfg := config.NewDefault()
	if flags.ConfigPath != "" {
		config.SetGlobalConfig(flags.ConfigPath)
		c, err := config.LoadGlobal()
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %v", flags.ConfigPath, err)
		}
		cfg = c
	}
	if flags.Verbose {
		cfg.LogLevel = int(config.DebugLevel)
	}
	if flags.MaxDepth != 0 {
		cfg.MaxCallStackDepth = flags.MaxDepth
	}
	return cfg, nil
}

// LoadProgram loads the program description of the only positional argument of the flags, and parses the entry
// signatures
func LoadProgram(flags CommonFlags) (*cfa.Graph, []cfa.Signature, error) {
	args := flags.FlagSet.Args()
	if len(args) != 1 {
		return nil, nil, fmt.Errorf("could not load program: expected one program file, got %d", len(args))
	}
	g, err := cfa.LoadFile(args[0])
	if err != nil {
		return nil, nil, fmt.Errorf("could not load program: %w", err)
	}
	if len(flags.Entries) == 0 {
		return nil, nil, fmt.Errorf("no entry method specified")
	}
	entries := make([]cfa.Signature, 0, len(flags.Entries))
	for _, e := range flags.Entries {
		sig, err := cfa.ParseSignature(e)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid entry %q: %w", e, err)
		}
		if _, ok := g.Method(sig); !ok {
			return nil, nil, fmt.Errorf("entry %s is not a method of the program", sig)
		}
		entries = append(entries, sig)
	}
	return g, entries, nil
}

// Captures errors happening before any analysis starts (program could not load)
var regexCouldNotLoad = regexp.MustCompile("could not load program")

// Captures the kind of error that happen when you put a flag at the end instead of the program file
var flagAfterProgram = regexp.MustCompile("expected one program file, got [2-9]")

// Captures errors on the signature of entries
var invalidEntry = regexp.MustCompile("invalid entry|no entry method")

// HintForErrorMessage looks for specific error message and returns some other message that might help the user
// resolve the problem.
func HintForErrorMessage(errMsg string) string {
	if regexCouldNotLoad.MatchString(errMsg) {
		if flagAfterProgram.MatchString(errMsg) {
			return "all command line flags should be before the path to the program file"
		}
		return "make sure the program file is a YAML description of the methods of the program"
	}
	if invalidEntry.MatchString(errMsg) {
		return "entries are method signatures of the form Class.name(Descriptor)ReturnType, set with -entry"
	}
	return ""
}
