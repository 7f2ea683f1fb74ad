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

package cfa

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// programFile is the format of program description files:
//
//	methods:
//	  - signature: Main.main()V
//	    static: true
//	    code: |
//	      invokestatic Main.source()Ljava/lang/String;
//	      invokestatic Main.sink(Ljava/lang/String;)V
//	      return
//	calls:
//	  - site: Main.main()V@0
//	    targets: [Main.source()Ljava/lang/String;]
type programFile struct {
	Methods []methodSpec `yaml:"methods"`
	Calls   []callSpec   `yaml:"calls"`
}

type methodSpec struct {
	Signature string `yaml:"signature"`
	Static    bool   `yaml:"static"`
	Code      string `yaml:"code"`
}

// callSpec overrides the resolution of one call site
type callSpec struct {
	Site    string   `yaml:"site"`
	Targets []string `yaml:"targets"`
}

// Parse reads a program description and returns its linked graph. Call sites listed in the calls section are
// resolved to their targets, all the others to the method named by the invoke instruction.
func Parse(data []byte) (*Graph, error) {
	var pf programFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("could not unmarshal program: %w", err)
	}
	g := NewGraph()
	var errs []error
	for _, ms := range pf.Methods {
		sig, err := ParseSignature(ms.Signature)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		m, err := NewMethodBuilder(sig, ms.Static).AddText(strings.Split(ms.Code, "\n")...).Build()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := g.Add(m); err != nil {
			errs = append(errs, err)
		}
	}
	resolver := MapResolver{}
	for _, cs := range pf.Calls {
		site, err := ParseLocation(cs.Site)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, t := range cs.Targets {
			sig, err := ParseSignature(t)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			resolver[site] = append(resolver[site], sig)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	g.Link(resolver)
	return g, nil
}

// LoadFile reads the program description in the file
func LoadFile(filename string) (*Graph, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read program %s: %w", filename, err)
	}
	return Parse(data)
}

// ParseLocation parses a location of the form Class.name(descriptor)@offset
func ParseLocation(s string) (Location, error) {
	at := strings.LastIndexByte(s, '@')
	if at < 0 {
		return Location{}, fmt.Errorf("location %q has no offset", s)
	}
	sig, err := ParseSignature(s[:at])
	if err != nil {
		return Location{}, err
	}
	var off int
	switch s[at+1:] {
	case "exit":
		off = ReturnExitOffset
	case "exception":
		off = ExceptionExitOffset
	default:
		if _, err := fmt.Sscanf(s[at+1:], "%d", &off); err != nil {
			return Location{}, fmt.Errorf("invalid offset in location %q", s)
		}
	}
	return Location{Method: sig, Offset: off}, nil
}
