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

import "regexp"

// A CodeIdentifier identifies a code element that is a source, sink, sanitizer, etc..
// A code identifier can be identified from its class, method name, method descriptor or field, or any combination
// of those. Class names use the internal form of the JVM (java/lang/String).
type CodeIdentifier struct {
	Class      string `yaml:"class" toml:"class"`
	Method     string `yaml:"method" toml:"method"`
	Descriptor string `yaml:"descriptor" toml:"descriptor"`
	Field      string `yaml:"field" toml:"field"`

	// Label is not matched: it names what the identifier identifies, e.g. the taint label of a source
	Label string `yaml:"label" toml:"label"`

	// This will not be part of the yaml config
	computedRegexs *CodeIdentifierRegex
}

// CodeIdentifierRegex holds the compiled regexes of a code identifier
type CodeIdentifierRegex struct {
	classRegex  *regexp.Regexp
	methodRegex *regexp.Regexp
	fieldRegex  *regexp.Regexp
}

// CompileRegexes compiles the strings in the code identifier into regexes. It compiles all identifiers into regexes
// or none. Descriptors are always matched exactly.
func CompileRegexes(cid CodeIdentifier) CodeIdentifier {
	classRegex, err := regexp.Compile(cid.Class)
	if err != nil {
		return cid
	}
	methodRegex, err := regexp.Compile(cid.Method)
	if err != nil {
		return cid
	}
	fieldRegex, err := regexp.Compile(cid.Field)
	if err != nil {
		return cid
	}
	cid.computedRegexs = &CodeIdentifierRegex{
		classRegex,
		methodRegex,
		fieldRegex,
	}
	return cid
}

// MatchMethod returns true if the method identified by class, name and descriptor matches the identifier.
// Empty fields of the identifier match anything.
func (cid CodeIdentifier) MatchMethod(class, name, descriptor string) bool {
	return cid.equalOnNonEmptyFields(CodeIdentifier{Class: class, Method: name, Descriptor: descriptor})
}

// MatchField returns true if the field identified by class and name matches the identifier.
func (cid CodeIdentifier) MatchField(class, name string) bool {
	return cid.Method == "" && cid.equalOnNonEmptyFields(CodeIdentifier{Class: class, Field: name})
}

// equalOnNonEmptyFields returns true if each of the fields of the argument are matched by the corresponding
// receiver's field, or the receiver's field is empty
func (cid CodeIdentifier) equalOnNonEmptyFields(other CodeIdentifier) bool {
	if cid.computedRegexs != nil {
		return (cid.Class == "" || cid.computedRegexs.classRegex.MatchString(other.Class)) &&
			(cid.Method == "" || cid.computedRegexs.methodRegex.MatchString(other.Method)) &&
			(cid.Descriptor == "" || cid.Descriptor == other.Descriptor) &&
			(cid.Field == "" || cid.computedRegexs.fieldRegex.MatchString(other.Field))
	}
	return (cid.Class == "" || cid.Class == other.Class) &&
		(cid.Method == "" || cid.Method == other.Method) &&
		(cid.Descriptor == "" || cid.Descriptor == other.Descriptor) &&
		(cid.Field == "" || cid.Field == other.Field)
}

func (cid CodeIdentifier) String() string {
	s := cid.Class + "." + cid.Method + cid.Descriptor
	if cid.Field != "" {
		s += ":" + cid.Field
	}
	return s
}

// ExistsCid is true if there is some x in a such that f(x) is true.
func ExistsCid(a []CodeIdentifier, f func(identifier CodeIdentifier) bool) bool {
	for _, x := range a {
		if f(x) {
			return true
		}
	}
	return false
}
