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

package value

import (
	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
)

// Factory creates the identities of the objects of one engine. Every allocation site gets one identity, so the
// objects created by the same instruction are the same abstract object. Engines running in parallel must each use
// their own factory.
type Factory struct {
	ids map[cfa.Location]int

	// Evaluations counts the calls executed by models
	Evaluations int

	// ModelErrors counts the calls whose model failed on its concrete arguments; their result is unknown
	ModelErrors int
}

// NewFactory returns a factory with no identities
func NewFactory() *Factory {
	return &Factory{ids: map[cfa.Location]int{}}
}

// Identity returns the identity of the objects created at the location
func (f *Factory) Identity(at cfa.Location) int {
	if id, ok := f.ids[at]; ok {
		return id
	}
	id := len(f.ids) + 1
	f.ids[at] = id
	return id
}

// Object returns the object of the type created at the location
func (f *Factory) Object(t cfa.TypeDescriptor, at cfa.Location) Value {
	return NewObject(t, f.Identity(at))
}
