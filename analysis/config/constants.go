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

const (
	// DefaultMaxCallStackDepth is the default maximum call stack depth of the interprocedural analyses
	DefaultMaxCallStackDepth = 10
	// UnboundedCallStackDepth is a max-call-stack-depth value that does not limit the depth of the call stack
	UnboundedCallStackDepth = -1

	// WaitlistDFS explores states depth-first
	WaitlistDFS = "dfs"
	// WaitlistBFS explores states breadth-first
	WaitlistBFS = "bfs"
	// WaitlistTopological explores states in reverse post-order of the control-flow automaton
	WaitlistTopological = "topological"

	// HeapModelTree tracks values per field of every abstract object
	HeapModelTree = "tree"
	// HeapModelShallow tracks one value per abstract object
	HeapModelShallow = "shallow"

	// TaintReturn specifies that a source taints the value it returns
	TaintReturn = "return"
	// TaintThis specifies that a source taints its receiver
	TaintThis = "this"
	// TaintArgs specifies that a source taints its arguments
	TaintArgs = "args"
	// TaintGlobals specifies that a source taints the static fields
	TaintGlobals = "globals"
)

var sourceTaints = []string{TaintReturn, TaintThis, TaintArgs, TaintGlobals}
