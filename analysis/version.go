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

// Package analysis contains the configurable program analysis engine for JVM bytecode and its instances in the
// subpackages: reference, value and taint analyses over block abstraction memoization, and witness traces.
package analysis

// Version is the version of the tools, set at build time with -ldflags "-X .../analysis.Version=..."
var Version = "v0.1.0-dev"
