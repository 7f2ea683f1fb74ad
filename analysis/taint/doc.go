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

/*
Package taint implements the taint analysis of JVM methods. The abstract value of a JVM value is the set of labels
of the sources it may come from. The taint states follow the states of the reference analysis in a composite: the
heap of the taint analysis stores the taints at the references computed by the reference analysis.

The sources, sinks and sanitizers are given by the taint tracking problems of the config (see [NewRules]). The main
entry point is [Run]: [Run.Analyze] computes the blocks of the methods reachable from the entry method, and
[Run.Endpoints] returns the calls to sinks whose sensitive operands are tainted. [AnalyzeAll] runs independent
analyses of several entry methods in parallel.
*/
package taint
