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

package cpa

import (
	"fmt"

	"github.com/awslabs/ar-jvm-tools/analysis/config"
)

// Algorithm is the worklist fixpoint algorithm of configurable program analysis
type Algorithm struct {
	Transfer TransferRelation
	Merge    MergeOperator
	Stop     StopOperator

	// Abort is checked before each iteration. Nil means NeverAbort.
	Abort AbortOperator

	// Logger receives trace messages. Nil means no logging.
	Logger *config.LogGroup
}

// Status is the outcome of a run of the algorithm
type Status struct {
	// Complete is true when the waitlist was emptied: the reached set is a fixpoint. When false, the run was aborted
	// and the reached set is a partial result that callers must treat as a lower bound.
	Complete bool

	// Iterations is the number of states popped from the waitlist
	Iterations int

	// Successors is the number of successors computed by the transfer relation
	Successors int

	// Merges is the number of reached states replaced by a merge
	Merges int

	// Stopped is the number of successors covered by the reached set
	Stopped int
}

// Aborted returns true if the run did not reach the fixpoint
func (s Status) Aborted() bool {
	return !s.Complete
}

func (s Status) String() string {
	c := "complete"
	if !s.Complete {
		c = "aborted"
	}
	return fmt.Sprintf("%s after %d iterations (%d successors, %d merges, %d stopped)",
		c, s.Iterations, s.Successors, s.Merges, s.Stopped)
}

// Add accumulates the counters of other into s. The result is complete only if both are complete.
func (s Status) Add(other Status) Status {
	return Status{
		Complete:   s.Complete && other.Complete,
		Iterations: s.Iterations + other.Iterations,
		Successors: s.Successors + other.Successors,
		Merges:     s.Merges + other.Merges,
		Stopped:    s.Stopped + other.Stopped,
	}
}

// RunFrom runs the algorithm from the initial states and returns the reached set
func (a *Algorithm) RunFrom(waitlist Waitlist, initial ...AbstractState) (*ReachedSet, Status) {
	reached := NewReachedSet()
	for _, s := range initial {
		reached.Add(s)
		waitlist.Add(s)
	}
	status := a.Run(reached, waitlist)
	return reached, status
}

// Run expands the states of the waitlist until it is empty or the abort operator stops the run. The states of the
// waitlist must be in the reached set.
func (a *Algorithm) Run(reached *ReachedSet, waitlist Waitlist) Status {
	abort := a.Abort
	if abort == nil {
		abort = NeverAbort{}
	}
	status := Status{}
	for !waitlist.IsEmpty() {
		if abort.Abort(status.Iterations) {
			if a.Logger != nil {
				a.Logger.Debugf("fixpoint aborted with %d states waiting", waitlist.Len())
			}
			return status
		}
		state := waitlist.Pop()
		// states replaced by a merge are not expanded: the result of the merge is in the waitlist
		if !reached.Contains(state) {
			continue
		}
		status.Iterations++
		for _, succ := range a.Transfer.Successors(state) {
			status.Successors++
			a.add(reached, waitlist, succ, &status)
		}
	}
	status.Complete = true
	return status
}

func (a *Algorithm) add(reached *ReachedSet, waitlist Waitlist, succ AbstractState, status *Status) {
	candidates := reached.Candidates(succ)
	// candidates is modified by Replace: iterate over a copy
	for _, r := range append([]AbstractState(nil), candidates...) {
		merged := a.Merge.Merge(succ, r)
		if !merged.Equal(r) {
			reached.Replace(r, merged)
			waitlist.Add(merged)
			status.Merges++
			if a.Logger != nil {
				a.Logger.Tracef("merged into %s", merged)
			}
		}
	}
	if a.Stop.Stop(succ, reached.Candidates(succ)) {
		status.Stopped++
		return
	}
	reached.Add(succ)
	waitlist.Add(succ)
}
