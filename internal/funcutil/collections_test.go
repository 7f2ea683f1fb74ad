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

package funcutil

import (
	"reflect"
	"strconv"
	"testing"
)

func TestCollections(t *testing.T) {
	a := []int{3, 1, 2}
	if got := Map(a, strconv.Itoa); !reflect.DeepEqual(got, []string{"3", "1", "2"}) {
		t.Errorf("Map: got %v", got)
	}
	if got := Filter(a, func(x int) bool { return x > 1 }); !reflect.DeepEqual(got, []int{3, 2}) {
		t.Errorf("Filter: got %v", got)
	}
	if !Exists(a, func(x int) bool { return x == 2 }) || Exists(a, func(x int) bool { return x > 3 }) {
		t.Errorf("Exists is wrong")
	}
	if !Contains(a, 1) || Contains(a, 4) {
		t.Errorf("Contains is wrong")
	}
	if got := SortedKeys(Set(a)); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("SortedKeys: got %v", got)
	}
}
