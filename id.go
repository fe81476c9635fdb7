package substrates

/*
   Copyright 2018 Bruno Moura <brunotm@gmail.com>

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

import (
	"strconv"
	"sync/atomic"
)

// Id is a compact, monotonically allocated identifier unique within a
// Cortex. Comparisons are O(1); String is stable but costly, per §4.1.
type Id uint64

// String renders the Id. Costly relative to comparison, by design: the
// string form exists for diagnostics, not hot paths.
func (id Id) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// idAllocator hands out monotonically increasing Ids for one Cortex.
type idAllocator struct {
	next atomic.Uint64
}

func newIDAllocator() *idAllocator {
	return &idAllocator{}
}

// allocate returns the next Id, starting from 1 so the zero Id is never
// issued and can serve as an "absent" sentinel.
func (a *idAllocator) allocate() Id {
	return Id(a.next.Add(1))
}
