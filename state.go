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

// State is an ordered, deduplicated-by-name set of Slots. It is
// persistent (copy-on-write): Add returns a new State, never mutating
// the receiver, so a State reference handed to one Subject is never
// observed to change by another holder. Per spec §4.2.
type State struct {
	slots []Slot
}

// emptyState is the shared singleton empty State.
var emptyState = State{}

// EmptyState returns the singleton empty State.
func EmptyState() State {
	return emptyState
}

// Add returns a new State with slot appended, or with the existing Slot
// of the same Name replaced in place (preserving its original position),
// per the uniqueness invariant in spec §4.2.
func (s State) Add(slot Slot) State {
	for i := range s.slots {
		if s.slots[i].name.Equal(slot.name) {
			next := make([]Slot, len(s.slots))
			copy(next, s.slots)
			next[i] = slot
			return State{slots: next}
		}
	}
	next := make([]Slot, len(s.slots)+1)
	copy(next, s.slots)
	next[len(s.slots)] = slot
	return State{slots: next}
}

// Get returns the Slot for name and whether it was present.
func (s State) Get(name Name) (Slot, bool) {
	for _, slot := range s.slots {
		if slot.name.Equal(name) {
			return slot, true
		}
	}
	return Slot{}, false
}

// Len returns the number of distinct slots.
func (s State) Len() int {
	return len(s.slots)
}

// Iter calls fn for each Slot in insertion order, stopping early if fn
// returns false.
func (s State) Iter(fn func(Slot) bool) {
	for _, slot := range s.slots {
		if !fn(slot) {
			return
		}
	}
}

// Slice returns a defensive copy of the slots in insertion order.
func (s State) Slice() []Slot {
	out := make([]Slot, len(s.slots))
	copy(out, s.slots)
	return out
}

// Compact returns a minimized State. Because Add already rewrites
// duplicate names in place, a State never accumulates stale entries;
// Compact is therefore an identity operation that exists to satisfy
// spec §4.2's contract and to give future encodings (e.g. dropping
// Slots whose Value equals a declared zero value) a seam to hook into.
func (s State) Compact() State {
	return s
}
