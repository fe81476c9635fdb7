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

// Subject is the immutable identity attached to every emission: the
// (Name, Id, State) triple of spec §4.1/§4.3. Two subjects compare equal
// iff their Ids match; ordering is by Id.
type Subject struct {
	name  Name
	id    Id
	state State
}

// newSubject constructs a Subject. Only Cortex and Conduit internals
// allocate subjects, since a Subject's Id must come from the owning
// Cortex's allocator.
func newSubject(name Name, id Id, state State) Subject {
	return Subject{name: name, id: id, state: state}
}

// Name of the emitting channel.
func (s Subject) Name() Name {
	return s.name
}

// Id uniquely identifies this Subject within its Cortex.
func (s Subject) Id() Id {
	return s.id
}

// State is the metadata bundle attached to this Subject at creation.
func (s Subject) State() State {
	return s.state
}

// Equal reports whether two subjects share the same Id, per spec §8's
// testable property: s1 == s2 iff s1.id == s2.id.
func (s Subject) Equal(other Subject) bool {
	return s.id == other.id
}

// Less orders subjects by Id, for use in sorted diagnostics output.
func (s Subject) Less(other Subject) bool {
	return s.id < other.id
}
