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

import "sync"

// Cortex is the process-wide root: the single Name table, Id allocator,
// and registry of top-level Scopes and Circuits (spec §4.2). There is
// exactly one Cortex per process, mirroring the teacher's package-level
// streams.New()/streams.Default() singleton in api.go.
type Cortex struct {
	names *nameTable
	ids   *idAllocator

	mu       sync.Mutex
	state    State
	scopes   []*Scope
	circuits []*Circuit
	closed   bool
}

func newCortex() *Cortex {
	return &Cortex{
		names: newNameTable(),
		ids:   newIDAllocator(),
		state: EmptyState(),
	}
}

var (
	globalCortex     *Cortex
	globalCortexOnce sync.Once
)

// defaultCortex returns the process-wide Cortex, created lazily on first
// use.
func defaultCortex() *Cortex {
	globalCortexOnce.Do(func() {
		globalCortex = newCortex()
	})
	return globalCortex
}

// Name interns a dotted path ("a.b.c") into the canonical Name for that
// path, allocating any segment not already seen.
func (cx *Cortex) Name(dotted string) (Name, error) {
	return cx.names.path(dotted)
}

// NameOf interns an ordered slice of path segments into a Name.
func (cx *Cortex) NameOf(segments ...string) (Name, error) {
	return cx.names.segments(segments)
}

// Child interns segment under an existing parent Name.
func (cx *Cortex) Child(parent Name, segment string) (Name, error) {
	return cx.names.child(parent, segment)
}

// State returns the Cortex-wide ambient State, the slot bag a Subject's
// State is seeded from (spec §4.3).
func (cx *Cortex) State() State {
	cx.mu.Lock()
	defer cx.mu.Unlock()
	return cx.state
}

// SetState replaces the Cortex-wide ambient State.
func (cx *Cortex) SetState(s State) {
	cx.mu.Lock()
	defer cx.mu.Unlock()
	cx.state = s
}

// Scope opens a new top-level Scope under the Cortex. An optional Name
// tags the Scope for diagnostics.
func (cx *Cortex) Scope(name ...Name) (*Scope, error) {
	cx.mu.Lock()
	if cx.closed {
		cx.mu.Unlock()
		return nil, ErrClosed
	}
	cx.mu.Unlock()

	var s *Scope
	if len(name) > 0 {
		s = newScope(nil, name[0], true)
	} else {
		s = newScope(nil, zeroName, false)
	}

	cx.mu.Lock()
	cx.scopes = append(cx.scopes, s)
	cx.mu.Unlock()
	return s, nil
}

// Circuit creates a new Circuit rooted in a fresh top-level Scope,
// configured from config (lane count, queue policy/capacity). An
// optional Name tags the Circuit for diagnostics and logging.
func (cx *Cortex) Circuit(config Config, name ...Name) (*Circuit, error) {
	cx.mu.Lock()
	if cx.closed {
		cx.mu.Unlock()
		return nil, ErrClosed
	}
	cx.mu.Unlock()

	var nm Name
	if len(name) > 0 {
		nm = name[0]
	}

	scope, err := cx.Scope()
	if err != nil {
		return nil, err
	}

	c := newCircuit(cx, nm, config, scope)

	cx.mu.Lock()
	cx.circuits = append(cx.circuits, c)
	cx.mu.Unlock()
	return c, nil
}

// Close closes every live Circuit, then every top-level Scope, then
// clears the Name table. Idempotent.
func (cx *Cortex) Close() error {
	cx.mu.Lock()
	if cx.closed {
		cx.mu.Unlock()
		return nil
	}
	cx.closed = true
	circuits := make([]*Circuit, len(cx.circuits))
	copy(circuits, cx.circuits)
	scopes := make([]*Scope, len(cx.scopes))
	copy(scopes, cx.scopes)
	cx.mu.Unlock()

	var errs CloseError
	for _, c := range circuits {
		if err := c.Close(); err != nil {
			errs.Errors = append(errs.Errors, err)
		}
	}
	for _, s := range scopes {
		if err := s.Close(); err != nil {
			errs.Errors = append(errs.Errors, err)
		}
	}

	cx.names.mu.Lock()
	cx.names.table = make(map[nameKey]*name)
	cx.names.roots = make(map[string]*name)
	cx.names.mu.Unlock()

	if len(errs.Errors) == 0 {
		return nil
	}
	return &errs
}
