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
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// separator joins Name segments in their external dotted-path form.
const separator = "."

// name is the interned representation of a hierarchical identifier.
// Two names with equal segment paths are always the same *name pointer;
// identity is established once, at intern time, by the nameTable.
type name struct {
	segment   string
	enclosure *name // nil for a root segment
	depth     int
	hash      uint64
}

// Name is the externally visible, value-typed handle to an interned name.
// Name is comparable (it wraps a pointer) so Name equality is pointer
// equality after interning, matching the O(1) equals/hashCode invariant
// in spec §4.1.
type Name struct {
	n *name
}

// zeroName is the absent/invalid Name value, returned from Enclosure()
// when a Name has no parent.
var zeroName = Name{}

// IsZero reports whether this Name is the absent value.
func (nm Name) IsZero() bool {
	return nm.n == nil
}

// Segment returns the last path component of the Name.
func (nm Name) Segment() string {
	if nm.n == nil {
		return ""
	}
	return nm.n.segment
}

// Enclosure returns the parent Name, or the zero Name if this Name has no
// parent (it is a single, root-level segment).
func (nm Name) Enclosure() (Name, bool) {
	if nm.n == nil || nm.n.enclosure == nil {
		return zeroName, false
	}
	return Name{n: nm.n.enclosure}, true
}

// Depth returns the number of segments in the Name, O(1).
func (nm Name) Depth() int {
	if nm.n == nil {
		return 0
	}
	return nm.n.depth
}

// Within reports whether other is a prefix of this Name (i.e. this Name
// is nested within other), or whether this Name equals other. O(depth
// difference) when other is a prefix; O(depth) otherwise.
func (nm Name) Within(other Name) bool {
	if nm.n == nil || other.n == nil {
		return false
	}
	cur := nm.n
	for cur != nil {
		if cur == other.n {
			return true
		}
		cur = cur.enclosure
	}
	return false
}

// Segments returns the ordered path from root to leaf.
func (nm Name) Segments() []string {
	if nm.n == nil {
		return nil
	}
	segs := make([]string, nm.n.depth)
	cur := nm.n
	for i := nm.n.depth - 1; i >= 0; i-- {
		segs[i] = cur.segment
		cur = cur.enclosure
	}
	return segs
}

// String renders the Name as a dotted path, the external representation
// described in spec §6.
func (nm Name) String() string {
	if nm.n == nil {
		return ""
	}
	return strings.Join(nm.Segments(), separator)
}

// Equal reports value equality, which after interning is pointer equality.
func (nm Name) Equal(other Name) bool {
	return nm.n == other.n
}

// hashCode returns the O(1) stable hash for this Name, used for map keys
// and Subject/Channel lookups.
func (nm Name) hashCode() uint64 {
	if nm.n == nil {
		return 0
	}
	return nm.n.hash
}

// nameKey is the interning table key: (parent pointer, segment).
type nameKey struct {
	parent *name
	seg    string
}

// nameTable is the process-wide interning table backing Cortex.name(...).
// Lookups are lock-free after first insertion is not attempted here (a
// single RWMutex guards the whole table); the table favors simplicity
// over the lock-free-on-hit discipline used by Conduit's channel cache,
// since name interning is a one-time cost amortized over the process
// lifetime.
type nameTable struct {
	mu    sync.RWMutex
	table map[nameKey]*name
	roots map[string]*name
}

func newNameTable() *nameTable {
	return &nameTable{
		table: make(map[nameKey]*name),
		roots: make(map[string]*name),
	}
}

// intern returns the canonical Name for a single segment under parent
// (which may be the zero Name for a root segment).
func (t *nameTable) intern(parent Name, segment string) (Name, error) {
	if segment == "" {
		return zeroName, invalidArgument("name segment must not be empty")
	}
	if strings.Contains(segment, separator) {
		return zeroName, invalidArgument("name segment %q must not contain separator %q", segment, separator)
	}

	if parent.n == nil {
		t.mu.RLock()
		if n, ok := t.roots[segment]; ok {
			t.mu.RUnlock()
			return Name{n: n}, nil
		}
		t.mu.RUnlock()

		t.mu.Lock()
		defer t.mu.Unlock()
		if n, ok := t.roots[segment]; ok {
			return Name{n: n}, nil
		}
		n := &name{segment: segment, depth: 1, hash: xxhash.Sum64String(segment)}
		t.roots[segment] = n
		return Name{n: n}, nil
	}

	key := nameKey{parent: parent.n, seg: segment}
	t.mu.RLock()
	if n, ok := t.table[key]; ok {
		t.mu.RUnlock()
		return Name{n: n}, nil
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if n, ok := t.table[key]; ok {
		return Name{n: n}, nil
	}
	n := &name{
		segment:   segment,
		enclosure: parent.n,
		depth:     parent.n.depth + 1,
		hash:      foldHash(parent.n.hash, segment),
	}
	t.table[key] = n
	return Name{n: n}, nil
}

// foldHash combines a parent's stable hash with a child segment in O(1),
// so that a Name's hash is derivable from its segment list (spec §4.1)
// without re-hashing the full path on every intern.
func foldHash(parentHash uint64, segment string) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(parentHash >> (8 * i))
	}
	_, _ = d.Write(buf[:])
	_, _ = d.WriteString(segment)
	return d.Sum64()
}

// path interns a dotted path left to right, returning the leaf Name.
func (t *nameTable) path(dotted string) (Name, error) {
	if dotted == "" {
		return zeroName, invalidArgument("name path must not be empty")
	}
	segs := strings.Split(dotted, separator)
	var cur Name
	for _, seg := range segs {
		var err error
		cur, err = t.intern(cur, seg)
		if err != nil {
			return zeroName, err
		}
	}
	return cur, nil
}

// segments interns an ordered slice of segments, root to leaf.
func (t *nameTable) segments(segs []string) (Name, error) {
	if len(segs) == 0 {
		return zeroName, invalidArgument("name segments must not be empty")
	}
	var cur Name
	for _, seg := range segs {
		var err error
		cur, err = t.intern(cur, seg)
		if err != nil {
			return zeroName, err
		}
	}
	return cur, nil
}

// child interns a single segment under an existing parent Name.
func (t *nameTable) child(parent Name, segment string) (Name, error) {
	return t.intern(parent, segment)
}
