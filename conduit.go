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
	"fmt"
	"strings"
	"sync"

	"github.com/brunotm/substrates/log"
)

// Composer builds the composer-produced "instrument" for a newly
// materialized Channel, given the Channel itself and the Pipe the
// Conduit configured for it (async by default, inline if the Conduit
// was built with WithInline). Invoked exactly once per Channel (spec
// §4.6), mirroring the teacher's ProcessorSupplier: a factory called
// once per topology node (builder.go/node.go).
type Composer[T any, I any] func(*Channel[T], Pipe[T]) I

// channelEntry pairs a materialized Channel with its composer-produced
// instrument, so repeated Percept calls for the same Name return the
// identical instrument (spec §4.6's idempotent-percept invariant).
type channelEntry[T any, I any] struct {
	channel    *Channel[T]
	instrument I
}

// creation tracks one in-progress Percept call for a given Name, so
// concurrent Percept calls for the SAME Name wait on a channel rather
// than a mutex. Unlike a mutex, nothing about waiting on done is held
// by the calling goroutine, so it composes safely with a Composer that
// calls back into Percept for a DIFFERENT Name on the same Conduit.
type creation[T any, I any] struct {
	done  chan struct{}
	entry *channelEntry[T, I]
	err   error
}

// conduitConfig collects ConduitOption settings.
type conduitConfig[T any] struct {
	flow   *Flow[T]
	inline bool
}

// ConduitOption configures a Conduit at construction, in the same
// functional-option idiom as the teacher's ScopeOption analogue found in
// _examples/pumped-fn-pumped-go/scope.go (WithScopeTag, WithExtension).
type ConduitOption[T any] func(*conduitConfig[T])

// WithFlow installs a Flow template instantiated fresh for every Channel
// the Conduit creates.
func WithFlow[T any](flow Flow[T]) ConduitOption[T] {
	return func(c *conduitConfig[T]) {
		c.flow = &flow
	}
}

// WithInline configures every Channel's default Pipe as inline
// (synchronous) rather than the async default.
func WithInline[T any](inline bool) ConduitOption[T] {
	return func(c *conduitConfig[T]) {
		c.inline = inline
	}
}

// Conduit is a typed container of Channels keyed by Name, sharing one
// composer and optional Flow template (spec §4.6).
type Conduit[T any, I any] struct {
	name     Name
	circuit  *Circuit
	composer Composer[T, I]
	flow     *Flow[T]
	inline   bool
	logger   log.Logger

	inflight sync.Map // Name -> *creation[T,I], in-progress Percept calls
	channels sync.Map // Name -> *channelEntry[T,I]

	mu          sync.Mutex
	closed      bool
	channelList []*Channel[T]
	reservoirs  []*Reservoir[T]
	tapBind     []func(*Channel[T]) error
	taps        []closer
}

// NewConduit creates a Conduit on circuit. It is a package-level
// function, not a Circuit method, because Go methods cannot introduce
// type parameters beyond their receiver's.
func NewConduit[T any, I any](circuit *Circuit, name Name, composer Composer[T, I], opts ...ConduitOption[T]) (*Conduit[T, I], error) {
	if circuit == nil {
		return nil, invalidArgument("circuit must not be nil")
	}
	if composer == nil {
		return nil, invalidArgument("composer must not be nil")
	}

	cfg := &conduitConfig[T]{}
	for _, opt := range opts {
		opt(cfg)
	}

	cd := &Conduit[T, I]{
		name:     name,
		circuit:  circuit,
		composer: composer,
		flow:     cfg.flow,
		inline:   cfg.inline,
		logger:   log.ForConduit(circuit.logger, name),
	}
	circuit.registerConduit(cd)
	return cd, nil
}

// conduitName satisfies conduitHandle.
func (cd *Conduit[T, I]) conduitName() Name { return cd.name }

// Percept looks up or creates the Channel for name and returns the
// composer-produced instrument. Cache is lock-free on hit (spec §4.6).
// Concurrent Percept calls for the same Name serialize through
// cd.inflight rather than a mutex, so a Composer that calls back into
// Percept for a DIFFERENT Name never blocks on state this goroutine
// already holds.
func (cd *Conduit[T, I]) Percept(name Name) (I, error) {
	var zero I
	if v, ok := cd.channels.Load(name); ok {
		return v.(*channelEntry[T, I]).instrument, nil
	}

	cr := &creation[T, I]{done: make(chan struct{})}
	actual, loaded := cd.inflight.LoadOrStore(name, cr)
	if loaded {
		owner := actual.(*creation[T, I])
		<-owner.done
		if owner.err != nil {
			return zero, owner.err
		}
		return owner.entry.instrument, nil
	}
	defer cd.inflight.Delete(name)
	defer close(cr.done)

	cd.mu.Lock()
	closed := cd.closed
	cd.mu.Unlock()
	if closed {
		cr.err = ErrClosed
		return zero, ErrClosed
	}

	id := cd.circuit.cortex.ids.allocate()
	subject := newSubject(name, id, cd.circuit.cortex.State())

	flow := Flow[T]{}
	if cd.flow != nil {
		flow = *cd.flow
	}

	channel, err := newChannel[T](cd.circuit, subject, flow)
	if err != nil {
		cr.err = err
		return zero, err
	}

	// Snapshotting the reservoir/tap bindings, subscribing this new
	// channel to them, and recording it in cd.channelList all happen
	// under one cd.mu critical section so a concurrent Reservoir()/
	// NewTap() call can never interleave between the snapshot and the
	// record — it either sees this channel in cd.channelList already,
	// or its own append lands in the next Percept's snapshot. Either
	// way the channel ends up subscribed to exactly once per
	// reservoir/tap, never zero times. cd.mu is released before the
	// user-supplied Composer runs below: a Composer that calls back
	// into this same Conduit (Reservoir, NewTap, Percept of another
	// Name) must not deadlock on a lock this call already holds.
	cd.mu.Lock()
	if cd.closed {
		cd.mu.Unlock()
		cr.err = ErrClosed
		return zero, ErrClosed
	}
	reservoirs := make([]*Reservoir[T], len(cd.reservoirs))
	copy(reservoirs, cd.reservoirs)
	bindings := make([]func(*Channel[T]) error, len(cd.tapBind))
	copy(bindings, cd.tapBind)

	for _, r := range reservoirs {
		if sub, serr := channel.Subscribe(r.receive); serr == nil {
			r.trackSubscription(sub)
		}
	}
	for _, b := range bindings {
		_ = b(channel)
	}

	cd.channelList = append(cd.channelList, channel)
	cd.mu.Unlock()

	instrument, err := cd.compose(channel)
	if err != nil {
		cd.discardFailedChannel(channel)
		cr.err = err
		return zero, err
	}

	entry := &channelEntry[T, I]{channel: channel, instrument: instrument}
	cd.channels.Store(name, entry)
	cr.entry = entry

	return instrument, nil
}

// discardFailedChannel removes channel from cd.channelList and closes
// it after a failed Composer call. Without this, a Channel created for
// a Percept whose Composer errors or panics would stay subscribed to
// every Reservoir/Tap and pinned in cd.channelList forever, even though
// it was never published to cd.channels and no caller can ever reach
// it again — an unbounded leak under repeated failed retries for the
// same Name.
func (cd *Conduit[T, I]) discardFailedChannel(channel *Channel[T]) {
	cd.mu.Lock()
	for i, ch := range cd.channelList {
		if ch == channel {
			cd.channelList = append(cd.channelList[:i], cd.channelList[i+1:]...)
			break
		}
	}
	cd.mu.Unlock()

	_ = channel.close()
}

// compose runs the Composer and recovers a panic into an error rather
// than letting it unwind through Percept: a concurrent Percept call for
// the same Name is waiting on cr.done and would otherwise observe a nil
// cr.err alongside a nil cr.entry, producing a nil-pointer dereference
// instead of seeing the failure.
func (cd *Conduit[T, I]) compose(channel *Channel[T]) (instrument I, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero I
			instrument = zero
			err = fmt.Errorf("composer panic: %v", r)
		}
	}()

	pipe := channel.Pipe(cd.inline)
	return cd.composer(channel, pipe), nil
}

// Reservoir installs a Reservoir subscription across every Channel this
// Conduit currently has, and every Channel it creates afterward. The
// range over cd.channelList and the append to cd.reservoirs (which
// later Percept calls snapshot) happen under one cd.mu critical
// section, so no channel created concurrently with this call is ever
// missed by both sides. Binding against cd.channelList rather than the
// cd.channels instrument cache means this lock never needs to be held
// across a Composer call.
func (cd *Conduit[T, I]) Reservoir() (*Reservoir[T], error) {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	if cd.closed {
		return nil, ErrClosed
	}

	r := newReservoir[T]()

	for _, channel := range cd.channelList {
		sub, err := channel.Subscribe(r.receive)
		if err != nil {
			return nil, err
		}
		r.trackSubscription(sub)
	}

	cd.reservoirs = append(cd.reservoirs, r)
	return r, nil
}

// NewTap installs a live, per-emission transforming subscription across
// every Channel of conduit, mapping each passing value via transform. A
// package-level function for the same reason as NewConduit: its output
// type U is not a type parameter of Conduit itself.
func NewTap[T any, I any, U any](cd *Conduit[T, I], transform func(Subject, T) U) (*Tap[U], error) {
	if transform == nil {
		return nil, invalidArgument("tap transform must not be nil")
	}

	cd.mu.Lock()
	defer cd.mu.Unlock()

	if cd.closed {
		return nil, ErrClosed
	}

	t := newTap[U]()
	binding := func(ch *Channel[T]) error {
		sub, err := ch.Subscribe(func(subj Subject, v T) {
			t.receive(subj, transform(subj, v))
		})
		if err != nil {
			return err
		}
		t.trackSubscription(sub)
		return nil
	}

	for _, channel := range cd.channelList {
		if err := binding(channel); err != nil {
			return nil, err
		}
	}

	cd.tapBind = append(cd.tapBind, binding)
	cd.taps = append(cd.taps, t)

	return t, nil
}

// close closes every Channel, Reservoir, and Tap this Conduit owns.
func (cd *Conduit[T, I]) close() error {
	cd.mu.Lock()
	if cd.closed {
		cd.mu.Unlock()
		return nil
	}
	cd.closed = true
	// Close walks cd.channelList, not the cd.channels instrument cache:
	// a Percept call that added its Channel to channelList but is still
	// running its Composer hasn't stored into cd.channels yet, and
	// would otherwise be skipped here and never closed.
	channels := make([]*Channel[T], len(cd.channelList))
	copy(channels, cd.channelList)
	reservoirs := make([]*Reservoir[T], len(cd.reservoirs))
	copy(reservoirs, cd.reservoirs)
	taps := make([]closer, len(cd.taps))
	copy(taps, cd.taps)
	cd.mu.Unlock()

	cd.logger.Debugw("closing conduit", "channels", len(channels), "reservoirs", len(reservoirs), "taps", len(taps))

	var errs CloseError

	for _, channel := range channels {
		if err := channel.close(); err != nil {
			errs.Errors = append(errs.Errors, err)
		}
	}

	for _, r := range reservoirs {
		if err := r.Close(); err != nil {
			errs.Errors = append(errs.Errors, err)
		}
	}
	for _, t := range taps {
		if err := t.Close(); err != nil {
			errs.Errors = append(errs.Errors, err)
		}
	}

	if len(errs.Errors) == 0 {
		return nil
	}
	return &errs
}

func (cd *Conduit[T, I]) dotGraph(sb *strings.Builder) {
	cd.channels.Range(func(key, _ interface{}) bool {
		name := key.(Name)
		sb.WriteString(fmt.Sprintf("%q -> %q;\n", cd.name.String(), name.String()))
		return true
	})
}
