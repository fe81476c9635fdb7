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
	"time"

	"github.com/dgryski/go-jump"

	"github.com/brunotm/substrates/log"
)

// QueuePolicy selects what a lane does when its bounded queue is full.
// The default Circuit has queue capacity 0 and PolicyUnbounded, and a
// capacity of 0 leaves a lane unbounded whatever its policy; the bounded
// policies take effect only for Circuits configured with a non-zero
// queue capacity (spec §5).
type QueuePolicy uint8

const (
	// PolicyUnbounded never rejects or drops; the queue grows freely.
	PolicyUnbounded QueuePolicy = iota
	// PolicyBlock back-pressures the emitting goroutine until space frees.
	PolicyBlock
	// PolicyDrop silently discards the new emission, counting it in Stats.
	PolicyDrop
	// PolicyReject returns ErrRejected to the caller synchronously.
	PolicyReject
)

// circuitState is the Circuit lifecycle: OPEN -> CLOSING -> CLOSED, per
// spec §4.7.
type circuitState uint8

const (
	circuitOpen circuitState = iota
	circuitClosing
	circuitClosed
)

// workItem is one unit of lane work: apply a channel's flow and fan out
// to subscribers. Channel-type-specific logic is captured in the
// closure so the lane machinery stays free of generics, mirroring the
// teacher's task.go buffers of plain Record values routed to a node's
// untyped forward().
type workItem func()

// lane is one worker goroutine and its FIFO queue. Per-subject ordering
// (spec §4.7) is provided by always routing a given Subject's emissions
// to the same lane (see Circuit.laneFor) and by a lane processing its
// queue strictly in arrival order.
type lane struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []workItem
	closed   bool
	capacity int
	policy   QueuePolicy
	enqueued uint64
	processed uint64
	dropped  uint64
	rejected uint64
}

func newLane(capacity int, policy QueuePolicy) *lane {
	l := &lane{capacity: capacity, policy: policy}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// push enqueues item, applying the lane's bounded-queue policy.
func (l *lane) push(item workItem) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}

	if l.capacity > 0 && l.policy != PolicyUnbounded {
		for len(l.items) >= l.capacity {
			switch l.policy {
			case PolicyDrop:
				l.dropped++
				l.mu.Unlock()
				return nil
			case PolicyReject:
				l.rejected++
				l.mu.Unlock()
				return ErrRejected
			default: // PolicyBlock
				l.cond.Wait()
				if l.closed {
					l.mu.Unlock()
					return ErrClosed
				}
			}
		}
	}

	l.items = append(l.items, item)
	l.enqueued++
	l.cond.Broadcast()
	l.mu.Unlock()
	return nil
}

// run is the lane worker's cooperative loop: pop, deliver, repeat. It
// exits once the lane is closed and fully drained.
func (l *lane) run() {
	for {
		l.mu.Lock()
		for len(l.items) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.items) == 0 && l.closed {
			l.mu.Unlock()
			return
		}
		item := l.items[0]
		l.items = l.items[1:]
		l.mu.Unlock()

		item()

		l.mu.Lock()
		l.processed++
		l.cond.Broadcast()
		l.mu.Unlock()
	}
}

// snapshot returns the current enqueue count, the position Await must
// observe as drained for quiescence to hold.
func (l *lane) snapshot() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enqueued
}

// awaitDrain blocks until processed >= threshold, or deadline elapses
// when hasDeadline is true. Returns whether the threshold was reached.
func (l *lane) awaitDrain(threshold uint64, deadline time.Time, hasDeadline bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if hasDeadline {
		timer := time.AfterFunc(time.Until(deadline), func() {
			l.mu.Lock()
			l.cond.Broadcast()
			l.mu.Unlock()
		})
		defer timer.Stop()
	}

	for l.processed < threshold {
		if l.closed && l.processed < threshold && len(l.items) == 0 {
			// A closed lane with an empty queue accepts no more work,
			// so a threshold it has not reached will never be met;
			// stop waiting instead of blocking forever.
			break
		}
		if hasDeadline && !time.Now().Before(deadline) {
			break
		}
		l.cond.Wait()
	}
	return l.processed >= threshold
}

// closeAndDrain stops accepting new work and waits for the queue to
// empty, then shuts the worker goroutine down.
func (l *lane) closeAndDrain() {
	l.mu.Lock()
	threshold := l.enqueued
	l.mu.Unlock()

	l.awaitDrain(threshold, time.Time{}, false)

	l.mu.Lock()
	l.closed = true
	l.cond.Broadcast()
	l.mu.Unlock()
}

// QuiescenceResult is returned by Circuit.Await.
type QuiescenceResult struct {
	// Quiesced is true iff every emission enqueued before Await was
	// called has been delivered to every subscriber observed at
	// enqueue time.
	Quiesced bool
}

// Err returns ErrQuiescenceTimeout if the deadline passed to Await
// elapsed before the Circuit quiesced, or nil otherwise. Gives callers
// that want the sentinel-error form (errors.Is(err, ErrQuiescenceTimeout))
// a path to it without changing Await's QuiescenceResult return type.
func (r QuiescenceResult) Err() error {
	if r.Quiesced {
		return nil
	}
	return ErrQuiescenceTimeout
}

// conduitHandle is the Circuit-side view of a Conduit, kept generics-free
// so heterogeneous Conduit[T] instances can share one Circuit registry.
type conduitHandle interface {
	close() error
	dotGraph(sb *strings.Builder)
	conduitName() Name
}

// Stats is a snapshot of Circuit-wide diagnostics: drop and rejection
// counts, supplementing spec §5's "drop events are reported."
type Stats struct {
	Dropped  uint64
	Rejected uint64
}

// Circuit is the execution substrate: lane(s), work queue, quiescence
// barrier, and graph of channels, per spec §4.7.
type Circuit struct {
	name    Name
	logger  log.Logger
	cortex  *Cortex
	scope   *Scope
	config  Config

	mu       sync.Mutex
	state    circuitState
	lanes    []*lane
	conduits []conduitHandle
	inflight sync.WaitGroup // enqueue calls that passed the open check but haven't pushed yet
}

func newCircuit(cortex *Cortex, name Name, config Config, scope *Scope) *Circuit {
	defaults := config.CircuitDefaults()

	c := &Circuit{
		name:   name,
		logger: log.ForCircuit(name, defaults.Lanes),
		cortex: cortex,
		scope:  scope,
		config: config,
	}

	c.lanes = make([]*lane, defaults.Lanes)
	for i := range c.lanes {
		c.lanes[i] = newLane(defaults.QueueCapacity, defaults.QueuePolicy)
		go c.lanes[i].run()
	}

	return c
}

// Name of the Circuit.
func (c *Circuit) Name() Name {
	return c.name
}

// Lanes returns the configured lane count.
func (c *Circuit) Lanes() int {
	return len(c.lanes)
}

// Scope returns the Circuit's root Scope; closing it closes the Circuit.
func (c *Circuit) Scope() *Scope {
	return c.scope
}

// laneFor consistently hashes a Subject's Id to one of the Circuit's
// lanes, guaranteeing every emission for that Subject lands on the same
// lane and is therefore delivered in enqueue order (spec §4.7's
// per-subject FIFO), grounded on the teacher's task.go use of
// dgryski/go-jump to route same-keyed records to the same task buffer.
func (c *Circuit) laneFor(id Id) *lane {
	n := len(c.lanes)
	if n == 1 {
		return c.lanes[0]
	}
	idx := jump.Hash(uint64(id), n)
	return c.lanes[idx]
}

// enqueue routes item to the lane owning subject id. The open-state
// check and the inflight.Add happen under the same c.mu critical
// section as Close's state transition, so Close can never observe
// "state still open" and proceed to drain lanes while a push this call
// is about to make hasn't happened yet: either this call sees
// circuitOpen and Close's Wait blocks for it, or Close has already
// flipped the state and this call is rejected before it ever reaches
// the lane.
func (c *Circuit) enqueue(id Id, item workItem) error {
	c.mu.Lock()
	if c.state != circuitOpen {
		c.mu.Unlock()
		return ErrClosed
	}
	c.inflight.Add(1)
	c.mu.Unlock()
	defer c.inflight.Done()

	return c.laneFor(id).push(item)
}

// Await blocks until every emission enqueued before this call has been
// delivered to every subscriber observed at enqueue time, or until an
// optional deadline elapses. Callable concurrently with emissions; a
// concurrent emission made after Await begins is not guaranteed to be
// observed (spec §4.7). Callers that want the sentinel-error form of a
// timeout can call QuiescenceResult.Err(), which returns
// ErrQuiescenceTimeout when Quiesced is false.
func (c *Circuit) Await(deadline ...time.Time) QuiescenceResult {
	snapshots := make([]uint64, len(c.lanes))
	for i, l := range c.lanes {
		snapshots[i] = l.snapshot()
	}

	hasDeadline := len(deadline) > 0
	var dl time.Time
	if hasDeadline {
		dl = deadline[0]
	}

	ok := true
	for i, l := range c.lanes {
		if !l.awaitDrain(snapshots[i], dl, hasDeadline) {
			ok = false
		}
	}

	return QuiescenceResult{Quiesced: ok}
}

// registerConduit adds a Conduit to this Circuit's registry, so Close
// and DotGraph reach it.
func (c *Circuit) registerConduit(h conduitHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conduits = append(c.conduits, h)
}

// Stats returns a snapshot of drop/reject counters across all lanes.
func (c *Circuit) Stats() Stats {
	var s Stats
	for _, l := range c.lanes {
		l.mu.Lock()
		s.Dropped += l.dropped
		s.Rejected += l.rejected
		l.mu.Unlock()
	}
	return s
}

// DotGraph renders a Graphviz digraph of this Circuit's conduits and
// channels, grounded on the teacher's topology.go dotGraph().
func (c *Circuit) DotGraph() string {
	var sb strings.Builder
	sb.WriteString("digraph Circuit {\nrankdir=LR;\n")

	c.mu.Lock()
	conduits := make([]conduitHandle, len(c.conduits))
	copy(conduits, c.conduits)
	c.mu.Unlock()

	for _, h := range conduits {
		h.dotGraph(&sb)
	}
	sb.WriteString("}\n")
	return sb.String()
}

// Close transitions the Circuit to CLOSING (reject new emissions, drain
// queues, close conduits) then to CLOSED (stop lane workers, close the
// root scope). Idempotent.
func (c *Circuit) Close() error {
	c.mu.Lock()
	if c.state != circuitOpen {
		c.mu.Unlock()
		return nil
	}
	c.state = circuitClosing
	conduits := make([]conduitHandle, len(c.conduits))
	copy(conduits, c.conduits)
	c.mu.Unlock()

	// Wait for every enqueue call that observed circuitOpen and is
	// mid-push to finish its push before any lane takes its drain
	// threshold snapshot; otherwise closeAndDrain could snapshot
	// enqueued before that push lands, and the item would sit in the
	// queue forever, never counted toward quiescence or delivered.
	c.inflight.Wait()

	for _, l := range c.lanes {
		l.closeAndDrain()
	}

	var errs CloseError
	for _, h := range conduits {
		if err := h.close(); err != nil {
			errs.Errors = append(errs.Errors, err)
		}
	}

	if err := c.scope.Close(); err != nil {
		errs.Errors = append(errs.Errors, err)
	}

	c.mu.Lock()
	c.state = circuitClosed
	c.mu.Unlock()

	if len(errs.Errors) == 0 {
		return nil
	}
	return &errs
}

// Closed reports whether the Circuit has finished closing.
func (c *Circuit) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == circuitClosed
}

// reportFailure routes a CallbackFailure to the Circuit's error sink
// (its structured logger), per spec §7: emission-time errors never
// propagate to the emitter.
func (c *Circuit) reportFailure(f *CallbackFailure) {
	c.logger.Errorw("callback failure",
		"stage", f.Stage,
		"channel", f.Channel.String(),
		"subject_id", f.Subject.Id().String(),
		"error", f.Err)
}
