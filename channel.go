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

// Channel is a bound emission site within a Conduit, identified by its
// Subject (spec §4.5/§4.6). A Channel owns its Flow instance and its
// Subscriptions; it is looked up idempotently by Name through its
// Conduit.
type Channel[T any] struct {
	subject Subject
	circuit *Circuit

	mu     sync.Mutex
	flow   *materialized[T]
	subs   []*Subscription[T]
	closed bool
}

func newChannel[T any](circuit *Circuit, subject Subject, flow Flow[T]) (*Channel[T], error) {
	m, err := flow.Materialize()
	if err != nil {
		return nil, err
	}
	return &Channel[T]{subject: subject, circuit: circuit, flow: m}, nil
}

// Subject is the (Name, Id, State) identity of this Channel.
func (c *Channel[T]) Subject() Subject {
	return c.subject
}

// Pipe returns an emission entry for this Channel. inline selects a
// synchronous, zero-allocation-on-the-lane pipe (spec §4.5's "inline
// pipe"); otherwise the pipe enqueues onto the owning Circuit's lane.
func (c *Channel[T]) Pipe(inline bool) Pipe[T] {
	kind := pipeAsync
	if inline {
		kind = pipeInline
	}
	return Pipe[T]{channel: c, kind: kind}
}

// Subscribe installs a Receiver on this Channel, observing emissions
// that pass the Channel's Flow. The same Subject yields the same
// Channel on repeated lookup, so repeated Subscribe calls against the
// Channel obtained from one Name add independent Subscriptions.
func (c *Channel[T]) Subscribe(receiver Receiver[T]) (*Subscription[T], error) {
	if receiver == nil {
		return nil, invalidArgument("subscriber receiver must not be nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	sub := newSubscription(c, receiver)
	c.subs = append(c.subs, sub)
	return sub, nil
}

// removeSubscription is called by Subscription.Close to unlink itself
// from the Channel via registry indirection (the Channel, not the
// Subscription, owns the canonical slice), so closing a Channel safely
// invalidates all of its Subscriptions without a back-reference cycle.
func (c *Channel[T]) removeSubscription(sub *Subscription[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			return
		}
	}
}

// snapshotSubs returns a defensive copy of the current subscriptions,
// taken once per emission so concurrent Subscribe/unsubscribe calls
// never race with delivery.
func (c *Channel[T]) snapshotSubs() []*Subscription[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Subscription[T], len(c.subs))
	copy(out, c.subs)
	return out
}

// evalFlow runs v through the Channel's Flow, recovering any panic from
// user operator callbacks into a CallbackFailure reported to the
// circuit's error sink. A failing evaluation drops the emission for
// this Channel's subscribers without affecting any other Channel.
func (c *Channel[T]) evalFlow(v T) (out T, pass bool) {
	c.mu.Lock()
	flow := c.flow
	c.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			pass = false
			c.circuit.reportFailure(&CallbackFailure{
				Channel: c.subject.Name(),
				Subject: c.subject,
				Stage:   "flow",
				Err:     recoverAsFailure(r),
			})
		}
	}()

	return flow.Eval(v)
}

// deliverInline applies the Flow and, on a pass, synchronously invokes
// every subscriber on the calling thread (spec §4.5).
func (c *Channel[T]) deliverInline(v T) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	out, pass := c.evalFlow(v)
	if !pass {
		return nil
	}

	for _, sub := range c.snapshotSubs() {
		sub.deliver(c.circuit, c.subject, out)
	}
	return nil
}

// deliverAsync atomically enqueues (channel, value) onto the owning
// Circuit's lane queue and returns immediately; a lane worker applies
// the Flow and fans out to subscribers (spec §4.5).
func (c *Channel[T]) deliverAsync(v T) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	return c.circuit.enqueue(c.subject.Id(), func() {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}

		out, pass := c.evalFlow(v)
		if !pass {
			return
		}

		for _, sub := range c.snapshotSubs() {
			sub.deliver(c.circuit, c.subject, out)
		}
	})
}

// close closes the Channel and all of its Subscriptions.
func (c *Channel[T]) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subs := make([]*Subscription[T], len(c.subs))
	copy(subs, c.subs)
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
	return nil
}
