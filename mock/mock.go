package mock

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
	"sync"

	"github.com/brunotm/substrates"
)

// Receiver records every (Subject, value) delivered to it, in arrival
// order, for assertions in tests. It is safe for concurrent delivery.
type Receiver[T any] struct {
	mu       sync.Mutex
	captures []substrates.Capture[T]
}

// New returns an empty Receiver.
func New[T any]() *Receiver[T] {
	return &Receiver[T]{}
}

// Receive is a substrates.Receiver[T], installable via Channel.Subscribe.
func (r *Receiver[T]) Receive(subject substrates.Subject, value T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captures = append(r.captures, substrates.Capture[T]{Subject: subject, Value: value})
}

// Captures returns a snapshot of everything received so far.
func (r *Receiver[T]) Captures() []substrates.Capture[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]substrates.Capture[T], len(r.captures))
	copy(out, r.captures)
	return out
}

// Values returns just the values, in arrival order.
func (r *Receiver[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.captures))
	for i, c := range r.captures {
		out[i] = c.Value
	}
	return out
}

// Len returns the number of captures received so far.
func (r *Receiver[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.captures)
}

// FailingReceiver is a substrates.Receiver[T] that always panics, for
// exercising the Subscriber auto-close-on-repeated-failure path (spec
// §4.9).
type FailingReceiver[T any] struct {
	Message string
}

// Receive panics unconditionally.
func (f *FailingReceiver[T]) Receive(_ substrates.Subject, _ T) {
	msg := f.Message
	if msg == "" {
		msg = "mock: receiver failure"
	}
	panic(msg)
}
