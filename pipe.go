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

// pipeKind distinguishes the two emission entry kinds of spec §4.5.
type pipeKind uint8

const (
	pipeAsync pipeKind = iota
	pipeInline
)

// Pipe is the emission entry attached to a Channel: its only external
// capability is Emit(T), per spec §6's Emitter contract. A Pipe is a
// thin value wrapper; the zero Pipe (no channel) always reports Closed.
type Pipe[T any] struct {
	channel *Channel[T]
	kind    pipeKind
}

// Emit submits value to the owning Channel. An inline Pipe applies the
// Flow and delivers to subscribers synchronously on the calling
// goroutine; an async Pipe enqueues onto the Circuit's lane and returns
// once the enqueue completes. An inline Emit returns after every
// subscriber has run; an async Emit does not wait for subscribers, but
// under PolicyBlock on a full bounded queue its enqueue waits for space.
func (p Pipe[T]) Emit(value T) error {
	if p.channel == nil {
		return ErrClosed
	}
	if p.kind == pipeInline {
		return p.channel.deliverInline(value)
	}
	return p.channel.deliverAsync(value)
}

// Channel returns the Channel this Pipe is bound to.
func (p Pipe[T]) Channel() *Channel[T] {
	return p.channel
}
