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
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned when a Flow operator, Pipe, or Name
	// constructor is given a nil, NaN, or out-of-domain argument. It is
	// always raised synchronously at the construction/configuration call
	// site, never at emission time.
	ErrInvalidArgument = errors.New("substrates: invalid argument")

	// ErrClosed is returned by emitting into, subscribing to, or creating
	// channels, reservoirs or taps on an already closed Circuit, Conduit,
	// or Channel, and by the Cortex factories after Cortex.Close. Scope
	// operations never return it: Register on a closing or closed Scope
	// runs the release at once, and Open returns an already-closed child.
	ErrClosed = errors.New("substrates: closed")

	// ErrRejected is returned when an async Pipe cannot enqueue an
	// emission because its lane's bounded queue is full and the queue's
	// policy is to reject rather than drop or block.
	ErrRejected = errors.New("substrates: rejected")

	// ErrQuiescenceTimeout is returned by QuiescenceResult.Err when the
	// deadline passed to Circuit.Await elapses before every lane drains
	// past its recorded position.
	ErrQuiescenceTimeout = errors.New("substrates: quiescence timeout")
)

// invalidArgument wraps ErrInvalidArgument with a detail message, reported
// synchronously at the point of pipeline or Name instantiation.
func invalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// CallbackFailure captures a panic or error raised by user code during flow
// evaluation or subscriber delivery. It never propagates to the emitter;
// it is reported to the circuit's error sink (its logger). Failures are
// not counted: Circuit.Stats carries only drop and rejection counts.
type CallbackFailure struct {
	// Channel is the name of the channel on which the failure occurred.
	Channel Name
	// Subject is the emitting subject, if known.
	Subject Subject
	// Stage names the stage that failed: "flow" for a Flow operator,
	// "subscriber" for a Receiver.
	Stage string
	// Err is the recovered error or panic value.
	Err error
}

// Error implements the error interface.
func (f *CallbackFailure) Error() string {
	return fmt.Sprintf("substrates: callback failure in %s on channel %q: %v", f.Stage, f.Channel.String(), f.Err)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (f *CallbackFailure) Unwrap() error {
	return f.Err
}

// recoverAsFailure turns a recovered panic value into an error suitable for
// CallbackFailure.Err.
func recoverAsFailure(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", r)
}
