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
	"math"
	"math/rand"
)

// stage is one operator in a materialized Flow pipeline. apply returns
// the (possibly replaced) value and whether it passed. Stages are
// instantiated once per Channel (each Channel gets its own stage slice
// with its own private state), matching spec §4.4's "state is private to
// the channel instance."
type stage[T any] struct {
	apply func(T) (T, bool)
}

// Flow is a declarative, immutable, type-preserving pipeline of
// per-emission transformers (spec §4.4). A Flow value is a template:
// Materialize instantiates one stateful copy per Channel.
type Flow[T any] struct {
	builders []func() (stage[T], error)
}

// NewFlow returns an empty Flow, equivalent to an identity transform.
func NewFlow[T any]() Flow[T] {
	return Flow[T]{}
}

func (f Flow[T]) with(b func() (stage[T], error)) Flow[T] {
	next := make([]func() (stage[T], error), len(f.builders)+1)
	copy(next, f.builders)
	next[len(f.builders)] = b
	return Flow[T]{builders: next}
}

// Guard passes a value iff predicate(value) is true.
func (f Flow[T]) Guard(predicate func(T) bool) Flow[T] {
	return f.with(func() (stage[T], error) {
		if predicate == nil {
			return stage[T]{}, invalidArgument("guard predicate must not be nil")
		}
		return stage[T]{apply: func(v T) (T, bool) {
			return v, predicate(v)
		}}, nil
	})
}

// GuardStateful passes a value iff cmp(previousPassed, current) is true.
// initial seeds the "previous" value used for the first comparison.
func (f Flow[T]) GuardStateful(initial T, cmp func(prev, next T) bool) Flow[T] {
	return f.with(func() (stage[T], error) {
		if cmp == nil {
			return stage[T]{}, invalidArgument("guard comparator must not be nil")
		}
		prev := initial
		return stage[T]{apply: func(v T) (T, bool) {
			if !cmp(prev, v) {
				return v, false
			}
			prev = v
			return v, true
		}}, nil
	})
}

// Diff drops consecutive duplicate values (equal to the last value that
// passed). The first value always passes.
func Diff[T comparable](f Flow[T]) Flow[T] {
	return f.with(func() (stage[T], error) {
		var last T
		seeded := false
		return stage[T]{apply: func(v T) (T, bool) {
			if seeded && last == v {
				return v, false
			}
			last = v
			seeded = true
			return v, true
		}}, nil
	})
}

// DiffFrom is Diff seeded with an explicit initial "last emitted" value,
// so the first emission is suppressed if it equals initial.
func DiffFrom[T comparable](f Flow[T], initial T) Flow[T] {
	return f.with(func() (stage[T], error) {
		last := initial
		return stage[T]{apply: func(v T) (T, bool) {
			if last == v {
				return v, false
			}
			last = v
			return v, true
		}}, nil
	})
}

// Peek invokes receptor for every value that reaches this stage,
// side-effect only: it never alters the value or passage. Peek must not
// observe values dropped upstream — guaranteed by the stage order that
// materialized.Eval enforces.
func (f Flow[T]) Peek(receptor func(T)) Flow[T] {
	return f.with(func() (stage[T], error) {
		if receptor == nil {
			return stage[T]{}, invalidArgument("peek receptor must not be nil")
		}
		return stage[T]{apply: func(v T) (T, bool) {
			receptor(v)
			return v, true
		}}, nil
	})
}

// Replace transforms the current value via transformer, still type T.
func (f Flow[T]) Replace(transformer func(T) T) Flow[T] {
	return f.with(func() (stage[T], error) {
		if transformer == nil {
			return stage[T]{}, invalidArgument("replace transformer must not be nil")
		}
		return stage[T]{apply: func(v T) (T, bool) {
			return transformer(v), true
		}}, nil
	})
}

// Reduce maintains an accumulator seeded with initial and emits the
// updated accumulator for every passing value.
func (f Flow[T]) Reduce(initial T, op func(acc, next T) T) Flow[T] {
	return f.with(func() (stage[T], error) {
		if op == nil {
			return stage[T]{}, invalidArgument("reduce operator must not be nil")
		}
		acc := initial
		return stage[T]{apply: func(v T) (T, bool) {
			acc = op(acc, v)
			return acc, true
		}}, nil
	})
}

// SampleEvery passes every n-th value. n must be >= 1; SampleEvery(1) is
// identity.
func (f Flow[T]) SampleEvery(n int) Flow[T] {
	return f.with(func() (stage[T], error) {
		if n < 1 {
			return stage[T]{}, invalidArgument("sample(n) requires n >= 1, got %d", n)
		}
		count := 0
		return stage[T]{apply: func(v T) (T, bool) {
			count++
			return v, count%n == 0
		}}, nil
	})
}

// SampleRate passes values with independent Bernoulli probability rate,
// rate in [0,1]. 0 drops all, 1 passes all. NaN or out-of-range is an
// InvalidArgument error raised at instantiation, per spec §4.4.
func (f Flow[T]) SampleRate(rate float64) Flow[T] {
	return f.sampleRate(rate, rand.Float64)
}

// sampleRate takes an injectable RNG so tests can make the stochastic
// operator deterministic; production use always goes through SampleRate.
func (f Flow[T]) sampleRate(rate float64, rng func() float64) Flow[T] {
	return f.with(func() (stage[T], error) {
		if math.IsNaN(rate) || rate < 0 || rate > 1 {
			return stage[T]{}, invalidArgument("sample(rate) requires rate in [0,1], got %v", rate)
		}
		return stage[T]{apply: func(v T) (T, bool) {
			return v, rng() < rate
		}}, nil
	})
}

// Skip drops the first n passing values, n >= 0. Skip(0) is identity.
func (f Flow[T]) Skip(n int64) Flow[T] {
	return f.with(func() (stage[T], error) {
		if n < 0 {
			return stage[T]{}, invalidArgument("skip(n) requires n >= 0, got %d", n)
		}
		skipped := int64(0)
		return stage[T]{apply: func(v T) (T, bool) {
			if skipped < n {
				skipped++
				return v, false
			}
			return v, true
		}}, nil
	})
}

// Limit passes at most n values total, then blocks indefinitely.
// Composing two Limits passes at most the minimum of the two bounds,
// since each is evaluated independently in sequence.
func (f Flow[T]) Limit(n int64) Flow[T] {
	return f.with(func() (stage[T], error) {
		if n < 0 {
			return stage[T]{}, invalidArgument("limit(n) requires n >= 0, got %d", n)
		}
		passed := int64(0)
		return stage[T]{apply: func(v T) (T, bool) {
			if passed >= n {
				return v, false
			}
			passed++
			return v, true
		}}, nil
	})
}

// siftKind enumerates the primitive family behind sift in spec §4.4, for
// any emission type ordered by a caller-supplied comparator.
type siftKind uint8

const (
	siftHigh siftKind = iota
	siftLow
	siftMin
	siftMax
	siftRange
	siftAbove
	siftBelow
)

// siftSpec describes one sift primitive; built by the Sift* constructors
// below and composed with Flow[T].Sift.
type siftSpec[T any] struct {
	kind     siftKind
	lo, hi   T
	cmp      func(a, b T) int
}

// SiftHigh passes values strictly above the running max seen so far; the
// first value always passes.
func SiftHigh[T any](cmp func(a, b T) int) siftSpec[T] { return siftSpec[T]{kind: siftHigh, cmp: cmp} }

// SiftLow passes values strictly below the running min seen so far; the
// first value always passes.
func SiftLow[T any](cmp func(a, b T) int) siftSpec[T] { return siftSpec[T]{kind: siftLow, cmp: cmp} }

// SiftMin passes values >= v.
func SiftMin[T any](v T, cmp func(a, b T) int) siftSpec[T] {
	return siftSpec[T]{kind: siftMin, lo: v, cmp: cmp}
}

// SiftMax passes values <= v.
func SiftMax[T any](v T, cmp func(a, b T) int) siftSpec[T] {
	return siftSpec[T]{kind: siftMax, hi: v, cmp: cmp}
}

// SiftRange passes values within [lo, hi] inclusive.
func SiftRange[T any](lo, hi T, cmp func(a, b T) int) siftSpec[T] {
	return siftSpec[T]{kind: siftRange, lo: lo, hi: hi, cmp: cmp}
}

// SiftAbove passes values strictly greater than lo.
func SiftAbove[T any](lo T, cmp func(a, b T) int) siftSpec[T] {
	return siftSpec[T]{kind: siftAbove, lo: lo, cmp: cmp}
}

// SiftBelow passes values strictly less than hi.
func SiftBelow[T any](hi T, cmp func(a, b T) int) siftSpec[T] {
	return siftSpec[T]{kind: siftBelow, hi: hi, cmp: cmp}
}

// Sift composes one comparison-based filter stage from a siftSpec.
func (f Flow[T]) Sift(spec siftSpec[T]) Flow[T] {
	return f.with(func() (stage[T], error) {
		if spec.cmp == nil {
			return stage[T]{}, invalidArgument("sift comparator must not be nil")
		}

		switch spec.kind {
		case siftHigh:
			var max T
			seeded := false
			return stage[T]{apply: func(v T) (T, bool) {
				if !seeded {
					max = v
					seeded = true
					return v, true
				}
				if spec.cmp(v, max) > 0 {
					max = v
					return v, true
				}
				return v, false
			}}, nil

		case siftLow:
			var min T
			seeded := false
			return stage[T]{apply: func(v T) (T, bool) {
				if !seeded {
					min = v
					seeded = true
					return v, true
				}
				if spec.cmp(v, min) < 0 {
					min = v
					return v, true
				}
				return v, false
			}}, nil

		case siftMin:
			return stage[T]{apply: func(v T) (T, bool) {
				return v, spec.cmp(v, spec.lo) >= 0
			}}, nil

		case siftMax:
			return stage[T]{apply: func(v T) (T, bool) {
				return v, spec.cmp(v, spec.hi) <= 0
			}}, nil

		case siftRange:
			return stage[T]{apply: func(v T) (T, bool) {
				return v, spec.cmp(v, spec.lo) >= 0 && spec.cmp(v, spec.hi) <= 0
			}}, nil

		case siftAbove:
			return stage[T]{apply: func(v T) (T, bool) {
				return v, spec.cmp(v, spec.lo) > 0
			}}, nil

		case siftBelow:
			return stage[T]{apply: func(v T) (T, bool) {
				return v, spec.cmp(v, spec.hi) < 0
			}}, nil
		}

		return stage[T]{}, invalidArgument("unknown sift kind %d", spec.kind)
	})
}

// materialized is one channel-private, stateful instance of a Flow.
type materialized[T any] struct {
	stages []stage[T]
}

// Materialize instantiates a fresh, stateful pipeline for one Channel.
// Any operator whose argument is invalid fails deterministically here —
// at channel-materialization time — never at emission time, per spec
// §4.4.
func (f Flow[T]) Materialize() (*materialized[T], error) {
	stages := make([]stage[T], 0, len(f.builders))
	for _, b := range f.builders {
		st, err := b()
		if err != nil {
			return nil, err
		}
		stages = append(stages, st)
	}
	return &materialized[T]{stages: stages}, nil
}

// Eval runs the emission through every stage in order; each stage sees
// only values that passed every upstream stage. Returns the final value
// and whether it passed every stage.
func (m *materialized[T]) Eval(v T) (T, bool) {
	cur := v
	for _, st := range m.stages {
		var ok bool
		cur, ok = st.apply(cur)
		if !ok {
			return cur, false
		}
	}
	return cur, true
}
