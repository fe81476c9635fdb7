package substrates

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterInstrument struct {
	pipe Pipe[int]
}

func (c counterInstrument) Count(v int) error { return c.pipe.Emit(v) }

func TestConduitPerceptIsIdempotent(t *testing.T) {
	_, circuit := testCircuit(t, nil)

	cname, err := circuit.cortex.Name("metric.idempotent")
	require.NoError(t, err)

	conduit, err := NewConduit[int, counterInstrument](circuit, cname, func(_ *Channel[int], p Pipe[int]) counterInstrument {
		return counterInstrument{pipe: p}
	})
	require.NoError(t, err)

	a, err := conduit.Percept(cname)
	require.NoError(t, err)
	b, err := conduit.Percept(cname)
	require.NoError(t, err)

	assert.Equal(t, a.pipe.Channel(), b.pipe.Channel())
}

func TestConduitPerceptRecoversComposerPanic(t *testing.T) {
	_, circuit := testCircuit(t, nil)

	cname, err := circuit.cortex.Name("metric.panicking")
	require.NoError(t, err)

	conduit, err := NewConduit[int, counterInstrument](circuit, cname, func(_ *Channel[int], _ Pipe[int]) counterInstrument {
		panic("composer boom")
	})
	require.NoError(t, err)

	_, err = conduit.Percept(cname)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "composer boom")

	// A retried Percept for the same Name must not be wedged by the
	// earlier panic: cd.inflight was cleaned up and the failed entry
	// was never published to cd.channels.
	_, err = conduit.Percept(cname)
	assert.Error(t, err)
}

func TestConduitPerceptDiscardsChannelOnComposerFailure(t *testing.T) {
	_, circuit := testCircuit(t, nil)

	cname, err := circuit.cortex.Name("metric.leaky")
	require.NoError(t, err)

	conduit, err := NewConduit[int, counterInstrument](circuit, cname, func(_ *Channel[int], _ Pipe[int]) counterInstrument {
		panic("composer boom")
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = conduit.Percept(cname)
		assert.Error(t, err)
	}

	conduit.mu.Lock()
	count := len(conduit.channelList)
	conduit.mu.Unlock()
	assert.Equal(t, 0, count, "failed Percept attempts must not accumulate orphaned channels")
}

func TestConduitReservoirDrain(t *testing.T) {
	_, circuit := testCircuit(t, nil)

	cname, err := circuit.cortex.Name("metric.reservoir")
	require.NoError(t, err)

	conduit, err := NewConduit[int, counterInstrument](circuit, cname, func(_ *Channel[int], p Pipe[int]) counterInstrument {
		return counterInstrument{pipe: p}
	}, WithInline[int](true))
	require.NoError(t, err)

	reservoir, err := conduit.Reservoir()
	require.NoError(t, err)

	instrument, err := conduit.Percept(cname)
	require.NoError(t, err)

	require.NoError(t, instrument.Count(1))
	require.NoError(t, instrument.Count(2))
	require.NoError(t, instrument.Count(3))

	captures := reservoir.Drain()
	require.Len(t, captures, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{captures[0].Value, captures[1].Value, captures[2].Value})

	assert.Empty(t, reservoir.Drain())

	require.NoError(t, instrument.Count(4))
	captures = reservoir.Drain()
	require.Len(t, captures, 1)
	assert.Equal(t, 4, captures[0].Value)
}

func TestConduitTapTransforms(t *testing.T) {
	_, circuit := testCircuit(t, nil)

	cname, err := circuit.cortex.Name("metric.tap")
	require.NoError(t, err)

	conduit, err := NewConduit[int, counterInstrument](circuit, cname, func(_ *Channel[int], p Pipe[int]) counterInstrument {
		return counterInstrument{pipe: p}
	}, WithInline[int](true))
	require.NoError(t, err)

	tap, err := NewTap(conduit, func(_ Subject, v int) string {
		return "v" + strconv.Itoa(v)
	})
	require.NoError(t, err)

	instrument, err := conduit.Percept(cname)
	require.NoError(t, err)
	require.NoError(t, instrument.Count(7))

	captures := tap.Drain()
	require.Len(t, captures, 1)
	assert.Equal(t, "v7", captures[0].Value)
}

func TestConduitReservoirCoversChannelsCreatedLater(t *testing.T) {
	_, circuit := testCircuit(t, nil)

	cname, err := circuit.cortex.Name("metric.multi")
	require.NoError(t, err)

	conduit, err := NewConduit[int, counterInstrument](circuit, cname, func(_ *Channel[int], p Pipe[int]) counterInstrument {
		return counterInstrument{pipe: p}
	}, WithInline[int](true))
	require.NoError(t, err)

	reservoir, err := conduit.Reservoir()
	require.NoError(t, err)

	otherName, err := circuit.cortex.Child(cname, "other")
	require.NoError(t, err)

	instrument, err := conduit.Percept(otherName)
	require.NoError(t, err)
	require.NoError(t, instrument.Count(9))

	captures := reservoir.Drain()
	require.Len(t, captures, 1)
	assert.Equal(t, 9, captures[0].Value)
}

func TestConduitCloseClosesChannelsAndReservoirs(t *testing.T) {
	_, circuit := testCircuit(t, nil)

	cname, err := circuit.cortex.Name("metric.close")
	require.NoError(t, err)

	conduit, err := NewConduit[int, counterInstrument](circuit, cname, func(_ *Channel[int], p Pipe[int]) counterInstrument {
		return counterInstrument{pipe: p}
	}, WithInline[int](true))
	require.NoError(t, err)

	reservoir, err := conduit.Reservoir()
	require.NoError(t, err)

	instrument, err := conduit.Percept(cname)
	require.NoError(t, err)

	require.NoError(t, conduit.close())

	err = instrument.Count(1)
	assert.ErrorIs(t, err, ErrClosed)

	assert.Empty(t, reservoir.Drain())
}

func TestConduitSubscriberAutoClosesAfterRepeatedFailures(t *testing.T) {
	_, circuit := testCircuit(t, nil)

	cname, err := circuit.cortex.Name("metric.failing")
	require.NoError(t, err)

	conduit, err := NewConduit[int, counterInstrument](circuit, cname, func(_ *Channel[int], p Pipe[int]) counterInstrument {
		return counterInstrument{pipe: p}
	}, WithInline[int](true))
	require.NoError(t, err)

	instrument, err := conduit.Percept(cname)
	require.NoError(t, err)

	sub, err := instrument.pipe.Channel().Subscribe(func(_ Subject, _ int) {
		panic("conduit_test: receiver failure")
	})
	require.NoError(t, err)

	for i := 0; i < maxConsecutiveFailures+2; i++ {
		require.NoError(t, instrument.Count(i))
	}

	assert.True(t, sub.Closed())
}
