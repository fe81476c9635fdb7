package substrates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateAddReplacesByName(t *testing.T) {
	table := newNameTable()
	n, err := table.path("region")
	require.NoError(t, err)

	s := EmptyState()
	s = s.Add(NewSlot(n, SlotString, "us-east-1"))
	s = s.Add(NewSlot(n, SlotString, "us-west-2"))

	assert.Equal(t, 1, s.Len())
	slot, ok := s.Get(n)
	require.True(t, ok)
	assert.Equal(t, "us-west-2", slot.String(""))
}

func TestStateIsCopyOnWrite(t *testing.T) {
	table := newNameTable()
	n, err := table.path("count")
	require.NoError(t, err)

	base := EmptyState()
	next := base.Add(NewSlot(n, SlotInt, 1))

	assert.Equal(t, 0, base.Len())
	assert.Equal(t, 1, next.Len())
}

func TestStateIterOrderAndEarlyStop(t *testing.T) {
	table := newNameTable()
	s := EmptyState()
	for _, seg := range []string{"a", "b", "c"} {
		n, err := table.path(seg)
		require.NoError(t, err)
		s = s.Add(NewSlot(n, SlotString, seg))
	}

	var seen []string
	s.Iter(func(slot Slot) bool {
		seen = append(seen, slot.Name().Segment())
		return slot.Name().Segment() != "b"
	})
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestSlotCoercion(t *testing.T) {
	table := newNameTable()
	n, err := table.path("rate")
	require.NoError(t, err)

	s := NewSlot(n, SlotDouble, "1.5")
	assert.Equal(t, 1.5, s.Double(0))
	assert.Equal(t, 1, s.Int(0))
	assert.Equal(t, false, NewSlot(n, SlotBool, "not-a-bool").Bool(false))
}
