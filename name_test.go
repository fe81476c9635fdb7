package substrates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameInterningIdentity(t *testing.T) {
	table := newNameTable()

	a, err := table.path("service.http.latency")
	require.NoError(t, err)

	b, err := table.path("service.http.latency")
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.hashCode(), b.hashCode())
}

func TestNameEqualityBySegments(t *testing.T) {
	table := newNameTable()

	a, err := table.segments([]string{"service", "http", "latency"})
	require.NoError(t, err)

	b, err := table.path("service.http.latency")
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
}

func TestNameDepthAndSegments(t *testing.T) {
	table := newNameTable()

	n, err := table.path("a.b.c")
	require.NoError(t, err)

	assert.Equal(t, 3, n.Depth())
	assert.Equal(t, []string{"a", "b", "c"}, n.Segments())
	assert.Equal(t, "a.b.c", n.String())
}

func TestNameEnclosureAndWithin(t *testing.T) {
	table := newNameTable()

	parent, err := table.path("a.b")
	require.NoError(t, err)

	child, err := table.child(parent, "c")
	require.NoError(t, err)

	enc, ok := child.Enclosure()
	require.True(t, ok)
	assert.True(t, enc.Equal(parent))

	assert.True(t, child.Within(parent))
	assert.True(t, child.Within(child))
	assert.False(t, parent.Within(child))

	_, ok = parent.Enclosure()
	require.True(t, ok)

	root, err := table.path("a")
	require.NoError(t, err)
	_, ok = root.Enclosure()
	assert.False(t, ok)
}

func TestNameRejectsEmptyOrSeparatorSegment(t *testing.T) {
	table := newNameTable()

	_, err := table.intern(zeroName, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = table.intern(zeroName, "has.dot")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNameDistinctPathsDistinctIdentity(t *testing.T) {
	table := newNameTable()

	a, err := table.path("a.b")
	require.NoError(t, err)

	b, err := table.path("a.c")
	require.NoError(t, err)

	assert.False(t, a.Equal(b))
}
