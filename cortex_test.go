package substrates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCortexNameInterningIsSharedAcrossCalls(t *testing.T) {
	cx := newCortex()

	a, err := cx.Name("service.http")
	require.NoError(t, err)
	b, err := cx.NameOf("service", "http")
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
}

func TestCortexCloseClosesCircuitsAndScopes(t *testing.T) {
	cx := newCortex()

	circuit, err := cx.Circuit(NewConfig(nil))
	require.NoError(t, err)

	scope, err := cx.Scope()
	require.NoError(t, err)

	require.NoError(t, cx.Close())
	assert.True(t, circuit.Closed())
	assert.True(t, scope.Closed())

	_, err = cx.Circuit(NewConfig(nil))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCortexCloseIsIdempotent(t *testing.T) {
	cx := newCortex()
	require.NoError(t, cx.Close())
	require.NoError(t, cx.Close())
}
